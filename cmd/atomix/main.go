package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreward/atomix/pkg/atomix"
	"github.com/coreward/atomix/pkg/config"
	"github.com/coreward/atomix/pkg/log"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "atomix",
	Short:   "Atomix - a distributed coordination runtime",
	Long:    `Atomix replicates a set of distributed primitives (maps, locks, counters, leader elections) across a partitioned Raft cluster and exposes them behind a recoverable, retrying proxy.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("atomix version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a cluster node from a configuration file",
	Long:  `Run brings up every node component (certificates, membership, communication, partitions, primitives) from a cluster YAML file and serves until interrupted.`,
	RunE:  runNode,
}

func init() {
	runCmd.Flags().StringP("config", "f", "", "Cluster configuration file (required)")
	runCmd.Flags().Bool("enable-pprof", false, "Enable pprof profiling endpoints on 127.0.0.1:6060")
	runCmd.Flags().Duration("probe-interval", 10*time.Second, "Liveness probe interval")
	_ = runCmd.MarkFlagRequired("config")
}

func runNode(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	probeInterval, _ := cmd.Flags().GetDuration("probe-interval")
	pprofEnabled, _ := cmd.Flags().GetBool("enable-pprof")

	file, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := file.Build()
	if err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	fmt.Printf("Starting atomix node %q in cluster %q\n", cfg.LocalNode.ID, cfg.ClusterName)
	fmt.Printf("  comm address: %s\n", cfg.LocalNode.Endpoint())
	fmt.Printf("  data dir:     %s\n", cfg.DataDir)

	cfg.ProbeInterval = probeInterval

	rt, err := atomix.NewBuilder(cfg).Build()
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	if err := rt.Open(); err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	fmt.Println("✓ runtime open")

	if pprofEnabled {
		go func() {
			_ = http.ListenAndServe("127.0.0.1:6060", nil)
		}()
		fmt.Println("✓ pprof enabled at http://127.0.0.1:6060/debug/pprof/")
	}

	if cfg.HTTPPort != 0 {
		fmt.Printf("✓ http endpoints on port %d (/healthz, /readyz, /metrics)\n", cfg.HTTPPort)
	}

	fmt.Println("\nNode is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	if err := rt.Close(); err != nil {
		return fmt.Errorf("close runtime: %w", err)
	}
	fmt.Println("✓ shutdown complete")
	return nil
}
