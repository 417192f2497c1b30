package atomix

import (
	"time"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/primitive"
	"github.com/coreward/atomix/pkg/types"
)

// Config configures a Builder. LocalNode and BootstrapNodes are mandatory;
// everything else has a sensible default.
type Config struct {
	ClusterName string

	LocalNode      types.Node
	BootstrapNodes []types.Node

	// RaftPort is where this node's partitions bind their Raft transport.
	// LocalNode.Port is the communication fabric's address (what other
	// nodes dial for comm/events/remote-session traffic) and must differ
	// from RaftPort since the two speak different protocols on the same
	// host. Defaults to LocalNode.Port + 1.
	RaftPort int

	// NumPartitions and PartitionSize derive a topology from
	// BootstrapNodes when Partitions is empty. See pkg/topology.Build.
	NumPartitions int
	PartitionSize int
	Partitions    []types.PartitionMetadata

	// PrimitiveTypes restricts the primitives this cluster serves. Empty
	// means all built-in types.
	PrimitiveTypes []types.PrimitiveType

	// HTTPPort, when non-zero, starts a /healthz, /readyz, /metrics HTTP
	// server on this port.
	HTTPPort int

	DataDir string

	MaxRetries int

	// ProbeInterval and ProbeTimeout tune the cluster-membership liveness
	// prober. Defaults to 10s / 5s.
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

func (c *Config) setDefaults() {
	if c.ClusterName == "" {
		c.ClusterName = "atomix"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RaftPort == 0 {
		c.RaftPort = c.LocalNode.Port + 1
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = 10 * time.Second
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	if c.LocalNode.ID == "" {
		return atomixerr.New(atomixerr.ConfigurationInvalid, nil)
	}
	if len(c.BootstrapNodes) == 0 {
		return atomixerr.Newf(atomixerr.ConfigurationInvalid, "bootstrapNodes must be non-empty")
	}
	if _, ok := byID(c.BootstrapNodes, c.LocalNode.ID); !ok {
		return atomixerr.Newf(atomixerr.ConfigurationInvalid, "localNode %q is not a member of bootstrapNodes", c.LocalNode.ID)
	}
	return nil
}

func byID(nodes []types.Node, id types.NodeID) (types.Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return types.Node{}, false
}

// Builder validates a Config and assembles a Runtime. It performs no I/O
// until Build is called.
type Builder struct {
	cfg Config
}

// NewBuilder returns a Builder seeded with cfg.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Build validates the configuration and constructs a Runtime, without
// opening it. Call Runtime.Open to actually start the cluster.
func (b *Builder) Build() (*Runtime, error) {
	cfg := b.cfg
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	registry := primitive.NewDefaultRegistry()
	if len(cfg.PrimitiveTypes) > 0 {
		registry = primitive.NewRegistryFor(cfg.PrimitiveTypes...)
	}

	return newRuntime(cfg, registry), nil
}

// localHost returns the host part of cfg.LocalNode, used to bind listeners.
func localHost(n types.Node) string {
	if n.Host == "" {
		return "0.0.0.0"
	}
	return n.Host
}
