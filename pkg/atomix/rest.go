package atomix

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coreward/atomix/pkg/metrics"
	"github.com/coreward/atomix/pkg/partition"
)

// restServer exposes /healthz, /readyz and /metrics when configured with a
// non-zero port. It never gates cluster operations: it only reports on
// them.
type restServer struct {
	http       *http.Server
	partitions *partition.Service
}

func newRESTServer(addr string, partitions *partition.Service) *restServer {
	mux := http.NewServeMux()
	r := &restServer{partitions: partitions}

	mux.HandleFunc("/healthz", r.healthHandler)
	mux.HandleFunc("/readyz", r.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	r.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return r
}

func (r *restServer) serve() error {
	err := r.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (r *restServer) stop() {
	_ = r.http.Close()
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *restServer) healthHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "healthy", Timestamp: time.Now()})
}

type readyResponse struct {
	Status     string          `json:"status"`
	Partitions map[string]bool `json:"partitions"`
}

// readyHandler reports whether every locally-hosted partition has a known
// leader, the same liveness signal pkg/partition.Handle.IsLeader/LeaderHint
// already expose per partition.
func (r *restServer) readyHandler(w http.ResponseWriter, req *http.Request) {
	statuses := make(map[string]bool)
	ready := true
	for _, h := range r.partitions.Partitions() {
		if !h.IsMember() {
			continue
		}
		ok := h.LeaderHint() != ""
		statuses[strconv.Itoa(int(h.ID()))] = ok
		if !ok {
			ready = false
		}
	}

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(readyResponse{Status: status, Partitions: statuses})
}
