package comm

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"sync"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/cluster"
	"github.com/coreward/atomix/pkg/transport"
	"github.com/coreward/atomix/pkg/types"
)

// HandlerFunc answers one inbound call for a registered service.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Envelope addresses an inbound call to the service that should handle
// it, the same way pkg/primitive.Envelope addresses a primitive command
// to a named instance.
type Envelope struct {
	Service string `json:"service"`
	Payload []byte `json:"payload"`
}

// Config configures the communication fabric.
type Config struct {
	Membership *cluster.Membership
	Cert       *tls.Certificate
	RootCA     []byte
	ListenAddr string
}

// Fabric is the cluster communication fabric (C3). It owns the local
// transport.Server and a shared transport.Client, and demultiplexes
// inbound calls by service name to locally registered handlers.
type Fabric struct {
	cfg Config

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	server *transport.Server
	client *transport.Client
}

// New creates a fabric. Open must be called before it accepts or issues
// any calls.
func New(cfg Config) *Fabric {
	return &Fabric{cfg: cfg, handlers: make(map[string]HandlerFunc)}
}

// Register associates service with fn. Must be called before Open for
// handlers that must be reachable as soon as the fabric starts listening.
func (f *Fabric) Register(service string, fn HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[service] = fn
}

// Open starts the local listener and the outbound client.
func (f *Fabric) Open() error {
	srv, err := transport.NewServer(f.cfg.ListenAddr, f.cfg.Cert, f.cfg.RootCA, f)
	if err != nil {
		return err
	}
	f.server = srv

	go func() { _ = srv.Serve() }()

	client, err := transport.NewClient(f.cfg.Cert, f.cfg.RootCA)
	if err != nil {
		srv.Stop()
		return err
	}
	f.client = client
	return nil
}

// Close stops the listener and closes all outbound connections.
func (f *Fabric) Close() error {
	if f.server != nil {
		f.server.Stop()
	}
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Addr returns the local listen address, once Open has run.
func (f *Fabric) Addr() string {
	if f.server == nil {
		return ""
	}
	return f.server.Addr()
}

// Call sends payload to service on nodeID and returns its reply.
func (f *Fabric) Call(ctx context.Context, nodeID types.NodeID, service string, payload []byte) ([]byte, error) {
	node, ok := f.cfg.Membership.Node(nodeID)
	if !ok {
		return nil, atomixerr.Newf(atomixerr.Unavailable, "comm: unknown node %q", nodeID)
	}

	env := Envelope{Service: service, Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "comm: marshal envelope: %v", err)
	}

	resp, err := f.client.Send(ctx, node.Endpoint(), data)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.Unavailable, "comm: call %s on %s: %v", service, nodeID, err)
	}
	return resp, nil
}

// Send implements transport.Handler: it unwraps the envelope and
// dispatches to the registered handler for its service.
func (f *Fabric) Send(ctx context.Context, payload []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "comm: decode envelope: %v", err)
	}

	f.mu.RLock()
	fn, ok := f.handlers[env.Service]
	f.mu.RUnlock()
	if !ok {
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "comm: no handler registered for %q", env.Service)
	}

	return fn(ctx, env.Payload)
}
