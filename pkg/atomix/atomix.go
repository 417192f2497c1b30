package atomix

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/cluster"
	"github.com/coreward/atomix/pkg/comm"
	"github.com/coreward/atomix/pkg/events"
	"github.com/coreward/atomix/pkg/health"
	"github.com/coreward/atomix/pkg/log"
	"github.com/coreward/atomix/pkg/metrics"
	"github.com/coreward/atomix/pkg/partition"
	"github.com/coreward/atomix/pkg/primitive"
	"github.com/coreward/atomix/pkg/proxy"
	"github.com/coreward/atomix/pkg/security"
	"github.com/coreward/atomix/pkg/session"
	"github.com/coreward/atomix/pkg/storage"
	"github.com/coreward/atomix/pkg/topology"
	"github.com/coreward/atomix/pkg/types"
)

// Runtime is the assembled cluster runtime: every component wired
// together, not yet started. Open brings it up; Close tears it down.
type Runtime struct {
	cfg      Config
	registry *primitive.Registry

	open atomic.Bool

	mu         sync.Mutex
	store      *storage.BoltStore
	ca         *security.CertAuthority
	membership *cluster.Membership
	prober     *health.Prober
	fabric     *comm.Fabric
	events     *events.Broker
	partitions *partition.Service
	sessions   *session.Manager
	primitives *primitive.Service
	rest       *restServer
}

func newRuntime(cfg Config, registry *primitive.Registry) *Runtime {
	return &Runtime{cfg: cfg, registry: registry}
}

// Open brings up every component in order: certificate authority,
// membership, communication fabric, event fabric, partition service,
// session manager, primitive service, and finally the optional REST
// surface. If any step fails, everything already opened is torn down in
// reverse order before the error surfaces. Open is idempotent.
func (r *Runtime) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open.Load() {
		return nil
	}

	l := log.WithComponent("atomix").With().Str("cluster", r.cfg.ClusterName).Logger()
	l.Info().Msg("opening cluster runtime")

	var teardown []func()
	fail := func(step string, err error) error {
		for i := len(teardown) - 1; i >= 0; i-- {
			teardown[i]()
		}
		return atomixerr.Newf(atomixerr.ConfigurationInvalid, "open %s: %v", step, err)
	}

	timer := metrics.NewTimer()

	store, err := storage.NewBoltStore(r.cfg.DataDir)
	if err != nil {
		return fail("storage", err)
	}
	teardown = append(teardown, func() { _ = store.Close() })

	if err := security.SetClusterEncryptionKey(security.DeriveKeyFromClusterID(r.cfg.ClusterName)); err != nil {
		return fail("certificate authority", err)
	}

	ca := security.NewCertAuthority(store)
	if err := ca.LoadFromStore(); err != nil {
		if err := ca.Initialize(); err != nil {
			return fail("certificate authority", err)
		}
		if err := ca.SaveToStore(); err != nil {
			return fail("certificate authority", err)
		}
	}

	topo, err := r.deriveTopology()
	if err != nil {
		return fail("topology", err)
	}

	cert, err := r.nodeCertificate(ca, topo)
	if err != nil {
		return fail("certificate authority", err)
	}
	timer.ObserveDurationVec(metrics.LifecycleStepDuration, "transport", "open")

	timer = metrics.NewTimer()
	membership := cluster.New(types.ClusterMetadata{LocalNode: r.cfg.LocalNode, BootstrapNodes: r.cfg.BootstrapNodes})
	if err := membership.Open(); err != nil {
		return fail("membership", err)
	}
	teardown = append(teardown, func() { _ = membership.Close() })
	timer.ObserveDurationVec(metrics.LifecycleStepDuration, "membership", "open")

	prober := health.NewProber(membership, r.cfg.ProbeInterval, r.cfg.ProbeTimeout)
	prober.Start()
	teardown = append(teardown, prober.Stop)

	timer = metrics.NewTimer()
	fabric := comm.New(comm.Config{
		Membership: membership,
		Cert:       cert,
		RootCA:     ca.GetRootCACert(),
		ListenAddr: net.JoinHostPort(localHost(r.cfg.LocalNode), fmt.Sprintf("%d", r.cfg.LocalNode.Port)),
	})
	if err := fabric.Open(); err != nil {
		return fail("communication fabric", err)
	}
	teardown = append(teardown, func() { _ = fabric.Close() })
	timer.ObserveDurationVec(metrics.LifecycleStepDuration, "communication", "open")

	timer = metrics.NewTimer()
	eventBroker := events.New(fabric, membership)
	timer.ObserveDurationVec(metrics.LifecycleStepDuration, "events", "open")

	raftLocal := types.Node{ID: r.cfg.LocalNode.ID, Host: r.cfg.LocalNode.Host, Port: r.cfg.RaftPort, Role: r.cfg.LocalNode.Role}

	timer = metrics.NewTimer()
	partitions := partition.New(partition.Config{
		Local:    raftLocal,
		Topology: topo,
		DataDir:  r.cfg.DataDir,
		NewMachine: func(types.PartitionID) partition.StateMachine {
			return primitive.NewMachine(r.registry)
		},
	})
	if err := partitions.Open(); err != nil {
		return fail("partition service", err)
	}
	teardown = append(teardown, func() { _ = partitions.Close() })
	timer.ObserveDurationVec(metrics.LifecycleStepDuration, "partition", "open")

	registerPartitionServices(fabric, partitions)
	registerNamesService(fabric, partitions)

	sessions := session.NewManager(session.Config{
		NewClient: func(pid types.PartitionID, hint types.NodeID) (session.PartitionClient, error) {
			// Only a local Handle that is also the current Raft leader can
			// serve Apply/Ping directly; a local non-leader member must
			// still go out over the fabric like any other caller; its own
			// LeaderHint will answer the remoteClient's request and that
			// response's Hint field will land the next call on the real
			// leader (see remote.go's send/recordHint and rest.go's
			// LeaderHint-driven readiness check for the same pattern).
			if h, ok := partitions.Partition(pid); ok && h.IsMember() && h.IsLeader() {
				return h, nil
			}
			pm, ok := topo.ByID(pid)
			if !ok {
				return nil, atomixerr.Newf(atomixerr.ConfigurationInvalid, "unknown partition %d", pid)
			}
			return newRemoteClientWithHint(fabric, pid, pm.Members, hint), nil
		},
	})
	teardown = append(teardown, func() { _ = sessions.Close() })

	primitives := primitive.New(primitive.Config{
		Topology:   topo,
		Partitions: partitions,
		Sessions:   sessions,
		Registry:   r.registry,
		ClientID:   string(r.cfg.LocalNode.ID),
		MaxRetries: r.cfg.MaxRetries,
		Remote:     newNamesFanout(fabric, topo),
	})

	var rest *restServer
	if r.cfg.HTTPPort != 0 {
		rest = newRESTServer(net.JoinHostPort(localHost(r.cfg.LocalNode), fmt.Sprintf("%d", r.cfg.HTTPPort)), partitions)
		go func() {
			if err := rest.serve(); err != nil {
				l.Error().Err(err).Msg("rest server stopped")
			}
		}()
	}

	r.store = store
	r.ca = ca
	r.membership = membership
	r.prober = prober
	r.fabric = fabric
	r.events = eventBroker
	r.partitions = partitions
	r.sessions = sessions
	r.primitives = primitives
	r.rest = rest

	r.open.Store(true)
	l.Info().Msg("cluster runtime open")
	return nil
}

// Close tears down every component in reverse open order. Close is
// idempotent and safe to call on a Runtime that never finished opening.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open.CompareAndSwap(true, false) {
		return nil
	}

	if r.rest != nil {
		r.rest.stop()
	}
	if r.sessions != nil {
		_ = r.sessions.Close()
	}
	if r.partitions != nil {
		_ = r.partitions.Close()
	}
	if r.fabric != nil {
		_ = r.fabric.Close()
	}
	if r.prober != nil {
		r.prober.Stop()
	}
	if r.membership != nil {
		_ = r.membership.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
	return nil
}

// nodeCertificate returns a cached node certificate from disk when one
// exists and isn't close to expiry, otherwise issues and caches a fresh
// one. Caching avoids minting a new certificate (and CA file rewrite) on
// every restart of a long-lived node.
func (r *Runtime) nodeCertificate(ca *security.CertAuthority, topo types.PartitionTopology) (*tls.Certificate, error) {
	certDir, err := security.GetCertDir(r.cfg.ClusterName, string(r.cfg.LocalNode.ID))
	if err != nil {
		return r.issueCertificate(ca, topo)
	}

	if security.CertExists(certDir) {
		if cached, err := security.LoadCertFromFile(certDir); err == nil && !security.CertNeedsRotation(cached.Leaf) {
			if rootCert, err := x509.ParseCertificate(ca.GetRootCACert()); err == nil {
				if err := security.ValidateCertChain(cached.Leaf, rootCert); err == nil {
					if samePartitions(cached.Leaf, topo, r.cfg.LocalNode.ID) {
						return cached, nil
					}
				}
			}
		}
	}

	cert, err := r.issueCertificate(ca, topo)
	if err != nil {
		return nil, err
	}
	if err := security.SaveCertToFile(cert, certDir); err != nil {
		return nil, err
	}
	if err := security.SaveCACertToFile(ca.GetRootCACert(), certDir); err != nil {
		return nil, err
	}
	return cert, nil
}

// samePartitions reports whether a cached certificate's partition
// assignment extension still matches what topo currently assigns the
// node: the cert must be reissued whenever partition reassignment
// changes which replica sets the node belongs to, not just on rotation
// or expiry.
func samePartitions(cert *x509.Certificate, topo types.PartitionTopology, nodeID types.NodeID) bool {
	cached, err := security.PartitionAssignments(cert)
	if err != nil {
		return false
	}
	current := localPartitionIDs(topo, nodeID)
	if len(cached) != len(current) {
		return false
	}
	for i := range cached {
		if cached[i] != current[i] {
			return false
		}
	}
	return true
}

func localPartitionIDs(topo types.PartitionTopology, nodeID types.NodeID) []int {
	ids := make([]int, 0, len(topo.Partitions))
	for _, pm := range topo.Partitions {
		for _, m := range pm.Members {
			if m == nodeID {
				ids = append(ids, int(pm.ID))
				break
			}
		}
	}
	sort.Ints(ids)
	return ids
}

func (r *Runtime) issueCertificate(ca *security.CertAuthority, topo types.PartitionTopology) (*tls.Certificate, error) {
	partitionIDs := localPartitionIDs(topo, r.cfg.LocalNode.ID)
	return ca.IssueNodeCertificate(string(r.cfg.LocalNode.ID), partitionIDs, nil, localIPs(r.cfg.LocalNode))
}

func (r *Runtime) deriveTopology() (types.PartitionTopology, error) {
	return topology.Build(r.cfg.BootstrapNodes, topology.Options{
		NumPartitions: r.cfg.NumPartitions,
		PartitionSize: r.cfg.PartitionSize,
		Explicit:      r.cfg.Partitions,
	})
}

// Build resolves name to a proxy for a primitive of type t, routed and
// replicated through the partition service. Build fails with NotOpen
// before Open has completed.
func (r *Runtime) Build(name string, t types.PrimitiveType) (proxy.Proxy, error) {
	if !r.open.Load() {
		return nil, atomixerr.New(atomixerr.NotOpen, nil)
	}
	return r.primitives.Build(name, t)
}

// List returns the names of every primitive of type t currently held
// anywhere in the cluster, fanning out to every partition regardless of
// which node hosts it. List fails with NotOpen before Open has
// completed.
func (r *Runtime) List(ctx context.Context, t types.PrimitiveType) ([]string, error) {
	if !r.open.Load() {
		return nil, atomixerr.New(atomixerr.NotOpen, nil)
	}
	return r.primitives.List(ctx, t), nil
}

// Publish broadcasts data on topic to every subscriber cluster-wide.
func (r *Runtime) Publish(topic string, data interface{}) error {
	if !r.open.Load() {
		return atomixerr.New(atomixerr.NotOpen, nil)
	}
	return r.events.Publish(topic, data)
}

// Subscribe returns a channel of events published on topic.
func (r *Runtime) Subscribe(topic string) (events.Subscriber, error) {
	if !r.open.Load() {
		return nil, atomixerr.New(atomixerr.NotOpen, nil)
	}
	return r.events.Subscribe(topic), nil
}

// Unsubscribe releases sub from topic.
func (r *Runtime) Unsubscribe(topic string, sub events.Subscriber) {
	if r.events != nil {
		r.events.Unsubscribe(topic, sub)
	}
}

// LocalNode returns the configured local node identity.
func (r *Runtime) LocalNode() types.Node { return r.cfg.LocalNode }

func localIPs(n types.Node) []net.IP {
	if ip := net.ParseIP(n.Host); ip != nil {
		return []net.IP{ip, net.ParseIP("127.0.0.1")}
	}
	return []net.IP{net.ParseIP("127.0.0.1")}
}
