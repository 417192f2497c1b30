/*
Package security provides the cryptographic services the runtime uses to
authenticate cluster members to each other: a single cluster Certificate
Authority (CA) for mutual TLS, certificate lifecycle helpers, and an
AES-256-GCM envelope used to protect the CA's private key at rest.

# Certificate Authority

CertAuthority holds one self-signed root certificate (RSA 4096, 10-year
validity) generated once by whichever node bootstraps the cluster, then
replicated to every other member via pkg/storage's CA bucket (itself
Raft-independent — the CA must exist before any partition can open a
mutually authenticated Raft transport). Every cluster member and client
gets a short-lived (90-day) leaf certificate signed by that root:

	Root CA (CN=Atomix Root CA, O=Atomix Cluster)
	├── member leaf: CN=node-{nodeID}, ServerAuth+ClientAuth, SANs = bind address,
	│     partition assignment extension (OID 1.3.6.1.4.1.64512.1.1)
	└── client leaf: CN=cli-{clientID}, ClientAuth only

A member leaf carries no role field: every node certificate instead embeds a
non-critical X.509 extension listing the ids of the partitions the node is
currently a Raft replica for (partitionAssignmentExtension / PartitionAssignments).
nodeCertificate recomputes this set against the live topology on every open and
reissues the certificate whenever it has drifted, so a peer can read a
connecting node's partition membership straight off its certificate instead of
trusting a caller-supplied label.

# Root key protection

The root private key is never stored in the clear. SaveToStore encrypts it
with AES-256-GCM under a cluster-wide key derived from the cluster id
(DeriveKeyFromClusterID) and installed once via SetClusterEncryptionKey;
LoadFromStore reverses this on every node that already has the encrypted
blob. Encrypt/Decrypt are exported independently of the CA because the same
envelope is reused wherever the runtime needs to protect a small blob at
rest without its own key-management story.

# Usage

	store, _ := storage.NewBoltStore(dataDir)
	key := security.DeriveKeyFromClusterID(clusterID)
	_ = security.SetClusterEncryptionKey(key)

	ca := security.NewCertAuthority(store)
	if err := ca.LoadFromStore(); err != nil {
		_ = ca.Initialize()
		_ = ca.SaveToStore()
	}

	cert, err := ca.IssueNodeCertificate(nodeID, []int{0, 2}, []string{"localhost"}, nil)

The resulting *tls.Certificate is handed to pkg/comm and pkg/transport to
configure mTLS listeners and dialers; ca.GetRootCACert() supplies the trust
root both sides verify peers against.

Certificates approaching their rotation threshold (30 days from expiry, via
CertNeedsRotation) should be reissued and swapped into the live listener;
this package provides the primitives but leaves the rotation schedule to
the caller.
*/
package security
