/*
Package storage provides BoltDB-backed persistence for the small amount
of local, durable state a node keeps outside of Raft: the cluster
certificate authority and a generic key/value bucket for bootstrap
configuration that must survive a process restart.

Raft's own log and stable store are kept separately per partition (see
pkg/partition), each in its own BoltDB file under the partition's data
directory, with snapshots in a file snapshot store beside them; this
package is the one BoltStore shared by the rest of the node.

# Architecture

BoltStore wraps a single bbolt database file, <dataDir>/atomix.db, with
two buckets:

	ca:     single fixed-key entry holding the encrypted CA root cert + key
	config: arbitrary key/value pairs, used for anything else that must
	        outlive a restart

Every operation is its own bbolt transaction (db.View for reads, db.Update
for writes); there is no in-memory cache layer.

# Usage

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveCA(encryptedCAData); err != nil {
		return err
	}
	data, err := store.GetCA()
*/
package storage
