// Package config loads the YAML file a node is started from into an
// atomix.Config.
package config

import (
	"fmt"
	"os"

	"github.com/coreward/atomix/pkg/atomix"
	"github.com/coreward/atomix/pkg/types"
	"gopkg.in/yaml.v3"
)

// NodeSpec is one cluster member as written in a cluster YAML file.
type NodeSpec struct {
	ID   string `yaml:"id"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PartitionSpec pins an explicit replica set for one partition. Leave the
// top-level Partitions empty to derive a topology from NumPartitions and
// PartitionSize instead.
type PartitionSpec struct {
	ID      int      `yaml:"id"`
	Members []string `yaml:"members"`
}

// ClusterFile is the on-disk shape of a cluster configuration file.
type ClusterFile struct {
	Cluster string `yaml:"cluster"`

	Local      string     `yaml:"local"`
	Bootstrap  []NodeSpec `yaml:"bootstrap"`
	RaftPort   int        `yaml:"raftPort"`
	HTTPPort   int        `yaml:"httpPort"`
	DataDir    string     `yaml:"dataDir"`
	MaxRetries int        `yaml:"maxRetries"`

	NumPartitions int             `yaml:"numPartitions"`
	PartitionSize int             `yaml:"partitionSize"`
	Partitions    []PartitionSpec `yaml:"partitions,omitempty"`

	Primitives []string `yaml:"primitives,omitempty"`
}

// Load reads and parses a cluster configuration file at path.
func Load(path string) (ClusterFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClusterFile{}, fmt.Errorf("read config: %w", err)
	}
	var f ClusterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return ClusterFile{}, fmt.Errorf("parse config: %w", err)
	}
	return f, nil
}

// Build converts a parsed ClusterFile into an atomix.Config. It does not
// validate cross-field invariants (e.g. local must be a bootstrap member);
// atomix.Builder.Build does that.
func (f ClusterFile) Build() (atomix.Config, error) {
	bootstrap := make([]types.Node, 0, len(f.Bootstrap))
	var local types.Node
	for _, n := range f.Bootstrap {
		node := types.Node{ID: types.NodeID(n.ID), Host: n.Host, Port: n.Port, Role: types.NodeRoleMember}
		bootstrap = append(bootstrap, node)
		if n.ID == f.Local {
			local = node
		}
	}
	if local.ID == "" {
		return atomix.Config{}, fmt.Errorf("config: local node %q not found in bootstrap list", f.Local)
	}

	partitions := make([]types.PartitionMetadata, 0, len(f.Partitions))
	for _, p := range f.Partitions {
		members := make([]types.NodeID, 0, len(p.Members))
		for _, m := range p.Members {
			members = append(members, types.NodeID(m))
		}
		partitions = append(partitions, types.PartitionMetadata{ID: types.PartitionID(p.ID), Members: members})
	}

	primitiveTypes := make([]types.PrimitiveType, 0, len(f.Primitives))
	for _, p := range f.Primitives {
		primitiveTypes = append(primitiveTypes, types.PrimitiveType(p))
	}

	return atomix.Config{
		ClusterName:    f.Cluster,
		LocalNode:      local,
		BootstrapNodes: bootstrap,
		RaftPort:       f.RaftPort,
		NumPartitions:  f.NumPartitions,
		PartitionSize:  f.PartitionSize,
		Partitions:     partitions,
		PrimitiveTypes: primitiveTypes,
		HTTPPort:       f.HTTPPort,
		DataDir:        f.DataDir,
		MaxRetries:     f.MaxRetries,
	}, nil
}
