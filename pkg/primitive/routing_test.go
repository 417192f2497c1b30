package primitive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionOfIsStableForAName(t *testing.T) {
	first := partitionOf("leases", 7)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, partitionOf("leases", 7))
	}
}

func TestPartitionOfStaysInRange(t *testing.T) {
	for _, name := range []string{"a", "b", "c", "very-long-primitive-name-here"} {
		p := partitionOf(name, 4)
		require.GreaterOrEqual(t, int(p), 1)
		require.LessOrEqual(t, int(p), 4)
	}
}

func TestPartitionOfDistributesAcrossPartitions(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		name := string(rune('a' + i%26))
		seen[int(partitionOf(name, 8))] = true
	}
	require.Greater(t, len(seen), 1)
}
