package collab

import "fmt"

// ForwardErrorCorrector recovers one missing shard in a group from the
// others via XOR parity, generalized from the shard/parity construction in
// original_source/tests/simple_fec_test.cpp (xor_vectors, create_shards).
// It tolerates exactly one loss per group, matching the source's test
// coverage; this repository's PMTUD core never calls it — it exists as a
// domain-stack collaborator a transport embedding the core would reach for
// when a probe or its response is itself subject to loss beyond what
// blackhole detection already tolerates.
type ForwardErrorCorrector struct {
	shardSize int
}

// NewForwardErrorCorrector builds a corrector for shards of shardSize
// bytes; all shards in a group, including the parity shard, must share
// this length.
func NewForwardErrorCorrector(shardSize int) *ForwardErrorCorrector {
	return &ForwardErrorCorrector{shardSize: shardSize}
}

// EncodeParity produces the XOR parity shard for a group of data shards and
// returns it alone; the data shards are not copied into the result.
// Mirrors create_shards' parity computation.
func (f *ForwardErrorCorrector) EncodeParity(dataShards [][]byte) ([]byte, error) {
	parity := make([]byte, f.shardSize)
	for i, shard := range dataShards {
		if len(shard) != f.shardSize {
			return nil, fmt.Errorf("collab: shard %d has length %d, want %d", i, len(shard), f.shardSize)
		}
		xorInto(parity, shard)
	}
	return parity, nil
}

// Recover reconstructs a single missing shard, identified by its index
// being nil in shards, from the remaining shards and the parity shard.
// Mirrors xor_vectors applied across every present shard plus parity.
func (f *ForwardErrorCorrector) Recover(shards [][]byte, parity []byte) ([]byte, error) {
	if len(parity) != f.shardSize {
		return nil, fmt.Errorf("collab: parity shard has length %d, want %d", len(parity), f.shardSize)
	}
	missing := -1
	recovered := make([]byte, f.shardSize)
	copy(recovered, parity)
	for i, shard := range shards {
		if shard == nil {
			if missing >= 0 {
				return nil, fmt.Errorf("collab: cannot recover, more than one shard missing (at %d and %d)", missing, i)
			}
			missing = i
			continue
		}
		if len(shard) != f.shardSize {
			return nil, fmt.Errorf("collab: shard %d has length %d, want %d", i, len(shard), f.shardSize)
		}
		xorInto(recovered, shard)
	}
	if missing < 0 {
		return nil, fmt.Errorf("collab: no shard missing, nothing to recover")
	}
	return recovered, nil
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
