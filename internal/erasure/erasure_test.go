package erasure

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeShards(t *testing.T, n, size int) [][]byte {
	t.Helper()
	shards := make([][]byte, n)
	for i := range shards {
		shards[i] = make([]byte, size)
		_, err := rand.Read(shards[i])
		require.NoError(t, err)
	}
	return shards
}

func encode(t *testing.T, originals [][]byte, recovery int) [][]byte {
	t.Helper()
	enc, err := NewEncoder(len(originals), recovery, len(originals[0]))
	require.NoError(t, err)
	for _, s := range originals {
		require.NoError(t, enc.AddOriginalShard(s))
	}
	out, err := enc.Encode()
	require.NoError(t, err)
	require.Len(t, out, recovery)
	for i, s := range out {
		require.Len(t, s, len(originals[0]), "recovery shard %d", i)
	}
	return out
}

func TestRoundTrip_RecoveryOnly(t *testing.T) {
	tests := []struct {
		original, recovery, size int
	}{
		{1, 1, 64},
		{3, 5, 64},
		{10, 15, 128},
		{79, 124, 128},
		{300, 300, 64},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d+%d", tt.original, tt.recovery), func(t *testing.T) {
			originals := makeShards(t, tt.original, tt.size)
			recovery := encode(t, originals, tt.recovery)

			// Any `original` recovery shards must be enough.
			rng := mrand.New(mrand.NewSource(int64(tt.original)))
			pick := rng.Perm(tt.recovery)[:tt.original]

			dec, err := NewDecoder(tt.original, tt.recovery, tt.size)
			require.NoError(t, err)
			for _, idx := range pick {
				require.NoError(t, dec.AddRecoveryShard(idx, recovery[idx]))
			}
			got, err := dec.Decode()
			require.NoError(t, err)
			assert.Equal(t, originals, got)
		})
	}
}

func TestRoundTrip_MixedShards(t *testing.T) {
	originals := makeShards(t, 6, 64)
	recovery := encode(t, originals, 6)

	dec, err := NewDecoder(6, 6, 64)
	require.NoError(t, err)
	for _, i := range []int{0, 2, 4} {
		require.NoError(t, dec.AddOriginalShard(i, originals[i]))
	}
	for _, i := range []int{1, 3, 5} {
		require.NoError(t, dec.AddRecoveryShard(i, recovery[i]))
	}
	got, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, originals, got)
}

func TestDecode_Insufficient(t *testing.T) {
	originals := makeShards(t, 5, 64)
	recovery := encode(t, originals, 8)

	for have := 0; have < 5; have++ {
		t.Run(fmt.Sprintf("have_%d", have), func(t *testing.T) {
			dec, err := NewDecoder(5, 8, 64)
			require.NoError(t, err)
			for i := 0; i < have; i++ {
				require.NoError(t, dec.AddRecoveryShard(i, recovery[i]))
			}
			_, err = dec.Decode()
			assert.ErrorIs(t, err, ErrInsufficientData)
		})
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name                         string
		original, recovery, shardLen int
	}{
		{"no originals", 0, 3, 64},
		{"no recovery", 3, 0, 64},
		{"too many shards", 40000, 30000, 64},
		{"unaligned length", 3, 3, 100},
		{"zero length", 3, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncoder(tt.original, tt.recovery, tt.shardLen)
			assert.ErrorIs(t, err, ErrConfig)
			_, err = NewDecoder(tt.original, tt.recovery, tt.shardLen)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestEncoder_ShardErrors(t *testing.T) {
	enc, err := NewEncoder(2, 2, 64)
	require.NoError(t, err)

	assert.ErrorIs(t, enc.AddOriginalShard(make([]byte, 63)), ErrShard)
	require.NoError(t, enc.AddOriginalShard(make([]byte, 64)))

	_, err = enc.Encode()
	assert.ErrorIs(t, err, ErrShard, "encode before all originals are added")

	require.NoError(t, enc.AddOriginalShard(make([]byte, 64)))
	assert.ErrorIs(t, enc.AddOriginalShard(make([]byte, 64)), ErrShard)
}

func TestDecoder_ShardErrors(t *testing.T) {
	dec, err := NewDecoder(2, 3, 64)
	require.NoError(t, err)

	assert.ErrorIs(t, dec.AddRecoveryShard(3, make([]byte, 64)), ErrShard)
	assert.ErrorIs(t, dec.AddRecoveryShard(-1, make([]byte, 64)), ErrShard)
	assert.ErrorIs(t, dec.AddOriginalShard(2, make([]byte, 64)), ErrShard)
	assert.ErrorIs(t, dec.AddRecoveryShard(0, make([]byte, 128)), ErrShard)

	require.NoError(t, dec.AddRecoveryShard(1, make([]byte, 64)))
	assert.ErrorIs(t, dec.AddRecoveryShard(1, make([]byte, 64)), ErrShard)
}
