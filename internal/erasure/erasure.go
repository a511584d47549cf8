// Package erasure wraps Reed-Solomon coding behind an add-shards-then-run
// interface.
//
// The encoder takes every original (data) shard and returns only recovery
// shards; the decoder rebuilds the originals from any sufficiently large set of
// recovery (and, optionally, original) shards. Leopard GF(2^16) is always used
// so the code is the same whatever the shard count, up to 65536 shards in
// total.
package erasure

import (
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// ShardAlignment is the required multiple for shard lengths.
const ShardAlignment = 64

// MaxTotalShards is the largest supported original+recovery shard count.
const MaxTotalShards = 65536

// Error types.
var (
	// ErrConfig is returned when shard counts or lengths are unsupported.
	ErrConfig = errors.New("unsupported erasure coding parameters")
	// ErrShard is returned when a shard does not match the configuration.
	ErrShard = errors.New("shard does not match erasure configuration")
	// ErrInsufficientData is returned when too few distinct shards are available to decode.
	ErrInsufficientData = errors.New("insufficient shards to reconstruct")
)

type params struct {
	original   int
	recovery   int
	shardBytes int
	rs         reedsolomon.Encoder
}

func newParams(original, recovery, shardBytes int) (params, error) {
	switch {
	case original < 1:
		return params{}, fmt.Errorf("%w: original shard count must be >= 1, got %d", ErrConfig, original)
	case recovery < 1:
		return params{}, fmt.Errorf("%w: recovery shard count must be >= 1, got %d", ErrConfig, recovery)
	case original+recovery > MaxTotalShards:
		return params{}, fmt.Errorf("%w: total shards (original+recovery) must be <= %d, got %d", ErrConfig, MaxTotalShards, original+recovery)
	case shardBytes < ShardAlignment || shardBytes%ShardAlignment != 0:
		return params{}, fmt.Errorf("%w: shard length must be a positive multiple of %d, got %d", ErrConfig, ShardAlignment, shardBytes)
	}

	rs, err := reedsolomon.New(original, recovery, reedsolomon.WithLeopardGF16(true))
	if err != nil {
		return params{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return params{original: original, recovery: recovery, shardBytes: shardBytes, rs: rs}, nil
}

// Encoder produces recovery shards from original shards.
type Encoder struct {
	params
	shards [][]byte
	added  int
}

// NewEncoder returns an encoder for original data shards of shardBytes each,
// producing recovery shards.
func NewEncoder(original, recovery, shardBytes int) (*Encoder, error) {
	p, err := newParams(original, recovery, shardBytes)
	if err != nil {
		return nil, err
	}
	return &Encoder{params: p, shards: make([][]byte, original+recovery)}, nil
}

// AddOriginalShard adds the next original shard in index order. The shard is
// referenced, not copied, until Encode returns.
func (e *Encoder) AddOriginalShard(shard []byte) error {
	if e.added >= e.original {
		return fmt.Errorf("%w: already have all %d original shards", ErrShard, e.original)
	}
	if len(shard) != e.shardBytes {
		return fmt.Errorf("%w: original shard %d has %d bytes, want %d", ErrShard, e.added, len(shard), e.shardBytes)
	}
	e.shards[e.added] = shard
	e.added++
	return nil
}

// Encode returns all recovery shards in index order.
func (e *Encoder) Encode() ([][]byte, error) {
	if e.added != e.original {
		return nil, fmt.Errorf("%w: got %d of %d original shards", ErrShard, e.added, e.original)
	}

	for i := e.original; i < len(e.shards); i++ {
		e.shards[i] = make([]byte, e.shardBytes)
	}
	if err := e.rs.Encode(e.shards); err != nil {
		return nil, fmt.Errorf("encode shards: %w", err)
	}

	// Verify encoding (sanity check)
	ok, err := e.rs.Verify(e.shards)
	if err != nil {
		return nil, fmt.Errorf("verify encoded shards: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("shard verification failed after encoding")
	}

	return e.shards[e.original:], nil
}

// Decoder reconstructs original shards.
type Decoder struct {
	params
	shards    [][]byte
	available int
}

// NewDecoder returns a decoder matching an Encoder built with the same parameters.
func NewDecoder(original, recovery, shardBytes int) (*Decoder, error) {
	p, err := newParams(original, recovery, shardBytes)
	if err != nil {
		return nil, err
	}
	return &Decoder{params: p, shards: make([][]byte, original+recovery)}, nil
}

// AddRecoveryShard adds the recovery shard at index.
func (d *Decoder) AddRecoveryShard(index int, shard []byte) error {
	if index < 0 || index >= d.recovery {
		return fmt.Errorf("%w: recovery index %d out of range [0, %d)", ErrShard, index, d.recovery)
	}
	return d.add(d.original+index, shard)
}

// AddOriginalShard adds the original shard at index.
func (d *Decoder) AddOriginalShard(index int, shard []byte) error {
	if index < 0 || index >= d.original {
		return fmt.Errorf("%w: original index %d out of range [0, %d)", ErrShard, index, d.original)
	}
	return d.add(index, shard)
}

func (d *Decoder) add(slot int, shard []byte) error {
	if len(shard) != d.shardBytes {
		return fmt.Errorf("%w: shard has %d bytes, want %d", ErrShard, len(shard), d.shardBytes)
	}
	if d.shards[slot] != nil {
		return fmt.Errorf("%w: shard slot %d added twice", ErrShard, slot)
	}
	d.shards[slot] = append([]byte(nil), shard...)
	d.available++
	return nil
}

// Decode returns the original shards in index order.
func (d *Decoder) Decode() ([][]byte, error) {
	if d.available < d.original {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientData, d.original, d.available)
	}
	if err := d.rs.ReconstructData(d.shards); err != nil {
		if errors.Is(err, reedsolomon.ErrTooFewShards) {
			return nil, fmt.Errorf("%w: %w", ErrInsufficientData, err)
		}
		return nil, fmt.Errorf("reconstruct shards: %w", err)
	}

	out := d.shards[:d.original]
	for i, shard := range out {
		if shard == nil {
			return nil, fmt.Errorf("data shard %d is nil after reconstruction", i)
		}
	}
	return out, nil
}
