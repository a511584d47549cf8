// Package create turns file content into framed, erasure-coded chunks ready
// to be printed as QR symbols.
package create

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tunnelmesh/paperback/internal/erasure"
	"github.com/tunnelmesh/paperback/internal/header"
	"github.com/tunnelmesh/paperback/internal/layout"
)

// ErrPlanMismatch is returned when data does not match the plan it is encoded with.
var ErrPlanMismatch = errors.New("data does not match layout plan")

// Options configures Encode.
type Options struct {
	// BuildTag is hashed after the content and must match the tag used by Prepare.
	BuildTag string
}

// Document is the chunked form of one file.
type Document struct {
	Plan *layout.Plan
	// Meta is the encoded Meta chunk; every printed copy is identical.
	Meta []byte
	// Payloads holds one chunk per recovery shard, index i at position i.
	Payloads [][]byte
}

// Prepare hashes data with buildTag and computes its layout.
func Prepare(data []byte, cfg layout.PageConfig, buildTag string) (*layout.Plan, error) {
	hash := header.HashDocument(data, buildTag)
	plan, err := layout.Compute(cfg, len(data), hash)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("identifier", plan.Identifier.String()).
		Int("version", int(plan.Version)).
		Str("level", plan.Level.String()).
		Int("shard_bytes", plan.ShardBytes).
		Int("data_shards", plan.DataShards).
		Int("recovery_shards", plan.RecoveryShards).
		Msg("layout computed")
	return plan, nil
}

// Encode pads, splits and erasure-codes data according to plan and frames
// every recovery shard with a Payload header.
func Encode(data []byte, plan *layout.Plan, opts Options) (*Document, error) {
	if got := header.HashDocument(data, opts.BuildTag); got != plan.Hash {
		return nil, fmt.Errorf("%w: content hash %s, plan hash %s", ErrPlanMismatch, got.Identifier(), plan.Identifier)
	}
	if len(data)+layout.TrailerLength > plan.PaddedSize() {
		return nil, fmt.Errorf("%w: %d bytes do not fit %d shards of %d bytes",
			ErrPlanMismatch, len(data), plan.DataShards, plan.ShardBytes)
	}

	padded := Pad(data, plan.PaddedSize())

	enc, err := erasure.NewEncoder(plan.DataShards, plan.RecoveryShards, plan.ShardBytes)
	if err != nil {
		return nil, err
	}
	for i := 0; i < plan.DataShards; i++ {
		if err := enc.AddOriginalShard(padded[i*plan.ShardBytes : (i+1)*plan.ShardBytes]); err != nil {
			return nil, err
		}
	}
	recovery, err := enc.Encode()
	if err != nil {
		return nil, err
	}

	doc := &Document{Plan: plan, Payloads: make([][]byte, len(recovery))}
	for i, shard := range recovery {
		chunk := make([]byte, 0, header.PayloadLength+len(shard))
		chunk, err = header.Append(chunk, &header.Payload{ShardIndex: uint16(i), Identifier: plan.Identifier})
		if err != nil {
			return nil, fmt.Errorf("frame shard %d: %w", i, err)
		}
		doc.Payloads[i] = append(chunk, shard...)
	}

	doc.Meta, err = header.Marshal(plan.Meta())
	if err != nil {
		return nil, fmt.Errorf("frame meta: %w", err)
	}

	log.Debug().
		Str("identifier", plan.Identifier.String()).
		Int("chunks", len(doc.Payloads)).
		Msg("document encoded")
	return doc, nil
}

// Pad returns data followed by zero bytes and an 8-byte little-endian length
// trailer ending at size.
func Pad(data []byte, size int) []byte {
	padded := make([]byte, size)
	copy(padded, data)
	binary.LittleEndian.PutUint64(padded[size-layout.TrailerLength:], uint64(len(data)))
	return padded
}
