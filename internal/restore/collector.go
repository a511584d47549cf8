// Package restore rebuilds a document from scanned chunks.
//
// Chunks may arrive in any order, duplicated, or with some missing. The
// Collector validates each one as it arrives and keeps at most one copy of
// every shard; Reconstruct then erasure-decodes and verifies the result
// against the document hash.
package restore

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tunnelmesh/paperback/internal/header"
)

// Stats summarizes the chunks seen by a Collector.
type Stats struct {
	// Chunks is the number of chunks added, including duplicates.
	Chunks int
	// MetaChunks is the number of Meta chunks added.
	MetaChunks int
	// Duplicates is the number of identical payload chunks dropped.
	Duplicates int
	// Shards is the number of distinct recovery shards collected.
	Shards int
	// RecoveryCount and OriginalCount come from the Meta chunk, when seen.
	RecoveryCount int
	OriginalCount int
	// Bytes is the size of the restored document.
	Bytes int
}

// Collector gathers chunks of a single document. It is not safe for
// concurrent use.
type Collector struct {
	meta       *header.Meta
	identifier *header.Identifier
	payloads   map[uint16][]byte
	stats      Stats
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{payloads: make(map[uint16][]byte)}
}

// Add parses chunk and records it. Malformed headers return an error
// wrapping header.ErrFormat; chunks that contradict earlier ones return
// ErrInconsistentMetadata or ErrDuplicateConflict.
func (c *Collector) Add(chunk []byte) error {
	h, rest, err := header.Parse(chunk)
	if err != nil {
		return err
	}
	c.stats.Chunks++

	switch h := h.(type) {
	case *header.Meta:
		c.stats.MetaChunks++
		return c.addMeta(h)
	case *header.Payload:
		return c.addPayload(h, rest)
	default:
		return fmt.Errorf("%w: unexpected header type %T", header.ErrFormat, h)
	}
}

func (c *Collector) addMeta(m *header.Meta) error {
	if c.meta != nil {
		if *m != *c.meta {
			return fmt.Errorf("%w: meta chunks differ (document %s and %s)", ErrInconsistentMetadata, c.meta.Identifier, m.Identifier)
		}
		return nil
	}

	if !m.Hash.HasIdentifier(m.Identifier) {
		return fmt.Errorf("%w: meta identifier %s is not a prefix of its hash", ErrInconsistentMetadata, m.Identifier)
	}
	// A payload seen earlier fixed the identifier; the meta must belong to the same document.
	if c.identifier != nil && !m.Hash.HasIdentifier(*c.identifier) {
		return fmt.Errorf("%w: meta for document %s does not match payload identifier %s", ErrInconsistentMetadata, m.Identifier, *c.identifier)
	}
	if m.OriginalCount == 0 || m.RecoveryCount == 0 || m.ShardBytes == 0 {
		return fmt.Errorf("%w: meta describes %d data and %d recovery shards of %d bytes",
			ErrInconsistentMetadata, m.OriginalCount, m.RecoveryCount, m.ShardBytes)
	}
	for index, shard := range c.payloads {
		if err := checkShard(m, index, shard); err != nil {
			return err
		}
	}

	c.meta = m
	id := m.Identifier
	c.identifier = &id
	c.stats.OriginalCount = int(m.OriginalCount)
	c.stats.RecoveryCount = int(m.RecoveryCount)
	log.Debug().
		Str("identifier", m.Identifier.String()).
		Uint16("original", m.OriginalCount).
		Uint16("recovery", m.RecoveryCount).
		Uint64("shard_bytes", m.ShardBytes).
		Msg("metadata found")
	return nil
}

func (c *Collector) addPayload(p *header.Payload, shard []byte) error {
	if c.identifier == nil {
		id := p.Identifier
		c.identifier = &id
	} else if p.Identifier != *c.identifier {
		return fmt.Errorf("%w: payload %d belongs to document %s, expected %s",
			ErrInconsistentMetadata, p.ShardIndex, p.Identifier, *c.identifier)
	}
	if c.meta != nil {
		if err := checkShard(c.meta, p.ShardIndex, shard); err != nil {
			return err
		}
	}

	if prev, ok := c.payloads[p.ShardIndex]; ok {
		if !bytes.Equal(prev, shard) {
			return fmt.Errorf("%w: index %d", ErrDuplicateConflict, p.ShardIndex)
		}
		c.stats.Duplicates++
		return nil
	}
	c.payloads[p.ShardIndex] = append([]byte(nil), shard...)
	c.stats.Shards++
	return nil
}

func checkShard(m *header.Meta, index uint16, shard []byte) error {
	if index >= m.RecoveryCount {
		return fmt.Errorf("%w: payload index %d out of range for %d recovery shards", ErrInconsistentMetadata, index, m.RecoveryCount)
	}
	if uint64(len(shard)) != m.ShardBytes {
		return fmt.Errorf("%w: payload %d has %d bytes, meta says %d", ErrInconsistentMetadata, index, len(shard), m.ShardBytes)
	}
	return nil
}

// Meta returns the collected Meta header, or nil if none was added.
func (c *Collector) Meta() *header.Meta {
	return c.meta
}

// Stats returns counts of the chunks added so far.
func (c *Collector) Stats() Stats {
	return c.stats
}
