package restore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/tunnelmesh/paperback/internal/erasure"
	"github.com/tunnelmesh/paperback/internal/header"
	"github.com/tunnelmesh/paperback/internal/layout"
)

// Reconstruct collects chunks and restores the document they encode.
func Reconstruct(chunks [][]byte, buildTag string) ([]byte, *Stats, error) {
	c := NewCollector()
	for i, chunk := range chunks {
		if err := c.Add(chunk); err != nil {
			return nil, nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return c.Reconstruct(buildTag)
}

// Reconstruct erasure-decodes the collected shards, strips the padding and
// verifies the result against the document hash.
func (c *Collector) Reconstruct(buildTag string) ([]byte, *Stats, error) {
	m := c.meta
	if m == nil {
		return nil, nil, ErrMissingMetadata
	}
	stats := c.stats

	dec, err := erasure.NewDecoder(int(m.OriginalCount), int(m.RecoveryCount), int(m.ShardBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInconsistentMetadata, err)
	}

	indices := make([]uint16, 0, len(c.payloads))
	for index := range c.payloads {
		indices = append(indices, index)
	}
	slices.Sort(indices)
	for _, index := range indices {
		if err := dec.AddRecoveryShard(int(index), c.payloads[index]); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInconsistentMetadata, err)
		}
	}

	shards, err := dec.Decode()
	if err != nil {
		if errors.Is(err, erasure.ErrInsufficientData) {
			return nil, nil, fmt.Errorf("got %d of %d needed shards: %w", len(indices), m.OriginalCount, err)
		}
		return nil, nil, err
	}

	padded := make([]byte, 0, len(shards)*int(m.ShardBytes))
	for _, shard := range shards {
		padded = append(padded, shard...)
	}

	data, err := unpad(padded)
	if err != nil {
		return nil, nil, err
	}
	if got := header.HashDocument(data, buildTag); got != m.Hash {
		return nil, nil, fmt.Errorf("%w: document %s", ErrChecksumMismatch, m.Identifier)
	}

	stats.Bytes = len(data)
	log.Debug().
		Str("identifier", m.Identifier.String()).
		Int("bytes", len(data)).
		Int("shards", stats.Shards).
		Msg("document restored")
	return data, &stats, nil
}

// unpad reads the length trailer and returns the content before the padding.
// The padding must be all zero.
func unpad(padded []byte) ([]byte, error) {
	if len(padded) < layout.TrailerLength {
		return nil, fmt.Errorf("%w: %d bytes cannot hold the length trailer", ErrChecksumMismatch, len(padded))
	}
	end := len(padded) - layout.TrailerLength
	size := binary.LittleEndian.Uint64(padded[end:])
	if size > uint64(end) {
		return nil, fmt.Errorf("%w: trailer length %d exceeds %d available bytes", ErrChecksumMismatch, size, end)
	}
	for _, b := range padded[size:end] {
		if b != 0 {
			return nil, fmt.Errorf("%w: non-zero padding", ErrChecksumMismatch)
		}
	}
	return padded[:size], nil
}

// WriteFile writes data to path. An existing file is an error wrapping
// ErrOverwriteRefused unless force is set.
func WriteFile(path string, data []byte, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrOverwriteRefused, path)
		}
		return fmt.Errorf("create output file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}
