// Package header implements the binary chunk header written at the start of
// every printed symbol.
//
// Two variants exist. A Payload header precedes one erasure-coded shard and
// carries the shard index plus the document identifier. A Meta header carries
// everything a reader needs to configure the erasure decoder and verify the
// restored file. Both start with a little-endian uint16 index; the Meta
// header always uses MetaIndex so readers can tell them apart.
package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MetaIndex is the index value reserved for Meta headers.
const MetaIndex uint16 = 0xFFFF

// Encoded header lengths in bytes.
const (
	PayloadLength = 2 + IdentifierLength
	MetaLength    = 2 + IdentifierLength + HashLength + 2 + 2 + 8
)

// Header is either a *Meta or a *Payload.
type Header interface {
	// Index returns the encoded leading index; MetaIndex for Meta headers.
	Index() uint16
	// Len returns the encoded length in bytes.
	Len() int

	appendTo(b []byte) ([]byte, error)
}

// Meta describes a whole document. Every Meta chunk of one document is
// byte-identical.
type Meta struct {
	Identifier Identifier
	Hash       Hash
	// OriginalCount is the number of data shards. Data shards are never printed.
	OriginalCount uint16
	// RecoveryCount is the number of recovery shards, all of which are printed.
	RecoveryCount uint16
	// ShardBytes is the length of every shard, excluding the header.
	ShardBytes uint64
}

// Index implements Header.
func (m *Meta) Index() uint16 { return MetaIndex }

// Len implements Header.
func (m *Meta) Len() int { return MetaLength }

func (m *Meta) appendTo(b []byte) ([]byte, error) {
	b = binary.LittleEndian.AppendUint16(b, MetaIndex)
	b = append(b, m.Identifier[:]...)
	b = append(b, m.Hash[:]...)
	b = binary.LittleEndian.AppendUint16(b, m.OriginalCount)
	b = binary.LittleEndian.AppendUint16(b, m.RecoveryCount)
	b = binary.LittleEndian.AppendUint64(b, m.ShardBytes)
	return b, nil
}

// Payload precedes the bytes of one recovery shard.
type Payload struct {
	// ShardIndex is in [0, RecoveryCount) and never MetaIndex.
	ShardIndex uint16
	Identifier Identifier
}

// Index implements Header.
func (p *Payload) Index() uint16 { return p.ShardIndex }

// Len implements Header.
func (p *Payload) Len() int { return PayloadLength }

func (p *Payload) appendTo(b []byte) ([]byte, error) {
	if p.ShardIndex == MetaIndex {
		return nil, fmt.Errorf("%w: payload index %#x is reserved", ErrFormat, MetaIndex)
	}
	b = binary.LittleEndian.AppendUint16(b, p.ShardIndex)
	b = append(b, p.Identifier[:]...)
	return b, nil
}

// Append appends the encoding of h to b.
func Append(b []byte, h Header) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil header", ErrFormat)
	}
	return h.appendTo(b)
}

// Marshal returns the encoding of h.
func Marshal(h Header) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil header", ErrFormat)
	}
	return Append(make([]byte, 0, h.Len()), h)
}

// Write writes the encoding of h to w.
func Write(w io.Writer, h Header) error {
	b, err := Marshal(h)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Read reads one header from r. For a Payload header the shard bytes that
// follow are left unread in r.
func Read(r io.Reader) (Header, error) {
	var idx [2]byte
	if err := readFull(r, idx[:]); err != nil {
		return nil, err
	}
	index := binary.LittleEndian.Uint16(idx[:])

	if index != MetaIndex {
		p := &Payload{ShardIndex: index}
		if err := readFull(r, p.Identifier[:]); err != nil {
			return nil, err
		}
		return p, nil
	}

	var rest [MetaLength - 2]byte
	if err := readFull(r, rest[:]); err != nil {
		return nil, err
	}
	m := &Meta{}
	off := copy(m.Identifier[:], rest[:])
	off += copy(m.Hash[:], rest[off:])
	m.OriginalCount = binary.LittleEndian.Uint16(rest[off:])
	m.RecoveryCount = binary.LittleEndian.Uint16(rest[off+2:])
	m.ShardBytes = binary.LittleEndian.Uint64(rest[off+4:])
	return m, nil
}

// Parse decodes the header at the start of b and returns the bytes that
// follow it. For a Meta header the remainder is normally empty.
func Parse(b []byte) (Header, []byte, error) {
	r := bytes.NewReader(b)
	h, err := Read(r)
	if err != nil {
		return nil, nil, err
	}
	return h, b[h.Len():], nil
}

func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: short header: %w", ErrFormat, err)
		}
		return err
	}
	return nil
}
