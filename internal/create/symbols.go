package create

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tunnelmesh/paperback/internal/parallel"
	"github.com/tunnelmesh/paperback/internal/symbol"
)

// MetaLevel is the error correction level of Meta symbols.
const MetaLevel = symbol.LevelH

// Symbols holds the QR symbols of a Document.
type Symbols struct {
	Meta     *symbol.Symbol
	Payloads []*symbol.Symbol
}

// Symbolize encodes every chunk of doc with enc. Payloads use the plan's
// version and level; the Meta chunk uses MetaLevel at the smallest version
// that fits it. Work is spread over workers goroutines (0 means one per CPU).
func Symbolize(doc *Document, enc symbol.Encoder, workers int) (*Symbols, error) {
	plan := doc.Plan

	meta, err := enc.EncodeAuto(doc.Meta, MetaLevel)
	if err != nil {
		return nil, fmt.Errorf("encode meta symbol: %w", err)
	}

	payloads, err := parallel.Map(doc.Payloads, workers, func(i int, chunk []byte) (*symbol.Symbol, error) {
		s, err := enc.Encode(chunk, plan.Version, plan.Level)
		if err != nil {
			return nil, fmt.Errorf("encode symbol %d: %w", i, err)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("payload_symbols", len(payloads)).
		Int("meta_version", int(meta.Version)).
		Msg("symbols encoded")
	return &Symbols{Meta: meta, Payloads: payloads}, nil
}
