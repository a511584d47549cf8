// Package layout chooses the QR configuration that stores the most data per
// page and derives the shard size and counts for a document.
//
// The search is deterministic: the chosen shard size and counts end up in the
// Meta header every reader relies on, so identical inputs must always produce
// an identical plan.
package layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/tunnelmesh/paperback/internal/erasure"
	"github.com/tunnelmesh/paperback/internal/header"
	"github.com/tunnelmesh/paperback/internal/symbol"
)

// ErrPlanning is returned when no symbol configuration satisfies the page constraints.
var ErrPlanning = errors.New("no viable layout")

// BlockSize is the granularity of shard lengths required by the erasure coder.
const BlockSize = 64

// TrailerLength is the size of the original-length trailer appended to the data.
const TrailerLength = 8

// MaxShards is the largest shard count the uint16 header fields can carry.
// Index 0xFFFF is reserved for the Meta header, so at most 0xFFFF recovery
// shards (indices 0 to 0xFFFE) can be addressed.
const MaxShards = int(header.MetaIndex)

// PageConfig holds the page geometry and density constraints. Lengths are
// in millimetres.
type PageConfig struct {
	Width        float64
	Height       float64
	MarginTop    float64
	MarginRight  float64
	MarginBottom float64
	MarginLeft   float64
	// ModuleLength is the printed size of one QR module.
	ModuleLength float64
	// RowCount is the minimum number of symbols per row.
	RowCount int
	// MinLevel is the minimum error correction level.
	MinLevel symbol.Level
	Recovery RecoveryFactor
}

// DefaultPageConfig returns an A4 page with the default margins, a 1 mm
// module, at least 3 symbols per row, level Q and 50% recovery.
func DefaultPageConfig() PageConfig {
	w, h, _ := PaperA4.Dimensions()
	return PageConfig{
		Width:        w,
		Height:       h,
		MarginTop:    DefaultMargin,
		MarginRight:  DefaultMargin,
		MarginBottom: DefaultMargin,
		MarginLeft:   DefaultMargin,
		ModuleLength: 1.0,
		RowCount:     3,
		MinLevel:     symbol.LevelQ,
		Recovery:     RecoveryMultiple(0.5),
	}
}

// Plan is the layout chosen for one document. It is immutable once computed.
type Plan struct {
	PageWidth    float64
	PageHeight   float64
	MarginTop    float64
	MarginRight  float64
	MarginBottom float64
	MarginLeft   float64
	// AvailWidth and AvailHeight exclude the margins.
	AvailWidth   float64
	AvailHeight  float64
	ModuleLength float64

	Hash       header.Hash
	Identifier header.Identifier

	Version symbol.Version
	Level   symbol.Level
	// SymbolsPerRow is the number of symbols per row and per column.
	SymbolsPerRow int
	// ShardBytes is the number of data bytes per symbol, excluding the header.
	ShardBytes int
	// DataShards is the number of data shards; these are never printed.
	DataShards int
	// RecoveryShards is the number of recovery shards, all of which are printed.
	RecoveryShards int
	// DataPages is the minimum number of pages needed to restore.
	DataPages int
	// TotalPages is the number of pages printed.
	TotalPages int
}

// SymbolsPerPage returns the number of payload symbols on a full page.
func (p *Plan) SymbolsPerPage() int {
	return p.SymbolsPerRow * p.SymbolsPerRow
}

// PaddedSize returns the length of the data after the trailer and padding.
func (p *Plan) PaddedSize() int {
	return p.DataShards * p.ShardBytes
}

// Meta returns the Meta header describing this plan.
func (p *Plan) Meta() *header.Meta {
	return &header.Meta{
		Identifier:    p.Identifier,
		Hash:          p.Hash,
		OriginalCount: uint16(p.DataShards),
		RecoveryCount: uint16(p.RecoveryShards),
		ShardBytes:    uint64(p.ShardBytes),
	}
}

// candidate is one (version, level) configuration under consideration.
type candidate struct {
	version       symbol.Version
	level         symbol.Level
	symbolsPerRow int
	bytesPerShard int
	bytesPerPage  int
}

// Compute chooses the layout for dataSize bytes of content with the given hash.
func Compute(cfg PageConfig, dataSize int, hash header.Hash) (*Plan, error) {
	if err := validate(cfg, dataSize); err != nil {
		return nil, err
	}

	availWidth := cfg.Width - cfg.MarginLeft - cfg.MarginRight
	availHeight := cfg.Height - cfg.MarginTop - cfg.MarginBottom
	availMin := math.Min(availWidth, availHeight)
	quietZone := cfg.ModuleLength * symbol.QuietZone

	best, ok := search(cfg, availMin, quietZone)
	if !ok || best.bytesPerShard < BlockSize+header.PayloadLength {
		return nil, fmt.Errorf("%w: no QR configuration holds enough data with at least %d symbols per row at level %s; try lowering row-count",
			ErrPlanning, cfg.RowCount, cfg.MinLevel)
	}

	shardBytes := floorMultiple(best.bytesPerShard, BlockSize)
	perPage := best.symbolsPerRow * best.symbolsPerRow

	padded := ceilMultiple(dataSize+TrailerLength, shardBytes)
	dataShards := padded / shardBytes
	dataPages := ceilDiv(dataShards, perPage)
	extraPages, err := cfg.Recovery.ExtraPages(dataShards, perPage)
	if err != nil {
		return nil, err
	}
	recoveryShards := dataShards + extraPages*perPage

	if dataShards > MaxShards || recoveryShards > MaxShards {
		return nil, fmt.Errorf("%w: %d data and %d recovery shards exceed the limit of %d; increase module density or lower the recovery factor",
			ErrPlanning, dataShards, recoveryShards, MaxShards)
	}
	if total := dataShards + recoveryShards; total > erasure.MaxTotalShards {
		return nil, fmt.Errorf("%w: %d data and %d recovery shards exceed the erasure coder limit of %d in total; lower the recovery factor",
			ErrPlanning, dataShards, recoveryShards, erasure.MaxTotalShards)
	}

	return &Plan{
		PageWidth:      cfg.Width,
		PageHeight:     cfg.Height,
		MarginTop:      cfg.MarginTop,
		MarginRight:    cfg.MarginRight,
		MarginBottom:   cfg.MarginBottom,
		MarginLeft:     cfg.MarginLeft,
		AvailWidth:     availWidth,
		AvailHeight:    availHeight,
		ModuleLength:   cfg.ModuleLength,
		Hash:           hash,
		Identifier:     hash.Identifier(),
		Version:        best.version,
		Level:          best.level,
		SymbolsPerRow:  best.symbolsPerRow,
		ShardBytes:     shardBytes,
		DataShards:     dataShards,
		RecoveryShards: recoveryShards,
		DataPages:      dataPages,
		TotalPages:     dataPages + extraPages,
	}, nil
}

// search walks every version and every acceptable level, highest correction
// first, keeping the first configuration with the most data per page.
func search(cfg PageConfig, availMin, quietZone float64) (candidate, bool) {
	var best candidate
	found := false
	for v := symbol.MinVersion; v <= symbol.MaxVersion; v++ {
		// Each symbol is followed by one quiet zone; the extra leading one
		// is subtracted from the available width.
		widthPerSymbol := cfg.ModuleLength * float64(v.Width()+symbol.QuietZone)
		perRow := int(math.Floor((availMin - quietZone) / widthPerSymbol))
		if perRow < cfg.RowCount {
			continue
		}
		for _, level := range symbol.LevelsDescending {
			if level < cfg.MinLevel {
				continue
			}
			bytesPerShard := symbol.ByteCapacity(v, level) - header.PayloadLength
			perPage := floorMultiple(bytesPerShard, BlockSize) * perRow * perRow
			if perPage > best.bytesPerPage {
				best = candidate{
					version:       v,
					level:         level,
					symbolsPerRow: perRow,
					bytesPerShard: bytesPerShard,
					bytesPerPage:  perPage,
				}
				found = true
			}
		}
	}
	return best, found
}

func validate(cfg PageConfig, dataSize int) error {
	switch {
	case dataSize < 0:
		return fmt.Errorf("%w: negative data size %d", ErrPlanning, dataSize)
	case cfg.ModuleLength <= 0:
		return fmt.Errorf("%w: module length must be positive, got %v", ErrPlanning, cfg.ModuleLength)
	case cfg.RowCount < 1:
		return fmt.Errorf("%w: row count must be at least 1, got %d", ErrPlanning, cfg.RowCount)
	case cfg.MarginTop < 0 || cfg.MarginRight < 0 || cfg.MarginBottom < 0 || cfg.MarginLeft < 0:
		return fmt.Errorf("%w: margins must not be negative", ErrPlanning)
	case cfg.Width-cfg.MarginLeft-cfg.MarginRight <= 0 || cfg.Height-cfg.MarginTop-cfg.MarginBottom <= 0:
		return fmt.Errorf("%w: margins leave no printable area on a %vx%v mm page", ErrPlanning, cfg.Width, cfg.Height)
	}
	return nil
}

func floorMultiple(n, m int) int {
	if n <= 0 {
		return 0
	}
	return n / m * m
}

func ceilMultiple(n, m int) int {
	return ceilDiv(n, m) * m
}

func ceilDiv(n, m int) int {
	return (n + m - 1) / m
}
