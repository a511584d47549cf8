// Package symbol describes the QR code ladder used to carry chunks and
// provides the encoder that turns chunk bytes into module bitmaps.
package symbol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCapacity is returned when a chunk does not fit the requested symbol.
var ErrCapacity = errors.New("chunk exceeds symbol capacity")

// Level is a QR error correction level, ordered from least to most correction.
type Level int

// Error correction levels.
const (
	LevelL Level = iota
	LevelM
	LevelQ
	LevelH
)

// LevelsDescending lists levels from most to least correction.
var LevelsDescending = [...]Level{LevelH, LevelQ, LevelM, LevelL}

// ParseLevel parses "l", "m", "q" or "h" (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l":
		return LevelL, nil
	case "m":
		return LevelM, nil
	case "q":
		return LevelQ, nil
	case "h":
		return LevelH, nil
	}
	return 0, fmt.Errorf("invalid error correction level %q (want l, m, q or h)", s)
}

// String returns the single-letter name of the level.
func (l Level) String() string {
	switch l {
	case LevelL:
		return "L"
	case LevelM:
		return "M"
	case LevelQ:
		return "Q"
	case LevelH:
		return "H"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Set implements pflag.Value.
func (l *Level) Set(s string) error {
	v, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Type implements pflag.Value.
func (l *Level) Type() string { return "level" }

// UnmarshalText lets levels appear as strings in YAML.
func (l *Level) UnmarshalText(text []byte) error {
	return l.Set(string(text))
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}

func (l Level) valid() bool { return l >= LevelL && l <= LevelH }

// Version is a QR symbol version between MinVersion and MaxVersion.
type Version int

// Version bounds.
const (
	MinVersion Version = 1
	MaxVersion Version = 40
)

// QuietZone is the number of blank modules required around a symbol.
const QuietZone = 4

// Width returns the number of modules per side, excluding the quiet zone.
func (v Version) Width() int { return 17 + 4*int(v) }

func (v Version) valid() bool { return v >= MinVersion && v <= MaxVersion }

// dataCodewords holds the number of data codewords per version, indexed by
// version-1 and then by Level.
var dataCodewords = [MaxVersion][4]int{
	{19, 16, 13, 9},
	{34, 28, 22, 16},
	{55, 44, 34, 26},
	{80, 64, 48, 36},
	{108, 86, 62, 46},
	{136, 108, 76, 60},
	{156, 124, 88, 66},
	{194, 154, 110, 86},
	{232, 182, 132, 100},
	{274, 216, 154, 122},
	{324, 254, 180, 140},
	{370, 290, 206, 158},
	{428, 334, 244, 180},
	{461, 365, 261, 197},
	{523, 415, 295, 223},
	{589, 453, 325, 253},
	{647, 507, 367, 283},
	{721, 563, 397, 313},
	{795, 627, 445, 341},
	{861, 669, 485, 385},
	{932, 714, 512, 406},
	{1006, 782, 568, 442},
	{1094, 860, 614, 464},
	{1174, 914, 664, 514},
	{1276, 1000, 718, 538},
	{1370, 1062, 754, 596},
	{1468, 1128, 808, 628},
	{1531, 1193, 871, 661},
	{1631, 1267, 911, 701},
	{1735, 1373, 985, 745},
	{1843, 1455, 1033, 793},
	{1955, 1541, 1115, 845},
	{2071, 1631, 1171, 901},
	{2191, 1725, 1231, 961},
	{2306, 1812, 1286, 986},
	{2434, 1914, 1354, 1054},
	{2566, 1992, 1426, 1096},
	{2702, 2102, 1502, 1142},
	{2812, 2216, 1582, 1222},
	{2956, 2334, 1666, 1276},
}

// DataBits returns the number of data bits a symbol holds.
func DataBits(v Version, l Level) int {
	if !v.valid() || !l.valid() {
		return 0
	}
	return dataCodewords[v-1][l] * 8
}

// ByteCapacity returns how many bytes fit in one byte-mode segment of the
// given symbol: data bits minus the 4-bit mode indicator and the character
// count indicator.
func ByteCapacity(v Version, l Level) int {
	bits := DataBits(v, l)
	if bits == 0 {
		return 0
	}
	countBits := 8
	if v >= 10 {
		countBits = 16
	}
	return (bits - 4 - countBits) / 8
}

// Symbol is an encoded QR code without its quiet zone.
type Symbol struct {
	Version Version
	Level   Level
	// Modules is indexed [row][column]; true is a dark module.
	Modules [][]bool
}

// Size returns the number of modules per side.
func (s *Symbol) Size() int { return len(s.Modules) }

// Encoder turns chunk bytes into symbols.
type Encoder interface {
	// Encode places data in a symbol of exactly version v at level l. Data
	// that does not fit is an error wrapping ErrCapacity, never truncated.
	Encode(data []byte, v Version, l Level) (*Symbol, error)
	// EncodeAuto picks the smallest version that holds data at level l.
	EncodeAuto(data []byte, l Level) (*Symbol, error)
}
