package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RecoveryFactor says how many recovery pages to print beyond the minimum
// needed to restore. It is either a fixed page count or a multiple of the
// data shard count.
type RecoveryFactor struct {
	pages    int
	multiple float64
	isPages  bool
}

// RecoveryPages returns a factor of n extra pages regardless of input size.
func RecoveryPages(n int) RecoveryFactor {
	return RecoveryFactor{pages: n, isPages: true}
}

// RecoveryMultiple returns a factor of m times the data shard count; 0.5 is 50%.
func RecoveryMultiple(m float64) RecoveryFactor {
	return RecoveryFactor{multiple: m}
}

// ParseRecoveryFactor accepts "50%", "3x" or a plain page count such as "2".
func ParseRecoveryFactor(s string) (RecoveryFactor, error) {
	s = strings.TrimSpace(s)
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return RecoveryFactor{}, fmt.Errorf("invalid recovery percentage %q", s)
		}
		return RecoveryMultiple(v / 100), nil
	}
	if mul, ok := strings.CutSuffix(strings.ToLower(s), "x"); ok {
		v, err := strconv.ParseFloat(mul, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return RecoveryFactor{}, fmt.Errorf("invalid recovery multiple %q", s)
		}
		return RecoveryMultiple(v), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return RecoveryFactor{}, fmt.Errorf("invalid recovery factor %q (want e.g. 50%%, 2x or a page count)", s)
	}
	return RecoveryPages(n), nil
}

// ExtraPages returns the number of pages to print beyond those holding the
// equivalent of the data shards. Results that could never be addressed by
// the shard index fail with ErrPlanning.
func (f RecoveryFactor) ExtraPages(dataShards, perPage int) (int, error) {
	if f.isPages {
		if f.pages < 0 || f.pages > MaxShards {
			return 0, fmt.Errorf("%w: %d recovery pages is out of range", ErrPlanning, f.pages)
		}
		return f.pages, nil
	}
	pages := math.Ceil(f.multiple * float64(dataShards) / float64(perPage))
	if math.IsNaN(pages) || pages < 0 || pages > float64(MaxShards) {
		return 0, fmt.Errorf("%w: recovery factor %s needs too many pages", ErrPlanning, f.String())
	}
	return int(pages), nil
}

// String implements pflag.Value.
func (f *RecoveryFactor) String() string {
	if f.isPages {
		return strconv.Itoa(f.pages)
	}
	return strconv.FormatFloat(f.multiple*100, 'f', -1, 64) + "%"
}

// Set implements pflag.Value.
func (f *RecoveryFactor) Set(s string) error {
	v, err := ParseRecoveryFactor(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Type implements pflag.Value.
func (f *RecoveryFactor) Type() string { return "factor" }

// UnmarshalText lets recovery factors appear in YAML.
func (f *RecoveryFactor) UnmarshalText(text []byte) error {
	return f.Set(string(text))
}
