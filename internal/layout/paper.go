package layout

import (
	"fmt"
	"strings"
)

// PaperSize names a supported sheet size.
type PaperSize string

// Supported paper sizes.
const (
	PaperA4     PaperSize = "a4"
	PaperLetter PaperSize = "letter"
)

// DefaultMargin is the default margin on every side, in millimetres.
const DefaultMargin = 4.32

// Dimensions returns the sheet width and height in millimetres.
func (p PaperSize) Dimensions() (width, height float64, err error) {
	switch p {
	case PaperA4:
		return 210.0, 297.0, nil
	case PaperLetter:
		return 215.9, 279.4, nil
	}
	return 0, 0, fmt.Errorf("unknown paper size %q (want a4 or letter)", string(p))
}

// String implements pflag.Value.
func (p *PaperSize) String() string { return string(*p) }

// Set implements pflag.Value.
func (p *PaperSize) Set(s string) error {
	v := PaperSize(strings.ToLower(strings.TrimSpace(s)))
	if _, _, err := v.Dimensions(); err != nil {
		return err
	}
	*p = v
	return nil
}

// Type implements pflag.Value.
func (p *PaperSize) Type() string { return "paper" }

// UnmarshalText lets paper sizes appear in YAML.
func (p *PaperSize) UnmarshalText(text []byte) error {
	return p.Set(string(text))
}
