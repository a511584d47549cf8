package symbol

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// QREncoder encodes symbols with github.com/skip2/go-qrcode.
type QREncoder struct{}

// NewQREncoder returns an Encoder backed by go-qrcode.
func NewQREncoder() *QREncoder {
	return &QREncoder{}
}

// Encode implements Encoder.
func (QREncoder) Encode(data []byte, v Version, l Level) (*Symbol, error) {
	if !v.valid() {
		return nil, fmt.Errorf("invalid QR version %d", v)
	}
	if capacity := ByteCapacity(v, l); len(data) > capacity {
		return nil, fmt.Errorf("%w: %d bytes into version %d-%s (capacity %d)", ErrCapacity, len(data), v, l, capacity)
	}
	q, err := qrcode.NewWithForcedVersion(string(data), int(v), recoveryLevel(l))
	if err != nil {
		// go-qrcode segments the input itself; a segmentation that outgrows
		// the byte-mode estimate is still a capacity failure.
		return nil, fmt.Errorf("%w: version %d-%s: %w", ErrCapacity, v, l, err)
	}
	return fromQR(q, l), nil
}

// EncodeAuto implements Encoder.
func (QREncoder) EncodeAuto(data []byte, l Level) (*Symbol, error) {
	if !l.valid() {
		return nil, fmt.Errorf("invalid error correction level %d", l)
	}
	q, err := qrcode.New(string(data), recoveryLevel(l))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapacity, err)
	}
	return fromQR(q, l), nil
}

func fromQR(q *qrcode.QRCode, l Level) *Symbol {
	q.DisableBorder = true
	return &Symbol{
		Version: Version(q.VersionNumber),
		Level:   l,
		Modules: q.Bitmap(),
	}
}

func recoveryLevel(l Level) qrcode.RecoveryLevel {
	switch l {
	case LevelL:
		return qrcode.Low
	case LevelM:
		return qrcode.Medium
	case LevelQ:
		return qrcode.High
	default:
		return qrcode.Highest
	}
}
