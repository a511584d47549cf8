// Package scan finds QR symbols in page images and returns the raw chunk
// bytes they carry.
package scan

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	// Registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/rs/zerolog/log"
	"github.com/tunnelmesh/paperback/internal/parallel"
)

// ErrNotBinary is returned when a symbol's text cannot be mapped back to bytes.
var ErrNotBinary = errors.New("symbol does not carry binary data")

// tileDivisions are the grid sizes tried when the whole-image pass finds no
// symbol. Tiles overlap by half their size, so a symbol smaller than half a
// tile lies wholly inside at least one of them.
var tileDivisions = []int{2, 3}

// Reader decodes every QR symbol in an image.
type Reader struct {
	detector multi.MultipleBarcodeReader
	single   gozxing.Reader
	hints    map[gozxing.DecodeHintType]interface{}
}

// NewReader returns a Reader that runs the QR multi-detector over the whole
// image and falls back to decoding overlapping tiles one symbol at a time.
func NewReader() *Reader {
	return &Reader{
		detector: multiqr.NewQRCodeMultiReader(),
		single:   qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER:       true,
			gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE},
			// Chunks are binary; Latin-1 maps each byte to one rune.
			gozxing.DecodeHintType_CHARACTER_SET: "ISO-8859-1",
		},
	}
}

// chunkSet collects distinct chunks in the order they were found.
type chunkSet struct {
	seen    map[string]struct{}
	chunks  [][]byte
	lastErr error
}

func (s *chunkSet) add(res *gozxing.Result) {
	chunk, err := resultBytes(res)
	if err != nil {
		s.lastErr = err
		return
	}
	if _, dup := s.seen[string(chunk)]; dup {
		return
	}
	s.seen[string(chunk)] = struct{}{}
	s.chunks = append(s.chunks, chunk)
}

func (s *chunkSet) fail(err error) {
	var notFound gozxing.NotFoundException
	if !errors.As(err, &notFound) {
		s.lastErr = err
	}
}

// Read returns the bytes of every distinct symbol in img. An image without
// symbols yields no chunks and no error.
func (r *Reader) Read(img image.Image) ([][]byte, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("binarize image: %w", err)
	}

	set := &chunkSet{seen: make(map[string]struct{})}
	results, err := r.detector.DecodeMultiple(bmp, r.hints)
	if err != nil {
		set.fail(err)
	}
	for _, res := range results {
		set.add(res)
	}

	if len(set.chunks) == 0 {
		if err := r.readTiles(img, set); err != nil {
			return nil, err
		}
		if len(set.chunks) > 0 {
			log.Debug().Int("chunks", len(set.chunks)).Msg("symbols found in image tiles")
		}
	}

	if len(set.chunks) == 0 && set.lastErr != nil {
		return nil, fmt.Errorf("decode symbols: %w", set.lastErr)
	}
	return set.chunks, nil
}

// readTiles decodes one symbol from each overlapping tile of img.
func (r *Reader) readTiles(img image.Image, set *chunkSet) error {
	b := img.Bounds()
	for _, n := range tileDivisions {
		w, h := b.Dx()/n, b.Dy()/n
		if w == 0 || h == 0 {
			continue
		}
		for y := b.Min.Y; y+h <= b.Max.Y; y += max(1, h/2) {
			for x := b.Min.X; x+w <= b.Max.X; x += max(1, w/2) {
				tile := image.NewGray(image.Rect(0, 0, w, h))
				draw.Draw(tile, tile.Bounds(), img, image.Pt(x, y), draw.Src)
				bmp, err := gozxing.NewBinaryBitmapFromImage(tile)
				if err != nil {
					return fmt.Errorf("binarize tile: %w", err)
				}
				res, err := r.single.Decode(bmp, r.hints)
				if err != nil {
					set.fail(err)
					continue
				}
				set.add(res)
			}
		}
	}
	return nil
}

// resultBytes recovers the payload bytes of a decoded symbol. The reader asks
// for Latin-1 text, so every rune is one byte.
func resultBytes(res *gozxing.Result) ([]byte, error) {
	text := res.GetText()
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if r > 0xFF {
			return nil, ErrNotBinary
		}
		out = append(out, byte(r))
	}
	return out, nil
}

// Status is the outcome of scanning one file.
type Status int

const (
	// StatusOK means at least one symbol was read.
	StatusOK Status = iota
	// StatusEmpty means the image was read but held no symbols.
	StatusEmpty
	// StatusFailed means the file could not be opened, decoded or scanned.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// FileResult is the outcome of scanning one file.
type FileResult struct {
	Path   string
	Status Status
	Chunks int
	Err    error
}

// ReadFiles scans every file at paths using up to workers goroutines (0 means
// one per CPU). A file that cannot be scanned is logged and reported in its
// FileResult; it never stops the other files. Chunks are returned in path
// order.
func (r *Reader) ReadFiles(paths []string, workers int) ([][]byte, []FileResult) {
	perFile := make([][][]byte, len(paths))
	errs := parallel.Each(paths, workers, func(i int, path string) error {
		img, err := decodeFile(path)
		if err != nil {
			return err
		}
		perFile[i], err = r.Read(img)
		return err
	})

	var chunks [][]byte
	results := make([]FileResult, len(paths))
	for i, path := range paths {
		res := FileResult{Path: path, Chunks: len(perFile[i]), Err: errs[i]}
		switch {
		case errs[i] != nil:
			res.Status = StatusFailed
			log.Warn().Err(errs[i]).Str("path", path).Msg("failed to scan image")
		case len(perFile[i]) == 0:
			res.Status = StatusEmpty
			log.Warn().Str("path", path).Msg("no symbols found in image")
		default:
			res.Status = StatusOK
			log.Debug().Str("path", path).Int("chunks", len(perFile[i])).Msg("image scanned")
		}
		results[i] = res
		chunks = append(chunks, perFile[i]...)
	}
	return chunks, results
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}
