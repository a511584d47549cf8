package render

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

// PagePath returns the file name of page n (zero-based) for base.
func PagePath(base string, n int) string {
	return fmt.Sprintf("%s-%03d.png", base, n+1)
}

// WritePages encodes pages as PNG files named by PagePath and returns their
// paths. Existing files are overwritten.
func WritePages(base string, pages []*image.Gray) ([]string, error) {
	paths := make([]string, 0, len(pages))
	for n, page := range pages {
		path := PagePath(base, n)
		if err := writePNG(path, page); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create page file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
