// Package render rasterizes encoded documents into printable page images.
//
// Each page holds a square grid of payload symbols and a banner strip with
// two copies of the Meta symbol, so any single page is enough to configure a
// restore. The grid sits at the top of even pages and at the bottom of odd
// pages; the banner takes the rest of the printable area. Between the two
// Meta symbols the banner prints the document ID, the page number and short
// restore instructions.
package render

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"github.com/tunnelmesh/paperback/internal/create"
	"github.com/tunnelmesh/paperback/internal/layout"
	"github.com/tunnelmesh/paperback/internal/parallel"
	"github.com/tunnelmesh/paperback/internal/symbol"
)

// DefaultDPI is the default output resolution.
const DefaultDPI = 300

// MetaCopies is the number of Meta symbols in each page banner.
const MetaCopies = 2

const mmPerInch = 25.4

// maxLetterHeight caps the banner text height in mm.
const maxLetterHeight = 4.0

// shortTagLength is the longest build tag printed in the banner.
const shortTagLength = 12

// ErrNoRoom is returned when the page leaves no room for the Meta banner.
var ErrNoRoom = errors.New("page has no room for the metadata banner")

// Options configures Pages.
type Options struct {
	// DPI is the output resolution; 0 means DefaultDPI.
	DPI float64
	// Workers bounds the number of pages rasterized at once; 0 means one per CPU.
	Workers int
	// BuildTag is printed in the banner next to the program name.
	BuildTag string
}

// Pages rasterizes every page of the document described by plan and syms.
func Pages(plan *layout.Plan, syms *create.Symbols, opts Options) ([]*image.Gray, error) {
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	g, err := newGeometry(plan, syms.Meta, dpi)
	if err != nil {
		return nil, err
	}
	g.buildTag = opts.BuildTag

	perPage := plan.SymbolsPerPage()
	numbers := make([]int, plan.TotalPages)
	for i := range numbers {
		numbers[i] = i
	}

	pages, err := parallel.Map(numbers, opts.Workers, func(_, n int) (*image.Gray, error) {
		first := n * perPage
		last := min(first+perPage, len(syms.Payloads))
		if first >= last {
			return nil, fmt.Errorf("page %d has no symbols (%d symbols for %d pages)", n+1, len(syms.Payloads), plan.TotalPages)
		}
		return g.page(n, syms.Meta, syms.Payloads[first:last]), nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("pages", len(pages)).
		Float64("dpi", dpi).
		Msg("pages rendered")
	return pages, nil
}

// geometry holds page placement in millimetres and the pixel scale.
type geometry struct {
	plan   *layout.Plan
	scale  float64 // pixels per millimetre
	width  int
	height int

	gridSide   float64
	metaModule float64
	bannerH    float64
	buildTag   string
}

func newGeometry(plan *layout.Plan, meta *symbol.Symbol, dpi float64) (*geometry, error) {
	g := &geometry{
		plan:  plan,
		scale: dpi / mmPerInch,
	}
	g.width = int(math.Round(plan.PageWidth * g.scale))
	g.height = int(math.Round(plan.PageHeight * g.scale))

	cell := float64(plan.Version.Width() + symbol.QuietZone)
	g.gridSide = plan.ModuleLength * (float64(plan.SymbolsPerRow)*cell + symbol.QuietZone)

	g.bannerH = plan.AvailHeight - g.gridSide
	metaCell := float64(meta.Size() + symbol.QuietZone)
	g.metaModule = math.Min(plan.ModuleLength, math.Min(
		g.bannerH/(metaCell+symbol.QuietZone),
		plan.AvailWidth/(MetaCopies*metaCell+symbol.QuietZone),
	))
	// Below one pixel per module the banner cannot be scanned.
	if g.metaModule*g.scale < 1 {
		return nil, fmt.Errorf("%w: %.1f mm left beside a %.1f mm symbol grid", ErrNoRoom, g.bannerH, g.gridSide)
	}
	return g, nil
}

// tops returns the top edges of the symbol grid and the banner of page n in mm.
func (g *geometry) tops(n int) (gridTop, bannerTop float64) {
	plan := g.plan
	if n%2 == 1 {
		return plan.PageHeight - plan.MarginBottom - g.gridSide, plan.MarginTop
	}
	return plan.MarginTop, plan.MarginTop + g.gridSide
}

// metaPlacement returns the left edges of the two Meta symbols and their
// shared top edge in mm. The symbols sit at either end of the banner.
func (g *geometry) metaPlacement(bannerTop float64, meta *symbol.Symbol) (left, right, top float64) {
	plan := g.plan
	q := g.metaModule * symbol.QuietZone
	side := g.metaModule * float64(meta.Size())
	left = plan.MarginLeft + q
	right = plan.MarginLeft + plan.AvailWidth - q - side
	top = bannerTop + (g.bannerH-side)/2
	return left, right, top
}

// textRect returns the pixel area between the Meta symbols of a banner.
func (g *geometry) textRect(bannerTop float64, meta *symbol.Symbol) image.Rectangle {
	q := g.metaModule * symbol.QuietZone
	left, right, _ := g.metaPlacement(bannerTop, meta)
	x0 := left + g.metaModule*float64(meta.Size()) + q
	x1 := right - q
	return image.Rect(g.px(x0), g.px(bannerTop+q), g.px(x1), g.px(bannerTop+g.bannerH-q))
}

func (g *geometry) page(n int, meta *symbol.Symbol, payloads []*symbol.Symbol) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.width, g.height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	plan := g.plan
	gridTop, bannerTop := g.tops(n)

	m := plan.ModuleLength
	cell := m * float64(plan.Version.Width()+symbol.QuietZone)
	for i, s := range payloads {
		row, col := i/plan.SymbolsPerRow, i%plan.SymbolsPerRow
		x := plan.MarginLeft + m*symbol.QuietZone + float64(col)*cell
		y := gridTop + m*symbol.QuietZone + float64(row)*cell
		g.symbol(img, s, x, y, m)
	}

	left, right, top := g.metaPlacement(bannerTop, meta)
	g.symbol(img, meta, left, top, g.metaModule)
	g.symbol(img, meta, right, top, g.metaModule)

	g.text(img, g.textRect(bannerTop, meta), bannerLines(plan, n, g.buildTag))
	return img
}

// bannerLines returns the text printed in the banner of page n.
func bannerLines(plan *layout.Plan, n int, buildTag string) []string {
	label := "paperback"
	if buildTag != "" {
		if len(buildTag) > shortTagLength {
			buildTag = buildTag[:shortTagLength]
		}
		label += "@" + buildTag
	}

	needed := "Any single page restores the file,"
	if plan.DataPages > 1 {
		needed = fmt.Sprintf("Any %d pages restore the file,", plan.DataPages)
	}

	return []string{
		label,
		"",
		"Document ID  " + plan.Hash.DocumentID(),
		fmt.Sprintf("Page Info    %d/%d+%d", n+1, plan.DataPages, plan.TotalPages-plan.DataPages),
		"",
		"This is a paper backup.",
		needed,
		"more if some codes fail to scan.",
		"Restore with: paperback restore",
		"At least one copy of the code",
		"beside this text is required.",
	}
}

// text draws lines centred in r, scaled up by the largest whole factor that
// fits. Nothing is drawn when the text does not fit at its natural size.
func (g *geometry) text(img *image.Gray, r image.Rectangle, lines []string) {
	face := basicfont.Face7x13

	w := 0
	for _, line := range lines {
		w = max(w, font.MeasureString(face, line).Ceil())
	}
	h := len(lines) * face.Height
	if w == 0 || h == 0 {
		return
	}

	k := min(r.Dx()/w, r.Dy()/h, max(1, int(maxLetterHeight*g.scale)/face.Height))
	if k < 1 {
		log.Debug().
			Int("width", r.Dx()).
			Int("height", r.Dy()).
			Msg("banner too small for text")
		return
	}

	src := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(src, src.Bounds(), image.White, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: src, Src: image.Black, Face: face}
	for i, line := range lines {
		d.Dot = fixed.P(0, i*face.Height+face.Ascent)
		d.DrawString(line)
	}

	x := r.Min.X + (r.Dx()-w*k)/2
	y := r.Min.Y + (r.Dy()-h*k)/2
	draw.NearestNeighbor.Scale(img, image.Rect(x, y, x+w*k, y+h*k), src, src.Bounds(), draw.Src, nil)
}

// symbol draws s with its top-left module at (x, y) mm.
func (g *geometry) symbol(img *image.Gray, s *symbol.Symbol, x, y, module float64) {
	for r, row := range s.Modules {
		y0 := g.px(y + float64(r)*module)
		y1 := g.px(y + float64(r+1)*module)
		for c, dark := range row {
			if !dark {
				continue
			}
			x0 := g.px(x + float64(c)*module)
			x1 := g.px(x + float64(c+1)*module)
			draw.Draw(img, image.Rect(x0, y0, x1, y1), image.Black, image.Point{}, draw.Src)
		}
	}
}

func (g *geometry) px(mm float64) int {
	return int(math.Round(mm * g.scale))
}
