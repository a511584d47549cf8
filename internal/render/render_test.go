package render

import (
	"image"
	"image/draw"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunnelmesh/paperback/internal/create"
	"github.com/tunnelmesh/paperback/internal/layout"
	"github.com/tunnelmesh/paperback/internal/restore"
	"github.com/tunnelmesh/paperback/internal/scan"
	"github.com/tunnelmesh/paperback/internal/symbol"
	"github.com/tunnelmesh/paperback/testutil"
)

const testTag = "test-build"

func symbolize(t *testing.T, data []byte, cfg layout.PageConfig) (*create.Document, *create.Symbols) {
	t.Helper()
	plan, err := create.Prepare(data, cfg, testTag)
	require.NoError(t, err)
	doc, err := create.Encode(data, plan, create.Options{BuildTag: testTag})
	require.NoError(t, err)
	syms, err := create.Symbolize(doc, symbol.NewQREncoder(), 0)
	require.NoError(t, err)
	return doc, syms
}

func dark(img *image.Gray, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.GrayAt(x, y).Y < 128 {
				n++
			}
		}
	}
	return n
}

func TestPages_CountAndSize(t *testing.T) {
	doc, syms := symbolize(t, testutil.RandomBytes(1, 2000), layout.DefaultPageConfig())
	plan := doc.Plan

	pages, err := Pages(plan, syms, Options{DPI: 100, Workers: 2})
	require.NoError(t, err)
	require.Len(t, pages, plan.TotalPages)

	wantW := int(math.Round(plan.PageWidth * 100 / mmPerInch))
	wantH := int(math.Round(plan.PageHeight * 100 / mmPerInch))
	for _, p := range pages {
		assert.Equal(t, wantW, p.Bounds().Dx())
		assert.Equal(t, wantH, p.Bounds().Dy())
	}
}

func TestPages_MarginsStayBlank(t *testing.T) {
	doc, syms := symbolize(t, testutil.RandomBytes(2, 2000), layout.DefaultPageConfig())
	plan := doc.Plan

	pages, err := Pages(plan, syms, Options{DPI: 100})
	require.NoError(t, err)

	scale := 100 / mmPerInch
	left := int(plan.MarginLeft * scale)
	top := int(plan.MarginTop * scale)
	for n, p := range pages {
		b := p.Bounds()
		assert.Zero(t, dark(p, image.Rect(0, 0, left, b.Max.Y)), "left margin of page %d", n)
		assert.Zero(t, dark(p, image.Rect(0, 0, b.Max.X, top)), "top margin of page %d", n)
		assert.NotZero(t, dark(p, b), "page %d is blank", n)
	}
}

func TestPages_GridAlternates(t *testing.T) {
	doc, syms := symbolize(t, testutil.RandomBytes(3, 3000), layout.DefaultPageConfig())
	plan := doc.Plan
	require.GreaterOrEqual(t, plan.TotalPages, 2)

	pages, err := Pages(plan, syms, Options{DPI: 100})
	require.NoError(t, err)

	// The first payload symbol's finder pattern is at the grid's top-left
	// corner: near the top margin on even pages, lower down on odd pages.
	scale := 100 / mmPerInch
	m := plan.ModuleLength
	gridSide := m * (float64(plan.SymbolsPerRow*(plan.Version.Width()+symbol.QuietZone)) + symbol.QuietZone)
	corner := func(top float64) image.Rectangle {
		x := int((plan.MarginLeft + m*symbol.QuietZone + m) * scale)
		y := int((top + m*symbol.QuietZone + m) * scale)
		return image.Rect(x, y, x+int(5*m*scale), y+int(5*m*scale))
	}
	evenTop := plan.MarginTop
	oddTop := plan.PageHeight - plan.MarginBottom - gridSide

	assert.NotZero(t, dark(pages[0], corner(evenTop)))
	assert.NotZero(t, dark(pages[1], corner(oddTop)))
}

func TestPages_SymbolScansBack(t *testing.T) {
	doc, syms := symbolize(t, testutil.RandomBytes(4, 500), layout.DefaultPageConfig())
	plan := doc.Plan

	pages, err := Pages(plan, syms, Options{})
	require.NoError(t, err)

	// Crop the first grid cell, quiet zones included, and scan it.
	scale := DefaultDPI / mmPerInch
	m := plan.ModuleLength
	cell := m * float64(plan.Version.Width()+2*symbol.QuietZone)
	x := int(plan.MarginLeft * scale)
	y := int(plan.MarginTop * scale)
	crop := image.NewGray(image.Rect(0, 0, int(cell*scale), int(cell*scale)))
	draw.Draw(crop, crop.Bounds(), pages[0], image.Pt(x, y), draw.Src)

	chunks, err := scan.NewReader().Read(crop)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, doc.Payloads[0], chunks[0])
}

func pixels(img *image.Gray, r image.Rectangle) []byte {
	var out []byte
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := img.PixOffset(r.Min.X, y)
		out = append(out, img.Pix[i:i+r.Dx()]...)
	}
	return out
}

func TestPages_BannerText(t *testing.T) {
	doc, syms := symbolize(t, testutil.RandomBytes(6, 3000), layout.DefaultPageConfig())
	plan := doc.Plan
	require.GreaterOrEqual(t, plan.TotalPages, 2)

	pages, err := Pages(plan, syms, Options{DPI: 100, BuildTag: testTag})
	require.NoError(t, err)

	g, err := newGeometry(plan, syms.Meta, 100)
	require.NoError(t, err)

	var texts [][]byte
	for n := 0; n < 2; n++ {
		_, bannerTop := g.tops(n)
		r := g.textRect(bannerTop, syms.Meta)
		require.False(t, r.Empty(), "page %d has no room between the Meta symbols", n)
		assert.NotZero(t, dark(pages[n], r), "banner text of page %d is blank", n)
		texts = append(texts, pixels(pages[n], r))
	}
	assert.NotEqual(t, texts[0], texts[1], "page numbers differ")
}

func TestPages_BannerMetaScansBack(t *testing.T) {
	doc, syms := symbolize(t, testutil.RandomBytes(7, 1000), layout.DefaultPageConfig())
	plan := doc.Plan

	pages, err := Pages(plan, syms, Options{BuildTag: testTag})
	require.NoError(t, err)

	// Crop the banner strip of page 0: both Meta copies and the text between.
	g, err := newGeometry(plan, syms.Meta, DefaultDPI)
	require.NoError(t, err)
	_, bannerTop := g.tops(0)
	r := image.Rect(0, g.px(bannerTop), g.width, g.px(bannerTop+g.bannerH))
	crop := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(crop, crop.Bounds(), pages[0], r.Min, draw.Src)

	chunks, err := scan.NewReader().Read(crop)
	require.NoError(t, err)
	require.Len(t, chunks, 1, "identical Meta copies collapse into one chunk")
	assert.Equal(t, doc.Meta, chunks[0])
}

func TestPages_RestoreFromFullPages(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	data := testutil.RandomBytes(8, 3000)
	doc, syms := symbolize(t, data, layout.DefaultPageConfig())
	plan := doc.Plan
	require.GreaterOrEqual(t, plan.TotalPages, 2)

	pages, err := Pages(plan, syms, Options{BuildTag: testTag})
	require.NoError(t, err)
	paths, err := WritePages(dir+"/doc", pages)
	require.NoError(t, err)

	chunks, results := scan.NewReader().ReadFiles(paths, 0)
	for i, res := range results {
		assert.Equal(t, scan.StatusOK, res.Status, "page %d", i+1)
	}

	got, stats, err := restore.Reconstruct(chunks, testTag)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.GreaterOrEqual(t, stats.Shards, plan.DataShards)
}

func TestBannerLines(t *testing.T) {
	tests := []struct {
		name      string
		dataPages int
		total     int
		page      int
		tag       string
		want      []string
	}{
		{
			name:      "single data page",
			dataPages: 1,
			total:     2,
			page:      0,
			tag:       "v1.2.0",
			want:      []string{"paperback@v1.2.0", "Page Info    1/1+1", "Any single page restores the file,"},
		},
		{
			name:      "several data pages",
			dataPages: 4,
			total:     7,
			page:      5,
			tag:       "",
			want:      []string{"paperback", "Page Info    6/4+3", "Any 4 pages restore the file,"},
		},
		{
			name:      "long commit is shortened",
			dataPages: 2,
			total:     2,
			page:      1,
			tag:       "0123456789abcdef0123",
			want:      []string{"paperback@0123456789ab", "Page Info    2/2+0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &layout.Plan{DataPages: tt.dataPages, TotalPages: tt.total}
			lines := bannerLines(plan, tt.page, tt.tag)
			for _, w := range tt.want {
				assert.Contains(t, lines, w)
			}
			assert.Contains(t, lines, "Document ID  "+plan.Hash.DocumentID())
		})
	}
}

func TestPages_NoRoomForBanner(t *testing.T) {
	cfg := layout.DefaultPageConfig()
	// A square page leaves only a thin strip beside the grid.
	cfg.Height = cfg.Width
	doc, syms := symbolize(t, testutil.RandomBytes(5, 500), cfg)

	_, err := Pages(doc.Plan, syms, Options{DPI: 50})
	assert.ErrorIs(t, err, ErrNoRoom)
}

func TestWritePages(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	pages := []*image.Gray{
		image.NewGray(image.Rect(0, 0, 8, 8)),
		image.NewGray(image.Rect(0, 0, 8, 8)),
	}
	paths, err := WritePages(dir+"/backup", pages)
	require.NoError(t, err)
	assert.Equal(t, []string{dir + "/backup-001.png", dir + "/backup-002.png"}, paths)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}

func TestPagePath(t *testing.T) {
	assert.Equal(t, "out-001.png", PagePath("out", 0))
	assert.Equal(t, "out-014.png", PagePath("out", 13))
	assert.Equal(t, "out-1000.png", PagePath("out", 999))
}
