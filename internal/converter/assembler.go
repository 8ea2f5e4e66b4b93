package converter

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const embeddedFontName = "bookfont"

// PageMetrics holds the fixed page geometry used for layout, in points.
type PageMetrics struct {
	Width      float64
	Height     float64
	Margin     float64
	FontSize   float64
	LineHeight float64
}

// DefaultMetrics returns A4 geometry with the stock body font size.
func DefaultMetrics() PageMetrics {
	return PageMetrics{
		Width:      595.28,
		Height:     841.89,
		Margin:     48,
		FontSize:   11,
		LineHeight: 16,
	}
}

// Assembler owns the output PDF document: page creation, font
// registration, image registration and final byte serialization.
type Assembler struct {
	pdf      *gofpdf.Fpdf
	metrics  PageMetrics
	fontName string
	images   map[string]bool
}

// NewAssembler creates a PDF document with the given geometry. fontBytes
// is an embeddable TrueType font; when empty the built-in Helvetica core
// font is used instead (no embedding).
func NewAssembler(m PageMetrics, fontBytes []byte) *Assembler {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: m.Width, Ht: m.Height},
	})
	pdf.SetAutoPageBreak(false, 0)

	a := &Assembler{
		pdf:     pdf,
		metrics: m,
		images:  make(map[string]bool),
	}

	if len(fontBytes) > 0 {
		pdf.AddUTF8FontFromBytes(embeddedFontName, "", fontBytes)
		a.fontName = embeddedFontName
	} else {
		a.fontName = "Helvetica"
	}
	pdf.SetFont(a.fontName, "", m.FontSize)

	return a
}

// SetDocInfo fills the PDF information dictionary.
func (a *Assembler) SetDocInfo(title, author string) {
	if title != "" {
		a.pdf.SetTitle(title, true)
	}
	if author != "" {
		a.pdf.SetAuthor(author, true)
	}
	a.pdf.SetCreator("epub2pdf", true)
}

// AddPage starts a new page and re-applies the active font.
func (a *Assembler) AddPage() {
	a.pdf.AddPage()
	a.pdf.SetFont(a.fontName, "", a.metrics.FontSize)
}

// StringWidth measures rendered text width in the active font.
func (a *Assembler) StringWidth(s string) float64 {
	return a.pdf.GetStringWidth(s)
}

// TextLine places one already-wrapped line at the given baseline.
func (a *Assembler) TextLine(x, y float64, s string) {
	a.pdf.Text(x, y, s)
}

// DrawImage registers the prepared image under name (once) and places
// it at x,y scaled to w×h. gofpdf errors are sticky and silently turn
// every later call on the document into a no-op, so a rejected image
// clears the document error before reporting its own.
func (a *Assembler) DrawImage(name string, img *preparedImage, x, y, w, h float64) error {
	opts := gofpdf.ImageOptions{ImageType: img.typ}
	if !a.images[name] {
		a.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.data))
		if err := a.pdf.Error(); err != nil {
			a.pdf.ClearError()
			return fmt.Errorf("register image %s: %w", name, err)
		}
		a.images[name] = true
	}
	a.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	if err := a.pdf.Error(); err != nil {
		a.pdf.ClearError()
		return fmt.Errorf("place image %s: %w", name, err)
	}
	return nil
}

// PageCount returns the number of pages added so far.
func (a *Assembler) PageCount() int {
	return a.pdf.PageCount()
}

// Bytes finalizes the document into a PDF byte blob.
func (a *Assembler) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := a.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize PDF: %w", err)
	}
	return buf.Bytes(), nil
}
