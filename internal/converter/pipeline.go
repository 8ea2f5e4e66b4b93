package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"epub2pdf/internal/epub"
)

// ProgressFunc receives a monotonically non-decreasing percentage
// (0-100). Callbacks are synchronous; callers must not block.
type ProgressFunc func(percent int)

// Coarse progress milestones. Chapter rendering interpolates between
// the font-ready floor and the rendered ceiling. The archive and
// package document are parsed before any font fetch, so archive-level
// failures never cost a network round trip.
const (
	progressStart          = 0
	progressArchiveOpened  = 5
	progressManifestParsed = 10
	progressFontReady      = 15
	progressRendered       = 95
	progressDone           = 100
)

// Options configure one conversion pipeline.
type Options struct {
	// Font supplies the embeddable TrueType font. Defaults to fetching
	// from DefaultFontURLs.
	Font FontSource
	// Progress, if set, receives percentage milestones.
	Progress ProgressFunc
	// Metrics overrides page geometry; zero value means DefaultMetrics.
	Metrics PageMetrics
	Logger  *zap.Logger
}

// Result is the outcome of one successful conversion.
type Result struct {
	PDF      []byte
	Preview  string // capped plain-text excerpt for summarization
	Title    string
	Pages    int
	Chapters int // spine entries actually rendered
}

// Pipeline orchestrates one EPUB to PDF conversion. A pipeline value
// may be reused; each Convert call owns its own document and cursor
// state, so a failed file never corrupts the next one.
type Pipeline struct {
	opts Options
	log  *zap.Logger
}

// NewPipeline creates a conversion pipeline.
func NewPipeline(opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{opts: opts, log: log}
}

// Convert runs the full pipeline on one EPUB byte stream.
func (p *Pipeline) Convert(ctx context.Context, data []byte) (*Result, error) {
	report := monotonic(p.opts.Progress)
	report(progressStart)

	reader, err := epub.Open(data)
	if err != nil {
		return nil, err
	}
	if err := reader.ValidateMimetype(); err != nil {
		p.log.Warn("mimetype check failed", zap.Error(err))
	}
	report(progressArchiveOpened)

	opfData, err := reader.ReadFile(reader.OPFPath())
	if err != nil {
		return nil, fmt.Errorf("%w: package document %s unreadable: %v",
			epub.ErrMalformedArchive, reader.OPFPath(), err)
	}
	opf, err := epub.ParseOPF(opfData)
	if err != nil {
		return nil, err
	}
	report(progressManifestParsed)

	fontBytes, err := p.loadFont(ctx)
	if err != nil {
		return nil, err
	}
	report(progressFontReady)

	m := p.opts.Metrics
	if m == (PageMetrics{}) {
		m = DefaultMetrics()
	}

	doc := NewAssembler(m, fontBytes)
	doc.SetDocInfo(opf.Metadata.Title, authorOf(opf))
	pag := newPaginator(doc, m, reader, p.log)

	p.renderCover(reader, opf, pag)

	rendered := 0
	total := len(opf.Spine)
	for i, ref := range opf.Spine {
		if p.renderChapter(reader, opf, pag, ref) {
			rendered++
		}
		report(interpolate(progressFontReady, progressRendered, i+1, total))
	}
	if rendered == 0 {
		p.log.Warn("no spine entry could be rendered", zap.Int("spine_size", total))
	}

	pdfBytes, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	report(progressDone)

	return &Result{
		PDF:      pdfBytes,
		Preview:  pag.preview.String(),
		Title:    opf.Metadata.Title,
		Pages:    doc.PageCount(),
		Chapters: rendered,
	}, nil
}

func (p *Pipeline) loadFont(ctx context.Context) ([]byte, error) {
	src := p.opts.Font
	if src == nil {
		src = &RemoteFont{URLs: DefaultFontURLs}
	}
	fontBytes, err := src.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrFontUnavailable) {
			err = fmt.Errorf("%w: %v", ErrFontUnavailable, err)
		}
		return nil, err
	}
	return fontBytes, nil
}

// renderChapter renders one spine entry. Missing or unparseable
// chapters are skipped with a warning; only the return value tells the
// caller whether anything was drawn.
func (p *Pipeline) renderChapter(reader *epub.Reader, opf *epub.OPF, pag *paginator, ref epub.SpineItem) bool {
	item, ok := opf.Manifest[ref.IDRef]
	if !ok {
		p.log.Warn("spine item not in manifest, skipping", zap.String("idref", ref.IDRef))
		return false
	}
	if !isXHTML(item.MediaType) {
		p.log.Debug("spine item is not XHTML, skipping",
			zap.String("idref", ref.IDRef), zap.String("media_type", item.MediaType))
		return false
	}

	chapterPath, ok := epub.ResolveHref(reader.OPFPath(), item.Href)
	if !ok {
		p.log.Warn("spine item href unusable, skipping", zap.String("href", item.Href))
		return false
	}

	data, err := reader.ReadFile(chapterPath)
	if err != nil {
		p.log.Warn("chapter resource missing, skipping",
			zap.String("path", chapterPath), zap.Error(err))
		return false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		p.log.Warn("failed to parse chapter, skipping",
			zap.String("path", chapterPath), zap.Error(err))
		return false
	}

	pag.consume(chapterPath, Linearize(doc))
	pag.endChapter()
	return true
}

// renderCover draws the declared cover image, when there is one, on its
// own page before the spine content. Failures degrade like any other
// image placement.
func (p *Pipeline) renderCover(reader *epub.Reader, opf *epub.OPF, pag *paginator) {
	href, ok := opf.FindCoverImage()
	if !ok {
		return
	}
	coverPath, ok := epub.ResolveHref(reader.OPFPath(), href)
	if !ok {
		return
	}
	raw, err := reader.ReadFile(coverPath)
	if err != nil {
		p.log.Warn("cover image missing, skipping", zap.String("path", coverPath))
		return
	}
	if err := pag.drawImage(coverPath, raw); err != nil {
		p.log.Warn("cover image placement failed, skipping",
			zap.String("path", coverPath), zap.Error(err))
		return
	}
	pag.newPage()
}

// isXHTML checks if a media type indicates an (X)HTML content file. An
// empty media type (fallback-parsed manifests) is given the benefit of
// the doubt.
func isXHTML(mediaType string) bool {
	return mediaType == "" || strings.Contains(mediaType, "html")
}

func authorOf(opf *epub.OPF) string {
	for _, c := range opf.Metadata.Creators {
		if c.Role == "" || c.Role == "aut" {
			return c.Name
		}
	}
	if len(opf.Metadata.Creators) > 0 {
		return opf.Metadata.Creators[0].Name
	}
	return ""
}

// monotonic wraps a progress callback so delivered values never
// decrease and stay within 0-100.
func monotonic(fn ProgressFunc) ProgressFunc {
	last := -1
	return func(percent int) {
		if fn == nil {
			return
		}
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		if percent <= last {
			return
		}
		last = percent
		fn(percent)
	}
}

func interpolate(floor, ceiling, done, total int) int {
	if total <= 0 {
		return ceiling
	}
	return floor + (ceiling-floor)*done/total
}
