package converter

import (
	"strings"

	"go.uber.org/zap"

	"epub2pdf/internal/epub"
)

// previewLimit caps the plain-text preview accumulated across the whole
// book for later summarization.
const previewLimit = 15000

// resourceReader is the archive access the paginator needs for images.
type resourceReader interface {
	ReadFile(path string) ([]byte, error)
}

// paginator consumes content events and drives page layout. Cursor and
// text buffer are explicit state owned here, never closure captures.
type paginator struct {
	doc *Assembler
	m   PageMetrics
	res resourceReader
	log *zap.Logger

	y            float64
	textBuf      strings.Builder
	preview      strings.Builder
	previewRunes int
}

func newPaginator(doc *Assembler, m PageMetrics, res resourceReader, log *zap.Logger) *paginator {
	p := &paginator{doc: doc, m: m, res: res, log: log}
	p.newPage()
	return p
}

func (p *paginator) contentWidth() float64 {
	return p.m.Width - 2*p.m.Margin
}

func (p *paginator) bottom() float64 {
	return p.m.Height - p.m.Margin
}

func (p *paginator) newPage() {
	p.doc.AddPage()
	p.y = p.m.Margin
}

// consume processes one chapter's event sequence.
func (p *paginator) consume(chapterPath string, events []Event) {
	for _, ev := range events {
		switch ev.Kind {
		case EventText:
			p.textBuf.WriteString(ev.Text)
		case EventNewline:
			p.flushText()
			p.y += p.m.LineHeight / 2
			if p.y > p.bottom() {
				p.newPage()
			}
		case EventImage:
			p.flushText()
			p.placeImage(chapterPath, ev.Href)
		}
	}
}

// endChapter flushes pending text and guarantees vertical separation
// before the next chapter: two line heights or a fresh page.
func (p *paginator) endChapter() {
	p.flushText()
	if p.y+2*p.m.LineHeight > p.bottom() {
		p.newPage()
	} else {
		p.y += 2 * p.m.LineHeight
	}
}

// flushText word-wraps the buffered paragraph and places its lines,
// breaking pages as needed. The flushed text also feeds the capped
// plain-text preview.
func (p *paginator) flushText() {
	text := strings.TrimSpace(p.textBuf.String())
	p.textBuf.Reset()
	if text == "" {
		return
	}

	for _, line := range wrapText(p.doc, text, p.contentWidth()) {
		if p.y+p.m.LineHeight > p.bottom() {
			p.newPage()
		}
		p.doc.TextLine(p.m.Margin, p.y+p.m.FontSize, line)
		p.y += p.m.LineHeight
	}

	p.appendPreview(text)
}

func (p *paginator) appendPreview(text string) {
	remaining := previewLimit - p.previewRunes
	if remaining <= 0 {
		return
	}
	if p.preview.Len() > 0 {
		p.preview.WriteByte('\n')
		p.previewRunes++
		remaining--
		if remaining <= 0 {
			return
		}
	}
	runes := []rune(text)
	if len(runes) > remaining {
		runes = runes[:remaining]
	}
	p.preview.WriteString(string(runes))
	p.previewRunes += len(runes)
}

// placeImage resolves and draws one referenced image. Any failure is
// logged and skipped; a bad image never aborts the chapter.
func (p *paginator) placeImage(chapterPath, href string) {
	target, ok := epub.ResolveHref(chapterPath, href)
	if !ok {
		return
	}
	raw, err := p.res.ReadFile(target)
	if err != nil {
		p.log.Warn("image not found in archive, skipping", zap.String("path", target))
		return
	}
	if err := p.drawImage(target, raw); err != nil {
		p.log.Warn("image placement failed, skipping", zap.String("path", target), zap.Error(err))
	}
}

func (p *paginator) drawImage(path string, raw []byte) error {
	img, err := prepareImage(path, raw)
	if err != nil {
		return err
	}
	if img.width <= 0 || img.height <= 0 {
		return errZeroSizeImage
	}

	// images shrink to fit the content width but never enlarge
	scale := 1.0
	if w := float64(img.width); w > p.contentWidth() {
		scale = p.contentWidth() / w
	}
	w := float64(img.width) * scale
	h := float64(img.height) * scale

	if p.y+h > p.bottom() {
		p.newPage()
	}
	if err := p.doc.DrawImage(path, img, p.m.Margin, p.y, w, h); err != nil {
		return err
	}
	p.y += h + p.m.LineHeight
	return nil
}

// wrapText greedily packs words into lines no wider than width, as
// measured by the document's active font. A single word wider than the
// line is hard-broken on rune boundaries.
func wrapText(doc *Assembler, text string, width float64) []string {
	var lines []string
	var line string

	for _, word := range strings.Fields(text) {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if doc.StringWidth(candidate) <= width {
			line = candidate
			continue
		}
		if line != "" {
			lines = append(lines, line)
			line = ""
		}
		for doc.StringWidth(word) > width {
			i := breakIndex(doc, word, width)
			lines = append(lines, word[:i])
			word = word[i:]
		}
		line = word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// breakIndex returns the byte offset of the longest rune prefix of word
// that fits in width, always at least one rune so wrapping progresses.
func breakIndex(doc *Assembler, word string, width float64) int {
	last := 0
	for i := range word {
		if i == 0 {
			continue
		}
		if doc.StringWidth(word[:i]) > width {
			break
		}
		last = i
	}
	if last == 0 {
		// first rune alone is too wide; emit it anyway
		for i := range word {
			if i > 0 {
				return i
			}
		}
		return len(word)
	}
	return last
}
