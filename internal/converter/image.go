package converter

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var errZeroSizeImage = errors.New("image has zero dimension")

// imageFormat is the output route chosen for an image resource.
type imageFormat int

const (
	formatJPEG imageFormat = iota
	formatPNG
	formatWEBP
	formatBMP
)

// preparedImage holds intrinsic pixel dimensions plus bytes in a form
// the PDF writer can embed directly.
type preparedImage struct {
	data   []byte
	typ    string // gofpdf image type: "JPEG" or "PNG"
	width  int
	height int
}

// chooseFormat routes an image by file extension. Substring containment
// (not exact match) is deliberate leniency for sloppy extensions like
// "png?v=2" seen in the wild.
func chooseFormat(path string) imageFormat {
	ext := ""
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		ext = strings.ToLower(path[i+1:])
	}
	switch {
	case strings.Contains(ext, "png"):
		return formatPNG
	case strings.Contains(ext, "webp"):
		return formatWEBP
	case strings.Contains(ext, "bmp"):
		return formatBMP
	default:
		return formatJPEG
	}
}

// prepareImage decodes raw resource bytes and converts them into an
// embeddable form. JPEG- and PNG-routed bytes whose signature confirms
// the routed container pass through untouched; everything else is
// decoded and re-encoded. WEBP and BMP have no PDF stream equivalent,
// so those routes transcode losslessly to PNG.
func prepareImage(path string, raw []byte) (*preparedImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}

	format := chooseFormat(path)

	switch format {
	case formatJPEG:
		if filetype.Is(raw, "jpg") {
			return &preparedImage{data: raw, typ: "JPEG", width: cfg.Width, height: cfg.Height}, nil
		}
	case formatPNG:
		if filetype.Is(raw, "png") {
			return &preparedImage{data: raw, typ: "PNG", width: cfg.Width, height: cfg.Height}, nil
		}
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	typ := "JPEG"
	encFormat := imaging.JPEG
	if format != formatJPEG {
		typ = "PNG"
		encFormat = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, encFormat); err != nil {
		return nil, fmt.Errorf("re-encode image as %s: %w", typ, err)
	}

	b := src.Bounds()
	return &preparedImage{data: buf.Bytes(), typ: typ, width: b.Dx(), height: b.Dy()}, nil
}
