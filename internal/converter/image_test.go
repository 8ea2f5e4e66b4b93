package converter

import (
	"bytes"
	"image"
	"image/gif"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

func TestChooseFormat(t *testing.T) {
	tests := []struct {
		path string
		want imageFormat
	}{
		{"Images/cover.png", formatPNG},
		{"Images/COVER.PNG", formatPNG},
		{"pic.apng", formatPNG}, // substring containment is deliberate
		{"pic.png?v=2", formatPNG},
		{"photo.webp", formatWEBP},
		{"scan.bmp", formatBMP},
		{"photo.jpg", formatJPEG},
		{"photo.jpeg", formatJPEG},
		{"animation.gif", formatJPEG}, // default route
		{"noextension", formatJPEG},
		{"dir.png/actual.jpg", formatJPEG}, // extension is after the last dot
	}

	for _, tt := range tests {
		if got := chooseFormat(tt.path); got != tt.want {
			t.Errorf("chooseFormat(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestPrepareImagePNGPassthrough(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(20, 30)); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	raw := buf.Bytes()

	img, err := prepareImage("Images/pic.png", raw)
	if err != nil {
		t.Fatalf("prepareImage failed: %v", err)
	}
	if img.typ != "PNG" {
		t.Errorf("typ = %q, want PNG", img.typ)
	}
	if !bytes.Equal(img.data, raw) {
		t.Error("PNG bytes were re-encoded, want passthrough")
	}
	if img.width != 20 || img.height != 30 {
		t.Errorf("dimensions = %dx%d, want 20x30", img.width, img.height)
	}
}

func TestPrepareImageGIFReencodedToJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, testImage(12, 8), nil); err != nil {
		t.Fatalf("gif encode: %v", err)
	}

	img, err := prepareImage("anim.gif", buf.Bytes())
	if err != nil {
		t.Fatalf("prepareImage failed: %v", err)
	}
	if img.typ != "JPEG" {
		t.Errorf("typ = %q, want JPEG (default route)", img.typ)
	}
	if img.width != 12 || img.height != 8 {
		t.Errorf("dimensions = %dx%d, want 12x8", img.width, img.height)
	}
}

func TestPrepareImageBMPTranscodedToPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, testImage(5, 5)); err != nil {
		t.Fatalf("bmp encode: %v", err)
	}

	img, err := prepareImage("scan.bmp", buf.Bytes())
	if err != nil {
		t.Fatalf("prepareImage failed: %v", err)
	}
	// BMP has no PDF stream equivalent; the route transcodes to PNG
	if img.typ != "PNG" {
		t.Errorf("typ = %q, want PNG", img.typ)
	}
}

func TestPrepareImageMismatchedExtension(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(6, 6)); err != nil {
		t.Fatalf("png encode: %v", err)
	}

	// PNG bytes behind a .jpg extension: routed JPEG, signature says
	// otherwise, so the pixels are re-encoded instead of passed through
	img, err := prepareImage("photo.jpg", buf.Bytes())
	if err != nil {
		t.Fatalf("prepareImage failed: %v", err)
	}
	if img.typ != "JPEG" {
		t.Errorf("typ = %q, want JPEG", img.typ)
	}
	if bytes.Equal(img.data, buf.Bytes()) {
		t.Error("mismatched bytes were passed through, want re-encode")
	}
}

func TestPrepareImageGarbage(t *testing.T) {
	if _, err := prepareImage("pic.png", []byte("definitely not pixels")); err == nil {
		t.Error("prepareImage on garbage succeeded, want error")
	}
}
