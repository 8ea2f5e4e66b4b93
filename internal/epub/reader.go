package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Reader provides access to the contents of an EPUB container.
type Reader struct {
	files   map[string]*zip.File
	opfPath string
}

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

const containerPath = "META-INF/container.xml"

// ErrMalformedArchive indicates that the container descriptor or the
// package document path is missing or unreadable.
var ErrMalformedArchive = errors.New("malformed archive")

// fullPathRe recovers the rootfile path from a container.xml that
// encoding/xml refuses to parse.
var fullPathRe = regexp.MustCompile(`full-path\s*=\s*["']([^"']+)["']`)

// Open opens an EPUB from raw bytes and locates its package document.
func Open(data []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %v", ErrMalformedArchive, err)
	}

	r := &Reader{files: make(map[string]*zip.File)}
	for _, f := range zr.File {
		r.files[normalizePath(f.Name)] = f
	}

	if err := r.parseContainer(); err != nil {
		return nil, err
	}
	return r, nil
}

// OPFPath returns the archive path of the package document.
func (r *Reader) OPFPath() string {
	return r.opfPath
}

// Has reports whether the archive contains an entry at path.
func (r *Reader) Has(path string) bool {
	_, ok := r.files[normalizePath(path)]
	return ok
}

// ReadFile reads the contents of a file from the archive.
func (r *Reader) ReadFile(path string) ([]byte, error) {
	path = normalizePath(path)
	f, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// ValidateMimetype checks the EPUB mimetype entry. Callers may treat a
// failure as a warning; plenty of real-world books get this wrong.
func (r *Reader) ValidateMimetype() error {
	content, err := r.ReadFile("mimetype")
	if err != nil {
		return errors.New("mimetype file not found")
	}
	if got := strings.TrimSpace(string(content)); got != "application/epub+zip" {
		return fmt.Errorf("unexpected mimetype %q", got)
	}
	return nil
}

// parseContainer parses META-INF/container.xml to extract the OPF path.
// When strict XML parsing fails, the full-path attribute is recovered
// with a regular expression before giving up.
func (r *Reader) parseContainer() error {
	content, err := r.ReadFile(containerPath)
	if err != nil {
		return fmt.Errorf("%w: %s not found", ErrMalformedArchive, containerPath)
	}

	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		if m := fullPathRe.FindSubmatch(content); m != nil {
			r.opfPath = normalizePath(string(m[1]))
			return nil
		}
		return fmt.Errorf("%w: failed to parse %s: %v", ErrMalformedArchive, containerPath, err)
	}

	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			if rf.FullPath != "" {
				r.opfPath = normalizePath(rf.FullPath)
				return nil
			}
		}
	}

	// If no media-type match, use the first one
	if len(c.Rootfiles.Rootfile) > 0 && c.Rootfiles.Rootfile[0].FullPath != "" {
		r.opfPath = normalizePath(c.Rootfiles.Rootfile[0].FullPath)
		return nil
	}

	return fmt.Errorf("%w: no rootfile path in %s", ErrMalformedArchive, containerPath)
}

// normalizePath normalizes file paths (removes ./ prefix)
func normalizePath(path string) string {
	return strings.TrimPrefix(path, "./")
}
