package converter

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// EventKind discriminates the content event variants.
type EventKind int

const (
	// EventText carries a whitespace-collapsed text run.
	EventText EventKind = iota
	// EventImage carries the raw, unresolved src/xlink:href value.
	EventImage
	// EventNewline is a forced paragraph or line break.
	EventNewline
)

// Event is one element of the flat content stream a chapter linearizes
// into. Events are produced in document order and consumed in that
// order by the paginator.
type Event struct {
	Kind EventKind
	Text string // EventText only
	Href string // EventImage only
}

// elemClass is the rendering category of a markup element, computed
// once per element instead of scattering tag-name comparisons.
type elemClass int

const (
	classInline elemClass = iota // descend, no breaks
	classSkip                    // neither text nor children are emitted
	classImage                   // emit one Image event, do not descend
	classHeading                 // block that also breaks before its children
	classBlock                   // break after children
	classBreak                   // unconditional line break
)

var elemClasses = map[string]elemClass{
	"head":   classSkip,
	"style":  classSkip,
	"script": classSkip,
	"title":  classSkip,
	"meta":   classSkip,
	"link":   classSkip,

	"img":   classImage,
	"image": classImage, // SVG image element
	"svg":   classImage, // wrapper; href taken from the contained image

	"h1": classHeading,
	"h2": classHeading,
	"h3": classHeading,
	"h4": classHeading,
	"h5": classHeading,
	"h6": classHeading,

	"p":          classBlock,
	"div":        classBlock,
	"li":         classBlock,
	"blockquote": classBlock,
	"section":    classBlock,
	"article":    classBlock,

	"br": classBreak,
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Linearize walks a parsed chapter document rooted at its body (or the
// document root if there is no body) and materializes the ordered
// content event sequence for one chapter.
func Linearize(doc *goquery.Document) []Event {
	var events []Event

	body := doc.Find("body")
	if body.Length() > 0 {
		for _, n := range body.Nodes {
			walk(n, &events)
		}
		return events
	}

	for _, n := range doc.Nodes {
		walk(n, &events)
	}
	return events
}

func walk(n *html.Node, out *[]Event) {
	switch n.Type {
	case html.TextNode:
		collapsed := whitespaceRe.ReplaceAllString(n.Data, " ")
		if strings.TrimSpace(collapsed) != "" {
			*out = append(*out, Event{Kind: EventText, Text: collapsed})
		}
		return
	case html.ElementNode:
		// handled below
	case html.DocumentNode:
		walkChildren(n, out)
		return
	default:
		// comments, doctypes
		return
	}

	switch classify(n) {
	case classSkip:
		return
	case classImage:
		if href, ok := imageHref(n); ok {
			*out = append(*out, Event{Kind: EventImage, Href: href})
		}
		return
	case classBreak:
		*out = append(*out, Event{Kind: EventNewline})
		return
	case classHeading:
		// two breaks before, so headings stay separated even when the
		// preceding sibling was inline text
		*out = append(*out, Event{Kind: EventNewline}, Event{Kind: EventNewline})
		walkChildren(n, out)
		*out = append(*out, Event{Kind: EventNewline})
	case classBlock:
		walkChildren(n, out)
		*out = append(*out, Event{Kind: EventNewline})
	default:
		walkChildren(n, out)
	}
}

func walkChildren(n *html.Node, out *[]Event) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, out)
	}
}

func classify(n *html.Node) elemClass {
	if class, ok := elemClasses[strings.ToLower(n.Data)]; ok {
		return class
	}
	return classInline
}

// imageHref extracts the raw reference from an image-class element. For
// an svg wrapper the first contained image element supplies it.
func imageHref(n *html.Node) (string, bool) {
	if strings.EqualFold(n.Data, "svg") {
		if img := findImageNode(n); img != nil {
			return refAttr(img)
		}
		return "", false
	}
	return refAttr(n)
}

func findImageNode(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			name := strings.ToLower(c.Data)
			if name == "image" || name == "img" {
				return c
			}
			if found := findImageNode(c); found != nil {
				return found
			}
		}
	}
	return nil
}

func refAttr(n *html.Node) (string, bool) {
	for _, a := range n.Attr {
		switch {
		case a.Key == "src":
			return a.Val, true
		case a.Key == "xlink:href",
			a.Key == "href" && a.Namespace == "xlink",
			a.Key == "href" && strings.EqualFold(n.Data, "image"):
			return a.Val, true
		}
	}
	return "", false
}
