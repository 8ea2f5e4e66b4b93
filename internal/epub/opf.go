package epub

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ErrNoChapters indicates that the spine resolves to zero entries, so
// there is nothing to render.
var ErrNoChapters = errors.New("no chapters: spine is empty")

// opfPackage represents the OPF XML structure
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

// opfMetadata represents the metadata section
type opfMetadata struct {
	Title      []string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator    []opfCreator    `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language   []string        `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Meta       []opfMeta       `xml:"meta"`
}

// opfCreator represents a creator element
type opfCreator struct {
	Name string `xml:",chardata"`
	Role string `xml:"http://www.idpf.org/2007/opf role,attr"`
}

// opfIdentifier represents an identifier element
type opfIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

// opfMeta represents a meta element (EPUB 2.0 style)
type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

// opfManifest represents the manifest section
type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

// opfManifestItem represents an item in the manifest
type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// opfSpine represents the spine section
type opfSpine struct {
	ItemRefs []opfItemRef `xml:"itemref"`
}

// opfItemRef represents an itemref in the spine
type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// ParseOPF parses a package document and returns manifest and spine.
// Manifest hrefs stay relative to the package document's directory.
//
// Parsing runs in two passes: a strict encoding/xml unmarshal first, and
// when that yields nothing (namespace-mangled or outright broken XML) a
// local-name scan over an etree document. Real-world EPUBs need both.
func ParseOPF(content []byte) (*OPF, error) {
	opf := &OPF{
		Manifest: make(map[string]ManifestItem),
	}

	var pkg opfPackage
	strictErr := xml.Unmarshal(content, &pkg)
	if strictErr == nil {
		opf.Metadata = parseMetadata(&pkg.Metadata, pkg.UniqueID)

		for _, item := range pkg.Manifest.Items {
			mi := ManifestItem{
				ID:        item.ID,
				Href:      item.Href,
				MediaType: item.MediaType,
			}
			if item.Properties != "" {
				mi.Properties = strings.Fields(item.Properties)
			}
			opf.Manifest[item.ID] = mi
		}

		for _, ref := range pkg.Spine.ItemRefs {
			opf.Spine = append(opf.Spine, SpineItem{
				IDRef:  ref.IDRef,
				Linear: ref.Linear != "no",
			})
		}
	}

	if len(opf.Manifest) == 0 {
		scanManifestFallback(content, opf)
	}
	if len(opf.Spine) == 0 {
		scanSpineFallback(content, opf)
	}

	if len(opf.Spine) == 0 {
		if strictErr != nil {
			return nil, fmt.Errorf("%w (package document unparseable: %v)", ErrNoChapters, strictErr)
		}
		return nil, ErrNoChapters
	}

	return opf, nil
}

// scanManifestFallback collects <item> children of whichever element is
// locally named "manifest", ignoring namespace prefixes entirely.
func scanManifestFallback(content []byte, opf *OPF) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return
	}
	walkElements(doc.Root(), func(e *etree.Element) {
		if e.Tag != "manifest" {
			return
		}
		for _, child := range e.ChildElements() {
			if child.Tag != "item" {
				continue
			}
			id := child.SelectAttrValue("id", "")
			href := child.SelectAttrValue("href", "")
			if id == "" || href == "" {
				continue
			}
			opf.Manifest[id] = ManifestItem{
				ID:        id,
				Href:      href,
				MediaType: child.SelectAttrValue("media-type", ""),
			}
		}
	})
}

// scanSpineFallback collects <itemref> children of whichever element is
// locally named "spine".
func scanSpineFallback(content []byte, opf *OPF) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return
	}
	walkElements(doc.Root(), func(e *etree.Element) {
		if e.Tag != "spine" {
			return
		}
		for _, child := range e.ChildElements() {
			if child.Tag != "itemref" {
				continue
			}
			idref := child.SelectAttrValue("idref", "")
			if idref == "" {
				continue
			}
			opf.Spine = append(opf.Spine, SpineItem{
				IDRef:  idref,
				Linear: child.SelectAttrValue("linear", "") != "no",
			})
		}
	})
}

func walkElements(e *etree.Element, fn func(*etree.Element)) {
	if e == nil {
		return
	}
	fn(e)
	for _, child := range e.ChildElements() {
		walkElements(child, fn)
	}
}

// parseMetadata parses the metadata section
func parseMetadata(meta *opfMetadata, uniqueID string) Metadata {
	var md Metadata

	if len(meta.Title) > 0 {
		md.Title = strings.TrimSpace(meta.Title[0])
	}
	if len(meta.Language) > 0 {
		md.Language = meta.Language[0]
	}

	// Identifier: prefer the one marked as unique-identifier
	for _, id := range meta.Identifier {
		if id.ID == uniqueID {
			md.Identifier = id.Value
			break
		}
	}
	if md.Identifier == "" && len(meta.Identifier) > 0 {
		md.Identifier = meta.Identifier[0].Value
	}

	for _, creator := range meta.Creator {
		md.Creators = append(md.Creators, Creator{
			Name: strings.TrimSpace(creator.Name),
			Role: creator.Role,
		})
	}

	// EPUB 2.0 cover meta element
	for _, m := range meta.Meta {
		if m.Name == "cover" && m.Content != "" {
			md.CoverID = m.Content
			break
		}
	}

	return md
}

// FindCoverImage finds the cover image in the manifest and returns its
// href relative to the OPF directory.
func (opf *OPF) FindCoverImage() (string, bool) {
	// EPUB 3.0: cover-image property
	for _, item := range opf.Manifest {
		for _, prop := range item.Properties {
			if prop == "cover-image" {
				return item.Href, true
			}
		}
	}

	// EPUB 2.0: meta name="cover"
	if opf.Metadata.CoverID != "" {
		if item, ok := opf.Manifest[opf.Metadata.CoverID]; ok {
			return item.Href, true
		}
	}

	return "", false
}
