// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
)

const (
	docxMaxFileSize  = 50 << 20
	docxMaxEntries   = 1000
	docxDocumentPart = "word/document.xml"
	docxContentTypes = "[Content_Types].xml"
	docxStylesPart   = "word/styles.xml"
	docxRelsPart     = "word/_rels/document.xml.rels"
	docxMediaPrefix  = "word/media/"
)

var (
	errDocxTooLarge = errors.New("file too large")
	errDocxEmpty    = errors.New("empty file")
)

// docxRun is a span of paragraph text sharing formatting and link target.
type docxRun struct {
	Text   string
	Bold   bool
	Italic bool
	LinkID string // relationship id of the enclosing hyperlink
	Anchor string // bookmark anchor of the enclosing hyperlink
}

// docxParagraph is a paragraph as stored in the document part.
type docxParagraph struct {
	StyleID string
	Runs    []docxRun
}

// Text returns the concatenated run text.
func (p docxParagraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// docxBlock is one top-level body element: a paragraph or a table.
type docxBlock struct {
	Paragraph *docxParagraph
	Table     [][]string // cell texts, merged cells repeated per grid column
}

// docxMedia is an embedded media entry.
type docxMedia struct {
	Name string
	Size uint64
}

// docxPackage is a validated Word archive.
type docxPackage struct {
	zr    *zip.ReadCloser
	files map[string]*zip.File
}

// openDocx validates the archive at p. File access errors are returned
// unchanged; anything else means the file is not a usable Word document.
func openDocx(p string) (*docxPackage, error) {
	st, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		return nil, errDocxEmpty
	}
	if st.Size() > docxMaxFileSize {
		return nil, fmt.Errorf("%w: %.1fMB", errDocxTooLarge, float64(st.Size())/(1<<20))
	}

	zr, err := zip.OpenReader(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, err
		}
		return nil, fmt.Errorf("corrupt or invalid DOCX file: %w", err)
	}

	pkg := &docxPackage{zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		pkg.files[f.Name] = f
	}
	for _, required := range []string{docxDocumentPart, docxContentTypes} {
		if _, ok := pkg.files[required]; !ok {
			zr.Close()
			return nil, fmt.Errorf("invalid DOCX structure: missing %s", required)
		}
	}
	return pkg, nil
}

func (d *docxPackage) Close() error {
	return d.zr.Close()
}

func (d *docxPackage) complex() bool {
	return len(d.files) > docxMaxEntries
}

func (d *docxPackage) open(name string) (io.ReadCloser, error) {
	f, ok := d.files[name]
	if !ok {
		return nil, fmt.Errorf("%s not found in archive", name)
	}
	return f.Open()
}

// media lists word/media entries sorted by name.
func (d *docxPackage) media() []docxMedia {
	var out []docxMedia
	for name, f := range d.files {
		if strings.HasPrefix(name, docxMediaPrefix) && !strings.HasSuffix(name, "/") {
			out = append(out, docxMedia{Name: path.Base(name), Size: f.UncompressedSize64})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func attr(se xml.StartElement, local string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// toggleOn reads an OOXML on/off property such as <w:b/> or <w:b w:val="0"/>.
func toggleOn(se xml.StartElement) bool {
	v, ok := attr(se, "val")
	if !ok {
		return true
	}
	switch strings.ToLower(v) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

// styles maps paragraph style ids to their display names. The default
// paragraph style is stored under the empty id.
func (d *docxPackage) styles() map[string]string {
	out := map[string]string{"": "Normal"}
	rc, err := d.open(docxStylesPart)
	if err != nil {
		return out
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		id        string
		isDefault bool
		inStyle   bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "style":
				typ, _ := attr(t, "type")
				inStyle = typ == "" || typ == "paragraph"
				id, _ = attr(t, "styleId")
				def, _ := attr(t, "default")
				isDefault = def == "1" || def == "true"
			case "name":
				if !inStyle {
					continue
				}
				if name, ok := attr(t, "val"); ok && name != "" {
					out[id] = name
					if isDefault {
						out[""] = name
					}
				}
			}
		case xml.EndElement:
			if t.Name.Local == "style" {
				inStyle = false
			}
		}
	}
}

// hyperlinks maps relationship ids to external targets.
func (d *docxPackage) hyperlinks() map[string]string {
	out := make(map[string]string)
	rc, err := d.open(docxRelsPart)
	if err != nil {
		return out
	}
	defer rc.Close()

	var rels struct {
		Relationships []struct {
			ID     string `xml:"Id,attr"`
			Type   string `xml:"Type,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return out
	}
	for _, r := range rels.Relationships {
		if strings.HasSuffix(r.Type, "/hyperlink") {
			out[r.ID] = r.Target
		}
	}
	return out
}

// body returns the top-level paragraphs and tables of the document part in
// order.
func (d *docxPackage) body() ([]docxBlock, error) {
	rc, err := d.open(docxDocumentPart)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var blocks []docxBlock
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return blocks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", docxDocumentPart, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "p":
			p, err := readParagraph(dec)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, docxBlock{Paragraph: &p})
		case "tbl":
			t, err := readTable(dec)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, docxBlock{Table: t})
		}
	}
}

// readParagraph consumes tokens up to the end of the current w:p element.
func readParagraph(dec *xml.Decoder) (docxParagraph, error) {
	var (
		p      docxParagraph
		run    *docxRun
		inText bool
		inRPr  bool
		inPPr  bool
		linkID string
		anchor string
		depth  = 1
	)
	appendText := func(s string) {
		if run == nil {
			p.Runs = append(p.Runs, docxRun{LinkID: linkID, Anchor: anchor})
			run = &p.Runs[len(p.Runs)-1]
		}
		run.Text += s
	}

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return p, fmt.Errorf("parse paragraph: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "pStyle":
				p.StyleID, _ = attr(t, "val")
			case "hyperlink":
				linkID, _ = attr(t, "id")
				anchor, _ = attr(t, "anchor")
			case "r":
				p.Runs = append(p.Runs, docxRun{LinkID: linkID, Anchor: anchor})
				run = &p.Runs[len(p.Runs)-1]
			case "pPr":
				inPPr = true
			case "rPr":
				inRPr = true
			case "b":
				if inRPr && run != nil {
					run.Bold = toggleOn(t)
				}
			case "i":
				if inRPr && run != nil {
					run.Italic = toggleOn(t)
				}
			case "t":
				inText = true
			case "tab":
				if !inPPr {
					appendText("\t")
				}
			case "br", "cr":
				appendText("\n")
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inText = false
			case "pPr":
				inPPr = false
			case "rPr":
				inRPr = false
			case "r":
				run = nil
			case "hyperlink":
				linkID, anchor = "", ""
			}
		case xml.CharData:
			if inText {
				appendText(string(t))
			}
		}
	}
	return p, nil
}

// readTable consumes tokens up to the end of the current w:tbl element.
// Nested tables are skipped.
func readTable(dec *xml.Decoder) ([][]string, error) {
	var (
		rows  [][]string
		row   []string
		cell  []string
		span  = 1
		depth = 1
	)
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse table: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				continue
			case "p":
				p, err := readParagraph(dec)
				if err != nil {
					return nil, err
				}
				cell = append(cell, p.Text())
				continue
			case "tr":
				row = nil
			case "tc":
				cell, span = nil, 1
			case "gridSpan":
				if v, ok := attr(t, "val"); ok {
					if n, err := strconv.Atoi(v); err == nil && n > 1 {
						span = min(n, DocxMaxTableCols)
					}
				}
			}
			depth++
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "tc":
				text := strings.Join(cell, "\n")
				for range span {
					if len(row) >= DocxMaxTableCols {
						break
					}
					row = append(row, text)
				}
			case "tr":
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}
