// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/leseb/filereader/pkg/core/options"
)

// XML renders XML documents pretty-printed, with a per-tag structure summary
// in AI mode.
type XML struct {
	base
}

// NewXML is the Factory for xml files.
func NewXML(opts options.Options, logger *slog.Logger) Handler {
	return &XML{base: newBase(opts, logger)}
}

type xmlElement struct {
	name     xml.Name // Space holds the raw prefix
	attrs    []xml.Attr
	text     string // character data before the first child
	tail     []string
	children []*xmlElement
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func isNamespaceDecl(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}

// XMLTagSummary describes every occurrence of one tag.
type XMLTagSummary struct {
	Tag           string
	Count         int
	HasAttributes bool
	HasText       bool
	Children      []string // first-seen order
}

// XMLAnalysis summarizes an XML document.
type XMLAnalysis struct {
	RootElement       string
	Namespace         string
	TotalElements     int
	MaxDepth          int
	UniqueTags        int
	AttributesCount   int
	TextContentLength int
	Tags              []*XMLTagSummary // first-seen order
}

// Read implements Handler.
func (h *XML) Read(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	root, err := parseXML(content)
	if err != nil {
		h.logger.Warn("invalid XML, returning raw content", "file", fileName(path), "error", err)
		return h.standard(fmt.Sprintf("<!-- XML Parse Error: %v -->\n", err) + string(content)), nil
	}

	pretty := prettyXML(root)
	var out string
	if h.opts.IsAI() {
		out = h.ai(pretty, analyzeXML(root), path)
	} else {
		out = h.standard(pretty)
	}
	return h.finish(out, path, DocXML)
}

func (h *XML) standard(body string) string {
	if h.opts.OutputFormat == options.FormatMarkdown {
		return fence("xml", body)
	}
	return body
}

func (h *XML) ai(pretty string, a XMLAnalysis, path string) string {
	ns := a.Namespace
	if ns == "" {
		ns = "None"
	}
	var b strings.Builder
	b.WriteString("## 🔧 XML Document Analysis\n")
	fmt.Fprintf(&b, "- **File:** %s\n", fileName(path))
	fmt.Fprintf(&b, "- **Root Element:** %s\n", a.RootElement)
	fmt.Fprintf(&b, "- **Namespace:** %s\n", ns)
	fmt.Fprintf(&b, "- **Total Elements:** %d\n", a.TotalElements)
	fmt.Fprintf(&b, "- **Unique Tags:** %d\n", a.UniqueTags)
	fmt.Fprintf(&b, "- **Max Depth:** %d\n", a.MaxDepth)
	fmt.Fprintf(&b, "- **Attributes:** %d\n", a.AttributesCount)
	fmt.Fprintf(&b, "- **Text Content:** %d characters\n\n", a.TextContentLength)

	b.WriteString("### 🗂️ XML Structure Overview\n")
	for _, t := range a.Tags {
		fmt.Fprintf(&b, "- **%s** (%dx)", t.Tag, t.Count)
		if t.HasAttributes {
			b.WriteString(" (with attributes)")
		}
		if t.HasText {
			b.WriteString(" (contains text)")
		}
		if len(t.Children) > 0 {
			b.WriteString(" → " + strings.Join(t.Children, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n### 📋 Raw XML Content\n")
	b.WriteString(fence("xml", pretty))
	return b.String()
}

// parseXML builds an element tree. Element names keep their raw prefixes so
// the document can be printed back unchanged.
func parseXML(data []byte) (*xmlElement, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var (
		root  *xmlElement
		stack []*xmlElement
	)
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &xmlElement{name: t.Name, attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element </%s>", qualified(t.Name))
			}
			top := stack[len(stack)-1]
			if top.name != t.Name {
				return nil, fmt.Errorf("element <%s> closed by </%s>", qualified(top.name), qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return nil, errors.New("character data outside root element")
				}
				continue
			}
			top := stack[len(stack)-1]
			if len(top.children) == 0 {
				top.text += string(t)
			} else {
				top.tail = append(top.tail, string(t))
			}
		}
	}
	if root == nil {
		return nil, errors.New("no root element")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("element <%s> is not closed", qualified(stack[len(stack)-1].name))
	}
	return root, nil
}

// rootNamespace resolves the namespace URI of the root element from its own
// declarations.
func rootNamespace(root *xmlElement) string {
	want := "xmlns"
	for _, a := range root.attrs {
		if root.name.Space == "" && a.Name.Space == "" && a.Name.Local == want {
			return a.Value
		}
		if root.name.Space != "" && a.Name.Space == want && a.Name.Local == root.name.Space {
			return a.Value
		}
	}
	return ""
}

func analyzeXML(root *xmlElement) XMLAnalysis {
	a := XMLAnalysis{
		RootElement: root.name.Local,
		Namespace:   rootNamespace(root),
	}
	byTag := make(map[string]*XMLTagSummary)

	var walk func(el *xmlElement, depth int)
	walk = func(el *xmlElement, depth int) {
		a.MaxDepth = max(a.MaxDepth, depth)
		a.TotalElements++

		tag := el.name.Local
		s, ok := byTag[tag]
		if !ok {
			s = &XMLTagSummary{Tag: tag}
			byTag[tag] = s
			a.Tags = append(a.Tags, s)
		}
		s.Count++

		for _, attr := range el.attrs {
			if isNamespaceDecl(attr) {
				continue
			}
			a.AttributesCount++
			s.HasAttributes = true
		}
		if text := strings.TrimSpace(el.text); text != "" {
			a.TextContentLength += utf8.RuneCountInString(text)
			s.HasText = true
		}

		for _, c := range el.children {
			child := c.name.Local
			found := false
			for _, existing := range s.Children {
				if existing == child {
					found = true
					break
				}
			}
			if !found {
				s.Children = append(s.Children, child)
			}
			walk(c, depth+1)
		}
	}
	walk(root, 0)
	a.UniqueTags = len(a.Tags)
	return a
}

// prettyXML prints the tree with two-space indentation.
func prettyXML(root *xmlElement) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" ?>` + "\n")
	writeXMLElement(&b, root, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func writeXMLElement(b *strings.Builder, el *xmlElement, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent + "<" + qualified(el.name))
	for _, a := range el.attrs {
		fmt.Fprintf(b, ` %s="%s"`, qualified(a.Name), escapeXML(a.Value))
	}

	text := strings.TrimSpace(el.text)
	switch {
	case len(el.children) == 0 && text == "":
		b.WriteString("/>\n")
	case len(el.children) == 0:
		b.WriteString(">" + escapeXML(text) + "</" + qualified(el.name) + ">\n")
	default:
		b.WriteString(">\n")
		if text != "" {
			b.WriteString(indent + "  " + escapeXML(text) + "\n")
		}
		for _, c := range el.children {
			writeXMLElement(b, c, depth+1)
		}
		for _, t := range el.tail {
			if t = strings.TrimSpace(t); t != "" {
				b.WriteString(indent + "  " + escapeXML(t) + "\n")
			}
		}
		b.WriteString(indent + "</" + qualified(el.name) + ">\n")
	}
}
