// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// nodeKind is the data type of a value in a decoded JSON or YAML document.
type nodeKind int

const (
	kindObject nodeKind = iota
	kindArray
	kindString
	kindNumber
	kindBoolean
	kindNull
)

func (k nodeKind) String() string {
	switch k {
	case kindObject:
		return "Object"
	case kindArray:
		return "Array"
	case kindString:
		return "String"
	case kindNumber:
		return "Number"
	case kindBoolean:
		return "Boolean"
	default:
		return "Null"
	}
}

// node is an ordered document tree. Object keys keep their source order.
type node struct {
	kind     nodeKind
	keys     []string // object keys, parallel to children
	children []*node  // object values or array items
	scalar   string   // string value, number literal or "true"/"false"
}

// TreeAnalysis summarizes the shape of a JSON or YAML document.
type TreeAnalysis struct {
	MaxDepth   int
	TotalKeys  int
	DataTypes  []string // in order of first appearance
	Complexity string
}

func analyzeTree(root *node) TreeAnalysis {
	var a TreeAnalysis
	seen := make(map[nodeKind]bool)
	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		a.MaxDepth = max(a.MaxDepth, depth)
		if !seen[n.kind] {
			seen[n.kind] = true
			a.DataTypes = append(a.DataTypes, n.kind.String())
		}
		if n.kind == kindObject {
			a.TotalKeys += len(n.keys)
		}
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	if root != nil {
		walk(root, 0)
	}
	a.Complexity = complexity(a.MaxDepth, a.TotalKeys)
	return a
}

func complexity(depth, keys int) string {
	switch {
	case depth > 4 || keys > 50:
		return "Complex"
	case depth > 2 || keys > 10:
		return "Moderate"
	default:
		return "Simple"
	}
}

const (
	overviewMaxItems = 5
	overviewMaxDepth = 3
)

// overview renders a truncated outline of n: at most five keys per object,
// three levels deep, arrays described by their first item.
func overview(n *node) string {
	return describeNode(n, 0)
}

func describeNode(n *node, depth int) string {
	if depth > overviewMaxDepth {
		return "..."
	}
	indent := strings.Repeat("  ", depth)

	switch n.kind {
	case kindObject:
		if len(n.keys) == 0 {
			return indent + "(empty object)"
		}
		var items []string
		for i, key := range n.keys {
			if i >= overviewMaxItems {
				items = append(items, fmt.Sprintf("%s- ... (%d more keys)", indent, len(n.keys)-overviewMaxItems))
				break
			}
			desc := describeNode(n.children[i], depth+1)
			if strings.Contains(desc, "\n") {
				items = append(items, fmt.Sprintf("%s- **%s:**\n%s", indent, key, desc))
			} else {
				items = append(items, fmt.Sprintf("%s- **%s:** %s", indent, key, desc))
			}
		}
		return strings.Join(items, "\n")
	case kindArray:
		if len(n.children) == 0 {
			return indent + "(empty array)"
		}
		sample := describeNode(n.children[0], depth)
		if len(n.children) == 1 {
			return fmt.Sprintf("%sArray[1]: %s", indent, sample)
		}
		return fmt.Sprintf("%sArray[%d]: %s (and %d more)", indent, len(n.children), sample, len(n.children)-1)
	case kindString:
		preview := n.scalar
		if utf8.RuneCountInString(preview) > 30 {
			preview = string([]rune(preview)[:30]) + "..."
		}
		return `"` + preview + `"`
	case kindNull:
		return "null"
	default:
		return n.scalar
	}
}

// writeJSON renders n as JSON indented with two spaces. Non-ASCII and HTML
// characters are written as-is.
func writeJSON(b *strings.Builder, n *node, depth int) {
	pad := strings.Repeat("  ", depth+1)
	switch n.kind {
	case kindObject:
		if len(n.keys) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{\n")
		for i, key := range n.keys {
			if i > 0 {
				b.WriteString(",\n")
			}
			b.WriteString(pad)
			b.WriteString(quoteJSON(key))
			b.WriteString(": ")
			writeJSON(b, n.children[i], depth+1)
		}
		b.WriteString("\n" + strings.Repeat("  ", depth) + "}")
	case kindArray:
		if len(n.children) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for i, c := range n.children {
			if i > 0 {
				b.WriteString(",\n")
			}
			b.WriteString(pad)
			writeJSON(b, c, depth+1)
		}
		b.WriteString("\n" + strings.Repeat("  ", depth) + "]")
	case kindString:
		b.WriteString(quoteJSON(n.scalar))
	case kindNull:
		b.WriteString("null")
	default:
		b.WriteString(n.scalar)
	}
}

func quoteJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func prettyJSON(n *node) string {
	var b strings.Builder
	writeJSON(&b, n, 0)
	return b.String()
}
