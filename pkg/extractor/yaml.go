// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/leseb/filereader/pkg/core/options"
)

// YAML renders YAML documents and detects common configuration sections.
type YAML struct {
	base
}

// NewYAML is the Factory for yaml and yml files.
func NewYAML(opts options.Options, logger *slog.Logger) Handler {
	return &YAML{base: newBase(opts, logger)}
}

// configIndicators are checked in order; the first match wins for a key.
var configIndicators = []struct {
	name       string
	indicators []string
}{
	{"database", []string{"host", "port", "user", "password", "name"}},
	{"server", []string{"host", "port", "ssl", "timeout"}},
	{"api", []string{"url", "key", "token", "endpoint"}},
	{"logging", []string{"level", "format", "file", "handlers"}},
	{"cache", []string{"ttl", "size", "type", "redis"}},
	{"security", []string{"secret", "key", "token", "auth"}},
	{"docker", []string{"image", "ports", "volumes", "env"}},
	{"kubernetes", []string{"replicas", "image", "service", "ingress"}},
}

var titleCaser = cases.Title(language.English)

// YAMLAnalysis extends the tree analysis with configuration hints.
type YAMLAnalysis struct {
	TreeAnalysis
	RootType       string
	TopLevelKeys   []string
	ConfigPatterns []string // unique, in order of first detection
}

// Read implements Handler.
func (h *YAML) Read(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		h.logger.Warn("invalid YAML, returning raw content", "file", fileName(path), "error", err)
		return h.standard(string(content), err), nil
	}

	root, err := yamlTree(&doc)
	if err != nil {
		h.logger.Warn("YAML alias expansion too large, returning raw content", "file", fileName(path), "error", err)
		return h.standard(string(content), err), nil
	}
	formatted, err := reserializeYAML(&doc)
	if err != nil {
		return "", fmt.Errorf("re-serialize YAML: %w", err)
	}

	var out string
	if h.opts.IsAI() {
		out = h.ai(formatted, root, path)
	} else {
		out = h.standard(formatted, nil)
	}
	return h.finish(out, path, DocYAML)
}

func (h *YAML) standard(body string, parseErr error) string {
	if parseErr != nil {
		body = fmt.Sprintf("\n<!-- YAML Parse Error: %v -->\n", parseErr) + body
	}
	if h.opts.OutputFormat == options.FormatMarkdown {
		return fence("yaml", body)
	}
	return body
}

func (h *YAML) ai(formatted string, root *node, path string) string {
	a := analyzeYAML(root)

	var b strings.Builder
	b.WriteString("## ⚙️ YAML Configuration Analysis\n")
	fmt.Fprintf(&b, "- **File:** %s\n", fileName(path))
	fmt.Fprintf(&b, "- **Data Type:** %s\n", a.RootType)
	fmt.Fprintf(&b, "- **Complexity:** %s\n", a.Complexity)
	fmt.Fprintf(&b, "- **Structure Depth:** %d levels\n", a.MaxDepth)
	fmt.Fprintf(&b, "- **Total Keys:** %d\n", a.TotalKeys)
	fmt.Fprintf(&b, "- **Data Types:** %s\n\n", strings.Join(a.DataTypes, ", "))

	if len(a.ConfigPatterns) > 0 {
		b.WriteString("### 🔧 Detected Configuration Types\n")
		for _, p := range a.ConfigPatterns {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}

	if len(a.TopLevelKeys) > 0 {
		b.WriteString("### 🗂️ Top-Level Structure\n")
		for i, key := range root.keys {
			v := root.children[i]
			switch v.kind {
			case kindObject:
				fmt.Fprintf(&b, "- **%s:** Object with %d properties\n", key, len(v.keys))
			case kindArray:
				fmt.Fprintf(&b, "- **%s:** Array with %d items\n", key, len(v.children))
			default:
				fmt.Fprintf(&b, "- **%s:** %s\n", key, v.kind)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("### 📋 YAML Content\n")
	b.WriteString(fence("yaml", formatted))
	return b.String()
}

func analyzeYAML(root *node) YAMLAnalysis {
	a := YAMLAnalysis{TreeAnalysis: analyzeTree(root), RootType: root.kind.String()}
	if root.kind == kindObject {
		a.TopLevelKeys = append([]string(nil), root.keys...)
	}

	seen := make(map[string]bool)
	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		for i, c := range n.children {
			if n.kind == kindObject && depth <= 2 {
				if p := detectConfigPattern(n.keys[i], c); p != "" && !seen[p] {
					seen[p] = true
					a.ConfigPatterns = append(a.ConfigPatterns, p)
				}
			}
			walk(c, depth+1)
		}
	}
	walk(root, 0)
	return a
}

// detectConfigPattern classifies a key by name, or by indicator words found in
// a mapping value.
func detectConfigPattern(key string, value *node) string {
	lower := strings.ToLower(key)
	var rendered string
	if value.kind == kindObject {
		rendered = strings.ToLower(flatten(value))
	}
	for _, ci := range configIndicators {
		if strings.Contains(lower, ci.name) {
			return titleCaser.String(ci.name) + " Configuration"
		}
		if value.kind == kindObject {
			for _, ind := range ci.indicators {
				if strings.Contains(rendered, ind) {
					return "Possible " + titleCaser.String(ci.name) + " Config"
				}
			}
		}
	}
	return ""
}

// flatten joins every key and scalar under n.
func flatten(n *node) string {
	var parts []string
	var walk func(n *node)
	walk = func(n *node) {
		if n.scalar != "" {
			parts = append(parts, n.scalar)
		}
		for i, c := range n.children {
			if n.kind == kindObject {
				parts = append(parts, n.keys[i])
			}
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

// yamlMaxAliasNodes bounds the nodes reached through aliases.
const yamlMaxAliasNodes = 100_000

var errYAMLAliasing = errors.New("document contains excessive aliasing")

// yamlTree converts a decoded YAML node into the shared document tree.
// Aliases are expanded, up to yamlMaxAliasNodes nodes in total.
func yamlTree(doc *yaml.Node) (*node, error) {
	b := &yamlBuilder{}
	root := b.build(doc, false)
	if b.exceeded {
		return nil, errYAMLAliasing
	}
	return root, nil
}

type yamlBuilder struct {
	aliased  int
	exceeded bool
}

func (b *yamlBuilder) build(n *yaml.Node, aliased bool) *node {
	if aliased {
		b.aliased++
		if b.aliased > yamlMaxAliasNodes {
			b.exceeded = true
		}
	}
	if b.exceeded {
		return &node{kind: kindNull}
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return &node{kind: kindNull}
		}
		return b.build(n.Content[0], aliased)
	case yaml.AliasNode:
		if n.Alias == nil {
			return &node{kind: kindNull}
		}
		return b.build(n.Alias, true)
	case yaml.MappingNode:
		out := &node{kind: kindObject}
		for i := 0; i+1 < len(n.Content); i += 2 {
			out.keys = append(out.keys, n.Content[i].Value)
			out.children = append(out.children, b.build(n.Content[i+1], aliased))
		}
		return out
	case yaml.SequenceNode:
		out := &node{kind: kindArray}
		for _, c := range n.Content {
			out.children = append(out.children, b.build(c, aliased))
		}
		return out
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!int", "!!float":
			return &node{kind: kindNumber, scalar: n.Value}
		case "!!bool":
			return &node{kind: kindBoolean, scalar: strings.ToLower(n.Value)}
		case "!!null":
			return &node{kind: kindNull}
		default:
			return &node{kind: kindString, scalar: n.Value}
		}
	default:
		return &node{kind: kindNull}
	}
}

func reserializeYAML(doc *yaml.Node) (string, error) {
	if doc.Kind == 0 || (doc.Kind == yaml.DocumentNode && len(doc.Content) == 0) {
		return "", nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
