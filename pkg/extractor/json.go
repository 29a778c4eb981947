// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/leseb/filereader/pkg/core/options"
)

// JSON renders JSON documents as fenced, pretty-printed blocks.
type JSON struct {
	base
}

// NewJSON is the Factory for json files.
func NewJSON(opts options.Options, logger *slog.Logger) Handler {
	return &JSON{base: newBase(opts, logger)}
}

// Read implements Handler.
func (h *JSON) Read(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	root, err := decodeJSON(content)
	if err != nil {
		h.logger.Warn("invalid JSON, returning raw content", "file", fileName(path), "error", err)
		return h.finish(parseErrorDocument("JSON", "json", path, err, string(content)), path, DocJSON)
	}

	pretty := prettyJSON(root)
	var out string
	switch {
	case h.opts.OutputFormat == options.FormatPlain:
		out = pretty
	case h.opts.IsAI():
		out = h.aiHeader(root, path) + fence("json", pretty)
	default:
		out = fence("json", pretty)
	}
	return h.finish(out, path, DocJSON)
}

func (h *JSON) aiHeader(root *node, path string) string {
	a := analyzeTree(root)
	var b strings.Builder
	b.WriteString("## 📊 JSON Structure Analysis\n")
	fmt.Fprintf(&b, "- **File:** %s\n", fileName(path))
	fmt.Fprintf(&b, "- **Root Type:** %s\n", root.kind)
	fmt.Fprintf(&b, "- **Complexity:** %s\n", a.Complexity)
	fmt.Fprintf(&b, "- **Depth Levels:** %d\n", a.MaxDepth)
	fmt.Fprintf(&b, "- **Total Keys:** %d\n", a.TotalKeys)
	fmt.Fprintf(&b, "- **Data Types:** %s\n\n", strings.Join(a.DataTypes, ", "))
	b.WriteString("### 🗂️ Key Structure Overview\n")
	b.WriteString(overview(root))
	b.WriteString("\n\n### 📋 JSON Content\n")
	return b.String()
}

// AnalyzeJSON decodes data and reports its structure.
func AnalyzeJSON(data []byte) (TreeAnalysis, error) {
	root, err := decodeJSON(data)
	if err != nil {
		return TreeAnalysis{}, err
	}
	return analyzeTree(root), nil
}

// decodeJSON decodes exactly one JSON value, keeping object key order.
func decodeJSON(data []byte) (*node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON: unexpected data after top-level value")
	}
	return root, nil
}

func decodeJSONValue(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := &node{kind: kindObject}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("invalid JSON: object key %v is not a string", kt)
				}
				v, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				n.keys = append(n.keys, key)
				n.children = append(n.children, v)
			}
			if _, err := dec.Token(); err != nil { // '}'
				return nil, err
			}
			return n, nil
		case '[':
			n := &node{kind: kindArray}
			for dec.More() {
				v, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				n.children = append(n.children, v)
			}
			if _, err := dec.Token(); err != nil { // ']'
				return nil, err
			}
			return n, nil
		default:
			return nil, fmt.Errorf("invalid JSON: unexpected %q", t)
		}
	case string:
		return &node{kind: kindString, scalar: t}, nil
	case json.Number:
		return &node{kind: kindNumber, scalar: t.String()}, nil
	case bool:
		if t {
			return &node{kind: kindBoolean, scalar: "true"}, nil
		}
		return &node{kind: kindBoolean, scalar: "false"}, nil
	case nil:
		return &node{kind: kindNull}, nil
	default:
		return nil, fmt.Errorf("invalid JSON: unexpected token %v", tok)
	}
}
