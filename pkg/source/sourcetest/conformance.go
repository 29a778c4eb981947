// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package sourcetest provides a shared conformance test suite for
// source.Fetcher implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package sourcetest

import (
	"context"
	"errors"
	"testing"

	"github.com/leseb/filereader/pkg/source"
)

// Harness is a fetcher preloaded with objects plus the mapping from an
// object name to the URI that fetcher resolves.
type Harness struct {
	Fetcher source.Fetcher
	URI     func(name string) string
}

// RunConformanceTests exercises a Fetcher implementation against the shared
// contract. newHarness is called once per sub-test with the objects it must
// make available.
func RunConformanceTests(t *testing.T, newHarness func(t *testing.T, objects map[string][]byte) Harness) {
	t.Helper()

	t.Run("Fetch", func(t *testing.T) {
		h := newHarness(t, map[string][]byte{"hello.txt": []byte("hello")})
		defer h.Fetcher.Close(context.Background())

		obj, err := h.Fetcher.Fetch(context.Background(), h.URI("hello.txt"))
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if string(obj.Body) != "hello" {
			t.Errorf("body = %q, want %q", obj.Body, "hello")
		}
		if obj.Name != "hello.txt" {
			t.Errorf("name = %q, want hello.txt", obj.Name)
		}
		if obj.Size != 5 {
			t.Errorf("size = %d, want 5", obj.Size)
		}
		if obj.ContentType == "" {
			t.Error("content type should be set")
		}
	})

	t.Run("NestedName", func(t *testing.T) {
		h := newHarness(t, map[string][]byte{"reports/2024/q1.csv": []byte("a,b\n1,2\n")})
		defer h.Fetcher.Close(context.Background())

		obj, err := h.Fetcher.Fetch(context.Background(), h.URI("reports/2024/q1.csv"))
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if obj.Name != "q1.csv" {
			t.Errorf("name = %q, want the last path element", obj.Name)
		}
	})

	t.Run("Binary", func(t *testing.T) {
		payload := []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0xff, 0x00}
		h := newHarness(t, map[string][]byte{"doc.docx": payload})
		defer h.Fetcher.Close(context.Background())

		obj, err := h.Fetcher.Fetch(context.Background(), h.URI("doc.docx"))
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if string(obj.Body) != string(payload) {
			t.Errorf("binary body changed: %v", obj.Body)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		h := newHarness(t, map[string][]byte{"present.txt": []byte("x")})
		defer h.Fetcher.Close(context.Background())

		_, err := h.Fetcher.Fetch(context.Background(), h.URI("missing.txt"))
		if !errors.Is(err, source.ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound, got: %v", err)
		}
	})

	t.Run("Repeatable", func(t *testing.T) {
		h := newHarness(t, map[string][]byte{"again.json": []byte(`{"a":1}`)})
		defer h.Fetcher.Close(context.Background())

		for i := range 2 {
			obj, err := h.Fetcher.Fetch(context.Background(), h.URI("again.json"))
			if err != nil {
				t.Fatalf("Fetch #%d: %v", i+1, err)
			}
			if string(obj.Body) != `{"a":1}` {
				t.Errorf("Fetch #%d body = %q", i+1, obj.Body)
			}
			obj.Body[0] = 'X'
		}
	})
}
