// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leseb/filereader/pkg/core/services"
	"github.com/leseb/filereader/pkg/source"
	"github.com/leseb/filereader/pkg/source/memory"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store := memory.New()
	store.Put("s3://bucket/data/config.json", []byte(`{"a":1}`))
	conv := services.NewConverter(services.ConverterConfig{
		TempDir: t.TempDir(),
		OpenSource: func(context.Context, string) (source.Fetcher, error) {
			return store, nil
		},
		Clock: func() time.Time { return testNow },
	})
	return New(conv, nil, WithClock(func() time.Time { return testNow }), WithMaxBodyBytes(1<<20))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return out
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestConvertSuccess(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		body   string
		result string
		method string
	}{
		{
			name:   "direct",
			body:   `{"file_name":"people.csv","file_content":"` + b64("name,age\nAnn,30\n") + `"}`,
			result: "| name | age |\n| --- | --- |\n| Ann | 30 |",
			method: "base64",
		},
		{
			name:   "envelope with string body",
			body:   `{"body":"{\"file_name\":\"notes.txt\",\"file_content\":\"` + b64("hi") + `\",\"output_format\":\"plain\"}"}`,
			result: "hi",
			method: "base64",
		},
		{
			name:   "envelope with object body",
			body:   `{"body":{"file_name":"notes.txt","file_content":"` + b64("hi") + `","output_format":"plain"}}`,
			result: "hi",
			method: "base64",
		},
		{
			name:   "s3",
			body:   `{"file_name":"config.json","s3_path":"s3://bucket/data/config.json","output_format":"plain"}`,
			result: "{\n  \"a\": 1\n}",
			method: "s3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/convert", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			var resp services.ConvertResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if !resp.Success || resp.Result != tt.result {
				t.Errorf("response = %+v", resp)
			}
			if resp.File.InputMethod != tt.method {
				t.Errorf("input_method = %q, want %q", resp.File.InputMethod, tt.method)
			}
			if resp.Stats.ProcessorVersion != services.ProcessorVersion {
				t.Errorf("processor_version = %q", resp.Stats.ProcessorVersion)
			}
			if rec.Header().Get("X-Processing-Time") != "0.00" {
				t.Errorf("X-Processing-Time = %q", rec.Header().Get("X-Processing-Time"))
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing CORS header")
			}
		})
	}
}

func TestConvertErrors(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name    string
		body    string
		status  int
		errType string
		message string
	}{
		{"invalid json", `{"file_name":`, http.StatusBadRequest, "validation_error", "invalid JSON in request body"},
		{"empty body", ``, http.StatusBadRequest, "validation_error", "empty request body"},
		{"invalid envelope json", `{"body":"{not json"}`, http.StatusBadRequest, "validation_error", "invalid JSON in request body"},
		{"envelope number", `{"body":42}`, http.StatusBadRequest, "validation_error", "unsupported body type"},
		{"missing name", `{"file_content":"aGk="}`, http.StatusBadRequest, "validation_error", "'file_name'"},
		{"both inputs", `{"file_name":"a.txt","file_content":"aGk=","s3_path":"s3://b/k"}`, http.StatusBadRequest, "validation_error", "cannot provide both"},
		{"bad format", `{"file_name":"a.txt","file_content":"aGk=","output_format":"docx"}`, http.StatusBadRequest, "validation_error", "invalid output format"},
		{"unsupported", `{"file_name":"a.exe","file_content":"aGk="}`, http.StatusBadRequest, "validation_error", "unsupported file extension"},
		{"s3 not found", `{"file_name":"x.csv","s3_path":"s3://bucket/x.csv"}`, http.StatusNotFound, "not_found", "s3 object not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/convert", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.status, rec.Body.String())
			}
			out := decode(t, rec)
			if out["success"] != false {
				t.Errorf("success = %v", out["success"])
			}
			e, _ := out["error"].(map[string]any)
			if e["type"] != tt.errType {
				t.Errorf("error.type = %v, want %s", e["type"], tt.errType)
			}
			if e["code"] != float64(tt.status) {
				t.Errorf("error.code = %v", e["code"])
			}
			if msg, _ := e["message"].(string); !strings.Contains(msg, tt.message) {
				t.Errorf("error.message = %q, want it to mention %q", msg, tt.message)
			}
			if e["timestamp"] != "2025-03-01T12:00:00Z" {
				t.Errorf("error.timestamp = %v", e["timestamp"])
			}
			if _, ok := out["help"]; !ok {
				t.Error("client errors carry a help section")
			}
			if rec.Header().Get("X-Error-Type") != tt.errType {
				t.Errorf("X-Error-Type = %q", rec.Header().Get("X-Error-Type"))
			}
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	h := newTestHandler(t)
	h.maxBodyBytes = 16
	rec := do(t, h, http.MethodPost, "/v1/convert", `{"file_name":"a.txt","file_content":"aGk="}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestUpload(t *testing.T) {
	h := newTestHandler(t)

	build := func(fields map[string]string, filename, content string) (*bytes.Buffer, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range fields {
			mw.WriteField(k, v)
		}
		if filename != "" {
			fw, err := mw.CreateFormFile("file", filename)
			if err != nil {
				t.Fatal(err)
			}
			fw.Write([]byte(content))
		}
		mw.Close()
		return &buf, mw.FormDataContentType()
	}

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		content  string
		status   int
		result   string
	}{
		{"plain upload", map[string]string{"output_format": "plain"}, "notes.txt", "hello", http.StatusOK, "hello"},
		{"name override", map[string]string{"file_name": "data.csv", "output_format": "plain"}, "blob.bin", "a,b\n", http.StatusOK, "a,b"},
		{"missing file", map[string]string{"output_format": "plain"}, "", "", http.StatusBadRequest, ""},
		{"bad bool", map[string]string{"ai_optimized": "maybe"}, "notes.txt", "x", http.StatusBadRequest, ""},
		{"bad chunk size", map[string]string{"max_chunk_size": "big"}, "notes.txt", "x", http.StatusBadRequest, ""},
		{"empty file", nil, "notes.txt", "", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := build(tt.fields, tt.filename, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/v1/convert/upload", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp services.ConvertResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Result != tt.result || resp.File.InputMethod != services.InputUpload {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestHealthAndFormats(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	health := decode(t, rec)
	if health["status"] != "healthy" || health["version"] != ServiceVersion {
		t.Errorf("health = %v", health)
	}
	caps, _ := health["capabilities"].(map[string]any)
	if caps["total_formats"] != float64(13) {
		t.Errorf("total_formats = %v", caps["total_formats"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("responses carry a request id")
	}

	rec = do(t, h, http.MethodGet, "/v1/formats", "")
	formats := decode(t, rec)
	outs, _ := formats["output_formats"].([]any)
	if len(outs) != 4 || outs[1] != "markdown_ai" {
		t.Errorf("output_formats = %v", outs)
	}
	exts, _ := formats["extensions"].([]any)
	if len(exts) != 13 || exts[0] != "csv" {
		t.Errorf("extensions = %v", exts)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestPreflightAndRouting(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodOptions, "/v1/convert", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight should carry CORS headers")
	}

	rec = do(t, h, http.MethodGet, "/v1/convert", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/convert status = %d", rec.Code)
	}
}

func TestOpenAPI(t *testing.T) {
	h := newTestHandler(t)
	rec := do(t, h, http.MethodGet, "/openapi.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	spec := decode(t, rec)
	paths, _ := spec["paths"].(map[string]any)
	for _, p := range []string{"/health", "/v1/formats", "/v1/convert", "/v1/convert/upload"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("spec is missing path %s", p)
		}
	}
}
