// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/leseb/filereader/pkg/core/services"
)

// handleConvert handles POST /v1/convert
func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "")
			return
		}
		h.writeError(w, http.StatusBadRequest, services.CodeValidation, "failed to read request body", "")
		return
	}

	req, err := DecodeConvertRequest(body)
	if err != nil {
		h.logger.Warn("Failed to parse request", "error", err)
		h.writeError(w, http.StatusBadRequest, services.CodeValidation, err.Error(), "")
		return
	}

	h.convert(w, r, req)
}

// convert runs a conversion and writes the success or error envelope.
func (h *Handler) convert(w http.ResponseWriter, r *http.Request, req *services.ConvertRequest) {
	resp, err := h.converter.Convert(r.Context(), req)
	if err != nil {
		h.writeConvertError(w, err)
		return
	}

	w.Header().Set("X-Processing-Time", strconv.FormatFloat(resp.Stats.ProcessingSeconds, 'f', 2, 64))
	h.writeJSON(w, http.StatusOK, resp)

	h.logger.Info("Conversion sent",
		"file", resp.File.Name,
		"request_id", resp.Stats.RequestID,
		"output_chars", resp.Stats.OutputChars)
}

// DecodeConvertRequest parses a convert request. The request may be sent as
// is or wrapped in an envelope whose "body" field holds it as a JSON string
// or object.
func DecodeConvertRequest(data []byte) (*services.ConvertRequest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}

	var envelope struct {
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid JSON in request body: %w", err)
	}

	payload := data
	switch raw := bytes.TrimSpace(envelope.Body); {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		// direct invocation
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("invalid JSON in request body: %w", err)
		}
		payload = []byte(s)
	case raw[0] == '{':
		payload = raw
	default:
		return nil, fmt.Errorf("unsupported body type in request envelope")
	}

	var req services.ConvertRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON in request body: %w", err)
	}
	return &req, nil
}

// statusFor maps a conversion error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case services.CodeValidation:
		return http.StatusBadRequest
	case services.CodeNotFound:
		return http.StatusNotFound
	case services.CodeAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeConvertError(w http.ResponseWriter, err error) {
	code := services.ErrorCode(err)
	status := statusFor(code)

	var details string
	if status == http.StatusInternalServerError {
		h.logger.Error("Conversion failed", "error", err)
		if u := errors.Unwrap(err); u != nil {
			details = u.Error()
		}
	} else {
		h.logger.Warn("Conversion rejected", "code", code, "error", err)
	}
	h.writeError(w, status, code, err.Error(), details)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, message, details string) {
	errBody := map[string]any{
		"message":   message,
		"type":      errType,
		"code":      status,
		"timestamp": h.now().UTC(),
	}
	if details != "" {
		errBody["details"] = details
	}
	body := map[string]any{
		"success": false,
		"error":   errBody,
	}
	if help := h.helpFor(status); help != nil {
		body["help"] = help
	}

	w.Header().Set("X-Error-Type", errType)
	h.writeJSON(w, status, body)
}

// helpFor returns hints attached to client and server errors.
func (h *Handler) helpFor(status int) map[string]any {
	switch {
	case status == http.StatusInternalServerError:
		return map[string]any{
			"suggestions": []string{
				"Check that the file is not corrupted",
				"Make sure the file format is supported",
				"Split very large files into smaller parts",
			},
			"support": "If the error persists, include the X-Request-ID header value when reporting it",
		}
	case status >= 400 && status < 500:
		return map[string]any{
			"suggestions": []string{
				"Check that every required parameter is present",
				"Make sure output_format is one of: " + joinFormats(),
				"For S3, use the form s3://bucket/key",
				"For base64, check that the content is correctly encoded",
			},
			"supported_formats": h.converter.SupportedExtensions(),
			"example_request": map[string]any{
				"file_name":     "document.pdf",
				"s3_path":       "s3://my-bucket/documents/file.pdf",
				"output_format": "markdown_ai",
				"ai_optimized":  true,
			},
		}
	}
	return nil
}

func joinFormats() string {
	return strings.Join(outputFormats(), ", ")
}
