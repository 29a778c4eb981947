// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/leseb/filereader/pkg/core/services"
)

// maxMemoryForm is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const maxMemoryForm = 32 << 20

// handleUpload handles POST /v1/convert/upload
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	// Parse multipart form
	if err := r.ParseMultipartForm(maxMemoryForm); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "uploaded file is too large", "")
			return
		}
		h.logger.Warn("Failed to parse multipart form", "error", err)
		h.writeError(w, http.StatusBadRequest, services.CodeValidation, "failed to parse multipart form", "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	// Get file from form
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, services.CodeValidation, "missing required form field: 'file'", "")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read file content", "error", err)
		h.writeError(w, http.StatusInternalServerError, "read_error", "failed to read file content", "")
		return
	}

	req := &services.ConvertRequest{
		FileName:     header.Filename,
		Content:      content,
		OutputFormat: r.FormValue("output_format"),
	}
	if name := r.FormValue("file_name"); name != "" {
		req.FileName = name
	}

	var parseErr error
	req.AIOptimized = formBool(r, "ai_optimized", &parseErr)
	req.IncludeMetadata = formBool(r, "include_metadata", &parseErr)
	req.ExtractKeySections = formBool(r, "extract_key_sections", &parseErr)
	req.ProcessingImages = formBool(r, "processing_images", &parseErr)
	if v := r.FormValue("max_chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil && parseErr == nil {
			parseErr = errors.New("max_chunk_size must be an integer")
		}
		req.MaxChunkSize = &n
	}
	if parseErr != nil {
		h.writeError(w, http.StatusBadRequest, services.CodeValidation, parseErr.Error(), "")
		return
	}

	h.convert(w, r, req)
}

// formBool parses an optional boolean form field. The first parse failure
// is stored in errp.
func formBool(r *http.Request, name string, errp *error) *bool {
	v := r.FormValue(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		if *errp == nil {
			*errp = errors.New(name + " must be a boolean")
		}
		return nil
	}
	return &b
}
