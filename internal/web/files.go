package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/dateischnell/internal/content"
	"github.com/codefionn/dateischnell/internal/features"
	"github.com/codefionn/dateischnell/internal/logger"
	"github.com/codefionn/dateischnell/internal/pathguard"
)

func relParam(ps httprouter.Params) string {
	return strings.TrimPrefix(ps.ByName("path"), "/")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

// writePathError maps guard and filesystem errors to HTTP statuses.
func writePathError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pathguard.ErrForbidden), errors.Is(err, pathguard.ErrInvalidName):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, os.ErrNotExist):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, content.ErrInvalidRange):
		http.Error(w, "Invalid range", http.StatusRequestedRangeNotSatisfiable)
	default:
		logger.Error("File operation failed: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	entries, err := s.lister.List(r.Context(), relParam(ps))
	if err != nil {
		writePathError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.flags.Enabled(features.FlagFileDownload) {
		http.Error(w, "Downloads are disabled", http.StatusForbidden)
		return
	}

	ref, err := s.guard.Resolve(relParam(ps))
	if err != nil {
		writePathError(w, err)
		return
	}
	if ref.IsDir {
		http.Error(w, "Not a file", http.StatusBadRequest)
		return
	}

	etag := etagFor(ref)
	w.Header().Set("ETag", etag)
	w.Header().Set("Accept-Ranges", "bytes")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	rng, err := parseRangeHeader(r.Header.Get("Range"), ref.Size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", ref.Size))
		http.Error(w, "Invalid range", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	stream, err := s.engine.Serve(ref.Path, rng)
	if err != nil {
		writePathError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(ref.Path)))

	if rng != nil {
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, ref.Size))
		w.Header().Set("Content-Length", strconv.FormatInt(rng.End-rng.Start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(ref.Size, 10))
	}

	if _, err := stream.WriteTo(w); err != nil {
		// Headers are gone; all we can do is log and drop the connection.
		logger.Debug("Download aborted for %s: %v", ref.Rel, err)
	}
}

// handleContent serves one byte range of a file as raw bytes, for
// paged viewing of large files.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ref, err := s.guard.Resolve(relParam(ps))
	if err != nil {
		writePathError(w, err)
		return
	}
	if ref.IsDir {
		http.Error(w, "Not a file", http.StatusBadRequest)
		return
	}

	rng, err := parseQueryRange(r, ref.Size, int64(s.engine.ChunkSize()))
	if err != nil {
		writePathError(w, err)
		return
	}

	stream, err := s.engine.Serve(ref.Path, rng)
	if err != nil {
		writePathError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := stream.WriteTo(w); err != nil {
		logger.Debug("Content read aborted for %s: %v", ref.Rel, err)
	}
}

type linesResponse struct {
	Offsets []int64 `json:"offsets"`
	Size    int64   `json:"size"`
}

func (s *Server) handleLines(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ref, err := s.guard.Resolve(relParam(ps))
	if err != nil {
		writePathError(w, err)
		return
	}
	if ref.IsDir {
		http.Error(w, "Not a file", http.StatusBadRequest)
		return
	}

	maxLines := s.cfg.MaxPreviewLines
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid max parameter", http.StatusBadRequest)
			return
		}
		if n < maxLines {
			maxLines = n
		}
	}

	offsets, err := s.engine.FindLineOffsets(ref.Path, maxLines)
	if err != nil {
		writePathError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, linesResponse{Offsets: offsets, Size: ref.Size})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.flags.Enabled(features.FlagFileUpload) {
		http.Error(w, "Uploads are disabled", http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Upload too large or malformed", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !s.cfg.UploadExtensionAllowed(name) {
		http.Error(w, "File type not allowed", http.StatusBadRequest)
		return
	}

	dir := relParam(ps)
	target, err := s.guard.ResolveForWrite(filepath.Join(dir, name))
	if err != nil {
		writePathError(w, err)
		return
	}

	dst, err := os.Create(target)
	if err != nil {
		writePathError(w, err)
		return
	}
	written, err := io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		writePathError(w, err)
		return
	}
	s.lister.Invalidate(dir)

	logger.Info("Uploaded %s (%d bytes)", s.guard.RelFromRoot(target), written)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"path": s.guard.RelFromRoot(target),
		"size": written,
	})
}

type editRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.flags.Enabled(features.FlagFileEdit) {
		http.Error(w, "Editing is disabled", http.StatusForbidden)
		return
	}

	ref, err := s.guard.Resolve(relParam(ps))
	if err != nil {
		writePathError(w, err)
		return
	}
	if ref.IsDir {
		http.Error(w, "Not a file", http.StatusBadRequest)
		return
	}
	if ref.Size > s.cfg.MaxEditableSize {
		http.Error(w, "File too large to edit", http.StatusRequestEntityTooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxEditableSize+4096)
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if int64(len(req.Content)) > s.cfg.MaxEditableSize {
		http.Error(w, "Content too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := os.WriteFile(ref.Path, []byte(req.Content), 0o644); err != nil {
		writePathError(w, err)
		return
	}
	s.lister.Invalidate(filepath.Dir(ref.Rel))
	w.WriteHeader(http.StatusNoContent)
}

type renameRequest struct {
	NewName string `json:"new_name"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.flags.Enabled(features.FlagFileRename) {
		http.Error(w, "Renaming is disabled", http.StatusForbidden)
		return
	}

	ref, err := s.guard.Resolve(relParam(ps))
	if err != nil {
		writePathError(w, err)
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := pathguard.ValidateName(req.NewName); err != nil {
		writePathError(w, err)
		return
	}

	dir := filepath.Dir(ref.Rel)
	target, err := s.guard.ResolveForWrite(filepath.Join(dir, req.NewName))
	if err != nil {
		writePathError(w, err)
		return
	}
	if _, err := os.Lstat(target); err == nil {
		http.Error(w, "Target already exists", http.StatusConflict)
		return
	}

	if err := os.Rename(ref.Path, target); err != nil {
		writePathError(w, err)
		return
	}
	s.lister.Invalidate(dir)
	writeJSON(w, http.StatusOK, map[string]string{
		"path": s.guard.RelFromRoot(target),
	})
}

func (s *Server) handleMkdir(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.flags.Enabled(features.FlagFileUpload) {
		http.Error(w, "Uploads are disabled", http.StatusForbidden)
		return
	}

	rel := relParam(ps)
	target, err := s.guard.ResolveForWrite(rel)
	if err != nil {
		writePathError(w, err)
		return
	}
	if err := os.Mkdir(target, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			http.Error(w, "Already exists", http.StatusConflict)
			return
		}
		writePathError(w, err)
		return
	}
	s.lister.Invalidate(filepath.Dir(rel))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.flags.Enabled(features.FlagFileDelete) {
		http.Error(w, "Deletion is disabled", http.StatusForbidden)
		return
	}

	ref, err := s.guard.Resolve(relParam(ps))
	if err != nil {
		writePathError(w, err)
		return
	}
	if ref.Rel == "" {
		http.Error(w, "Refusing to delete the root", http.StatusBadRequest)
		return
	}

	if err := os.RemoveAll(ref.Path); err != nil {
		writePathError(w, err)
		return
	}
	s.lister.Invalidate(filepath.Dir(ref.Rel))
	w.WriteHeader(http.StatusNoContent)
}

// parseRangeHeader parses a single inclusive byte range. Multipart
// ranges are not supported.
func parseRangeHeader(header string, size int64) (*content.ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, content.ErrInvalidRange
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, content.ErrInvalidRange
	}

	if startStr == "" {
		// Suffix range: last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return nil, content.ErrInvalidRange
		}
		if n > size {
			n = size
		}
		if size == 0 {
			return nil, content.ErrInvalidRange
		}
		return &content.ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return nil, content.ErrInvalidRange
	}
	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, content.ErrInvalidRange
		}
		if end >= size {
			end = size - 1
		}
	}
	if start > end || start >= size {
		return nil, content.ErrInvalidRange
	}
	return &content.ByteRange{Start: start, End: end}, nil
}

// parseQueryRange reads start/end query parameters. Without an end the
// range covers one chunk from start.
func parseQueryRange(r *http.Request, size, chunkSize int64) (*content.ByteRange, error) {
	q := r.URL.Query()
	startStr := q.Get("start")
	if startStr == "" {
		return nil, nil
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, content.ErrInvalidRange
	}

	var end int64
	if endStr := q.Get("end"); endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, content.ErrInvalidRange
		}
	} else {
		end = start + chunkSize - 1
	}
	if end >= size {
		end = size - 1
	}
	if size == 0 || start > end {
		return nil, content.ErrInvalidRange
	}
	return &content.ByteRange{Start: start, End: end}, nil
}
