package gifticon

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// maxUploadSize bounds voucher uploads; phone photos can be large
const maxUploadSize = int64(50 << 20) // 50MB

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes a {"error": message} response
func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// serviceError maps a service error to an HTTP response
func serviceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, ErrNotFound):
		corsError(w, "Gifticon not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalid):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrAlreadyExists):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("Error "+action, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// gifticonResponse adds the status computed at request time
type gifticonResponse struct {
	*Gifticon
	Status Status `json:"status"`
}

func (s *Server) present(g *Gifticon) gifticonResponse {
	return gifticonResponse{Gifticon: g, Status: g.Status(s.service.timeSource.Now())}
}

func (s *Server) presentAll(gifticons []*Gifticon) []gifticonResponse {
	out := make([]gifticonResponse, 0, len(gifticons))
	for _, g := range gifticons {
		out = append(out, s.present(g))
	}
	return out
}

// handleHealth reports that the server is up
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExtract runs the extractor over text fragments
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Texts []string `json:"texts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.service.ExtractText(req.Texts))
}

// upload is a voucher image read from a multipart form
type upload struct {
	filename    string
	data        []byte
	contentType string
}

// readUpload reads the "file" field of a multipart form, writing the
// error response itself when it fails
func readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return nil, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return nil, false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromExt(header.Filename)
	}

	return &upload{
		filename:    header.Filename,
		data:        data,
		contentType: strings.ToLower(strings.TrimSpace(contentType)),
	}, true
}

// contentTypeFromExt guesses the content type of an upload from its name
func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleScanGifticon scans an upload and returns a draft to review
func (s *Server) handleScanGifticon(w http.ResponseWriter, r *http.Request) {
	u, ok := readUpload(w, r)
	if !ok {
		return
	}

	draft, err := s.service.Scan(u.filename, u.data, u.contentType)
	if err != nil {
		slog.Error("Error scanning gifticon", "filename", u.filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.present(draft))
}

// handleCreateGifticon saves a gifticon. A multipart upload is scanned
// and saved in one step (or saved with basic info when ?basic=true); a
// JSON body is a reviewed draft or a manual entry.
func (s *Server) handleCreateGifticon(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		s.handleUploadGifticon(w, r)
		return
	}

	var gifticon Gifticon
	if err := json.NewDecoder(r.Body).Decode(&gifticon); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	gifticon.IsUsed = false

	if err := s.service.CreateGifticon(&gifticon); err != nil {
		serviceError(w, err, "creating gifticon")
		return
	}

	writeJSON(w, http.StatusCreated, s.present(&gifticon))
}

func (s *Server) handleUploadGifticon(w http.ResponseWriter, r *http.Request) {
	u, ok := readUpload(w, r)
	if !ok {
		return
	}

	save := s.service.ProcessGifticon
	if r.URL.Query().Get("basic") == "true" {
		save = s.service.SaveWithBasicInfo
	}

	gifticon, err := save(u.filename, u.data, u.contentType)
	if err != nil {
		slog.Error("Error processing gifticon", "filename", u.filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, s.present(gifticon))
}

// handleListGifticons returns the available view (default) or the
// used/expired view with an optional status filter and sort order
func (s *Server) handleListGifticons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		gifticons []*Gifticon
		err       error
	)
	switch q.Get("view") {
	case "", "available":
		gifticons, err = s.service.ListAvailable()
	case "used-expired":
		filter, ferr := ParseStatusFilter(q.Get("status"))
		if ferr != nil {
			jsonError(w, ferr.Error(), http.StatusBadRequest)
			return
		}
		order, oerr := ParseSortOrder(q.Get("sort"), SortDesc)
		if oerr != nil {
			jsonError(w, oerr.Error(), http.StatusBadRequest)
			return
		}
		gifticons, err = s.service.ListUsedOrExpired(filter, order)
	default:
		jsonError(w, "unknown view "+q.Get("view"), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("Error listing gifticons", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, s.presentAll(gifticons))
}

// handleGetGifticon returns a single gifticon
func (s *Server) handleGetGifticon(w http.ResponseWriter, r *http.Request) {
	gifticon, err := s.service.GetGifticon(r.PathValue("id"))
	if err != nil {
		serviceError(w, err, "getting gifticon")
		return
	}

	writeJSON(w, http.StatusOK, s.present(gifticon))
}

// handleGetGifticonImage returns the voucher image
func (s *Server) handleGetGifticonImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetGifticonImage(r.PathValue("id"))
	if err != nil {
		corsError(w, "Image not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleUpdateGifticon edits a gifticon
func (s *Server) handleUpdateGifticon(w http.ResponseWriter, r *http.Request) {
	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	gifticon, err := s.service.UpdateGifticon(r.PathValue("id"), update)
	if err != nil {
		serviceError(w, err, "updating gifticon")
		return
	}

	writeJSON(w, http.StatusOK, s.present(gifticon))
}

// handleMarkUsed marks a gifticon as used
func (s *Server) handleMarkUsed(w http.ResponseWriter, r *http.Request) {
	gifticon, err := s.service.MarkUsed(r.PathValue("id"))
	if err != nil {
		serviceError(w, err, "marking gifticon used")
		return
	}

	writeJSON(w, http.StatusOK, s.present(gifticon))
}

// handleMarkUnused reverts a gifticon to unused
func (s *Server) handleMarkUnused(w http.ResponseWriter, r *http.Request) {
	gifticon, err := s.service.MarkUnused(r.PathValue("id"))
	if err != nil {
		serviceError(w, err, "marking gifticon unused")
		return
	}

	writeJSON(w, http.StatusOK, s.present(gifticon))
}

// handleTrashGifticon moves a gifticon to the trash, or deletes it outright
// with ?permanent=true
func (s *Server) handleTrashGifticon(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if r.URL.Query().Get("permanent") == "true" {
		if err := s.service.DeleteGifticon(id); err != nil {
			serviceError(w, err, "deleting gifticon")
			return
		}
	} else if err := s.service.MoveToTrash(id); err != nil {
		serviceError(w, err, "moving gifticon to trash")
		return
	}

	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleListTrash returns the trashed gifticons
func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request) {
	gifticons, err := s.service.ListTrash()
	if err != nil {
		slog.Error("Error listing trash", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, s.presentAll(gifticons))
}

// handleRestoreGifticon moves a gifticon out of the trash
func (s *Server) handleRestoreGifticon(w http.ResponseWriter, r *http.Request) {
	gifticon, err := s.service.RestoreGifticon(r.PathValue("id"))
	if err != nil {
		serviceError(w, err, "restoring gifticon")
		return
	}

	writeJSON(w, http.StatusOK, s.present(gifticon))
}

// handleDeletePermanently deletes a trashed gifticon and its image
func (s *Server) handleDeletePermanently(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeletePermanently(r.PathValue("id")); err != nil {
		serviceError(w, err, "deleting gifticon")
		return
	}

	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}
