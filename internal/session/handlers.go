package session

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/splitcheck/internal/receipt"
)

// maxUploadSize allows high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// itemView is an item as the picker shows it
type itemView struct {
	Index    int          `json:"index"`
	Label    string       `json:"label"`
	Quantity int          `json:"quantity"`
	Weight   bool         `json:"weight"`
	Item     receipt.Item `json:"item"`
}

type sessionView struct {
	Key       string           `json:"key"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	Receipt   *receipt.Receipt `json:"receipt"`
	Items     []itemView       `json:"items"`
	HasPhoto  bool             `json:"has_photo"`
	Confirmed []string         `json:"confirmed"`
}

type createdView struct {
	Session        sessionView            `json:"session"`
	Reconciliation receipt.Reconciliation `json:"reconciliation"`
}

type selectionView struct {
	Participant string            `json:"participant"`
	Selection   receipt.Selection `json:"selection"`
}

func (s *Server) viewSession(sess *Session) sessionView {
	classifier := s.service.Calculator().Classifier
	view := sessionView{
		Key:       sess.Key,
		CreatedAt: sess.CreatedAt,
		Receipt:   sess.Receipt,
		Items:     make([]itemView, 0, len(sess.Receipt.Items)),
		HasPhoto:  sess.Photo != "",
		Confirmed: make([]string, 0, len(sess.Results)),
	}
	if expires := s.service.ExpiresAt(sess); !expires.IsZero() {
		view.ExpiresAt = &expires
	}
	for i, item := range sess.Receipt.Items {
		view.Items = append(view.Items, itemView{
			Index:    i,
			Label:    classifier.Label(item),
			Quantity: item.Quantity,
			Weight:   classifier.IsWeightItem(item),
			Item:     item,
		})
	}
	for participant := range sess.Results {
		view.Confirmed = append(view.Confirmed, participant)
	}
	sort.Strings(view.Confirmed)
	return view
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes an error response with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// serviceError maps service errors to responses. Only missing sessions and
// unrecognized receipts carry their message to the user.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		jsonError(w, ErrNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNoPhoto):
		jsonError(w, ErrNoPhoto.Error(), http.StatusNotFound)
	case errors.Is(err, receipt.ErrNotRecognized):
		jsonError(w, "Could not recognize a receipt in this file. Please try a clearer photo.", http.StatusUnprocessableEntity)
	case errors.Is(err, ErrNothingSelected):
		jsonError(w, "Nothing selected. Pick at least one item before confirming.", http.StatusUnprocessableEntity)
	case errors.Is(err, ErrUnknownItem):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("Request failed", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleUploadReceipt handles receipt photo upload and opens a session
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 50MB for high-resolution phone photos)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	// Read file data
	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	// Determine content type, then recognize and open the session
	contentType := uploadContentType(header.Header.Get("Content-Type"), header.Filename)
	sess, rec, err := s.service.ProcessReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createdView{Session: s.viewSession(sess), Reconciliation: rec})
}

// uploadContentType falls back to the file extension when the client sent
// no content type. HEIC/HEIF types are kept for the converter.
func uploadContentType(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleCreateSession opens a session from recognizer JSON posted directly
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		jsonError(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	// Optional key lets a caller (a chat bot) reuse its own id
	sess, rec, err := s.service.CreateFromJSON(r.URL.Query().Get("key"), body)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createdView{Session: s.viewSession(sess), Reconciliation: rec})
}

// handleGetSession returns a single session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Get(r.PathValue("key"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewSession(sess))
}

// handleDeleteSession deletes a session and its photo
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.PathValue("key")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetPhoto returns the photo a session was recognized from
func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.PhotoFile(r.PathValue("key"))
	if err != nil {
		serviceError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleGetResults returns every confirmed share of a session
func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Results(r.PathValue("key"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	participant := r.PathValue("participant")
	sel, err := s.service.GetSelection(r.PathValue("key"), participant)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionView{Participant: participant, Selection: sel})
}

// itemIndex parses the {index} path value
func itemIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		jsonError(w, "Invalid item index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

func (s *Server) handleSetItemCount(w http.ResponseWriter, r *http.Request) {
	index, ok := itemIndex(w, r)
	if !ok {
		return
	}

	// Count is required; zero removes the item from the selection
	var req struct {
		Count *int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Count == nil {
		jsonError(w, `Request body must be {"count": n}`, http.StatusBadRequest)
		return
	}

	participant := r.PathValue("participant")
	sel, err := s.service.SetSelectionCount(r.PathValue("key"), participant, index, *req.Count)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionView{Participant: participant, Selection: sel})
}

func (s *Server) handleIncrementItem(w http.ResponseWriter, r *http.Request) {
	index, ok := itemIndex(w, r)
	if !ok {
		return
	}

	participant := r.PathValue("participant")
	sel, err := s.service.IncrementSelection(r.PathValue("key"), participant, index)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionView{Participant: participant, Selection: sel})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Confirm(r.PathValue("key"), r.PathValue("participant"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
