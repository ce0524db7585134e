package relay

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/blob"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/dto"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	// UploadPath accepts the multipart upload.
	UploadPath = "/api/upload"
	// PublicPrefix serves stored uploads back.
	PublicPrefix = "/uploads/"

	formField       = "file"
	multipartMemory = 8 << 20
)

type Handler struct {
	storage blob.ObjectStorage
	maxSize int64
	logger  log.Logger
	now     func() time.Time
}

func NewHandler(storage blob.ObjectStorage, maxSize int64, logger log.Logger) *Handler {
	return &Handler{
		storage: storage,
		maxSize: maxSize,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxSize > 0 {
		if r.ContentLength > h.maxSize {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxSize)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, fileHeader, err := r.FormFile(formField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	name := GenerateName(h.now(), fileHeader.Filename)
	if err := h.storage.Save(r.Context(), name, contentType, file, fileHeader.Size); err != nil {
		level.Error(h.logger).Log("msg", "store upload failed", "filename", fileHeader.Filename, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	level.Info(h.logger).Log("msg", "upload stored", "filename", name, "size", fileHeader.Size, "location", h.storage.Location())
	writeJSON(w, http.StatusOK, dto.UploadResponse{
		URL:      PublicPrefix + name,
		Filename: name,
	})
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	reader, size, err := h.storage.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidKey) {
			http.NotFound(w, r)
			return
		}
		level.Error(h.logger).Log("msg", "read upload failed", "filename", name, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", `inline; filename="`+EscapeFilename(name)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		level.Warn(h.logger).Log("msg", "serve upload interrupted", "filename", name, "err", err)
	}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+UploadPath, h.Upload)
	mux.HandleFunc("GET "+PublicPrefix+"{name}", h.Serve)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
