package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/dto"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/ingest"
)

const (
	formField        = "file"
	multipartMemory  = 32 << 20
	defaultMaxUpload = 256 << 20
	previewPrefix    = "/api/previews/"
)

type DocumentRoutes struct {
	ingest       Ingestor
	maxBodyBytes int64
	logger       log.Logger
}

func NewDocumentRoutes(ing Ingestor, maxBodyBytes int64, logger log.Logger) *DocumentRoutes {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxUpload
	}
	return &DocumentRoutes{
		ingest:       ing,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

func (r *DocumentRoutes) RegisterHandlers(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", r.handleSubmit)
	mux.HandleFunc("GET /api/documents", r.handleList)
	mux.HandleFunc("DELETE /api/documents/{id}", r.handleDelete)
	mux.HandleFunc("GET /api/previews/{handle}", r.handlePreview)
	mux.HandleFunc("GET /api/status", r.handleStatus)
	mux.HandleFunc("DELETE /api/alerts/{id}", r.handleDismiss)
}

// handleSubmit accepts one or more "file" parts as one batch. Oversized or
// mistyped files are not an HTTP error; they show up as rejected entries.
func (r *DocumentRoutes) handleSubmit(w http.ResponseWriter, req *http.Request) {
	if req.ContentLength > r.maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "request too large")
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxBodyBytes)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	headers := req.MultipartForm.File[formField]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	files := make([]ingest.Incoming, 0, len(headers))
	for _, fh := range headers {
		in, err := readPart(fh)
		if err != nil {
			level.Error(r.logger).Log("msg", "read multipart file", "name", fh.Filename, "err", err)
			writeError(w, http.StatusBadRequest, "failed to read file")
			return
		}
		files = append(files, in)
	}

	batch, err := r.ingest.Submit(req.Context(), files)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	// A batch made only of rejected files is already complete.
	resp := dto.SubmissionResponse{Completed: true, Files: make([]dto.SubmissionItem, len(batch.Receipts))}
	for i, rc := range batch.Receipts {
		resp.Files[i] = dto.SubmissionItem{Name: rc.Name, State: rc.State.String(), RowID: rc.RowID}
		if !rc.State.Terminal() {
			resp.Completed = false
		}
	}

	if wait, _ := strconv.ParseBool(req.URL.Query().Get("wait")); wait {
		outcomes, err := batch.Wait(req.Context())
		if err != nil {
			writeError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		resp.Completed = true
		for i, o := range outcomes {
			resp.Files[i].State = o.State.String()
			resp.Files[i].DocumentID = o.DocumentID
			resp.Files[i].RemoteURL = o.RemoteURL
			resp.Files[i].Error = o.Error
		}
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func readPart(fh *multipart.FileHeader) (ingest.Incoming, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.Incoming{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ingest.Incoming{}, err
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}
	return ingest.Incoming{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}

func (r *DocumentRoutes) handleList(w http.ResponseWriter, req *http.Request) {
	snap, err := r.ingest.Snapshot(req.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	list := dto.DocumentList{Documents: make([]dto.DocumentView, 0, len(snap.Rows))}
	for _, row := range snap.Rows {
		view := dto.DocumentView{
			ID:          row.ID,
			Name:        row.Name,
			Type:        row.Kind,
			Date:        row.Date,
			CreatedAt:   row.CreatedAt,
			Status:      string(row.Status),
			ContentType: row.ContentType,
			Size:        row.Size,
			Pages:       row.Pages,
			RemoteURL:   row.RemoteURL,
		}
		if row.Preview != "" {
			view.PreviewURL = previewPrefix + row.Preview
		}
		if pct, ok := snap.Progress[row.ID]; ok {
			view.Progress = &pct
		}
		list.Documents = append(list.Documents, view)
	}
	writeJSON(w, http.StatusOK, list)
}

func (r *DocumentRoutes) handleDelete(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := r.ingest.Delete(req.Context(), id); err != nil {
		level.Error(r.logger).Log("msg", "delete document", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *DocumentRoutes) handlePreview(w http.ResponseWriter, req *http.Request) {
	p, ok, err := r.ingest.Preview(req.Context(), req.PathValue("handle"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "preview not found")
		return
	}

	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename*=UTF-8''%s", url.PathEscape(p.Name)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.Data)
}

func (r *DocumentRoutes) handleStatus(w http.ResponseWriter, req *http.Request) {
	snap, err := r.ingest.Snapshot(req.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (r *DocumentRoutes) handleDismiss(w http.ResponseWriter, req *http.Request) {
	found, err := r.ingest.Dismiss(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
