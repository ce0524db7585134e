package ingest

import (
	"context"
	"time"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/dto"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/store"
)

const dateLayout = "02/01/2006 15:04:05"

// Uploader sends a persisted file to the remote relay.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte, onProgress func(percent int)) (dto.UploadResponse, error)
}

// Incoming is one file of a submitted batch.
type Incoming struct {
	Name        string
	ContentType string
	Data        []byte
}

// Row is one entry of the document list. Pending rows are optimistic and
// not yet backed by a stored record.
type Row struct {
	store.Record
	Date    string `json:"date"`
	Preview string `json:"preview,omitempty"`
	Pending bool   `json:"pending,omitempty"`
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Rows     []Row          `json:"rows"`
	Progress map[string]int `json:"progress"`
	Alerts   []Alert        `json:"alerts"`
}

// Outcome is the final state of one file of a batch.
type Outcome struct {
	Name       string `json:"name"`
	State      State  `json:"state"`
	DocumentID string `json:"documentId,omitempty"`
	RemoteURL  string `json:"remoteUrl,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Receipt is the state of one file right after submission.
type Receipt struct {
	Name  string `json:"name"`
	State State  `json:"state"`
	RowID string `json:"rowId,omitempty"`
}

// Preview is the payload behind a preview handle.
type Preview struct {
	Name        string
	ContentType string
	Data        []byte
}

func newRow(rec store.Record, handle string) *Row {
	return &Row{
		Record:  rec,
		Date:    rec.CreatedAt.Local().Format(dateLayout),
		Preview: handle,
	}
}

func optimisticRow(id string, in Incoming, now time.Time) *Row {
	return &Row{
		Record: store.Record{
			ID:          id,
			Name:        in.Name,
			Kind:        store.KindPDF,
			ContentType: in.ContentType,
			Size:        int64(len(in.Data)),
			CreatedAt:   now,
			Status:      store.StatusProcessing,
		},
		Date:    now.Local().Format(dateLayout),
		Pending: true,
	}
}
