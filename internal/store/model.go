package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// KindPDF is the only classification the ingestion pipeline assigns.
const KindPDF = "PDF"

// Record is one ingested document. The payload is never part of a Record;
// it is fetched separately through GetPayload.
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"type"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Pages       int       `json:"pages"`
	Checksum    string    `json:"checksum,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      Status    `json:"status"`
	RemoteURL   string    `json:"remoteUrl,omitempty"`
}

// File is the input of Put.
type File struct {
	Name        string
	ContentType string
	Pages       int
	Data        []byte
}

// Store is the local object store of ingested documents.
//
// GetPayload reports found=false for an unknown id and Delete of an unknown
// id succeeds; neither is an error.
type Store interface {
	Put(ctx context.Context, file File) (Record, error)
	ListAll(ctx context.Context) ([]Record, error)
	GetPayload(ctx context.Context, id string) ([]byte, bool, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status Status, remoteURL string) error
	Close() error
}

var (
	ErrEmptyName    = errors.New("document name required")
	ErrEmptyPayload = errors.New("document payload required")
	ErrInvalidID    = errors.New("document id required")
	ErrBadStatus    = errors.New("unknown document status")
)

// NewID returns a timestamp prefixed id with a random suffix.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

// newRecord builds the metadata written by every backend's Put.
func newRecord(file File, now time.Time) (Record, error) {
	if file.Name == "" {
		return Record{}, ErrEmptyName
	}
	if len(file.Data) == 0 {
		return Record{}, ErrEmptyPayload
	}
	return Record{
		ID:          NewID(now),
		Name:        file.Name,
		Kind:        KindPDF,
		ContentType: file.ContentType,
		Size:        int64(len(file.Data)),
		Pages:       file.Pages,
		Checksum:    hashSHA256(file.Data),
		CreatedAt:   now,
		Status:      StatusCompleted,
	}, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}
