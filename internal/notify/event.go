package notify

import (
	"time"
)

// Event types emitted by the ingestion controller.
const (
	TypeRejected     = "document.rejected"
	TypeStored       = "document.stored"
	TypeStoreFailed  = "document.store_failed"
	TypeUploaded     = "document.uploaded"
	TypeUploadFailed = "document.upload_failed"
	TypeDeleted      = "document.deleted"

	TypeAlertDismissed = "alert.dismissed"
)

// Event describes one ingestion outcome. Alert fields are set when the
// outcome produced a user-visible alert.
type Event struct {
	Type       string    `json:"type"`
	DocumentID string    `json:"documentId,omitempty"`
	Name       string    `json:"name,omitempty"`
	Status     string    `json:"status,omitempty"`
	RemoteURL  string    `json:"remoteUrl,omitempty"`
	AlertID    string    `json:"alertId,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// HasAlert reports whether the event carries an alert.
func (e Event) HasAlert() bool {
	return e.AlertID != ""
}

// Key is the partitioning key: the document id, falling back to the alert id
// for events that never reached the store.
func (e Event) Key() string {
	if e.DocumentID != "" {
		return e.DocumentID
	}
	return e.AlertID
}
