package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Alert is a short-lived notification. It expires after the controller's
// alert TTL unless dismissed earlier.
type Alert struct {
	ID         string    `json:"id"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	DocumentID string    `json:"documentId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newAlertID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}
