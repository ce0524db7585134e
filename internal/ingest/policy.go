package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

const DefaultMaxFileSize = 20 * 1024 * 1024

// Policy decides which incoming files enter the pipeline. The size check
// runs before the type check.
type Policy struct {
	MaxFileSize   int64
	AcceptedTypes []string
}

func DefaultPolicy() Policy {
	return Policy{
		MaxFileSize:   DefaultMaxFileSize,
		AcceptedTypes: []string{"application/pdf"},
	}
}

// Check returns Persisting for an accepted file, otherwise the rejection
// state with the alert severity and text to show.
func (p Policy) Check(name, contentType string, size int64) (State, Severity, string) {
	if p.MaxFileSize > 0 && size > p.MaxFileSize {
		return RejectedSize, SeverityError, fmt.Sprintf("%s exceeds the %sMB limit", name, formatMiB(p.MaxFileSize))
	}
	if !p.accepts(contentType) {
		return RejectedType, SeverityInfo, fmt.Sprintf("%s is not a %s and was skipped", name, p.kindLabel())
	}
	return Persisting, "", ""
}

func (p Policy) accepts(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	for _, t := range p.AcceptedTypes {
		if strings.EqualFold(t, mediaType) {
			return true
		}
	}
	return false
}

func (p Policy) kindLabel() string {
	if len(p.AcceptedTypes) == 1 && strings.EqualFold(p.AcceptedTypes[0], "application/pdf") {
		return "PDF"
	}
	return "supported document"
}

func formatMiB(n int64) string {
	return strconv.FormatFloat(float64(n)/(1024*1024), 'f', -1, 64)
}
