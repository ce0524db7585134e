package dto

import "time"

// DocumentView is one row of the document list.
type DocumentView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      string    `json:"status"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	Pages       int       `json:"pages,omitempty"`
	RemoteURL   string    `json:"remoteUrl,omitempty"`
	PreviewURL  string    `json:"previewUrl,omitempty"`
	Progress    *int      `json:"progress,omitempty"`
}

type DocumentList struct {
	Documents []DocumentView `json:"documents"`
}

// SubmissionItem reports one file of a submitted batch. DocumentID and
// RemoteURL are only known when the batch was awaited.
type SubmissionItem struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	RowID      string `json:"rowId,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
	RemoteURL  string `json:"remoteUrl,omitempty"`
	Error      string `json:"error,omitempty"`
}

type SubmissionResponse struct {
	Completed bool             `json:"completed"`
	Files     []SubmissionItem `json:"files"`
}

type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type ChatRequest struct {
	History []ChatMessage `json:"history"`
	Message string        `json:"message" validate:"required"`
}

type SpeechRequest struct {
	Text string `json:"text" validate:"required"`
}

type TextResponse struct {
	Text string `json:"text"`
}
