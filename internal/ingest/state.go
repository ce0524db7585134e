package ingest

import "fmt"

// State is the position of one submitted file in the ingestion pipeline.
type State int

const (
	Submitted State = iota
	RejectedSize
	RejectedType
	Persisting
	PersistFailed
	Persisted
	Uploading
	UploadOK
	UploadFailed
)

var stateNames = [...]string{
	Submitted:     "submitted",
	RejectedSize:  "rejected_size",
	RejectedType:  "rejected_type",
	Persisting:    "persisting",
	PersistFailed: "persist_failed",
	Persisted:     "persisted",
	Uploading:     "uploading",
	UploadOK:      "upload_ok",
	UploadFailed:  "upload_failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case RejectedSize, RejectedType, PersistFailed, UploadOK, UploadFailed:
		return true
	}
	return false
}

var transitions = map[State][]State{
	Submitted:  {RejectedSize, RejectedType, Persisting},
	Persisting: {PersistFailed, Persisted},
	Persisted:  {Uploading},
	Uploading:  {UploadOK, UploadFailed},
}

// CanTransition reports whether from -> to is a legal pipeline step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrTransition is returned for an illegal state change.
type ErrTransition struct {
	From, To State
}

func (e *ErrTransition) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
