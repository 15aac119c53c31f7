package model

import "encoding/json"

// MutationKind selects the remote method used to deliver a queued mutation.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Valid reports whether k is a known kind.
func (k MutationKind) Valid() bool {
	switch k {
	case MutationCreate, MutationUpdate, MutationDelete:
		return true
	}
	return false
}

// QueuedMutation is a pending remote operation. The JSON field names are
// the persisted layout of the offline queue.
type QueuedMutation struct {
	ID         string          `json:"id"`
	Kind       MutationKind    `json:"kind"`
	Endpoint   string          `json:"endpoint"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  int64           `json:"timestamp"`
	RetryCount int             `json:"retryCount"`
}
