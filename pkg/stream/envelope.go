package stream

import "github.com/taskboard/taskboard.go/pkg/patch"

// Envelope is one text message on a patch stream.
//
// The server tags each message kind with a single top-level key
// ("JsonPatch", "Stdout", "Stderr", "SessionId"), except the end-of-stream
// marker which is spelled {"finished": true}. Exactly one field is set per
// message; a message with none set is unknown and gets ignored.
type Envelope struct {
	JSONPatch *patch.Batch `json:"JsonPatch,omitempty"`
	Stdout    *string      `json:"Stdout,omitempty"`
	Stderr    *string      `json:"Stderr,omitempty"`
	SessionID *string      `json:"SessionId,omitempty"`
	Finished  *bool        `json:"finished,omitempty"`
}

// IsFinished reports whether the envelope is the end-of-stream marker.
func (e *Envelope) IsFinished() bool {
	return e.Finished != nil && *e.Finished
}
