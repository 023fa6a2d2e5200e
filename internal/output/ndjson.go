package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/peakwire/conduit/internal/protocol"
)

// SchemaVersion is bumped when the shape of emitted records changes
const SchemaVersion = 1

// Update is one pushed change notification or bootstrap result
type Update struct {
	Type          string          `json:"type"` // "update"
	SchemaVersion int             `json:"schemaVersion"`
	Path          string          `json:"path"`
	Status        int             `json:"status"`
	Content       json.RawMessage `json:"content"`
}

// Ready is emitted once the handshake completes
type Ready struct {
	Type          string `json:"type"` // "ready"
	SchemaVersion int    `json:"schemaVersion"`
	RemoteName    string `json:"remote_name"`
	RemoteVersion string `json:"remote_version"`
}

// Status is a connection-state snapshot
type Status struct {
	Type          string `json:"type"` // "status"
	SchemaVersion int    `json:"schemaVersion"`
	State         string `json:"state"`
	PingMs        int64  `json:"ping_ms"`
}

// NDJSONWriter emits one JSON object per line, safe for concurrent writers
type NDJSONWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewNDJSONWriter creates a writer emitting to w
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{w: w}
}

// WriteUpdate emits an update record for path
func (n *NDJSONWriter) WriteUpdate(path string, res protocol.Result) error {
	return n.write(Update{
		Type:          "update",
		SchemaVersion: SchemaVersion,
		Path:          path,
		Status:        res.Status,
		Content:       res.Content,
	})
}

// WriteReady emits the handshake record
func (n *NDJSONWriter) WriteReady(remoteName, remoteVersion string) error {
	return n.write(Ready{
		Type:          "ready",
		SchemaVersion: SchemaVersion,
		RemoteName:    remoteName,
		RemoteVersion: remoteVersion,
	})
}

// WriteStatus emits a connection-state snapshot
func (n *NDJSONWriter) WriteStatus(state string, pingMs int64) error {
	return n.write(Status{
		Type:          "status",
		SchemaVersion: SchemaVersion,
		State:         state,
		PingMs:        pingMs,
	})
}

// WriteError emits a machine-readable failure record
func (n *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	rec := map[string]any{
		"type":          "error",
		"schemaVersion": SchemaVersion,
		"code":          code,
		"message":       message,
	}
	if len(hint) > 0 && hint[0] != "" {
		rec["hint"] = hint[0]
	}
	return n.write(rec)
}

func (n *NDJSONWriter) write(rec any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err = n.w.Write(b)
	return err
}
