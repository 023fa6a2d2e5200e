package protocol

import (
	"encoding/json"
	"fmt"
)

// Opcode identifies the kind of a wire frame. Frames are JSON arrays whose
// first element is the opcode, followed by positional fields.
type Opcode int

const (
	OpHandshake Opcode = iota + 1
	OpHandshakeComplete
	OpSubscribe
	OpUnsubscribe
	OpUpdate
	OpRequest
	OpResponse
)

// String returns a short name for logging
func (op Opcode) String() string {
	switch op {
	case OpHandshake:
		return "handshake"
	case OpHandshakeComplete:
		return "handshake_complete"
	case OpSubscribe:
		return "subscribe"
	case OpUnsubscribe:
		return "unsubscribe"
	case OpUpdate:
		return "update"
	case OpRequest:
		return "request"
	case OpResponse:
		return "response"
	}
	return fmt.Sprintf("opcode(%d)", int(op))
}

// Result is a snapshot of a remote resource: an HTTP-like status plus the
// decoded body. The body's shape is opaque to the relay.
type Result struct {
	Status  int             `json:"status"`
	Content json.RawMessage `json:"content"`
}

// OK reports whether the status is in the 2xx range
func (r Result) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Frame is one decoded wire frame: opcode plus raw positional fields
// (excluding the opcode itself).
type Frame struct {
	Op     Opcode
	fields []json.RawMessage
}

// Decode parses a text frame into a Frame. It validates only the array shape
// and the opcode; positional fields are decoded lazily by the typed accessors.
func Decode(data []byte) (*Frame, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("frame is not a JSON array: %w", err)
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("frame is empty")
	}
	var op Opcode
	if err := json.Unmarshal(elems[0], &op); err != nil {
		return nil, fmt.Errorf("frame opcode: %w", err)
	}
	return &Frame{Op: op, fields: elems[1:]}, nil
}

// Welcome decodes a HANDSHAKE_COMPLETE frame:
// [op, remoteVersion, remoteName, notificationToken]
func (f *Frame) Welcome() (version, name, token string, err error) {
	if f.Op != OpHandshakeComplete {
		return "", "", "", fmt.Errorf("not a handshake_complete frame: %s", f.Op)
	}
	if err := f.decodeFields(&version, &name, &token); err != nil {
		return "", "", "", err
	}
	return version, name, token, nil
}

// Update decodes an UPDATE frame: [op, path, status, content]
func (f *Frame) Update() (path string, res Result, err error) {
	if f.Op != OpUpdate {
		return "", Result{}, fmt.Errorf("not an update frame: %s", f.Op)
	}
	if err := f.decodeFields(&path, &res.Status, &res.Content); err != nil {
		return "", Result{}, err
	}
	return path, res, nil
}

// Response decodes a RESPONSE frame: [op, id, status, content]
func (f *Frame) Response() (id uint64, res Result, err error) {
	if f.Op != OpResponse {
		return 0, Result{}, fmt.Errorf("not a response frame: %s", f.Op)
	}
	if err := f.decodeFields(&id, &res.Status, &res.Content); err != nil {
		return 0, Result{}, err
	}
	return id, res, nil
}

func (f *Frame) decodeFields(dst ...any) error {
	if len(f.fields) < len(dst) {
		return fmt.Errorf("%s frame has %d fields, want %d", f.Op, len(f.fields), len(dst))
	}
	for i, d := range dst {
		if err := json.Unmarshal(f.fields[i], d); err != nil {
			return fmt.Errorf("%s frame field %d: %w", f.Op, i+1, err)
		}
	}
	return nil
}

// EncodeHandshake builds the [HANDSHAKE] frame sent as the first outbound
// message after the transport opens.
func EncodeHandshake() []byte {
	return mustEncode(OpHandshake)
}

// EncodeSubscribe builds a [SUBSCRIBE, pathOrPatternSource] frame
func EncodeSubscribe(source string) []byte {
	return mustEncode(OpSubscribe, source)
}

// EncodeUnsubscribe builds an [UNSUBSCRIBE, path] frame
func EncodeUnsubscribe(source string) []byte {
	return mustEncode(OpUnsubscribe, source)
}

// EncodeRequest builds a [REQUEST, id, path, method, body?] frame. A nil body
// is omitted from the array rather than encoded as null.
func EncodeRequest(id uint64, path, method string, body any) ([]byte, error) {
	elems := []any{OpRequest, id, path, method}
	if body != nil {
		elems = append(elems, body)
	}
	return json.Marshal(elems)
}

func mustEncode(elems ...any) []byte {
	b, err := json.Marshal(elems)
	if err != nil {
		// Opcodes and strings cannot fail to marshal.
		panic(err)
	}
	return b
}
