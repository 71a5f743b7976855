package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bnema/omapdss/internal/driver"
	"github.com/bnema/omapdss/internal/modeset"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxMessageSize bounds a single frame
const maxMessageSize = 1 << 20

// Op names a request
type Op string

const (
	OpStatus      Op = "status"
	OpConnect     Op = "connect"
	OpDisconnect  Op = "disconnect"
	OpApply       Op = "apply"
	OpPlan        Op = "plan"
	OpFreeOverlay Op = "free_overlay"
	OpSetMode     Op = "set_mode"
	OpDPMS        Op = "dpms"
	OpResize      Op = "resize"
)

// Request is a control request
type Request struct {
	Op          Op     `json:"op"`
	Display     string `json:"display,omitempty"`
	Framebuffer int    `json:"framebuffer,omitempty"`
	Overlay     int    `json:"overlay,omitempty"`
	// Mode is a timings string, empty for the native mode
	Mode   string `json:"mode,omitempty"`
	Power  string `json:"power,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Apply  bool   `json:"apply,omitempty"`
}

// Response answers a Request
type Response struct {
	OK       bool              `json:"ok"`
	Error    string            `json:"error,omitempty"`
	Status   *driver.Status    `json:"status,omitempty"`
	Report   *driver.Report    `json:"report,omitempty"`
	Geometry *modeset.Geometry `json:"geometry,omitempty"`
	Plan     []string          `json:"plan,omitempty"`
	Overlay  int               `json:"overlay"`
}

// NewErrorResponse creates a failed response
func NewErrorResponse(err error) *Response {
	return &Response{Error: err.Error()}
}

// Err returns the server side error, if any
func (r *Response) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return fmt.Errorf("server error")
	}
	return fmt.Errorf("server error: %s", r.Error)
}

// toStruct converts a tagged struct to a protobuf Struct
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct fills v from a protobuf Struct
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// readMessage reads one length-prefixed message into v
func readMessage(r io.Reader, v any) error {
	// Read message length (4 bytes, big endian)
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("failed to read message length: %w", err)
	}
	if length > maxMessageSize {
		return fmt.Errorf("message too large: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("failed to read message data: %w", err)
	}

	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if err := fromStruct(&msg, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}

// writeMessage writes v as one length-prefixed message
func writeMessage(w io.Writer, v any) error {
	msg, err := toStruct(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// Write message length (4 bytes, big endian)
	length := uint32(len(data)) //nolint:gosec // bounded by maxMessageSize on read
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return fmt.Errorf("failed to write message length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write message data: %w", err)
	}
	return nil
}
