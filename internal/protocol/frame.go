package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type identifies the kind of a frame on the wire.
type Type string

const (
	TypeConnected  Type = "connected"
	TypeDataChange Type = "data:change"
	TypeAck        Type = "ack"
)

// Action describes what happened to a resource.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	default:
		return false
	}
}

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ErrMalformed is returned by Decode when a payload is not a JSON object.
var ErrMalformed = errors.New("malformed frame")

// Frame is one of Connected, Change, Ack or Unknown.
type Frame interface {
	FrameType() Type
	isFrame()
}

// Connected is sent once right after an authenticated upgrade.
type Connected struct {
	Type     Type   `json:"type"`
	Message  string `json:"message"`
	TenantID string `json:"tenantId"`
}

func (Connected) FrameType() Type { return TypeConnected }
func (Connected) isFrame()        {}

// Change announces a committed mutation of a tenant-scoped resource.
type Change struct {
	Type      Type            `json:"type"`
	Resource  string          `json:"resource"`
	Action    Action          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
	TenantID  string          `json:"tenantId,omitempty"`
}

func (Change) FrameType() Type { return TypeDataChange }
func (Change) isFrame()        {}

// Ack echoes a client message back to its sender.
type Ack struct {
	Type     Type            `json:"type"`
	Received json.RawMessage `json:"received"`
}

func (Ack) FrameType() Type { return TypeAck }
func (Ack) isFrame()        {}

// Unknown carries any well-formed JSON object whose type is not recognised.
type Unknown struct {
	Type Type
	Raw  json.RawMessage
}

func (u Unknown) FrameType() Type { return u.Type }
func (Unknown) isFrame()          {}

// NewChange builds a change frame stamped at the given instant. data may be nil.
func NewChange(tenantID, resource string, action Action, data any, at time.Time) (Change, error) {
	if !action.Valid() {
		return Change{}, fmt.Errorf("invalid action %q", action)
	}
	c := Change{
		Type:      TypeDataChange,
		Resource:  resource,
		Action:    action,
		Timestamp: at.UTC().Format(TimestampLayout),
		TenantID:  tenantID,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Change{}, fmt.Errorf("marshal change data: %w", err)
		}
		c.Data = raw
	}
	return c, nil
}

// Encode serializes a frame, forcing the type discriminator to match the variant.
func Encode(f Frame) ([]byte, error) {
	switch v := f.(type) {
	case Connected:
		v.Type = TypeConnected
		return json.Marshal(v)
	case Change:
		v.Type = TypeDataChange
		return json.Marshal(v)
	case Ack:
		v.Type = TypeAck
		if len(v.Received) == 0 {
			v.Received = json.RawMessage("null")
		}
		return json.Marshal(v)
	case Unknown:
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("unsupported frame %T", f)
	}
}

// Decode parses a text frame into its variant.
func Decode(raw []byte) (Frame, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch head.Type {
	case TypeConnected:
		var f Connected
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return f, nil
	case TypeDataChange:
		var f Change
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return f, nil
	case TypeAck:
		var f Ack
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return f, nil
	default:
		return Unknown{Type: head.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

// IsChangeFor reports whether f is a data change for the given resource.
func IsChangeFor(f Frame, resource string) bool {
	c, ok := f.(Change)
	return ok && c.Resource == resource
}
