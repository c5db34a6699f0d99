package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcoot/smartkiosk/internal/model"
)

// MessageType identifies an inbound client message
type MessageType string

const (
	MessageFrame      MessageType = "frame"
	MessagePing       MessageType = "ping"
	MessageCartRemove MessageType = "cart_remove"
)

// ErrMalformed marks an inbound message that is not a JSON object. It is
// fatal to the connection. A JSON object whose fields have the wrong types
// is a validation error instead.
var ErrMalformed = errors.New("malformed message")

// Message is one decoded inbound message: FrameMessage, PingMessage or
// CartRemoveMessage.
type Message interface {
	messageType() MessageType
}

// FrameMessage carries one encoded camera frame
type FrameMessage struct {
	Frame string
}

// PingMessage asks the server for a pong
type PingMessage struct{}

// CartRemoveMessage removes the cart line at Index
type CartRemoveMessage struct {
	Index int
}

func (FrameMessage) messageType() MessageType      { return MessageFrame }
func (PingMessage) messageType() MessageType       { return MessagePing }
func (CartRemoveMessage) messageType() MessageType { return MessageCartRemove }

// envelope is the raw wire shape of every inbound message
type envelope struct {
	Type  MessageType `json:"type"`
	Frame *string     `json:"frame"`
	Index *int        `json:"index"`
}

// ParseMessage validates data against the inbound schema. Invalid JSON
// returns ErrMalformed; a JSON object with an unknown type, a missing field
// or a mistyped field returns an error wrapping model.ErrValidation.
func ParseMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, fmt.Errorf("%w: field %s: %v", model.ErrValidation, typeErr.Field, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case MessageFrame:
		if env.Frame == nil {
			return nil, fmt.Errorf("%w: frame message without frame", model.ErrValidation)
		}
		return FrameMessage{Frame: *env.Frame}, nil
	case MessagePing:
		return PingMessage{}, nil
	case MessageCartRemove:
		if env.Index == nil {
			return nil, fmt.Errorf("%w: cart_remove message without index", model.ErrValidation)
		}
		return CartRemoveMessage{Index: *env.Index}, nil
	case "":
		return nil, fmt.Errorf("%w: message without type", model.ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", model.ErrValidation, env.Type)
	}
}

// EncodeEvent renders an event as a flat JSON object: the payload's fields
// plus "type".
func EncodeEvent(event model.Event) ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if event.Payload != nil {
		raw, err := json.Marshal(event.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", event.Type, err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%s payload is not an object: %w", event.Type, err)
		}
	}

	typ, err := json.Marshal(event.Type)
	if err != nil {
		return nil, err
	}
	fields["type"] = typ

	return json.Marshal(fields)
}
