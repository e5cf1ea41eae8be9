package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMessageType marks a frame whose type tag is not part of
// the contract. It is a recoverable decode error, never a silent skip.
var ErrUnknownMessageType = errors.New("protocol: unknown message type")

// NewMessage wraps data in an envelope of the given type.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s: %w", messageType, err)
		}
		raw = encoded
	}
	return &Message{Type: messageType, Data: raw}, nil
}

// Encode serializes a complete frame.
func Encode(messageType MessageType, data any) ([]byte, error) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// ParseMessage decodes an envelope without touching the payload.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	return msg, nil
}

// DecodeBotFrame decodes an inbound frame from a bot into the closed
// BotFrame set.
func DecodeBotFrame(data []byte) (BotFrame, error) {
	msg, err := ParseMessage(data)
	if err != nil {
		return nil, err
	}

	switch msg.Type {
	case TypeRegisterBot:
		var meta BotMetadata
		if err := json.Unmarshal(msg.Data, &meta); err != nil {
			return nil, fmt.Errorf("protocol: decode register_bot: %w", err)
		}
		return RegisterBot{Metadata: meta}, nil

	case TypePing:
		return Ping{}, nil

	case TypeMove:
		var move Move
		if err := json.Unmarshal(msg.Data, &move); err != nil {
			return nil, fmt.Errorf("protocol: decode move: %w", err)
		}
		return move, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
}
