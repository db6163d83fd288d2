// Package protocol implements the JSON signaling codec: a closed tagged
// union with one variant per message type. Decoding rejects unknown tags,
// unknown optional fields are ignored for forward compatibility.
package protocol

import (
	"encoding/json"
	"fmt"
)

// DecodeError reports a malformed frame or an unrecognized type tag.
type DecodeError struct {
	Tag string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("decode signaling message type %q: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("decode signaling message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errUnknownType = fmt.Errorf("unknown message type")

// Decode parses an inbound frame into its typed variant.
func Decode(data []byte) (ClientMessage, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}

	switch env.Type {
	case "join":
		return decodeAs[Join](env.Type, data)
	case "offer":
		return decodeAs[Offer](env.Type, data)
	case "answer":
		return decodeAs[Answer](env.Type, data)
	case "candidate":
		return decodeAs[Candidate](env.Type, data)
	case "state_update":
		return decodeAs[StateUpdate](env.Type, data)
	case "start_screen_share":
		return StartScreenShare{}, nil
	case "stop_screen_share":
		return StopScreenShare{}, nil
	case "ping":
		return Ping{}, nil
	case "get_participants":
		return GetParticipants{}, nil
	default:
		return nil, &DecodeError{Tag: env.Type, Err: errUnknownType}
	}
}

func decodeAs[T ClientMessage](tag string, data []byte) (ClientMessage, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &DecodeError{Tag: tag, Err: err}
	}
	return msg, nil
}

// Encode serializes an outbound message. Total for all valid variants.
func Encode(msg ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}
