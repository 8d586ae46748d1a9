// Package protocol defines the websocket wire format for the streaming
// coaching channel.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adaptivefit/coachpipe/internal/coach"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeTrigger  MessageType = "trigger"
	TypeResponse MessageType = "response"
	TypeError    MessageType = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// TriggerMessage is a trigger firing sent over the socket.
type TriggerMessage struct {
	Type MessageType   `json:"type"`
	Seq  int           `json:"seq"`
	Req  coach.Request `json:"request"`
}

// ResponseMessage echoes the client's seq so firings and responses can be
// correlated on a shared connection.
type ResponseMessage struct {
	Type MessageType    `json:"type"`
	Seq  int            `json:"seq"`
	Resp coach.Response `json:"response"`
}

type ErrorMessage struct {
	Type   MessageType `json:"type"`
	Seq    int         `json:"seq"`
	Code   string      `json:"code"`
	Detail string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeTrigger:
		var msg TriggerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Req.UserID == "" || msg.Req.Kind == "" {
			return nil, errors.New("invalid trigger message")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

func NewResponseMessage(seq int, resp coach.Response) ResponseMessage {
	return ResponseMessage{Type: TypeResponse, Seq: seq, Resp: resp}
}

func NewErrorMessage(seq int, code, detail string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Seq: seq, Code: code, Detail: detail}
}
