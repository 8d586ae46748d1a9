package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adaptivefit/coachpipe/internal/persona"
	"github.com/adaptivefit/coachpipe/internal/protocol"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

// handleStream runs the websocket coaching channel: trigger messages in,
// response or error messages out. Firings on one connection are handled
// concurrently so a slow synthesis cannot stall the next set cue; the seq
// field lets the client correlate out-of-order responses.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			send(ctx, outbound, protocol.NewErrorMessage(0, "invalid_message", err.Error()))
			continue
		}
		trig, ok := parsed.(protocol.TriggerMessage)
		if !ok {
			continue
		}
		go func(msg protocol.TriggerMessage) {
			resp, err := s.orch.HandleTrigger(ctx, msg.Req)
			if err != nil {
				code := "internal"
				switch {
				case errors.Is(err, trigger.ErrInvalidTrigger):
					code = "invalid_trigger"
				case errors.Is(err, persona.ErrUnknownPersona):
					code = "unknown_persona"
				}
				send(ctx, outbound, protocol.NewErrorMessage(msg.Seq, code, err.Error()))
				return
			}
			send(ctx, outbound, protocol.NewResponseMessage(msg.Seq, resp))
		}(trig)
	}

	cancel()
	<-writerDone
}

func send(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case <-ctx.Done():
	case outbound <- msg:
	}
}
