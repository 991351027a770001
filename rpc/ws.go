package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"stakevault/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBufferSize   = 64
)

// EventStream fans staking events out to websocket subscribers. It implements
// the events.Emitter interface so it can sit directly behind the engine's
// fan-out emitter. Slow subscribers drop messages instead of blocking the
// engine.
type EventStream struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewEventStream returns an empty broadcaster.
func NewEventStream() *EventStream {
	return &EventStream{subs: make(map[chan []byte]struct{})}
}

type streamEnvelope struct {
	Type  string       `json:"type"`
	Event events.Event `json:"event"`
}

// Emit implements the events.Emitter interface.
func (s *EventStream) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	payload, err := json.Marshal(streamEnvelope{Type: evt.EventType(), Event: evt})
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

func (s *EventStream) subscribe() chan []byte {
	sub := make(chan []byte, wsBufferSize)
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

func (s *EventStream) unsubscribe(sub chan []byte) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

func (s *EventStream) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	sub := s.subscribe()
	defer s.unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-sub:
			if err := writeStreamPayload(ctx, conn, payload); err != nil {
				return
			}
		}
	}
}

func writeStreamPayload(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}
