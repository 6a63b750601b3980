package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/iho/rideledger/internal/adapter/http/dto"
	"github.com/iho/rideledger/internal/domain"
)

// Watcher streams order snapshots.
type Watcher interface {
	WatchOrder(ctx context.Context, orderID string) iter.Seq2[*domain.Order, error]
	WatchOrdersByStatus(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) iter.Seq2[[]*domain.Order, error]
}

// WatchHandler serves order streams as server-sent events.
type WatchHandler struct {
	watcher Watcher
}

// NewWatchHandler creates a new WatchHandler.
func NewWatchHandler(watcher Watcher) *WatchHandler {
	return &WatchHandler{watcher: watcher}
}

// Order streams one order until it reaches a terminal status or the client
// disconnects.
func (h *WatchHandler) Order(w http.ResponseWriter, r *http.Request) {
	stream := newEventStream(w)
	for order, err := range h.watcher.WatchOrder(r.Context(), chi.URLParam(r, "id")) {
		if !stream.send("order", order, err) {
			return
		}
	}
	stream.close()
}

// Board streams the list of orders in a status, pending by default.
func (h *WatchHandler) Board(w http.ResponseWriter, r *http.Request) {
	status, filter, err := parseBoardQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	stream := newEventStream(w)
	for orders, err := range h.watcher.WatchOrdersByStatus(r.Context(), status, filter) {
		var payload any
		if err == nil {
			payload = dto.ListOrdersResponse{
				Orders: dto.OrdersFromDomain(orders),
				Limit:  filter.Limit,
				Offset: filter.Offset,
			}
		}
		if !stream.send("orders", payload, err) {
			return
		}
	}
	stream.close()
}

// eventStream writes SSE frames. Headers are sent lazily so that an error
// before the first snapshot becomes a plain JSON error response.
type eventStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newEventStream(w http.ResponseWriter) *eventStream {
	return &eventStream{w: w, rc: http.NewResponseController(w)}
}

// send writes one frame and reports whether the stream should continue.
func (s *eventStream) send(event string, payload any, err error) bool {
	if err != nil {
		if !s.started && !errors.Is(err, domain.ErrUnavailable) {
			writeError(s.w, err)
			return false
		}
		s.start()
		return s.write("error", dto.ErrorResponse{
			Error:   domain.UserMessage(err),
			Message: err.Error(),
			Kind:    string(domain.KindOf(err)),
			Action:  domain.SuggestedAction(err),
		})
	}

	s.start()
	if order, ok := payload.(*domain.Order); ok {
		payload = dto.OrderFromDomain(order)
	}
	return s.write(event, payload)
}

func (s *eventStream) start() {
	if s.started {
		return
	}
	s.started = true

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *eventStream) write(event string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode stream event")
		return false
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return false
	}
	if err := s.rc.Flush(); err != nil {
		log.Debug().Err(err).Msg("stream flush failed")
		return false
	}
	return true
}

// close ends a finished stream with an end frame.
func (s *eventStream) close() {
	if !s.started {
		s.start()
	}
	_, _ = fmt.Fprint(s.w, "event: end\ndata: {}\n\n")
	_ = s.rc.Flush()
}
