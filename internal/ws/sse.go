package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/injops/dashboard/internal/store"
	"go.uber.org/zap"
)

const sseKeepAlive = 25 * time.Second

// SSEHandler streams page refresh notifications as server-sent events for
// clients that cannot hold a WebSocket open.
type SSEHandler struct {
	source Subscriber
	logger *zap.SugaredLogger
}

func NewSSEHandler(source Subscriber, logger *zap.SugaredLogger) *SSEHandler {
	return &SSEHandler{source: source, logger: logger}
}

func (h *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	pages := make(map[string]bool)
	for _, p := range r.URL.Query()["page"] {
		pages[p] = true
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	sub := h.source.Subscribe(ctx, store.ChannelPageRefreshed)
	defer sub.Close()

	h.logger.Debugw("SSE connection established", "pages", r.URL.Query()["page"])
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var event pageEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Warnw("Dropping malformed refresh notification", "error", err)
				continue
			}
			if len(pages) > 0 && !pages[event.Page] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, msg.Payload)
			flusher.Flush()
		}
	}
}
