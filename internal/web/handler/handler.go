package handler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/boozedog/guestlog/internal/config"
	"github.com/boozedog/guestlog/internal/guestlog"
	"github.com/boozedog/guestlog/internal/metrics"
	"github.com/boozedog/guestlog/internal/web/middleware"
	"github.com/boozedog/guestlog/internal/web/sse"
)

// Response bodies. Internal detail is only ever logged, never returned.
const (
	msgInvalidJSON = "invalid json"
	msgInternal    = "internal server error"
	msgTooLarge    = "payload too large"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	log     *guestlog.Log
	broker  *sse.Broker
	metrics *metrics.Metrics
	maxBody int64
	now     func() time.Time
}

// New creates a new Handler. m may be nil when metrics are disabled. A
// non-positive maxBody means config.DefaultMaxBodyBytes.
func New(log *guestlog.Log, broker *sse.Broker, m *metrics.Metrics, maxBody int64) *Handler {
	if maxBody <= 0 {
		maxBody = config.DefaultMaxBodyBytes
	}
	return &Handler{
		log:     log,
		broker:  broker,
		metrics: m,
		maxBody: maxBody,
		now:     time.Now,
	}
}

// SetClock replaces the clock Prune reads "now" from.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// writeText writes body as text/plain with no trailing newline.
func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

// internalError logs err with request context and answers 500 with a
// generic body.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error("internal error",
		"op", op,
		"err", err,
		"request_id", middleware.RequestIDFrom(r.Context()),
	)
	writeText(w, http.StatusInternalServerError, msgInternal)
}
