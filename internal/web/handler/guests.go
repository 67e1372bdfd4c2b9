package handler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/boozedog/guestlog/internal/guestlog"
	"github.com/boozedog/guestlog/internal/metrics"
	"github.com/boozedog/guestlog/internal/web/middleware"
)

// Count responds with the number of guest accounts as a decimal string.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	n, err := h.log.Count()
	if err != nil {
		h.metrics.ObserveOperation("count", metrics.ResultError, time.Since(start))
		h.internalError(w, r, "count", err)
		return
	}
	h.metrics.ObserveOperation("count", metrics.ResultOK, time.Since(start))

	writeText(w, http.StatusOK, strconv.Itoa(n))
}

// Append adds every JSON value in the request body to the guest file.
// The body is read in full before the file lock is taken.
func (h *Handler) Append(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		h.internalError(w, r, "append", err)
		return
	}

	start := time.Now()
	n, err := h.log.Append(bytes.NewReader(body))
	h.metrics.AddAppended(n)

	switch {
	case errors.Is(err, guestlog.ErrInvalidJSON):
		h.metrics.ObserveOperation("append", metrics.ResultInvalidJSON, time.Since(start))
		slog.Warn("rejected append",
			"err", err,
			"written", n,
			"request_id", middleware.RequestIDFrom(r.Context()),
		)
		writeText(w, http.StatusBadRequest, msgInvalidJSON)
	case err != nil:
		h.metrics.ObserveOperation("append", metrics.ResultError, time.Since(start))
		h.internalError(w, r, "append", err)
	default:
		h.metrics.ObserveOperation("append", metrics.ResultOK, time.Since(start))
		slog.Debug("appended guests", "count", n)
		w.WriteHeader(http.StatusOK)
	}
}

// Prune removes guest accounts older than guestlog.MaxAge.
func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	start := time.Now()

	res, err := h.log.Prune(now)
	if err != nil {
		h.metrics.ObserveOperation("prune", metrics.ResultError, time.Since(start))
		h.internalError(w, r, "prune", err)
		return
	}
	h.metrics.ObserveOperation("prune", metrics.ResultOK, time.Since(start))
	h.metrics.ObservePrune(res.Kept, res.Removed)

	slog.Info("pruned guests",
		"kept", res.Kept,
		"removed", res.Removed,
		"archive", res.Archive,
		"request_id", middleware.RequestIDFrom(r.Context()),
	)
	w.WriteHeader(http.StatusOK)
}
