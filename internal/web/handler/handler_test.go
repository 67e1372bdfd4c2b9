package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boozedog/guestlog/internal/config"
	"github.com/boozedog/guestlog/internal/guestlog"
	"github.com/boozedog/guestlog/internal/snowflake"
	"github.com/boozedog/guestlog/internal/web/handler"
	"github.com/boozedog/guestlog/internal/web/sse"
)

var testNow = time.Date(2026, 2, 26, 10, 0, 0, 0, time.UTC)

// guestLine returns a record for a guest account created age before testNow.
func guestLine(age time.Duration, token string) string {
	ms := uint64(testNow.Add(-age).UnixMilli())
	id := (ms - snowflake.Epoch) << 22
	return fmt.Sprintf(`{"token":%q,"user":{"id_str":"%d"}}`, token, id)
}

// testSetup creates a guest file with the given lines and returns a handler over it.
func testSetup(t *testing.T, lines ...string) (*handler.Handler, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "guests.jsonl")
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	h := handler.New(guestlog.New(guestlog.NewStore(path)), sse.NewBroker(), nil, 1<<10)
	h.SetClock(func() time.Time { return testNow })
	return h, path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestCount(t *testing.T) {
	h, _ := testSetup(t, `{"a":1}`, `{"b":2}`, `{"c":3}`)

	w := httptest.NewRecorder()
	h.Count(w, httptest.NewRequest(http.MethodGet, "/count", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "3" {
		t.Errorf("body = %q, want %q", body, "3")
	}
}

func TestCountEmpty(t *testing.T) {
	h, _ := testSetup(t)

	w := httptest.NewRecorder()
	h.Count(w, httptest.NewRequest(http.MethodGet, "/count", nil))

	if body := w.Body.String(); body != "0" {
		t.Errorf("body = %q, want %q", body, "0")
	}
}

func TestCountInternalError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "guests.jsonl")
	h := handler.New(guestlog.New(guestlog.NewStore(path)), sse.NewBroker(), nil, 0)

	w := httptest.NewRecorder()
	h.Count(w, httptest.NewRequest(http.MethodGet, "/count", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if body := w.Body.String(); body != "internal server error" {
		t.Errorf("body = %q; internal detail must not leak", body)
	}
}

func TestAppend(t *testing.T) {
	h, path := testSetup(t, `{"a":1}`)

	req := httptest.NewRequest(http.MethodPost, "/append", strings.NewReader(`{"b": 2} {"c": [3]}`))
	w := httptest.NewRecorder()
	h.Append(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
	if got, want := readFile(t, path), "{\"a\":1}\n{\"b\":2}\n{\"c\":[3]}\n"; got != want {
		t.Errorf("file = %q, want %q", got, want)
	}
}

func TestAppendInvalidJSON(t *testing.T) {
	h, path := testSetup(t, `{"a":1}`)
	before := readFile(t, path)

	req := httptest.NewRequest(http.MethodPost, "/append", strings.NewReader(`{"a":1`))
	w := httptest.NewRecorder()
	h.Append(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := w.Body.String(); body != "invalid json" {
		t.Errorf("body = %q, want %q", body, "invalid json")
	}
	if after := readFile(t, path); after != before {
		t.Errorf("file changed: %q -> %q", before, after)
	}
}

func TestAppendInvalidUTF8(t *testing.T) {
	h, path := testSetup(t)

	req := httptest.NewRequest(http.MethodPost, "/append", strings.NewReader("{\"name\":\"a\xffb\"}"))
	w := httptest.NewRecorder()
	h.Append(w, req)

	if w.Code != http.StatusBadRequest || w.Body.String() != "invalid json" {
		t.Fatalf("got %d %q, want 400 %q", w.Code, w.Body.String(), "invalid json")
	}
	if got := readFile(t, path); got != "" {
		t.Errorf("file = %q, want empty", got)
	}
}

func TestAppendTooLarge(t *testing.T) {
	h, path := testSetup(t)

	big := `{"pad":"` + strings.Repeat("x", 2048) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/append", strings.NewReader(big))
	w := httptest.NewRecorder()
	h.Append(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	if got := readFile(t, path); got != "" {
		t.Errorf("file = %q, want empty", got)
	}
}

func TestAppendDefaultBodyLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guests.jsonl")
	h := handler.New(guestlog.New(guestlog.NewStore(path)), sse.NewBroker(), nil, 0)

	big := `"` + strings.Repeat("x", int(config.DefaultMaxBodyBytes)) + `"`
	w := httptest.NewRecorder()
	h.Append(w, httptest.NewRequest(http.MethodPost, "/append", strings.NewReader(big)))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestPrune(t *testing.T) {
	fresh := guestLine(24*time.Hour, "fresh")
	stale := guestLine(26*24*time.Hour, "stale")
	recent := guestLine(time.Hour, "recent")
	h, path := testSetup(t, fresh, stale, recent)

	w := httptest.NewRecorder()
	h.Prune(w, httptest.NewRequest(http.MethodPost, "/prune", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
	if got, want := readFile(t, path), fresh+"\n"+recent+"\n"; got != want {
		t.Errorf("file = %q, want %q", got, want)
	}
}

func TestPruneMalformedRecord(t *testing.T) {
	h, path := testSetup(t, guestLine(40*24*time.Hour, "old"), `{"user":{}}`)
	before := readFile(t, path)

	w := httptest.NewRecorder()
	h.Prune(w, httptest.NewRequest(http.MethodPost, "/prune", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if body := w.Body.String(); body != "internal server error" {
		t.Errorf("body = %q", body)
	}
	if after := readFile(t, path); after != before {
		t.Errorf("file changed on failed prune")
	}
}

func TestIndex(t *testing.T) {
	h, _ := testSetup(t)

	w := httptest.NewRecorder()
	h.Index(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<title>guestlog</title>") {
		t.Error("expected page title")
	}
	if !strings.Contains(body, "<table>") {
		t.Error("expected endpoint table rendered from markdown")
	}
	if !strings.Contains(body, "<code>/count</code>") {
		t.Error("expected /count in endpoint table")
	}
}

func TestEventsStreamsChanges(t *testing.T) {
	broker := sse.NewBroker()
	path := filepath.Join(t.TempDir(), "guests.jsonl")
	h := handler.New(guestlog.New(guestlog.NewStore(path)), broker, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Events(w, req)
		close(done)
	}()

	// Wait for the subscription before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for broker.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	broker.Broadcast(sse.Notice{TS: testNow, File: "guests.jsonl"})

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, ": keepalive") {
		t.Error("expected initial keepalive")
	}
	if !strings.Contains(body, "event: changed\ndata: ") || !strings.Contains(body, `"file":"guests.jsonl"`) {
		t.Errorf("expected changed event, got %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}
