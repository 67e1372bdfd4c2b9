package cmd

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/boozedog/guestlog/internal/config"
	"github.com/boozedog/guestlog/internal/guestlog"
	"github.com/boozedog/guestlog/internal/snowflake"
	"github.com/boozedog/guestlog/internal/web"
	"github.com/boozedog/guestlog/internal/web/sse"
)

const testSecret = "test-secret"

// testEnv is a running server over a temp guest file.
type testEnv struct {
	Dir  string
	File string
	URL  string
	Log  *guestlog.Log
}

// newTestEnv starts an httptest server serving a fresh guest file and
// clears the environment variables the config layer reads.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	for _, k := range []string{config.EnvPort, config.EnvDestFile, config.EnvAuth, config.EnvConfig} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	file := filepath.Join(dir, "guests.jsonl")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("create guest file: %v", err)
	}

	cfg := config.Default()
	cfg.Server.Port = 1
	cfg.Server.Auth = testSecret
	cfg.Store.Path = file

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := guestlog.New(guestlog.NewStore(file))
	srv := httptest.NewServer(web.Routes(ctx, cfg, log, sse.NewBroker(), nil))
	t.Cleanup(srv.Close)

	return &testEnv{Dir: dir, File: file, URL: srv.URL, Log: log}
}

// runCmd executes a cobra command with the given args and captures stdout.
// Commands use fmt.Printf (writes to os.Stdout), so we redirect os.Stdout
// to a pipe to capture output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("create pipe: %v", err)
	}
	os.Stdout = w

	// Reset global flag vars to avoid state leakage between tests
	resetFlags()

	rootCmd.SetArgs(args)
	execErr := rootCmd.Execute()

	w.Close()
	os.Stdout = origStdout

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read pipe: %v", err)
	}
	r.Close()

	return string(out), execErr
}

// resetFlags resets package-level flag variables to their defaults
// so tests don't leak state between runs.
func resetFlags() {
	configPath = ""
	clientAddr = ""
	clientAuth = ""
	initPort = 8080
	initFile = "guest_accounts.jsonl"
	initAuth = ""
	decodeNow = time.Now
}

// client runs a client command against the test server.
func (e *testEnv) client(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCmd(t, append(args, "--addr", e.URL, "--auth", testSecret)...)
}

func guestLine(now time.Time, age time.Duration, token string) string {
	ms := uint64(now.Add(-age).UnixMilli())
	id := (ms - snowflake.Epoch) << 22
	return `{"token":"` + token + `","user":{"id_str":"` + strconv.FormatUint(id, 10) + `"}}`
}

func TestCountCommand(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(env.File, []byte("{\"a\":1}\n{\"b\":2}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := env.client(t, "count")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "2\n" {
		t.Errorf("output = %q, want %q", out, "2\n")
	}
}

func TestAppendCommandFiles(t *testing.T) {
	env := newTestEnv(t)

	a := filepath.Join(env.Dir, "a.json")
	b := filepath.Join(env.Dir, "b.json")
	if err := os.WriteFile(a, []byte(`{"x": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("{\"y\": 2}\n{\"z\": 3}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := env.client(t, "append", a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Appended "+a) || !strings.Contains(out, "Appended "+b) {
		t.Errorf("output = %q", out)
	}

	data, err := os.ReadFile(env.File)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "{\"x\":1}\n{\"y\":2}\n{\"z\":3}\n"; got != want {
		t.Errorf("file = %q, want %q", got, want)
	}
}

func TestAppendCommandInvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	bad := filepath.Join(env.Dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"x":`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := env.client(t, "append", bad)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "400 invalid json") {
		t.Errorf("error = %v, want status and message", err)
	}
}

func TestAppendCommandMissingFile(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client(t, "append", filepath.Join(env.Dir, "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "open") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestPruneCommand(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	fresh := guestLine(now, time.Hour, "fresh")
	stale := guestLine(now, 30*24*time.Hour, "stale")
	if err := os.WriteFile(env.File, []byte(stale+"\n"+fresh+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := env.client(t, "prune")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Pruned") {
		t.Errorf("output = %q", out)
	}

	data, err := os.ReadFile(env.File)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != fresh+"\n" {
		t.Errorf("file = %q, want only fresh record", got)
	}
}

func TestClientWrongSecret(t *testing.T) {
	env := newTestEnv(t)

	_, err := runCmd(t, "count", "--addr", env.URL, "--auth", "wrong")
	if err == nil || !strings.Contains(err.Error(), "403 forbidden") {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestClientSecretFromConfig(t *testing.T) {
	env := newTestEnv(t)

	cfgPath := filepath.Join(env.Dir, "guestlog.toml")
	if err := os.WriteFile(cfgPath, []byte("[server]\nauth = \""+testSecret+"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "count", "--config", cfgPath, "--addr", env.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "0\n" {
		t.Errorf("output = %q, want %q", out, "0\n")
	}
}

func TestClientNoAddress(t *testing.T) {
	newTestEnv(t)
	missing := filepath.Join(t.TempDir(), "missing.toml")

	_, err := runCmd(t, "count", "--config", missing, "--auth", testSecret)
	if err == nil || !strings.Contains(err.Error(), "no server address") {
		t.Fatalf("expected address error, got %v", err)
	}
}

func TestDecodeCommand(t *testing.T) {
	out, err := runCmd(t, "decode", "1541815603606036480")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "2022-06-28T16:07:40Z") || !strings.Contains(out, "1656432460") {
		t.Errorf("output = %q", out)
	}
	// Any clock after mid-2022 plus 25 days sees this ID as expired.
	if !strings.Contains(out, "expired=true") {
		t.Errorf("output = %q, want expired=true", out)
	}
}

func TestDecodeCommandInvalid(t *testing.T) {
	if _, err := runCmd(t, "decode", "not-a-number"); err == nil {
		t.Fatal("expected error for non-numeric ID")
	}
}

func TestInitCommand(t *testing.T) {
	newTestEnv(t)
	path := filepath.Join(t.TempDir(), "guestlog.toml")

	out, err := runCmd(t, "init", "--config", path, "--port", "9090", "--auth", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Wrote config to "+path) {
		t.Errorf("output = %q", out)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Auth != "abc" || cfg.Store.Path != "guest_accounts.jsonl" {
		t.Errorf("cfg = %+v", cfg)
	}

	out, err = runCmd(t, "init", "--config", path, "--auth", "other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("output = %q, want already exists", out)
	}
}

func TestInitRequiresAuth(t *testing.T) {
	newTestEnv(t)
	path := filepath.Join(t.TempDir(), "guestlog.toml")

	if _, err := runCmd(t, "init", "--config", path); err == nil {
		t.Fatal("expected error without --auth")
	}
}

func TestArchiveCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "guests.jsonl")
	now := time.Now()
	stale := guestLine(now, 40*24*time.Hour, "stale")
	if err := os.WriteFile(file, []byte(stale+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := guestlog.New(guestlog.NewStore(file), guestlog.WithArchiveDir(filepath.Join(dir, "archive")))
	res, err := log.Prune(now)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if res.Archive == "" {
		t.Fatal("expected archive to be written")
	}

	out, err := runCmd(t, "archive", res.Archive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != stale+"\n" {
		t.Errorf("output = %q, want %q", out, stale+"\n")
	}
}
