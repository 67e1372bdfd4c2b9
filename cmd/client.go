package cmd

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/boozedog/guestlog/internal/web/middleware"
	"github.com/spf13/cobra"
)

// Flags for commands that talk to a running server.
var (
	clientAddr string
	clientAuth string
)

// addClientFlags registers --addr and --auth on c.
func addClientFlags(c *cobra.Command) {
	c.Flags().StringVar(&clientAddr, "addr", "", "server base URL (default from config, e.g. http://127.0.0.1:8080)")
	c.Flags().StringVar(&clientAuth, "auth", "", "shared secret (default from config or AUTH)")
}

// client sends authenticated requests to a guestlog server.
type client struct {
	base string
	auth string
	http *http.Client
}

// newClient resolves the server address and secret from flags, then config.
func newClient() (*client, error) {
	base, auth := clientAddr, clientAuth
	if base == "" || auth == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if base == "" {
			if cfg.Server.Port == 0 {
				return nil, fmt.Errorf("no server address: pass --addr or set server.port")
			}
			base = "http://" + cfg.Addr()
		}
		if auth == "" {
			auth = cfg.Server.Auth
		}
	}
	if auth == "" {
		return nil, fmt.Errorf("no secret: pass --auth or set server.auth")
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &client{
		base: strings.TrimSuffix(base, "/"),
		auth: auth,
		http: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// do sends a request and returns the response body, or an error carrying
// the server's status and message for any non-200 response.
func (c *client) do(method, path string, body io.Reader) (string, error) {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(middleware.AuthHeader, c.auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return string(data), nil
}
