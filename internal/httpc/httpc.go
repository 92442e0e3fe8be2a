package httpc

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Httpc builds clients for talking to a running dataupgrader server.
type Httpc struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	TlsConfig *tls.Config
}

// New returns a resty.Client configured according to the receiver.
// Defaults: MinVersion TLS1.3 when a TLS config is given with MinVersion zero.
func (h *Httpc) New() *resty.Client {
	c := resty.New()
	if base := strings.TrimRight(strings.TrimSpace(h.BaseURL), "/"); base != "" {
		c.SetBaseURL(base)
	}
	if h.Timeout > 0 {
		c.SetTimeout(h.Timeout)
	}
	if h.Token != "" {
		c.SetAuthToken(h.Token)
	}
	c.SetHeader("Accept", "application/json")

	cfg := h.TlsConfig
	if cfg == nil {
		return c
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS13
	}
	c.SetTLSClientConfig(cfg)
	return c
}
