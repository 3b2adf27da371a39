// Package telemetry implements the optional anonymous classification
// reporter. When enabled, every classified utterance is POSTed to the
// configured collector so intent coverage can be measured across
// deployments.
//
// Reporting is best-effort and fire-and-forget: failures are logged and
// dropped, never surfaced to the turn. The SENNET_ENV=testing environment
// suppresses reporting entirely so test runs do not pollute the collector.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sennet-ai/sennet/pkg/types"
)

// originHeader identifies this core to the collector.
const originHeader = "sennet-core"

// envTesting is the SENNET_ENV value that suppresses reporting.
const envTesting = "testing"

// Config controls the reporter.
type Config struct {
	// Enabled turns reporting on. Off by default.
	Enabled bool

	// Endpoint is the collector base URL, e.g. "https://logger.sennet.ai".
	Endpoint string

	// Version is the core version included in every report.
	Version string
}

// expression is the wire shape of one report.
type expression struct {
	Version        string               `json:"version"`
	Utterance      string               `json:"utterance"`
	Lang           string               `json:"lang"`
	Classification types.Classification `json:"classification"`
}

// Client reports classified utterances to the collector. Safe for
// concurrent use.
type Client struct {
	cfg  Config
	http *http.Client

	// env reads the environment; replaced in tests.
	env func(string) string
}

// New creates a Client. A disabled config still yields a usable client
// whose Report is a no-op.
func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 5 * time.Second},
		env:  os.Getenv,
	}
}

// Report sends one classification to the collector. No-op when disabled or
// when running under SENNET_ENV=testing.
func (c *Client) Report(ctx context.Context, utterance, lang string, cls types.Classification) {
	if !c.cfg.Enabled || c.cfg.Endpoint == "" {
		return
	}
	if c.env("SENNET_ENV") == envTesting {
		return
	}

	body, err := json.Marshal(expression{
		Version:        c.cfg.Version,
		Utterance:      utterance,
		Lang:           lang,
		Classification: cls,
	})
	if err != nil {
		slog.Warn("telemetry: encode report", "err", err)
		return
	}

	url := c.cfg.Endpoint + "/v1/expressions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		slog.Warn("telemetry: build request", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Origin", originHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("telemetry: report failed", "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		slog.Warn("telemetry: collector rejected report", "err", fmt.Errorf("unexpected status %s", resp.Status))
	}
}
