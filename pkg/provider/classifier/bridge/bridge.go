// Package bridge implements the classifier.Provider interface as a client
// for a classifier sidecar process speaking a small JSON-over-HTTP contract.
//
// The sidecar hosts the actual trained model (the model runtime is not
// reimplemented in Go) and exposes one route per provider operation:
//
//	POST /load       {"path": ...}
//	POST /process    {"lang": ..., "utterance": ...}
//	POST /synonym    {"lang": ..., "entity": ..., "value": ..., "surface_forms": [...]}
//	POST /builtin    {"names": [...]}
//	POST /domain     {"locale": ..., "intent": ...}
//	POST /slots      {"locale": ..., "intent": ...}
//	POST /entities   {"lang": ..., "utterance": ..., "skill_entities": [...]}
//
// Every route answers 200 with a JSON body on success and a non-2xx status
// with {"error": ...} on failure. A 404 from /load is mapped onto
// fs.ErrNotExist so the model loader can tell "never trained" apart from a
// corrupt model.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sennet-ai/sennet/pkg/provider/classifier"
	"github.com/sennet-ai/sennet/pkg/types"
)

// Compile-time check that *Client satisfies [classifier.Provider].
var _ classifier.Provider = (*Client)(nil)

const defaultTimeout = 10 * time.Second

// Option configures a [Client] during construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Useful in tests with
// httptest servers carrying custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the per-request timeout. The default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

// Client is an HTTP client for a classifier sidecar. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	hc         *http.Client
	spellCheck atomic.Bool
}

// New creates a Client for the sidecar at baseURL, e.g. "http://127.0.0.1:1342".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Load asks the sidecar to load the model file at path.
func (c *Client) Load(ctx context.Context, path string) error {
	err := c.post(ctx, "/load", map[string]any{
		"path":        path,
		"spell_check": c.spellCheck.Load(),
	}, nil)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return fmt.Errorf("bridge: load %q: %w", path, fs.ErrNotExist)
		}
		return fmt.Errorf("bridge: load %q: %w", path, err)
	}
	return nil
}

// SetSpellCheck toggles spell checking. The flag is sent with the next Load;
// sidecars that support live toggling also accept it on /process.
func (c *Client) SetSpellCheck(enabled bool) {
	c.spellCheck.Store(enabled)
}

// Process classifies the utterance.
func (c *Client) Process(ctx context.Context, lang, utterance string) (classifier.Result, error) {
	var res classifier.Result
	err := c.post(ctx, "/process", map[string]any{
		"lang":        lang,
		"utterance":   utterance,
		"spell_check": c.spellCheck.Load(),
	}, &res)
	if err != nil {
		return classifier.Result{}, fmt.Errorf("bridge: process: %w", err)
	}
	return res, nil
}

// RegisterSynonym registers an additional surface form for an entity value.
func (c *Client) RegisterSynonym(lang, entity, value string, surfaceForms []string) error {
	err := c.post(context.Background(), "/synonym", map[string]any{
		"lang":          lang,
		"entity":        entity,
		"value":         value,
		"surface_forms": surfaceForms,
	}, nil)
	if err != nil {
		return fmt.Errorf("bridge: register synonym %s=%s: %w", entity, value, err)
	}
	return nil
}

// RegisterBuiltinEntities activates the named built-in entity extractors.
func (c *Client) RegisterBuiltinEntities(names []string) error {
	if err := c.post(context.Background(), "/builtin", map[string]any{"names": names}, nil); err != nil {
		return fmt.Errorf("bridge: register builtin entities: %w", err)
	}
	return nil
}

// IntentDomain returns the domain the intent belongs to under locale.
func (c *Client) IntentDomain(locale, intent string) (string, error) {
	var out struct {
		Domain string `json:"domain"`
	}
	err := c.post(context.Background(), "/domain", map[string]any{
		"locale": locale,
		"intent": intent,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("bridge: intent domain: %w", err)
	}
	return out.Domain, nil
}

// MandatorySlots returns the mandatory slots for the intent's action.
func (c *Client) MandatorySlots(locale, intent string) ([]classifier.SlotSpec, error) {
	var out struct {
		Slots []classifier.SlotSpec `json:"slots"`
	}
	err := c.post(context.Background(), "/slots", map[string]any{
		"locale": locale,
		"intent": intent,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("bridge: mandatory slots: %w", err)
	}
	return out.Slots, nil
}

// ExtractEntities runs the sidecar's NER over the utterance.
func (c *Client) ExtractEntities(ctx context.Context, lang, utterance string, skillEntities []classifier.EntitySpec) ([]types.Entity, error) {
	var out struct {
		Entities []types.Entity `json:"entities"`
	}
	err := c.post(ctx, "/entities", map[string]any{
		"lang":           lang,
		"utterance":      utterance,
		"skill_entities": skillEntities,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("bridge: extract entities: %w", err)
	}
	return out.Entities, nil
}

// ─── HTTP plumbing ───────────────────────────────────────────────────────────

// statusError is a non-2xx response from the sidecar.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("sidecar returned %d: %s", e.code, e.msg)
	}
	return fmt.Sprintf("sidecar returned %d", e.code)
}

// post sends a JSON body to route and decodes the response into out when
// out is non-nil.
func (c *Client) post(ctx context.Context, route string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &apiErr)
		return &statusError{code: resp.StatusCode, msg: apiErr.Error}
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
