package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config locates a dataset on the hosted store.
type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	UseCDN     bool
	Timeout    time.Duration
}

// DefaultConfig returns the production dataset settings used by the site.
func DefaultConfig() Config {
	return Config{
		ProjectID:  "l2w4m5p0",
		Dataset:    "production",
		APIVersion: "2023-05-03",
		UseCDN:     true,
		Timeout:    30 * time.Second,
	}
}

// Client speaks the hosted store's HTTP API.
type Client struct {
	cfg  Config
	http *resty.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport swaps the HTTP transport, used by tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.SetTransport(rt)
	}
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("content: project id is required")
	}
	if cfg.Dataset == "" {
		return nil, errors.New("content: dataset is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultConfig().APIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	hc := resty.New()
	hc.SetTimeout(cfg.Timeout)
	hc.SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}
	hc.OnAfterResponse(logResponse)

	c := &Client{cfg: cfg, http: hc}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the client's settings.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) apiBase() string {
	return fmt.Sprintf("https://%s.api.sanity.io/v%s", c.cfg.ProjectID, c.cfg.APIVersion)
}

// readBase uses the edge cache only for anonymous reads.
func (c *Client) readBase() string {
	if c.cfg.UseCDN && c.cfg.Token == "" {
		return fmt.Sprintf("https://%s.apicdn.sanity.io/v%s", c.cfg.ProjectID, c.cfg.APIVersion)
	}
	return c.apiBase()
}

// Fetch runs a raw GROQ query and decodes the result into out.
func (c *Client) Fetch(ctx context.Context, groq string, params map[string]any, out any) error {
	req := c.http.R().SetContext(ctx).SetQueryParam("query", groq)
	for name, value := range params {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode query param %q: %w", name, err)
		}
		req.SetQueryParam("$"+name, string(encoded))
	}

	endpoint := fmt.Sprintf("%s/data/query/%s", c.readBase(), url.PathEscape(c.cfg.Dataset))
	res, err := req.Get(endpoint)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if res.IsError() {
		return newAPIError(res.StatusCode(), res.Body())
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		return fmt.Errorf("decode query response: %w", err)
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode query result: %w", err)
	}
	return nil
}

// Query runs a structured query.
func (c *Client) Query(ctx context.Context, q Query) ([]Document, error) {
	groq, params := q.GROQ()
	var docs []Document
	if err := c.Fetch(ctx, groq, params, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Get loads one document by id.
func (c *Client) Get(ctx context.Context, id string) (Document, error) {
	endpoint := fmt.Sprintf("%s/data/doc/%s/%s", c.readBase(), url.PathEscape(c.cfg.Dataset), url.PathEscape(id))
	res, err := c.http.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	if res.IsError() {
		return nil, newAPIError(res.StatusCode(), res.Body())
	}

	var envelope struct {
		Documents []Document `json:"documents"`
	}
	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	if len(envelope.Documents) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return envelope.Documents[0], nil
}

// Mutate commits a transaction. Writes need a token.
func (c *Client) Mutate(ctx context.Context, tx *Transaction) (*MutationResult, error) {
	if c.cfg.Token == "" {
		return nil, fmt.Errorf("mutate: %w", ErrUnauthorized)
	}

	endpoint := fmt.Sprintf("%s/data/mutate/%s", c.apiBase(), url.PathEscape(c.cfg.Dataset))
	var result MutationResult
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"returnIds":       "true",
			"returnDocuments": "true",
			"transactionId":   tx.ID,
		}).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"mutations": tx.Mutations()}).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("mutate: %w", err)
	}
	if res.IsError() {
		return nil, newAPIError(res.StatusCode(), res.Body())
	}
	if err := json.Unmarshal(res.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode mutation result: %w", err)
	}
	return &result, nil
}

// Upload stores a binary asset and returns its id.
func (c *Client) Upload(ctx context.Context, kind AssetKind, filename string, body []byte) (*Asset, error) {
	if c.cfg.Token == "" {
		return nil, fmt.Errorf("upload: %w", ErrUnauthorized)
	}
	if len(body) == 0 {
		return nil, errors.New("upload: empty body")
	}

	endpoint := fmt.Sprintf("%s/assets/%ss/%s", c.apiBase(), kind, url.PathEscape(c.cfg.Dataset))
	var envelope struct {
		Document Asset `json:"document"`
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("filename", filename).
		SetHeader("Content-Type", http.DetectContentType(body)).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	if res.IsError() {
		return nil, newAPIError(res.StatusCode(), res.Body())
	}
	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("decode upload result: %w", err)
	}

	asset := envelope.Document
	asset.Kind = kind
	return &asset, nil
}

func logResponse(_ *resty.Client, res *resty.Response) error {
	slog.Debug("content api response",
		slog.String("method", res.Request.Method),
		slog.String("url", res.Request.URL),
		slog.Int("status", res.StatusCode()),
		slog.Duration("duration", res.Time()),
	)
	return nil
}
