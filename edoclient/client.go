package edoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmdatafocus/kitchen_admin/edo"
	"github.com/mmdatafocus/kitchen_admin/utils"
)

const (
	defaultBaseURL = "http://localhost:8080/api/edo"
	defaultRole    = "admin"
	tracerName     = "github.com/mmdatafocus/kitchen_admin/edoclient"
)

// Client implements edo.Backend over the EDO backend's REST API.
type Client struct {
	baseURL string
	role    string
	http    *http.Client
	limiter <-chan time.Time
	tracer  trace.Tracer
}

var _ edo.Backend = (*Client)(nil)

// NewClientFromEnv reads EDO_API_BASE_URL, EDO_RATE_LIMIT_PER_MIN and EDO_USER_ROLE.
func NewClientFromEnv() *Client {
	baseURL := strings.TrimSpace(os.Getenv("EDO_API_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	rateLimitPerMin := int64(600)
	if v := strings.TrimSpace(os.Getenv("EDO_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	c := NewClient(baseURL, rateLimitPerMin, nil)
	if role := strings.TrimSpace(os.Getenv("EDO_USER_ROLE")); role != "" {
		c.role = role
	}
	return c
}

// NewClient builds a client. rateLimitPerMin <= 0 disables pacing; a nil httpClient gets a 30s timeout.
func NewClient(baseURL string, rateLimitPerMin int64, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		role:    defaultRole,
		http:    httpClient,
		tracer:  otel.Tracer(tracerName),
	}
	if rateLimitPerMin > 0 {
		c.limiter = time.Tick(time.Minute / time.Duration(rateLimitPerMin))
	}
	return c
}

func docPath(docflowID string, parts ...string) string {
	p := "/documents/" + url.PathEscape(docflowID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// do sends one request. route is the templated path used for span names.
func (c *Client) do(ctx context.Context, method, route, path string, query url.Values, in, out any) error {
	if c.limiter != nil {
		select {
		case <-c.limiter:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ctx, span := c.tracer.Start(ctx, "edo "+method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", method), attribute.String("http.route", route)))
	defer span.End()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	role := c.role
	if r, ok := utils.GetUserRoleFromContext(ctx); ok && r != "" {
		role = r
	}
	req.Header.Set("X-User-Role", role)
	if id, ok := utils.GetCorrelationIdFromContext(ctx); ok && id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		return fmt.Errorf("%s %s: %w", method, route, edo.ErrBackendNotConfigured)
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(env.Error)
		if msg == "" {
			msg = "HTTP " + strconv.Itoa(resp.StatusCode)
		}
		span.SetStatus(codes.Error, msg)
		return &edo.BackendError{Status: resp.StatusCode, Message: msg}
	}
	if env.Ok != nil && !*env.Ok {
		msg := strings.TrimSpace(env.Error)
		if msg == "" {
			msg = "request failed"
		}
		span.SetStatus(codes.Error, msg)
		return &edo.BackendError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, route, err)
	}
	return nil
}

func (c *Client) Config(ctx context.Context) (edo.ServerConfig, error) {
	var resp configResponse
	if err := c.do(ctx, http.MethodGet, "/config", "/config", nil, nil, &resp); err != nil {
		return edo.ServerConfig{}, err
	}
	return edo.ServerConfig{EdoConfigured: resp.DiadocConfigured, BoxId: resp.BoxId, Organization: resp.Organization}, nil
}

func (c *Client) ListDocuments(ctx context.Context) (edo.DocumentFeed, error) {
	var resp documentsResponse
	if err := c.do(ctx, http.MethodGet, "/documents", "/documents", nil, nil, &resp); err != nil {
		return edo.DocumentFeed{}, err
	}
	feed := edo.DocumentFeed{Cached: resp.Cached, Warning: resp.Warning}
	if resp.Docs != nil {
		feed.Docs = make([]edo.Document, 0, len(resp.Docs))
		for _, d := range resp.Docs {
			feed.Docs = append(feed.Docs, edo.NormalizeDocument(d))
		}
	}
	return feed, nil
}

func (c *Client) ParseDocument(ctx context.Context, docflowID string) (edo.ParseResult, error) {
	var resp parseResponse
	if err := c.do(ctx, http.MethodGet, "/documents/:id/parse", docPath(docflowID, "parse"), nil, nil, &resp); err != nil {
		return edo.ParseResult{}, err
	}
	result := edo.ParseResult{XML: resp.XML}
	if resp.Items != nil {
		result.Items = make([]edo.Line, 0, len(resp.Items))
		for i, item := range resp.Items {
			result.Items = append(result.Items, edo.NormalizeLine(item, i))
		}
	}
	return result, nil
}

func (c *Client) ListLines(ctx context.Context, docflowID string, withCandidates bool) ([]edo.LinePayload, error) {
	var query url.Values
	if withCandidates {
		query = url.Values{"withCandidates": {"1"}}
	}
	var resp linesResponse
	if err := c.do(ctx, http.MethodGet, "/documents/:id/lines", docPath(docflowID, "lines"), query, nil, &resp); err != nil {
		return nil, err
	}
	return toPayloads(resp.Lines), nil
}

func (c *Client) AutoMatch(ctx context.Context, docflowID string, threshold float64) (edo.AutoMatchResult, error) {
	var resp autoMatchResponse
	req := autoMatchRequest{Threshold: threshold, WithCandidates: true}
	if err := c.do(ctx, http.MethodPost, "/documents/:id/matches/auto", docPath(docflowID, "matches", "auto"), nil, req, &resp); err != nil {
		return edo.AutoMatchResult{}, err
	}
	return edo.AutoMatchResult{Lines: toPayloads(resp.Lines), Matched: resp.Matched}, nil
}

func (c *Client) SetMatch(ctx context.Context, docflowID string, index int, in *edo.MatchInput) (*edo.LinePayload, error) {
	path := docPath(docflowID, "lines", strconv.Itoa(index), "match")
	query := url.Values{"withCandidates": {"1"}}
	var resp setMatchResponse
	var err error
	if in == nil {
		err = c.do(ctx, http.MethodDelete, "/documents/:id/lines/:index/match", path, query, nil, &resp)
	} else {
		req := setMatchRequest{
			ProductId: in.ProductId,
			Source:    string(in.Source),
			Score:     in.Score,
			Manual:    utils.DereferencePtr(in.Manual, true),
		}
		if in.Comment != "" {
			req.Comment = &in.Comment
		}
		err = c.do(ctx, http.MethodPost, "/documents/:id/lines/:index/match", path, query, req, &resp)
	}
	if err != nil || resp.Line == nil {
		return nil, err
	}
	p := resp.Line.toPayload()
	return &p, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]edo.Product, error) {
	var resp productsResponse
	if err := c.do(ctx, http.MethodGet, "/inventory/products", "/inventory/products", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Products == nil {
		return nil, nil
	}
	out := make([]edo.Product, 0, len(resp.Products))
	for _, p := range resp.Products {
		out = append(out, p.toProduct())
	}
	return out, nil
}

func (c *Client) CreateProduct(ctx context.Context, draft edo.ProductDraft) (edo.Product, error) {
	var resp productResponse
	if err := c.do(ctx, http.MethodPost, "/inventory/products", "/inventory/products", nil, draft, &resp); err != nil {
		return edo.Product{}, err
	}
	if resp.Product == nil {
		return edo.Product{}, &edo.BackendError{Message: "backend returned no product"}
	}
	return resp.Product.toProduct(), nil
}

func (c *Client) CreateReceipt(ctx context.Context, req edo.ReceiptRequest) (string, error) {
	var resp receiptResponse
	if err := c.do(ctx, http.MethodPost, "/receipts", "/receipts", nil, newReceiptRequest(req), &resp); err != nil {
		return "", err
	}
	return string(resp.ReceiptId), nil
}

func (c *Client) Sign(ctx context.Context, docflowID string) error {
	return c.do(ctx, http.MethodPost, "/documents/:id/sign", docPath(docflowID, "sign"), nil, nil, nil)
}

func (c *Client) Send(ctx context.Context, docflowID string) error {
	return c.do(ctx, http.MethodPost, "/documents/:id/send", docPath(docflowID, "send"), nil, nil, nil)
}

func (c *Client) Reject(ctx context.Context, docflowID, reason string) error {
	return c.do(ctx, http.MethodPost, "/documents/:id/reject", docPath(docflowID, "reject"), nil, rejectRequest{Reason: reason}, nil)
}

func (c *Client) SyncStatus(ctx context.Context, docflowID string) (string, error) {
	var resp syncResponse
	if err := c.do(ctx, http.MethodPost, "/documents/:id/sync", docPath(docflowID, "sync"), nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Warning, nil
}
