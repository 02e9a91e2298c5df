package explorer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/okian/upsetlens/internal/adapters/http/api"
	"github.com/okian/upsetlens/internal/domain/filter"
	"github.com/okian/upsetlens/internal/domain/model"
	"github.com/okian/upsetlens/internal/domain/selection"
	"github.com/okian/upsetlens/internal/domain/upset"
)

// Client talks to a running upsetlens server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: baseURL, http: &http.Client{Timeout: timeout}}
}

// do sends body as JSON and decodes the response into out when it is non-nil.
// Mutations carry a fresh idempotency key so transport retries stay safe.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set(api.IdempotencyHeader, uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s %s: %d %s", ErrStatus, method, path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Health checks the service answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// CreateSession returns the id of a new session.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/sessions", nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// DeleteSession drops a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+id, nil, nil)
}

// AddReviews caches a publication's reviews.
func (c *Client) AddReviews(ctx context.Context, id string, a selection.AddReviews) error {
	return c.do(ctx, http.MethodPost, "/sessions/"+id+"/reviews", a, nil)
}

// RankingsResult mirrors the rankings response.
type RankingsResult struct {
	Kept     int `json:"kept"`
	Excluded int `json:"excluded"`
}

// AddRankings caches a publication's rankings.
func (c *Client) AddRankings(ctx context.Context, id string, a selection.AddRankings, hidden bool) (RankingsResult, error) {
	body := struct {
		Years  []model.Year    `json:"years"`
		Hidden bool            `json:"hidden"`
		Rows   []model.Ranking `json:"rows"`
	}{Years: a.Years, Hidden: hidden, Rows: a.Rows}
	var out RankingsResult
	err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/rankings", body, &out)
	return out, err
}

// ClickBin toggles a histogram bin.
func (c *Client) ClickBin(ctx context.Context, id string, a selection.ClickBin) error {
	return c.do(ctx, http.MethodPost, "/sessions/"+id+"/bins/click", a, nil)
}

// Brush sets a scatter-plot brush.
func (c *Client) Brush(ctx context.Context, id string, a selection.Brush) error {
	return c.do(ctx, http.MethodPost, "/sessions/"+id+"/brush", a, nil)
}

// Intersection is the intersections response.
type Intersection struct {
	Mode    string         `json:"mode"`
	Labels  []string       `json:"labels"`
	Records []upset.Record `json:"records"`
}

// Intersections fetches the session's intersection records sorted by size.
func (c *Client) Intersections(ctx context.Context, id string, mode upset.Mode) (Intersection, error) {
	q := url.Values{}
	q.Set("mode", mode.String())
	q.Set("sort", "size")
	var out Intersection
	err := c.do(ctx, http.MethodGet, "/sessions/"+id+"/intersections?"+q.Encode(), nil, &out)
	return out, err
}

// AddIntersectionFilter filters the album list down to one record.
func (c *Client) AddIntersectionFilter(ctx context.Context, id, setLabel string, mode upset.Mode) (filter.Filter, error) {
	body := map[string]any{"set_label": setLabel, "mode": mode.String()}
	var out filter.Filter
	err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/filters/intersection", body, &out)
	return out, err
}

// Albums resolves the session's filters.
func (c *Client) Albums(ctx context.Context, id string) ([]model.AlbumID, error) {
	var out struct {
		AlbumIDs []model.AlbumID `json:"album_ids"`
	}
	err := c.do(ctx, http.MethodGet, "/sessions/"+id+"/albums", nil, &out)
	return out.AlbumIDs, err
}

// Stats fetches the service statistics.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	err := c.do(ctx, http.MethodGet, "/stats", nil, &out)
	return out, err
}

func yearsOf(ys []int) []model.Year {
	out := make([]model.Year, len(ys))
	for i, y := range ys {
		out[i] = model.Year(y)
	}
	return out
}
