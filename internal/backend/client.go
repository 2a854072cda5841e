// Package backend implements the HTTP client for the external SINORAT REST
// service. The backend owns all authoritative state; this client does
// transport, decoding, and error classification only.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sinorat/sinorat/internal/apperr"
	"github.com/sinorat/sinorat/internal/models"
	"github.com/sinorat/sinorat/internal/token"
)

// APIError is a backend rejection that is neither transport-class nor
// not-found: the request reached the backend and was refused with a message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend rejected request (%d): %s", e.Status, e.Message)
}

// Client talks to the SINORAT backend.
type Client struct {
	baseURL      string
	http         *http.Client
	tokens       *token.Store
	checkTimeout time.Duration
}

// New creates a client for the given base URL. tokens may be nil, in which
// case requests are sent unauthenticated (the backend will reject them).
// checkTimeout bounds CheckLetter specifically; timeout everything else.
func New(baseURL string, tokens *token.Store, timeout, checkTimeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if checkTimeout <= 0 {
		checkTimeout = 1500 * time.Millisecond
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: timeout},
		tokens:       tokens,
		checkTimeout: checkTimeout,
	}
}

// ListParams narrows a disposition listing request.
type ListParams struct {
	LetterInID string
	Limit      int
	SortBy     string
	SortOrder  string
}

// CheckResult is the backend's answer to the disposition-existence check.
type CheckResult struct {
	IsDisposed   bool               `json:"isDisposed"`
	Dispositions []models.Disposisi `json:"disposisi"`
}

// SearchLetter resolves a search key (see the letters package for key
// construction) to a single incoming letter.
func (c *Client) SearchLetter(ctx context.Context, searchKey string) (*models.Letter, error) {
	body, err := c.get(ctx, "letterin/search/"+url.PathEscape(searchKey))
	if err != nil {
		return nil, err
	}
	var letter models.Letter
	if decodeErr := json.Unmarshal(body, &letter); decodeErr != nil || letter.ID == "" {
		var env struct {
			Data models.Letter `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("backend: malformed letter body: %w", apperr.ErrUnavailable)
		}
		letter = env.Data
	}
	if letter.ID == "" {
		return nil, apperr.ErrNotFound
	}
	return &letter, nil
}

// NextNumberHint asks the dedicated next-number endpoint for its suggestion.
// A well-formed response without any recognized number field normalizes to 0;
// a malformed body is a transport-class failure.
func (c *Client) NextNumberHint(ctx context.Context) (int, error) {
	body, err := c.get(ctx, "disposisi-letterin/next-number")
	if err != nil {
		return 0, err
	}
	return normalizeNextNumber(body)
}

// ListDisposisi lists dispositions, optionally filtered and sorted.
func (c *Client) ListDisposisi(ctx context.Context, p ListParams) ([]models.Disposisi, error) {
	q := url.Values{}
	if p.LetterInID != "" {
		q.Set("letterIn_id", p.LetterInID)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.SortBy != "" {
		q.Set("sortBy", p.SortBy)
	}
	if p.SortOrder != "" {
		q.Set("sortOrder", p.SortOrder)
	}
	path := "disposisi-letterin"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeDisposisiList(body)
}

// CheckLetter asks the dedicated check endpoint whether a letter already has
// dispositions. The call runs under its own short timeout so a slow backend
// lets the caller degrade to client-side filtering quickly.
func (c *Client) CheckLetter(ctx context.Context, letterID string) (*CheckResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	body, err := c.get(ctx, "disposisi-letterin/check-letter/"+url.PathEscape(letterID))
	if err != nil {
		return nil, err
	}
	var res CheckResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("backend: malformed check body: %w", apperr.ErrUnavailable)
	}
	return &res, nil
}

// CreateDisposisi submits a new disposition. The request body carries exactly
// the five payload fields.
func (c *Client) CreateDisposisi(ctx context.Context, p models.DisposisiPayload) (*models.Disposisi, error) {
	reqBody, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("backend: marshal payload: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "disposisi-letterin", reqBody)
	if err != nil {
		return nil, err
	}
	var d models.Disposisi
	if decodeErr := json.Unmarshal(body, &d); decodeErr != nil || d.ID == "" {
		var env struct {
			Data models.Disposisi `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil || env.Data.ID == "" {
			return nil, fmt.Errorf("backend: malformed disposition body: %w", apperr.ErrUnavailable)
		}
		d = env.Data
	}
	return &d, nil
}

// CreateAgenda submits a new agenda (kegiatan) entry.
func (c *Client) CreateAgenda(ctx context.Context, e models.AgendaEntry) (*models.AgendaEntry, error) {
	reqBody, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("backend: marshal agenda: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "agenda-letterin", reqBody)
	if err != nil {
		return nil, err
	}
	var created models.AgendaEntry
	if decodeErr := json.Unmarshal(body, &created); decodeErr != nil || created.ID == "" {
		var env struct {
			Data models.AgendaEntry `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil || env.Data.ID == "" {
			return nil, fmt.Errorf("backend: malformed agenda body: %w", apperr.ErrUnavailable)
		}
		created = env.Data
	}
	return &created, nil
}

// ListAgenda lists agenda entries, optionally filtered by letter reference.
func (c *Client) ListAgenda(ctx context.Context, letterInID string) ([]models.AgendaEntry, error) {
	path := "agenda-letterin"
	if letterInID != "" {
		path += "?letterIn_id=" + url.QueryEscape(letterInID)
	}
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var direct []models.AgendaEntry
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}
	var env struct {
		Data []models.AgendaEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Data != nil {
		return env.Data, nil
	}
	return nil, fmt.Errorf("backend: malformed agenda list: %w", apperr.ErrUnavailable)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// do performs one request and classifies the outcome. Each call is attempted
// exactly once; retrying is a caller decision, never a transport one.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok, ok := c.tokens.Get(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %v: %w", method, path, err, apperr.ErrUnavailable)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("backend: read body: %v: %w", err, apperr.ErrUnavailable)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("backend: %s: %w", errorMessage(data), apperr.ErrUnauthorized)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("backend: %s (%d): %w", errorMessage(data), resp.StatusCode, apperr.ErrUnavailable)
	default:
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
}

// errorMessage extracts the backend's own {message} string, falling back to
// the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "no error message"
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func decodeDisposisiList(body []byte) ([]models.Disposisi, error) {
	var direct []models.Disposisi
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}
	var env struct {
		Data []models.Disposisi `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Data != nil {
		return env.Data, nil
	}
	return nil, fmt.Errorf("backend: malformed disposition list: %w", apperr.ErrUnavailable)
}

// nextNumberFields is the fixed priority order for the unstable next-number
// response shape. The first numeric field wins, checked at the top level
// first and then under a "data" envelope.
var nextNumberFields = []string{"nextNumber", "next_number", "noDispo", "number"}

// normalizeNextNumber reduces the backend's next-number response to a single
// integer. A response that parses as JSON but carries no recognized numeric
// field normalizes to 0; a body that does not parse at all is transport-class.
func normalizeNextNumber(body []byte) (int, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return 0, fmt.Errorf("backend: malformed next-number body: %w", apperr.ErrUnavailable)
	}
	if n, ok := probeNumber(m); ok {
		return n, nil
	}
	if data, ok := m["data"].(map[string]any); ok {
		if n, ok := probeNumber(data); ok {
			return n, nil
		}
	}
	return 0, nil
}

func probeNumber(m map[string]any) (int, bool) {
	for _, field := range nextNumberFields {
		v, ok := m[field]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n), true
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}
