// Package remote persists registrations through a remote users API:
// POST {base}/users to save and GET {base}/users to list, with an optional
// bearer token. Responses are classified into the sentinel errors the rest
// of the module understands:
//   - 400 and 409 mean the e-mail is taken (sentinel.ErrConflict)
//   - 5xx and an open circuit mean the API is down (sentinel.ErrUnavailable)
//   - other statuses, network errors and undecodable bodies are left
//     unclassified
//
// Users saved through a Client are remembered and merged into List, so a
// save shows up immediately even when the API does not persist it (the
// default placeholder API never does) or persists it late.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"regform/internal/registration/models"
	"regform/internal/validation"
	"regform/pkg/email"
	"regform/pkg/platform/circuit"
	"regform/pkg/platform/sentinel"
)

const (
	// DefaultBaseURL is the public placeholder API used when none is configured.
	DefaultBaseURL = "https://jsonplaceholder.typicode.com"

	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// Client is a registration store backed by the remote users API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger

	mu    sync.Mutex
	saved []models.Registration
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every call.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New constructs a client for baseURL, or DefaultBaseURL when empty.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		breaker: circuit.New("users-api"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create posts the registration and stores the server-assigned id on reg.
// An e-mail already saved through this client is refused without a call.
func (c *Client) Create(ctx context.Context, reg *models.Registration) error {
	if c.savedEmail(reg.Email) {
		return fmt.Errorf("create user: %w", sentinel.ErrConflict)
	}
	payload, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	var created remoteUser
	if err := c.do(ctx, http.MethodPost, payload, &created); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if id := created.id(); id != "" {
		reg.ID = id
	}
	c.remember(*reg)
	return nil
}

// List fetches every remote user as a registration.
func (c *Client) List(ctx context.Context) ([]models.Registration, error) {
	var users []remoteUser
	if err := c.do(ctx, http.MethodGet, nil, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]models.Registration, 0, len(users))
	for _, u := range users {
		out = append(out, u.registration())
	}
	return c.mergeSaved(out), nil
}

func (c *Client) remember(reg models.Registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, reg)
}

func (c *Client) savedEmail(address string) bool {
	key := email.Normalize(address)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, reg := range c.saved {
		if email.Normalize(reg.Email) == key {
			return true
		}
	}
	return false
}

// mergeSaved appends the users saved through this client that the API did
// not return, in save order. A remote user with the same e-mail wins; ids
// are not compared because placeholder APIs hand out the same id to every
// created user.
func (c *Client) mergeSaved(remote []models.Registration) []models.Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.saved) == 0 {
		return remote
	}
	listed := make(map[string]struct{}, len(remote))
	for _, reg := range remote {
		listed[email.Normalize(reg.Email)] = struct{}{}
	}
	for _, reg := range c.saved {
		if _, ok := listed[email.Normalize(reg.Email)]; !ok {
			remote = append(remote, reg)
		}
	}
	return remote
}

func (c *Client) do(ctx context.Context, method string, body []byte, dst any) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("circuit %s open: %w", c.breaker.Name(), sentinel.ErrUnavailable)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/users", reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		c.recordFailure(ctx)
		return fmt.Errorf("users API status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusConflict:
		c.breaker.RecordSuccess()
		return fmt.Errorf("users API status %d: %w", resp.StatusCode, sentinel.ErrConflict)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.breaker.RecordSuccess()
		return fmt.Errorf("users API unexpected status %d", resp.StatusCode)
	}
	c.recordSuccess(ctx)

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		return fmt.Errorf("decode users API response: %w: %w", sentinel.ErrMalformed, err)
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "users API circuit opened", "breaker", c.breaker.Name())
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "users API circuit closed", "breaker", c.breaker.Name())
	}
}

// remoteUser accepts both our own registration shape and the placeholder
// API's user shape (name, nested address, numeric id).
type remoteUser struct {
	ID         json.RawMessage `json:"id"`
	Name       string          `json:"name"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Email      string          `json:"email"`
	BirthDate  string          `json:"birthDate"`
	City       string          `json:"city"`
	PostalCode string          `json:"postalCode"`
	Timestamp  time.Time       `json:"timestamp"`
	Address    *struct {
		City    string `json:"city"`
		Zipcode string `json:"zipcode"`
	} `json:"address"`
}

func (u remoteUser) id() string {
	raw := strings.TrimSpace(string(u.ID))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(u.ID, &s); err == nil {
		return s
	}
	return raw
}

func (u remoteUser) registration() models.Registration {
	first, last := u.FirstName, u.LastName
	if first == "" && last == "" {
		first, last = email.SplitFullName(u.Name)
	}
	if first == "" {
		first, last = email.DeriveNameFromEmail(u.Email)
	}

	city, postal := u.City, u.PostalCode
	if u.Address != nil {
		if city == "" {
			city = u.Address.City
		}
		if postal == "" {
			postal = u.Address.Zipcode
		}
	}

	var birth validation.Date
	if u.BirthDate != "" {
		if d, err := validation.ParseDate(u.BirthDate); err == nil {
			birth = d
		}
	}

	return models.Registration{
		ID: u.id(),
		Person: models.Person{
			FirstName:  first,
			LastName:   last,
			Email:      u.Email,
			BirthDate:  birth,
			City:       city,
			PostalCode: postal,
		},
		Timestamp: u.Timestamp,
	}
}
