package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Norrels/Upframer-auth/internal/common"
)

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Identity is what the server reports for a bearer token.
type Identity struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type AuthClient struct {
	baseURL string
	http    *http.Client
}

// NewAuthClient returns a client for the server at baseURL, e.g.
// "http://127.0.0.1:3335". Every request is bounded by timeout.
func NewAuthClient(baseURL string, timeout time.Duration) (*AuthClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: want http(s)://host:port", baseURL)
	}

	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Health returns nil when GET /health answers "ok".
func (c *AuthClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64))
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		return fmt.Errorf("%w: health check returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Register creates an account and returns it with a token.
func (c *AuthClient) Register(ctx context.Context, email, username string, password []byte) (*AuthResult, error) {
	body := map[string]string{"email": email, "username": username, "password": string(password)}

	res := &AuthResult{}
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", body, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *AuthClient) Login(ctx context.Context, email string, password []byte) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": string(password)}

	res := &AuthResult{}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Me asks the server who the token belongs to.
func (c *AuthClient) Me(ctx context.Context, token string) (*Identity, error) {
	res := &Identity{}
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *AuthClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("error decoding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("error decoding response data: %w", err)
	}
	return nil
}
