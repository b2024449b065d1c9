package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dgoodall/trainboard/internal/domain"
)

// tokenResponse is the shape of both /auth/token and /auth/signup.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a bearer token and stores it in the
// session. Credentials travel form-encoded, as the token endpoint expects.
// Empty fields fail with ErrValidation before any network call.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := c.authenticate(ctx, "/auth/token", username, password); err != nil {
		return fmt.Errorf("api.Client.Login: %w", err)
	}
	return nil
}

// Signup registers a new account; the backend responds with a token in the
// same shape as login, so a successful signup leaves the user logged in.
func (c *Client) Signup(ctx context.Context, username, password string) error {
	if err := c.authenticate(ctx, "/auth/signup", username, password); err != nil {
		return fmt.Errorf("api.Client.Signup: %w", err)
	}
	return nil
}

// Logout drops the stored session. Purely local; the backend keeps no
// server-side session to destroy.
func (c *Client) Logout() {
	c.sessions.Clear()
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	form := url.Values{
		"username": {username},
		"password": {password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return err
	}

	var body tokenResponse
	if err := decodeJSON(resp, &body); err != nil {
		return err
	}
	if body.AccessToken == "" {
		return fmt.Errorf("no access token in response")
	}
	return c.sessions.SetToken(body.AccessToken)
}
