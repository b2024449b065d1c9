package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dgoodall/trainboard/internal/domain"
)

// ListUsers returns all accounts. Admin only; non-admin tokens get
// ErrUnauthenticated back from the server.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	resp, err := c.get(ctx, "/users/")
	if err != nil {
		return nil, fmt.Errorf("api.Client.ListUsers: %w", err)
	}
	var users []domain.User
	if err := decodeJSON(resp, &users); err != nil {
		return nil, fmt.Errorf("api.Client.ListUsers: %w", err)
	}
	return users, nil
}

// DeleteUser removes an account by ID. Admin only.
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	resp, err := c.send(ctx, http.MethodDelete, "/users/"+strconv.Itoa(id), nil)
	if err != nil {
		return fmt.Errorf("api.Client.DeleteUser: %w", err)
	}
	resp.Body.Close()
	return nil
}
