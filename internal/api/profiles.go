package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dgoodall/trainboard/internal/domain"
)

// profileRequest is the create/update body.
type profileRequest struct {
	Origins      []string `json:"origins"`
	Destinations []string `json:"destinations"`
}

// FetchProfiles returns all of the current user's saved routes.
func (c *Client) FetchProfiles(ctx context.Context) ([]domain.Profile, error) {
	resp, err := c.get(ctx, "/profile/")
	if err != nil {
		return nil, fmt.Errorf("api.Client.FetchProfiles: %w", err)
	}
	var profiles []domain.Profile
	if err := decodeJSON(resp, &profiles); err != nil {
		return nil, fmt.Errorf("api.Client.FetchProfiles: %w", err)
	}
	return profiles, nil
}

// CreateProfile saves a new route and returns the stored record with its
// backend-assigned ID.
func (c *Client) CreateProfile(ctx context.Context, origins, destinations []string) (domain.Profile, error) {
	resp, err := c.send(ctx, http.MethodPost, "/profile/", profileBody(origins, destinations))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("api.Client.CreateProfile: %w", err)
	}
	var p domain.Profile
	if err := decodeJSON(resp, &p); err != nil {
		return domain.Profile{}, fmt.Errorf("api.Client.CreateProfile: %w", err)
	}
	return p, nil
}

// UpdateProfile overwrites the route lists of an existing profile.
func (c *Client) UpdateProfile(ctx context.Context, id int, origins, destinations []string) (domain.Profile, error) {
	resp, err := c.send(ctx, http.MethodPut, "/profile/"+strconv.Itoa(id), profileBody(origins, destinations))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("api.Client.UpdateProfile: %w", err)
	}
	var p domain.Profile
	if err := decodeJSON(resp, &p); err != nil {
		return domain.Profile{}, fmt.Errorf("api.Client.UpdateProfile: %w", err)
	}
	return p, nil
}

// DeleteProfile removes a profile by ID.
func (c *Client) DeleteProfile(ctx context.Context, id int) error {
	resp, err := c.send(ctx, http.MethodDelete, "/profile/"+strconv.Itoa(id), nil)
	if err != nil {
		return fmt.Errorf("api.Client.DeleteProfile: %w", err)
	}
	resp.Body.Close()
	return nil
}

// SetFavouriteProfile marks one profile as the favourite. The backend clears
// any previous favourite as part of the same operation. The returned boolean
// is the backend's success flag; a false with a nil error means the flip was
// rejected without a structured error.
func (c *Client) SetFavouriteProfile(ctx context.Context, id int) (bool, error) {
	return c.favourite(ctx, http.MethodPut, id)
}

// UnsetFavouriteProfile clears the favourite flag on a profile.
func (c *Client) UnsetFavouriteProfile(ctx context.Context, id int) (bool, error) {
	return c.favourite(ctx, http.MethodDelete, id)
}

func (c *Client) favourite(ctx context.Context, method string, id int) (bool, error) {
	resp, err := c.send(ctx, method, "/profile/"+strconv.Itoa(id)+"/favourite", nil)
	if err != nil {
		return false, fmt.Errorf("api.Client.favourite: %w", err)
	}
	var body struct {
		Success bool `json:"success"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return false, fmt.Errorf("api.Client.favourite: %w", err)
	}
	return body.Success, nil
}

func profileBody(origins, destinations []string) *bytes.Buffer {
	raw, _ := json.Marshal(profileRequest{Origins: origins, Destinations: destinations})
	return bytes.NewBuffer(raw)
}
