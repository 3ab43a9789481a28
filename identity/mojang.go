package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

const (
	DefaultLookupURL = "https://api.mojang.com/users/profiles/minecraft/"
	userAgent        = "bungeespoof/1.0"

	maxProfileBody = 64 << 10
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrMissingID       = errors.New("profile response has no id")
)

// ProfileLookup maps a username to the UUID of its premium account.
type ProfileLookup interface {
	LookupUUID(ctx context.Context, username string) (uuid.UUID, error)
}

func NewMojangLookup(baseURL string, client *http.Client) MojangLookup {
	if baseURL == "" {
		baseURL = DefaultLookupURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return MojangLookup{
		BaseURL: baseURL,
		Client:  client,
	}
}

// MojangLookup queries the public profile API. The request is bound by the
// deadline of the context it gets.
type MojangLookup struct {
	BaseURL string
	Client  *http.Client
}

type profileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (l MojangLookup) LookupUUID(ctx context.Context, username string) (uuid.UUID, error) {
	reqURL := l.BaseURL + url.PathEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return uuid.Nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := l.Client.Do(req)
	if err != nil {
		return uuid.Nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		return uuid.Nil, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		return uuid.Nil, fmt.Errorf("profile lookup for %q: unexpected status %s", username, resp.Status)
	}

	var profile profileResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBody)).Decode(&profile); err != nil {
		return uuid.Nil, fmt.Errorf("decoding profile of %q: %w", username, err)
	}
	if profile.ID == "" {
		return uuid.Nil, ErrMissingID
	}
	return uuid.Parse(profile.ID)
}
