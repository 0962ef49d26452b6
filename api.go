package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// StoryAPI talks to the Hack or Snooze API. It serves as both the
// IdentityService and the StoryCatalog.
type StoryAPI struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewStoryAPI(baseURL string, timeout time.Duration, log *slog.Logger) *StoryAPI {
	return &StoryAPI{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type apiUser struct {
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Favorites []Story   `json:"favorites"`
	Stories   []Story   `json:"stories"`
}

func (u apiUser) toUser(token string) *User {
	return &User{
		LoginToken: token,
		Username:   u.Username,
		Name:       u.Name,
		CreatedAt:  u.CreatedAt,
		Favorites:  u.Favorites,
		OwnStories: u.Stories,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	Token string  `json:"token"`
	User  apiUser `json:"user"`
}

type tokenBody struct {
	Token string `json:"token"`
}

// do sends body as JSON and decodes the response into out when out is non-nil.
func (a *StoryAPI) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	a.log.Debug("api call", "method", method, "path", req.URL.Path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error APIError `json:"error"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		if envelope.Error.Title != "" {
			apiErr.Title = envelope.Error.Title
		}
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func (a *StoryAPI) GetStories(ctx context.Context) ([]Story, error) {
	var resp struct {
		Stories []Story `json:"stories"`
	}
	if err := a.do(ctx, http.MethodGet, "/stories", nil, &resp); err != nil {
		return nil, fmt.Errorf("getting stories: %w", err)
	}
	return resp.Stories, nil
}

func (a *StoryAPI) AddStory(ctx context.Context, user *User, story NewStory) (Story, error) {
	body := struct {
		Token string   `json:"token"`
		Story NewStory `json:"story"`
	}{user.LoginToken, story}

	var resp struct {
		Story Story `json:"story"`
	}
	if err := a.do(ctx, http.MethodPost, "/stories", body, &resp); err != nil {
		return Story{}, fmt.Errorf("adding story: %w", err)
	}
	return resp.Story, nil
}

func (a *StoryAPI) Login(ctx context.Context, username, password string) (*User, error) {
	body := map[string]credentials{"user": {Username: username, Password: password}}

	var resp authResponse
	if err := a.do(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return nil, fmt.Errorf("logging in %q: %w", username, err)
	}
	return resp.User.toUser(resp.Token), nil
}

func (a *StoryAPI) Create(ctx context.Context, username, password, name string) (*User, error) {
	body := map[string]credentials{"user": {Username: username, Password: password, Name: name}}

	var resp authResponse
	err := a.do(ctx, http.MethodPost, "/signup", body, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return nil, fmt.Errorf("signing up %q: %w: %w", username, ErrUsernameTaken, err)
	}
	if err != nil {
		return nil, fmt.Errorf("signing up %q: %w", username, err)
	}
	return resp.User.toUser(resp.Token), nil
}

func (a *StoryAPI) GetLoggedInUser(ctx context.Context, token, username string) (*User, error) {
	if token == "" || username == "" {
		return nil, nil
	}

	var resp struct {
		User apiUser `json:"user"`
	}
	path := "/users/" + url.PathEscape(username) + "?" + url.Values{"token": {token}}.Encode()
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("getting user %q: %w", username, err)
	}
	return resp.User.toUser(token), nil
}

func (a *StoryAPI) favoritePath(user *User, storyID string) string {
	return "/users/" + url.PathEscape(user.Username) + "/favorites/" + url.PathEscape(storyID)
}

func (a *StoryAPI) AddFavorite(ctx context.Context, user *User, storyID string) error {
	err := a.do(ctx, http.MethodPost, a.favoritePath(user, storyID), tokenBody{user.LoginToken}, nil)
	if err != nil {
		return fmt.Errorf("adding favorite: %w", err)
	}
	return nil
}

func (a *StoryAPI) RemoveFavorite(ctx context.Context, user *User, storyID string) error {
	err := a.do(ctx, http.MethodDelete, a.favoritePath(user, storyID), tokenBody{user.LoginToken}, nil)
	if err != nil {
		return fmt.Errorf("removing favorite: %w", err)
	}
	return nil
}

func (a *StoryAPI) DeleteStory(ctx context.Context, user *User, storyID string) error {
	err := a.do(ctx, http.MethodDelete, "/stories/"+url.PathEscape(storyID), tokenBody{user.LoginToken}, nil)
	if err != nil {
		return fmt.Errorf("deleting story: %w", err)
	}
	return nil
}
