package main

import (
	"errors"
	"fmt"
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrInvalidForm      = errors.New("invalid form")
	ErrNotLoggedIn      = errors.New("not logged in")
	ErrNotOwner         = errors.New("story not owned by current user")
	ErrUsernameTaken    = errors.New("username taken")
	ErrUnknownTab       = errors.New("unknown tab")

	ErrFavoriteNeedsLogin = fmt.Errorf("%w: favoriting", ErrNotLoggedIn)
)

// APIError is the error envelope returned by the story API.
type APIError struct {
	StatusCode int    `json:"status"`
	Title      string `json:"title"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Title)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// alertFor turns a failed command into the message shown to the user.
func alertFor(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPasswordTooShort):
		return "Your password is too weak. Use 8 or more characters!"
	case errors.Is(err, ErrUsernameTaken):
		return "This username has been taken!"
	case errors.Is(err, ErrFavoriteNeedsLogin):
		return "Please login to add favorites!"
	case errors.Is(err, ErrNotLoggedIn):
		return "Please log in first."
	case errors.Is(err, ErrNotOwner):
		return "You can only delete your own stories."
	case errors.Is(err, ErrInvalidForm):
		return "Please fill out every field."
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return apiErr.Title
	default:
		return "Something went wrong. Please try again."
	}
}
