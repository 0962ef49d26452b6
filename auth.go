package main

import (
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	clientCookieName = "client"
	csrfCookieName   = "csrf"
	csrfFieldName    = "csrf_token"
)

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func createClient(db *sql.DB, ttl time.Duration) (string, error) {
	id := uuid.New().String()

	expiresAt := time.Now().Add(ttl)
	_, err := db.Exec(`
		INSERT INTO clients (id, expires_at)
		VALUES (?, ?)`, id, expiresAt)
	if err != nil {
		return "", fmt.Errorf("inserting client: %w", err)
	}

	return id, nil
}

func getClient(db *sql.DB, id string) (*Client, error) {
	row := db.QueryRow(`
		SELECT id, created_at, expires_at
		FROM clients
		WHERE id = ? AND expires_at > ?`, id, time.Now())

	var client Client
	err := row.Scan(&client.ID, &client.CreatedAt, &client.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning client: %w", err)
	}

	return &client, nil
}

// touchClient pushes a returning client's expiry forward.
func touchClient(db *sql.DB, id string, ttl time.Duration) error {
	_, err := db.Exec("UPDATE clients SET expires_at = ? WHERE id = ?", time.Now().Add(ttl), id)
	if err != nil {
		return fmt.Errorf("touching client: %w", err)
	}
	return nil
}

// cleanupExpiredClients forgets expired clients along with their local storage.
func cleanupExpiredClients(db *sql.DB) (int64, error) {
	now := time.Now()
	_, err := db.Exec(`
		DELETE FROM local_storage
		WHERE client_id IN (SELECT id FROM clients WHERE expires_at < ?)`, now)
	if err != nil {
		return 0, fmt.Errorf("cleaning up local storage: %w", err)
	}

	res, err := db.Exec("DELETE FROM clients WHERE expires_at < ?", now)
	if err != nil {
		return 0, fmt.Errorf("cleaning up expired clients: %w", err)
	}
	return res.RowsAffected()
}

// ensureClient returns the request's client id, issuing a new client cookie
// when the request has none or an expired one.
func (a *App) ensureClient(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(clientCookieName); err == nil {
		client, err := getClient(a.db, cookie.Value)
		if err != nil {
			return "", err
		}
		if client != nil {
			if err := touchClient(a.db, client.ID, a.cfg.ClientTTL); err != nil {
				return "", err
			}
			a.setClientCookie(w, client.ID)
			return client.ID, nil
		}
	}

	id, err := createClient(a.db, a.cfg.ClientTTL)
	if err != nil {
		return "", err
	}
	a.setClientCookie(w, id)
	return id, nil
}

func (a *App) setClientCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(a.cfg.ClientTTL.Seconds()),
	})
}

// requireClient is middleware for POST routes: a request without a known
// client has no page to act on, so it is sent to the home page.
func (a *App) requireClient(next clientHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(clientCookieName)
		if err != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		client, err := getClient(a.db, cookie.Value)
		if err != nil || client == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		next(w, r, client.ID)
	}
}

// clientHandler is a page command endpoint: it runs for a known client.
type clientHandler func(w http.ResponseWriter, r *http.Request, clientID string)

// The CSRF token is double-submitted: once in its cookie, once as a form field.

func csrfCookieToken(r *http.Request) string {
	if cookie, err := r.Cookie(csrfCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func validateCSRF(r *http.Request) bool {
	want := csrfCookieToken(r)
	got := r.PostFormValue(csrfFieldName)
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// requireCSRF parses the posted form and refuses it unless it carries the
// client's CSRF token.
func (a *App) requireCSRF(next clientHandler) clientHandler {
	return func(w http.ResponseWriter, r *http.Request, clientID string) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		if !validateCSRF(r) {
			a.log.Warn("rejected form without csrf token", "path", r.URL.Path, "client", clientID)
			http.Error(w, "Invalid CSRF token", http.StatusForbidden)
			return
		}
		next(w, r, clientID)
	}
}

// csrfTokenFor returns the browser's CSRF token, minting and setting one
// when it has none yet.
func (a *App) csrfTokenFor(w http.ResponseWriter, r *http.Request) (string, error) {
	if token := csrfCookieToken(r); token != "" {
		return token, nil
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(a.cfg.ClientTTL.Seconds()),
	})
	return token, nil
}
