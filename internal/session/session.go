// Package session establishes and maintains the authenticated session on the
// source calendar site.
//
// Expiry can happen mid-operation (the server redirects any request back to
// the login page), so every downstream component calls EnsureValid before
// navigating and may call it again afterwards. The Session value is threaded
// explicitly through the pipeline; there is no shared singleton.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mfarias/salon-events/internal/browser"
	"github.com/mfarias/salon-events/internal/config"
	"github.com/mfarias/salon-events/internal/logger"
)

// loginRetryInterval separates the single re-attempt after a failed login.
const loginRetryInterval = 2 * time.Second

// Selector strategies for the login form, tried in order. The legacy site
// has been observed with both named and bare inputs.
var (
	usernameSelectors = []string{
		`input[name="username"]`,
		`input[name="usuario"]`,
		`input[type="text"]`,
	}
	passwordSelectors = []string{
		`input[name="password"]`,
		`input[name="clave"]`,
		`input[type="password"]`,
	}
	submitSelectors = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
	}
)

// Session represents an authenticated browser session. It is a value, not a
// handle: holders pass it through EnsureValid to keep it fresh.
type Session struct {
	Authenticated   bool
	LastValidatedAt time.Time
}

// AuthenticationError reports a login that failed after its retry. Fatal for
// the pipeline run.
type AuthenticationError struct {
	URL   string
	Cause error
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication failed at %s: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("authentication failed at %s: still on login page after timeout", e.URL)
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// Manager owns the credentials and performs login and revalidation against
// the automation surface.
type Manager struct {
	surface       browser.Surface
	creds         config.Credentials
	loginPath     string
	expirySignals []string
	timeout       time.Duration
}

// NewManager creates a session manager. The credentials are copied in and
// never exposed.
func NewManager(surface browser.Surface, creds config.Credentials, sel config.Selectors, timeout time.Duration) *Manager {
	return &Manager{
		surface:       surface,
		creds:         creds,
		loginPath:     sel.LoginPath,
		expirySignals: sel.ExpirySignals,
		timeout:       timeout,
	}
}

// Login navigates to the origin, submits the credentials and blocks until
// the URL leaves the login path or the timeout elapses. One retry is
// attempted; a second failure returns *AuthenticationError.
func (m *Manager) Login(ctx context.Context) (Session, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(loginRetryInterval), 1), ctx)

	var sess Session
	err := backoff.Retry(func() error {
		s, err := m.loginOnce(ctx)
		if err != nil {
			logger.Warn("login attempt failed", logger.Fields{"origin": m.creds.OriginURL})
			return err
		}
		sess = s
		return nil
	}, policy)
	if err != nil {
		return Session{}, &AuthenticationError{URL: m.creds.OriginURL, Cause: err}
	}
	return sess, nil
}

func (m *Manager) loginOnce(ctx context.Context) (Session, error) {
	if err := m.surface.Navigate(ctx, m.creds.OriginURL); err != nil {
		return Session{}, fmt.Errorf("opening login surface: %w", err)
	}

	user, err := m.findFirst(ctx, usernameSelectors)
	if err != nil {
		return Session{}, err
	}
	pass, err := m.findFirst(ctx, passwordSelectors)
	if err != nil {
		return Session{}, err
	}
	if err := m.surface.Fill(ctx, user, m.creds.Username); err != nil {
		return Session{}, err
	}
	if err := m.surface.Fill(ctx, pass, m.creds.Password); err != nil {
		return Session{}, err
	}

	submit, err := m.findFirst(ctx, submitSelectors)
	if err != nil {
		return Session{}, err
	}
	if err := m.surface.Click(ctx, submit); err != nil {
		return Session{}, err
	}

	ok, err := m.surface.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
		url, err := m.surface.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		return !strings.Contains(url, m.loginPath), nil
	}, m.timeout)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, fmt.Errorf("still on login page after %s", m.timeout)
	}

	logger.Info("session established", logger.Fields{"origin": m.creds.OriginURL})
	return Session{Authenticated: true, LastValidatedAt: time.Now().UTC()}, nil
}

// EnsureValid probes the current page for expiry signals and transparently
// re-logs-in when the session has lapsed. When the session is still valid it
// only refreshes LastValidatedAt; no navigation is issued.
func (m *Manager) EnsureValid(ctx context.Context, sess Session) (Session, error) {
	expired, err := m.expired(ctx)
	if err != nil {
		return sess, err
	}
	if !expired && sess.Authenticated {
		sess.LastValidatedAt = time.Now().UTC()
		return sess, nil
	}

	logger.Info("session expired, re-authenticating", nil)
	return m.Login(ctx)
}

func (m *Manager) expired(ctx context.Context) (bool, error) {
	url, err := m.surface.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(url, m.loginPath) {
		return true, nil
	}

	markup, err := m.surface.PageMarkup(ctx)
	if err != nil {
		return false, err
	}
	for _, signal := range m.expirySignals {
		if strings.Contains(markup, signal) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) findFirst(ctx context.Context, selectors []string) (browser.ElementRef, error) {
	for _, sel := range selectors {
		refs, err := m.surface.FindAll(ctx, sel)
		if err != nil {
			return nil, err
		}
		if len(refs) > 0 {
			return refs[0], nil
		}
	}
	return nil, fmt.Errorf("no element matched any of %v", selectors)
}
