package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mfarias/salon-events/internal/browser"
	"github.com/mfarias/salon-events/internal/config"
)

const (
	loginURL = "https://example.com/login"
	panelURL = "https://example.com/panel"
)

func testSelectors() config.Selectors {
	return config.Selectors{
		LoginPath:     "/login",
		ExpirySignals: []string{"Su sesión ha expirado"},
	}
}

func testCredentials() config.Credentials {
	return config.Credentials{
		OriginURL: loginURL,
		Username:  "operador",
		Password:  "secreto",
	}
}

// loginFake scripts a login page whose submit button redirects to the panel
// when the right credentials were filled.
func loginFake() (*browser.Fake, *browser.FakeElement, *browser.FakeElement) {
	fake := browser.NewFake()
	user := &browser.FakeElement{}
	pass := &browser.FakeElement{}
	submit := &browser.FakeElement{
		OnClick: func(f *browser.Fake) {
			if user.Value == "operador" && pass.Value == "secreto" {
				f.SetURL(panelURL)
			}
		},
	}
	fake.AddPage(loginURL, &browser.FakePage{
		Markup: "<html><body>Iniciar sesión</body></html>",
		Elements: map[string][]*browser.FakeElement{
			`input[name="username"]`: {user},
			`input[name="password"]`: {pass},
			`button[type="submit"]`:  {submit},
		},
	})
	fake.AddPage(panelURL, &browser.FakePage{Markup: "<html><body>Calendario</body></html>"})
	return fake, user, pass
}

func TestLoginSuccess(t *testing.T) {
	fake, user, pass := loginFake()
	m := NewManager(fake, testCredentials(), testSelectors(), time.Second)

	sess, err := m.Login(context.Background())
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !sess.Authenticated {
		t.Error("expected an authenticated session")
	}
	if sess.LastValidatedAt.IsZero() {
		t.Error("expected LastValidatedAt to be set")
	}
	if user.Value != "operador" || pass.Value != "secreto" {
		t.Errorf("credentials not filled: %q / %q", user.Value, pass.Value)
	}
}

func TestLoginFailureIsAuthenticationError(t *testing.T) {
	fake, _, _ := loginFake()
	creds := testCredentials()
	creds.Password = "incorrecta"
	m := NewManager(fake, creds, testSelectors(), 10*time.Millisecond)

	_, err := m.Login(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestEnsureValidNoopWhenValid(t *testing.T) {
	fake, _, _ := loginFake()
	m := NewManager(fake, testCredentials(), testSelectors(), time.Second)

	sess, err := m.Login(context.Background())
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	before := fake.FindCalls[`input[name="username"]`]
	sess2, err := m.EnsureValid(context.Background(), sess)
	if err != nil {
		t.Fatalf("EnsureValid failed: %v", err)
	}
	if !sess2.Authenticated {
		t.Error("expected session to remain authenticated")
	}
	if fake.FindCalls[`input[name="username"]`] != before {
		t.Error("EnsureValid must not touch the login form when the session is valid")
	}
	if sess2.LastValidatedAt.Before(sess.LastValidatedAt) {
		t.Error("expected LastValidatedAt to be refreshed")
	}
}

func TestEnsureValidReloginsOnLoginPathRedirect(t *testing.T) {
	fake, _, _ := loginFake()
	m := NewManager(fake, testCredentials(), testSelectors(), time.Second)

	sess, err := m.Login(context.Background())
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Server-side expiry: the site bounced us back to the login page.
	fake.SetURL(loginURL)

	sess, err = m.EnsureValid(context.Background(), sess)
	if err != nil {
		t.Fatalf("EnsureValid failed: %v", err)
	}
	if !sess.Authenticated {
		t.Error("expected a fresh authenticated session")
	}
	url, _ := fake.CurrentURL(context.Background())
	if url != panelURL {
		t.Errorf("expected re-login to land on the panel, got %q", url)
	}
}

func TestEnsureValidReloginsOnExpirySignalText(t *testing.T) {
	fake, _, _ := loginFake()
	m := NewManager(fake, testCredentials(), testSelectors(), time.Second)

	sess, err := m.Login(context.Background())
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// In-page expiry notice without a redirect.
	fake.SetMarkup("<html><body>Su sesión ha expirado</body></html>")

	sess, err = m.EnsureValid(context.Background(), sess)
	if err != nil {
		t.Fatalf("EnsureValid failed: %v", err)
	}
	if !sess.Authenticated {
		t.Error("expected a fresh authenticated session")
	}
}
