// Package session is the mock authentication gate. A session is nothing
// more than a display username; no password is checked or kept.
package session

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/openmarket/marketplace/core"
)

// State is the gate state.
type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "logged_in"
	}
	return "logged_out"
}

// DefaultDelay is the simulated network latency of login and signup.
const DefaultDelay = 500 * time.Millisecond

// LoginCredentials is the login form.
type LoginCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate requires both fields.
func (c LoginCredentials) Validate() error {
	const op = "session.LoginCredentials.Validate"
	if strings.TrimSpace(c.Username) == "" {
		return core.NewValidationError(op, "username", core.ErrValidation)
	}
	if c.Password == "" {
		return core.NewValidationError(op, "password", core.ErrValidation)
	}
	return nil
}

// SignupCredentials is the signup form.
type SignupCredentials struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate checks the password confirmation first, then requires username,
// email and password.
func (c SignupCredentials) Validate() error {
	const op = "session.SignupCredentials.Validate"
	if c.Password != c.ConfirmPassword {
		return core.NewValidationError(op, "confirm_password", core.ErrPasswordMismatch)
	}
	if strings.TrimSpace(c.Username) == "" {
		return core.NewValidationError(op, "username", core.ErrValidation)
	}
	if strings.TrimSpace(c.Email) == "" {
		return core.NewValidationError(op, "email", core.ErrValidation)
	}
	if c.Password == "" {
		return core.NewValidationError(op, "password", core.ErrValidation)
	}
	return nil
}

// Gate tracks who is logged in. It is safe for concurrent use; the
// simulated delay runs without holding the lock.
type Gate struct {
	mu       sync.RWMutex
	username string
	delay    time.Duration
}

// NewGate creates a logged-out gate with the given simulated delay.
// A negative delay is treated as zero.
func NewGate(delay time.Duration) *Gate {
	if delay < 0 {
		delay = 0
	}
	return &Gate{delay: delay}
}

// Login validates creds, waits out the simulated delay and enters the
// LoggedIn state. A cancelled context aborts the wait and leaves the gate
// unchanged.
func (g *Gate) Login(ctx context.Context, creds LoginCredentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	return g.enter(ctx, "session.Login", creds.Username)
}

// Signup is Login for the signup form. A password mismatch is rejected
// before any delay.
func (g *Gate) Signup(ctx context.Context, creds SignupCredentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	return g.enter(ctx, "session.Signup", creds.Username)
}

func (g *Gate) enter(ctx context.Context, op, username string) error {
	if g.LoggedIn() {
		return &core.MarketError{Op: op, Kind: "session", Err: core.ErrAlreadyLoggedIn}
	}
	if err := g.wait(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.username != "" {
		return &core.MarketError{Op: op, Kind: "session", Err: core.ErrAlreadyLoggedIn}
	}
	g.username = strings.TrimSpace(username)
	return nil
}

// Restore enters LoggedIn without a delay, for a username loaded from
// storage. An empty name keeps the gate logged out.
func (g *Gate) Restore(username string) {
	g.mu.Lock()
	g.username = strings.TrimSpace(username)
	g.mu.Unlock()
}

// Logout returns to LoggedOut.
func (g *Gate) Logout() {
	g.mu.Lock()
	g.username = ""
	g.mu.Unlock()
}

// State reports the current gate state.
func (g *Gate) State() State {
	if g.LoggedIn() {
		return LoggedIn
	}
	return LoggedOut
}

// LoggedIn reports whether a user is logged in.
func (g *Gate) LoggedIn() bool {
	return g.Username() != ""
}

// Username returns the logged-in name, or "" when logged out.
func (g *Gate) Username() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.username
}

// Initial returns the upper-cased first letter of the username for the
// avatar badge.
func (g *Gate) Initial() string {
	r, size := utf8.DecodeRuneInString(g.Username())
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return strings.ToUpper(string(r))
}

// Require returns core.ErrNotLoggedIn unless a user is logged in.
func (g *Gate) Require(op string) error {
	if g.LoggedIn() {
		return nil
	}
	return &core.MarketError{Op: op, Kind: "session", Err: core.ErrNotLoggedIn}
}

func (g *Gate) wait(ctx context.Context) error {
	if g.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
