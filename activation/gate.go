// Package activation gates restricted commands behind a secret code. A user
// session moves Idle → AwaitingCode → {Activated, Cancelled,
// AttemptsExhausted}; attempt counters are global per user and persistent, so
// restarting a session never grants fresh attempts.
package activation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"
)

// Outcome of a gate operation, for the caller to map onto a user reply.
type Outcome int

const (
	OutcomeAlreadyActive Outcome = iota
	OutcomePromptCode
	OutcomeActivated
	OutcomeWrongCode
	OutcomeInvalidCode
	OutcomeExhausted
	OutcomeCancelled
	OutcomeNotAwaiting
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyActive:
		return "already_active"
	case OutcomePromptCode:
		return "prompt_code"
	case OutcomeActivated:
		return "activated"
	case OutcomeWrongCode:
		return "wrong_code"
	case OutcomeInvalidCode:
		return "invalid_code"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeNotAwaiting:
		return "not_awaiting"
	default:
		return "unknown"
	}
}

// Result pairs an outcome with the attempts remaining (meaningful for
// OutcomeWrongCode).
type Result struct {
	Outcome   Outcome
	Remaining int
}

const maxCodeLen = 50

type Gate struct {
	logger      *slog.Logger
	attempts    AttemptStore
	activated   ActivatedStore
	secret      string
	maxAttempts int
	privileged  map[int64]bool

	mu       sync.Mutex
	awaiting map[int64]bool
}

func NewGate(secret string, maxAttempts int, privileged []int64, attempts AttemptStore, activated ActivatedStore, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	priv := make(map[int64]bool, len(privileged))
	for _, id := range privileged {
		priv[id] = true
	}
	return &Gate{
		logger:      logger.With("system", "activation"),
		attempts:    attempts,
		activated:   activated,
		secret:      secret,
		maxAttempts: maxAttempts,
		privileged:  priv,
		awaiting:    make(map[int64]bool),
	}
}

// Start begins an activation session. Privileged and already-activated users
// short-circuit to AlreadyActive; users who exhausted their attempts are
// refused.
func (g *Gate) Start(ctx context.Context, userID int64) (Result, error) {
	if g.privileged[userID] {
		return Result{Outcome: OutcomeAlreadyActive}, nil
	}
	active, err := g.activated.Contains(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if active {
		return Result{Outcome: OutcomeAlreadyActive}, nil
	}
	used, err := g.attempts.Get(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if used >= g.maxAttempts {
		return Result{Outcome: OutcomeExhausted}, nil
	}
	g.mu.Lock()
	g.awaiting[userID] = true
	g.mu.Unlock()
	return Result{Outcome: OutcomePromptCode, Remaining: g.maxAttempts - used}, nil
}

// Awaiting reports whether the user has a pending code prompt.
func (g *Gate) Awaiting(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.awaiting[userID]
}

// Submit evaluates a code submission. Empty or over-length input is rejected
// without consuming an attempt and the session stays open.
func (g *Gate) Submit(ctx context.Context, userID int64, code string) (Result, error) {
	if !g.Awaiting(userID) {
		return Result{Outcome: OutcomeNotAwaiting}, nil
	}
	code = strings.TrimSpace(code)
	if code == "" || utf8.RuneCountInString(code) > maxCodeLen {
		return Result{Outcome: OutcomeInvalidCode}, nil
	}

	used, err := g.attempts.Incr(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if code == g.secret {
		if err := g.activated.Add(ctx, userID); err != nil {
			return Result{}, err
		}
		g.endSession(userID)
		g.logger.Info("user activated", "user", userID)
		return Result{Outcome: OutcomeActivated}, nil
	}

	remaining := g.maxAttempts - used
	if remaining > 0 {
		return Result{Outcome: OutcomeWrongCode, Remaining: remaining}, nil
	}
	g.endSession(userID)
	g.logger.Warn("activation attempts exhausted", "user", userID)
	return Result{Outcome: OutcomeExhausted}, nil
}

// Cancel is the user-initiated terminal transition.
func (g *Gate) Cancel(ctx context.Context, userID int64) (Result, error) {
	if !g.Awaiting(userID) {
		return Result{Outcome: OutcomeNotAwaiting}, nil
	}
	g.endSession(userID)
	return Result{Outcome: OutcomeCancelled}, nil
}

// IsActivated reports whether the user may use restricted commands.
func (g *Gate) IsActivated(ctx context.Context, userID int64) (bool, error) {
	if g.privileged[userID] {
		return true, nil
	}
	return g.activated.Contains(ctx, userID)
}

// ResetAttempts is the administrative escape hatch for an exhausted user.
func (g *Gate) ResetAttempts(ctx context.Context, userID int64) error {
	return g.attempts.Reset(ctx, userID)
}

func (g *Gate) endSession(userID int64) {
	g.mu.Lock()
	delete(g.awaiting, userID)
	g.mu.Unlock()
}
