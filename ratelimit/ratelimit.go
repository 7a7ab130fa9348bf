// Package ratelimit enforces fixed per-command cooldowns keyed by
// (user, command). An invocation is permitted only if the previous permitted
// invocation for the same key is older than the command's cooldown.
package ratelimit

import (
	"sync"
	"time"
)

type key struct {
	user    int64
	command string
}

type Limiter struct {
	cooldowns map[string]time.Duration
	fallback  time.Duration

	mu   sync.Mutex
	last map[key]time.Time
}

// New builds a limiter from a command → cooldown table plus a default for
// commands not listed.
func New(cooldowns map[string]time.Duration, fallback time.Duration) *Limiter {
	cd := make(map[string]time.Duration, len(cooldowns))
	for cmd, d := range cooldowns {
		cd[cmd] = d
	}
	return &Limiter{
		cooldowns: cd,
		fallback:  fallback,
		last:      make(map[key]time.Time),
	}
}

// Allow reports whether the user may invoke the command at time now, and on
// success records now as the last invocation. Check and set are atomic per
// key, so two near-simultaneous invocations cannot both pass.
func (l *Limiter) Allow(userID int64, command string, now time.Time) bool {
	cooldown, ok := l.cooldowns[command]
	if !ok {
		cooldown = l.fallback
	}

	k := key{user: userID, command: command}
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.last[k]; ok && now.Sub(prev) < cooldown {
		return false
	}
	l.last[k] = now
	return true
}

// Cooldown returns the effective cooldown for a command.
func (l *Limiter) Cooldown(command string) time.Duration {
	if d, ok := l.cooldowns[command]; ok {
		return d
	}
	return l.fallback
}
