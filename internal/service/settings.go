package service

import (
	"sync"
	"time"

	"momentum/internal/datex"
	"momentum/internal/recurrence"
	"momentum/internal/streak"
)

// Settings carries the engine-wide knobs shared by the services.
type Settings struct {
	Clock           datex.Clock
	Location        *time.Location
	HorizonDays     int
	TokensPerMonth  int
	MaxFreezeTokens int
}

func (s Settings) withDefaults() Settings {
	if s.Clock == nil {
		s.Clock = datex.SystemClock{}
	}
	if s.Location == nil {
		s.Location = time.Local
	}
	if s.HorizonDays <= 0 {
		s.HorizonDays = recurrence.DefaultHorizonDays
	}
	if s.TokensPerMonth <= 0 {
		s.TokensPerMonth = streak.DefaultMonthlyGrant
	}
	if s.MaxFreezeTokens <= 0 {
		s.MaxFreezeTokens = streak.MaxFreezeTokens
	}
	return s
}

// now returns the current instant in loc (or the default location).
func (s Settings) now(loc *time.Location) time.Time {
	if loc == nil {
		loc = s.Location
	}
	return s.Clock.Now().In(loc)
}

// userLocks serializes read-modify-write cycles on one user's progress rows.
type userLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func (l *userLocks) lock(userID uint) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uint]*sync.Mutex)
	}
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
