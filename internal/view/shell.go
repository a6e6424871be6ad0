package view

import (
	"sync"

	"github.com/arturoeanton/godsplan/internal/domain"
)

// Ticket identifies one language switch. Only the most recent ticket may
// resolve the shell.
type Ticket struct {
	seq  uint64
	lang string
}

// Lang is the language the ticket was issued for.
func (t Ticket) Lang() string { return t.lang }

// ShellState is a snapshot of the shell.
type ShellState struct {
	// Lang is the language the visitor asked for.
	Lang string
	// BundleLang is the language of Bundle, which lags Lang while loading
	// or after a failed fetch.
	BundleLang string
	Bundle     domain.Bundle
	Loading    bool
	Err        error
}

// Shell holds the bundle currently on screen for one visitor and guards it
// against out-of-order fetch results.
type Shell struct {
	mu    sync.Mutex
	seq   uint64
	state ShellState
}

// NewShell starts with lang selected and nothing loaded.
func NewShell(lang string) *Shell {
	return &Shell{state: ShellState{Lang: lang, Bundle: domain.Bundle{}}}
}

// Switch selects lang and returns the ticket the matching fetch must resolve
// with. Any earlier outstanding ticket becomes stale.
func (s *Shell) Switch(lang string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.state.Lang = lang
	s.state.Loading = true
	return Ticket{seq: s.seq, lang: lang}
}

// Resolve applies a fetch result. Stale tickets are ignored and report false.
// On err the previous bundle stays on screen and Err is recorded.
func (s *Shell) Resolve(t Ticket, b domain.Bundle, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.seq != s.seq {
		return false
	}
	s.state.Loading = false
	if err != nil {
		s.state.Err = err
		return true
	}
	if b == nil {
		b = domain.Bundle{}
	}
	s.state.Bundle = b
	s.state.BundleLang = t.lang
	s.state.Err = nil
	return true
}

// State returns a snapshot.
func (s *Shell) State() ShellState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
