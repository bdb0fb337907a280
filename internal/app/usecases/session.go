package usecases

import (
	"context"
	"errors"
	"sync"

	"github.com/flowgraph/ruleeditor/internal/app/dto"
	"github.com/flowgraph/ruleeditor/internal/app/editor"
)

// ErrSessionClosed is returned by a session after Close
var ErrSessionClosed = errors.New("editing session is closed")

// Session is one editing session over the rule of a task. It serializes
// access to its editor so it can be shared between goroutines.
type Session struct {
	id      string
	request dto.RuleRequest
	service *RuleService

	mu     sync.Mutex
	editor *editor.Editor
	closed bool
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Request returns the task the session edits.
func (s *Session) Request() dto.RuleRequest {
	return s.request
}

// Do runs fn with exclusive access to the editor.
func (s *Session) Do(fn func(e *editor.Editor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return fn(s.editor)
}

// Save stores the current rule. The rule is captured under the lock; the
// editor stays usable while the store write runs and edits made meanwhile
// remain unsaved.
func (s *Session) Save(ctx context.Context) dto.SaveResult {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return dto.SaveFailure(ErrSessionClosed)
	}
	r, revision, err := s.editor.PrepareSave()
	s.mu.Unlock()
	if err != nil {
		return dto.SaveFailure(err)
	}

	version, err := s.service.write(ctx, s.request, r)
	if err != nil {
		return dto.SaveFailure(err)
	}

	s.mu.Lock()
	s.editor.MarkSaved(revision)
	s.mu.Unlock()
	return dto.SaveResult{Success: true, Version: version}
}

// Close ends the session. Unsaved changes are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.service.metrics.SessionClosed()
}
