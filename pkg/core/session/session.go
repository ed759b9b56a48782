// Package session tracks one converted subtitle while it is being watched:
// the parsed cues, the live published document and the current resync offset.
package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/angelospk/osdfxp/pkg/core/dfxp"
	coreErrors "github.com/angelospk/osdfxp/pkg/core/errors"
	"github.com/angelospk/osdfxp/pkg/core/publish"
	log "github.com/sirupsen/logrus"
)

// Publisher is the subset of publish.Registry a session needs.
type Publisher interface {
	Publish(content, filename string) publish.Handle
	Revoke(h publish.Handle) error
}

var _ Publisher = (*publish.Registry)(nil)

// Session owns exactly one live document at a time.
type Session struct {
	cues      []dfxp.Cue
	filename  string
	publisher Publisher
	logger    *log.Logger

	mu     sync.RWMutex
	offset time.Duration
	doc    string
	handle publish.Handle
	closed bool
}

// New assembles cues without an offset and publishes the result.
func New(cues []dfxp.Cue, filename string, publisher Publisher, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New()
		logger.SetFormatter(&log.TextFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(log.InfoLevel)
	}
	base := make([]dfxp.Cue, len(cues))
	copy(base, cues)

	s := &Session{
		cues:      base,
		filename:  filename,
		publisher: publisher,
		logger:    logger,
	}
	s.doc = dfxp.Assemble(base)
	s.handle = publisher.Publish(s.doc, filename)
	logger.WithFields(log.Fields{"filename": filename, "cues": len(base), "handle": s.handle.ID}).Info("Subtitle session started")
	return s
}

// ApplyResyncOffset rebuilds the document from the original cues shifted by
// offset, publishes it and revokes the previous handle. Offsets replace each
// other rather than accumulate.
func (s *Session) ApplyResyncOffset(offset time.Duration) (publish.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return publish.Handle{}, coreErrors.ErrSessionClosed
	}

	doc := dfxp.AssembleResynced(s.cues, offset)
	next := s.publisher.Publish(doc, s.filename)
	prev := s.handle

	s.doc, s.handle, s.offset = doc, next, offset

	if err := s.publisher.Revoke(prev); err != nil {
		s.logger.WithError(err).Warnf("Failed to revoke previous document %s", prev.ID)
	}
	s.logger.WithFields(log.Fields{"offset": offset, "handle": next.ID}).Info("Applied resync offset")
	return next, nil
}

// Offset returns the offset the live document was built with.
func (s *Session) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Handle returns the handle of the live document.
func (s *Session) Handle() publish.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// Document returns the live document.
func (s *Session) Document() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Filename returns the download name of the document.
func (s *Session) Filename() string {
	return s.filename
}

// Close revokes the live document. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.publisher.Revoke(s.handle); err != nil {
		return fmt.Errorf("failed to close session %s: %w", s.filename, err)
	}
	s.logger.WithField("filename", s.filename).Info("Subtitle session closed")
	return nil
}
