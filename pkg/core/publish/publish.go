// Package publish keeps assembled caption documents addressable by an opaque
// handle until they are revoked, and serves them over HTTP.
package publish

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	coreErrors "github.com/angelospk/osdfxp/pkg/core/errors"
	"github.com/angelospk/osdfxp/pkg/core/dfxp"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// PathPrefix is the URL path under which documents are served.
const PathPrefix = "/subtitles/"

// Handle identifies one published document.
type Handle struct {
	ID       string
	Filename string
}

// URLPath is the path the registry serves this document at.
func (h Handle) URLPath() string {
	return PathPrefix + h.ID + dfxp.Extension
}

// Document is a published document and its metadata.
type Document struct {
	Content     string
	Filename    string
	PublishedAt time.Time
}

// Registry holds published documents. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	docs   map[string]Document
	logger *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New()
		logger.SetFormatter(&log.TextFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(log.InfoLevel)
	}
	return &Registry{
		docs:   make(map[string]Document),
		logger: logger,
	}
}

// Publish stores content under a fresh handle.
func (r *Registry) Publish(content, filename string) Handle {
	h := Handle{ID: uuid.NewString(), Filename: filename}

	r.mu.Lock()
	r.docs[h.ID] = Document{Content: content, Filename: filename, PublishedAt: time.Now()}
	count := len(r.docs)
	r.mu.Unlock()

	r.logger.WithFields(log.Fields{"handle": h.ID, "filename": filename, "bytes": len(content)}).
		Debugf("Published document (%d live)", count)
	return h
}

// Open returns the document published under id.
func (r *Registry) Open(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return Document{}, fmt.Errorf("open %s: %w", id, coreErrors.ErrUnknownHandle)
	}
	return doc, nil
}

// Revoke releases the document behind h. Revoking twice reports ErrUnknownHandle.
func (r *Registry) Revoke(h Handle) error {
	r.mu.Lock()
	_, ok := r.docs[h.ID]
	delete(r.docs, h.ID)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("revoke %s: %w", h.ID, coreErrors.ErrUnknownHandle)
	}
	r.logger.WithField("handle", h.ID).Debug("Revoked document")
	return nil
}

// Len returns the number of live documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// ServeHTTP serves GET and HEAD requests for PathPrefix + "<id>.dfxp".
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := path.Base(req.URL.Path)
	if !strings.HasPrefix(req.URL.Path, PathPrefix) || !strings.HasSuffix(name, dfxp.Extension) {
		http.NotFound(w, req)
		return
	}

	doc, err := r.Open(strings.TrimSuffix(name, dfxp.Extension))
	if err != nil {
		http.NotFound(w, req)
		return
	}

	w.Header().Set("Content-Type", dfxp.MIMEType+"; charset=utf-8")
	if doc.Filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	}
	http.ServeContent(w, req, doc.Filename, doc.PublishedAt, strings.NewReader(doc.Content))
}
