package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/photogroup/internal/fingerprint"
	"github.com/lehigh-university-libraries/photogroup/internal/grouping"
	"github.com/lehigh-university-libraries/photogroup/internal/metrics"
	"github.com/lehigh-university-libraries/photogroup/internal/signedurl"
)

// Options configures a Handler.
type Options struct {
	// Threshold is used when a request omits one.
	Threshold float64
	// PhotoRoot confines every path a request names. Relative request
	// paths are resolved against it.
	PhotoRoot string
	// Denied lists files that are never served even inside PhotoRoot,
	// such as the credential file.
	Denied []string
	// CORSOrigins enables CORS for exactly these origins. Empty disables it.
	CORSOrigins []string
}

// Handler serves the photogroup JSON API.
type Handler struct {
	grouper   *grouping.Grouper
	signer    *signedurl.Signer
	metrics   *metrics.Metrics
	threshold float64
	root      string
	denied    map[string]bool
	origins   []string
}

// New builds a Handler. The grouper is copied so observing it for metrics
// does not change the caller's value.
func New(grouper *grouping.Grouper, signer *signedurl.Signer, m *metrics.Metrics, opts Options) (*Handler, error) {
	if m == nil {
		m = metrics.New()
	}
	g := *grouper
	if g.Observer == nil {
		g.Observer = m
	}

	if opts.PhotoRoot == "" {
		return nil, errors.New("photo root is required")
	}
	root, err := filepath.Abs(opts.PhotoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve photo root: %w", err)
	}
	root = resolveLinks(root)

	denied := make(map[string]bool, len(opts.Denied))
	for _, p := range opts.Denied {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve denied path: %w", err)
		}
		denied[resolveLinks(abs)] = true
	}

	slog.Info("Serving photos", "root", root, "cors_origins", opts.CORSOrigins)

	return &Handler{
		grouper:   &g,
		signer:    signer,
		metrics:   m,
		threshold: opts.Threshold,
		root:      root,
		denied:    denied,
		origins:   opts.CORSOrigins,
	}, nil
}

// ErrForbiddenPath is returned for request paths outside the photo root.
var ErrForbiddenPath = errors.New("path is outside the photo root")

// resolvePath maps a request path onto the filesystem, refusing anything
// that escapes the photo root or is on the deny list.
func (h *Handler) resolvePath(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(h.root, p)
	}
	resolved := resolveLinks(filepath.Clean(p))

	rel, err := filepath.Rel(h.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrForbiddenPath, p)
	}
	if h.denied[resolved] {
		return "", fmt.Errorf("%w: %s", ErrForbiddenPath, p)
	}
	return resolved, nil
}

// resolveLinks follows symlinks in p. For a path that does not exist yet
// the parent directory is resolved instead.
func resolveLinks(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		return filepath.Join(dir, filepath.Base(p))
	}
	return p
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message, "status", code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var decodeErr *fingerprint.DecodeError
	switch {
	case errors.Is(err, ErrForbiddenPath):
		return http.StatusForbidden
	case errors.Is(err, grouping.ErrInvalidThreshold),
		errors.Is(err, signedurl.ErrInvalidResource),
		errors.Is(err, signedurl.ErrUnknownOperation):
		return http.StatusBadRequest
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
