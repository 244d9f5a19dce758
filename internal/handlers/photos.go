package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/photogroup/internal/photos"
)

// HandleListPhotos lists the photos in ?dir=.
func (h *Handler) HandleListPhotos(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		h.writeError(w, "dir is required", http.StatusBadRequest)
		return
	}

	resolved, err := h.resolvePath(dir)
	if err != nil {
		h.writeError(w, err.Error(), statusFor(err))
		return
	}

	paths, err := photos.List(resolved)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	if paths == nil {
		paths = []string{}
	}

	h.writeJSON(w, map[string]any{"dir": dir, "photos": paths})
}

// HandlePhotoData returns ?path= as a base64 data URI. Only files with a
// recognised image extension are served.
func (h *Handler) HandlePhotoData(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.writeError(w, "path is required", http.StatusBadRequest)
		return
	}

	resolved, err := h.resolvePath(path)
	if err != nil {
		h.writeError(w, err.Error(), statusFor(err))
		return
	}
	if !photos.Extensions[strings.ToLower(filepath.Ext(resolved))] {
		h.writeError(w, "not a photo: "+path, http.StatusForbidden)
		return
	}

	uri, err := photos.DataURI(resolved)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	h.writeJSON(w, map[string]string{"path": path, "data_uri": uri})
}
