package handlers

import (
	"net/http"

	"github.com/lehigh-university-libraries/photogroup/internal/fingerprint"
	"github.com/lehigh-university-libraries/photogroup/internal/grouping"
)

type hashRequest struct {
	Path string `json:"path"`
}

type hashResponse struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
}

// HandleHash fingerprints a single photo.
func (h *Handler) HandleHash(w http.ResponseWriter, r *http.Request) {
	var req hashRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		h.writeError(w, "path is required", http.StatusBadRequest)
		return
	}

	path, err := h.resolvePath(req.Path)
	if err != nil {
		h.writeError(w, err.Error(), statusFor(err))
		return
	}

	f, err := fingerprint.HashFile(path)
	if err != nil {
		h.metrics.DecodeFailed()
		h.writeError(w, err.Error(), statusFor(err))
		return
	}
	h.metrics.PhotoHashed()

	h.writeJSON(w, hashResponse{Path: req.Path, Fingerprint: f.String()})
}

type groupRequest struct {
	Paths     []string `json:"paths"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// HandleGroups fingerprints and groups the given photo paths.
func (h *Handler) HandleGroups(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	photos := make([]grouping.Photo, len(req.Paths))
	for i, p := range req.Paths {
		path, err := h.resolvePath(p)
		if err != nil {
			h.writeError(w, err.Error(), statusFor(err))
			return
		}
		photos[i] = grouping.Photo{ID: p, Path: path}
	}

	groups, err := h.grouper.Group(r.Context(), photos, h.thresholdOr(req.Threshold))
	if err != nil {
		h.writeError(w, err.Error(), statusFor(err))
		return
	}

	h.writeJSON(w, groups)
}

type fingerprintedPhoto struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
}

type groupFingerprintsRequest struct {
	Photos    []fingerprintedPhoto `json:"photos"`
	Threshold *float64             `json:"threshold,omitempty"`
}

// HandleGroupFingerprints groups photos whose fingerprints the caller
// already computed with /api/hash.
func (h *Handler) HandleGroupFingerprints(w http.ResponseWriter, r *http.Request) {
	var req groupFingerprintsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ids := make([]string, len(req.Photos))
	hashes := make([]fingerprint.Fingerprint, len(req.Photos))
	for i, p := range req.Photos {
		f, err := fingerprint.Parse(p.Fingerprint)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		ids[i] = p.ID
		hashes[i] = f
	}

	groups, err := grouping.Cluster(hashes, ids, h.thresholdOr(req.Threshold))
	if err != nil {
		h.writeError(w, err.Error(), statusFor(err))
		return
	}
	for _, g := range groups {
		h.metrics.GroupFormed(len(g.Photos))
	}

	h.writeJSON(w, groups)
}

func (h *Handler) thresholdOr(t *float64) float64 {
	if t == nil {
		return h.threshold
	}
	return *t
}
