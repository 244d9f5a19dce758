package handlers

import (
	"net/http"

	"github.com/lehigh-university-libraries/photogroup/internal/signedurl"
)

type urlRequest struct {
	Bucket string `json:"bucket"`
	Object string `json:"object"`
}

type urlResponse struct {
	URL string `json:"url"`
}

func (h *Handler) HandleUploadURL(w http.ResponseWriter, r *http.Request) {
	h.handleSignedURL(w, r, signedurl.Write)
}

func (h *Handler) HandleDownloadURL(w http.ResponseWriter, r *http.Request) {
	h.handleSignedURL(w, r, signedurl.Read)
}

func (h *Handler) handleSignedURL(w http.ResponseWriter, r *http.Request, op signedurl.Operation) {
	var req urlRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	u, err := h.signer.SignedURL(r.Context(), op, req.Bucket, req.Object)
	h.metrics.URLSigned(op.String(), err)
	if err != nil {
		h.writeError(w, err.Error(), statusFor(err))
		return
	}

	h.writeJSON(w, urlResponse{URL: u})
}
