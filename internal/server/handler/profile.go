package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

// maxImageUpload bounds the multipart read for profile images.
const maxImageUpload = 5 << 20

// ProfileService defines the methods the profile handler requires from the
// service layer.
type ProfileService interface {
	Register(ctx context.Context, wallet, name, description string) (domain.Profile, error)
	Get(ctx context.Context, wallet string) (domain.Profile, error)
	Verify(ctx context.Context, wallet string, verified bool) error
	UploadImage(ctx context.Context, wallet string, data []byte, contentType string) (string, error)
}

// ProfileHandler serves the profile endpoints.
type ProfileHandler struct {
	profiles ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(profiles ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

type registerProfileRequest struct {
	Wallet      string `json:"wallet_address"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Register creates or updates a profile.
// POST /api/profiles
func (h *ProfileHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Wallet == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "wallet_address and name are required")
		return
	}

	p, err := h.profiles.Register(r.Context(), req.Wallet, req.Name, req.Description)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// Get fetches a profile by wallet address.
// GET /api/profiles/{wallet}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	wallet := pathParam(r, "wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "missing wallet address")
		return
	}

	p, err := h.profiles.Get(r.Context(), wallet)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

type verifyProfileRequest struct {
	Verified bool `json:"is_verified"`
}

// Verify updates the verification flag on a profile.
// POST /api/profiles/{wallet}/verify
func (h *ProfileHandler) Verify(w http.ResponseWriter, r *http.Request) {
	wallet := pathParam(r, "wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "missing wallet address")
		return
	}

	var req verifyProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.profiles.Verify(r.Context(), wallet, req.Verified); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet_address": wallet,
		"is_verified":    req.Verified,
	})
}

// UploadImage accepts a multipart profile image and stores it.
// POST /api/profiles/{wallet}/image
func (h *ProfileHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	wallet := pathParam(r, "wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "missing wallet address")
		return
	}

	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image: "+err.Error())
		return
	}

	contentType := header.Header.Get("Content-Type")
	url, err := h.profiles.UploadImage(r.Context(), wallet, data, contentType)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"wallet_address": wallet,
		"image_url":      url,
	})
}
