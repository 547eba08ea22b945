package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

// ProfileService manages user profiles and their images.
type ProfileService struct {
	profiles domain.ProfileStore
	blobs    domain.BlobWriter
	logger   *slog.Logger
}

// NewProfileService creates a ProfileService. blobs may be nil, in which
// case image uploads are rejected.
func NewProfileService(profiles domain.ProfileStore, blobs domain.BlobWriter, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		blobs:    blobs,
		logger:   logger,
	}
}

// Register creates or updates a profile for the wallet.
func (s *ProfileService) Register(ctx context.Context, wallet, name, description string) (domain.Profile, error) {
	wallet = strings.ToLower(strings.TrimSpace(wallet))
	if wallet == "" {
		return domain.Profile{}, fmt.Errorf("profile_service: empty wallet address")
	}
	if strings.TrimSpace(name) == "" {
		return domain.Profile{}, fmt.Errorf("profile_service: empty profile name")
	}

	now := time.Now().UTC()
	p := domain.Profile{
		Wallet:      wallet,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.profiles.Upsert(ctx, p); err != nil {
		return domain.Profile{}, fmt.Errorf("profile_service: upsert %s: %w", wallet, err)
	}

	return s.Get(ctx, wallet)
}

// Get fetches a profile by wallet address.
func (s *ProfileService) Get(ctx context.Context, wallet string) (domain.Profile, error) {
	p, err := s.profiles.GetByWallet(ctx, strings.ToLower(wallet))
	if err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// Verify flips the verification flag on a profile.
func (s *ProfileService) Verify(ctx context.Context, wallet string, verified bool) error {
	if err := s.profiles.SetVerified(ctx, strings.ToLower(wallet), verified); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "profile_service: verification updated",
		slog.String("wallet", wallet),
		slog.Bool("verified", verified))
	return nil
}

// UploadImage stores a profile image and records its URL on the profile.
func (s *ProfileService) UploadImage(ctx context.Context, wallet string, data []byte, contentType string) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("profile_service: image storage not configured")
	}

	wallet = strings.ToLower(wallet)
	if _, err := s.profiles.GetByWallet(ctx, wallet); err != nil {
		return "", err
	}

	ext := extensionFor(contentType)
	key := path.Join("profiles", wallet+ext)

	url, err := s.blobs.PutImage(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("profile_service: upload image for %s: %w", wallet, err)
	}

	if err := s.profiles.SetImageURL(ctx, wallet, url); err != nil {
		return "", fmt.Errorf("profile_service: record image url for %s: %w", wallet, err)
	}

	return url, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
