package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	patgate "go.pilab.hu/patgate"
	"go.pilab.hu/patgate/domain"
	"go.pilab.hu/patgate/internal/metrics"
)

// maxSecretAttempts bounds the retry loop on a secret hash collision.
const maxSecretAttempts = 3

// PATService bridges an externally authenticated principal to PAT store
// operations. Callers are expected to have already verified the
// provider bearer and resolved the owner subject.
type PATService struct {
	repo         domain.PATRepository
	secretPrefix string
}

// NewPATService creates a new PATService instance.
func NewPATService(repo domain.PATRepository, secretPrefix string) *PATService {
	return &PATService{
		repo:         repo,
		secretPrefix: secretPrefix,
	}
}

// CreatePATInput is the sanitized creation request.
type CreatePATInput struct {
	Name        string
	Description string
	Scopes      []string
	ExpiresAt   *time.Time
}

// CreatePAT generates a fresh secret, persists the record, and returns
// it together with the raw secret. The raw secret is returned exactly
// once; no later read can recover it.
func (s *PATService) CreatePAT(ctx context.Context, ownerSubject string, in CreatePATInput) (*domain.PersonalAccessToken, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, "", domain.ErrEmptyPATName
	}

	scopes := domain.NormalizeScopes(in.Scopes)

	var expiresAt *time.Time
	if in.ExpiresAt != nil {
		utc := in.ExpiresAt.UTC()
		expiresAt = &utc
	}

	for attempt := 0; attempt < maxSecretAttempts; attempt++ {
		rawSecret, err := patgate.NewSecret(s.secretPrefix)
		if err != nil {
			return nil, "", fmt.Errorf("failed to generate PAT secret: %w", err)
		}

		now := time.Now().UTC()
		pat := &domain.PersonalAccessToken{
			ID:           uuid.NewString(),
			OwnerSubject: ownerSubject,
			Name:         name,
			Description:  strings.TrimSpace(in.Description),
			Scopes:       scopes,
			SecretPrefix: patgate.SecretLookupPrefix(rawSecret),
			SecretHash:   patgate.HashSecret(rawSecret),
			ExpiresAt:    expiresAt,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		err = s.repo.Create(ctx, pat)
		if errors.Is(err, domain.ErrSecretHashConflict) {
			log.Warn().Int("attempt", attempt+1).Msg("PAT secret hash collision, retrying with a fresh secret")
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to store PAT: %w", err)
		}

		metrics.PATsCreatedTotal.Inc()

		return pat, rawSecret, nil
	}

	return nil, "", errors.New("failed to generate a unique PAT secret")
}

// ListPATs returns the principal's non-revoked PATs, newest first.
// Secrets are not part of the records.
func (s *PATService) ListPATs(ctx context.Context, ownerSubject string) ([]*domain.PersonalAccessToken, error) {
	return s.repo.ListByOwner(ctx, ownerSubject)
}

// RevokePAT marks the principal's PAT as revoked. A foreign or unknown
// id yields domain.ErrPATNotFound; existence of other principals'
// tokens is never revealed.
func (s *PATService) RevokePAT(ctx context.Context, ownerSubject, id string) error {
	if err := s.repo.Revoke(ctx, ownerSubject, id); err != nil {
		return err
	}

	metrics.PATsRevokedTotal.Inc()

	return nil
}
