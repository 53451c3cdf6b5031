package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	patgate "go.pilab.hu/patgate"
	"go.pilab.hu/patgate/domain"
	"go.pilab.hu/patgate/internal/metrics"
)

// ErrExchangeUnauthorized is the single rejection error for the
// exchange flow. An empty, unknown, revoked, or expired secret all map
// here so callers cannot distinguish the cause.
var ErrExchangeUnauthorized = errors.New("personal access token rejected")

// touchTimeout bounds the advisory last-used write that runs off the
// response path.
const touchTimeout = 5 * time.Second

// ExchangeResult is a freshly minted access token and its metadata.
type ExchangeResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
	IssuedAt    int64
	PATID       string
}

// ExchangeService converts a raw PAT secret into a short-lived access
// token. Scopes are read from the record at exchange time, not from
// creation time.
type ExchangeService struct {
	repo  domain.PATRepository
	codec *patgate.AccessTokenCodec
	ttl   time.Duration
}

// NewExchangeService creates a new ExchangeService instance.
func NewExchangeService(repo domain.PATRepository, codec *patgate.AccessTokenCodec, ttl time.Duration) *ExchangeService {
	return &ExchangeService{
		repo:  repo,
		codec: codec,
		ttl:   ttl,
	}
}

// Exchange validates the presented secret and mints an access token
// bound to the PAT's owner and current scopes.
func (s *ExchangeService) Exchange(ctx context.Context, rawSecret string) (*ExchangeResult, error) {
	if strings.TrimSpace(rawSecret) == "" {
		metrics.ExchangesFailureTotal.Inc()
		return nil, ErrExchangeUnauthorized
	}

	pat, err := s.repo.FindBySecret(ctx, rawSecret)
	if err != nil {
		if !errors.Is(err, domain.ErrPATNotFound) {
			log.Error().Err(err).Msg("PAT lookup failed during exchange")
		}
		metrics.ExchangesFailureTotal.Inc()
		return nil, ErrExchangeUnauthorized
	}

	now := time.Now()
	accessToken, err := s.codec.Mint(pat.OwnerSubject, pat.Scopes, pat.ID, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}

	// Advisory usage telemetry; never blocks or fails the exchange.
	go func(patID string) {
		touchCtx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := s.repo.TouchLastUsed(touchCtx, patID); err != nil {
			log.Warn().Err(err).Str("pat_id", patID).Msg("Failed to record PAT last use")
		}
	}(pat.ID)

	metrics.ExchangesSuccessTotal.Inc()

	return &ExchangeResult{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(s.ttl.Seconds()),
		IssuedAt:    now.Unix(),
		PATID:       pat.ID,
	}, nil
}
