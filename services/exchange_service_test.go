package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	patgate "go.pilab.hu/patgate"
	"go.pilab.hu/patgate/domain"
)

func newTestExchangeCodec() *patgate.AccessTokenCodec {
	return patgate.NewAccessTokenCodec([]byte("exchange-test-key"), "patgate-test", 0)
}

func TestExchangeSuccess(t *testing.T) {
	repo := new(MockPATRepository)
	codec := newTestExchangeCodec()
	svc := NewExchangeService(repo, codec, 900*time.Second)

	pat := &domain.PersonalAccessToken{
		ID:           "pat-1",
		OwnerSubject: "user-1",
		Scopes:       []string{"gateway"},
	}
	repo.On("FindBySecret", mock.Anything, "pat_secret").Return(pat, nil).Once()

	touched := make(chan string, 1)
	repo.On("TouchLastUsed", mock.Anything, "pat-1").
		Run(func(args mock.Arguments) { touched <- args.String(1) }).
		Return(nil).Maybe()

	result, err := svc.Exchange(context.Background(), "pat_secret")
	require.NoError(t, err)

	assert.Equal(t, "bearer", result.TokenType)
	assert.Equal(t, 900, result.ExpiresIn)
	assert.Equal(t, "pat-1", result.PATID)
	assert.NotZero(t, result.IssuedAt)

	claims, err := codec.Verify(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, []string{"gateway"}, claims.Scopes)
	assert.Equal(t, "pat-1", claims.PATID)

	select {
	case id := <-touched:
		assert.Equal(t, "pat-1", id)
	case <-time.After(time.Second):
		t.Fatal("TouchLastUsed was never called")
	}
}

func TestExchangeEmptySecret(t *testing.T) {
	repo := new(MockPATRepository)
	svc := NewExchangeService(repo, newTestExchangeCodec(), 900*time.Second)

	_, err := svc.Exchange(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrExchangeUnauthorized)

	repo.AssertNotCalled(t, "FindBySecret", mock.Anything, mock.Anything)
}

func TestExchangeRejectionsAreIndistinguishable(t *testing.T) {
	// Unknown secrets and internal store failures must both surface as
	// the same generic rejection. The repository already collapses
	// revoked and expired records into ErrPATNotFound.
	tests := []struct {
		name    string
		repoErr error
	}{
		{"unknown secret", domain.ErrPATNotFound},
		{"store failure", errors.New("socket closed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPATRepository)
			svc := NewExchangeService(repo, newTestExchangeCodec(), 900*time.Second)

			repo.On("FindBySecret", mock.Anything, "pat_secret").Return(nil, tt.repoErr).Once()

			_, err := svc.Exchange(context.Background(), "pat_secret")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrExchangeUnauthorized)
			assert.Equal(t, ErrExchangeUnauthorized.Error(), err.Error())
		})
	}
}

func TestExchangeTouchFailureSwallowed(t *testing.T) {
	repo := new(MockPATRepository)
	svc := NewExchangeService(repo, newTestExchangeCodec(), 900*time.Second)

	pat := &domain.PersonalAccessToken{ID: "pat-1", OwnerSubject: "user-1"}
	repo.On("FindBySecret", mock.Anything, "pat_secret").Return(pat, nil).Once()

	touched := make(chan struct{}, 1)
	repo.On("TouchLastUsed", mock.Anything, "pat-1").
		Run(func(mock.Arguments) { touched <- struct{}{} }).
		Return(errors.New("write timeout")).Maybe()

	result, err := svc.Exchange(context.Background(), "pat_secret")
	require.NoError(t, err, "a failed last-used update must never fail the exchange")
	assert.NotEmpty(t, result.AccessToken)

	select {
	case <-touched:
	case <-time.After(time.Second):
		t.Fatal("TouchLastUsed was never attempted")
	}
}

func TestExchangeScopeSnapshotAtExchangeTime(t *testing.T) {
	repo := new(MockPATRepository)
	codec := newTestExchangeCodec()
	svc := NewExchangeService(repo, codec, 900*time.Second)

	// The record returned by the store carries the current scopes,
	// which may differ from the ones set at creation.
	pat := &domain.PersonalAccessToken{
		ID:           "pat-1",
		OwnerSubject: "user-1",
		Scopes:       []string{"admin", "gateway"},
	}
	repo.On("FindBySecret", mock.Anything, "pat_secret").Return(pat, nil).Once()
	repo.On("TouchLastUsed", mock.Anything, "pat-1").Return(nil).Maybe()

	result, err := svc.Exchange(context.Background(), "pat_secret")
	require.NoError(t, err)

	claims, err := codec.Verify(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "gateway"}, claims.Scopes)
}
