package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	patgate "go.pilab.hu/patgate"
	"go.pilab.hu/patgate/domain"
)

// PATRepository implements domain.PATRepository on MongoDB.
type PATRepository struct {
	coll *mongo.Collection
}

// NewPATRepository creates the repository and ensures the collection
// indexes: a unique index on secret_hash guards the one-secret-one-record
// invariant, the rest serve the list and exchange lookups.
func NewPATRepository(ctx context.Context, db *mongo.Database) (*PATRepository, error) {
	repo := &PATRepository{
		coll: db.Collection(PATsCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "secret_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "secret_prefix", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "owner_subject", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index(),
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if _, err := repo.coll.Indexes().CreateMany(timeoutCtx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for personal_access_tokens collection (might already exist or other error)")
	} else {
		log.Info().Msg("Indexes for personal_access_tokens collection ensured.")
	}

	return repo, nil
}

// Create inserts a new PAT record. A duplicate secret_hash maps to
// domain.ErrSecretHashConflict so the caller can retry with a fresh secret.
func (r *PATRepository) Create(ctx context.Context, pat *domain.PersonalAccessToken) error {
	_, err := r.coll.InsertOne(ctx, pat)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrSecretHashConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert PAT: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's non-revoked PATs, newest first.
func (r *PATRepository) ListByOwner(ctx context.Context, ownerSubject string) ([]*domain.PersonalAccessToken, error) {
	filter := bson.M{"owner_subject": ownerSubject, "is_revoked": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list PATs: %w", err)
	}
	defer cursor.Close(ctx)

	pats := make([]*domain.PersonalAccessToken, 0)
	if err := cursor.All(ctx, &pats); err != nil {
		return nil, fmt.Errorf("failed to decode PATs: %w", err)
	}

	return pats, nil
}

// FindBySecret resolves a raw secret to its live record. Candidates are
// narrowed by the indexed secret prefix; the actual match is a
// constant-time comparison of secret hashes. A miss, a revoked match,
// and an expired match are indistinguishable to the caller.
func (r *PATRepository) FindBySecret(ctx context.Context, rawSecret string) (*domain.PersonalAccessToken, error) {
	candidateHash := patgate.HashSecret(rawSecret)
	filter := bson.M{
		"secret_prefix": patgate.SecretLookupPrefix(rawSecret),
		"is_revoked":    false,
	}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query PATs: %w", err)
	}
	defer cursor.Close(ctx)

	var matched *domain.PersonalAccessToken
	for cursor.Next(ctx) {
		var pat domain.PersonalAccessToken
		if err := cursor.Decode(&pat); err != nil {
			return nil, fmt.Errorf("failed to decode PAT: %w", err)
		}
		if patgate.SecretHashEqual(pat.SecretHash, candidateHash) {
			matched = &pat
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate PATs: %w", err)
	}

	if matched == nil || matched.Expired(time.Now().UTC()) {
		return nil, domain.ErrPATNotFound
	}

	return matched, nil
}

// Revoke marks the owner's PAT as revoked. The filter is owner-scoped so
// a foreign id is indistinguishable from a nonexistent one. Revoking an
// already-revoked PAT matches and succeeds.
func (r *PATRepository) Revoke(ctx context.Context, ownerSubject, id string) error {
	filter := bson.M{"_id": id, "owner_subject": ownerSubject}
	update := bson.M{"$set": bson.M{"is_revoked": true, "updated_at": time.Now().UTC()}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to revoke PAT: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrPATNotFound
	}

	return nil
}

// TouchLastUsed records exchange-time usage. Advisory telemetry: last
// writer wins and callers ignore failures.
func (r *PATRepository) TouchLastUsed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"last_used_at": now, "updated_at": now}}

	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("failed to update last_used_at: %w", err)
	}

	return nil
}

var _ domain.PATRepository = (*PATRepository)(nil)
