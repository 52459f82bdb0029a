package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IdempotencyServiceImpl implements ports.IdempotencyService.
//
// The guard closes the double-execution race with a create-if-absent claim:
// the first request writes a pending record before running its mutation, so
// a concurrent request with the same key cannot also win. Losers poll for
// the winner's published result instead of executing the mutation again.
type IdempotencyServiceImpl struct {
	store        ports.IdempotencyStore
	pendingTTL   time.Duration
	waitInterval time.Duration
	maxWait      time.Duration
	log          zerolog.Logger
}

// NewIdempotencyService creates a new IdempotencyServiceImpl. pendingTTL
// bounds how long a crashed winner can hold a key; waitInterval and maxWait
// control the losers' polling.
func NewIdempotencyService(
	store ports.IdempotencyStore,
	pendingTTL time.Duration,
	waitInterval time.Duration,
	maxWait time.Duration,
	log zerolog.Logger,
) *IdempotencyServiceImpl {
	return &IdempotencyServiceImpl{
		store:        store,
		pendingTTL:   pendingTTL,
		waitInterval: waitInterval,
		maxWait:      maxWait,
		log:          log,
	}
}

// Acquire resolves the key to either a cached result or an exclusive claim.
// Exactly one of the three outcomes holds on success: cached != nil (a
// previous execution's result, return it verbatim), acquired == true (this
// caller must run the mutation and finish with Complete or Release), or an
// error.
func (s *IdempotencyServiceImpl) Acquire(ctx context.Context, key uuid.UUID) (*domain.Wallet, bool, error) {
	deadline := time.Now().Add(s.maxWait)

	for {
		record, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("get idempotency record: %w", err))
		}

		now := time.Now().UTC()
		switch {
		case record == nil:
			claim := &domain.IdempotencyRecord{Key: key, ExpiresAt: now.Add(s.pendingTTL)}
			won, err := s.store.PutIfAbsent(ctx, claim, s.pendingTTL)
			if err != nil {
				return nil, false, apperror.InternalError(fmt.Errorf("claim idempotency key: %w", err))
			}
			if won {
				return nil, true, nil
			}
			// Another request claimed the key between Get and PutIfAbsent.
			s.log.Debug().Str("key", key.String()).Msg("lost idempotency claim race")

		case record.Expired(now):
			// Lazy eviction: stale records are purged when next observed.
			s.log.Warn().Str("key", key.String()).Msg("idempotency record expired, deleting")
			if err := s.store.Delete(ctx, key); err != nil {
				return nil, false, apperror.InternalError(fmt.Errorf("delete expired record: %w", err))
			}
			continue

		case !record.Pending():
			wallet, err := unmarshalWallet(record.Response)
			if err != nil {
				return nil, false, err
			}
			s.log.Info().Str("key", key.String()).Msg("returning cached response for idempotency key")
			return wallet, false, nil
		}

		// Key is held by an in-flight request: wait for its result.
		if time.Now().After(deadline) {
			return nil, false, apperror.ErrRequestInFlight()
		}
		select {
		case <-ctx.Done():
			return nil, false, apperror.InternalError(ctx.Err())
		case <-time.After(s.waitInterval):
		}
	}
}

// Complete publishes the successful result under the key, replacing the
// pending claim. The record expires 24 hours after completion.
func (s *IdempotencyServiceImpl) Complete(ctx context.Context, key uuid.UUID, wallet *domain.Wallet) error {
	raw, err := json.Marshal(wallet)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal cached response: %w", err))
	}

	record := &domain.IdempotencyRecord{
		Key:       key,
		Response:  raw,
		ExpiresAt: time.Now().UTC().Add(domain.RecordTTL),
	}
	if err := s.store.Put(ctx, record); err != nil {
		return apperror.InternalError(fmt.Errorf("store idempotency record: %w", err))
	}
	return nil
}

// Release abandons a claim without publishing a result. Used when the
// guarded operation fails or yields not-found: such outcomes are never
// cached, and the key must stay usable for a later attempt.
func (s *IdempotencyServiceImpl) Release(ctx context.Context, key uuid.UUID) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return apperror.InternalError(fmt.Errorf("release idempotency key: %w", err))
	}
	return nil
}

func unmarshalWallet(data []byte) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	if err := json.Unmarshal(data, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached wallet: %w", err))
	}
	return wallet, nil
}
