// Package idempotency implements the Idempotency Store (spec §4.C):
// reserve-once semantics over a message_id so a redelivered or retried
// ingest never processes the same message twice.
package idempotency

import (
	"context"
	"time"

	"github.com/flare-im/message-core/pkg/cache"
	"github.com/flare-im/message-core/pkg/errors"
	"github.com/flare-im/message-core/pkg/logger"
)

// DefaultTTL matches the idempotency window spec §6 assumes for
// idem:msg:{message_id} keys.
const DefaultTTL = 24 * time.Hour

// Store reserves message IDs using the cache's atomic Incr: the first
// caller to reserve a given ID sees the counter go from 0 to 1 and is
// told "fresh"; every later caller sees a value above 1 and is told
// "duplicate". No SETNX primitive is required.
type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

// New builds a Store. A zero ttl uses DefaultTTL.
func New(c cache.Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: c, ttl: ttl}
}

func reserveKey(messageID string) string {
	return "idem:msg:" + messageID
}

func dispatchKey(messageID, userID string) string {
	return "dispatch:" + messageID + ":" + userID
}

// Reserve attempts to claim messageID. It returns true if this call is the
// first reservation (fresh) and false if messageID was already reserved
// (duplicate).
func (s *Store) Reserve(ctx context.Context, messageID string) (fresh bool, err error) {
	if messageID == "" {
		return false, errors.New(errors.CodeInvalidArgument, "message_id is required", nil)
	}

	count, err := s.cache.Incr(ctx, reserveKey(messageID), 1)
	if err != nil {
		return false, errors.Wrap(err, "failed to reserve message id")
	}
	if count == 1 {
		// Incr carries no TTL, so the reservation window is applied to the
		// freshly created key here; on failure the key keeps no such TTL.
		if err := s.cache.Set(ctx, reserveKey(messageID), count, s.ttl); err != nil {
			logger.L().WarnContext(ctx, "failed to set reservation ttl", "message_id", messageID, "error", err)
		}
	}
	return count == 1, nil
}

// ReserveDispatch is the per-recipient variant used by the Dispatcher to
// avoid re-dispatching a message to a user it has already handed to the
// Worker, keyed as dispatch:{message_id}:{user_id} per spec §6.
func (s *Store) ReserveDispatch(ctx context.Context, messageID, userID string) (fresh bool, err error) {
	if messageID == "" || userID == "" {
		return false, errors.New(errors.CodeInvalidArgument, "message_id and user_id are required", nil)
	}

	count, err := s.cache.Incr(ctx, dispatchKey(messageID, userID), 1)
	if err != nil {
		return false, errors.Wrap(err, "failed to reserve dispatch")
	}
	return count == 1, nil
}

// ReserveStorage is the storage-side dedupe marker G uses in step 1 of its
// pipeline, kept in a separate key space from Reserve's ingest-side
// reservation since WAL replay can re-present an id G has already
// persisted well after F's own reservation window.
func (s *Store) ReserveStorage(ctx context.Context, messageID string) (fresh bool, err error) {
	if messageID == "" {
		return false, errors.New(errors.CodeInvalidArgument, "message_id is required", nil)
	}

	count, err := s.cache.Incr(ctx, storageKey(messageID), 1)
	if err != nil {
		return false, errors.Wrap(err, "failed to reserve storage marker")
	}
	return count == 1, nil
}

func storageKey(messageID string) string {
	return "storage:dedupe:" + messageID
}

// StoreOutcome records the durable outcome of processing messageID so a
// duplicate reservation can be answered with the original result instead
// of reprocessing.
func (s *Store) StoreOutcome(ctx context.Context, messageID string, outcome interface{}) error {
	if err := s.cache.Set(ctx, outcomeKey(messageID), outcome, s.ttl); err != nil {
		return errors.Wrap(err, "failed to store idempotent outcome")
	}
	return nil
}

// Outcome retrieves a previously stored outcome for messageID, unmarshalling
// into dest. Callers should only invoke this after Reserve reports a
// duplicate.
func (s *Store) Outcome(ctx context.Context, messageID string, dest interface{}) error {
	if err := s.cache.Get(ctx, outcomeKey(messageID), dest); err != nil {
		return errors.Wrap(err, "failed to load idempotent outcome")
	}
	return nil
}

func outcomeKey(messageID string) string {
	return "idem:outcome:" + messageID
}
