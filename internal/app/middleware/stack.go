package middleware

import (
	"log/slog"
	"time"

	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/app/queries"
	"rentme-reservations/internal/app/uow"
)

// Stack assembles the standard pipeline. Nil parts are skipped.
//
// Commands pass, outermost first: validation, authorization, logging, outbox
// wake, per-property serialization, idempotent replay, optimistic retry and
// finally the transaction around the handler.
type Stack struct {
	Validator   Validator
	Authorizer  Authorizer
	Logger      *slog.Logger
	Waker       outbox.Waker
	Locker      policies.PropertyLocker
	Scope       ScopeResolver
	LockBackoff []time.Duration
	Idempotency IdempotencyStore
	IdemTTL     time.Duration
	Retryable   func(error) bool
	TxBackoff   []time.Duration
	UoW         uow.UoWFactory
	Now         func() time.Time
}

func (s Stack) Commands(base commands.Bus) commands.Bus {
	var mws []CommandMiddleware
	if s.Validator != nil {
		mws = append(mws, Validation(s.Validator))
	}
	if s.Authorizer != nil {
		mws = append(mws, Authorization(s.Authorizer))
	}
	if s.Logger != nil {
		mws = append(mws, Logging(s.Logger))
	}
	if s.Waker != nil {
		mws = append(mws, OutboxWake(s.Waker))
	}
	if s.Locker != nil {
		mws = append(mws, Serialize(s.Locker, s.Scope, s.LockBackoff))
	}
	if s.Idempotency != nil {
		mws = append(mws, Idempotency(s.Idempotency, IdempotencyOptions{TTL: s.IdemTTL, Logger: s.Logger, Now: s.Now}))
	}
	if s.Retryable != nil {
		mws = append(mws, Retry(s.TxBackoff, s.Retryable))
	}
	if s.UoW != nil {
		mws = append(mws, Transaction(s.UoW, nil))
	}
	return ChainCommands(base, mws...)
}

func (s Stack) Queries(base queries.Bus) queries.Bus {
	var mws []QueryMiddleware
	if s.Validator != nil {
		mws = append(mws, QueryValidation(s.Validator))
	}
	if s.Authorizer != nil {
		mws = append(mws, QueryAuthorization(s.Authorizer))
	}
	if s.Logger != nil {
		mws = append(mws, QueryLogging(s.Logger))
	}
	return ChainQueries(base, mws...)
}
