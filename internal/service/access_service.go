package service

import (
	"context"
	"time"

	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/andresuchdata/mediastore/internal/metrics"
	"github.com/rs/zerolog/log"
)

const defaultAccessCallTimeout = 2 * time.Second

// CollectionLookup resolves which collection a file belongs to and who owns it.
// CollectionByFileKey returns nil, nil when the file is not in any collection.
type CollectionLookup interface {
	CollectionByFileKey(ctx context.Context, key string) (*domain.Collection, error)
	IsOwner(ctx context.Context, collectionID, userID string) (bool, error)
}

// PurchaseOracle answers purchase and subscription questions.
type PurchaseOracle interface {
	HasPurchased(ctx context.Context, userID, collectionID string) (bool, error)
	ActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
}

// AccessService decides whether a user may read private content. The checks
// run in a fixed order and stop at the first match:
//
//	owner -> purchaser -> subscriber -> deny
//
// A collaborator failure is treated as "no" for that step, so an outage can
// only ever deny.
type AccessService struct {
	collections CollectionLookup
	oracle      PurchaseOracle
	callTimeout time.Duration
}

func NewAccessService(collections CollectionLookup, oracle PurchaseOracle, callTimeout time.Duration) *AccessService {
	if callTimeout <= 0 {
		callTimeout = defaultAccessCallTimeout
	}
	return &AccessService{
		collections: collections,
		oracle:      oracle,
		callTimeout: callTimeout,
	}
}

// Decide evaluates the cascade for userID reading key.
func (s *AccessService) Decide(ctx context.Context, userID, key string) domain.AccessGrant {
	grant := s.decide(ctx, userID, key)
	metrics.AccessDecisions.WithLabelValues(string(grant.Reason)).Inc()
	log.Debug().
		Str("user_id", userID).
		Str("key", key).
		Bool("allowed", grant.Allowed).
		Str("reason", domain.AccessReasonLabel(grant.Reason)).
		Msg("access: decision")
	return grant
}

// Authorize returns an AccessDenied error when the cascade denies.
func (s *AccessService) Authorize(ctx context.Context, userID, key string) (domain.AccessGrant, error) {
	grant := s.Decide(ctx, userID, key)
	if !grant.Allowed {
		return grant, domain.NewError(domain.KindAccessDenied, "an active subscription is required to view this content")
	}
	return grant, nil
}

func (s *AccessService) decide(ctx context.Context, userID, key string) domain.AccessGrant {
	if userID == "" {
		return domain.Deny("")
	}

	collection := s.collectionFor(ctx, key)
	if collection != nil {
		if s.check(ctx, "owner", func(ctx context.Context) (bool, error) {
			return s.collections.IsOwner(ctx, collection.ID, userID)
		}) {
			return domain.Allow(domain.ReasonOwner, collection.ID)
		}

		if s.check(ctx, "purchase", func(ctx context.Context) (bool, error) {
			return s.oracle.HasPurchased(ctx, userID, collection.ID)
		}) {
			return domain.Allow(domain.ReasonPurchaser, collection.ID)
		}
	}

	collectionID := ""
	if collection != nil {
		collectionID = collection.ID
	}
	if s.check(ctx, "subscription", func(ctx context.Context) (bool, error) {
		sub, err := s.oracle.ActiveSubscription(ctx, userID)
		if err != nil || sub == nil {
			return false, err
		}
		return sub.Active, nil
	}) {
		return domain.Allow(domain.ReasonSubscriber, collectionID)
	}
	return domain.Deny(collectionID)
}

func (s *AccessService) collectionFor(ctx context.Context, key string) *domain.Collection {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	collection, err := s.collections.CollectionByFileKey(callCtx, key)
	if err != nil {
		metrics.AccessDegraded.WithLabelValues("collection").Inc()
		log.Warn().Err(err).Str("key", key).Msg("access: collection lookup failed, treating as subscriber content")
		return nil
	}
	return collection
}

// check runs one step with its own timeout; errors count as "no".
func (s *AccessService) check(ctx context.Context, step string, fn func(context.Context) (bool, error)) bool {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	ok, err := fn(callCtx)
	if err != nil {
		metrics.AccessDegraded.WithLabelValues(step).Inc()
		log.Warn().Err(err).Str("step", step).Msg("access: check failed, defaulting to no")
		return false
	}
	return ok
}
