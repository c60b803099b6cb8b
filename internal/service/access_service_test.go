package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollections struct {
	byKey  map[string]*domain.Collection
	owners map[string]string
	err    error
	calls  int
}

func (f *fakeCollections) CollectionByFileKey(ctx context.Context, key string) (*domain.Collection, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byKey[key], nil
}

func (f *fakeCollections) IsOwner(ctx context.Context, collectionID, userID string) (bool, error) {
	f.calls++
	return f.owners[collectionID] == userID, nil
}

type fakeOracle struct {
	purchases     map[string]bool
	subscribers   map[string]bool
	purchaseErr   error
	purchaseDelay time.Duration
	subCalls      int
	purchaseCalls int
}

func (f *fakeOracle) HasPurchased(ctx context.Context, userID, collectionID string) (bool, error) {
	f.purchaseCalls++
	if f.purchaseDelay > 0 {
		select {
		case <-time.After(f.purchaseDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if f.purchaseErr != nil {
		return false, f.purchaseErr
	}
	return f.purchases[userID+":"+collectionID], nil
}

func (f *fakeOracle) ActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	f.subCalls++
	if !f.subscribers[userID] {
		return nil, nil
	}
	return &domain.Subscription{Active: true, Plan: "monthly"}, nil
}

func newAccessFixture() (*fakeCollections, *fakeOracle) {
	collections := &fakeCollections{
		byKey: map[string]*domain.Collection{
			"carol/lesson-1.mp4": {ID: "col-1", Type: "course"},
		},
		owners: map[string]string{"col-1": "carol"},
	}
	oracle := &fakeOracle{
		purchases:   map[string]bool{"dave:col-1": true},
		subscribers: map[string]bool{"erin": true, "dave": true},
	}
	return collections, oracle
}

func TestAccessService_Cascade(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		key    string
		allow  bool
		reason domain.AccessReason
	}{
		{"owner", "carol", "carol/lesson-1.mp4", true, domain.ReasonOwner},
		{"purchaser wins over subscriber", "dave", "carol/lesson-1.mp4", true, domain.ReasonPurchaser},
		{"subscriber", "erin", "carol/lesson-1.mp4", true, domain.ReasonSubscriber},
		{"no collection subscriber", "erin", "carol/loose.png", true, domain.ReasonSubscriber},
		{"denied", "frank", "carol/lesson-1.mp4", false, domain.ReasonSubscriptionRequired},
		{"anonymous", "", "carol/lesson-1.mp4", false, domain.ReasonSubscriptionRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collections, oracle := newAccessFixture()
			svc := NewAccessService(collections, oracle, time.Second)

			grant := svc.Decide(context.Background(), tt.user, tt.key)
			assert.Equal(t, tt.allow, grant.Allowed)
			assert.Equal(t, tt.reason, grant.Reason)
		})
	}
}

func TestAccessService_OwnerShortCircuits(t *testing.T) {
	collections, oracle := newAccessFixture()
	svc := NewAccessService(collections, oracle, time.Second)

	grant := svc.Decide(context.Background(), "carol", "carol/lesson-1.mp4")
	require.True(t, grant.Allowed)
	assert.Equal(t, "col-1", grant.CollectionID)
	assert.Zero(t, oracle.purchaseCalls)
	assert.Zero(t, oracle.subCalls)
}

func TestAccessService_PurchaseTimeoutFallsThrough(t *testing.T) {
	collections, oracle := newAccessFixture()
	oracle.purchaseDelay = time.Second
	svc := NewAccessService(collections, oracle, 50*time.Millisecond)

	start := time.Now()
	grant := svc.Decide(context.Background(), "erin", "carol/lesson-1.mp4")
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.True(t, grant.Allowed)
	assert.Equal(t, domain.ReasonSubscriber, grant.Reason)
	assert.Equal(t, 1, oracle.subCalls)
}

func TestAccessService_FailuresOnlyDeny(t *testing.T) {
	collections, oracle := newAccessFixture()
	oracle.purchaseErr = errors.New("billing down")
	svc := NewAccessService(collections, oracle, time.Second)

	grant := svc.Decide(context.Background(), "frank", "carol/lesson-1.mp4")
	assert.False(t, grant.Allowed)

	collections.err = errors.New("db down")
	grant = svc.Decide(context.Background(), "erin", "carol/lesson-1.mp4")
	assert.True(t, grant.Allowed)
	assert.Equal(t, domain.ReasonSubscriber, grant.Reason)
	assert.Empty(t, grant.CollectionID)
}

func TestAccessService_Authorize(t *testing.T) {
	collections, oracle := newAccessFixture()
	svc := NewAccessService(collections, oracle, time.Second)

	_, err := svc.Authorize(context.Background(), "frank", "carol/lesson-1.mp4")
	assert.Equal(t, domain.KindAccessDenied, domain.KindOf(err))

	grant, err := svc.Authorize(context.Background(), "carol", "carol/lesson-1.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonOwner, grant.Reason)
}
