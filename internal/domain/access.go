package domain

// AccessReason explains an access decision.
type AccessReason string

const (
	ReasonOwner                AccessReason = "owner"
	ReasonPurchaser            AccessReason = "purchaser"
	ReasonSubscriber           AccessReason = "subscriber"
	ReasonSubscriptionRequired AccessReason = "subscription_required"
)

var accessReasonLabels = map[AccessReason]string{
	ReasonOwner:                "Owner",
	ReasonPurchaser:            "Purchased",
	ReasonSubscriber:           "Active subscription",
	ReasonSubscriptionRequired: "Subscription required",
}

// AccessGrant is computed per request and never cached.
type AccessGrant struct {
	Allowed      bool         `json:"allowed"`
	Reason       AccessReason `json:"reason"`
	CollectionID string       `json:"collection_id,omitempty"`
}

// Collection is the externally owned grouping ("bar") a file belongs to.
type Collection struct {
	ID   string `json:"id" db:"id"`
	Type string `json:"type" db:"type"`
}

// Subscription is the oracle's view of a user's plan.
type Subscription struct {
	Active    bool   `json:"active"`
	Plan      string `json:"plan,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// Identity is the resolved caller.
type Identity struct {
	ID       string `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
}

// Allow builds a positive grant.
func Allow(reason AccessReason, collectionID string) AccessGrant {
	return AccessGrant{Allowed: true, Reason: reason, CollectionID: collectionID}
}

// Deny builds the terminal negative grant.
func Deny(collectionID string) AccessGrant {
	return AccessGrant{Allowed: false, Reason: ReasonSubscriptionRequired, CollectionID: collectionID}
}

// AccessReasonLabel returns a human-readable label for a reason.
func AccessReasonLabel(reason AccessReason) string {
	if label, ok := accessReasonLabels[reason]; ok {
		return label
	}

	return "Denied"
}

