package customer

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the backend has no record for the key.
var ErrNotFound = errors.New("customer record not found")

// Backend is the set of data services the 360 dashboard reads from. Every
// operation is keyed by a subject identifier: Profile, Medical and Returns
// accept the primary record reference (or the unified id in direct mode),
// the rest accept the unified id produced by Profile.
type Backend interface {
	Profile(ctx context.Context, key string) (*ProfileRecord, error)
	Metrics(ctx context.Context, unifiedID string) (*MetricsRecord, error)
	Medical(ctx context.Context, key string) (*MedicalRecord, error)
	Orders(ctx context.Context, unifiedID string) ([]OrderRecord, error)
	Appointments(ctx context.Context, unifiedID string) ([]AppointmentRecord, error)
	Quotes(ctx context.Context, unifiedID string) ([]QuoteRecord, error)
	Subscriptions(ctx context.Context, unifiedID string) ([]SubscriptionRecord, error)
	Campaigns(ctx context.Context, unifiedID string) ([]CampaignRecord, error)
	Scores(ctx context.Context, unifiedID string) (*ScoreRecord, error)
	Returns(ctx context.Context, key string) ([]ReturnRecord, error)
}

// Ptr returns a pointer to v. Handy for building records in fixtures.
func Ptr[T any](v T) *T { return &v }
