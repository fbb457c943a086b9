package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ehr/patient360/internal/domain/customer"
)

// FeedName identifies one backend data feed.
type FeedName string

const (
	FeedProfile       FeedName = "profile"
	FeedMedical       FeedName = "medical"
	FeedMetrics       FeedName = "metrics"
	FeedOrders        FeedName = "orders"
	FeedAppointments  FeedName = "appointments"
	FeedQuotes        FeedName = "quotes"
	FeedSubscriptions FeedName = "subscriptions"
	FeedCampaigns     FeedName = "campaigns"
	FeedScores        FeedName = "scores"
	FeedReturns       FeedName = "returns"
)

// KeyKind says which subject identifier a feed is keyed on.
type KeyKind int

const (
	// KeyPrimary feeds take the reference the dashboard was opened with.
	KeyPrimary KeyKind = iota
	// KeyUnified feeds wait for the unified id resolved by the profile feed.
	KeyUnified
)

func (k KeyKind) String() string {
	if k == KeyUnified {
		return "unified"
	}
	return "primary"
}

// mergeContext is what a merge function may read besides its payload.
type mergeContext struct {
	format    *Formatter
	expansion ExpansionPolicy
}

// FeedSpec declares a feed: its key, the fragment it owns, how to fetch
// the raw record and how to merge it into the model.
type FeedSpec struct {
	Name  FeedName
	Key   KeyKind
	Owns  Fragment
	fetch func(ctx context.Context, b customer.Backend, key string) (any, error)
	merge func(m *Model, raw any, mc mergeContext)
}

func feed[R any](
	name FeedName, key KeyKind, owns Fragment,
	fetch func(customer.Backend, context.Context, string) (R, error),
	merge func(m *Model, raw R, mc mergeContext),
) FeedSpec {
	return FeedSpec{
		Name: name,
		Key:  key,
		Owns: owns,
		fetch: func(ctx context.Context, b customer.Backend, k string) (any, error) {
			return fetch(b, ctx, k)
		},
		merge: func(m *Model, raw any, mc mergeContext) {
			merge(m, raw.(R), mc)
		},
	}
}

var registry = []FeedSpec{
	feed(FeedProfile, KeyPrimary, FragmentProfile, customer.Backend.Profile,
		func(m *Model, r *customer.ProfileRecord, mc mergeContext) {
			m.Profile = normalizeProfile(r, mc.format)
		}),
	feed(FeedMedical, KeyPrimary, FragmentMedical, customer.Backend.Medical,
		func(m *Model, r *customer.MedicalRecord, mc mergeContext) {
			m.Medical = normalizeMedical(r, mc.format)
		}),
	feed(FeedMetrics, KeyUnified, FragmentMetrics, customer.Backend.Metrics,
		func(m *Model, r *customer.MetricsRecord, mc mergeContext) {
			m.Metrics = normalizeMetrics(r, mc.format)
		}),
	feed(FeedOrders, KeyUnified, FragmentOrders, customer.Backend.Orders,
		func(m *Model, r []customer.OrderRecord, mc mergeContext) {
			next := normalizeOrders(r, mc.format)
			if mc.expansion == ExpansionPreserve {
				carry(m.Orders, next, orderKey, orderUI)
			}
			m.Orders = next
		}),
	feed(FeedAppointments, KeyUnified, FragmentAppointments, customer.Backend.Appointments,
		func(m *Model, r []customer.AppointmentRecord, mc mergeContext) {
			m.Appointments = normalizeAppointments(r, mc.format)
		}),
	feed(FeedQuotes, KeyUnified, FragmentQuotes, customer.Backend.Quotes,
		func(m *Model, r []customer.QuoteRecord, mc mergeContext) {
			next := normalizeQuotes(r, mc.format)
			if mc.expansion == ExpansionPreserve {
				carry(m.Quotes, next, quoteKey, quoteUI)
			}
			m.Quotes = next
		}),
	feed(FeedSubscriptions, KeyUnified, FragmentSubscriptions, customer.Backend.Subscriptions,
		func(m *Model, r []customer.SubscriptionRecord, mc mergeContext) {
			next := normalizeSubscriptions(r, mc.format)
			if mc.expansion == ExpansionPreserve {
				carry(m.Subscriptions, next, subscriptionKey, subscriptionUI)
			}
			m.Subscriptions = next
		}),
	feed(FeedCampaigns, KeyUnified, FragmentCampaigns, customer.Backend.Campaigns,
		func(m *Model, r []customer.CampaignRecord, mc mergeContext) {
			next := normalizeCampaigns(r, mc.format)
			if mc.expansion == ExpansionPreserve {
				carryCampaigns(m.Campaigns, next)
			}
			m.Campaigns = next
		}),
	feed(FeedScores, KeyUnified, FragmentScores, customer.Backend.Scores,
		func(m *Model, r *customer.ScoreRecord, _ mergeContext) {
			m.Scores = normalizeScores(r)
		}),
	feed(FeedReturns, KeyPrimary, FragmentReturns, customer.Backend.Returns,
		func(m *Model, r []customer.ReturnRecord, mc mergeContext) {
			next := normalizeReturns(r, mc.format)
			if mc.expansion == ExpansionPreserve {
				carry(m.Returns, next, returnKey, returnUI)
			}
			m.Returns = next
		}),
}

// AllFeeds returns the names of every known feed in issue order.
func AllFeeds() []FeedName {
	names := make([]FeedName, len(registry))
	for i, s := range registry {
		names[i] = s.Name
	}
	return names
}

// ParseFeeds parses a comma-separated feed list. "all" or an empty string
// selects every feed.
func ParseFeeds(s string) ([]FeedName, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return AllFeeds(), nil
	}
	var out []FeedName
	for _, part := range strings.Split(s, ",") {
		name := FeedName(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if _, ok := lookupFeed(name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeed, name)
		}
		out = append(out, name)
	}
	return out, nil
}

func lookupFeed(name FeedName) (FeedSpec, bool) {
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return FeedSpec{}, false
}

// selectFeeds resolves enabled feed names to specs and checks that no two
// feeds own the same fragment.
func selectFeeds(names []FeedName) ([]FeedSpec, error) {
	if names == nil {
		names = AllFeeds()
	}
	specs := make([]FeedSpec, 0, len(names))
	for _, n := range names {
		s, ok := lookupFeed(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeed, n)
		}
		specs = append(specs, s)
	}
	return specs, checkOwnership(specs)
}

func checkOwnership(specs []FeedSpec) error {
	owner := make(map[Fragment]FeedName, len(specs))
	for _, s := range specs {
		if prev, ok := owner[s.Owns]; ok {
			return fmt.Errorf("%w: %s claimed by %s and %s", ErrFragmentOwned, s.Owns, prev, s.Name)
		}
		owner[s.Owns] = s.Name
	}
	return nil
}

// FeedState is the lifecycle of a feed's latest fetch.
type FeedState string

const (
	FeedIdle    FeedState = "idle"
	FeedLoading FeedState = "loading"
	FeedOK      FeedState = "ok"
	FeedFailed  FeedState = "failed"
)

// FeedStatus reports a feed binding to the view.
type FeedStatus struct {
	Feed       FeedName   `json:"feed"`
	Key        string     `json:"key"`
	Param      string     `json:"param"`
	Generation uint64     `json:"generation"`
	State      FeedState  `json:"state"`
	Error      string     `json:"error,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// binding ties a feed to its current parameter. generation increases every
// time the parameter changes or the fetch is re-issued; only a completion
// carrying the current generation may merge.
type binding struct {
	spec       FeedSpec
	param      string
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	state      FeedState
	err        string
	updatedAt  *time.Time
}

func (b *binding) status() FeedStatus {
	return FeedStatus{
		Feed:       b.spec.Name,
		Key:        b.spec.Key.String(),
		Param:      b.param,
		Generation: b.generation,
		State:      b.state,
		Error:      b.err,
		UpdatedAt:  b.updatedAt,
	}
}

// invalidate abandons whatever fetch is in flight for the binding.
func (b *binding) invalidate() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.generation++
}

// unbind invalidates the binding and forgets its parameter.
func (b *binding) unbind() {
	b.invalidate()
	b.param = ""
	b.done = nil
	b.state = FeedIdle
	b.err = ""
	b.updatedAt = nil
}

// resetFragment puts one fragment of m back to its value in def.
func resetFragment(m, def *Model, f Fragment) {
	switch f {
	case FragmentProfile:
		m.Profile = def.Profile
	case FragmentMetrics:
		m.Metrics = def.Metrics
	case FragmentMedical:
		m.Medical = def.Medical
	case FragmentOrders:
		m.Orders = def.Orders
	case FragmentAppointments:
		m.Appointments = def.Appointments
	case FragmentQuotes:
		m.Quotes = def.Quotes
	case FragmentSubscriptions:
		m.Subscriptions = def.Subscriptions
	case FragmentCampaigns:
		m.Campaigns = def.Campaigns
	case FragmentScores:
		m.Scores = def.Scores
	case FragmentReturns:
		m.Returns = def.Returns
	}
}
