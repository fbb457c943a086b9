package sandbox

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/patient360/internal/domain/customer"
)

// ErrInjected is returned by calls chosen to fail by the failure rate.
var ErrInjected = errors.New("sandbox: injected failure")

// ---------------------------------------------------------------------------
// Backend
// ---------------------------------------------------------------------------

// Backend serves generated customers through customer.Backend. Profile,
// Medical and Returns accept either the primary reference or the unified id;
// the other calls take the unified id.
type Backend struct {
	mu        sync.RWMutex
	config    SeedConfig
	byRef     map[string]*Customer
	byUnified map[string]*Customer
	refs      []string

	rngMu sync.Mutex
	rng   *rand.Rand
	log   zerolog.Logger
	now   func() time.Time
}

// NewBackend generates config.Customers customers from config.Seed.
func NewBackend(config SeedConfig, log zerolog.Logger) *Backend {
	b := &Backend{log: log, now: time.Now}
	b.Reseed(config)
	return b
}

// Reseed replaces every generated customer.
func (b *Backend) Reseed(config SeedConfig) {
	if config.Customers <= 0 {
		config.Customers = DefaultSeedConfig().Customers
	}
	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}
	gen := NewDataGenerator(config.Seed, b.now())

	byRef := make(map[string]*Customer, config.Customers)
	byUnified := make(map[string]*Customer, config.Customers)
	refs := make([]string, 0, config.Customers)
	for i := 1; i <= config.Customers; i++ {
		c := gen.GenerateCustomer(i)
		if i == 1 {
			if len(c.Orders) == 0 {
				c.Orders = gen.generateOrders(1)
				c.Metrics = gen.summarize(c.Orders)
			}
			for j := range c.Returns {
				if c.Returns[j].OrderID != nil && *c.Returns[j].OrderID == c.Orders[0].OrderID {
					c.Returns[j].OrderID = customer.Ptr(DemoOrderID)
				}
			}
			c.Orders[0].OrderID = DemoOrderID
		}
		byRef[c.Reference] = &c
		byUnified[c.Profile.UnifiedID] = &c
		refs = append(refs, c.Reference)
	}

	b.mu.Lock()
	b.config = config
	b.byRef, b.byUnified, b.refs = byRef, byUnified, refs
	b.mu.Unlock()

	b.rngMu.Lock()
	b.rng = rand.New(rand.NewSource(config.Seed))
	b.rngMu.Unlock()

	b.log.Info().Int64("seed", config.Seed).Int("customers", config.Customers).Msg("sandbox seeded")
}

// Config returns the configuration of the current generation.
func (b *Backend) Config() SeedConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// References lists the primary references in generation order.
func (b *Backend) References() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.refs...)
}

// Customer returns the generated customer for a primary reference.
func (b *Backend) Customer(ref string) (Customer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.byRef[ref]
	if !ok {
		return Customer{}, false
	}
	return *c, true
}

// call waits for the configured latency and decides whether to fail.
func (b *Backend) call(ctx context.Context, op string) error {
	b.mu.RLock()
	latency, rate := b.config.Latency, b.config.FailureRate
	b.mu.RUnlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	if rate > 0 {
		b.rngMu.Lock()
		fail := b.rng.Float64() < rate
		b.rngMu.Unlock()
		if fail {
			b.log.Debug().Str("op", op).Msg("sandbox injected failure")
			return ErrInjected
		}
	}
	return nil
}

func (b *Backend) lookup(key string, primary bool) *Customer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if primary {
		if c, ok := b.byRef[key]; ok {
			return c
		}
	}
	return b.byUnified[key]
}

func (b *Backend) Profile(ctx context.Context, key string) (*customer.ProfileRecord, error) {
	if err := b.call(ctx, "profile"); err != nil {
		return nil, err
	}
	c := b.lookup(key, true)
	if c == nil {
		return nil, customer.ErrNotFound
	}
	p := c.Profile
	return &p, nil
}

func (b *Backend) Medical(ctx context.Context, key string) (*customer.MedicalRecord, error) {
	if err := b.call(ctx, "medical"); err != nil {
		return nil, err
	}
	c := b.lookup(key, true)
	if c == nil {
		return nil, nil
	}
	m := c.Medical
	return &m, nil
}

func (b *Backend) Metrics(ctx context.Context, unifiedID string) (*customer.MetricsRecord, error) {
	if err := b.call(ctx, "metrics"); err != nil {
		return nil, err
	}
	c := b.lookup(unifiedID, false)
	if c == nil {
		return nil, nil
	}
	m := c.Metrics
	return &m, nil
}

func (b *Backend) Orders(ctx context.Context, unifiedID string) ([]customer.OrderRecord, error) {
	if err := b.call(ctx, "orders"); err != nil {
		return nil, err
	}
	if c := b.lookup(unifiedID, false); c != nil {
		return append([]customer.OrderRecord(nil), c.Orders...), nil
	}
	return nil, nil
}

func (b *Backend) Appointments(ctx context.Context, unifiedID string) ([]customer.AppointmentRecord, error) {
	if err := b.call(ctx, "appointments"); err != nil {
		return nil, err
	}
	if c := b.lookup(unifiedID, false); c != nil {
		return append([]customer.AppointmentRecord(nil), c.Appointments...), nil
	}
	return nil, nil
}

func (b *Backend) Quotes(ctx context.Context, unifiedID string) ([]customer.QuoteRecord, error) {
	if err := b.call(ctx, "quotes"); err != nil {
		return nil, err
	}
	if c := b.lookup(unifiedID, false); c != nil {
		return append([]customer.QuoteRecord(nil), c.Quotes...), nil
	}
	return nil, nil
}

func (b *Backend) Subscriptions(ctx context.Context, unifiedID string) ([]customer.SubscriptionRecord, error) {
	if err := b.call(ctx, "subscriptions"); err != nil {
		return nil, err
	}
	if c := b.lookup(unifiedID, false); c != nil {
		return append([]customer.SubscriptionRecord(nil), c.Subscriptions...), nil
	}
	return nil, nil
}

func (b *Backend) Campaigns(ctx context.Context, unifiedID string) ([]customer.CampaignRecord, error) {
	if err := b.call(ctx, "campaigns"); err != nil {
		return nil, err
	}
	if c := b.lookup(unifiedID, false); c != nil {
		return append([]customer.CampaignRecord(nil), c.Campaigns...), nil
	}
	return nil, nil
}

func (b *Backend) Scores(ctx context.Context, unifiedID string) (*customer.ScoreRecord, error) {
	if err := b.call(ctx, "scores"); err != nil {
		return nil, err
	}
	c := b.lookup(unifiedID, false)
	if c == nil {
		return nil, nil
	}
	s := c.Scores
	return &s, nil
}

func (b *Backend) Returns(ctx context.Context, key string) ([]customer.ReturnRecord, error) {
	if err := b.call(ctx, "returns"); err != nil {
		return nil, err
	}
	if c := b.lookup(key, true); c != nil {
		return append([]customer.ReturnRecord(nil), c.Returns...), nil
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// SeedHandler: Echo HTTP handlers
// ---------------------------------------------------------------------------

// SeedHandler exposes the sandbox customers for discovery and reseeding.
type SeedHandler struct {
	backend *Backend
}

func NewSeedHandler(b *Backend) *SeedHandler {
	return &SeedHandler{backend: b}
}

// RegisterRoutes registers sandbox routes on the given Echo group.
func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/customers", h.handleListCustomers)
	g.GET("/customers/:reference", h.handleGetCustomer)
	g.POST("/seed", h.handleSeed)
}

type customerSummary struct {
	Reference string `json:"reference"`
	UnifiedID string `json:"unified_id"`
	Name      string `json:"name"`
	Orders    int    `json:"orders"`
	Returns   int    `json:"returns"`
}

func (h *SeedHandler) handleListCustomers(c echo.Context) error {
	refs := h.backend.References()
	out := make([]customerSummary, 0, len(refs))
	for _, ref := range refs {
		cust, ok := h.backend.Customer(ref)
		if !ok {
			continue
		}
		out = append(out, customerSummary{
			Reference: ref,
			UnifiedID: cust.Profile.UnifiedID,
			Name:      *cust.Profile.FirstName + " " + *cust.Profile.PaternalSurname,
			Orders:    len(cust.Orders),
			Returns:   len(cust.Returns),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return c.JSON(http.StatusOK, out)
}

func (h *SeedHandler) handleGetCustomer(c echo.Context) error {
	cust, ok := h.backend.Customer(c.Param("reference"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "customer not found")
	}
	return c.JSON(http.StatusOK, cust)
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	cfg := h.backend.Config()

	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "failureRate must be between 0 and 1")
	}
	h.backend.Reseed(cfg)
	return c.JSON(http.StatusOK, h.backend.Config())
}
