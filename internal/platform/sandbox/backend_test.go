package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/patient360/internal/domain/customer"
	"github.com/ehr/patient360/internal/domain/dashboard"
)

func newTestBackend(t *testing.T, cfg SeedConfig) *Backend {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.Customers == 0 {
		cfg.Customers = 5
	}
	return NewBackend(cfg, zerolog.Nop())
}

// ---------------------------------------------------------------------------
// Backend
// ---------------------------------------------------------------------------

func TestBackend_DemoCustomer(t *testing.T) {
	b := newTestBackend(t, SeedConfig{})
	ctx := context.Background()

	p, err := b.Profile(ctx, DemoReference)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	orders, err := b.Orders(ctx, p.UnifiedID)
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if len(orders) == 0 || orders[0].OrderID != DemoOrderID {
		t.Fatalf("expected demo order first, got %+v", orders)
	}
}

func TestBackend_ProfileByUnifiedID(t *testing.T) {
	b := newTestBackend(t, SeedConfig{})
	ctx := context.Background()

	byRef, err := b.Profile(ctx, "REF-0002")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	byID, err := b.Profile(ctx, byRef.UnifiedID)
	if err != nil {
		t.Fatalf("Profile by unified id: %v", err)
	}
	if byID.UnifiedID != byRef.UnifiedID {
		t.Fatalf("expected same customer, got %s and %s", byRef.UnifiedID, byID.UnifiedID)
	}
	if _, err := b.Profile(ctx, "REF-9999"); !errors.Is(err, customer.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Unified feeds do not resolve primary references.
	if orders, err := b.Orders(ctx, "REF-0002"); err != nil || orders != nil {
		t.Fatalf("expected no orders for a primary reference, got %v, %v", orders, err)
	}
}

func TestBackend_ReturnsByReferenceOrUnifiedID(t *testing.T) {
	b := newTestBackend(t, SeedConfig{Customers: 30})
	ctx := context.Background()

	var ref string
	var want Customer
	for _, r := range b.References() {
		if c, _ := b.Customer(r); len(c.Returns) > 0 {
			ref, want = r, c
			break
		}
	}
	if ref == "" {
		t.Fatal("expected a customer with returns")
	}
	byRef, err := b.Returns(ctx, ref)
	if err != nil {
		t.Fatalf("Returns: %v", err)
	}
	byID, err := b.Returns(ctx, want.Profile.UnifiedID)
	if err != nil {
		t.Fatalf("Returns by unified id: %v", err)
	}
	if len(byRef) != len(want.Returns) || len(byID) != len(want.Returns) || byRef[0].ReturnID != want.Returns[0].ReturnID {
		t.Fatalf("expected %d returns both ways, got %d and %d", len(want.Returns), len(byRef), len(byID))
	}
	if got, err := b.Returns(ctx, "REF-9999"); err != nil || got != nil {
		t.Fatalf("expected no returns for an unknown reference, got %v, %v", got, err)
	}
}

func TestBackend_SameSeedSameCustomers(t *testing.T) {
	a := newTestBackend(t, SeedConfig{Seed: 9})
	b := newTestBackend(t, SeedConfig{Seed: 9})
	for _, ref := range a.References() {
		ca, _ := a.Customer(ref)
		cb, ok := b.Customer(ref)
		if !ok || ca.Profile.UnifiedID != cb.Profile.UnifiedID || len(ca.Orders) != len(cb.Orders) {
			t.Fatalf("customer %s differs between backends", ref)
		}
	}
}

func TestBackend_FailureInjection(t *testing.T) {
	b := newTestBackend(t, SeedConfig{FailureRate: 1})
	if _, err := b.Scores(context.Background(), "anything"); !errors.Is(err, ErrInjected) {
		t.Fatalf("expected ErrInjected, got %v", err)
	}
}

func TestBackend_LatencyHonoursContext(t *testing.T) {
	b := newTestBackend(t, SeedConfig{Latency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := b.Campaigns(ctx, "anything")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("call did not return when the context expired")
	}
}

func TestBackend_Reseed(t *testing.T) {
	b := newTestBackend(t, SeedConfig{Customers: 3})
	if n := len(b.References()); n != 3 {
		t.Fatalf("expected 3 customers, got %d", n)
	}
	b.Reseed(SeedConfig{Seed: 5, Customers: 8})
	if n := len(b.References()); n != 8 {
		t.Fatalf("expected 8 customers after reseed, got %d", n)
	}
	if b.Config().Seed != 5 {
		t.Fatalf("expected seed 5, got %d", b.Config().Seed)
	}
}

// The sandbox must drive the dashboard end to end.
func TestBackend_DrivesDashboard(t *testing.T) {
	b := newTestBackend(t, SeedConfig{})
	e, err := dashboard.New(b, dashboard.Options{})
	if err != nil {
		t.Fatalf("dashboard.New: %v", err)
	}
	defer e.Close()

	if err := e.SetSubject(dashboard.SubjectRef{Reference: DemoReference}); err != nil {
		t.Fatalf("SetSubject: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	snap := e.Snapshot()
	want, _ := b.Customer(DemoReference)
	if snap.UnifiedID != want.Profile.UnifiedID {
		t.Fatalf("expected unified id %s, got %s", want.Profile.UnifiedID, snap.UnifiedID)
	}
	if len(snap.Model.Orders) != len(want.Orders) || snap.Model.Orders[0].ID != DemoOrderID {
		t.Fatalf("unexpected orders in snapshot: %d", len(snap.Model.Orders))
	}
	for _, f := range snap.Feeds {
		if f.State != dashboard.FeedOK {
			t.Errorf("feed %s in state %s", f.Feed, f.State)
		}
	}
}

// ---------------------------------------------------------------------------
// SeedHandler
// ---------------------------------------------------------------------------

func TestSeedHandler_Routes(t *testing.T) {
	b := newTestBackend(t, SeedConfig{Customers: 4})
	e := echo.New()
	NewSeedHandler(b).RegisterRoutes(e.Group("/sandbox"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sandbox/customers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []customerSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 4 || list[0].Reference != DemoReference {
		t.Fatalf("unexpected customers %+v", list)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sandbox/customers/REF-0404", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/sandbox/seed", strings.NewReader(`{"seed":77,"customers":2}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if n := len(b.References()); n != 2 {
		t.Fatalf("expected 2 customers after seeding, got %d", n)
	}

	req = httptest.NewRequest(http.MethodPost, "/sandbox/seed", strings.NewReader(`{"failureRate":2}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad failure rate, got %d", rec.Code)
	}
}
