package dashboard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ehr/patient360/internal/domain/customer"
)

// =========== Mock Backend ===========

// mockBackend serves fixed records per key. A gate blocks calls for a
// "method:key" (or just "method") until it is released, so tests control
// completion order.
type mockBackend struct {
	mu            sync.Mutex
	profiles      map[string]*customer.ProfileRecord
	medical       map[string]*customer.MedicalRecord
	metrics       map[string]*customer.MetricsRecord
	orders        map[string][]customer.OrderRecord
	appointments  map[string][]customer.AppointmentRecord
	quotes        map[string][]customer.QuoteRecord
	subscriptions map[string][]customer.SubscriptionRecord
	campaigns     map[string][]customer.CampaignRecord
	scores        map[string]*customer.ScoreRecord
	returns       map[string][]customer.ReturnRecord
	fail          map[string]error
	gates         map[string]chan struct{}
	calls         map[string][]string
	// ignoreCancel makes gated calls outlive their context, like a
	// collaborator without cancellation support.
	ignoreCancel bool
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		profiles:      make(map[string]*customer.ProfileRecord),
		medical:       make(map[string]*customer.MedicalRecord),
		metrics:       make(map[string]*customer.MetricsRecord),
		orders:        make(map[string][]customer.OrderRecord),
		appointments:  make(map[string][]customer.AppointmentRecord),
		quotes:        make(map[string][]customer.QuoteRecord),
		subscriptions: make(map[string][]customer.SubscriptionRecord),
		campaigns:     make(map[string][]customer.CampaignRecord),
		scores:        make(map[string]*customer.ScoreRecord),
		returns:       make(map[string][]customer.ReturnRecord),
		fail:          make(map[string]error),
		gates:         make(map[string]chan struct{}),
		calls:         make(map[string][]string),
	}
}

// gate makes calls matching name block until the returned func is called.
func (m *mockBackend) gate(name string) func() {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gates[name] = ch
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (m *mockBackend) setFail(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, name)
		return
	}
	m.fail[name] = err
}

func (m *mockBackend) setOrders(key string, orders []customer.OrderRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[key] = orders
}

func (m *mockBackend) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls[method])
}

func (m *mockBackend) callKeys(method string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls[method]...)
}

func (m *mockBackend) enter(ctx context.Context, method, key string) error {
	m.mu.Lock()
	m.calls[method] = append(m.calls[method], key)
	g, ok := m.gates[method+":"+key]
	if !ok {
		g = m.gates[method]
	}
	ignore := m.ignoreCancel
	m.mu.Unlock()

	if g != nil && ignore {
		<-g
	} else if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[method+":"+key]; ok {
		return err
	}
	return m.fail[method]
}

func (m *mockBackend) Profile(ctx context.Context, key string) (*customer.ProfileRecord, error) {
	if err := m.enter(ctx, "profile", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[key]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return p, nil
}

func (m *mockBackend) Medical(ctx context.Context, key string) (*customer.MedicalRecord, error) {
	if err := m.enter(ctx, "medical", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.medical[key], nil
}

func (m *mockBackend) Metrics(ctx context.Context, key string) (*customer.MetricsRecord, error) {
	if err := m.enter(ctx, "metrics", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics[key], nil
}

func (m *mockBackend) Orders(ctx context.Context, key string) ([]customer.OrderRecord, error) {
	if err := m.enter(ctx, "orders", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[key], nil
}

func (m *mockBackend) Appointments(ctx context.Context, key string) ([]customer.AppointmentRecord, error) {
	if err := m.enter(ctx, "appointments", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appointments[key], nil
}

func (m *mockBackend) Quotes(ctx context.Context, key string) ([]customer.QuoteRecord, error) {
	if err := m.enter(ctx, "quotes", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quotes[key], nil
}

func (m *mockBackend) Subscriptions(ctx context.Context, key string) ([]customer.SubscriptionRecord, error) {
	if err := m.enter(ctx, "subscriptions", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions[key], nil
}

func (m *mockBackend) Campaigns(ctx context.Context, key string) ([]customer.CampaignRecord, error) {
	if err := m.enter(ctx, "campaigns", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[key], nil
}

func (m *mockBackend) Scores(ctx context.Context, key string) (*customer.ScoreRecord, error) {
	if err := m.enter(ctx, "scores", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scores[key], nil
}

func (m *mockBackend) Returns(ctx context.Context, key string) ([]customer.ReturnRecord, error) {
	if err := m.enter(ctx, "returns", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.returns[key], nil
}

// =========== Fixtures ===========

var testNow = time.Date(2025, time.July, 20, 10, 0, 0, 0, time.UTC)

func testFormatter() *Formatter {
	return MustFormatter("en-US", "USD", "", func() time.Time { return testNow })
}

func makeOrders(prefix string, n int) []customer.OrderRecord {
	out := make([]customer.OrderRecord, n)
	for i := range out {
		out[i] = customer.OrderRecord{
			OrderID:      fmt.Sprintf("%s%03d", prefix, i+1),
			Total:        customer.Ptr(float64(100 * (i + 1))),
			PurchaseDate: customer.Ptr("2025-07-01"),
			Branch:       customer.Ptr("Polanco"),
		}
	}
	return out
}

// seedSubject registers a complete customer reachable through ref whose
// unified id is unified.
func seedSubject(m *mockBackend, ref, unified string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[ref] = &customer.ProfileRecord{
		UnifiedID:       unified,
		FirstName:       customer.Ptr("Ana"),
		PaternalSurname: customer.Ptr("García"),
		MaternalSurname: customer.Ptr("López"),
		BirthDate:       customer.Ptr(time.Date(1990, time.March, 4, 0, 0, 0, 0, time.UTC)),
		Email:           customer.Ptr("ana@example.com"),
	}
	m.medical[ref] = &customer.MedicalRecord{
		Antecedents:   map[string]any{"diabetes": "1", "glaucoma": "0"},
		VisualDrivers: map[string]string{"priority": "comfort"},
	}
	m.metrics[unified] = &customer.MetricsRecord{
		TotalSales: customer.Ptr(6228.62),
		OrderCount: customer.Ptr(3),
	}
	m.orders[unified] = makeOrders("AKAV", 3)
	m.orders[unified][0].Payments = []customer.PaymentRecord{
		{Method: customer.Ptr("Credit card"), Amount: customer.Ptr(60.0), Installments: customer.Ptr(3)},
		{Method: customer.Ptr("Cash"), Amount: customer.Ptr(40.0)},
	}
	m.returns[ref] = []customer.ReturnRecord{
		{ReturnID: "DEV-1", OrderID: customer.Ptr("AKAV001"), ReturnDate: customer.Ptr("2025-07-05"), Reason: customer.Ptr("Wrong size"), Total: customer.Ptr(100.0)},
		{ReturnID: "DEV-2", OrderID: customer.Ptr("AKAV002")},
	}
	m.quotes[unified] = []customer.QuoteRecord{
		{QuoteID: "Q-1", Total: customer.Ptr(1500.0)},
		{QuoteID: "Q-2", Total: customer.Ptr(2500.0)},
	}
	m.campaigns[unified] = []customer.CampaignRecord{
		{
			Name: "Back to school",
			Sends: []customer.SendRecord{
				{Key: customer.Ptr("s-1"), Channel: customer.Ptr("Email"), Subject: customer.Ptr("Hello")},
				{Key: customer.Ptr("s-2"), Channel: customer.Ptr("SMS"), Subject: customer.Ptr("Reminder")},
			},
		},
		{Name: "Summer sale"},
	}
	m.scores[unified] = &customer.ScoreRecord{
		ClickPropensity: customer.Ptr("High"),
		RFMRetail:       &customer.RFMRecord{Sunglasses: customer.Ptr("5"), SunglassesLabel: customer.Ptr("Potential")},
	}
}

func newTestEngine(t *testing.T, b customer.Backend, opts Options) *Engine {
	t.Helper()
	if opts.Formatter == nil {
		opts.Formatter = testFormatter()
	}
	e, err := New(b, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func waitIdle(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func feedStatus(s Snapshot, name FeedName) FeedStatus {
	for _, f := range s.Feeds {
		if f.Feed == name {
			return f
		}
	}
	return FeedStatus{}
}
