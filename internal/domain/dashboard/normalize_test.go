package dashboard

import (
	"reflect"
	"testing"
	"time"

	"github.com/ehr/patient360/internal/domain/customer"
)

func TestIsPresent(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{"1", true},
		{true, true},
		{"0", false},
		{"true", false},
		{"yes", false},
		{1, false},
		{1.0, false},
		{false, false},
		{nil, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsPresent(tt.in); got != tt.want {
			t.Errorf("IsPresent(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeMedical_Indicators(t *testing.T) {
	f := testFormatter()
	m := normalizeMedical(&customer.MedicalRecord{
		Antecedents: map[string]any{
			"glaucoma":     true,
			"diabetes":     "1",
			"hypertension": "0",
			"dry_eye":      "1",
			"color_blind":  true,
			"eye_surgery":  "1",
			"migraine":     1,
			"allergies":    nil,
		},
		Diagnoses: map[string]any{"myopia": "1", "astigmatism": true, "presbyopia": false},
	}, f)

	wantHistory := []string{"Diabetes", "Glaucoma", "Eye surgery", "Color Blind", "Dry Eye"}
	if !reflect.DeepEqual(m.History, wantHistory) {
		t.Errorf("history = %v, want %v", m.History, wantHistory)
	}
	if want := []string{"Astigmatism", "Myopia"}; !reflect.DeepEqual(m.Diagnoses, want) {
		t.Errorf("diagnoses = %v, want %v", m.Diagnoses, want)
	}
}

func TestNormalizeMedical_Defaults(t *testing.T) {
	m := normalizeMedical(nil, testFormatter())
	if m.History == nil || m.Diagnoses == nil || m.Prescriptions == nil || m.FamilyRelations == nil {
		t.Error("expected non-nil empty lists")
	}
	if m.VisualDrivers == nil || m.PowerQuestions == nil {
		t.Error("expected non-nil empty maps")
	}
	if m.LastExamDate != NoDate || m.LastDiagnosisDate != NoDate {
		t.Errorf("expected no-date sentinels, got %q / %q", m.LastExamDate, m.LastDiagnosisDate)
	}
}

func TestNormalizeMedical_CopiesMaps(t *testing.T) {
	src := map[string]string{"priority": "comfort"}
	m := normalizeMedical(&customer.MedicalRecord{VisualDrivers: src}, testFormatter())
	src["priority"] = "style"
	if m.VisualDrivers["priority"] != "comfort" {
		t.Error("normalized map aliases the raw record")
	}
}

func TestNormalizeProfile(t *testing.T) {
	f := testFormatter()
	tests := []struct {
		name     string
		in       *customer.ProfileRecord
		wantLast string
		wantAge  int
	}{
		{"nil record", nil, "", 0},
		{
			"both surnames",
			&customer.ProfileRecord{PaternalSurname: customer.Ptr("García"), MaternalSurname: customer.Ptr("López")},
			"García López", 0,
		},
		{
			"paternal only",
			&customer.ProfileRecord{PaternalSurname: customer.Ptr(" García "), LastName: customer.Ptr("Ignored")},
			"García", 0,
		},
		{
			"generic last name",
			&customer.ProfileRecord{LastName: customer.Ptr("Smith")},
			"Smith", 0,
		},
		{
			"birthday not reached yet",
			&customer.ProfileRecord{BirthDate: customer.Ptr(time.Date(2000, time.December, 1, 0, 0, 0, 0, time.UTC))},
			"", 24,
		},
		{
			"birthday today",
			&customer.ProfileRecord{BirthDate: customer.Ptr(time.Date(2000, time.July, 20, 0, 0, 0, 0, time.UTC))},
			"", 25,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := normalizeProfile(tt.in, f)
			if p.LastName != tt.wantLast {
				t.Errorf("last name = %q, want %q", p.LastName, tt.wantLast)
			}
			if p.Age != tt.wantAge {
				t.Errorf("age = %d, want %d", p.Age, tt.wantAge)
			}
			if p.Email != NotAvailable || p.Gender != NotAvailable {
				t.Errorf("expected N/A defaults, got %+v", p)
			}
		})
	}
}

func TestNormalizeMetrics_Defaults(t *testing.T) {
	f := testFormatter()
	m := normalizeMetrics(&customer.MetricsRecord{LastBranch: customer.Ptr("  ")}, f)
	if m.LastBranch != NotAvailable || m.LastCategory != NotAvailable {
		t.Errorf("expected N/A for blank strings, got %q / %q", m.LastBranch, m.LastCategory)
	}
	if m.OrderCount != 0 || m.TotalSales.Amount != 0 {
		t.Errorf("expected zero numbers, got %+v", m)
	}
	if m.RetailCategories.Sunglasses.Display == "" {
		t.Error("expected formatted zero for missing categories")
	}
}

func TestNormalizeOrders(t *testing.T) {
	f := testFormatter()
	orders := normalizeOrders([]customer.OrderRecord{
		{OrderID: "AKAV095695", Total: customer.Ptr(3450.0), PurchaseDate: customer.Ptr("2025-07-20"),
			Lines: []customer.LineRecord{{Name: customer.Ptr("Ray-Ban"), Quantity: customer.Ptr(1), Total: customer.Ptr(3450.0)}}},
		{OrderID: "AKAV095695"},
		{OrderID: ""},
	}, f)

	if got := orderIDs(orders); !reflect.DeepEqual(got, []string{"AKAV095695", "AKAV095695-2", "order-3"}) {
		t.Errorf("unexpected keys %v", got)
	}
	o := orders[0]
	if o.PurchaseDate != "20 July 2025" {
		t.Errorf("purchase date = %q", o.PurchaseDate)
	}
	if o.Total.Amount != 3450 || o.Lines[0].Name != "Ray-Ban" || o.Lines[0].SKU != NotAvailable {
		t.Errorf("unexpected order %+v", o)
	}
	if orders[1].PurchaseDate != NoDate || orders[1].Lines == nil {
		t.Errorf("expected defaults on sparse order, got %+v", orders[1])
	}
	for _, o := range orders {
		if o.UI.Expanded || o.UI.DetailsClass() != "orden-details collapsed" {
			t.Errorf("order %s not collapsed: %+v", o.ID, o.UI)
		}
	}
}

func TestNormalizeOrders_Payments(t *testing.T) {
	f := testFormatter()
	orders := normalizeOrders([]customer.OrderRecord{{
		OrderID: "AKAV095695",
		Payments: []customer.PaymentRecord{
			{Method: customer.Ptr("Credit card"), Amount: customer.Ptr(3000.0), PaidAt: customer.Ptr("2025-07-20"), Installments: customer.Ptr(3)},
			{Amount: customer.Ptr(450.0)},
		},
	}, {OrderID: "AKAV095696"}}, f)

	p := orders[0].Payments
	if len(p) != 2 {
		t.Fatalf("expected 2 payments, got %+v", p)
	}
	if p[0].Method != "Credit card" || p[0].Amount.Display != "$3,000.00" || p[0].PaidAt != "20 July 2025" || p[0].Installments != 3 {
		t.Errorf("unexpected first payment %+v", p[0])
	}
	if p[1].Method != NotAvailable || p[1].Reference != NotAvailable || p[1].PaidAt != NoDate || p[1].Installments != 1 {
		t.Errorf("expected defaults on sparse payment, got %+v", p[1])
	}
	if orders[1].Payments == nil || len(orders[1].Payments) != 0 {
		t.Errorf("expected an empty payment list, got %#v", orders[1].Payments)
	}
}

func TestNormalizeReturns(t *testing.T) {
	f := testFormatter()
	returns := normalizeReturns([]customer.ReturnRecord{
		{ReturnID: "DEV-1", OrderID: customer.Ptr("AKAV095695"), ReturnDate: customer.Ptr("2025-07-25"),
			Reason: customer.Ptr("Wrong size"), Total: customer.Ptr(3450.0),
			Lines: []customer.LineRecord{{Name: customer.Ptr("Ray-Ban"), Quantity: customer.Ptr(1)}}},
		{ReturnID: "DEV-1"},
		{},
	}, f)

	var keys []string
	for _, r := range returns {
		keys = append(keys, r.ID)
	}
	if !reflect.DeepEqual(keys, []string{"DEV-1", "DEV-1-2", "return-3"}) {
		t.Errorf("unexpected keys %v", keys)
	}
	r := returns[0]
	if r.OrderID != "AKAV095695" || r.Date != "25 July 2025" || r.Reason != "Wrong size" || r.Total.Display != "$3,450.00" {
		t.Errorf("unexpected return %+v", r)
	}
	if len(r.Lines) != 1 || r.Lines[0].Name != "Ray-Ban" {
		t.Errorf("unexpected lines %+v", r.Lines)
	}
	sparse := returns[1]
	if sparse.OrderID != NotAvailable || sparse.Branch != NotAvailable || sparse.Status != NotAvailable || sparse.Date != NoDate || sparse.Lines == nil {
		t.Errorf("expected defaults on sparse return, got %+v", sparse)
	}
	for _, r := range returns {
		if r.UI.Expanded || r.UI.DetailsClass() != "devolucion-details collapsed" {
			t.Errorf("return %s not collapsed: %+v", r.ID, r.UI)
		}
	}
}

func TestNormalizeAppointments_DateTime(t *testing.T) {
	a := normalizeAppointments([]customer.AppointmentRecord{
		{AppointmentID: "A-1", Start: customer.Ptr("2025-07-21T16:30:00"), End: customer.Ptr("garbage")},
	}, testFormatter())
	if a[0].Start != "21 July 2025, 04:30 PM" {
		t.Errorf("start = %q", a[0].Start)
	}
	if a[0].End != NoDate || a[0].Created != NoDate {
		t.Errorf("expected no-date sentinels, got %q / %q", a[0].End, a[0].Created)
	}
}

func TestNormalizeSubscriptions(t *testing.T) {
	subs := normalizeSubscriptions([]customer.SubscriptionRecord{
		{
			Name: customer.Ptr("Monthly lenses"),
			Products: []customer.SubscriptionProductRecord{{
				SKU: customer.Ptr("ACU-30"),
				Attachments: []customer.AttachmentRecord{
					{Name: customer.Ptr("Acuvue Oasys"), Power: customer.Ptr(-2.25)},
					{Number: customer.Ptr(7)},
				},
			}},
		},
		{},
	}, testFormatter())

	if subs[0].Key != "Monthly lenses" || subs[1].Key != "subscription-2" {
		t.Errorf("unexpected keys %q, %q", subs[0].Key, subs[1].Key)
	}
	att := subs[0].Products[0].Attachments
	if att[0].Number != 1 || att[1].Number != 7 || att[1].Name != NotAvailable {
		t.Errorf("unexpected attachments %+v", att)
	}
}

func TestNormalizeCampaigns_Sends(t *testing.T) {
	campaigns := normalizeCampaigns([]customer.CampaignRecord{{
		Name: "Back to school",
		Sends: []customer.SendRecord{
			{Channel: customer.Ptr("Email"), Subject: customer.Ptr("Hi"), Events: []customer.SendEventRecord{{Type: customer.Ptr("open")}}},
			{Channel: customer.Ptr("WhatsApp"), FullSubject: customer.Ptr("Full text")},
			{Channel: customer.Ptr("SMS")},
			{},
		},
	}}, testFormatter())

	sends := campaigns[0].Sends
	wantKeys := []string{"email-1", "whatsapp-2", "sms-3", "n/a-4"}
	wantIcons := []string{"utility:email", "utility:world", "utility:sms", "utility:notification"}
	for i, s := range sends {
		if s.Key != wantKeys[i] || s.Icon != wantIcons[i] {
			t.Errorf("send %d: key %q icon %q", i, s.Key, s.Icon)
		}
		if s.UI.Expanded {
			t.Errorf("send %d starts expanded", i)
		}
	}
	if sends[0].FullSubject != "Hi" || sends[1].Subject != NotAvailable || sends[1].FullSubject != "Full text" {
		t.Errorf("unexpected subjects %+v", sends[:2])
	}
	if sends[0].Events[0].At != NoDate {
		t.Errorf("expected no-date event, got %q", sends[0].Events[0].At)
	}
	if campaigns[0].Key != "Back to school" || campaigns[0].Journey != NotAvailable {
		t.Errorf("unexpected campaign %+v", campaigns[0])
	}
}

func TestNormalizeScores(t *testing.T) {
	s := normalizeScores(&customer.ScoreRecord{
		OpenPropensity: customer.Ptr("Medium"),
		RFMRetail: &customer.RFMRecord{
			Sunglasses:      customer.Ptr("4"),
			SunglassesLabel: customer.Ptr("Occasional"),
			Ophthalmic:      customer.Ptr("1"),
		},
	})
	if s.OpenPropensity != "Medium" || s.ClickPropensity != NotAvailable {
		t.Errorf("unexpected propensities %+v", s)
	}
	if s.Retail.Sunglasses != (RFMScore{Score: "4", Label: "Occasional"}) {
		t.Errorf("unexpected sunglasses score %+v", s.Retail.Sunglasses)
	}
	if s.Retail.Ophthalmic.Label != NotApplicable {
		t.Errorf("expected Not Applicable label, got %q", s.Retail.Ophthalmic.Label)
	}
	if s.Ecommerce != emptyRFM() {
		t.Errorf("expected empty ecommerce RFM, got %+v", s.Ecommerce)
	}
}
