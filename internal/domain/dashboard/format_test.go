package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/ehr/patient360/internal/domain/customer"
)

func TestNewFormatter_Invalid(t *testing.T) {
	if _, err := NewFormatter("not a locale!", "USD", "", nil); err == nil {
		t.Error("expected error for invalid locale")
	}
	if _, err := NewFormatter("en-US", "DOLLARS", "", nil); err == nil {
		t.Error("expected error for invalid currency")
	}
}

func TestFormatter_Money(t *testing.T) {
	tests := []struct {
		locale, currency string
		in               float64
		want             string
	}{
		{"en-US", "USD", 6228.62, "6,228.62"},
		{"en-US", "USD", 0, "0.00"},
		{"es-MX", "MXN", 1234567.5, "1,234,567.50"},
		{"en-US", "JPY", 1500, "1,500"},
	}
	for _, tt := range tests {
		f := MustFormatter(tt.locale, tt.currency, "", nil)
		m := f.Money(tt.in)
		if m.Amount != tt.in {
			t.Errorf("%s/%s: amount = %v, want %v", tt.locale, tt.currency, m.Amount, tt.in)
		}
		if !strings.Contains(m.Display, tt.want) {
			t.Errorf("%s/%s: display = %q, want it to contain %q", tt.locale, tt.currency, m.Display, tt.want)
		}
	}
}

func TestFormatter_MoneyNegative(t *testing.T) {
	f := testFormatter()
	tests := []struct {
		in   float64
		want string
	}{
		{-5, "-$5.00"},
		{-1234.5, "-$1,234.50"},
		{-0.001, "$0.00"},
		{5, "$5.00"},
	}
	for _, tt := range tests {
		if got := f.Money(tt.in).Display; got != tt.want {
			t.Errorf("Money(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatter_MoneyPtr(t *testing.T) {
	f := testFormatter()
	if got := f.MoneyPtr(nil); got != f.Money(0) {
		t.Errorf("nil amount = %+v, want zero", got)
	}
	if got := f.MoneyPtr(customer.Ptr(12.5)); got.Amount != 12.5 {
		t.Errorf("amount = %v", got.Amount)
	}
}

func TestFormatter_Date(t *testing.T) {
	en := testFormatter()
	es := MustFormatter("es-MX", "MXN", "", nil)
	tests := []struct {
		name string
		f    *Formatter
		in   *string
		want string
	}{
		{"nil", en, nil, NoDate},
		{"empty", en, customer.Ptr(""), NoDate},
		{"garbage", en, customer.Ptr("yesterday"), NoDate},
		{"date only", en, customer.Ptr("2025-07-20"), "20 July 2025"},
		{"rfc3339", en, customer.Ptr("2025-01-05T08:00:00Z"), "05 January 2025"},
		{"datetime with space", en, customer.Ptr("2025-03-09 10:11:12"), "09 March 2025"},
		{"spanish month", es, customer.Ptr("2025-07-20"), "20 julio 2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Date(tt.in); got != tt.want {
				t.Errorf("Date = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatter_CustomLayout(t *testing.T) {
	f := MustFormatter("en-US", "USD", "2006-01-02", nil)
	if got := f.Date(customer.Ptr("2025-07-20T13:00:00")); got != "2025-07-20" {
		t.Errorf("Date = %q", got)
	}
}

func TestFormatter_Age(t *testing.T) {
	f := testFormatter()
	if got := f.Age(nil); got != 0 {
		t.Errorf("nil birth date age = %d", got)
	}
	future := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := f.Age(&future); got != 0 {
		t.Errorf("future birth date age = %d", got)
	}
	birth := time.Date(1985, time.July, 21, 0, 0, 0, 0, time.UTC)
	if got := f.Age(&birth); got != 39 {
		t.Errorf("age = %d, want 39", got)
	}
}

func TestFormatter_Label(t *testing.T) {
	f := testFormatter()
	if got := f.Label("  dry_eye_syndrome "); got != "Dry Eye Syndrome" {
		t.Errorf("Label = %q", got)
	}
}
