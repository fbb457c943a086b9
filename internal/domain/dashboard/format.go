package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NoDate is the display value for absent or unparsable dates.
const NoDate = "No date"

// DefaultDateLayout renders dates as "20 July 2025".
const DefaultDateLayout = "02 January 2006"

// dateInputs are the layouts accepted from the backend, tried in order.
var dateInputs = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Formatter renders numbers, money and dates for one locale.
type Formatter struct {
	tag       language.Tag
	printer   *message.Printer
	unit      currency.Unit
	symbol    string
	amountFmt string
	locale    monday.Locale
	layout    string
	now       func() time.Time
}

// NewFormatter builds a formatter for a BCP 47 locale ("es-MX") and an
// ISO 4217 currency code ("MXN"). An empty layout uses DefaultDateLayout;
// a nil clock uses time.Now.
func NewFormatter(locale, currencyCode, layout string, now func() time.Time) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", currencyCode, err)
	}
	if layout == "" {
		layout = DefaultDateLayout
	}
	if now == nil {
		now = time.Now
	}
	printer := message.NewPrinter(tag)
	scale, _ := currency.Standard.Rounding(unit)
	return &Formatter{
		tag:       tag,
		printer:   printer,
		unit:      unit,
		symbol:    printer.Sprint(currency.NarrowSymbol(unit)),
		amountFmt: fmt.Sprintf("%%.%df", scale),
		locale:    dateLocale(tag),
		layout:    layout,
		now:       now,
	}, nil
}

// MustFormatter is NewFormatter that panics on error. For tests and fixed
// configuration only.
func MustFormatter(locale, currencyCode, layout string, now func() time.Time) *Formatter {
	f, err := NewFormatter(locale, currencyCode, layout, now)
	if err != nil {
		panic(err)
	}
	return f
}

func dateLocale(tag language.Tag) monday.Locale {
	base, _ := tag.Base()
	region, _ := tag.Region()
	switch base.String() {
	case "es":
		return monday.LocaleEsES
	case "pt":
		if region.String() == "PT" {
			return monday.LocalePtPT
		}
		return monday.LocalePtBR
	case "fr":
		return monday.LocaleFrFR
	case "de":
		return monday.LocaleDeDE
	case "it":
		return monday.LocaleItIT
	default:
		if region.String() == "GB" {
			return monday.LocaleEnGB
		}
		return monday.LocaleEnUS
	}
}

// Money formats v in the configured currency, keeping the amount. The
// number is grouped per locale and rounded to the currency's standard
// scale: 6228.62 MXN in es-MX renders as "$6,228.62". The sign goes before
// the symbol ("-$5.00"); amounts that round to zero carry no sign.
func (f *Formatter) Money(v float64) Money {
	digits := f.printer.Sprintf(f.amountFmt, math.Abs(v))
	sign := ""
	if v < 0 && digits != f.printer.Sprintf(f.amountFmt, 0.0) {
		sign = "-"
	}
	return Money{
		Amount:  v,
		Display: sign + f.symbol + digits,
	}
}

// MoneyPtr formats an optional amount; nil renders as zero.
func (f *Formatter) MoneyPtr(v *float64) Money {
	if v == nil {
		return f.Money(0)
	}
	return f.Money(*v)
}

// NoDate returns the sentinel for a missing date.
func (f *Formatter) NoDate() string { return NoDate }

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateInputs {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Date renders an optional backend date with the configured layout.
func (f *Formatter) Date(raw *string) string {
	if raw == nil {
		return NoDate
	}
	t, ok := parseDate(*raw)
	if !ok {
		return NoDate
	}
	return monday.Format(t, f.layout, f.locale)
}

// DateTime renders an optional backend timestamp with the date layout
// followed by a 12-hour clock.
func (f *Formatter) DateTime(raw *string) string {
	if raw == nil {
		return NoDate
	}
	t, ok := parseDate(*raw)
	if !ok {
		return NoDate
	}
	return monday.Format(t, f.layout+", 03:04 PM", f.locale)
}

// Age returns whole years elapsed since birth, or 0 when unknown.
func (f *Formatter) Age(birth *time.Time) int {
	if birth == nil || birth.IsZero() {
		return 0
	}
	today := f.now()
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Label turns a backend code such as "eye_surgery" into "Eye Surgery".
// Casers keep state, so one is built per call.
func (f *Formatter) Label(code string) string {
	return cases.Title(f.tag).String(strings.ReplaceAll(strings.TrimSpace(code), "_", " "))
}
