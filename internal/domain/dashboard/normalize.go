package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ehr/patient360/internal/domain/customer"
)

// IsPresent reports whether a backend indicator flag is set. Only the
// string "1" and boolean true count; "0", "true", 1, nil and anything else
// do not.
func IsPresent(v any) bool {
	switch x := v.(type) {
	case string:
		return x == "1"
	case bool:
		return x
	default:
		return false
	}
}

type indicator struct {
	code  string
	label string
}

// Known indicator codes, in display order. Codes outside these tables are
// appended after them, sorted, with a label derived from the code.
var (
	historyIndicators = []indicator{
		{"diabetes", "Diabetes"},
		{"hypertension", "Hypertension"},
		{"glaucoma", "Glaucoma"},
		{"cataracts", "Cataracts"},
		{"allergies", "Allergies"},
		{"migraine", "Migraine"},
		{"eye_surgery", "Eye surgery"},
		{"eye_trauma", "Eye trauma"},
	}
	diagnosisIndicators = []indicator{
		{"astigmatism", "Astigmatism"},
		{"contact_lens_experience", "Contact lens experience"},
		{"hyperopia", "Hyperopia"},
		{"myopia", "Myopia"},
		{"no_refractive_error", "No refractive error"},
		{"presbyopia", "Presbyopia"},
	}
)

func projectIndicators(raw map[string]any, known []indicator, f *Formatter) []string {
	set := make(map[string]bool, len(raw))
	for k, v := range raw {
		if IsPresent(v) {
			set[strings.ToLower(strings.TrimSpace(k))] = true
		}
	}
	out := []string{}
	for _, ind := range known {
		if set[ind.code] {
			out = append(out, ind.label)
			delete(set, ind.code)
		}
	}
	var rest []string
	for code := range set {
		rest = append(rest, code)
	}
	sort.Strings(rest)
	for _, code := range rest {
		out = append(out, f.Label(code))
	}
	return out
}

func str(v *string) string {
	if v == nil {
		return NotAvailable
	}
	if s := strings.TrimSpace(*v); s != "" {
		return s
	}
	return NotAvailable
}

func text(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func num[T int | float64](v *T) T {
	if v == nil {
		return 0
	}
	return *v
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// uniqueKey returns key, or a fallback when empty, made unique within seen.
func uniqueKey(seen map[string]int, key, fallback string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		key = fallback
	}
	seen[key]++
	if n := seen[key]; n > 1 {
		return fmt.Sprintf("%s-%d", key, n)
	}
	return key
}

func normalizeProfile(r *customer.ProfileRecord, f *Formatter) Profile {
	if r == nil {
		return NewModel(f).Profile
	}
	last := strings.TrimSpace(text(r.PaternalSurname) + " " + text(r.MaternalSurname))
	if last == "" {
		last = text(r.LastName)
	}
	return Profile{
		UnifiedID:  strings.TrimSpace(r.UnifiedID),
		FirstName:  text(r.FirstName),
		LastName:   last,
		Age:        f.Age(r.BirthDate),
		Gender:     str(r.Gender),
		PostalCode: str(r.PostalCode),
		Email:      str(r.Email),
		Phone:      str(r.Phone),
		PosID:      str(r.PosID),
	}
}

func normalizeCategories(c *customer.CategoryTotals, f *Formatter) CategoryBreakdown {
	if c == nil {
		c = &customer.CategoryTotals{}
	}
	return CategoryBreakdown{
		Sunglasses:    f.MoneyPtr(c.Sunglasses),
		ContactLenses: f.MoneyPtr(c.ContactLenses),
		Ophthalmic:    f.MoneyPtr(c.Ophthalmic),
	}
}

func normalizeMetrics(r *customer.MetricsRecord, f *Formatter) Metrics {
	if r == nil {
		r = &customer.MetricsRecord{}
	}
	return Metrics{
		TotalSales:            f.MoneyPtr(r.TotalSales),
		OrderCount:            num(r.OrderCount),
		AvgTicket:             f.MoneyPtr(r.AvgTicket),
		DaysSinceLastPurchase: num(r.DaysSinceLastPurchase),
		LastBranch:            str(r.LastBranch),
		LastCategory:          str(r.LastCategory),
		RetailTotal:           f.MoneyPtr(r.RetailTotal),
		RetailCategories:      normalizeCategories(r.RetailCategories, f),
		EcommerceTotal:        f.MoneyPtr(r.EcommerceTotal),
		EcommerceCategories:   normalizeCategories(r.EcommerceCategories, f),
	}
}

func normalizeMedical(r *customer.MedicalRecord, f *Formatter) Medical {
	if r == nil {
		r = &customer.MedicalRecord{}
	}
	prescriptions := make([]Prescription, 0, len(r.Prescriptions))
	for _, p := range r.Prescriptions {
		prescriptions = append(prescriptions, Prescription{
			Eye:      str(p.Eye),
			Sphere:   num(p.Sphere),
			Cylinder: num(p.Cylinder),
			Axis:     num(p.Axis),
			Addition: num(p.Addition),
			Date:     f.Date(p.Date),
		})
	}
	family := make([]FamilyRelation, 0, len(r.FamilyRelations))
	for _, rel := range r.FamilyRelations {
		family = append(family, FamilyRelation{
			Name:         str(rel.Name),
			Relationship: str(rel.Relationship),
			UnifiedID:    text(rel.UnifiedID),
		})
	}
	return Medical{
		History:           projectIndicators(r.Antecedents, historyIndicators, f),
		Diagnoses:         projectIndicators(r.Diagnoses, diagnosisIndicators, f),
		Notes:             text(r.Notes),
		VisualDrivers:     copyMap(r.VisualDrivers),
		PowerQuestions:    copyMap(r.PowerQuestions),
		Prescriptions:     prescriptions,
		FamilyRelations:   family,
		LastDiagnosisDate: f.Date(r.LastDiagnosisDate),
		LastExamDate:      f.Date(r.LastExamDate),
	}
}

func normalizeLines(in []customer.LineRecord, f *Formatter) []Line {
	out := make([]Line, 0, len(in))
	for _, l := range in {
		out = append(out, Line{
			Name:         str(l.Name),
			SKU:          str(l.SKU),
			Quantity:     num(l.Quantity),
			Discount:     f.MoneyPtr(l.Discount),
			DiscountCode: text(l.DiscountCode),
			Total:        f.MoneyPtr(l.Total),
		})
	}
	return out
}

func normalizePayments(in []customer.PaymentRecord, f *Formatter) []Payment {
	out := make([]Payment, 0, len(in))
	for _, p := range in {
		n := num(p.Installments)
		if n < 1 {
			n = 1
		}
		out = append(out, Payment{
			Method:       str(p.Method),
			Amount:       f.MoneyPtr(p.Amount),
			PaidAt:       f.Date(p.PaidAt),
			Reference:    str(p.Reference),
			Installments: n,
		})
	}
	return out
}

func normalizeOrders(in []customer.OrderRecord, f *Formatter) []Order {
	seen := map[string]int{}
	out := make([]Order, 0, len(in))
	for i, o := range in {
		out = append(out, Order{
			ID:           uniqueKey(seen, o.OrderID, fmt.Sprintf("order-%d", i+1)),
			Total:        f.MoneyPtr(o.Total),
			PurchaseDate: f.Date(o.PurchaseDate),
			TicketID:     str(o.TicketID),
			Branch:       str(o.Branch),
			QuoteRef:     str(o.QuoteRef),
			Status:       str(o.Status),
			Lines:        normalizeLines(o.Lines, f),
			Payments:     normalizePayments(o.Payments, f),
			UI:           newItemUI(blockOrder),
		})
	}
	return out
}

func normalizeReturns(in []customer.ReturnRecord, f *Formatter) []Return {
	seen := map[string]int{}
	out := make([]Return, 0, len(in))
	for i, r := range in {
		out = append(out, Return{
			ID:      uniqueKey(seen, r.ReturnID, fmt.Sprintf("return-%d", i+1)),
			OrderID: str(r.OrderID),
			Date:    f.Date(r.ReturnDate),
			Branch:  str(r.Branch),
			Reason:  str(r.Reason),
			Status:  str(r.Status),
			Total:   f.MoneyPtr(r.Total),
			Lines:   normalizeLines(r.Lines, f),
			UI:      newItemUI(blockReturn),
		})
	}
	return out
}

func normalizeAppointments(in []customer.AppointmentRecord, f *Formatter) []Appointment {
	seen := map[string]int{}
	out := make([]Appointment, 0, len(in))
	for i, a := range in {
		out = append(out, Appointment{
			ID:      uniqueKey(seen, a.AppointmentID, fmt.Sprintf("appointment-%d", i+1)),
			Type:    str(a.Type),
			Status:  str(a.Status),
			Branch:  str(a.Branch),
			Start:   f.DateTime(a.Start),
			End:     f.DateTime(a.End),
			Created: f.DateTime(a.Created),
		})
	}
	return out
}

func normalizeQuotes(in []customer.QuoteRecord, f *Formatter) []Quote {
	seen := map[string]int{}
	out := make([]Quote, 0, len(in))
	for i, q := range in {
		out = append(out, Quote{
			ID:         uniqueKey(seen, q.QuoteID, fmt.Sprintf("quote-%d", i+1)),
			Date:       f.Date(q.Date),
			Expiration: f.Date(q.Expiration),
			Total:      f.MoneyPtr(q.Total),
			Lines:      normalizeLines(q.Lines, f),
			UI:         newItemUI(blockQuote),
		})
	}
	return out
}

func normalizeSubscriptions(in []customer.SubscriptionRecord, f *Formatter) []Subscription {
	seen := map[string]int{}
	out := make([]Subscription, 0, len(in))
	for i, s := range in {
		key := text(s.SubscriptionID)
		if key == "" {
			key = text(s.Name)
		}
		products := make([]SubscriptionProduct, 0, len(s.Products))
		for _, p := range s.Products {
			attachments := make([]Attachment, 0, len(p.Attachments))
			for j, a := range p.Attachments {
				n := num(a.Number)
				if n == 0 {
					n = j + 1
				}
				attachments = append(attachments, Attachment{
					Number:   n,
					Name:     str(a.Name),
					Cylinder: num(a.Cylinder),
					Axis:     num(a.Axis),
					Power:    num(a.Power),
				})
			}
			products = append(products, SubscriptionProduct{
				SKU:         str(p.SKU),
				Quantity:    num(p.Quantity),
				Attachments: attachments,
			})
		}
		out = append(out, Subscription{
			Key:             uniqueKey(seen, key, fmt.Sprintf("subscription-%d", i+1)),
			Name:            str(s.Name),
			Status:          str(s.Status),
			Created:         f.Date(s.Created),
			Frequency:       str(s.Frequency),
			CyclesCompleted: num(s.CyclesCompleted),
			LastPurchase:    f.Date(s.LastPurchase),
			NextPurchase:    f.Date(s.NextPurchase),
			Products:        products,
			UI:              newItemUI(blockSubscription),
		})
	}
	return out
}

// channelIcon maps a send channel to its icon name.
func channelIcon(channel string) string {
	switch strings.ToLower(channel) {
	case "email":
		return "utility:email"
	case "whatsapp":
		return "utility:world"
	case "sms":
		return "utility:sms"
	default:
		return "utility:notification"
	}
}

func normalizeSends(in []customer.SendRecord, f *Formatter) []Send {
	seen := map[string]int{}
	out := make([]Send, 0, len(in))
	for i, s := range in {
		channel := str(s.Channel)
		events := make([]SendEvent, 0, len(s.Events))
		for _, ev := range s.Events {
			events = append(events, SendEvent{Type: str(ev.Type), At: f.DateTime(ev.At)})
		}
		fallback := fmt.Sprintf("%s-%d", strings.ToLower(channel), i+1)
		subject := str(s.Subject)
		full := text(s.FullSubject)
		if full == "" {
			full = subject
		}
		out = append(out, Send{
			Key:         uniqueKey(seen, text(s.Key), fallback),
			Channel:     channel,
			Icon:        channelIcon(channel),
			Subject:     subject,
			FullSubject: full,
			SentDate:    f.Date(s.SentDate),
			From:        str(s.From),
			Events:      events,
			UI:          newItemUI(blockSend),
		})
	}
	return out
}

func normalizeCampaigns(in []customer.CampaignRecord, f *Formatter) []Campaign {
	seen := map[string]int{}
	out := make([]Campaign, 0, len(in))
	for i, c := range in {
		name := strings.TrimSpace(c.Name)
		out = append(out, Campaign{
			Key:     uniqueKey(seen, name, fmt.Sprintf("campaign-%d", i+1)),
			Name:    str(&c.Name),
			Journey: str(c.Journey),
			Sends:   normalizeSends(c.Sends, f),
			UI:      newItemUI(blockCampaign),
		})
	}
	return out
}

func label(v *string) string {
	if s := text(v); s != "" {
		return s
	}
	return NotApplicable
}

func normalizeRFM(r *customer.RFMRecord) RFM {
	if r == nil {
		return emptyRFM()
	}
	return RFM{
		Sunglasses:    RFMScore{Score: str(r.Sunglasses), Label: label(r.SunglassesLabel)},
		ContactLenses: RFMScore{Score: str(r.ContactLenses), Label: label(r.ContactLensesLabel)},
		Ophthalmic:    RFMScore{Score: str(r.Ophthalmic), Label: label(r.OphthalmicLabel)},
	}
}

func normalizeScores(r *customer.ScoreRecord) Scores {
	if r == nil {
		r = &customer.ScoreRecord{}
	}
	return Scores{
		ClickPropensity: str(r.ClickPropensity),
		OpenPropensity:  str(r.OpenPropensity),
		Retail:          normalizeRFM(r.RFMRetail),
		Ecommerce:       normalizeRFM(r.RFMEcommerce),
	}
}
