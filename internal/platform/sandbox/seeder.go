// Package sandbox provides a synthetic customer backend for development and
// demos. Customers are generated from a seed, so the same seed always yields
// the same profiles, orders and campaigns.
package sandbox

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/ehr/patient360/internal/domain/customer"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and behaviour of the synthetic backend.
type SeedConfig struct {
	Seed        int64         `json:"seed"`
	Customers   int           `json:"customers"`
	Latency     time.Duration `json:"latency"`
	FailureRate float64       `json:"failureRate"`
}

// DefaultSeedConfig returns the configuration used when none is given.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{Seed: 1, Customers: 25}
}

// DemoReference is the primary reference of the first generated customer.
// Its first order always carries DemoOrderID.
const (
	DemoReference = "REF-0001"
	DemoOrderID   = "AKAV095695"
)

// ---------------------------------------------------------------------------
// Value pools
// ---------------------------------------------------------------------------

var (
	firstNamesMale = []string{
		"José", "Luis", "Juan", "Miguel", "Carlos", "Jorge", "Alejandro",
		"Roberto", "Fernando", "Ricardo", "Eduardo", "Javier", "Daniel",
		"Sergio", "Arturo", "Manuel", "Raúl", "Andrés", "Diego", "Héctor",
	}
	firstNamesFemale = []string{
		"María", "Guadalupe", "Ana", "Sofía", "Valeria", "Fernanda",
		"Daniela", "Gabriela", "Alejandra", "Patricia", "Mariana", "Lucía",
		"Camila", "Ximena", "Regina", "Paola", "Verónica", "Claudia",
	}
	surnames = []string{
		"García", "Hernández", "Martínez", "López", "González", "Rodríguez",
		"Pérez", "Sánchez", "Ramírez", "Cruz", "Flores", "Gómez", "Morales",
		"Vázquez", "Reyes", "Jiménez", "Torres", "Díaz", "Gutiérrez", "Ruiz",
	}
	branches = []string{
		"Polanco", "Santa Fe", "Coyoacán", "Satélite", "Perisur",
		"Guadalajara Andares", "Monterrey Valle", "Puebla Angelópolis",
	}
	postalCodes = []string{
		"11560", "01210", "04100", "53100", "14060", "45116", "66220", "72830",
	}
	categories = []string{"Sunglasses", "Contact lenses", "Ophthalmic"}
	products   = []struct {
		name     string
		sku      string
		price    float64
		category string
	}{
		{"Ray-Ban Aviator Classic", "RB3025", 3450, "Sunglasses"},
		{"Oakley Holbrook", "OO9102", 2890, "Sunglasses"},
		{"Vogue VO5286", "VO5286", 2190, "Ophthalmic"},
		{"Progressive lenses 1.67", "LNS-PRG167", 4200, "Ophthalmic"},
		{"Anti-reflective coating", "TRT-AR", 850, "Ophthalmic"},
		{"Acuvue Oasys 6 pack", "ACU-OAS6", 780, "Contact lenses"},
		{"Dailies Total1 30 pack", "DT1-30", 990, "Contact lenses"},
		{"Lens cleaning kit", "ACC-KIT", 180, "Ophthalmic"},
	}
	discountCodes   = []string{"BTS2025", "VIP10", "WELCOME", "SUMMER15"}
	orderStatuses   = []string{"Delivered", "In lab", "Ready for pickup", "Cancelled"}
	paymentMethods  = []string{"Credit card", "Debit card", "Cash", "Store credit"}
	returnReasons   = []string{"Wrong size", "Prescription change", "Manufacturing defect", "Customer changed mind"}
	returnStatuses  = []string{"Requested", "Approved", "Refunded", "Rejected"}
	apptTypes       = []string{"Eye exam", "Contact lens fitting", "Frame adjustment", "Follow-up"}
	apptStatuses    = []string{"Scheduled", "Completed", "No show", "Cancelled"}
	frequencies     = []string{"Monthly", "Bimonthly", "Quarterly"}
	subStatuses     = []string{"Active", "Paused", "Cancelled"}
	channels        = []string{"Email", "SMS", "WhatsApp", "Push"}
	journeys        = []string{"Onboarding", "Replenishment", "Reactivation", "Seasonal"}
	campaignNames   = []string{"Back to school", "Summer sale", "Eye health month", "Contact lens refill", "Black Friday"}
	eventTypes      = []string{"sent", "delivered", "opened", "clicked"}
	propensities    = []string{"Low", "Medium", "High"}
	rfmLabels       = []string{"Champion", "Loyal", "Potential", "At risk", "Hibernating"}
	historyCodes    = []string{"diabetes", "hypertension", "glaucoma", "cataracts", "allergies", "migraine", "eye_surgery", "eye_trauma"}
	diagnosisCodes  = []string{"myopia", "hyperopia", "astigmatism", "presbyopia", "contact_lens_experience"}
	relationships   = []string{"Mother", "Father", "Spouse", "Son", "Daughter", "Sibling"}
	visualDrivers   = map[string][]string{"priority": {"comfort", "style", "price", "durability"}, "usage": {"screens", "driving", "sports", "reading"}}
	powerQuestions  = map[string][]string{"screen_hours": {"<2", "2-6", "6+"}, "outdoor": {"rarely", "weekends", "daily"}}
	prescriptionEye = []string{"OD", "OI"}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic synthetic customer records.
type DataGenerator struct {
	rng     *rand.Rand
	now     time.Time
	counter uint64
}

// NewDataGenerator returns a generator seeded for reproducibility. Dates are
// generated relative to now. If seed is 0 a time-based seed is chosen.
func NewDataGenerator(seed int64, now time.Time) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
		now: now,
	}
}

func (g *DataGenerator) nextID(prefix string) string {
	g.counter++
	return fmt.Sprintf("%s%06d", prefix, 100000+g.rng.Intn(900000)+int(g.counter))
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) chance(p float64) bool {
	return g.rng.Float64() < p
}

func (g *DataGenerator) money(low, high float64) float64 {
	cents := int64(low*100) + g.rng.Int63n(int64((high-low)*100)+1)
	return float64(cents) / 100
}

// daysAgo returns a calendar date up to maxDays before now.
func (g *DataGenerator) daysAgo(maxDays int) string {
	return g.now.AddDate(0, 0, -g.rng.Intn(maxDays+1)).Format("2006-01-02")
}

// timestamp returns a local date-time within days of now, on a half hour.
func (g *DataGenerator) timestamp(days int) string {
	d := g.rng.Intn(2*days+1) - days
	day := time.Date(g.now.Year(), g.now.Month(), g.now.Day(), 9, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, d).Add(time.Duration(g.rng.Intn(20)) * 30 * time.Minute).Format("2006-01-02T15:04:05")
}

// Customer bundles every record the backend serves for one subject.
type Customer struct {
	Reference     string                        `json:"reference"`
	Profile       customer.ProfileRecord        `json:"profile"`
	Medical       customer.MedicalRecord        `json:"medical"`
	Metrics       customer.MetricsRecord        `json:"metrics"`
	Orders        []customer.OrderRecord        `json:"orders"`
	Appointments  []customer.AppointmentRecord  `json:"appointments"`
	Quotes        []customer.QuoteRecord        `json:"quotes"`
	Subscriptions []customer.SubscriptionRecord `json:"subscriptions"`
	Campaigns     []customer.CampaignRecord     `json:"campaigns"`
	Returns       []customer.ReturnRecord       `json:"returns"`
	Scores        customer.ScoreRecord          `json:"scores"`
}

// GenerateCustomer produces a complete customer for the nth reference.
func (g *DataGenerator) GenerateCustomer(n int) Customer {
	c := Customer{Reference: fmt.Sprintf("REF-%04d", n)}

	first := g.pick(firstNamesFemale)
	gender := "Female"
	if g.chance(0.5) {
		first = g.pick(firstNamesMale)
		gender = "Male"
	}
	paternal, maternal := g.pick(surnames), g.pick(surnames)
	birth := time.Date(1950+g.rng.Intn(55), time.Month(1+g.rng.Intn(12)), 1+g.rng.Intn(28), 0, 0, 0, 0, time.UTC)
	email := fmt.Sprintf("%s.%s@example.com", asciiLower(first), asciiLower(paternal))

	c.Profile = customer.ProfileRecord{
		UnifiedID:       fmt.Sprintf("UNI-%08x", g.rng.Uint32()),
		FirstName:       customer.Ptr(first),
		PaternalSurname: customer.Ptr(paternal),
		Gender:          customer.Ptr(gender),
		BirthDate:       customer.Ptr(birth),
		PostalCode:      customer.Ptr(g.pick(postalCodes)),
		Email:           customer.Ptr(email),
		Phone:           customer.Ptr(fmt.Sprintf("55 %04d %04d", g.rng.Intn(10000), g.rng.Intn(10000))),
		PosID:           customer.Ptr(fmt.Sprintf("POS-%06d", g.rng.Intn(1000000))),
	}
	if g.chance(0.8) {
		c.Profile.MaternalSurname = customer.Ptr(maternal)
	}

	c.Medical = g.generateMedical()
	c.Orders = g.generateOrders(g.rng.Intn(13))
	c.Appointments = g.generateAppointments(g.rng.Intn(4))
	c.Quotes = g.generateQuotes(g.rng.Intn(4))
	c.Subscriptions = g.generateSubscriptions(g.rng.Intn(3))
	c.Campaigns = g.generateCampaigns(g.rng.Intn(4))
	c.Metrics = g.summarize(c.Orders)
	c.Scores = customer.ScoreRecord{
		ClickPropensity: customer.Ptr(g.pick(propensities)),
		OpenPropensity:  customer.Ptr(g.pick(propensities)),
		RFMRetail:       g.generateRFM(),
	}
	if g.chance(0.6) {
		c.Scores.RFMEcommerce = g.generateRFM()
	}
	c.Returns = g.generateReturns(c.Orders)
	return c
}

func (g *DataGenerator) generateMedical() customer.MedicalRecord {
	m := customer.MedicalRecord{
		Antecedents:    make(map[string]any),
		Diagnoses:      make(map[string]any),
		VisualDrivers:  make(map[string]string),
		PowerQuestions: make(map[string]string),
	}
	// Backends mix "1"/"0" strings and booleans.
	for _, code := range historyCodes {
		switch g.rng.Intn(4) {
		case 0:
			m.Antecedents[code] = "1"
		case 1:
			m.Antecedents[code] = false
		default:
			m.Antecedents[code] = "0"
		}
	}
	for _, code := range diagnosisCodes {
		m.Diagnoses[code] = g.chance(0.3)
	}
	for k, pool := range visualDrivers {
		m.VisualDrivers[k] = g.pick(pool)
	}
	for k, pool := range powerQuestions {
		if g.chance(0.7) {
			m.PowerQuestions[k] = g.pick(pool)
		}
	}
	exam := g.daysAgo(720)
	m.LastExamDate = customer.Ptr(exam)
	m.LastDiagnosisDate = customer.Ptr(g.daysAgo(720))
	for _, eye := range prescriptionEye {
		m.Prescriptions = append(m.Prescriptions, customer.PrescriptionRecord{
			Eye:      customer.Ptr(eye),
			Sphere:   customer.Ptr(float64(g.rng.Intn(33)-24) / 4),
			Cylinder: customer.Ptr(-float64(g.rng.Intn(9)) / 4),
			Axis:     customer.Ptr(g.rng.Intn(181)),
			Date:     customer.Ptr(exam),
		})
	}
	for i := g.rng.Intn(3); i > 0; i-- {
		m.FamilyRelations = append(m.FamilyRelations, customer.FamilyRelationRecord{
			Name:         customer.Ptr(g.pick(firstNamesFemale) + " " + g.pick(surnames)),
			Relationship: customer.Ptr(g.pick(relationships)),
			UnifiedID:    customer.Ptr(fmt.Sprintf("UNI-%08x", g.rng.Uint32())),
		})
	}
	if g.chance(0.3) {
		m.Notes = customer.Ptr("Patient reports eye strain after long screen sessions.")
	}
	return m
}

func (g *DataGenerator) generateLines(max int) ([]customer.LineRecord, float64) {
	n := 1 + g.rng.Intn(max)
	lines := make([]customer.LineRecord, 0, n)
	var total float64
	for i := 0; i < n; i++ {
		p := products[g.rng.Intn(len(products))]
		qty := 1 + g.rng.Intn(2)
		line := customer.LineRecord{
			Name:     customer.Ptr(p.name),
			SKU:      customer.Ptr(p.sku),
			Quantity: customer.Ptr(qty),
		}
		amount := p.price * float64(qty)
		if g.chance(0.25) {
			discount := float64(5*(1+g.rng.Intn(4))) / 100 * amount
			line.Discount = customer.Ptr(discount)
			line.DiscountCode = customer.Ptr(g.pick(discountCodes))
			amount -= discount
		}
		line.Total = customer.Ptr(amount)
		lines = append(lines, line)
		total += amount
	}
	return lines, total
}

func (g *DataGenerator) generateOrders(n int) []customer.OrderRecord {
	out := make([]customer.OrderRecord, 0, n)
	for i := 0; i < n; i++ {
		lines, total := g.generateLines(3)
		o := customer.OrderRecord{
			OrderID:      g.nextID("AKAV"),
			Total:        customer.Ptr(total),
			PurchaseDate: customer.Ptr(g.daysAgo(900)),
			TicketID:     customer.Ptr(fmt.Sprintf("T-%07d", g.rng.Intn(10000000))),
			Branch:       customer.Ptr(g.pick(branches)),
			Status:       customer.Ptr(g.pick(orderStatuses)),
			Lines:        lines,
		}
		if g.chance(0.2) {
			o.QuoteRef = customer.Ptr(g.nextID("COT"))
		}
		o.Payments = g.generatePayments(total, *o.PurchaseDate)
		out = append(out, o)
	}
	return out
}

// generatePayments splits total into one or two tenders whose amounts add up
// to the order total in cents.
func (g *DataGenerator) generatePayments(total float64, paidAt string) []customer.PaymentRecord {
	cents := int64(total*100 + 0.5)
	parts := []int64{cents}
	if cents > 100 && g.chance(0.3) {
		first := 1 + g.rng.Int63n(cents-1)
		parts = []int64{first, cents - first}
	}
	out := make([]customer.PaymentRecord, 0, len(parts))
	for _, c := range parts {
		method := g.pick(paymentMethods)
		p := customer.PaymentRecord{
			Method:    customer.Ptr(method),
			Amount:    customer.Ptr(float64(c) / 100),
			PaidAt:    customer.Ptr(paidAt),
			Reference: customer.Ptr(fmt.Sprintf("AUTH-%06d", g.rng.Intn(1000000))),
		}
		if method == "Credit card" {
			p.Installments = customer.Ptr([]int{1, 3, 6, 12}[g.rng.Intn(4)])
		}
		out = append(out, p)
	}
	return out
}

// generateReturns files returns against a few delivered orders. Each return
// reuses the first line of its order and is dated after the purchase.
func (g *DataGenerator) generateReturns(orders []customer.OrderRecord) []customer.ReturnRecord {
	out := []customer.ReturnRecord{}
	for _, o := range orders {
		if o.Status == nil || *o.Status != "Delivered" || !g.chance(0.2) {
			continue
		}
		bought, _ := time.Parse("2006-01-02", *o.PurchaseDate)
		line := o.Lines[0]
		out = append(out, customer.ReturnRecord{
			ReturnID:   g.nextID("DEV"),
			OrderID:    customer.Ptr(o.OrderID),
			ReturnDate: customer.Ptr(bought.AddDate(0, 0, 1+g.rng.Intn(30)).Format("2006-01-02")),
			Branch:     o.Branch,
			Reason:     customer.Ptr(g.pick(returnReasons)),
			Status:     customer.Ptr(g.pick(returnStatuses)),
			Total:      line.Total,
			Lines:      []customer.LineRecord{line},
		})
	}
	return out
}

func (g *DataGenerator) generateAppointments(n int) []customer.AppointmentRecord {
	out := make([]customer.AppointmentRecord, 0, n)
	for i := 0; i < n; i++ {
		start := g.timestamp(30)
		end, _ := time.Parse("2006-01-02T15:04:05", start)
		out = append(out, customer.AppointmentRecord{
			AppointmentID: g.nextID("CITA"),
			Type:          customer.Ptr(g.pick(apptTypes)),
			Status:        customer.Ptr(g.pick(apptStatuses)),
			Branch:        customer.Ptr(g.pick(branches)),
			Start:         customer.Ptr(start),
			End:           customer.Ptr(end.Add(30 * time.Minute).Format("2006-01-02T15:04:05")),
			Created:       customer.Ptr(g.daysAgo(60) + "T10:00:00"),
		})
	}
	return out
}

func (g *DataGenerator) generateQuotes(n int) []customer.QuoteRecord {
	out := make([]customer.QuoteRecord, 0, n)
	for i := 0; i < n; i++ {
		lines, total := g.generateLines(2)
		date := g.daysAgo(120)
		exp, _ := time.Parse("2006-01-02", date)
		out = append(out, customer.QuoteRecord{
			QuoteID:    g.nextID("COT"),
			Date:       customer.Ptr(date),
			Expiration: customer.Ptr(exp.AddDate(0, 0, 30).Format("2006-01-02")),
			Total:      customer.Ptr(total),
			Lines:      lines,
		})
	}
	return out
}

func (g *DataGenerator) generateSubscriptions(n int) []customer.SubscriptionRecord {
	out := make([]customer.SubscriptionRecord, 0, n)
	for i := 0; i < n; i++ {
		product := customer.SubscriptionProductRecord{
			SKU:      customer.Ptr("ACU-OAS6"),
			Quantity: customer.Ptr(1 + g.rng.Intn(2)),
		}
		for _, num := range []int{1, 2} {
			product.Attachments = append(product.Attachments, customer.AttachmentRecord{
				Number:   customer.Ptr(num),
				Name:     customer.Ptr("Acuvue Oasys"),
				Cylinder: customer.Ptr(-float64(g.rng.Intn(5)) / 4),
				Axis:     customer.Ptr(10 * g.rng.Intn(19)),
				Power:    customer.Ptr(float64(g.rng.Intn(25)-20) / 4),
			})
		}
		out = append(out, customer.SubscriptionRecord{
			SubscriptionID:  customer.Ptr(g.nextID("SUB")),
			Name:            customer.Ptr(fmt.Sprintf("Contact lenses %d", i+1)),
			Status:          customer.Ptr(g.pick(subStatuses)),
			Created:         customer.Ptr(g.daysAgo(365)),
			Frequency:       customer.Ptr(g.pick(frequencies)),
			CyclesCompleted: customer.Ptr(g.rng.Intn(12)),
			LastPurchase:    customer.Ptr(g.daysAgo(60)),
			NextPurchase:    customer.Ptr(g.now.AddDate(0, 0, 1+g.rng.Intn(60)).Format("2006-01-02")),
			Products:        []customer.SubscriptionProductRecord{product},
		})
	}
	return out
}

func (g *DataGenerator) generateCampaigns(n int) []customer.CampaignRecord {
	names := g.rng.Perm(len(campaignNames))
	if n > len(names) {
		n = len(names)
	}
	out := make([]customer.CampaignRecord, 0, n)
	for _, idx := range names[:n] {
		c := customer.CampaignRecord{
			Name:    campaignNames[idx],
			Journey: customer.Ptr(g.pick(journeys)),
		}
		for s := 1 + g.rng.Intn(3); s > 0; s-- {
			subject := fmt.Sprintf("%s: offers picked for you at %s", c.Name, g.pick(branches))
			sent := g.daysAgo(90)
			send := customer.SendRecord{
				Key:         customer.Ptr(g.nextID("SEND")),
				Channel:     customer.Ptr(g.pick(channels)),
				Subject:     customer.Ptr(truncate(subject, 40)),
				FullSubject: customer.Ptr(subject),
				SentDate:    customer.Ptr(sent),
				From:        customer.Ptr("marketing@example.com"),
			}
			for _, ev := range eventTypes[:1+g.rng.Intn(len(eventTypes))] {
				send.Events = append(send.Events, customer.SendEventRecord{
					Type: customer.Ptr(ev),
					At:   customer.Ptr(sent),
				})
			}
			c.Sends = append(c.Sends, send)
		}
		out = append(out, c)
	}
	return out
}

func (g *DataGenerator) generateRFM() *customer.RFMRecord {
	score := func() *string { return customer.Ptr(fmt.Sprintf("%d", 1+g.rng.Intn(5))) }
	label := func() *string { return customer.Ptr(g.pick(rfmLabels)) }
	r := &customer.RFMRecord{
		Sunglasses:      score(),
		SunglassesLabel: label(),
		Ophthalmic:      score(),
		OphthalmicLabel: label(),
	}
	if g.chance(0.5) {
		r.ContactLenses = score()
		r.ContactLensesLabel = label()
	}
	return r
}

// summarize derives the metrics record from the generated orders.
func (g *DataGenerator) summarize(orders []customer.OrderRecord) customer.MetricsRecord {
	m := customer.MetricsRecord{OrderCount: customer.Ptr(len(orders))}
	if len(orders) == 0 {
		return m
	}
	retail := &customer.CategoryTotals{}
	var total, ecommerce float64
	latest := ""
	for _, o := range orders {
		total += *o.Total
		if *o.PurchaseDate > latest {
			latest = *o.PurchaseDate
			m.LastBranch = o.Branch
		}
		for _, l := range o.Lines {
			switch productCategory(*l.SKU) {
			case "Sunglasses":
				retail.Sunglasses = add(retail.Sunglasses, *l.Total)
			case "Contact lenses":
				retail.ContactLenses = add(retail.ContactLenses, *l.Total)
			default:
				retail.Ophthalmic = add(retail.Ophthalmic, *l.Total)
			}
		}
	}
	if g.chance(0.4) {
		ecommerce = g.money(500, 5000)
		m.EcommerceTotal = customer.Ptr(ecommerce)
		m.EcommerceCategories = &customer.CategoryTotals{ContactLenses: customer.Ptr(ecommerce)}
	}
	last, _ := time.Parse("2006-01-02", latest)
	m.TotalSales = customer.Ptr(total + ecommerce)
	m.AvgTicket = customer.Ptr(total / float64(len(orders)))
	m.DaysSinceLastPurchase = customer.Ptr(int(g.now.Sub(last).Hours() / 24))
	m.LastCategory = customer.Ptr(g.pick(categories))
	m.RetailTotal = customer.Ptr(total)
	m.RetailCategories = retail
	return m
}

func productCategory(sku string) string {
	for _, p := range products {
		if p.sku == sku {
			return p.category
		}
	}
	return ""
}

func add(p *float64, v float64) *float64 {
	if p == nil {
		return customer.Ptr(v)
	}
	return customer.Ptr(*p + v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func asciiLower(s string) string {
	return strings.ToLower(strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u").Replace(s))
}
