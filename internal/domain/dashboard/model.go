package dashboard

import (
	"encoding/json"
	"slices"
)

// NotAvailable is the display value for absent optional text fields.
const NotAvailable = "N/A"

// NotApplicable is the score label used when the scoring service sent none.
const NotApplicable = "Not Applicable"

// Tab identifies one of the dashboard tabs.
type Tab string

const (
	TabRecord        Tab = "record"
	TabOrders        Tab = "orders"
	TabAppointments  Tab = "appointments"
	TabQuotes        Tab = "quotes"
	TabSubscriptions Tab = "subscriptions"
	TabCampaigns     Tab = "campaigns"
	TabReturns       Tab = "returns"
)

// Tabs lists every tab in display order.
var Tabs = []Tab{TabRecord, TabOrders, TabAppointments, TabQuotes, TabSubscriptions, TabCampaigns, TabReturns}

// InitialTab is the tab a fresh subject opens on.
const InitialTab = TabRecord

func validTab(t Tab) bool { return slices.Contains(Tabs, t) }

// ListName identifies an expandable list.
type ListName string

const (
	ListOrders        ListName = "orders"
	ListQuotes        ListName = "quotes"
	ListSubscriptions ListName = "subscriptions"
	ListCampaigns     ListName = "campaigns"
	ListSends         ListName = "sends"
	ListReturns       ListName = "returns"
)

// Section identifies a collapsible block of the medical record tab.
type Section string

const (
	SectionHistory        Section = "history"
	SectionVisualDriver   Section = "visual_driver"
	SectionPowerQuestions Section = "power_questions"
	SectionPrescriptions  Section = "prescriptions"
	SectionFamily         Section = "family"
)

// Sections lists the medical record sections in display order.
var Sections = []Section{SectionHistory, SectionVisualDriver, SectionPowerQuestions, SectionPrescriptions, SectionFamily}

// Money keeps the numeric value next to its localized rendering.
type Money struct {
	Amount  float64 `json:"amount"`
	Display string  `json:"display"`
}

// ItemUI is the expand/collapse state of a list row. The icon and CSS
// classes are computed from Expanded on every read.
type ItemUI struct {
	Expanded bool
	block    string
}

func newItemUI(block string) ItemUI { return ItemUI{block: block} }

func (u ItemUI) ChevronIcon() string {
	if u.Expanded {
		return "utility:chevronup"
	}
	return "utility:chevrondown"
}

func (u ItemUI) ChevronClass() string {
	if u.Expanded {
		return "toggle-icon rotate"
	}
	return "toggle-icon"
}

func (u ItemUI) DetailsClass() string {
	if u.Expanded {
		return u.block + " expanded"
	}
	return u.block + " collapsed"
}

func (u ItemUI) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Expanded     bool   `json:"expanded"`
		ChevronIcon  string `json:"chevron_icon"`
		ChevronClass string `json:"chevron_class"`
		DetailsClass string `json:"details_class"`
	}{u.Expanded, u.ChevronIcon(), u.ChevronClass(), u.DetailsClass()})
}

// CSS blocks for each list's detail panel.
const (
	blockOrder        = "orden-details"
	blockQuote        = "cotizacion-productos"
	blockSubscription = "suscripcion-details"
	blockCampaign     = "campana-details"
	blockSend         = "envio-details"
	blockReturn       = "devolucion-details"
)

type Profile struct {
	UnifiedID  string `json:"unified_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	PostalCode string `json:"postal_code"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	PosID      string `json:"pos_id"`
}

type CategoryBreakdown struct {
	Sunglasses    Money `json:"sunglasses"`
	ContactLenses Money `json:"contact_lenses"`
	Ophthalmic    Money `json:"ophthalmic"`
}

type Metrics struct {
	TotalSales            Money             `json:"total_sales"`
	OrderCount            int               `json:"order_count"`
	AvgTicket             Money             `json:"avg_ticket"`
	DaysSinceLastPurchase int               `json:"days_since_last_purchase"`
	LastBranch            string            `json:"last_branch"`
	LastCategory          string            `json:"last_category"`
	RetailTotal           Money             `json:"retail_total"`
	RetailCategories      CategoryBreakdown `json:"retail_categories"`
	EcommerceTotal        Money             `json:"ecommerce_total"`
	EcommerceCategories   CategoryBreakdown `json:"ecommerce_categories"`
}

type Prescription struct {
	Eye      string  `json:"eye"`
	Sphere   float64 `json:"sphere"`
	Cylinder float64 `json:"cylinder"`
	Axis     int     `json:"axis"`
	Addition float64 `json:"addition"`
	Date     string  `json:"date"`
}

type FamilyRelation struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	UnifiedID    string `json:"unified_id"`
}

type Medical struct {
	History           []string          `json:"history"`
	Diagnoses         []string          `json:"diagnoses"`
	Notes             string            `json:"notes"`
	VisualDrivers     map[string]string `json:"visual_drivers"`
	PowerQuestions    map[string]string `json:"power_questions"`
	Prescriptions     []Prescription    `json:"prescriptions"`
	FamilyRelations   []FamilyRelation  `json:"family_relations"`
	LastDiagnosisDate string            `json:"last_diagnosis_date"`
	LastExamDate      string            `json:"last_exam_date"`
}

type Line struct {
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	Quantity     int    `json:"quantity"`
	Discount     Money  `json:"discount"`
	DiscountCode string `json:"discount_code"`
	Total        Money  `json:"total"`
}

type Payment struct {
	Method       string `json:"method"`
	Amount       Money  `json:"amount"`
	PaidAt       string `json:"paid_at"`
	Reference    string `json:"reference"`
	Installments int    `json:"installments"`
}

type Order struct {
	ID           string    `json:"id"`
	Total        Money     `json:"total"`
	PurchaseDate string    `json:"purchase_date"`
	TicketID     string    `json:"ticket_id"`
	Branch       string    `json:"branch"`
	QuoteRef     string    `json:"quote_ref"`
	Status       string    `json:"status"`
	Lines        []Line    `json:"lines"`
	Payments     []Payment `json:"payments"`
	UI           ItemUI    `json:"ui"`
}

type Return struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Date    string `json:"date"`
	Branch  string `json:"branch"`
	Reason  string `json:"reason"`
	Status  string `json:"status"`
	Total   Money  `json:"total"`
	Lines   []Line `json:"lines"`
	UI      ItemUI `json:"ui"`
}

type Appointment struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Branch  string `json:"branch"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Created string `json:"created"`
}

type Quote struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	Expiration string `json:"expiration"`
	Total      Money  `json:"total"`
	Lines      []Line `json:"lines"`
	UI         ItemUI `json:"ui"`
}

type Attachment struct {
	Number   int     `json:"number"`
	Name     string  `json:"name"`
	Cylinder float64 `json:"cylinder"`
	Axis     int     `json:"axis"`
	Power    float64 `json:"power"`
}

type SubscriptionProduct struct {
	SKU         string       `json:"sku"`
	Quantity    int          `json:"quantity"`
	Attachments []Attachment `json:"attachments"`
}

type Subscription struct {
	Key             string                `json:"key"`
	Name            string                `json:"name"`
	Status          string                `json:"status"`
	Created         string                `json:"created"`
	Frequency       string                `json:"frequency"`
	CyclesCompleted int                   `json:"cycles_completed"`
	LastPurchase    string                `json:"last_purchase"`
	NextPurchase    string                `json:"next_purchase"`
	Products        []SubscriptionProduct `json:"products"`
	UI              ItemUI                `json:"ui"`
}

type SendEvent struct {
	Type string `json:"type"`
	At   string `json:"at"`
}

type Send struct {
	Key         string      `json:"key"`
	Channel     string      `json:"channel"`
	Icon        string      `json:"icon"`
	Subject     string      `json:"subject"`
	FullSubject string      `json:"full_subject"`
	SentDate    string      `json:"sent_date"`
	From        string      `json:"from"`
	Events      []SendEvent `json:"events"`
	UI          ItemUI      `json:"ui"`
}

type Campaign struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Journey string `json:"journey"`
	Sends   []Send `json:"sends"`
	UI      ItemUI `json:"ui"`
}

type RFMScore struct {
	Score string `json:"score"`
	Label string `json:"label"`
}

type RFM struct {
	Sunglasses    RFMScore `json:"sunglasses"`
	ContactLenses RFMScore `json:"contact_lenses"`
	Ophthalmic    RFMScore `json:"ophthalmic"`
}

type Scores struct {
	ClickPropensity string `json:"click_propensity"`
	OpenPropensity  string `json:"open_propensity"`
	Retail          RFM    `json:"rfm_retail"`
	Ecommerce       RFM    `json:"rfm_ecommerce"`
}

// Model is the presentation model for one subject. Each top-level field is
// a fragment written by exactly one feed.
//
// Published slices and maps are never modified in place: merges assign new
// values and toggles copy the affected slice first, so a Snapshot can share
// them without copying.
type Model struct {
	Profile       Profile        `json:"profile"`
	Metrics       Metrics        `json:"metrics"`
	Medical       Medical        `json:"medical"`
	Orders        []Order        `json:"orders"`
	Appointments  []Appointment  `json:"appointments"`
	Quotes        []Quote        `json:"quotes"`
	Subscriptions []Subscription `json:"subscriptions"`
	Campaigns     []Campaign     `json:"campaigns"`
	Scores        Scores         `json:"scores"`
	Returns       []Return       `json:"returns"`
}

// Fragment names a top-level field of Model.
type Fragment string

const (
	FragmentProfile       Fragment = "profile"
	FragmentMetrics       Fragment = "metrics"
	FragmentMedical       Fragment = "medical"
	FragmentOrders        Fragment = "orders"
	FragmentAppointments  Fragment = "appointments"
	FragmentQuotes        Fragment = "quotes"
	FragmentSubscriptions Fragment = "subscriptions"
	FragmentCampaigns     Fragment = "campaigns"
	FragmentScores        Fragment = "scores"
	FragmentReturns       Fragment = "returns"
)

func emptyRFM() RFM {
	na := RFMScore{Score: NotAvailable, Label: NotApplicable}
	return RFM{Sunglasses: na, ContactLenses: na, Ophthalmic: na}
}

// NewModel returns a model with every fragment at its default.
func NewModel(f *Formatter) Model {
	zero := f.Money(0)
	cats := CategoryBreakdown{Sunglasses: zero, ContactLenses: zero, Ophthalmic: zero}
	return Model{
		Profile: Profile{
			Gender:     NotAvailable,
			PostalCode: NotAvailable,
			Email:      NotAvailable,
			Phone:      NotAvailable,
			PosID:      NotAvailable,
		},
		Metrics: Metrics{
			TotalSales:          zero,
			AvgTicket:           zero,
			LastBranch:          NotAvailable,
			LastCategory:        NotAvailable,
			RetailTotal:         zero,
			RetailCategories:    cats,
			EcommerceTotal:      zero,
			EcommerceCategories: cats,
		},
		Medical: Medical{
			History:           []string{},
			Diagnoses:         []string{},
			VisualDrivers:     map[string]string{},
			PowerQuestions:    map[string]string{},
			Prescriptions:     []Prescription{},
			FamilyRelations:   []FamilyRelation{},
			LastDiagnosisDate: f.NoDate(),
			LastExamDate:      f.NoDate(),
		},
		Orders:        []Order{},
		Appointments:  []Appointment{},
		Quotes:        []Quote{},
		Subscriptions: []Subscription{},
		Campaigns:     []Campaign{},
		Scores: Scores{
			ClickPropensity: NotAvailable,
			OpenPropensity:  NotAvailable,
			Retail:          emptyRFM(),
			Ecommerce:       emptyRFM(),
		},
		Returns: []Return{},
	}
}
