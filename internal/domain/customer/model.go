package customer

import "time"

// ProfileRecord is the unified-profile row returned by the profile lookup.
// Field names follow the data-cloud object the dashboard was modelled on.
type ProfileRecord struct {
	UnifiedID       string     `db:"unified_id" json:"unified_id"`
	FirstName       *string    `db:"first_name" json:"first_name,omitempty"`
	LastName        *string    `db:"last_name" json:"last_name,omitempty"`
	PaternalSurname *string    `db:"paternal_surname" json:"paternal_surname,omitempty"`
	MaternalSurname *string    `db:"maternal_surname" json:"maternal_surname,omitempty"`
	BirthDate       *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender          *string    `db:"gender" json:"gender,omitempty"`
	PostalCode      *string    `db:"postal_code" json:"postal_code,omitempty"`
	Email           *string    `db:"email" json:"email,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	PosID           *string    `db:"pos_id" json:"pos_id,omitempty"`
}

// CategoryTotals holds purchase totals per product category.
type CategoryTotals struct {
	Sunglasses    *float64 `json:"sunglasses,omitempty"`
	ContactLenses *float64 `json:"contact_lenses,omitempty"`
	Ophthalmic    *float64 `json:"ophthalmic,omitempty"`
}

// MetricsRecord aggregates purchase behaviour for one unified profile.
type MetricsRecord struct {
	TotalSales            *float64        `db:"total_sales" json:"total_sales,omitempty"`
	OrderCount            *int            `db:"order_count" json:"order_count,omitempty"`
	AvgTicket             *float64        `db:"avg_ticket" json:"avg_ticket,omitempty"`
	DaysSinceLastPurchase *int            `db:"days_since_last_purchase" json:"days_since_last_purchase,omitempty"`
	LastBranch            *string         `db:"last_branch" json:"last_branch,omitempty"`
	LastCategory          *string         `db:"last_category" json:"last_category,omitempty"`
	RetailTotal           *float64        `db:"retail_total" json:"retail_total,omitempty"`
	RetailCategories      *CategoryTotals `db:"retail_categories" json:"retail_categories,omitempty"`
	EcommerceTotal        *float64        `db:"ecommerce_total" json:"ecommerce_total,omitempty"`
	EcommerceCategories   *CategoryTotals `db:"ecommerce_categories" json:"ecommerce_categories,omitempty"`
}

// PrescriptionRecord is one refraction result ("graduación").
type PrescriptionRecord struct {
	Eye      *string  `json:"eye,omitempty"`
	Sphere   *float64 `json:"sphere,omitempty"`
	Cylinder *float64 `json:"cylinder,omitempty"`
	Axis     *int     `json:"axis,omitempty"`
	Addition *float64 `json:"addition,omitempty"`
	Date     *string  `json:"date,omitempty"`
}

// FamilyRelationRecord links the subject to a relative's profile.
type FamilyRelationRecord struct {
	Name         *string `json:"name,omitempty"`
	Relationship *string `json:"relationship,omitempty"`
	UnifiedID    *string `json:"unified_id,omitempty"`
}

// MedicalRecord is the optometry record. Antecedents and Diagnoses are
// indicator maps: the backend sends "1"/"0", booleans, or nothing.
type MedicalRecord struct {
	Antecedents       map[string]any         `db:"antecedents" json:"antecedents,omitempty"`
	Diagnoses         map[string]any         `db:"diagnoses" json:"diagnoses,omitempty"`
	Notes             *string                `db:"notes" json:"notes,omitempty"`
	VisualDrivers     map[string]string      `db:"visual_drivers" json:"visual_drivers,omitempty"`
	PowerQuestions    map[string]string      `db:"power_questions" json:"power_questions,omitempty"`
	Prescriptions     []PrescriptionRecord   `db:"prescriptions" json:"prescriptions,omitempty"`
	FamilyRelations   []FamilyRelationRecord `db:"family_relations" json:"family_relations,omitempty"`
	LastDiagnosisDate *string                `db:"last_diagnosis_date" json:"last_diagnosis_date,omitempty"`
	LastExamDate      *string                `db:"last_exam_date" json:"last_exam_date,omitempty"`
}

// LineRecord is a product line on an order or quote.
type LineRecord struct {
	Name         *string  `json:"name,omitempty"`
	SKU          *string  `json:"sku,omitempty"`
	Quantity     *int     `json:"quantity,omitempty"`
	Discount     *float64 `json:"discount,omitempty"`
	DiscountCode *string  `json:"discount_code,omitempty"`
	Total        *float64 `json:"total,omitempty"`
}

// PaymentRecord is one tender applied to an order.
type PaymentRecord struct {
	Method       *string  `json:"method,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	PaidAt       *string  `json:"paid_at,omitempty"`
	Reference    *string  `json:"reference,omitempty"`
	Installments *int     `json:"installments,omitempty"`
}

type OrderRecord struct {
	OrderID      string          `db:"order_id" json:"order_id"`
	Total        *float64        `db:"total" json:"total,omitempty"`
	PurchaseDate *string         `db:"purchase_date" json:"purchase_date,omitempty"`
	TicketID     *string         `db:"ticket_id" json:"ticket_id,omitempty"`
	Branch       *string         `db:"branch" json:"branch,omitempty"`
	QuoteRef     *string         `db:"quote_ref" json:"quote_ref,omitempty"`
	Status       *string         `db:"status" json:"status,omitempty"`
	Lines        []LineRecord    `db:"lines" json:"lines,omitempty"`
	Payments     []PaymentRecord `db:"payments" json:"payments,omitempty"`
}

// ReturnRecord is a product return ("devolución") filed against an order.
type ReturnRecord struct {
	ReturnID   string       `db:"return_id" json:"return_id"`
	OrderID    *string      `db:"order_id" json:"order_id,omitempty"`
	ReturnDate *string      `db:"return_date" json:"return_date,omitempty"`
	Branch     *string      `db:"branch" json:"branch,omitempty"`
	Reason     *string      `db:"reason" json:"reason,omitempty"`
	Status     *string      `db:"status" json:"status,omitempty"`
	Total      *float64     `db:"total" json:"total,omitempty"`
	Lines      []LineRecord `db:"lines" json:"lines,omitempty"`
}

type AppointmentRecord struct {
	AppointmentID string  `db:"appointment_id" json:"appointment_id"`
	Type          *string `db:"type" json:"type,omitempty"`
	Status        *string `db:"status" json:"status,omitempty"`
	Branch        *string `db:"branch" json:"branch,omitempty"`
	Start         *string `db:"start_at" json:"start,omitempty"`
	End           *string `db:"end_at" json:"end,omitempty"`
	Created       *string `db:"created_at" json:"created,omitempty"`
}

type QuoteRecord struct {
	QuoteID    string       `db:"quote_id" json:"quote_id"`
	Date       *string      `db:"quote_date" json:"date,omitempty"`
	Expiration *string      `db:"expiration_date" json:"expiration,omitempty"`
	Total      *float64     `db:"total" json:"total,omitempty"`
	Lines      []LineRecord `db:"lines" json:"lines,omitempty"`
}

// AttachmentRecord is a lens attached to a subscription product.
type AttachmentRecord struct {
	Number   *int     `json:"number,omitempty"`
	Name     *string  `json:"name,omitempty"`
	Cylinder *float64 `json:"cylinder,omitempty"`
	Axis     *int     `json:"axis,omitempty"`
	Power    *float64 `json:"power,omitempty"`
}

type SubscriptionProductRecord struct {
	SKU         *string            `json:"sku,omitempty"`
	Quantity    *int               `json:"quantity,omitempty"`
	Attachments []AttachmentRecord `json:"attachments,omitempty"`
}

type SubscriptionRecord struct {
	SubscriptionID  *string                     `db:"subscription_id" json:"subscription_id,omitempty"`
	Name            *string                     `db:"name" json:"name,omitempty"`
	Status          *string                     `db:"status" json:"status,omitempty"`
	Created         *string                     `db:"created_at" json:"created,omitempty"`
	Frequency       *string                     `db:"frequency" json:"frequency,omitempty"`
	CyclesCompleted *int                        `db:"cycles_completed" json:"cycles_completed,omitempty"`
	LastPurchase    *string                     `db:"last_purchase" json:"last_purchase,omitempty"`
	NextPurchase    *string                     `db:"next_purchase" json:"next_purchase,omitempty"`
	Products        []SubscriptionProductRecord `db:"products" json:"products,omitempty"`
}

type SendEventRecord struct {
	Type *string `json:"type,omitempty"`
	At   *string `json:"at,omitempty"`
}

type SendRecord struct {
	Key         *string           `json:"key,omitempty"`
	Channel     *string           `json:"channel,omitempty"`
	Subject     *string           `json:"subject,omitempty"`
	FullSubject *string           `json:"full_subject,omitempty"`
	SentDate    *string           `json:"sent_date,omitempty"`
	From        *string           `json:"from,omitempty"`
	Events      []SendEventRecord `json:"events,omitempty"`
}

type CampaignRecord struct {
	Name    string       `db:"name" json:"name"`
	Journey *string      `db:"journey" json:"journey,omitempty"`
	Sends   []SendRecord `db:"sends" json:"sends,omitempty"`
}

// RFMRecord carries the raw score and the externally assigned label per
// product category for one sales channel.
type RFMRecord struct {
	Sunglasses         *string `json:"sunglasses,omitempty"`
	ContactLenses      *string `json:"contact_lenses,omitempty"`
	Ophthalmic         *string `json:"ophthalmic,omitempty"`
	SunglassesLabel    *string `json:"sunglasses_label,omitempty"`
	ContactLensesLabel *string `json:"contact_lenses_label,omitempty"`
	OphthalmicLabel    *string `json:"ophthalmic_label,omitempty"`
}

type ScoreRecord struct {
	ClickPropensity *string    `db:"click_propensity" json:"click_propensity,omitempty"`
	OpenPropensity  *string    `db:"open_propensity" json:"open_propensity,omitempty"`
	RFMRetail       *RFMRecord `db:"rfm_retail" json:"rfm_retail,omitempty"`
	RFMEcommerce    *RFMRecord `db:"rfm_ecommerce" json:"rfm_ecommerce,omitempty"`
}
