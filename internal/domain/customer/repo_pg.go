package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// repoPG reads the 360 tables created by migrations/001_customer360.sql.
// Nested structures (lines, products, sends, indicator maps) live in JSONB
// columns and are decoded here.
type repoPG struct{ db queryable }

// NewRepoPG returns a Backend backed by a pgx pool.
func NewRepoPG(pool *pgxpool.Pool) Backend {
	return &repoPG{db: pool}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// Profile resolves either a primary reference (pos id, contact key) or a
// unified id to the unified profile.
func (r *repoPG) Profile(ctx context.Context, key string) (*ProfileRecord, error) {
	var p ProfileRecord
	err := r.db.QueryRow(ctx, `
		SELECT unified_id, first_name, last_name, paternal_surname, maternal_surname,
			birth_date, gender, postal_code, email, phone, pos_id
		FROM customer_profile
		WHERE unified_id = $1 OR record_ref = $1
		LIMIT 1`, key).Scan(
		&p.UnifiedID, &p.FirstName, &p.LastName, &p.PaternalSurname, &p.MaternalSurname,
		&p.BirthDate, &p.Gender, &p.PostalCode, &p.Email, &p.Phone, &p.PosID)
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", notFound(err))
	}
	return &p, nil
}

func (r *repoPG) Metrics(ctx context.Context, unifiedID string) (*MetricsRecord, error) {
	var m MetricsRecord
	var retail, ecommerce []byte
	err := r.db.QueryRow(ctx, `
		SELECT total_sales, order_count, avg_ticket, days_since_last_purchase,
			last_branch, last_category, retail_total, retail_categories,
			ecommerce_total, ecommerce_categories
		FROM customer_metrics WHERE unified_id = $1`, unifiedID).Scan(
		&m.TotalSales, &m.OrderCount, &m.AvgTicket, &m.DaysSinceLastPurchase,
		&m.LastBranch, &m.LastCategory, &m.RetailTotal, &retail,
		&m.EcommerceTotal, &ecommerce)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", notFound(err))
	}
	if err := decodeJSON(retail, &m.RetailCategories); err != nil {
		return nil, fmt.Errorf("decode retail categories: %w", err)
	}
	if err := decodeJSON(ecommerce, &m.EcommerceCategories); err != nil {
		return nil, fmt.Errorf("decode ecommerce categories: %w", err)
	}
	return &m, nil
}

func (r *repoPG) Medical(ctx context.Context, key string) (*MedicalRecord, error) {
	var m MedicalRecord
	var antecedents, diagnoses, drivers, questions, prescriptions, family []byte
	err := r.db.QueryRow(ctx, `
		SELECT mr.antecedents, mr.diagnoses, mr.notes, mr.visual_drivers, mr.power_questions,
			mr.prescriptions, mr.family_relations, mr.last_diagnosis_date, mr.last_exam_date
		FROM medical_record mr
		JOIN customer_profile cp ON cp.unified_id = mr.unified_id
		WHERE cp.unified_id = $1 OR cp.record_ref = $1
		LIMIT 1`, key).Scan(
		&antecedents, &diagnoses, &m.Notes, &drivers, &questions,
		&prescriptions, &family, &m.LastDiagnosisDate, &m.LastExamDate)
	if err != nil {
		return nil, fmt.Errorf("query medical record: %w", notFound(err))
	}
	for _, d := range []struct {
		raw []byte
		dst any
	}{
		{antecedents, &m.Antecedents},
		{diagnoses, &m.Diagnoses},
		{drivers, &m.VisualDrivers},
		{questions, &m.PowerQuestions},
		{prescriptions, &m.Prescriptions},
		{family, &m.FamilyRelations},
	} {
		if err := decodeJSON(d.raw, d.dst); err != nil {
			return nil, fmt.Errorf("decode medical record: %w", err)
		}
	}
	return &m, nil
}

func (r *repoPG) Orders(ctx context.Context, unifiedID string) ([]OrderRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT order_id, total, purchase_date, ticket_id, branch, quote_ref, status, lines, payments
		FROM customer_order WHERE unified_id = $1
		ORDER BY purchase_date DESC NULLS LAST`, unifiedID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var items []OrderRecord
	for rows.Next() {
		var o OrderRecord
		var lines, payments []byte
		if err := rows.Scan(&o.OrderID, &o.Total, &o.PurchaseDate, &o.TicketID,
			&o.Branch, &o.QuoteRef, &o.Status, &lines, &payments); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if err := decodeJSON(lines, &o.Lines); err != nil {
			return nil, fmt.Errorf("decode order lines: %w", err)
		}
		if err := decodeJSON(payments, &o.Payments); err != nil {
			return nil, fmt.Errorf("decode order payments: %w", err)
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *repoPG) Appointments(ctx context.Context, unifiedID string) ([]AppointmentRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT appointment_id, type, status, branch, start_at, end_at, created_at
		FROM appointment WHERE unified_id = $1
		ORDER BY start_at DESC NULLS LAST`, unifiedID)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var items []AppointmentRecord
	for rows.Next() {
		var a AppointmentRecord
		if err := rows.Scan(&a.AppointmentID, &a.Type, &a.Status, &a.Branch,
			&a.Start, &a.End, &a.Created); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) Quotes(ctx context.Context, unifiedID string) ([]QuoteRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT quote_id, quote_date, expiration_date, total, lines
		FROM quote WHERE unified_id = $1
		ORDER BY quote_date DESC NULLS LAST`, unifiedID)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	var items []QuoteRecord
	for rows.Next() {
		var q QuoteRecord
		var lines []byte
		if err := rows.Scan(&q.QuoteID, &q.Date, &q.Expiration, &q.Total, &lines); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		if err := decodeJSON(lines, &q.Lines); err != nil {
			return nil, fmt.Errorf("decode quote lines: %w", err)
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

func (r *repoPG) Subscriptions(ctx context.Context, unifiedID string) ([]SubscriptionRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT subscription_id, name, status, created_at, frequency, cycles_completed,
			last_purchase, next_purchase, products
		FROM subscription WHERE unified_id = $1
		ORDER BY created_at DESC NULLS LAST`, unifiedID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var items []SubscriptionRecord
	for rows.Next() {
		var s SubscriptionRecord
		var products []byte
		if err := rows.Scan(&s.SubscriptionID, &s.Name, &s.Status, &s.Created, &s.Frequency,
			&s.CyclesCompleted, &s.LastPurchase, &s.NextPurchase, &products); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if err := decodeJSON(products, &s.Products); err != nil {
			return nil, fmt.Errorf("decode subscription products: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) Campaigns(ctx context.Context, unifiedID string) ([]CampaignRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name, journey, sends
		FROM campaign WHERE unified_id = $1
		ORDER BY name`, unifiedID)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	var items []CampaignRecord
	for rows.Next() {
		var c CampaignRecord
		var sends []byte
		if err := rows.Scan(&c.Name, &c.Journey, &sends); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		if err := decodeJSON(sends, &c.Sends); err != nil {
			return nil, fmt.Errorf("decode campaign sends: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *repoPG) Scores(ctx context.Context, unifiedID string) (*ScoreRecord, error) {
	var s ScoreRecord
	var retail, ecommerce []byte
	err := r.db.QueryRow(ctx, `
		SELECT click_propensity, open_propensity, rfm_retail, rfm_ecommerce
		FROM marketing_score WHERE unified_id = $1`, unifiedID).Scan(
		&s.ClickPropensity, &s.OpenPropensity, &retail, &ecommerce)
	if err != nil {
		return nil, fmt.Errorf("query marketing scores: %w", notFound(err))
	}
	if err := decodeJSON(retail, &s.RFMRetail); err != nil {
		return nil, fmt.Errorf("decode retail rfm: %w", err)
	}
	if err := decodeJSON(ecommerce, &s.RFMEcommerce); err != nil {
		return nil, fmt.Errorf("decode ecommerce rfm: %w", err)
	}
	return &s, nil
}

// Returns lists the product returns of the customer behind a primary
// reference or unified id, newest first.
func (r *repoPG) Returns(ctx context.Context, key string) ([]ReturnRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pr.return_id, pr.order_id, pr.return_date, pr.branch, pr.reason,
			pr.status, pr.total, pr.lines
		FROM product_return pr
		JOIN customer_profile cp ON cp.unified_id = pr.unified_id
		WHERE cp.unified_id = $1 OR cp.record_ref = $1
		ORDER BY pr.return_date DESC NULLS LAST`, key)
	if err != nil {
		return nil, fmt.Errorf("query returns: %w", err)
	}
	defer rows.Close()

	var items []ReturnRecord
	for rows.Next() {
		var rr ReturnRecord
		var lines []byte
		if err := rows.Scan(&rr.ReturnID, &rr.OrderID, &rr.ReturnDate, &rr.Branch,
			&rr.Reason, &rr.Status, &rr.Total, &lines); err != nil {
			return nil, fmt.Errorf("scan return: %w", err)
		}
		if err := decodeJSON(lines, &rr.Lines); err != nil {
			return nil, fmt.Errorf("decode return lines: %w", err)
		}
		items = append(items, rr)
	}
	return items, rows.Err()
}
