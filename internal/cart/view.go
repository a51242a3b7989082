package cart

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pyshop/pyshop-backend/pkg/types"
)

// ItemDetail joins a cart line with the current catalog row. Available is
// false when the product has since been removed from the catalog.
type ItemDetail struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	ProductName       string
	Quantity          int
	UnitPriceCents    int
	CurrentPriceCents int
	Available         bool
	CreatedAt         time.Time
}

// ItemDetails loads cart lines joined with the catalog, oldest line first.
func (r *Repository) ItemDetails(ctx context.Context, cartID uuid.UUID) ([]ItemDetail, error) {
	type row struct {
		ID                uuid.UUID
		ProductID         uuid.UUID
		ProductName       *string
		Quantity          int
		UnitPriceCents    int
		CurrentPriceCents *int
		CreatedAt         time.Time
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Table("cart_items ci").
		Select("ci.id, ci.product_id, p.name AS product_name, ci.quantity, ci.unit_price_cents, p.price_cents AS current_price_cents, ci.created_at").
		Joins("LEFT JOIN products p ON p.id = ci.product_id").
		Where("ci.cart_id = ?", cartID).
		Order("ci.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	details := make([]ItemDetail, 0, len(rows))
	for _, r := range rows {
		d := ItemDetail{
			ID:             r.ID,
			ProductID:      r.ProductID,
			Quantity:       r.Quantity,
			UnitPriceCents: r.UnitPriceCents,
			CreatedAt:      r.CreatedAt,
		}
		if r.ProductName != nil {
			d.ProductName = *r.ProductName
		}
		if r.CurrentPriceCents != nil {
			d.CurrentPriceCents = *r.CurrentPriceCents
			d.Available = true
		}
		details = append(details, d)
	}
	return details, nil
}

// CartItemView is one line of the cart as presented to clients.
type CartItemView struct {
	ID           uuid.UUID `json:"id"`
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	Quantity     int       `json:"quantity"`
	UnitPrice    string    `json:"unit_price"`
	LineSubtotal string    `json:"line_subtotal"`
}

// CartView is the client-facing cart summary.
type CartView struct {
	ID            *uuid.UUID     `json:"id,omitempty"`
	Items         []CartItemView `json:"items"`
	TotalQuantity int            `json:"total_quantity"`
	Subtotal      string         `json:"subtotal"`
}

// ValidationItem reports one line of a price-drift check.
type ValidationItem struct {
	ItemID        uuid.UUID `json:"item_id"`
	ProductID     uuid.UUID `json:"product_id"`
	ProductName   string    `json:"product_name,omitempty"`
	Quantity      int       `json:"quantity"`
	SnapshotPrice string    `json:"snapshot_price"`
	CurrentPrice  string    `json:"current_price,omitempty"`
	PriceDelta    string    `json:"price_delta,omitempty"`
	Status        string    `json:"status"`
}

// Line statuses reported by Validate.
const (
	ValidationOK           = "ok"
	ValidationPriceChanged = "price_changed"
	ValidationUnavailable  = "unavailable"
)

// ValidationReport summarizes price drift across the cart.
type ValidationReport struct {
	Items   []ValidationItem `json:"items"`
	Changed bool             `json:"changed"`
}

// MergeResult describes the outcome of a session-to-user cart merge.
type MergeResult struct {
	Merged       bool      `json:"merged"`
	MovedLines   int       `json:"moved_lines"`
	ClampedLines int       `json:"clamped_lines"`
	Cart         *CartView `json:"cart"`
}

func emptyView() *CartView {
	return &CartView{
		Items:    []CartItemView{},
		Subtotal: types.FormatCents(0),
	}
}

func buildView(cartID uuid.UUID, details []ItemDetail) *CartView {
	id := cartID
	view := &CartView{
		ID:    &id,
		Items: make([]CartItemView, 0, len(details)),
	}
	subtotalCents := 0
	for _, d := range details {
		lineCents := d.UnitPriceCents * d.Quantity
		subtotalCents += lineCents
		view.TotalQuantity += d.Quantity
		view.Items = append(view.Items, CartItemView{
			ID:           d.ID,
			ProductID:    d.ProductID,
			ProductName:  d.ProductName,
			Quantity:     d.Quantity,
			UnitPrice:    types.FormatCents(d.UnitPriceCents),
			LineSubtotal: types.FormatCents(lineCents),
		})
	}
	view.Subtotal = types.FormatCents(subtotalCents)
	return view
}

func buildValidationReport(details []ItemDetail) *ValidationReport {
	report := &ValidationReport{Items: make([]ValidationItem, 0, len(details))}
	for _, d := range details {
		item := ValidationItem{
			ItemID:        d.ID,
			ProductID:     d.ProductID,
			ProductName:   d.ProductName,
			Quantity:      d.Quantity,
			SnapshotPrice: types.FormatCents(d.UnitPriceCents),
			Status:        ValidationOK,
		}
		switch {
		case !d.Available:
			item.Status = ValidationUnavailable
			report.Changed = true
		case d.CurrentPriceCents != d.UnitPriceCents:
			item.Status = ValidationPriceChanged
			item.CurrentPrice = types.FormatCents(d.CurrentPriceCents)
			item.PriceDelta = types.CentsDelta(d.UnitPriceCents, d.CurrentPriceCents)
			report.Changed = true
		default:
			item.CurrentPrice = types.FormatCents(d.CurrentPriceCents)
		}
		report.Items = append(report.Items, item)
	}
	return report
}
