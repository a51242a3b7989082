package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/pyshop/pyshop-backend/pkg/db/models"
	"github.com/pyshop/pyshop-backend/pkg/types"
)

// ProductDTO is the transport shape for catalog reads.
type ProductDTO struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
	PriceCents int       `json:"price_cents"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProductListResult bundles a product page with its continuation cursor.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func FromModel(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	return &ProductDTO{
		ID:         p.ID,
		Name:       p.Name,
		Price:      types.FormatCents(p.PriceCents),
		PriceCents: p.PriceCents,
		IsActive:   p.IsActive,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
