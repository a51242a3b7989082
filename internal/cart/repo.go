package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pyshop/pyshop-backend/pkg/db/models"
	"github.com/pyshop/pyshop-backend/pkg/enums"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// lockForUpdate adds a row lock on dialects that support it. SQLite, used in
// tests, serializes writers on its own.
func (r *Repository) lockForUpdate(q *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func ownerClause(q *gorm.DB, owner Owner) *gorm.DB {
	if owner.IsUser() {
		return q.Where("user_id = ?", owner.UserID())
	}
	return q.Where("session_token = ?", owner.SessionToken())
}

// FindActive loads the owner's active cart with items, taking a row lock when
// forUpdate is set. Time-based expiry is the caller's concern.
func (r *Repository) FindActive(ctx context.Context, owner Owner, forUpdate bool) (*models.Cart, error) {
	q := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("status = ?", enums.CartStatusActive)
	q = ownerClause(q, owner)
	if forUpdate {
		q = r.lockForUpdate(q)
	}

	var cart models.Cart
	if err := q.First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// InsertActive inserts an active cart for the owner. A concurrent insert for
// the same owner lands on the partial unique index and is silently skipped, so
// callers must re-fetch to learn which row won.
func (r *Repository) InsertActive(ctx context.Context, owner Owner, expiresAt *time.Time) error {
	cart := models.Cart{
		Status:    enums.CartStatusActive,
		ExpiresAt: expiresAt,
	}
	if owner.IsUser() {
		id := owner.UserID()
		cart.UserID = &id
	} else {
		token := owner.SessionToken()
		cart.SessionToken = &token
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&cart).Error
}

// SetStatus moves a cart out of the active state and stamps the transition.
func (r *Repository) SetStatus(ctx context.Context, cartID uuid.UUID, status enums.CartStatus, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"status":        status,
			"status_set_at": at,
		}).Error
}

// FindItem loads a single item scoped to the cart.
func (r *Repository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ? AND id = ?", cartID, itemID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByProduct loads the cart line for a product, if any.
func (r *Repository) FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a new cart line.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItemQuantity sets the quantity on an existing line.
func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

// UpdateItem saves quantity and price snapshot on an existing line.
func (r *Repository) UpdateItem(ctx context.Context, itemID uuid.UUID, quantity, unitPriceCents int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"quantity":         quantity,
			"unit_price_cents": unitPriceCents,
		}).Error
}

// DeleteItem removes a line scoped to the cart and reports whether it existed.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("cart_id = ? AND id = ?", cartID, itemID).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteItems removes every line in the cart.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

// ListItems returns items belonging to a cart in insertion order.
func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// QuantitySum returns the total quantity across all lines of the cart.
func (r *Repository) QuantitySum(ctx context.Context, cartID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

// ExpireOverdue marks active session carts whose TTL has lapsed. Returns the
// number of carts transitioned.
func (r *Repository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("status = ? AND session_token IS NOT NULL AND expires_at IS NOT NULL AND expires_at <= ?",
			enums.CartStatusActive, now).
		Updates(map[string]any{
			"status":        enums.CartStatusExpired,
			"status_set_at": now,
		})
	return result.RowsAffected, result.Error
}

// DeleteRetired removes expired/converted carts whose transition is older than
// the cutoff. Items go with them via the FK cascade; sqlite tests rely on the
// explicit child delete.
func (r *Repository) DeleteRetired(ctx context.Context, cutoff time.Time) (int64, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("status IN ? AND status_set_at IS NOT NULL AND status_set_at <= ?",
			[]enums.CartStatus{enums.CartStatusExpired, enums.CartStatusConverted}, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.db.WithContext(ctx).
		Where("cart_id IN ?", ids).
		Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.Cart{})
	return result.RowsAffected, result.Error
}
