package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pyshop/pyshop-backend/pkg/enums"
)

// Cart is owned by exactly one of UserID or SessionToken. The partial unique
// indexes keep at most one active cart per owner; get-or-create relies on them.
type Cart struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID       *uuid.UUID       `gorm:"column:user_id;type:uuid;uniqueIndex:uidx_carts_active_user,where:status = 'active'"`
	SessionToken *string          `gorm:"column:session_token;type:text;uniqueIndex:uidx_carts_active_session,where:status = 'active'"`
	Status       enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	ExpiresAt    *time.Time       `gorm:"column:expires_at"`
	StatusSetAt  *time.Time       `gorm:"column:status_set_at"`
	Items        []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
