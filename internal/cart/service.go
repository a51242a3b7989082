package cart

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	product "github.com/pyshop/pyshop-backend/internal/products"
	"github.com/pyshop/pyshop-backend/pkg/config"
	"github.com/pyshop/pyshop-backend/pkg/db"
	"github.com/pyshop/pyshop-backend/pkg/db/models"
	"github.com/pyshop/pyshop-backend/pkg/enums"
	pkgerrors "github.com/pyshop/pyshop-backend/pkg/errors"
	"github.com/pyshop/pyshop-backend/pkg/logger"
)

const conflictRetryDelay = 25 * time.Millisecond

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes cart operations for both anonymous sessions and
// authenticated users.
type Service interface {
	GetCart(ctx context.Context, owner Owner) (*CartView, error)
	AddItem(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*CartView, error)
	UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*CartView, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*CartView, error)
	Clear(ctx context.Context, owner Owner) (*CartView, error)
	Validate(ctx context.Context, owner Owner) (*ValidationReport, error)
	MergeOnLogin(ctx context.Context, userID uuid.UUID, sessionToken string) (*MergeResult, error)
}

// ServiceParams carries the service dependencies.
type ServiceParams struct {
	Runner   TxRunner
	Repo     *Repository
	Products *product.Repository
	Logger   *logger.Logger
	Config   config.CartConfig
}

type service struct {
	runner   TxRunner
	repo     *Repository
	products *product.Repository
	log      *logger.Logger
	cfg      config.CartConfig
}

// NewService validates dependencies and builds the cart service.
func NewService(params ServiceParams) (Service, error) {
	if params.Runner == nil {
		return nil, fmt.Errorf("cart service requires a transaction runner")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("cart service requires a repository")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("cart service requires a product repository")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("cart service requires a logger")
	}
	cfg := params.Config
	if cfg.MaxQtyPerItem <= 0 {
		cfg.MaxQtyPerItem = 99
	}
	if cfg.MaxItemsPerCart <= 0 {
		cfg.MaxItemsPerCart = 100
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 168 * time.Hour
	}
	return &service{
		runner:   params.Runner,
		repo:     params.Repo,
		products: params.Products,
		log:      params.Logger,
		cfg:      cfg,
	}, nil
}

func notFound(err error) bool {
	return stdErrors.Is(err, gorm.ErrRecordNotFound)
}

// isWriteConflict covers the races a single retry can win: two requests
// inserting the owner's active cart or the same product line at once, and
// serialization failures under Postgres.
func isWriteConflict(err error) bool {
	if err == nil || pkgerrors.As(err) != nil {
		return false
	}
	if db.IsUniqueViolation(err, "") {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "database is locked")
}

// runTx runs fn in a transaction with a single retry on write conflicts.
// A conflict that survives the retry surfaces as a retryable typed error.
func (s *service) runTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(conflictRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.runner.WithTx(ctx, fn); err != nil {
			if isWriteConflict(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if isWriteConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConcurrentConflict, err, "concurrent cart update")
	}
	return err
}

func (s *service) cartExpired(cart *models.Cart, now time.Time) bool {
	return cart.ExpiresAt != nil && !now.Before(*cart.ExpiresAt)
}

// retireExpired transitions a lapsed cart out of the active state and logs
// the event. Callers then treat the cart as absent.
func (s *service) retireExpired(ctx context.Context, repo *Repository, cart *models.Cart, now time.Time) error {
	if err := repo.SetStatus(ctx, cart.ID, enums.CartStatusExpired, now); err != nil {
		return err
	}
	s.log.Info(s.log.WithCartID(ctx, cart.ID.String()), "session cart expired lazily")
	return nil
}

// activeCartForWrite returns the owner's live cart, creating one when absent.
// The insert races through the partial unique index, so the re-fetch decides
// which row won.
func (s *service) activeCartForWrite(ctx context.Context, repo *Repository, owner Owner, now time.Time) (*models.Cart, error) {
	cart, err := repo.FindActive(ctx, owner, true)
	switch {
	case err == nil:
		if !s.cartExpired(cart, now) {
			return cart, nil
		}
		if err := s.retireExpired(ctx, repo, cart, now); err != nil {
			return nil, err
		}
	case !notFound(err):
		return nil, err
	}

	var expiresAt *time.Time
	if !owner.IsUser() {
		deadline := now.Add(s.cfg.SessionTTL)
		expiresAt = &deadline
	}
	if err := repo.InsertActive(ctx, owner, expiresAt); err != nil {
		return nil, err
	}
	cart, err = repo.FindActive(ctx, owner, true)
	if err != nil {
		if notFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrentConflict, err, "cart creation raced and lost")
		}
		return nil, err
	}
	if s.cartExpired(cart, now) {
		return nil, pkgerrors.New(pkgerrors.CodeCartExpired, "freshly resolved cart already expired")
	}
	return cart, nil
}

// activeCartIfAny returns the owner's live cart or nil when there is none.
// Lapsed carts are retired on the way.
func (s *service) activeCartIfAny(ctx context.Context, repo *Repository, owner Owner, forUpdate bool, now time.Time) (*models.Cart, error) {
	cart, err := repo.FindActive(ctx, owner, forUpdate)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if s.cartExpired(cart, now) {
		if err := s.retireExpired(ctx, repo, cart, now); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return cart, nil
}

func (s *service) viewFor(ctx context.Context, repo *Repository, cartID uuid.UUID) (*CartView, error) {
	details, err := repo.ItemDetails(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return buildView(cartID, details), nil
}

// GetCart returns the owner's cart contents. An absent or lapsed cart reads
// as empty; nothing is created on the read path.
func (s *service) GetCart(ctx context.Context, owner Owner) (*CartView, error) {
	cart, err := s.activeCartIfAny(ctx, s.repo, owner, false, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if cart == nil {
		return emptyView(), nil
	}
	view, err := s.viewFor(ctx, s.repo, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart items")
	}
	return view, nil
}

func (s *service) invalidQuantity(quantity int) error {
	return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity out of range").
		WithDetails(map[string]any{
			"quantity": quantity,
			"min":      1,
			"max":      s.cfg.MaxQtyPerItem,
		})
}

func (s *service) capacityExceeded(currentTotal, requestedTotal int) error {
	return pkgerrors.New(pkgerrors.CodeQuantityExceeded, "cart capacity exceeded").
		WithDetails(map[string]any{
			"current_total":   currentTotal,
			"requested_total": requestedTotal,
			"max":             s.cfg.MaxItemsPerCart,
		})
}

func (s *service) logClamp(ctx context.Context, cartID, productID uuid.UUID, requested int) {
	ctx = s.log.WithFields(ctx, map[string]any{
		"cart_id":    cartID.String(),
		"product_id": productID.String(),
		"requested":  requested,
		"kept":       s.cfg.MaxQtyPerItem,
		"dropped":    requested - s.cfg.MaxQtyPerItem,
	})
	s.log.Warn(ctx, "quantity clamped at per-item cap")
}

// AddItem puts quantity units of a product into the owner's cart, creating
// the cart on first write. Re-adding an existing product accumulates onto
// the line; the total never exceeds the per-item cap.
func (s *service) AddItem(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 1 || quantity > s.cfg.MaxQtyPerItem {
		return nil, s.invalidQuantity(quantity)
	}

	now := time.Now().UTC()
	var view *CartView
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		prod, err := s.products.WithTx(tx).FindByID(ctx, productID)
		if err != nil {
			if notFound(err) {
				return pkgerrors.New(pkgerrors.CodeProductNotFound, "product does not exist").
					WithDetails(map[string]any{"product_id": productID.String()})
			}
			return err
		}

		cart, err := s.activeCartForWrite(ctx, repo, owner, now)
		if err != nil {
			return err
		}

		existingQty := 0
		var existing *models.CartItem
		existing, err = repo.FindItemByProduct(ctx, cart.ID, productID)
		if err != nil && !notFound(err) {
			return err
		}
		if existing != nil {
			existingQty = existing.Quantity
		}

		newQty := existingQty + quantity
		if newQty > s.cfg.MaxQtyPerItem {
			s.logClamp(ctx, cart.ID, productID, newQty)
			newQty = s.cfg.MaxQtyPerItem
		}

		currentTotal, err := repo.QuantitySum(ctx, cart.ID)
		if err != nil {
			return err
		}
		requestedTotal := currentTotal - existingQty + newQty
		if requestedTotal > s.cfg.MaxItemsPerCart {
			return s.capacityExceeded(currentTotal, requestedTotal)
		}

		if existing == nil {
			err = repo.CreateItem(ctx, &models.CartItem{
				CartID:         cart.ID,
				ProductID:      productID,
				Quantity:       newQty,
				UnitPriceCents: prod.PriceCents,
			})
		} else if newQty != existingQty {
			err = repo.UpdateItemQuantity(ctx, existing.ID, newQty)
		}
		if err != nil {
			return err
		}

		view, err = s.viewFor(ctx, repo, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateItemQuantity replaces the quantity on an existing line. Quantities
// outside [1, max] are rejected; removal is an explicit operation.
func (s *service) UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 1 || quantity > s.cfg.MaxQtyPerItem {
		return nil, s.invalidQuantity(quantity)
	}

	now := time.Now().UTC()
	var view *CartView
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.activeCartIfAny(ctx, repo, owner, true, now)
		if err != nil {
			return err
		}
		if cart == nil {
			return pkgerrors.New(pkgerrors.CodeItemNotFound, "cart item not found")
		}

		item, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			if notFound(err) {
				return pkgerrors.New(pkgerrors.CodeItemNotFound, "cart item not found")
			}
			return err
		}

		currentTotal, err := repo.QuantitySum(ctx, cart.ID)
		if err != nil {
			return err
		}
		requestedTotal := currentTotal - item.Quantity + quantity
		if requestedTotal > s.cfg.MaxItemsPerCart {
			return s.capacityExceeded(currentTotal, requestedTotal)
		}

		if quantity != item.Quantity {
			if err := repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
				return err
			}
		}

		view, err = s.viewFor(ctx, repo, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveItem drops a line from the owner's cart.
func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*CartView, error) {
	now := time.Now().UTC()
	var view *CartView
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.activeCartIfAny(ctx, repo, owner, true, now)
		if err != nil {
			return err
		}
		if cart == nil {
			return pkgerrors.New(pkgerrors.CodeItemNotFound, "cart item not found")
		}

		removed, err := repo.DeleteItem(ctx, cart.ID, itemID)
		if err != nil {
			return err
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeItemNotFound, "cart item not found")
		}

		view, err = s.viewFor(ctx, repo, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Clear empties the owner's cart. Clearing an absent cart succeeds.
func (s *service) Clear(ctx context.Context, owner Owner) (*CartView, error) {
	now := time.Now().UTC()
	view := emptyView()
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.activeCartIfAny(ctx, repo, owner, true, now)
		if err != nil {
			return err
		}
		if cart == nil {
			return nil
		}
		if err := repo.DeleteItems(ctx, cart.ID); err != nil {
			return err
		}
		view, err = s.viewFor(ctx, repo, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Validate compares each line's price snapshot against the current catalog
// without mutating the cart.
func (s *service) Validate(ctx context.Context, owner Owner) (*ValidationReport, error) {
	cart, err := s.activeCartIfAny(ctx, s.repo, owner, false, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if cart == nil {
		return &ValidationReport{Items: []ValidationItem{}}, nil
	}
	details, err := s.repo.ItemDetails(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart items")
	}
	return buildValidationReport(details), nil
}

// MergeOnLogin folds the anonymous session cart into the user's cart. Lines
// for the same product combine under the per-item cap with the session's
// price snapshot winning; the drained session cart is kept as a converted
// audit row.
func (s *service) MergeOnLogin(ctx context.Context, userID uuid.UUID, sessionToken string) (*MergeResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if sessionToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session token is required")
	}

	now := time.Now().UTC()
	result := &MergeResult{}
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		*result = MergeResult{}

		sessionCart, err := s.activeCartIfAny(ctx, repo, SessionOwner(sessionToken), true, now)
		if err != nil {
			return err
		}
		if sessionCart == nil {
			userCart, err := s.activeCartIfAny(ctx, repo, UserOwner(userID), false, now)
			if err != nil {
				return err
			}
			if userCart == nil {
				result.Cart = emptyView()
				return nil
			}
			result.Cart, err = s.viewFor(ctx, repo, userCart.ID)
			return err
		}

		userCart, err := s.activeCartForWrite(ctx, repo, UserOwner(userID), now)
		if err != nil {
			return err
		}

		for _, line := range sessionCart.Items {
			existing, err := repo.FindItemByProduct(ctx, userCart.ID, line.ProductID)
			if err != nil && !notFound(err) {
				return err
			}

			if existing == nil {
				qty := line.Quantity
				if qty > s.cfg.MaxQtyPerItem {
					s.logClamp(ctx, userCart.ID, line.ProductID, qty)
					qty = s.cfg.MaxQtyPerItem
					result.ClampedLines++
				}
				if err := repo.CreateItem(ctx, &models.CartItem{
					CartID:         userCart.ID,
					ProductID:      line.ProductID,
					Quantity:       qty,
					UnitPriceCents: line.UnitPriceCents,
				}); err != nil {
					return err
				}
			} else {
				combined := existing.Quantity + line.Quantity
				if combined > s.cfg.MaxQtyPerItem {
					s.logClamp(ctx, userCart.ID, line.ProductID, combined)
					combined = s.cfg.MaxQtyPerItem
					result.ClampedLines++
				}
				if err := repo.UpdateItem(ctx, existing.ID, combined, line.UnitPriceCents); err != nil {
					return err
				}
			}
			result.MovedLines++
		}

		if err := repo.DeleteItems(ctx, sessionCart.ID); err != nil {
			return err
		}
		if err := repo.SetStatus(ctx, sessionCart.ID, enums.CartStatusConverted, now); err != nil {
			return err
		}

		result.Merged = true
		result.Cart, err = s.viewFor(ctx, repo, userCart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result.Merged {
		mergedCtx := s.log.WithFields(ctx, map[string]any{
			"user_id":       userID.String(),
			"moved_lines":   result.MovedLines,
			"clamped_lines": result.ClampedLines,
		})
		s.log.Info(mergedCtx, "session cart merged into user cart")
	}
	return result, nil
}
