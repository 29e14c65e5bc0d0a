package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/Alecwce/tienda-AR/internal/promo"
	"github.com/Alecwce/tienda-AR/internal/storage"
	"go.uber.org/zap"
)

// ErrPersist wraps write-through failures. The in-memory cart keeps the mutation.
var ErrPersist = errors.New("failed to persist cart")

// Recorder receives every applied cart mutation for best-effort remote sync.
type Recorder interface {
	Record(ctx context.Context, name string, payload any) error
}

// Action names passed to the Recorder.
const (
	ActionAddItem        = "cart.add_item"
	ActionRemoveItem     = "cart.remove_item"
	ActionUpdateQuantity = "cart.update_quantity"
	ActionClear          = "cart.clear"
	ActionApplyPromo     = "cart.apply_promo"
	ActionRemovePromo    = "cart.remove_promo"
)

type ItemPayload struct {
	ProductID string      `json:"product_id"`
	Size      domain.Size `json:"size"`
	Color     string      `json:"color"`
	Quantity  int         `json:"quantity"`
}

type PromoPayload struct {
	Code    string `json:"code"`
	Percent int    `json:"percent"`
}

// persistedCart is the serializable subset of the cart. Totals are recomputed on load.
type persistedCart struct {
	Items         []domain.CartItem `json:"items"`
	PromoCode     *string           `json:"promoCode"`
	PromoDiscount int               `json:"promoDiscount"`
}

// Engine owns the cart line items and promotion state. All methods are safe for
// concurrent use; each mutation recomputes the totals and writes through to the store.
type Engine struct {
	mu       sync.Mutex
	state    domain.Cart
	store    storage.Store
	resolver *promo.Resolver
	recorder Recorder
	logger   *zap.Logger
}

func NewEngine(store storage.Store, resolver *promo.Resolver, recorder Recorder, logger *zap.Logger) *Engine {
	if resolver == nil {
		resolver = promo.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		state:    buildCart(nil, "", 0),
		store:    store,
		resolver: resolver,
		recorder: recorder,
		logger:   logger,
	}
}

// State returns a deep copy of the current cart.
func (e *Engine) State() domain.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Line returns the line item for the variant, if the cart holds one.
func (e *Engine) Line(productID string, size domain.Size, color string) (domain.CartItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := indexOf(e.state.Items, productID, size, color)
	if idx < 0 {
		return domain.CartItem{}, false
	}
	item := e.state.Items[idx]
	item.Product = item.Product.Clone()
	return item, true
}

// AddItem adds quantity units of the variant. It returns false without touching the
// cart when quantity is below one or when the product's stock cannot cover the
// variant's resulting quantity.
func (e *Engine) AddItem(ctx context.Context, product domain.Product, size domain.Size, color string, quantity int) (bool, error) {
	if quantity < 1 {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if product.HasLimitedStock() && quantity > *product.Stock {
		e.logger.Debug("add rejected: insufficient stock",
			zap.String("product_id", product.ID), zap.Int("quantity", quantity), zap.Int("stock", *product.Stock))
		return false, nil
	}

	items := append([]domain.CartItem(nil), e.state.Items...)
	if idx := indexOf(items, product.ID, size, color); idx >= 0 {
		newQuantity := items[idx].Quantity + quantity
		if product.HasLimitedStock() && newQuantity > *product.Stock {
			e.logger.Debug("add rejected: insufficient stock for held quantity",
				zap.String("product_id", product.ID), zap.Int("quantity", newQuantity), zap.Int("stock", *product.Stock))
			return false, nil
		}
		items[idx].Quantity = newQuantity
	} else {
		items = append(items, domain.CartItem{
			Product:  product.Clone(),
			Size:     size,
			Color:    color,
			Quantity: quantity,
		})
	}

	payload := ItemPayload{ProductID: product.ID, Size: size, Color: color, Quantity: quantity}
	return true, e.commit(ctx, ActionAddItem, payload, buildCart(items, e.state.PromoCode, e.state.PromoDiscountPercent))
}

// RemoveItem drops the variant's line. Removing an absent line is not an error.
func (e *Engine) RemoveItem(ctx context.Context, productID string, size domain.Size, color string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remove(ctx, productID, size, color)
}

func (e *Engine) remove(ctx context.Context, productID string, size domain.Size, color string) error {
	items := make([]domain.CartItem, 0, len(e.state.Items))
	for _, item := range e.state.Items {
		if !item.Matches(productID, size, color) {
			items = append(items, item)
		}
	}

	payload := ItemPayload{ProductID: productID, Size: size, Color: color}
	return e.commit(ctx, ActionRemoveItem, payload, buildCart(items, e.state.PromoCode, e.state.PromoDiscountPercent))
}

// UpdateQuantity sets the variant's quantity. quantity <= 0 removes the line.
// Stock is not re-checked here; callers edit quantities from a stock-aware stepper.
func (e *Engine) UpdateQuantity(ctx context.Context, productID string, size domain.Size, color string, quantity int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if quantity <= 0 {
		return e.remove(ctx, productID, size, color)
	}

	items := append([]domain.CartItem(nil), e.state.Items...)
	if idx := indexOf(items, productID, size, color); idx >= 0 {
		items[idx].Quantity = quantity
	}

	payload := ItemPayload{ProductID: productID, Size: size, Color: color, Quantity: quantity}
	return e.commit(ctx, ActionUpdateQuantity, payload, buildCart(items, e.state.PromoCode, e.state.PromoDiscountPercent))
}

func (e *Engine) ClearCart(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commit(ctx, ActionClear, nil, buildCart(nil, "", 0))
}

// ApplyPromoCode applies a known code. An unknown code returns false and leaves
// the current promotion, if any, in place.
func (e *Engine) ApplyPromoCode(ctx context.Context, code string) (bool, error) {
	normalized := promo.Normalize(code)
	pct, ok := e.resolver.Lookup(normalized)
	if !ok {
		e.logger.Debug("promo rejected: unknown code", zap.String("code", normalized))
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	payload := PromoPayload{Code: normalized, Percent: pct}
	return true, e.commit(ctx, ActionApplyPromo, payload, buildCart(e.state.Items, normalized, pct))
}

func (e *Engine) RemovePromoCode(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commit(ctx, ActionRemovePromo, nil, buildCart(e.state.Items, "", 0))
}

// Restore replaces the in-memory cart with the persisted one. Missing or
// malformed data leaves an empty cart; only store I/O failures are returned.
func (e *Engine) Restore(ctx context.Context) error {
	data, err := e.store.Get(ctx, storage.CartKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	var rec persistedCart
	if errUnmarshal := json.Unmarshal(data, &rec); errUnmarshal != nil {
		e.logger.Warn("persisted cart is malformed, starting empty", zap.Error(errUnmarshal))
		e.mu.Lock()
		e.state = buildCart(nil, "", 0)
		e.mu.Unlock()
		return nil
	}

	code, pct := "", 0
	if rec.PromoCode != nil && *rec.PromoCode != "" && rec.PromoDiscount >= 0 && rec.PromoDiscount <= 100 {
		code, pct = promo.Normalize(*rec.PromoCode), rec.PromoDiscount
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = buildCart(sanitizeItems(rec.Items), code, pct)
	e.logger.Info("cart restored", zap.Int("lines", len(e.state.Items)), zap.String("promo_code", code))
	return nil
}

// commit installs next as the current cart, writes it through and records the action.
// Callers hold e.mu.
func (e *Engine) commit(ctx context.Context, action string, payload any, next domain.Cart) error {
	e.state = next

	if err := e.persist(ctx); err != nil {
		e.logger.Warn("cart write-through failed", zap.String("action", action), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	if e.recorder != nil {
		if err := e.recorder.Record(ctx, action, payload); err != nil {
			// sync is best effort; the local cart is already consistent
			e.logger.Warn("failed to record cart action", zap.String("action", action), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) persist(ctx context.Context) error {
	rec := persistedCart{
		Items:         e.state.Items,
		PromoDiscount: e.state.PromoDiscountPercent,
	}
	if rec.Items == nil {
		rec.Items = []domain.CartItem{}
	}
	if e.state.PromoCode != "" {
		code := e.state.PromoCode
		rec.PromoCode = &code
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	return e.store.Set(ctx, storage.CartKey, data)
}

func indexOf(items []domain.CartItem, productID string, size domain.Size, color string) int {
	for i, item := range items {
		if item.Matches(productID, size, color) {
			return i
		}
	}
	return -1
}

// sanitizeItems drops rows that break the line invariants and merges duplicate keys.
func sanitizeItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if item.Product.ID == "" || item.Quantity < 1 {
			continue
		}
		if idx := indexOf(out, item.Product.ID, item.Size, item.Color); idx >= 0 {
			out[idx].Quantity += item.Quantity
			continue
		}
		out = append(out, item)
	}
	return out
}
