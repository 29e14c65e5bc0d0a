package cart

import (
	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// buildCart derives every total from items and pct in one pass.
func buildCart(items []domain.CartItem, promoCode string, pct int) domain.Cart {
	if items == nil {
		items = []domain.CartItem{}
	}

	subtotal := decimal.Zero
	count := 0
	for _, item := range items {
		line := decimal.NewFromFloat(item.Product.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
		count += item.Quantity
	}
	discount := subtotal.Mul(decimal.NewFromInt(int64(pct))).Div(hundred)
	total := subtotal.Sub(discount)

	return domain.Cart{
		Items:                items,
		PromoCode:            promoCode,
		PromoDiscountPercent: pct,
		ItemCount:            count,
		Subtotal:             subtotal.InexactFloat64(),
		Discount:             discount.InexactFloat64(),
		Total:                total.InexactFloat64(),
	}
}
