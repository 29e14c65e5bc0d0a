package domain

// CartItem is one line of the cart. (Product.ID, Size, Color) is unique within a cart.
type CartItem struct {
	Product  Product `json:"product"`
	Size     Size    `json:"size"`
	Color    string  `json:"color"`
	Quantity int     `json:"quantity"`
}

func (i CartItem) Matches(productID string, size Size, color string) bool {
	return i.Product.ID == productID && i.Size == size && i.Color == color
}

// Cart is the aggregate exposed to callers. Subtotal, Discount, Total and ItemCount
// are derived from Items and PromoDiscountPercent and are never set on their own.
type Cart struct {
	Items                []CartItem `json:"items"`
	PromoCode            string     `json:"promoCode"`
	PromoDiscountPercent int        `json:"promoDiscount"`
	ItemCount            int        `json:"itemCount"`
	Subtotal             float64    `json:"subtotal"`
	Discount             float64    `json:"discount"`
	Total                float64    `json:"total"`
}

func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		item.Product = item.Product.Clone()
		out.Items[i] = item
	}
	return out
}
