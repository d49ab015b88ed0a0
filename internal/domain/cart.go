package domain

import "github.com/shopspring/decimal"

// LineItem is one cart entry, unique per (ID, Size).
type LineItem struct {
	ID       ID              `json:"id" validate:"required"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity,omitempty"`
	Image    string          `json:"image,omitempty"`
	Size     string          `json:"size,omitempty"`
	Color    string          `json:"color,omitempty"`
	Stock    int             `json:"stock,omitempty"`
	Specs    []Spec          `json:"specs,omitempty"`
}

// Qty is the effective quantity; an unset quantity counts as one.
func (li LineItem) Qty() int {
	if li.Quantity == 0 {
		return 1
	}
	return li.Quantity
}

// Subtotal is price times quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Qty())))
}

// Matches reports whether the line is keyed by (id, size).
func (li LineItem) Matches(id ID, size string) bool {
	return li.ID == id && li.Size == size
}

// Snapshot is a cart with its derived totals.
type Snapshot struct {
	Items      []LineItem      `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// NewSnapshot copies items and derives the totals.
func NewSnapshot(items []LineItem) Snapshot {
	cp := make([]LineItem, len(items))
	copy(cp, items)
	return Snapshot{
		Items:      cp,
		TotalItems: TotalItems(cp),
		TotalPrice: TotalPrice(cp),
	}
}

// TotalItems sums quantities.
func TotalItems(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Qty()
	}
	return n
}

// TotalPrice sums price times quantity.
func TotalPrice(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
