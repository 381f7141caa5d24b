package cart

import "github.com/shopspring/decimal"

// SnapshotItem is one priced cart line joined against current catalog data.
type SnapshotItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	ImageURL  string          `json:"image_url"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Selected  bool            `json:"selected"`
}

// Snapshot is the derived, read-only view of a cart. It is recomputed on
// every read and never stored.
type Snapshot struct {
	Items         []SnapshotItem  `json:"items"`
	Total         decimal.Decimal `json:"total"`
	SelectedTotal decimal.Decimal `json:"selected_total"`
	Count         int             `json:"count"`
}

// EmptySnapshot is what a degraded or empty cart renders as.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Items:         []SnapshotItem{},
		Total:         decimal.Zero,
		SelectedTotal: decimal.Zero,
	}
}

// SelectedItems returns only the lines marked for checkout.
func (s *Snapshot) SelectedItems() []SnapshotItem {
	selected := make([]SnapshotItem, 0, len(s.Items))
	for _, item := range s.Items {
		if item.Selected {
			selected = append(selected, item)
		}
	}
	return selected
}
