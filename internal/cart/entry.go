package cart

// Entry is one product's quantity/selection state within a cart tier.
type Entry struct {
	Quantity int
	Selected bool
}

// Cart maps product id to its entry. Zero-quantity entries are never stored.
type Cart map[int64]Entry

// Clone returns a shallow copy of the cart.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for pid, entry := range c {
		out[pid] = entry
	}
	return out
}

// Merge reconciles the persisted and session tiers at login time.
//
// Quantities are summed per product, never overwritten. The selected flag is
// taken from the session entry only when sessionSelected reports the session
// explicitly set it; otherwise the persisted flag survives. Entries that end
// up with quantity <= 0 are dropped. Pure function, no I/O.
func Merge(persisted, session Cart, sessionSelected map[int64]bool) Cart {
	merged := persisted.Clone()
	for pid, sessionEntry := range session {
		if existing, ok := merged[pid]; ok {
			selected := existing.Selected
			if sessionSelected[pid] {
				selected = sessionEntry.Selected
			}
			merged[pid] = Entry{
				Quantity: existing.Quantity + sessionEntry.Quantity,
				Selected: selected,
			}
			continue
		}
		merged[pid] = sessionEntry
	}
	for pid, entry := range merged {
		if entry.Quantity <= 0 {
			delete(merged, pid)
		}
	}
	return merged
}
