package cart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeSumsQuantitiesPerProduct(t *testing.T) {
	persisted := Cart{
		1: {Quantity: 2, Selected: true},
		2: {Quantity: 5, Selected: false},
	}
	session := Cart{
		1: {Quantity: 3, Selected: false},
		3: {Quantity: 1, Selected: true},
	}

	merged := Merge(persisted, session, map[int64]bool{})

	require.Equal(t, 5, merged[1].Quantity)
	require.Equal(t, 5, merged[2].Quantity)
	require.Equal(t, 1, merged[3].Quantity)

	// additivity holds for every product present in either tier
	for pid := range merged {
		require.Equal(t, persisted[pid].Quantity+session[pid].Quantity, merged[pid].Quantity)
	}
}

func TestMergeSelectedFlagOnlyWinsWhenExplicit(t *testing.T) {
	persisted := Cart{
		1: {Quantity: 1, Selected: true},
		2: {Quantity: 1, Selected: true},
	}
	session := Cart{
		1: {Quantity: 1, Selected: false},
		2: {Quantity: 1, Selected: false},
	}

	merged := Merge(persisted, session, map[int64]bool{1: true})

	// product 1 was explicitly deselected in the session, product 2 was not
	require.False(t, merged[1].Selected)
	require.True(t, merged[2].Selected)
}

func TestMergeSessionOnlyEntriesAreInserted(t *testing.T) {
	session := Cart{7: {Quantity: 3, Selected: true}}

	merged := Merge(Cart{}, session, map[int64]bool{7: true})

	require.Len(t, merged, 1)
	require.Equal(t, Entry{Quantity: 3, Selected: true}, merged[7])
}

func TestMergeDropsZeroQuantityEntries(t *testing.T) {
	persisted := Cart{1: {Quantity: 0, Selected: true}}
	session := Cart{2: {Quantity: 0, Selected: true}}

	merged := Merge(persisted, session, map[int64]bool{})

	require.Empty(t, merged)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	persisted := Cart{1: {Quantity: 2, Selected: true}}
	session := Cart{1: {Quantity: 3, Selected: false}}

	_ = Merge(persisted, session, map[int64]bool{1: true})

	require.Equal(t, 2, persisted[1].Quantity)
	require.True(t, persisted[1].Selected)
	require.Equal(t, 3, session[1].Quantity)
}
