package catalog

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarket/marketplace/core"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("p%d", n)
	}
}

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   ProductDraft
		wantErr error
		field   string
	}{
		{"valid", ProductDraft{Name: "Phone", Price: "9.99"}, nil, ""},
		{"empty name", ProductDraft{Price: "9.99"}, core.ErrValidation, "name"},
		{"blank name", ProductDraft{Name: "   ", Price: "1"}, core.ErrValidation, "name"},
		{"empty price", ProductDraft{Name: "Phone"}, core.ErrValidation, "price"},
		{"non numeric price", ProductDraft{Name: "Phone", Price: "abc"}, core.ErrInvalidPrice, "price"},
		{"negative price", ProductDraft{Name: "Phone", Price: "-1"}, core.ErrInvalidPrice, "price"},
		{"unknown emoji", ProductDraft{Name: "Phone", Price: "1", Emoji: "🚗"}, core.ErrInvalidEmoji, "emoji"},
		{"unknown category", ProductDraft{Name: "Phone", Price: "1", Category: "toys"}, core.ErrInvalidCategory, "category"},
		{"all is not a category", ProductDraft{Name: "Phone", Price: "1", Category: CategoryAll}, core.ErrInvalidCategory, "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.draft.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var me *core.MarketError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.field, me.Field)
		})
	}
}

func TestDraftValidateDefaults(t *testing.T) {
	p, err := ProductDraft{Name: "Phone", Price: "0"}.Validate()
	require.NoError(t, err)

	draft := NewDraft()
	assert.Equal(t, DefaultEmoji, draft.Emoji)
	assert.Equal(t, DefaultCategory, draft.Category)

	assert.Equal(t, DefaultEmoji, p.Emoji)
	assert.Equal(t, DefaultCategory, p.Category)
	assert.True(t, p.Price.IsZero())
}

func TestAddKeepsExactPrice(t *testing.T) {
	c := New(WithIDGenerator(sequentialIDs()))

	p, err := c.Add(ProductDraft{Name: "Phone", Price: "9.99", Emoji: "📱", Category: CategoryElectronics})
	require.NoError(t, err)

	assert.Equal(t, "p1", p.ID)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, "9.99", p.Price.StringFixed(2))
	assert.Equal(t, 1, c.Len())
}

func TestAddRejectsInvalidDraftWithoutChange(t *testing.T) {
	c := New()

	_, err := c.Add(ProductDraft{Name: "", Price: "5"})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, 0, c.Len())
}

func TestAddAssignsDistinctIDs(t *testing.T) {
	c := New()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		p, err := c.Add(ProductDraft{Name: "Item", Price: "1"})
		require.NoError(t, err)
		require.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestAddSkipsCollidingID(t *testing.T) {
	ids := []string{"a", "a", "b"}
	i := 0
	c := New(WithIDGenerator(func() string {
		id := ids[i]
		i++
		return id
	}))

	first, err := c.Add(ProductDraft{Name: "One", Price: "1"})
	require.NoError(t, err)
	second, err := c.Add(ProductDraft{Name: "Two", Price: "2"})
	require.NoError(t, err)

	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "b", second.ID)
}

func TestAddGivesUpOnStuckIDSource(t *testing.T) {
	calls := 0
	c := New(WithIDGenerator(func() string {
		calls++
		return "same"
	}))

	_, err := c.Add(ProductDraft{Name: "One", Price: "1"})
	require.NoError(t, err)

	_, err = c.Add(ProductDraft{Name: "Two", Price: "2"})
	assert.ErrorIs(t, err, core.ErrDuplicateID)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1+maxIDAttempts, calls)
}

func TestUpdate(t *testing.T) {
	c := New(WithIDGenerator(sequentialIDs()))
	_, _ = c.Add(ProductDraft{Name: "Hat", Price: "10", Emoji: "💎", Category: CategoryAccessories})
	_, _ = c.Add(ProductDraft{Name: "Shirt", Price: "20", Emoji: "👕", Category: CategoryClothing})

	updated, err := c.Update("p1", ProductDraft{Name: "Cap", Price: "12.50", Emoji: "💎", Category: CategoryAccessories})
	require.NoError(t, err)

	assert.Equal(t, "p1", updated.ID)
	assert.Equal(t, "Cap", updated.Name)

	products := c.Products()
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID, "position is preserved")
	assert.Equal(t, "Cap", products[0].Name)
	assert.Equal(t, "Shirt", products[1].Name)
}

func TestUpdateUnknownID(t *testing.T) {
	c := New()
	_, err := c.Update("missing", ProductDraft{Name: "X", Price: "1"})

	assert.ErrorIs(t, err, core.ErrProductNotFound)
	assert.True(t, core.IsNotFound(err))
}

func TestUpdateInvalidDraftLeavesProduct(t *testing.T) {
	c := New(WithIDGenerator(sequentialIDs()))
	before, _ := c.Add(ProductDraft{Name: "Hat", Price: "10"})

	_, err := c.Update("p1", ProductDraft{Name: "Hat", Price: "free"})
	assert.ErrorIs(t, err, core.ErrInvalidPrice)

	after, ok := c.Get("p1")
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(before, after, decimalEqual))
}

func TestDelete(t *testing.T) {
	c := New(WithIDGenerator(sequentialIDs()))
	_, _ = c.Add(ProductDraft{Name: "A", Price: "1"})
	_, _ = c.Add(ProductDraft{Name: "B", Price: "2"})
	_, _ = c.Add(ProductDraft{Name: "C", Price: "3"})

	assert.True(t, c.Delete("p2"))
	assert.False(t, c.Delete("p2"))
	assert.False(t, c.Delete("nope"))

	var names []string
	for _, p := range c.Products() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"A", "C"}, names)
}

func TestFilter(t *testing.T) {
	c := New(WithIDGenerator(sequentialIDs()))
	_, _ = c.Add(ProductDraft{Name: "Phone", Price: "1", Category: CategoryElectronics})
	_, _ = c.Add(ProductDraft{Name: "Pizza", Price: "2", Emoji: "🍕", Category: CategoryFood})
	_, _ = c.Add(ProductDraft{Name: "Laptop", Price: "3", Emoji: "💻", Category: CategoryElectronics})

	names := func(ps []Product) []string {
		out := []string{}
		for _, p := range ps {
			out = append(out, p.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Phone", "Pizza", "Laptop"}, names(c.Filter(CategoryAll)))
	assert.Equal(t, []string{"Phone", "Laptop"}, names(c.Filter(CategoryElectronics)))
	assert.Equal(t, []string{"Pizza"}, names(c.Filter(CategoryFood)))
	assert.Empty(t, c.Filter(CategoryShoes))
}

func TestFilterReturnsCopy(t *testing.T) {
	c := New(WithIDGenerator(sequentialIDs()))
	_, _ = c.Add(ProductDraft{Name: "Phone", Price: "1"})

	out := c.Filter(CategoryAll)
	out[0].Name = "mutated"

	p, _ := c.Get("p1")
	assert.Equal(t, "Phone", p.Name)
}

func TestReplaceDropsInvalidRecords(t *testing.T) {
	c := New()
	c.Replace([]Product{
		{ID: "x", Name: "One"},
		{ID: "", Name: "No id"},
		{ID: "x", Name: "Duplicate"},
		{ID: "y", Name: "Two"},
	})

	want := []Product{{ID: "x", Name: "One"}, {ID: "y", Name: "Two"}}
	assert.Empty(t, cmp.Diff(want, c.Products(), decimalEqual))

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestDraftFromRoundTrip(t *testing.T) {
	p := Product{ID: "1", Name: "Shoe", Price: decimal.RequireFromString("49.90"), Emoji: "👟", Category: CategoryShoes}
	d := DraftFrom(p)

	got, err := d.Validate()
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(p.Price))
	assert.Equal(t, p.Category, got.Category)
}

func TestCategoryLabels(t *testing.T) {
	assert.Equal(t, "All Items", CategoryAll.Label())
	assert.Equal(t, "🔌 Electronics", CategoryElectronics.Label())
	assert.Equal(t, "📦 Other", CategoryOther.Label())
	assert.Equal(t, "toys", Category("toys").Label())
	assert.Len(t, Categories, 6)
}

func TestNewIDIsUUID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
