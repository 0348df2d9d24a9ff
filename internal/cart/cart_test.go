package cart

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddKeepsDuplicateLines(t *testing.T) {
	var c Cart
	c.Add(Line{ProductID: 1, Name: "Water 19L", UnitPrice: 25000, Quantity: 2})
	c.Add(Line{ProductID: 1, Name: "Water 19L", UnitPrice: 25000, Quantity: 3})

	require.Len(t, c.Lines, 2)
	assert.Equal(t, 5, c.Units())
	assert.Equal(t, int64(125000), c.Subtotal())
	assert.Equal(t, map[int64]int{1: 5}, c.QuantityByProduct())
}

func TestSubtotalIsExact(t *testing.T) {
	var c Cart
	c.Add(Line{ProductID: 1, UnitPrice: 25000, Quantity: 2})
	c.Add(Line{ProductID: 2, UnitPrice: 12000, Quantity: 1})
	assert.Equal(t, int64(62000), c.Subtotal())
}

func TestRemove(t *testing.T) {
	var c Cart
	c.Add(Line{ProductID: 1, Quantity: 1})
	c.Add(Line{ProductID: 2, Quantity: 1})
	c.Add(Line{ProductID: 3, Quantity: 1})

	require.True(t, c.Remove(1))
	require.Len(t, c.Lines, 2)
	assert.Equal(t, int64(1), c.Lines[0].ProductID)
	assert.Equal(t, int64(3), c.Lines[1].ProductID)

	assert.False(t, c.Remove(-1))
	assert.False(t, c.Remove(2))
}

func TestSetQuantity(t *testing.T) {
	var c Cart
	c.Add(Line{ProductID: 1, UnitPrice: 100, Quantity: 1})

	require.True(t, c.SetQuantity(0, 4))
	assert.Equal(t, int64(400), c.Subtotal())

	assert.False(t, c.SetQuantity(0, 0))
	assert.False(t, c.SetQuantity(1, 2))
	assert.Equal(t, 4, c.Lines[0].Quantity)
}

func TestClear(t *testing.T) {
	var c Cart
	c.Add(Line{ProductID: 1, Quantity: 1})
	c.Clear()
	assert.True(t, c.Empty())
	assert.Zero(t, c.Subtotal())
	assert.Zero(t, c.Units())
}

func TestSummary(t *testing.T) {
	var c Cart
	c.Add(Line{ProductID: 1, Name: "Water 19L", UnitPrice: 25000, Quantity: 2})
	c.Add(Line{ProductID: 2, Name: "Water 10L", UnitPrice: 12000, Quantity: 1})

	got := c.Summary(func(v int64) string { return strconv.FormatInt(v, 10) })
	assert.Equal(t, "1. Water 19L x2 = 50000\n2. Water 10L x1 = 12000\n", got)
}
