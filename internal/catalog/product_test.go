package catalog

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadID(t *testing.T) {
	cases := map[string]string{"7": "007", "42": "042", "501": "501", "007": "007"}
	for in, want := range cases {
		got, ok := PadID(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "1000", "7a", " 7", "milk"} {
		_, ok := PadID(in)
		assert.False(t, ok, in)
	}
}

func TestParseID(t *testing.T) {
	n, err := ParseID("042")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ParseID("000")
	assert.Error(t, err)
	_, err = ParseID("abc")
	assert.Error(t, err)
	assert.Equal(t, "999", FormatID(MaxProductID))
}

func TestProductPricesEncodeAsNumbers(t *testing.T) {
	p := Product{ProductID: "007", Name: "Sugar 1kg", SellingPrice: decimal.RequireFromString("280.50")}
	body, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, 280.5, raw["sellingPrice"])
}
