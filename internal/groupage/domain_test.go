package groupage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatedProfitSumsSoldMargins(t *testing.T) {
	g := Groupage{
		Products: []Product{
			{CostPrice: 7000, SellingPrice: 9000, QuantitySold: 3},
			{CostPrice: 50000, SellingPrice: 80000, QuantitySold: 2},
			{CostPrice: 1200, SellingPrice: 1500, QuantitySold: 0},
		},
	}
	// 3*(9000-7000) + 2*(80000-50000), unsold stock contributes nothing.
	assert.Equal(t, float64(66000), g.EstimatedProfit())
}

func TestEstimatedProfitEmptyGroupage(t *testing.T) {
	assert.Zero(t, Groupage{}.EstimatedProfit())
}

func TestGroupageViewCarriesEstimatedProfit(t *testing.T) {
	g := Groupage{
		ID:   1,
		Name: "Groupage Juin",
		Products: []Product{
			{CostPrice: 7000, SellingPrice: 9000, QuantitySold: 5},
		},
	}
	raw, err := json.Marshal(newGroupageView(g))
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, float64(10000), payload["estimated_profit"])
}

func TestQuantityRemaining(t *testing.T) {
	p := Product{QuantityTotal: 40, QuantitySold: 12}
	assert.Equal(t, 28, p.QuantityRemaining())
}
