package closure_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-ledger/closure"
	"github.com/warp/contract-ledger/ledger"
)

// standardModel: pass through up to 10h, add 2h up to 20h, flatten to 15h above.
func standardModel() *closure.CorrectionModel {
	return &closure.CorrectionModel{
		ID:   "std",
		Name: "standard",
		Tiers: []closure.CorrectionTier{
			{Max: closure.MaxOf(10), Mode: closure.ModePassthrough},
			{Max: closure.MaxOf(20), Mode: closure.ModeAdd, Value: decimal.NewFromInt(2)},
			{Max: closure.Unbounded(), Mode: closure.ModeFixed, Value: decimal.NewFromInt(15)},
		},
	}
}

func TestCorrectionModel_Apply(t *testing.T) {
	m := standardModel()
	require.NoError(t, m.Validate())

	cases := []struct {
		raw  string
		want string
	}{
		{"5", "5"},   // first tier, passthrough
		{"10", "10"}, // tier bounds are inclusive
		{"15", "17"}, // second tier, +2
		{"20", "22"},
		{"25", "15"}, // unbounded tier, flattened
		{"100", "15"},
	}

	for _, tc := range cases {
		got := m.Apply(ledger.MustParseDecimal(tc.raw))
		assert.Equal(t, tc.want, got.String(), "raw %s", tc.raw)
	}
}

func TestCorrectionModel_NilIsPassthrough(t *testing.T) {
	var m *closure.CorrectionModel
	raw := ledger.MustParseDecimal("7.5")
	assert.True(t, m.Apply(raw).Equal(raw))
}

func TestCorrectionModel_ApplyAllIsPerItem(t *testing.T) {
	// GIVEN: Ten 1-hour items under an unbounded ADD(0.5) model
	// THEN: The corrected total is 15, not 10.5 - the correction fires per
	//       item before summation, never on the monthly total

	m := &closure.CorrectionModel{
		Tiers: []closure.CorrectionTier{
			{Max: closure.Unbounded(), Mode: closure.ModeAdd, Value: ledger.MustParseDecimal("0.5")},
		},
	}

	raws := make([]decimal.Decimal, 10)
	for i := range raws {
		raws[i] = decimal.NewFromInt(1)
	}

	total := m.ApplyAll(raws)
	assert.Equal(t, "15", total.String())
}

func TestCorrectionModel_Validate(t *testing.T) {
	t.Run("empty model rejected", func(t *testing.T) {
		m := &closure.CorrectionModel{}
		assert.ErrorIs(t, m.Validate(), ledger.ErrInvalidCorrectionModel)
	})

	t.Run("tier after unbounded rejected", func(t *testing.T) {
		m := &closure.CorrectionModel{Tiers: []closure.CorrectionTier{
			{Max: closure.Unbounded(), Mode: closure.ModePassthrough},
			{Max: closure.MaxOf(10), Mode: closure.ModePassthrough},
		}}
		assert.ErrorIs(t, m.Validate(), ledger.ErrInvalidCorrectionModel)
	})

	t.Run("non-ascending bounds rejected", func(t *testing.T) {
		m := &closure.CorrectionModel{Tiers: []closure.CorrectionTier{
			{Max: closure.MaxOf(20), Mode: closure.ModePassthrough},
			{Max: closure.MaxOf(10), Mode: closure.ModePassthrough},
		}}
		assert.ErrorIs(t, m.Validate(), ledger.ErrInvalidCorrectionModel)
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		m := &closure.CorrectionModel{Tiers: []closure.CorrectionTier{
			{Max: closure.Unbounded(), Mode: "MULTIPLY"},
		}}
		assert.ErrorIs(t, m.Validate(), ledger.ErrInvalidCorrectionModel)
	})

	t.Run("well-formed model accepted", func(t *testing.T) {
		assert.NoError(t, standardModel().Validate())
	})
}
