package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-ledger/closure"
	"github.com/warp/contract-ledger/factory"
	"github.com/warp/contract-ledger/ledger"
)

const fullContractJSON = `{
	"id": "acme-bag-2025",
	"client_id": "acme",
	"name": "ACME support bag 2025",
	"unit": "HOURS",
	"family": "BAG",
	"billing_mode": "RECURRING",
	"periods": [
		{
			"start": "2025-01-01",
			"end": "2025-12-31",
			"total_quantity": "120",
			"frequency": "QUARTERLY",
			"rate": "85.00"
		}
	],
	"correction_model": {
		"name": "standard",
		"tiers": [
			{"max": "10", "mode": "PASSTHROUGH"},
			{"max": "20", "mode": "ADD", "value": "2"},
			{"mode": "FIXED", "value": "15"}
		]
	}
}`

func TestParseContract_FullDefinition(t *testing.T) {
	f := factory.NewContractFactory()

	contract, model, err := f.ParseContract(fullContractJSON)
	require.NoError(t, err)

	assert.Equal(t, "acme-bag-2025", contract.ID)
	assert.Equal(t, ledger.UnitHours, contract.Unit)
	assert.Equal(t, ledger.FamilyBag, contract.Family)
	assert.Equal(t, ledger.BillingRecurring, contract.Billing)

	require.Len(t, contract.Periods, 1)
	p := contract.Periods[0]
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, ledger.FrequencyQuarterly, p.Frequency)
	assert.Equal(t, "120", p.Total.Value.String())
	assert.Equal(t, "85", p.Rate.String())

	require.NotNil(t, model)
	assert.Equal(t, "standard", model.Name)
	require.Len(t, model.Tiers, 3)
	assert.Nil(t, model.Tiers[2].Max, "omitted max is the unbounded last tier")
	assert.Equal(t, closure.ModeFixed, model.Tiers[2].Mode)
}

func TestParseContract_NoModelIsFine(t *testing.T) {
	f := factory.NewContractFactory()

	_, model, err := f.ParseContract(`{
		"id": "c1", "client_id": "acme", "name": "n",
		"unit": "TICKETS", "family": "EVENTS",
		"periods": [{"start": "2025-01-01", "end": "2025-12-31", "total_quantity": "600"}]
	}`)
	require.NoError(t, err)
	assert.Nil(t, model)
}

func TestParseContract_DefaultsToRecurringBilling(t *testing.T) {
	f := factory.NewContractFactory()

	contract, _, err := f.ParseContract(`{
		"id": "c1", "client_id": "acme", "name": "n",
		"unit": "HOURS", "family": "BAG",
		"periods": [{"start": "2025-01-01", "end": "2025-06-30", "total_quantity": "60"}]
	}`)
	require.NoError(t, err)
	assert.Equal(t, ledger.BillingRecurring, contract.Billing)
}

func TestParseContract_Rejections(t *testing.T) {
	f := factory.NewContractFactory()

	t.Run("overlapping periods", func(t *testing.T) {
		_, _, err := f.ParseContract(`{
			"id": "c1", "client_id": "acme", "name": "n",
			"unit": "HOURS", "family": "BAG",
			"periods": [
				{"start": "2025-01-01", "end": "2025-06-30", "total_quantity": "60"},
				{"start": "2025-06-01", "end": "2025-12-31", "total_quantity": "60"}
			]
		}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "overlap")
	})

	t.Run("no periods", func(t *testing.T) {
		_, _, err := f.ParseContract(`{
			"id": "c1", "client_id": "acme", "name": "n",
			"unit": "HOURS", "family": "BAG", "periods": []
		}`)
		assert.ErrorIs(t, err, ledger.ErrNoValidityPeriods)
	})

	t.Run("unknown family", func(t *testing.T) {
		_, _, err := f.ParseContract(`{
			"id": "c1", "client_id": "acme", "name": "n",
			"unit": "HOURS", "family": "LEASING",
			"periods": [{"start": "2025-01-01", "end": "2025-12-31", "total_quantity": "60"}]
		}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "family")
	})

	t.Run("inverted dates", func(t *testing.T) {
		_, _, err := f.ParseContract(`{
			"id": "c1", "client_id": "acme", "name": "n",
			"unit": "HOURS", "family": "BAG",
			"periods": [{"start": "2025-12-31", "end": "2025-01-01", "total_quantity": "60"}]
		}`)
		assert.ErrorIs(t, err, ledger.ErrInvalidPeriod)
	})

	t.Run("quantity as float-ish garbage", func(t *testing.T) {
		_, _, err := f.ParseContract(`{
			"id": "c1", "client_id": "acme", "name": "n",
			"unit": "HOURS", "family": "BAG",
			"periods": [{"start": "2025-01-01", "end": "2025-12-31", "total_quantity": "lots"}]
		}`)
		require.Error(t, err)
	})

	t.Run("missing id", func(t *testing.T) {
		_, _, err := f.ParseContract(`{"client_id": "acme", "unit": "HOURS", "family": "BAG"}`)
		require.Error(t, err)
	})

	t.Run("bad correction model", func(t *testing.T) {
		_, _, err := f.ParseContract(`{
			"id": "c1", "client_id": "acme", "name": "n",
			"unit": "HOURS", "family": "BAG",
			"periods": [{"start": "2025-01-01", "end": "2025-12-31", "total_quantity": "60"}],
			"correction_model": {"name": "bad", "tiers": [
				{"mode": "PASSTHROUGH"},
				{"max": "10", "mode": "PASSTHROUGH"}
			]}
		}`)
		assert.ErrorIs(t, err, ledger.ErrInvalidCorrectionModel)
	})
}
