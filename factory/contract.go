/*
Package factory provides JSON to Go contract conversion.

PURPOSE:
  Converts JSON contract definitions into ledger.Contract and
  closure.CorrectionModel objects. This enables contract configuration
  without code changes - account managers define contracts in JSON, and the
  factory creates the proper Go structs.

JSON SCHEMA:
  {
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
  }

KEY FEATURES:
  - Validates structure and enumerations
  - Rejects overlapping or inverted periods
  - Quantities and rates parsed as decimals, never floats
  - Omitted tier max = unbounded last tier

USAGE:
  factory := NewContractFactory()
  contract, model, err := factory.ParseContract(jsonString)

SEE ALSO:
  - ledger/contract.go: Contract type definition
  - closure/correction.go: CorrectionModel definition
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-ledger/closure"
	"github.com/warp/contract-ledger/ledger"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ContractJSON is the JSON representation of a contract.
type ContractJSON struct {
	ID              string               `json:"id"`
	ClientID        string               `json:"client_id"`
	Name            string               `json:"name"`
	Unit            string               `json:"unit"`
	Family          string               `json:"family"`
	BillingMode     string               `json:"billing_mode,omitempty"`
	Periods         []PeriodJSON         `json:"periods"`
	CorrectionModel *CorrectionModelJSON `json:"correction_model,omitempty"`
}

// PeriodJSON represents one validity period.
type PeriodJSON struct {
	Start         string `json:"start"` // YYYY-MM-DD
	End           string `json:"end"`
	TotalQuantity string `json:"total_quantity"`
	Frequency     string `json:"frequency,omitempty"`
	Rate          string `json:"rate,omitempty"`
}

// CorrectionModelJSON represents a tiered correction model.
type CorrectionModelJSON struct {
	Name  string     `json:"name"`
	Tiers []TierJSON `json:"tiers"`
}

// TierJSON represents one correction tier. An omitted max is unbounded.
type TierJSON struct {
	Max   string `json:"max,omitempty"`
	Mode  string `json:"mode"`
	Value string `json:"value,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

type ContractFactory struct{}

func NewContractFactory() *ContractFactory { return &ContractFactory{} }

const dateLayout = "2006-01-02"

// ParseContract converts a JSON definition into domain objects. The returned
// correction model is nil when the definition carries none.
func (f *ContractFactory) ParseContract(raw string) (*ledger.Contract, *closure.CorrectionModel, error) {
	var cfg ContractJSON
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid contract JSON: %w", err)
	}
	return f.Build(cfg)
}

// Build converts an already-decoded definition.
func (f *ContractFactory) Build(cfg ContractJSON) (*ledger.Contract, *closure.CorrectionModel, error) {
	if cfg.ID == "" {
		return nil, nil, fmt.Errorf("contract id is required")
	}

	unit, err := parseUnit(cfg.Unit)
	if err != nil {
		return nil, nil, err
	}
	family, err := parseFamily(cfg.Family)
	if err != nil {
		return nil, nil, err
	}
	billing, err := parseBilling(cfg.BillingMode)
	if err != nil {
		return nil, nil, err
	}

	if len(cfg.Periods) == 0 {
		return nil, nil, ledger.ErrNoValidityPeriods
	}

	periods := make([]ledger.ValidityPeriod, 0, len(cfg.Periods))
	for i, pj := range cfg.Periods {
		p, err := f.buildPeriod(pj, unit)
		if err != nil {
			return nil, nil, fmt.Errorf("period %d: %w", i, err)
		}
		periods = append(periods, p)
	}

	sort.Slice(periods, func(i, j int) bool { return periods[i].Start.Before(periods[j].Start) })
	for i := 1; i < len(periods); i++ {
		if !periods[i].Start.After(periods[i-1].End) {
			return nil, nil, fmt.Errorf("periods %d and %d overlap", i-1, i)
		}
	}

	contract := &ledger.Contract{
		ID:       cfg.ID,
		ClientID: cfg.ClientID,
		Name:     cfg.Name,
		Unit:     unit,
		Family:   family,
		Billing:  billing,
		Periods:  periods,
	}

	var model *closure.CorrectionModel
	if cfg.CorrectionModel != nil {
		model, err = f.buildModel(*cfg.CorrectionModel)
		if err != nil {
			return nil, nil, err
		}
	}

	return contract, model, nil
}

func (f *ContractFactory) buildPeriod(pj PeriodJSON, unit ledger.Unit) (ledger.ValidityPeriod, error) {
	start, err := time.ParseInLocation(dateLayout, pj.Start, time.UTC)
	if err != nil {
		return ledger.ValidityPeriod{}, fmt.Errorf("bad start date %q: %w", pj.Start, err)
	}
	end, err := time.ParseInLocation(dateLayout, pj.End, time.UTC)
	if err != nil {
		return ledger.ValidityPeriod{}, fmt.Errorf("bad end date %q: %w", pj.End, err)
	}

	total, err := decimal.NewFromString(pj.TotalQuantity)
	if err != nil {
		return ledger.ValidityPeriod{}, fmt.Errorf("bad total quantity %q: %w", pj.TotalQuantity, err)
	}

	rate := decimal.Zero
	if pj.Rate != "" {
		rate, err = decimal.NewFromString(pj.Rate)
		if err != nil {
			return ledger.ValidityPeriod{}, fmt.Errorf("bad rate %q: %w", pj.Rate, err)
		}
	}

	freq, err := parseFrequency(pj.Frequency)
	if err != nil {
		return ledger.ValidityPeriod{}, err
	}

	period := ledger.ValidityPeriod{
		Start:     start,
		End:       end,
		Total:     ledger.Quantity{Value: total, Unit: unit},
		Frequency: freq,
		Rate:      rate,
	}
	if err := period.Validate(); err != nil {
		return ledger.ValidityPeriod{}, err
	}
	return period, nil
}

func (f *ContractFactory) buildModel(mj CorrectionModelJSON) (*closure.CorrectionModel, error) {
	model := &closure.CorrectionModel{Name: mj.Name}

	for i, tj := range mj.Tiers {
		tier := closure.CorrectionTier{Mode: closure.TierMode(tj.Mode)}

		if tj.Max != "" {
			max, err := decimal.NewFromString(tj.Max)
			if err != nil {
				return nil, fmt.Errorf("tier %d: bad max %q: %w", i, tj.Max, err)
			}
			tier.Max = &max
		}
		if tj.Value != "" {
			value, err := decimal.NewFromString(tj.Value)
			if err != nil {
				return nil, fmt.Errorf("tier %d: bad value %q: %w", i, tj.Value, err)
			}
			tier.Value = value
		}

		model.Tiers = append(model.Tiers, tier)
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// =============================================================================
// ENUM PARSING
// =============================================================================

func parseUnit(s string) (ledger.Unit, error) {
	switch ledger.Unit(s) {
	case ledger.UnitHours, ledger.UnitTickets:
		return ledger.Unit(s), nil
	default:
		return "", fmt.Errorf("unknown unit %q", s)
	}
}

func parseFamily(s string) (ledger.ContractFamily, error) {
	switch ledger.ContractFamily(s) {
	case ledger.FamilyBag, ledger.FamilyDedicatedBag, ledger.FamilyEvents:
		return ledger.ContractFamily(s), nil
	default:
		return "", fmt.Errorf("unknown contract family %q", s)
	}
}

func parseBilling(s string) (ledger.BillingMode, error) {
	switch ledger.BillingMode(s) {
	case ledger.BillingRecurring, ledger.BillingOneOff:
		return ledger.BillingMode(s), nil
	case "":
		return ledger.BillingRecurring, nil
	default:
		return "", fmt.Errorf("unknown billing mode %q", s)
	}
}

func parseFrequency(s string) (ledger.Frequency, error) {
	switch ledger.Frequency(s) {
	case ledger.FrequencyNone, ledger.FrequencyMonthly, ledger.FrequencyQuarterly,
		ledger.FrequencySemiannual, ledger.FrequencyAnnual, ledger.FrequencyOnDemand:
		return ledger.Frequency(s), nil
	default:
		return "", fmt.Errorf("unknown frequency %q", s)
	}
}
