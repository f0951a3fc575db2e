package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CreditTier is one purchasable credit bundle.  Price is in US dollars.
type CreditTier struct {
	Credits int
	Price   decimal.Decimal
	PriceID string
}

// UnitAmountCents returns the tier price in cents as the payment gateway expects.
func (t CreditTier) UnitAmountCents() int64 {
	return t.Price.Shift(2).Round(0).IntPart()
}

// CreditTiers is the fixed set of bundles offered at checkout, ordered by
// credit amount.
type CreditTiers []CreditTier

// Lookup returns the tier granting exactly credits.
func (ts CreditTiers) Lookup(credits int) (CreditTier, bool) {
	for _, t := range ts {
		if t.Credits == credits {
			return t, true
		}
	}
	return CreditTier{}, false
}

// DefaultCreditTiers mirrors the bundles sold since launch.
func DefaultCreditTiers() CreditTiers {
	return CreditTiers{
		{Credits: 1, Price: decimal.RequireFromString("0.50"), PriceID: "price_1_credit"},
		{Credits: 2, Price: decimal.RequireFromString("1.00"), PriceID: "price_2_credits"},
		{Credits: 15, Price: decimal.RequireFromString("5.00"), PriceID: "price_15_credits"},
	}
}

type tierFile struct {
	Tiers []struct {
		Credits int    `yaml:"credits"`
		Price   string `yaml:"price"`
		PriceID string `yaml:"price_id"`
	} `yaml:"tiers"`
}

// LoadCreditTiers returns DefaultCreditTiers when path is empty, otherwise
// the tiers declared in the YAML file at path:
//
//	tiers:
//	  - credits: 1
//	    price: "0.50"
//	    price_id: price_1_credit
func LoadCreditTiers(path string) (CreditTiers, error) {
	if path == "" {
		return DefaultCreditTiers(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credit tiers: %w", err)
	}
	return ParseCreditTiers(data)
}

// ParseCreditTiers decodes a YAML tier table.
func ParseCreditTiers(data []byte) (CreditTiers, error) {
	var f tierFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse credit tiers: %w", err)
	}
	if len(f.Tiers) == 0 {
		return nil, fmt.Errorf("parse credit tiers: no tiers declared")
	}
	seen := make(map[int]bool, len(f.Tiers))
	out := make(CreditTiers, 0, len(f.Tiers))
	for _, raw := range f.Tiers {
		if raw.Credits <= 0 {
			return nil, fmt.Errorf("parse credit tiers: credits must be positive, got %d", raw.Credits)
		}
		if seen[raw.Credits] {
			return nil, fmt.Errorf("parse credit tiers: duplicate tier for %d credits", raw.Credits)
		}
		seen[raw.Credits] = true
		price, err := decimal.NewFromString(raw.Price)
		if err != nil || !price.IsPositive() {
			return nil, fmt.Errorf("parse credit tiers: invalid price %q for %d credits", raw.Price, raw.Credits)
		}
		out = append(out, CreditTier{Credits: raw.Credits, Price: price, PriceID: raw.PriceID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Credits < out[j].Credits })
	return out, nil
}
