package groupage

import (
	"fmt"
	"strings"
)

// validateDraft enforces the product entry rules: non-empty name, positive
// buying price, a buying unit, positive quantity, and at least one selling
// option with a unit and positive price.
func validateDraft(d ProductDraft) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidDraft)
	}
	if d.BuyingPrice <= 0 {
		return fmt.Errorf("%w: buying price must be positive", ErrInvalidDraft)
	}
	if strings.TrimSpace(d.BuyingUnit) == "" {
		return fmt.Errorf("%w: buying unit required", ErrInvalidDraft)
	}
	if d.QuantityTotal <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidDraft)
	}
	if len(d.SellingOptions) == 0 {
		return fmt.Errorf("%w: at least one selling option required", ErrInvalidDraft)
	}
	for _, opt := range d.SellingOptions {
		if strings.TrimSpace(opt.Unit) == "" {
			return fmt.Errorf("%w: selling option unit required", ErrInvalidDraft)
		}
		if opt.Price <= 0 {
			return fmt.Errorf("%w: selling option price must be positive", ErrInvalidDraft)
		}
	}
	return nil
}

// normalizeOptions guarantees exactly one default among the drafts: the
// flagged option wins, otherwise the first option is promoted.
func normalizeOptions(opts []SellingOptionDraft) []SellingOptionDraft {
	out := make([]SellingOptionDraft, len(opts))
	copy(out, opts)
	defaultIdx := -1
	for i, opt := range out {
		if opt.IsDefault && defaultIdx == -1 {
			defaultIdx = i
			continue
		}
		out[i].IsDefault = false
	}
	if defaultIdx == -1 && len(out) > 0 {
		out[0].IsDefault = true
	}
	return out
}
