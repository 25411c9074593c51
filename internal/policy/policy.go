// Package policy loads the optional per-tenant policy file: quota overrides
// for the admission controller and column masks applied to result rows.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/causeway-db/causeway/internal/core/domain"
)

// Policy is the parsed per-tenant policy file.
type Policy struct {
	Tenants map[string]TenantPolicy `yaml:"tenants"`
}

// TenantPolicy overrides gateway defaults for one tenant.
type TenantPolicy struct {
	// Quota replaces the default admission quota when positive.
	Quota int `yaml:"quota"`
	// Masks maps result column names to masking strategies.
	Masks map[string]domain.MaskType `yaml:"masks"`
}

// LoadFromFile reads a YAML policy file and returns a validated Policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return &pol, nil
}

func validate(pol *Policy) error {
	for tenant, tp := range pol.Tenants {
		if tenant == "" {
			return fmt.Errorf("tenants contains an empty key")
		}
		if tp.Quota < 0 {
			return fmt.Errorf("tenants[%q].quota: must not be negative", tenant)
		}
		for col, mask := range tp.Masks {
			if col == "" {
				return fmt.Errorf("tenants[%q].masks contains an empty key", tenant)
			}
			if !mask.Valid() {
				return fmt.Errorf("tenants[%q].masks[%q]: invalid value %q (allowed: redact, hash, partial, null)", tenant, col, mask)
			}
		}
	}
	return nil
}

// QuotaOverrides returns the per-tenant quota map for the admission limiter.
func (p *Policy) QuotaOverrides() map[string]int {
	if p == nil {
		return nil
	}
	overrides := make(map[string]int)
	for tenant, tp := range p.Tenants {
		if tp.Quota > 0 {
			overrides[tenant] = tp.Quota
		}
	}
	return overrides
}

// MasksFor returns the mask set for a tenant, or nil.
func (p *Policy) MasksFor(tenant string) domain.MaskSet {
	if p == nil {
		return nil
	}
	tp, ok := p.Tenants[tenant]
	if !ok || len(tp.Masks) == 0 {
		return nil
	}
	masks := make(domain.MaskSet, len(tp.Masks))
	for col, mask := range tp.Masks {
		masks[col] = mask
	}
	return masks
}
