package port

import "github.com/causeway-db/causeway/internal/core/domain"

// QueryValidator statically analyzes SQL for a tenant before binding and
// execution.
type QueryValidator interface {
	Validate(sql, tenant string, paramCount int, crossTenant bool) (*domain.ValidationResult, error)
}

// Admitter gates requests on per-tenant quota before execution. A rejection
// is a *domain.GatewayError of kind rate_limited carrying a retry hint.
type Admitter interface {
	Check(tenant string) error
}
