package guard

// TenantScope selects the isolation boundary for a scoped list query.
type TenantScope string

const (
	// ScopeOrganization filters to the principal's organization.
	ScopeOrganization TenantScope = "organization"
	// ScopeLocation filters to the principal's location within its
	// organization.
	ScopeLocation TenantScope = "location"
)

// DefaultOwnerField is the filter key used by OwnershipFilter when the
// caller does not name one.
const DefaultOwnerField = "owner_id"

// TenantFilter computes the query-scoping filter for a list query,
// derived purely from the principal. Location scope always includes the
// organization key too; a location filter alone would let a forged
// location id cross tenants.
func TenantFilter(p Principal, scope TenantScope) (map[string]string, error) {
	if p.OrganizationID == "" {
		return nil, ErrValidation
	}

	switch scope {
	case ScopeOrganization:
		return map[string]string{"organization_id": p.OrganizationID}, nil
	case ScopeLocation:
		if p.LocationID == "" {
			return nil, ErrValidation
		}
		return map[string]string{
			"organization_id": p.OrganizationID,
			"location_id":     p.LocationID,
		}, nil
	default:
		return nil, ErrValidation
	}
}

// OwnershipFilter computes the filter for "own"-scoped queries:
// {ownerField: principal.UserID}. An empty ownerField uses
// DefaultOwnerField.
func OwnershipFilter(p Principal, ownerField string) map[string]string {
	if ownerField == "" {
		ownerField = DefaultOwnerField
	}
	return map[string]string{ownerField: p.UserID}
}

// ValidateOwnership checks a resource against the principal. The tenant
// comparison runs first and a mismatch fails regardless of ownership:
// tenant isolation is never bypassed by owning a record in another
// organization. Ownership is only compared when opts.CheckOwnership is
// set.
func ValidateOwnership(p Principal, opts ResourceOwnershipOptions) SecurityCheckResult {
	if opts.ResourceType == "" || opts.OrganizationID == "" {
		return SecurityCheckResult{
			Layer:  LayerOwnership,
			Reason: "malformed ownership options",
			Err:    ErrValidation,
			Context: map[string]any{
				"resourceType": opts.ResourceType,
				"resourceId":   opts.ResourceID,
			},
		}
	}

	if opts.OrganizationID != p.OrganizationID {
		return SecurityCheckResult{
			Layer:  LayerOwnership,
			Reason: "organization mismatch",
			Err:    ErrOwnershipViolation,
			Context: map[string]any{
				"resourceType": opts.ResourceType,
				"resourceId":   opts.ResourceID,
			},
		}
	}

	if opts.CheckOwnership && opts.OwnerID != p.UserID {
		return SecurityCheckResult{
			Layer:  LayerOwnership,
			Reason: "owner mismatch",
			Err:    ErrOwnershipViolation,
			Context: map[string]any{
				"resourceType": opts.ResourceType,
				"resourceId":   opts.ResourceID,
			},
		}
	}

	return SecurityCheckResult{Passed: true, Layer: LayerNone}
}
