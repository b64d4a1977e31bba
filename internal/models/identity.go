package models

// Plan is a caller's quota and feature class.
type Plan string

const (
	// PlanFree is the constrained tier.
	PlanFree Plan = "free"
	// PlanBuilder is the elevated tier.
	PlanBuilder Plan = "builder"
)

// Elevated reports whether p is the elevated tier. Unknown plans are constrained.
func (p Plan) Elevated() bool {
	return p == PlanBuilder
}

// CanExport reports whether the plan may export results.
func (p Plan) CanExport() bool {
	return p.Elevated()
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string `json:"user_id"`
	Plan   Plan   `json:"plan"`
}
