package payouts

// SettlementStatus is the aggregate approval state of a vendor's eligible items.
type SettlementStatus string

const (
	StatusApproved           SettlementStatus = "approved"
	StatusAwaitingSuperAdmin SettlementStatus = "awaiting_super_admin"
	StatusAwaitingFinance    SettlementStatus = "awaiting_finance"
	StatusInReview           SettlementStatus = "in_review"
	StatusPending            SettlementStatus = "pending"
)

// Classify maps approval-combination counts to a settlement status.
// n = no approval, f = finance only, s = super admin only, b = both approved.
// Rules are evaluated in order; mixed both-approved and single-approved items are in_review.
func Classify(n, f, s, b int) SettlementStatus {
	n, f, s, b = nonNegative(n), nonNegative(f), nonNegative(s), nonNegative(b)
	total := n + f + s + b
	switch {
	case total == 0:
		return StatusPending
	case b == total:
		return StatusApproved
	case f > 0 && s == 0:
		return StatusAwaitingSuperAdmin
	case s > 0 && f == 0:
		return StatusAwaitingFinance
	case b > 0 && (f > 0 || s > 0):
		return StatusInReview
	default:
		return StatusPending
	}
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
