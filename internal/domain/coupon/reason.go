package coupon

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Reason identifies why a coupon was rejected. Every value is an expected,
// user-facing outcome: callers render them as validation messages, never
// as server faults.
type Reason string

const (
	ReasonNotFound               Reason = "not_found"
	ReasonInactive               Reason = "inactive"
	ReasonNotYetStarted          Reason = "not_yet_started"
	ReasonExpired                Reason = "expired"
	ReasonUsageLimitReached      Reason = "usage_limit_reached"
	ReasonAlreadyUsedByUser      Reason = "already_used_by_user"
	ReasonAuthenticationRequired Reason = "authentication_required"
	ReasonNotEligible            Reason = "not_eligible"
	ReasonMinimumPurchaseNotMet  Reason = "minimum_purchase_not_met"
	ReasonNotApplicable          Reason = "not_applicable_to_cart_contents"
)

var reasonMessages = map[Reason]string{
	ReasonNotFound:               "coupon code not found",
	ReasonInactive:               "this coupon is no longer active",
	ReasonNotYetStarted:          "this coupon is not active yet",
	ReasonExpired:                "this coupon has expired",
	ReasonUsageLimitReached:      "this coupon has reached its usage limit",
	ReasonAlreadyUsedByUser:      "you have already used this coupon",
	ReasonAuthenticationRequired: "sign in to use this coupon",
	ReasonNotEligible:            "this coupon is not available for your account",
	ReasonNotApplicable:          "this coupon does not apply to the items in your cart",
}

// Rejection is the error returned by Evaluate and Commit when a coupon fails
// validation. It carries the machine-readable reason plus structured context
// where a reason needs it (currently the shortfall for minimum purchase).
type Rejection struct {
	Reason Reason

	// Shortfall is how much more the subtotal needs to reach MinPurchase.
	// Set only for ReasonMinimumPurchaseNotMet.
	Shortfall decimal.Decimal
}

func (r *Rejection) Error() string {
	return "coupon rejected: " + string(r.Reason)
}

// Message returns the user-facing validation message for this rejection.
func (r *Rejection) Message() string {
	if r.Reason == ReasonMinimumPurchaseNotMet {
		return fmt.Sprintf("add %s more to your cart to use this coupon", r.Shortfall.StringFixed(2))
	}
	if msg, ok := reasonMessages[r.Reason]; ok {
		return msg
	}
	return "coupon cannot be applied"
}

// AsRejection unwraps err into a *Rejection when it represents an expected
// validation outcome rather than a system fault.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

func reject(reason Reason) *Rejection {
	return &Rejection{Reason: reason}
}
