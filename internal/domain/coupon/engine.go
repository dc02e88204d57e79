package coupon

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Evaluator is the read-only half of the engine: it decides whether a code
// applies to a cart without consuming usage.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, cart CartContext) (*Evaluation, error)
}

// Committer consumes one use of a coupon for a confirmed order.
type Committer interface {
	Commit(ctx context.Context, code, userID string) (*Coupon, error)
}

// Evaluation is the successful outcome of Evaluate.
type Evaluation struct {
	Code        string
	Kind        DiscountKind
	Value       decimal.Decimal
	Description string

	// DiscountAmount is the discount against the merchandise subtotal.
	// Always zero for free-shipping coupons: the caller waives the
	// shipping line separately.
	DiscountAmount decimal.Decimal
}

// FreeShipping reports whether the caller should zero the shipping line.
func (e *Evaluation) FreeShipping() bool {
	return e.Kind == KindFreeShipping
}

// Engine evaluates coupon codes against carts and commits redemptions.
//
// Evaluate is pure and side-effect free: it may be called any number of
// times without consuming the coupon's usage budget. Commit is the only
// mutating operation and delegates its concurrency discipline to the
// Repository's atomic Redeem.
type Engine struct {
	repo Repository
	now  func() time.Time
}

var (
	_ Evaluator = (*Engine)(nil)
	_ Committer = (*Engine)(nil)
)

// NewEngine creates an Engine backed by the given repository, reading time
// from the wall clock.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// NewEngineAt is NewEngine with an injected clock, for deterministic tests
// and replays.
func NewEngineAt(repo Repository, now func() time.Time) *Engine {
	return &Engine{repo: repo, now: now}
}

// checkFn is a single validation step. A nil result means the step passed.
type checkFn func(c *Coupon, cart CartContext, now time.Time) *Rejection

// eligibilityChecks is the authoritative validation order. Evaluation stops
// at the first failure; later checks assume earlier ones passed, and the
// first failing step names the reason shown to the user.
var eligibilityChecks = []checkFn{
	checkActive,
	checkWindow,
	checkUsageLimit,
	checkOneTimePerUser,
	checkAllowedUsers,
	checkMinPurchase,
	checkCartScope,
}

// redemptionChecks is the stateful subset re-run by Commit: everything up to
// and including the user allow-list. The cart-shaped checks (minimum
// purchase, scoping) belong to the checkout-side re-evaluation, which sees
// the live cart. The per-user check runs ahead of the usage limit here: a
// user retrying a spent one-time coupon is told about their prior use, not
// the global budget.
var redemptionChecks = []checkFn{
	checkActive,
	checkWindow,
	checkOneTimePerUser,
	checkUsageLimit,
	checkAllowedUsers,
}

// Evaluate decides whether code applies to the given cart at the engine's
// current time. On rejection it returns a *Rejection naming the first failed
// check; any other error is a storage fault.
func (e *Engine) Evaluate(ctx context.Context, code string, cart CartContext) (*Evaluation, error) {
	c, err := e.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	now := e.now()
	for _, check := range eligibilityChecks {
		if rej := check(c, cart, now); rej != nil {
			return nil, rej
		}
	}

	amount, err := Compute(c, cart.Subtotal)
	if err != nil {
		return nil, errors.Wrap(err, "compute discount")
	}

	return &Evaluation{
		Code:           c.Code,
		Kind:           c.Kind,
		Value:          c.Value,
		Description:    c.Description,
		DiscountAmount: amount,
	}, nil
}

// Commit consumes one use of the coupon for the given user. It re-validates
// against current state first (time may have passed and concurrent commits
// may have consumed the remaining budget since the cart-side Evaluate), then
// performs the atomic conditional redemption. Rejections share the Evaluate
// taxonomy so the checkout flow can surface "coupon became invalid" without
// failing the order pipeline.
func (e *Engine) Commit(ctx context.Context, code, userID string) (*Coupon, error) {
	c, err := e.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	now := e.now()
	cart := CartContext{UserID: userID}
	for _, check := range redemptionChecks {
		if rej := check(c, cart, now); rej != nil {
			return nil, rej
		}
	}

	updated, err := e.repo.Redeem(ctx, NormalizeCode(code), userID)
	switch {
	case err == nil:
		return updated, nil
	// Races lost between the re-validation above and the conditional
	// update map onto the same reasons the checks would have produced.
	case errors.Is(err, ErrNotFound):
		return nil, reject(ReasonNotFound)
	case errors.Is(err, ErrInactive):
		return nil, reject(ReasonInactive)
	case errors.Is(err, ErrUsageExhausted):
		return nil, reject(ReasonUsageLimitReached)
	case errors.Is(err, ErrAlreadyRedeemed):
		return nil, reject(ReasonAlreadyUsedByUser)
	default:
		return nil, errors.Wrap(err, "redeem coupon")
	}
}

func (e *Engine) lookup(ctx context.Context, code string) (*Coupon, error) {
	c, err := e.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, reject(ReasonNotFound)
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	return c, nil
}

func checkActive(c *Coupon, _ CartContext, _ time.Time) *Rejection {
	if !c.Active {
		return reject(ReasonInactive)
	}
	return nil
}

// checkWindow enforces the half-open validity window [ValidFrom, ValidUntil):
// the start instant is eligible, the end instant is not.
func checkWindow(c *Coupon, _ CartContext, now time.Time) *Rejection {
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return reject(ReasonNotYetStarted)
	}
	if c.ValidUntil != nil && !now.Before(*c.ValidUntil) {
		return reject(ReasonExpired)
	}
	return nil
}

func checkUsageLimit(c *Coupon, _ CartContext, _ time.Time) *Rejection {
	if c.UsageExhausted() {
		return reject(ReasonUsageLimitReached)
	}
	return nil
}

// checkOneTimePerUser fails closed for guest carts: without an identity the
// engine cannot guarantee single use.
func checkOneTimePerUser(c *Coupon, cart CartContext, _ time.Time) *Rejection {
	if !c.OneTimePerUser {
		return nil
	}
	if cart.UserID == "" {
		return reject(ReasonAuthenticationRequired)
	}
	if c.HasRedeemed(cart.UserID) {
		return reject(ReasonAlreadyUsedByUser)
	}
	return nil
}

func checkAllowedUsers(c *Coupon, cart CartContext, _ time.Time) *Rejection {
	if len(c.AllowedUsers) == 0 {
		return nil
	}
	if cart.UserID == "" || !slices.Contains(c.AllowedUsers, cart.UserID) {
		return reject(ReasonNotEligible)
	}
	return nil
}

func checkMinPurchase(c *Coupon, cart CartContext, _ time.Time) *Rejection {
	if cart.Subtotal.GreaterThanOrEqual(c.MinPurchase) {
		return nil
	}
	return &Rejection{
		Reason:    ReasonMinimumPurchaseNotMet,
		Shortfall: c.MinPurchase.Sub(cart.Subtotal),
	}
}

// checkCartScope evaluates product and category scoping against the whole
// cart: an excluded item anywhere disqualifies it, and when inclusion lists
// are set at least one line must match. Eligibility is scoped but the
// discount amount is computed against the full subtotal: if any item
// qualifies, the whole order is discounted.
func checkCartScope(c *Coupon, cart CartContext, _ time.Time) *Rejection {
	for _, item := range cart.Items {
		if slices.Contains(c.ExcludedProducts, item.ProductID) {
			return reject(ReasonNotApplicable)
		}
	}

	if len(c.ApplicableProducts) == 0 && len(c.ApplicableCategories) == 0 {
		return nil
	}
	for _, item := range cart.Items {
		if slices.Contains(c.ApplicableProducts, item.ProductID) ||
			slices.Contains(c.ApplicableCategories, item.Category) {
			return nil
		}
	}
	return reject(ReasonNotApplicable)
}
