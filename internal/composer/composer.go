package composer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chilly266futon/orderComposer/internal/domain"
)

// Composer owns a draft order for one trading panel. Setters mutate the
// draft synchronously and start at most one estimate request; only the
// response of the latest request is applied.
type Composer struct {
	cfg       Config
	balances  BalanceSource
	estimator EstimationClient
	orders    OrderClient
	haptic    HapticFeedback
	observer  Observer
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	pair       domain.TradingPair
	draft      domain.DraftOrder
	seq        uint64
	version    uint64
	estimating bool
	inflight   *Submission
}

func New(cfg Config, pair domain.TradingPair, deps Deps, logger *zap.Logger) *Composer {
	if cfg.Step.IsZero() {
		cfg.Step = decimal.NewFromInt(1)
	}
	if deps.Balances == nil {
		deps.Balances = noBalances{}
	}
	if deps.Haptic == nil {
		deps.Haptic = nopHaptic{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Composer{
		cfg:       cfg,
		balances:  deps.Balances,
		estimator: deps.Estimator,
		orders:    deps.Orders,
		haptic:    deps.Haptic,
		observer:  deps.Observer,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		pair:      pair,
		draft:     domain.NewDraftOrder(),
	}
}

func (c *Composer) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

// SetSide switches the side. The amount unit flips with the side, so amount
// and estimate are reset and any in-flight estimate is invalidated.
func (c *Composer) SetSide(side domain.Side) {
	c.haptic.ImpactOccurred(HapticLight)

	c.mu.Lock()
	c.draft.Side = side
	c.draft.Amount = decimal.Zero
	c.draft.LastError = domain.ErrorNone
	c.refreshLocked()
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(EventDraftChanged, snap)
}

// SetOrderType keeps any entered price; market requests never carry it.
func (c *Composer) SetOrderType(t domain.OrderType) {
	c.haptic.ImpactOccurred(HapticLight)

	c.mu.Lock()
	c.draft.OrderType = t
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(EventDraftChanged, snap)
}

// SetAmount returns the estimate request it started, or nil when the amount
// is zero and the estimate was cleared instead.
func (c *Composer) SetAmount(amount decimal.Decimal) *Estimation {
	c.mu.Lock()
	c.draft.Amount = amount
	est := c.refreshLocked()
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(EventDraftChanged, snap)
	return est
}

// SetAmountInput parses the amount field text, which may carry the unit suffix.
func (c *Composer) SetAmountInput(text string) (*Estimation, error) {
	c.mu.Lock()
	unit := c.pair.AmountAsset(c.draft.Side)
	c.mu.Unlock()

	amount, err := domain.ParseAmountInput(text, unit)
	if err != nil {
		return nil, err
	}
	return c.SetAmount(amount), nil
}

func (c *Composer) IncrementAmount() *Estimation {
	c.haptic.ImpactOccurred(HapticLight)

	c.mu.Lock()
	c.draft.Amount = c.draft.Amount.Add(c.cfg.Step)
	est := c.refreshLocked()
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(EventDraftChanged, snap)
	return est
}

// DecrementAmount never goes below zero.
func (c *Composer) DecrementAmount() *Estimation {
	c.haptic.ImpactOccurred(HapticLight)

	c.mu.Lock()
	c.draft.Amount = decimal.Max(c.draft.Amount.Sub(c.cfg.Step), decimal.Zero)
	est := c.refreshLocked()
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(EventDraftChanged, snap)
	return est
}

// SetAmountFromBalancePercentage sets the amount to a share of the balance
// of the asset being spent: quote for buy, base for sell.
func (c *Composer) SetAmountFromBalancePercentage(q domain.QuickPick) (*Estimation, error) {
	fraction, err := q.Fraction()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	asset := c.pair.AmountAsset(c.draft.Side)
	c.draft.Amount = c.balances.Get(asset).Mul(fraction)
	est := c.refreshLocked()
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(EventDraftChanged, snap)
	return est, nil
}

func (c *Composer) SetPrice(price decimal.Decimal) *Estimation {
	c.mu.Lock()
	c.draft.Price = &price
	est := c.refreshLocked()
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(EventDraftChanged, snap)
	return est
}

// SetPair replaces the pair wholesale and refreshes the estimate.
func (c *Composer) SetPair(pair domain.TradingPair) *Estimation {
	c.mu.Lock()
	c.pair = pair
	est := c.refreshLocked()
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(EventDraftChanged, snap)
	return est
}

// Reset zeroes amount and estimate, as when the panel is shown again.
func (c *Composer) Reset() {
	c.mu.Lock()
	c.draft.Amount = decimal.Zero
	c.draft.LastError = domain.ErrorNone
	c.refreshLocked()
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(EventDraftChanged, snap)
}

// Wait blocks until every started estimate and submission has settled.
func (c *Composer) Wait() {
	c.wg.Wait()
}

// Close cancels outstanding calls and waits for them to settle.
func (c *Composer) Close() {
	c.cancel()
	c.wg.Wait()
}

// refreshLocked bumps the sequence so that any in-flight estimate becomes
// stale, then starts a new request unless the amount is zero.
func (c *Composer) refreshLocked() *Estimation {
	c.seq++

	if c.draft.Amount.IsZero() || !c.pair.IsSelected() || c.estimator == nil {
		c.draft.Estimate = decimal.Zero
		c.estimating = false
		return nil
	}

	est := newEstimation(c.seq)
	req := domain.EstimateRequest{
		Side:   c.draft.Side,
		Amount: c.draft.Amount,
		Pair:   c.pair.Oriented(c.draft.Side),
	}
	c.estimating = true

	c.wg.Add(1)
	go c.runEstimate(est, req)

	return est
}

func (c *Composer) runEstimate(est *Estimation, req domain.EstimateRequest) {
	defer c.wg.Done()
	defer close(est.done)

	ctx, cancel := c.callContext(c.cfg.EstimateTimeout)
	out, err := c.estimator.Estimate(ctx, req)
	cancel()

	c.mu.Lock()
	if est.Seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("stale estimate discarded",
			zap.Uint64("seq", est.Seq),
			zap.Error(err),
		)
		return
	}

	c.estimating = false
	est.applied = true
	est.err = err
	if err != nil {
		c.draft.Estimate = decimal.Zero
		c.draft.LastError = domain.ErrorNetwork
	} else {
		est.out = out
		c.draft.Estimate = out
	}
	snap := c.changedLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("estimate failed",
			zap.Uint64("seq", est.Seq),
			zap.String("side", req.Side.String()),
			zap.String("amount", req.Amount.String()),
			zap.Error(err),
		)
	}

	c.emit(EventDraftChanged, snap)
}

// Submit validates the draft and sends it to the order API. A submit while
// another one is in flight returns the in-flight attempt.
func (c *Composer) Submit() *Submission {
	c.haptic.ImpactOccurred(HapticLight)

	c.mu.Lock()
	if c.inflight != nil {
		s := c.inflight
		c.mu.Unlock()
		return s
	}

	c.draft.LastError = domain.ErrorNone

	if code := c.draft.Validate(c.pair); code != domain.ErrorNone {
		c.draft.LastError = code
		snap := c.changedLocked()
		c.mu.Unlock()

		c.logger.Info("order rejected locally", zap.String("code", string(code)))
		c.emit(EventSubmitFailed, snap)
		return resolvedSubmission(OutcomeInvalid, code)
	}

	if c.orders == nil {
		c.draft.LastError = domain.ErrorNetwork
		snap := c.changedLocked()
		c.mu.Unlock()

		c.emit(EventSubmitFailed, snap)
		return resolvedSubmission(OutcomeFailed, domain.ErrorNetwork)
	}

	req := c.draft.Request(c.pair)
	sub := newSubmission()
	c.inflight = sub
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(EventDraftChanged, snap)

	c.wg.Add(1)
	go c.runSubmit(sub, req)

	return sub
}

func (c *Composer) runSubmit(sub *Submission, req domain.OrderRequest) {
	defer c.wg.Done()
	defer close(sub.done)

	ctx, cancel := c.callContext(c.cfg.SubmitTimeout)
	res, err := c.orders.CreateOrder(ctx, req)
	cancel()

	kind := EventSubmitFailed

	c.mu.Lock()
	c.inflight = nil
	switch {
	case err != nil:
		sub.outcome, sub.code = OutcomeFailed, domain.ErrorNetwork
		c.draft.LastError = domain.ErrorNetwork
	case res.Error != domain.ErrorNone:
		sub.outcome, sub.code = OutcomeRejected, res.Error
		c.draft.LastError = res.Error
	case res.Success:
		sub.outcome = OutcomeAccepted
		kind = EventSubmitted
	default:
		sub.outcome = OutcomeUnknown
		kind = EventSubmitUnknown
	}
	snap := c.changedLocked()
	c.mu.Unlock()

	fields := []zap.Field{
		zap.String("side", req.Side.String()),
		zap.String("amount", req.Amount.String()),
		zap.Strings("pair", req.Pair[:]),
		zap.String("outcome", sub.outcome.String()),
	}
	switch sub.outcome {
	case OutcomeAccepted:
		c.logger.Info("order submitted", fields...)
	case OutcomeFailed:
		c.logger.Error("order submission failed", append(fields, zap.Error(err))...)
	default:
		c.logger.Warn("order not accepted", append(fields, zap.String("code", string(sub.code)))...)
	}

	c.emit(kind, snap)
}

func (c *Composer) callContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(c.ctx, timeout)
	}
	return context.WithCancel(c.ctx)
}

func (c *Composer) changedLocked() Snapshot {
	c.version++
	return c.snapshotLocked()
}

func (c *Composer) snapshotLocked() Snapshot {
	draft := c.draft
	if draft.Price != nil {
		price := *draft.Price
		draft.Price = &price
	}

	return Snapshot{
		Version:       c.version,
		Pair:          c.pair,
		Draft:         draft,
		AmountAsset:   c.pair.AmountAsset(draft.Side),
		EstimateAsset: c.pair.EstimateAsset(draft.Side),
		Estimating:    c.estimating,
		Submitting:    c.inflight != nil,
	}
}

func (c *Composer) emit(kind EventKind, snap Snapshot) {
	if c.observer == nil {
		return
	}
	c.observer(Event{Kind: kind, Snapshot: snap})
}
