package sequencer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agrimarket/agridash/contracts"
	"github.com/agrimarket/agridash/libs/events"
	"github.com/agrimarket/agridash/libs/log"
	"github.com/agrimarket/agridash/types"
)

//go:generate mockery --case underscore --name Wallet|Reader|Invalidator|Journal

const (
	EventStateChange = "StateChange"
	EventCompleted   = "Completed"
	EventFailed      = "Failed"
)

// Wallet submits writes and observes their confirmation.
type Wallet interface {
	Address() common.Address
	Send(ctx context.Context, call contracts.Call) (common.Hash, error)
	WaitConfirmed(ctx context.Context, hash common.Hash) error
}

// Reader provides the fresh chain reads a sequence depends on.
type Reader interface {
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	OperationFee(ctx context.Context) (*big.Int, error)
	Product(ctx context.Context, id *big.Int) (types.Product, error)
}

// Invalidator refetches read-only state after a completed write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Journal persists submitted transaction handles.
type Journal interface {
	Save(rec types.TxRecord) error
}

// Sequencer drives at most one approve-then-act sequence at a time. A
// dependent write is only submitted once the allowance covers the required
// amount, either because it already did or because an approval for that
// amount has confirmed.
type Sequencer struct {
	logger log.Logger
	wallet Wallet
	reader Reader
	token  *contracts.Token
	market *contracts.Marketplace

	invalidator Invalidator
	evsw        events.EventSwitch
	journal     Journal
	metrics     *Metrics

	// fireMtx is taken before mtx by every path that changes state and fires
	// an event, so listeners see events in the order the changes were made.
	fireMtx sync.Mutex

	mtx     sync.Mutex
	gen     uint64
	running bool
	cancel  context.CancelFunc
	status  Status
}

// Option sets an optional parameter on the Sequencer.
type Option func(*Sequencer)

func WithInvalidator(inv Invalidator) Option {
	return func(s *Sequencer) { s.invalidator = inv }
}

func WithEventSwitch(evsw events.EventSwitch) Option {
	return func(s *Sequencer) { s.evsw = evsw }
}

func WithJournal(j Journal) Option {
	return func(s *Sequencer) { s.journal = j }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// New returns a Sequencer for the wallet's account. Approvals are granted
// to the marketplace address.
func New(
	logger log.Logger,
	wallet Wallet,
	reader Reader,
	token *contracts.Token,
	market *contracts.Marketplace,
	opts ...Option,
) *Sequencer {
	s := &Sequencer{
		logger:  logger,
		wallet:  wallet,
		reader:  reader,
		token:   token,
		market:  market,
		metrics: NopMetrics(),
		status:  Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns a snapshot of the sequencer.
func (s *Sequencer) Status() Status {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.status.copy()
}

// Reset stops observing the in-flight sequence and returns to Idle. A write
// that was already submitted is not cancelled; it is returned so the caller
// can tell the user it may still confirm.
func (s *Sequencer) Reset() []types.TxHandle {
	s.fireMtx.Lock()
	defer s.fireMtx.Unlock()

	s.mtx.Lock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.running = false
	prev := s.status
	s.status = Status{State: StateIdle}
	next := s.status.copy()
	s.mtx.Unlock()

	if prev.State == StateIdle {
		return prev.Unresolved()
	}
	return s.stopObserving(prev, next)
}

// stopObserving announces the move from prev to Idle and returns the
// submitted writes that may still confirm. The caller holds fireMtx.
func (s *Sequencer) stopObserving(prev, next Status) []types.TxHandle {
	unresolved := prev.Unresolved()
	for _, h := range unresolved {
		s.logger.Info("stopped observing submitted transaction", "kind", h.Kind, "hash", h.Hash)
	}
	change := StateChange{From: prev.State, To: StateIdle, Status: next}
	if prev.Pending != nil {
		change.IntentID, change.Kind = prev.Pending.Intent.ID, prev.Pending.Intent.Kind
	}
	s.fire(EventStateChange, change)
	return unresolved
}

// sequence is the bookkeeping of one admitted intent.
type sequence struct {
	gen     uint64
	intent  types.Intent
	pending *types.PendingIntent
	skipped bool
	records map[types.TxKind]*types.TxRecord
}

// Execute drives intent to a terminal state and blocks until it is reached.
// It refuses to start while another sequence is in progress. The returned
// error is the cause of a Failed sequence, ErrSequenceReset if Reset
// interrupted it or ctx was canceled, or an admission error in which case
// the Result is nil.
func (s *Sequencer) Execute(ctx context.Context, intent types.Intent) (*Result, error) {
	done, err := s.ExecuteAsync(ctx, intent)
	if err != nil {
		return nil, err
	}
	res := <-done
	return res, res.Err
}

// ExecuteAsync admits intent and drives it in the background. Admission
// errors are returned immediately; the outcome is delivered on the returned
// channel once the sequence reaches a terminal state or is reset.
func (s *Sequencer) ExecuteAsync(ctx context.Context, intent types.Intent) (<-chan *Result, error) {
	if err := intent.ValidateBasic(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	seq := &sequence{intent: intent, records: make(map[types.TxKind]*types.TxRecord)}
	if err := s.admit(seq, cancel); err != nil {
		cancel()
		return nil, err
	}
	s.metrics.Started.With("kind", string(intent.Kind)).Add(1)
	s.logger.Info("starting sequence", "intent", intent.ID, "kind", intent.Kind)

	done := make(chan *Result, 1)
	go func() {
		defer cancel()
		res, _ := s.finish(ctx, seq, s.run(ctx, seq))
		done <- res
	}()
	return done, nil
}

func (s *Sequencer) admit(seq *sequence, cancel context.CancelFunc) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.running || !s.status.State.Resting() {
		return ErrSequenceInFlight
	}
	s.gen++
	seq.gen = s.gen
	s.running = true
	s.cancel = cancel
	s.status = Status{State: StateIdle}
	return nil
}

func (s *Sequencer) run(ctx context.Context, seq *sequence) error {
	pending, err := s.prepare(ctx, seq.intent)
	if err != nil {
		return err
	}
	seq.pending = pending
	if err := s.update(seq, func(st *Status) { st.Pending = pending }); err != nil {
		return err
	}

	needApproval, err := s.needsApproval(ctx, pending)
	if err != nil {
		return err
	}
	if needApproval {
		if err := s.approve(ctx, seq); err != nil {
			return err
		}
	} else {
		seq.skipped = true
		if seq.intent.Kind.NeedsAllowance() {
			s.metrics.ApprovalsSkipped.With("kind", string(seq.intent.Kind)).Add(1)
			s.logger.Info("allowance covers required amount; skipping approval",
				"intent", seq.intent.ID, "required", pending.Required)
		}
	}

	call, err := s.actionCall(seq.intent)
	if err != nil {
		return err
	}
	return s.submit(ctx, seq, types.TxKindAction, call,
		StateAwaitingActionSignature, StateAwaitingActionConfirmation)
}

// prepare computes the amounts of intent. The fee and product price are read
// fresh for every sequence.
func (s *Sequencer) prepare(ctx context.Context, intent types.Intent) (*types.PendingIntent, error) {
	pi := &types.PendingIntent{Intent: intent, Value: new(big.Int), Fee: new(big.Int), Required: new(big.Int)}

	switch intent.Kind {
	case types.IntentOrder:
		product, err := s.reader.Product(ctx, intent.ProductID)
		if err != nil {
			return nil, fmt.Errorf("reading product %v: %w", intent.ProductID, err)
		}
		if product.Farmer == s.wallet.Address() {
			return nil, ErrOwnProduct
		}
		if !product.InStock(intent.Quantity) {
			return nil, fmt.Errorf("%w: %v %s available", ErrOutOfStock, product.Stock, product.Unit)
		}
		pi.Value = product.Cost(intent.Quantity)

	case types.IntentBid:
		pi.Value = new(big.Int).Set(intent.Amount)

	case types.IntentTransfer, types.IntentSetFee:
		pi.Value = new(big.Int).Set(intent.Amount)
	}

	if intent.Kind.NeedsAllowance() {
		fee, err := s.reader.OperationFee(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading operation fee: %w", err)
		}
		pi.Fee = fee
		pi.Required = types.AddAmounts(pi.Value, fee)
	}
	return pi, nil
}

func (s *Sequencer) needsApproval(ctx context.Context, pi *types.PendingIntent) (bool, error) {
	if pi.Required.Sign() == 0 {
		return false, nil
	}
	allowance, err := s.reader.Allowance(ctx, s.wallet.Address(), s.market.Address())
	if err != nil {
		return false, fmt.Errorf("reading allowance: %w", err)
	}
	return !types.Covers(allowance, pi.Required), nil
}

func (s *Sequencer) approve(ctx context.Context, seq *sequence) error {
	call, err := s.token.Approve(s.market.Address(), seq.pending.Required)
	if err != nil {
		return err
	}
	err = s.submit(ctx, seq, types.TxKindApprove, call,
		StateAwaitingApproveSignature, StateAwaitingApproveConfirmation)
	if err != nil {
		return err
	}

	// Another write from the same account may have spent the allowance
	// between the approval and now.
	allowance, err := s.reader.Allowance(ctx, s.wallet.Address(), s.market.Address())
	if err != nil {
		return fmt.Errorf("re-reading allowance: %w", err)
	}
	if !types.Covers(allowance, seq.pending.Required) {
		return fmt.Errorf("%w: have %v, need %v", ErrInsufficientAllowance, allowance, seq.pending.Required)
	}
	return nil
}

// submit moves through the signature and confirmation states of one write.
func (s *Sequencer) submit(
	ctx context.Context,
	seq *sequence,
	kind types.TxKind,
	call contracts.Call,
	signing, confirming State,
) error {
	if err := s.transition(seq, signing, nil); err != nil {
		return err
	}

	hash, err := s.wallet.Send(ctx, call)
	if err != nil {
		return err
	}
	submitted := time.Now()

	handle := types.TxHandle{Kind: kind, Method: call.Method, Hash: hash, Status: types.TxPending}
	rec := &types.TxRecord{
		TxHandle:    handle,
		IntentID:    seq.intent.ID,
		IntentKind:  seq.intent.Kind,
		Account:     s.wallet.Address(),
		SubmittedAt: submitted,
	}
	seq.records[kind] = rec
	s.save(rec)

	err = s.transition(seq, confirming, func(st *Status) { setHandle(st, handle) })
	if err != nil {
		return err
	}

	err = s.wallet.WaitConfirmed(ctx, hash)
	if s.stale(seq) {
		return ErrSequenceReset
	}
	if err != nil && ctx.Err() != nil {
		// The write may still confirm; its record stays pending.
		return fmt.Errorf("%w: %w", ErrSequenceReset, ctx.Err())
	}
	rec.ResolvedAt = time.Now()
	if err != nil {
		handle.Status = types.TxFailed
		rec.Status, rec.Error = types.TxFailed, err.Error()
		s.save(rec)
		_ = s.update(seq, func(st *Status) { setHandle(st, handle) })
		return err
	}

	s.metrics.ConfirmationLatency.With("tx_kind", string(kind)).Observe(rec.ResolvedAt.Sub(submitted).Seconds())
	handle.Status = types.TxConfirmed
	rec.Status = types.TxConfirmed
	s.save(rec)
	return s.update(seq, func(st *Status) { setHandle(st, handle) })
}

func setHandle(st *Status, h types.TxHandle) {
	if h.Kind == types.TxKindApprove {
		st.Approve = &h
	} else {
		st.Action = &h
	}
}

func (s *Sequencer) actionCall(intent types.Intent) (contracts.Call, error) {
	switch intent.Kind {
	case types.IntentOrder:
		return s.market.PlaceOrder(intent.ProductID, intent.Quantity)
	case types.IntentBid:
		return s.market.PlaceBid(intent.ProductID, intent.Amount)
	case types.IntentAcceptBid:
		return s.market.AcceptBid(intent.BidID)
	case types.IntentCompleteBid:
		return s.market.CompleteBid(intent.BidID)
	case types.IntentCreateProduct:
		return s.market.CreateProduct(*intent.Listing)
	case types.IntentSetFee:
		return s.market.SetOperationFee(intent.Amount)
	case types.IntentTransfer:
		return s.token.Transfer(intent.Recipient, intent.Amount)
	case types.IntentSetProfile:
		return s.market.SetUserDetails(*intent.Profile)
	default:
		return contracts.Call{}, fmt.Errorf("%w: unknown intent kind %q", types.ErrInvalidIntent, intent.Kind)
	}
}

// finish moves the sequence to its terminal state.
func (s *Sequencer) finish(ctx context.Context, seq *sequence, err error) (*Result, error) {
	res := &Result{IntentID: seq.intent.ID, Pending: seq.pending, ApprovalSkipped: seq.skipped}

	s.fireMtx.Lock()
	s.mtx.Lock()
	if seq.gen != s.gen {
		s.mtx.Unlock()
		s.fireMtx.Unlock()
		s.logger.Info("sequence was reset", "intent", seq.intent.ID)
		res.State, res.Err = StateIdle, ErrSequenceReset
		return res, ErrSequenceReset
	}
	if err != nil && ctx.Err() != nil {
		// The caller stopped observing. Nothing is known about the writes
		// already submitted, so the sequence is reset rather than failed.
		prev := s.status.copy()
		s.status = Status{State: StateIdle}
		s.running = false
		s.cancel = nil
		next := s.status.copy()
		s.mtx.Unlock()
		s.stopObserving(prev, next)
		s.fireMtx.Unlock()

		if !IsReset(err) {
			err = fmt.Errorf("%w: %w", ErrSequenceReset, err)
		}
		res.State, res.Approve, res.Action, res.Err = StateIdle, prev.Approve, prev.Action, err
		return res, err
	}
	from := s.status.State
	to := StateCompleted
	if err != nil {
		to = StateFailed
	}
	// the pending intent is consumed either way
	s.status.State, s.status.Pending = to, nil
	if err != nil {
		s.status.Error = err.Error()
	}
	s.running = false
	s.cancel = nil
	status := s.status.copy()
	s.mtx.Unlock()

	res.State, res.Approve, res.Action, res.Err = to, status.Approve, status.Action, err
	kind := string(seq.intent.Kind)
	s.fire(EventStateChange, StateChange{
		IntentID: seq.intent.ID, Kind: seq.intent.Kind, From: from, To: to, Status: status,
	})

	if err != nil {
		s.metrics.Failed.With("kind", kind).Add(1)
		s.logger.Error("sequence failed", "intent", seq.intent.ID, "kind", kind, "state", from, "err", err)
		s.fire(EventFailed, *res)
		s.fireMtx.Unlock()
		return res, err
	}
	s.fireMtx.Unlock()

	s.metrics.Completed.With("kind", kind).Add(1)
	s.logger.Info("sequence completed", "intent", seq.intent.ID, "kind", kind)
	if s.invalidator != nil {
		// ctx is canceled by now if the caller gave up; the refetch must not
		// depend on it.
		if ierr := s.invalidator.Invalidate(context.WithoutCancel(ctx)); ierr != nil {
			s.logger.Error("failed to refetch marketplace state", "err", ierr)
		}
	}
	s.fireMtx.Lock()
	s.fire(EventCompleted, *res)
	s.fireMtx.Unlock()
	return res, nil
}

// transition moves a live sequence to state to.
func (s *Sequencer) transition(seq *sequence, to State, mutate func(*Status)) error {
	s.fireMtx.Lock()
	defer s.fireMtx.Unlock()

	s.mtx.Lock()
	if seq.gen != s.gen {
		s.mtx.Unlock()
		return ErrSequenceReset
	}
	from := s.status.State
	s.status.State = to
	if mutate != nil {
		mutate(&s.status)
	}
	status := s.status.copy()
	s.mtx.Unlock()

	s.logger.Info("sequence transition", "intent", seq.intent.ID, "from", from, "to", to)
	s.fire(EventStateChange, StateChange{
		IntentID: seq.intent.ID, Kind: seq.intent.Kind, From: from, To: to, Status: status,
	})
	return nil
}

// update changes the status of a live sequence without a state transition.
func (s *Sequencer) update(seq *sequence, mutate func(*Status)) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if seq.gen != s.gen {
		return ErrSequenceReset
	}
	mutate(&s.status)
	return nil
}

func (s *Sequencer) stale(seq *sequence) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return seq.gen != s.gen
}

func (s *Sequencer) save(rec *types.TxRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Save(*rec); err != nil {
		s.logger.Error("failed to journal transaction", "hash", rec.Hash, "err", err)
	}
}

func (s *Sequencer) fire(event string, data events.EventData) {
	if s.evsw != nil {
		s.evsw.FireEvent(event, data)
	}
}

// IsReset reports whether err means the sequence was reset by the user.
func IsReset(err error) bool {
	return errors.Is(err, ErrSequenceReset)
}
