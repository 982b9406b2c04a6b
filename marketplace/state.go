package marketplace

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/agrimarket/agridash/libs/log"
	"github.com/agrimarket/agridash/types"
)

// Snapshot is everything a dashboard shows for one account, read at a single
// point in time.
type Snapshot struct {
	Account    common.Address  `json:"account"`
	Products   []types.Product `json:"products"`
	Orders     []types.Order   `json:"orders"`
	Bids       []types.Bid     `json:"bids"`
	Fee        *big.Int        `json:"fee"`
	Balance    *big.Int        `json:"balance"`
	Allowance  *big.Int        `json:"allowance"`
	TokenOwner common.Address  `json:"tokenOwner"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// IsOwner reports whether the account owns the token contract and may
// therefore change the fee and distribute tokens.
func (s *Snapshot) IsOwner() bool {
	return s.Account == s.TokenOwner
}

// Product looks up a product by id.
func (s *Snapshot) Product(id *big.Int) (types.Product, bool) {
	for _, p := range s.Products {
		if p.ID != nil && p.ID.Cmp(id) == 0 {
			return p, true
		}
	}
	return types.Product{}, false
}

// FarmerProducts returns the products listed by farmer.
func (s *Snapshot) FarmerProducts(farmer common.Address) []types.Product {
	var out []types.Product
	for _, p := range s.Products {
		if p.Farmer == farmer {
			out = append(out, p)
		}
	}
	return out
}

// IncomingBids returns the bids in the snapshot placed on products listed by
// farmer.
func (s *Snapshot) IncomingBids(farmer common.Address) []types.Bid {
	owned := make(map[string]struct{})
	for _, p := range s.FarmerProducts(farmer) {
		owned[p.ID.String()] = struct{}{}
	}
	var out []types.Bid
	for _, b := range s.Bids {
		if b.ProductID == nil {
			continue
		}
		if _, ok := owned[b.ProductID.String()]; ok {
			out = append(out, b)
		}
	}
	return out
}

// State caches the dashboard snapshot of one account until it is
// invalidated.
type State struct {
	logger  log.Logger
	reader  *Reader
	account common.Address

	mtx  sync.RWMutex
	snap *Snapshot
}

func NewState(logger log.Logger, reader *Reader, account common.Address) *State {
	return &State{logger: logger, reader: reader, account: account}
}

// Snapshot returns the cached snapshot, reading it from the chain first if
// there is none.
func (s *State) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mtx.RLock()
	snap := s.snap
	s.mtx.RUnlock()
	if snap != nil {
		return snap, nil
	}
	return s.refresh(ctx)
}

// Invalidate drops the cached snapshot and refetches it.
func (s *State) Invalidate(ctx context.Context) error {
	s.mtx.Lock()
	s.snap = nil
	s.mtx.Unlock()

	_, err := s.refresh(ctx)
	return err
}

func (s *State) refresh(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Account: s.account}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Products, err = s.reader.Products(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Orders, err = s.reader.Orders(ctx, s.account)
		return err
	})
	g.Go(func() (err error) {
		snap.Bids, err = s.reader.Bids(ctx, s.account)
		return err
	})
	g.Go(func() (err error) {
		snap.Fee, err = s.reader.OperationFee(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Balance, err = s.reader.Balance(ctx, s.account)
		return err
	})
	g.Go(func() (err error) {
		snap.Allowance, err = s.reader.Allowance(ctx, s.account, s.reader.Spender())
		return err
	})
	g.Go(func() (err error) {
		snap.TokenOwner, err = s.reader.TokenOwner(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to refresh marketplace state", "account", s.account, "err", err)
		return nil, err
	}
	snap.UpdatedAt = time.Now()

	s.mtx.Lock()
	s.snap = snap
	s.mtx.Unlock()

	s.logger.Debug("refreshed marketplace state",
		"products", len(snap.Products), "orders", len(snap.Orders), "bids", len(snap.Bids))
	return snap, nil
}
