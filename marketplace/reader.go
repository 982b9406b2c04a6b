package marketplace

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/agrimarket/agridash/contracts"
	"github.com/agrimarket/agridash/types"
)

// maxParallelReads bounds the concurrent detail calls of a listing read.
const maxParallelReads = 8

// Reader performs read-only contract calls. Nothing is cached: every call
// hits the chain.
type Reader struct {
	token  *contracts.Token
	market *contracts.Marketplace
}

func NewReader(token *contracts.Token, market *contracts.Marketplace) *Reader {
	return &Reader{token: token, market: market}
}

// Spender is the address every approval is granted to.
func (r *Reader) Spender() common.Address { return r.market.Address() }

func (r *Reader) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return r.token.Allowance(ctx, owner, spender)
}

func (r *Reader) OperationFee(ctx context.Context) (*big.Int, error) {
	return r.market.OperationFee(ctx)
}

func (r *Reader) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	return r.token.BalanceOf(ctx, account)
}

func (r *Reader) TokenOwner(ctx context.Context) (common.Address, error) {
	return r.token.Owner(ctx)
}

func (r *Reader) Decimals(ctx context.Context) (uint8, error) {
	return r.token.Decimals(ctx)
}

func (r *Reader) Symbol(ctx context.Context) (string, error) {
	return r.token.Symbol(ctx)
}

func (r *Reader) Product(ctx context.Context, id *big.Int) (types.Product, error) {
	return r.market.GetProduct(ctx, id)
}

func (r *Reader) Order(ctx context.Context, id *big.Int) (types.Order, error) {
	return r.market.GetOrderDetails(ctx, id)
}

func (r *Reader) Bid(ctx context.Context, id *big.Int) (types.Bid, error) {
	return r.market.GetBidDetails(ctx, id)
}

// Products returns every listed product in listing order.
func (r *Reader) Products(ctx context.Context) ([]types.Product, error) {
	ids, err := r.market.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}
	return fetchAll(ctx, ids, r.market.GetProduct)
}

// Orders returns the orders placed by user.
func (r *Reader) Orders(ctx context.Context, user common.Address) ([]types.Order, error) {
	ids, err := r.market.GetUserOrders(ctx, user)
	if err != nil {
		return nil, err
	}
	return fetchAll(ctx, ids, r.market.GetOrderDetails)
}

// Bids returns the bids the marketplace associates with user.
func (r *Reader) Bids(ctx context.Context, user common.Address) ([]types.Bid, error) {
	ids, err := r.market.GetUserBids(ctx, user)
	if err != nil {
		return nil, err
	}
	return fetchAll(ctx, ids, r.market.GetBidDetails)
}

// fetchAll resolves ids in parallel, preserving their order.
func fetchAll[T any](ctx context.Context, ids []*big.Int, get func(context.Context, *big.Int) (T, error)) ([]T, error) {
	out := make([]T, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			v, err := get(ctx, id)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
