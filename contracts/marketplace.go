package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/agrimarket/agridash/types"
)

// Tuple layouts returned by the marketplace getters. Field names must match
// the ABI component names for abi.ConvertType.
//
//nolint:revive,stylecheck
type (
	productTuple struct {
		Id       *big.Int
		Name     string
		Price    *big.Int
		Unit     string
		Quantity *big.Int
		Stock    *big.Int
		Farmer   common.Address
	}

	orderTuple struct {
		Id         *big.Int
		ProductId  *big.Int
		Quantity   *big.Int
		TotalPrice *big.Int
		Buyer      common.Address
		Fulfilled  bool
	}

	bidTuple struct {
		Id        *big.Int
		ProductId *big.Int
		Amount    *big.Int
		Bidder    common.Address
		Accepted  bool
		Completed bool
	}
)

// Marketplace binds the marketplace contract.
type Marketplace struct {
	contract
}

// NewMarketplace returns a binding for the marketplace at addr. caller may be
// nil when only write calls are built.
func NewMarketplace(addr common.Address, caller Caller) *Marketplace {
	return &Marketplace{contract{address: addr, abi: marketplaceABI, caller: caller}}
}

// Address returns the marketplace contract address. It is the spender of
// every approval.
func (m *Marketplace) Address() common.Address { return m.address }

func (m *Marketplace) PlaceOrder(productID, quantity *big.Int) (Call, error) {
	return m.pack("placeOrder", productID, quantity)
}

func (m *Marketplace) PlaceBid(productID, amount *big.Int) (Call, error) {
	return m.pack("placeBid", productID, amount)
}

func (m *Marketplace) AcceptBid(bidID *big.Int) (Call, error) {
	return m.pack("acceptBid", bidID)
}

func (m *Marketplace) CompleteBid(bidID *big.Int) (Call, error) {
	return m.pack("completeBid", bidID)
}

// CreateProduct lists a new product. A zero stock marks a growing crop.
func (m *Marketplace) CreateProduct(l types.Listing) (Call, error) {
	return m.pack("createProduct", l.Name, l.Price, l.Unit, l.Quantity, l.Stock)
}

func (m *Marketplace) SetOperationFee(fee *big.Int) (Call, error) {
	return m.pack("setOperationFee", fee)
}

func (m *Marketplace) SetUserDetails(p types.Profile) (Call, error) {
	return m.pack("setUserDetails", p.Name, p.ContactInfo)
}

// OperationFee returns the fee charged on top of every order or bid.
func (m *Marketplace) OperationFee(ctx context.Context) (*big.Int, error) {
	return m.callBig(ctx, "operationFee")
}

// GetAllProducts returns the ids of every listed product.
func (m *Marketplace) GetAllProducts(ctx context.Context) ([]*big.Int, error) {
	return m.callBigSlice(ctx, "getAllProducts")
}

func (m *Marketplace) GetUserOrders(ctx context.Context, user common.Address) ([]*big.Int, error) {
	return m.callBigSlice(ctx, "getUserOrders", user)
}

func (m *Marketplace) GetUserBids(ctx context.Context, user common.Address) ([]*big.Int, error) {
	return m.callBigSlice(ctx, "getUserBids", user)
}

// Token returns the address of the token the marketplace settles in.
func (m *Marketplace) Token(ctx context.Context) (common.Address, error) {
	return m.callAddress(ctx, "token")
}

func (m *Marketplace) GetProduct(ctx context.Context, id *big.Int) (types.Product, error) {
	out, err := m.call(ctx, "getProduct", id)
	if err != nil {
		return types.Product{}, err
	}
	t, ok := abi.ConvertType(out[0], new(productTuple)).(*productTuple)
	if !ok {
		return types.Product{}, fmt.Errorf("getProduct: unexpected output %T", out[0])
	}
	return types.Product{
		ID:       t.Id,
		Name:     t.Name,
		Price:    t.Price,
		Unit:     t.Unit,
		Quantity: t.Quantity,
		Stock:    t.Stock,
		Farmer:   t.Farmer,
	}, nil
}

func (m *Marketplace) GetOrderDetails(ctx context.Context, id *big.Int) (types.Order, error) {
	out, err := m.call(ctx, "getOrderDetails", id)
	if err != nil {
		return types.Order{}, err
	}
	t, ok := abi.ConvertType(out[0], new(orderTuple)).(*orderTuple)
	if !ok {
		return types.Order{}, fmt.Errorf("getOrderDetails: unexpected output %T", out[0])
	}
	return types.Order{
		ID:         t.Id,
		ProductID:  t.ProductId,
		Quantity:   t.Quantity,
		TotalPrice: t.TotalPrice,
		Buyer:      t.Buyer,
		Fulfilled:  t.Fulfilled,
	}, nil
}

func (m *Marketplace) GetBidDetails(ctx context.Context, id *big.Int) (types.Bid, error) {
	out, err := m.call(ctx, "getBidDetails", id)
	if err != nil {
		return types.Bid{}, err
	}
	t, ok := abi.ConvertType(out[0], new(bidTuple)).(*bidTuple)
	if !ok {
		return types.Bid{}, fmt.Errorf("getBidDetails: unexpected output %T", out[0])
	}
	return types.Bid{
		ID:        t.Id,
		ProductID: t.ProductId,
		Amount:    t.Amount,
		Bidder:    t.Bidder,
		Accepted:  t.Accepted,
		Completed: t.Completed,
	}, nil
}
