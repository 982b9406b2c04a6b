package marketplace

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimarket/agridash/contracts"
	"github.com/agrimarket/agridash/libs/log"
	"github.com/agrimarket/agridash/types"
)

var (
	tokenAddr  = common.HexToAddress("0x87D58253DE27A6247Aa76223B773D326AC77Ea2c")
	marketAddr = common.HexToAddress("0x322D6EaEC87180F0695fe4da899C76C9b9216141")
	farmer     = common.HexToAddress("0x000000000000000000000000000000000000fa12")
	buyer      = common.HexToAddress("0x000000000000000000000000000000000000b0b0")
)

//nolint:revive,stylecheck
type (
	productOut struct {
		Id       *big.Int
		Name     string
		Price    *big.Int
		Unit     string
		Quantity *big.Int
		Stock    *big.Int
		Farmer   common.Address
	}
	bidOut struct {
		Id        *big.Int
		ProductId *big.Int
		Amount    *big.Int
		Bidder    common.Address
		Accepted  bool
		Completed bool
	}
	orderOut struct {
		Id         *big.Int
		ProductId  *big.Int
		Quantity   *big.Int
		TotalPrice *big.Int
		Buyer      common.Address
		Fulfilled  bool
	}
)

// fakeChain serves view calls of both contracts from in-memory tables.
type fakeChain struct {
	t      *testing.T
	token  abi.ABI
	market abi.ABI

	mtx      sync.Mutex
	products map[int64]productOut
	bids     map[int64]bidOut
	orders   map[int64]orderOut
	fee      int64
	failOn   string
	calls    map[string]int
}

func newFakeChain(t *testing.T) *fakeChain {
	parse := func(def string) abi.ABI {
		a, err := abi.JSON(strings.NewReader(def))
		require.NoError(t, err)
		return a
	}
	return &fakeChain{
		t:      t,
		token:  parse(contracts.TokenABI),
		market: parse(contracts.MarketplaceABI),
		products: map[int64]productOut{
			1: {Id: big.NewInt(1), Name: "Maize", Price: big.NewInt(10), Unit: "kg", Quantity: big.NewInt(1), Stock: big.NewInt(40), Farmer: farmer},
			2: {Id: big.NewInt(2), Name: "Coffee", Price: big.NewInt(30), Unit: "bag", Quantity: big.NewInt(1), Stock: big.NewInt(0), Farmer: buyer},
			3: {Id: big.NewInt(3), Name: "Beans", Price: big.NewInt(12), Unit: "kg", Quantity: big.NewInt(1), Stock: big.NewInt(5), Farmer: farmer},
		},
		bids: map[int64]bidOut{
			1: {Id: big.NewInt(1), ProductId: big.NewInt(1), Amount: big.NewInt(100), Bidder: buyer},
			2: {Id: big.NewInt(2), ProductId: big.NewInt(2), Amount: big.NewInt(50), Bidder: farmer},
		},
		orders: map[int64]orderOut{
			1: {Id: big.NewInt(1), ProductId: big.NewInt(3), Quantity: big.NewInt(2), TotalPrice: big.NewInt(24), Buyer: farmer},
		},
		fee:   5,
		calls: make(map[string]int),
	}
}

func (c *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	contract := c.market
	if *msg.To == tokenAddr {
		contract = c.token
	}
	method, err := contract.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	c.calls[method.Name]++
	if method.Name == c.failOn {
		return nil, errors.New("execution reverted")
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	require.NoError(c.t, err)

	var out []interface{}
	switch method.Name {
	case "getAllProducts":
		out = []interface{}{ids(len(c.products))}
	case "getProduct":
		out = []interface{}{c.products[args[0].(*big.Int).Int64()]}
	case "getUserBids":
		out = []interface{}{ids(len(c.bids))}
	case "getBidDetails":
		out = []interface{}{c.bids[args[0].(*big.Int).Int64()]}
	case "getUserOrders":
		out = []interface{}{ids(len(c.orders))}
	case "getOrderDetails":
		out = []interface{}{c.orders[args[0].(*big.Int).Int64()]}
	case "operationFee":
		out = []interface{}{big.NewInt(c.fee)}
	case "balanceOf":
		out = []interface{}{big.NewInt(1000)}
	case "allowance":
		out = []interface{}{big.NewInt(0)}
	case "owner":
		out = []interface{}{farmer}
	default:
		c.t.Fatalf("unexpected call %s", method.Name)
	}
	return method.Outputs.Pack(out...)
}

func ids(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = big.NewInt(int64(i + 1))
	}
	return out
}

func newTestState(t *testing.T, account common.Address) (*State, *fakeChain) {
	chain := newFakeChain(t)
	reader := NewReader(contracts.NewToken(tokenAddr, chain), contracts.NewMarketplace(marketAddr, chain))
	return NewState(log.TestingLogger(), reader, account), chain
}

func TestReaderProductsPreservesOrder(t *testing.T) {
	chain := newFakeChain(t)
	reader := NewReader(contracts.NewToken(tokenAddr, chain), contracts.NewMarketplace(marketAddr, chain))

	products, err := reader.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	for i, p := range products {
		assert.EqualValues(t, i+1, p.ID.Int64())
	}
	assert.Equal(t, marketAddr, reader.Spender())
}

func TestSnapshotCachesUntilInvalidated(t *testing.T) {
	state, chain := newTestState(t, farmer)
	ctx := context.Background()

	snap, err := state.Snapshot(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, snap.Fee.Int64())
	assert.True(t, snap.IsOwner())

	_, err = state.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.calls["operationFee"])

	chain.mtx.Lock()
	chain.fee = 0
	chain.mtx.Unlock()

	require.NoError(t, state.Invalidate(ctx))
	snap, err = state.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, chain.calls["operationFee"])
	assert.EqualValues(t, 0, snap.Fee.Int64())
}

func TestSnapshotFarmerViews(t *testing.T) {
	state, _ := newTestState(t, farmer)

	snap, err := state.Snapshot(context.Background())
	require.NoError(t, err)

	var names []string
	for _, p := range snap.FarmerProducts(farmer) {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Maize", "Beans"}, names)

	incoming := snap.IncomingBids(farmer)
	require.Len(t, incoming, 1)
	assert.EqualValues(t, 1, incoming[0].ID.Int64())

	p, ok := snap.Product(big.NewInt(2))
	require.True(t, ok)
	assert.False(t, p.InStock(big.NewInt(1)))
	_, ok = snap.Product(big.NewInt(99))
	assert.False(t, ok)
}

func TestSnapshotError(t *testing.T) {
	state, chain := newTestState(t, buyer)
	chain.failOn = "getBidDetails"

	_, err := state.Snapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")

	chain.failOn = ""
	snap, err := state.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.IsOwner())
	assert.Len(t, snap.FarmerProducts(buyer), 1)
	assert.Equal(t, []types.Bid(nil), snap.IncomingBids(common.Address{}))
}
