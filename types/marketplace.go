package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Product is a listing on the marketplace contract. A product with zero stock
// is a growing crop that can only be bid on.
type Product struct {
	ID       *big.Int       `json:"id"`
	Name     string         `json:"name"`
	Price    *big.Int       `json:"price"`
	Unit     string         `json:"unit"`
	Quantity *big.Int       `json:"quantity"`
	Stock    *big.Int       `json:"stock"`
	Farmer   common.Address `json:"farmer"`
}

// InStock reports whether at least qty units can be ordered.
func (p Product) InStock(qty *big.Int) bool {
	if p.Stock == nil || p.Stock.Sign() <= 0 {
		return false
	}
	return qty == nil || p.Stock.Cmp(qty) >= 0
}

// Cost is the face value of ordering qty units, excluding the operation fee.
func (p Product) Cost(qty *big.Int) *big.Int {
	if p.Price == nil || qty == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(p.Price, qty)
}

// Order is a purchase recorded by the marketplace contract.
type Order struct {
	ID         *big.Int       `json:"id"`
	ProductID  *big.Int       `json:"productId"`
	Quantity   *big.Int       `json:"quantity"`
	TotalPrice *big.Int       `json:"totalPrice"`
	Buyer      common.Address `json:"buyer"`
	Fulfilled  bool           `json:"fulfilled"`
}

// Bid is an offer on a product recorded by the marketplace contract.
type Bid struct {
	ID        *big.Int       `json:"id"`
	ProductID *big.Int       `json:"productId"`
	Amount    *big.Int       `json:"amount"`
	Bidder    common.Address `json:"bidder"`
	Accepted  bool           `json:"accepted"`
	Completed bool           `json:"completed"`
}

// BidStatus is the display status of a bid.
func (b Bid) Status() string {
	switch {
	case b.Completed:
		return "completed"
	case b.Accepted:
		return "accepted"
	default:
		return "pending"
	}
}
