package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// IntentKind names the marketplace action a user asked for.
type IntentKind string

const (
	IntentOrder         IntentKind = "order"
	IntentBid           IntentKind = "bid"
	IntentAcceptBid     IntentKind = "accept_bid"
	IntentCompleteBid   IntentKind = "complete_bid"
	IntentCreateProduct IntentKind = "create_product"
	IntentSetFee        IntentKind = "set_fee"
	IntentTransfer      IntentKind = "transfer"
	IntentSetProfile    IntentKind = "set_profile"
)

// NeedsAllowance reports whether the action moves tokens through the
// marketplace and therefore requires a prior approval.
func (k IntentKind) NeedsAllowance() bool {
	return k == IntentOrder || k == IntentBid
}

const minProductNameLen = 3

// Listing holds the fields of a new product.
type Listing struct {
	Name     string   `json:"name"`
	Price    *big.Int `json:"price"`
	Unit     string   `json:"unit"`
	Quantity *big.Int `json:"quantity"`
	Stock    *big.Int `json:"stock"`
}

// Profile holds the user details stored by the marketplace.
type Profile struct {
	Name        string `json:"name"`
	ContactInfo string `json:"contactInfo"`
}

// Intent is a user request that results in exactly one marketplace or token
// write, possibly preceded by an approval.
type Intent struct {
	ID   string     `json:"id"`
	Kind IntentKind `json:"kind"`

	ProductID *big.Int       `json:"productId,omitempty"`
	BidID     *big.Int       `json:"bidId,omitempty"`
	Quantity  *big.Int       `json:"quantity,omitempty"`
	Amount    *big.Int       `json:"amount,omitempty"`
	Recipient common.Address `json:"recipient,omitempty"`
	Listing   *Listing       `json:"listing,omitempty"`
	Profile   *Profile       `json:"profile,omitempty"`
}

func newIntent(kind IntentKind) Intent {
	return Intent{ID: uuid.NewString(), Kind: kind}
}

// NewOrderIntent asks to buy qty units of a product.
func NewOrderIntent(productID, qty *big.Int) Intent {
	i := newIntent(IntentOrder)
	i.ProductID, i.Quantity = productID, qty
	return i
}

// NewBidIntent asks to bid amount on a product.
func NewBidIntent(productID, amount *big.Int) Intent {
	i := newIntent(IntentBid)
	i.ProductID, i.Amount = productID, amount
	return i
}

// NewAcceptBidIntent asks a farmer's acceptance of a bid.
func NewAcceptBidIntent(bidID *big.Int) Intent {
	i := newIntent(IntentAcceptBid)
	i.BidID = bidID
	return i
}

// NewCompleteBidIntent settles an accepted bid.
func NewCompleteBidIntent(bidID *big.Int) Intent {
	i := newIntent(IntentCompleteBid)
	i.BidID = bidID
	return i
}

// NewCreateProductIntent lists a new product.
func NewCreateProductIntent(l Listing) Intent {
	i := newIntent(IntentCreateProduct)
	i.Listing = &l
	return i
}

// NewSetFeeIntent changes the marketplace operation fee. Owner only.
func NewSetFeeIntent(fee *big.Int) Intent {
	i := newIntent(IntentSetFee)
	i.Amount = fee
	return i
}

// NewTransferIntent moves tokens from the wallet to recipient.
func NewTransferIntent(recipient common.Address, amount *big.Int) Intent {
	i := newIntent(IntentTransfer)
	i.Recipient, i.Amount = recipient, amount
	return i
}

// NewSetProfileIntent stores the user's name and contact details.
func NewSetProfileIntent(p Profile) Intent {
	i := newIntent(IntentSetProfile)
	i.Profile = &p
	return i
}

// ValidateBasic performs stateless validation of the intent fields.
func (i Intent) ValidateBasic() error {
	switch i.Kind {
	case IntentOrder:
		if err := requireID("product id", i.ProductID); err != nil {
			return err
		}
		return requirePositive("quantity", i.Quantity)

	case IntentBid:
		if err := requireID("product id", i.ProductID); err != nil {
			return err
		}
		return requirePositive("bid amount", i.Amount)

	case IntentAcceptBid, IntentCompleteBid:
		return requireID("bid id", i.BidID)

	case IntentCreateProduct:
		if i.Listing == nil {
			return invalidf("missing listing")
		}
		return i.Listing.ValidateBasic()

	case IntentSetFee:
		if i.Amount == nil || i.Amount.Sign() < 0 {
			return invalidf("operation fee cannot be negative")
		}
		return nil

	case IntentTransfer:
		if i.Recipient == (common.Address{}) {
			return invalidf("invalid wallet address")
		}
		return requirePositive("amount", i.Amount)

	case IntentSetProfile:
		if i.Profile == nil || strings.TrimSpace(i.Profile.Name) == "" {
			return invalidf("name is required")
		}
		return nil

	default:
		return invalidf("unknown intent kind %q", i.Kind)
	}
}

// ValidateBasic checks the product form rules.
func (l Listing) ValidateBasic() error {
	if len(strings.TrimSpace(l.Name)) < minProductNameLen {
		return invalidf("name must be at least %d characters", minProductNameLen)
	}
	if err := requirePositive("price", l.Price); err != nil {
		return err
	}
	if strings.TrimSpace(l.Unit) == "" {
		return invalidf("unit is required (e.g., kg, piece, bundle)")
	}
	if err := requirePositive("quantity", l.Quantity); err != nil {
		return err
	}
	if l.Stock == nil || l.Stock.Sign() < 0 {
		return invalidf("stock cannot be negative; set to 0 for a growing product")
	}
	return nil
}

// PendingIntent is an admitted Intent together with the amounts computed when
// the sequence started.
type PendingIntent struct {
	Intent Intent `json:"intent"`
	// Value is the face value moved by the action.
	Value *big.Int `json:"value"`
	// Fee is the operation fee read when the sequence started.
	Fee *big.Int `json:"fee"`
	// Required is the allowance the action needs: Value + Fee, or zero.
	Required *big.Int `json:"required"`
}

func requireID(name string, v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return invalidf("missing %s", name)
	}
	return nil
}

func requirePositive(name string, v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return invalidf("%s must be a positive whole number", name)
	}
	return nil
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidIntent, fmt.Sprintf(format, args...))
}
