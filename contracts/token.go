package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token binds the AGT token contract.
type Token struct {
	contract
}

// NewToken returns a binding for the token at addr. caller may be nil when
// only write calls are built.
func NewToken(addr common.Address, caller Caller) *Token {
	return &Token{contract{address: addr, abi: tokenABI, caller: caller}}
}

// Address returns the token contract address.
func (t *Token) Address() common.Address { return t.address }

// Approve lets spender move up to amount of the caller's tokens.
func (t *Token) Approve(spender common.Address, amount *big.Int) (Call, error) {
	return t.pack("approve", spender, amount)
}

// Transfer moves amount tokens to recipient.
func (t *Token) Transfer(recipient common.Address, amount *big.Int) (Call, error) {
	return t.pack("transfer", recipient, amount)
}

// Allowance returns how much spender may still move on behalf of owner.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callBig(ctx, "allowance", owner, spender)
}

// BalanceOf returns the token balance of account.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return t.callBig(ctx, "balanceOf", account)
}

// Owner returns the token contract owner.
func (t *Token) Owner(ctx context.Context) (common.Address, error) {
	return t.callAddress(ctx, "owner")
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected output %T", out[0])
	}
	return d, nil
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	out, err := t.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("symbol: unexpected output %T", out[0])
	}
	return s, nil
}
