package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrEmptyResult is returned when a view call returns no data, which usually
// means the address holds no contract.
var ErrEmptyResult = errors.New("empty call result; is the contract deployed at this address?")

// Call is a fully encoded contract write, ready to be signed by a wallet.
type Call struct {
	To     common.Address `json:"to"`
	Method string         `json:"method"`
	Data   []byte         `json:"data"`
}

func (c Call) String() string {
	return fmt.Sprintf("%s@%s", c.Method, c.To.Hex())
}

// Caller executes read-only contract calls. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type contract struct {
	address common.Address
	abi     abi.ABI
	caller  Caller
}

func (c contract) pack(method string, args ...interface{}) (Call, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("packing %s: %w", method, err)
	}
	return Call{To: c.address, Method: method, Data: data}, nil
}

// call runs a view method against the latest block and returns its decoded
// outputs.
func (c contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if c.caller == nil {
		return nil, fmt.Errorf("%s: no caller configured", method)
	}

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	to := c.address
	res, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("calling %s: %w", method, ErrEmptyResult)
	}

	out, err := c.abi.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("unpacking %s: %w", method, ErrEmptyResult)
	}
	return out, nil
}

func (c contract) callBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output %T", method, out[0])
	}
	return v, nil
}

func (c contract) callBigSlice(ctx context.Context, method string, args ...interface{}) ([]*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output %T", method, out[0])
	}
	return v, nil
}

func (c contract) callAddress(ctx context.Context, method string, args ...interface{}) (common.Address, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected output %T", method, out[0])
	}
	return v, nil
}
