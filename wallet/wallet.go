package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/agrimarket/agridash/contracts"
	"github.com/agrimarket/agridash/libs/log"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultConfirmations = 1
	defaultGasMultiplier = 1.2
)

// Backend is the subset of *ethclient.Client used by the wallet.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Wallet submits contract writes for one account and observes their
// confirmation.
type Wallet struct {
	logger  log.Logger
	backend Backend
	signer  Signer

	pollInterval  time.Duration
	confirmations uint64
	gasMultiplier float64
}

// Option sets an optional parameter on the Wallet.
type Option func(*Wallet)

// WithPollInterval sets how often receipts are polled.
func WithPollInterval(d time.Duration) Option {
	return func(w *Wallet) { w.pollInterval = d }
}

// WithConfirmations sets how many blocks deep a receipt must be before a
// write counts as confirmed.
func WithConfirmations(n uint64) Option {
	return func(w *Wallet) { w.confirmations = n }
}

// WithGasMultiplier scales the estimated gas limit.
func WithGasMultiplier(m float64) Option {
	return func(w *Wallet) { w.gasMultiplier = m }
}

func New(logger log.Logger, backend Backend, signer Signer, opts ...Option) *Wallet {
	w := &Wallet{
		logger:        logger,
		backend:       backend,
		signer:        signer,
		pollInterval:  defaultPollInterval,
		confirmations: defaultConfirmations,
		gasMultiplier: defaultGasMultiplier,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Address returns the account the wallet signs for.
func (w *Wallet) Address() common.Address {
	return w.signer.Address()
}

// Send builds, signs and broadcasts call. It returns once the node accepted
// the transaction, without waiting for it to be mined.
func (w *Wallet) Send(ctx context.Context, call contracts.Call) (common.Hash, error) {
	from := w.signer.Address()

	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetching nonce: %w", err)
	}
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggesting gas price: %w", err)
	}
	to := call.To
	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: call.Data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimating gas for %s: %w", call.Method, err)
	}
	if w.gasMultiplier > 1 {
		gas = uint64(math.Ceil(float64(gas) * w.gasMultiplier))
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     call.Data,
	})

	signed, err := w.signer.SignTx(ctx, SignRequest{Method: call.Method, Tx: tx})
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing %s: %w", call.Method, err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("sending %s: %w", call.Method, err)
	}

	w.logger.Info("submitted transaction", "method", call.Method, "hash", signed.Hash(), "nonce", nonce)
	return signed.Hash(), nil
}

// WaitConfirmed polls for the receipt of hash until it is mined and buried
// under the configured number of confirmations. Only ctx bounds the wait.
func (w *Wallet) WaitConfirmed(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(ctx, hash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			w.logger.Debug("transaction pending", "hash", hash)
		case err != nil:
			return fmt.Errorf("fetching receipt %s: %w", hash, err)
		case receipt.Status == ethtypes.ReceiptStatusFailed:
			return fmt.Errorf("%w: %s in block %v", ErrReverted, hash, receipt.BlockNumber)
		default:
			deep, err := w.buried(ctx, receipt)
			if err != nil {
				return err
			}
			if deep {
				w.logger.Info("transaction confirmed", "hash", hash, "block", receipt.BlockNumber)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Wallet) buried(ctx context.Context, receipt *ethtypes.Receipt) (bool, error) {
	if w.confirmations <= 1 || receipt.BlockNumber == nil {
		return true, nil
	}
	head, err := w.backend.BlockNumber(ctx)
	if err != nil {
		return false, fmt.Errorf("fetching head: %w", err)
	}
	mined := receipt.BlockNumber.Uint64()
	return head >= mined && head-mined+1 >= w.confirmations, nil
}
