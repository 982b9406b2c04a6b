package wallet

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimarket/agridash/contracts"
	"github.com/agrimarket/agridash/libs/log"
)

var chainID = big.NewInt(89)

type fakeBackend struct {
	mtx sync.Mutex

	nonce    uint64
	gas      uint64
	head     uint64
	sent     []*ethtypes.Transaction
	sendErr  error
	receipts map[common.Hash]*ethtypes.Receipt
	// pendingPolls is the number of receipt polls answered with NotFound.
	pendingPolls int
	polls        int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nonce: 7, gas: 50000, receipts: make(map[common.Hash]*ethtypes.Receipt)}
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(250_000_000), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.gas, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.polls++
	if b.polls <= b.pendingPolls {
		return nil, ethereum.NotFound
	}
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.head++
	return b.head, nil
}

func newTestSigner(t *testing.T) *KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewKeySigner(key, chainID)
}

func testCall() contracts.Call {
	return contracts.Call{
		To:     common.HexToAddress("0x322D6EaEC87180F0695fe4da899C76C9b9216141"),
		Method: "placeBid",
		Data:   []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func TestSend(t *testing.T) {
	backend := newFakeBackend()
	signer := newTestSigner(t)
	w := New(log.TestingLogger(), backend, signer, WithGasMultiplier(1.5))

	hash, err := w.Send(context.Background(), testCall())
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.EqualValues(t, 7, tx.Nonce())
	assert.EqualValues(t, 75000, tx.Gas())
	assert.Equal(t, testCall().To, *tx.To())
	assert.Equal(t, testCall().Data, tx.Data())

	from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)
	assert.Equal(t, signer.Address(), w.Address())
}

func TestSendBroadcastError(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = errors.New("insufficient funds for gas")
	w := New(log.TestingLogger(), backend, newTestSigner(t))

	_, err := w.Send(context.Background(), testCall())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds for gas")
}

func TestPromptSigner(t *testing.T) {
	backend := newFakeBackend()
	var asked []string
	confirm := func(_ context.Context, req SignRequest) (bool, error) {
		asked = append(asked, req.Method)
		return false, nil
	}
	w := New(log.TestingLogger(), backend, NewPromptSigner(newTestSigner(t), confirm))

	_, err := w.Send(context.Background(), testCall())
	assert.ErrorIs(t, err, ErrSignatureRejected)
	assert.Equal(t, []string{"placeBid"}, asked)
	assert.Empty(t, backend.sent)

	accept := NewPromptSigner(newTestSigner(t), func(context.Context, SignRequest) (bool, error) { return true, nil })
	w = New(log.TestingLogger(), backend, accept)
	_, err = w.Send(context.Background(), testCall())
	require.NoError(t, err)
	assert.Len(t, backend.sent, 1)
}

func TestWaitConfirmed(t *testing.T) {
	defer leaktest.Check(t)()

	hash := common.HexToHash("0x01")

	t.Run("pending then mined", func(t *testing.T) {
		backend := newFakeBackend()
		backend.pendingPolls = 2
		backend.receipts[hash] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}
		w := New(log.TestingLogger(), backend, newTestSigner(t), WithPollInterval(time.Millisecond))

		require.NoError(t, w.WaitConfirmed(context.Background(), hash))
		assert.Equal(t, 3, backend.polls)
	})

	t.Run("reverted", func(t *testing.T) {
		backend := newFakeBackend()
		backend.receipts[hash] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(1)}
		w := New(log.TestingLogger(), backend, newTestSigner(t), WithPollInterval(time.Millisecond))

		assert.ErrorIs(t, w.WaitConfirmed(context.Background(), hash), ErrReverted)
	})

	t.Run("confirmations", func(t *testing.T) {
		backend := newFakeBackend()
		backend.receipts[hash] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}
		w := New(log.TestingLogger(), backend, newTestSigner(t),
			WithPollInterval(time.Millisecond), WithConfirmations(3))

		require.NoError(t, w.WaitConfirmed(context.Background(), hash))
		// the head advances by one per query, so block 1 is three deep at head 3
		assert.EqualValues(t, 3, backend.head)
	})

	t.Run("context canceled", func(t *testing.T) {
		backend := newFakeBackend()
		w := New(log.TestingLogger(), backend, newTestSigner(t), WithPollInterval(time.Millisecond))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, w.WaitConfirmed(ctx, hash), context.DeadlineExceeded)
	})
}

func TestLoadKeystore(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, WriteKeystore(path, priv, "secret"))

	signer, err := LoadKeystore(path, "secret", chainID)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey), signer.Address())

	addr, err := KeystoreAddress(path)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), addr)

	_, err = LoadKeystore(path, "wrong", chainID)
	assert.Error(t, err)

	_, err = LoadKeystore(filepath.Join(t.TempDir(), "missing.json"), "secret", chainID)
	assert.Error(t, err)
}

func TestWriteKeystoreReplacesExisting(t *testing.T) {
	first, err := crypto.GenerateKey()
	require.NoError(t, err)
	second, err := crypto.GenerateKey()
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "key.json")
	require.NoError(t, WriteKeystore(path, first, "secret"))
	require.NoError(t, WriteKeystore(path, second, "secret"))

	addr, err := KeystoreAddress(path)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(second.PublicKey), addr)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestKeyFromEnv(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	t.Setenv("AGRIDASH_TEST_KEY", "0x"+common.Bytes2Hex(crypto.FromECDSA(priv)))
	signer, err := KeyFromEnv("AGRIDASH_TEST_KEY", chainID)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey), signer.Address())

	t.Setenv("AGRIDASH_TEST_KEY", "")
	_, err = KeyFromEnv("AGRIDASH_TEST_KEY", chainID)
	assert.ErrorIs(t, err, ErrNoKey)
}
