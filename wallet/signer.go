package wallet

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/creachadair/atomicfile"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// SignRequest is a transaction waiting for a signature, together with the
// contract method it calls.
type SignRequest struct {
	Method string
	Tx     *ethtypes.Transaction
}

// Signer signs transactions on behalf of a single account.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, req SignRequest) (*ethtypes.Transaction, error)
}

// KeySigner signs with an in-memory ECDSA key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	signer  ethtypes.Signer
}

var _ Signer = (*KeySigner)(nil)

func NewKeySigner(key *ecdsa.PrivateKey, chainID *big.Int) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  ethtypes.LatestSignerForChainID(chainID),
	}
}

// LoadKeystore decrypts a go-ethereum keystore file.
func LoadKeystore(path, passphrase string, chainID *big.Int) (*KeySigner, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keystore: %w", err)
	}
	k, err := keystore.DecryptKey(bz, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypting keystore %s: %w", path, err)
	}
	return NewKeySigner(k.PrivateKey, chainID), nil
}

// WriteKeystore encrypts key with passphrase into a go-ethereum keystore
// file readable by LoadKeystore.
func WriteKeystore(path string, key *ecdsa.PrivateKey, passphrase string) error {
	k := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}
	bz, err := keystore.EncryptKey(k, passphrase, keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return fmt.Errorf("encrypting key: %w", err)
	}
	// A crash mid-write must not leave a truncated keystore behind.
	if _, err := atomicfile.WriteAll(path, bytes.NewReader(bz), 0o600); err != nil {
		return fmt.Errorf("writing keystore: %w", err)
	}
	return nil
}

// KeystoreAddress returns the account of a keystore file without decrypting
// it. The address is stored in the clear.
func KeystoreAddress(path string) (common.Address, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return common.Address{}, fmt.Errorf("reading keystore: %w", err)
	}
	var v struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(bz, &v); err != nil {
		return common.Address{}, fmt.Errorf("parsing keystore %s: %w", path, err)
	}
	if !common.IsHexAddress(v.Address) {
		return common.Address{}, fmt.Errorf("keystore %s has no address", path)
	}
	return common.HexToAddress(v.Address), nil
}

// KeyFromEnv reads a hex encoded private key from the environment variable
// name.
func KeyFromEnv(name string, chainID *big.Int) (*KeySigner, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoKey, name)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(v, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing key from %s: %w", name, err)
	}
	return NewKeySigner(key, chainID), nil
}

func (s *KeySigner) Address() common.Address { return s.address }

// Export writes the key to a keystore file encrypted with passphrase.
func (s *KeySigner) Export(path, passphrase string) error {
	return WriteKeystore(path, s.key, passphrase)
}

func (s *KeySigner) SignTx(_ context.Context, req SignRequest) (*ethtypes.Transaction, error) {
	return ethtypes.SignTx(req.Tx, s.signer, s.key)
}

// ConfirmFunc asks the user whether req may be signed.
type ConfirmFunc func(ctx context.Context, req SignRequest) (bool, error)

// PromptSigner requires an explicit confirmation before every signature.
type PromptSigner struct {
	Signer
	confirm ConfirmFunc
}

var _ Signer = (*PromptSigner)(nil)

func NewPromptSigner(s Signer, confirm ConfirmFunc) *PromptSigner {
	return &PromptSigner{Signer: s, confirm: confirm}
}

func (p *PromptSigner) SignTx(ctx context.Context, req SignRequest) (*ethtypes.Transaction, error) {
	ok, err := p.confirm(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSignatureRejected
	}
	return p.Signer.SignTx(ctx, req)
}
