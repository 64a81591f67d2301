package wallet

import (
	"context"
	"crypto/ecdsa"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Account is a local secp256k1 key.
type Account struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var _ Signer = (*Account)(nil)

// NewAccount wraps an existing private key.
func NewAccount(key *ecdsa.PrivateKey) *Account {
	return &Account{privateKey: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewRandomAccount derives a new key from rng. Passing a seeded math/rand
// source yields reproducible keys.
func NewRandomAccount(rng io.Reader) (*Account, error) {
	seed := make([]byte, 32)
	for {
		if _, err := io.ReadFull(rng, seed); err != nil {
			return nil, errors.WithMessage(err, "reading key material")
		}
		// ToECDSA rejects zero and values >= N, retry with fresh bytes.
		key, err := crypto.ToECDSA(seed)
		if err == nil {
			return NewAccount(key), nil
		}
	}
}

// HexToAccount parses a hex encoded private key.
func HexToAccount(hexKey string) (*Account, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.WithMessage(err, "parsing private key")
	}
	return NewAccount(key), nil
}

// LoadAccount reads a hex encoded private key from file.
func LoadAccount(path string) (*Account, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading key from %s", path)
	}
	return NewAccount(key), nil
}

// Address returns the Ethereum address of the account.
func (a *Account) Address() common.Address {
	return a.address
}

// SignHash signs the Ethereum signed-message digest of hash. The returned
// signature is r||s||v with v in {27, 28}.
func (a *Account) SignHash(_ context.Context, hash common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(MessageHash(hash).Bytes(), a.privateKey)
	if err != nil {
		return nil, errors.WithMessage(err, "signing hash")
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignData hashes data with keccak256 and signs the result like SignHash.
func (a *Account) SignData(data []byte) ([]byte, error) {
	return a.SignHash(context.Background(), crypto.Keccak256Hash(data))
}

// SaveKey writes the private key as hex to path.
func (a *Account) SaveKey(path string) error {
	return crypto.SaveECDSA(path, a.privateKey)
}
