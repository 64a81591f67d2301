// Package util wires keys from configuration into wallets.
package util

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/wallet"
)

var (
	// ErrKeyExists is returned when GenerateKeyFile would overwrite a key.
	ErrKeyExists = errors.New("key file already exists")
	// ErrNoSignerAddress is returned when a remote signer is configured
	// without the address it signs for.
	ErrNoSignerAddress = errors.New("remote signer needs a user address")
)

// OpenKeystore returns a wallet holding either the remote signer at
// signerURL for user, or the key stored in keyFile. The returned function
// releases the signer.
func OpenKeystore(ctx context.Context, keyFile, signerURL string, user common.Address) (*wallet.EphemeralWallet, func(), error) {
	w := wallet.NewEphemeralWallet()
	if signerURL != "" {
		if user == (common.Address{}) {
			return nil, nil, ErrNoSignerAddress
		}
		s, err := wallet.DialRemoteSigner(ctx, signerURL, user)
		if err != nil {
			return nil, nil, err
		}
		if err := w.AddSigner(s); err != nil {
			s.Close()
			return nil, nil, err
		}
		return w, s.Close, nil
	}

	acc, err := wallet.LoadAccount(keyFile)
	if err != nil {
		return nil, nil, err
	}
	if err := w.AddAccount(acc); err != nil {
		return nil, nil, err
	}
	return w, func() {}, nil
}

// GenerateKeyFile creates a random key and stores it hex encoded at path.
// Missing directories are created.
func GenerateKeyFile(path string) (*wallet.Account, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, errors.WithMessage(ErrKeyExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.WithMessage(err, "creating key directory")
	}
	acc, err := wallet.NewRandomAccount(rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := acc.SaveKey(path); err != nil {
		return nil, errors.WithMessagef(err, "saving key to %s", path)
	}
	return acc, nil
}
