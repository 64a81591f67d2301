package wallet

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// SignatureLength is the length of a signature in bytes.
const SignatureLength = crypto.SignatureLength

var (
	// ErrMalformedSignature is returned when no address can be recovered from a
	// signature.
	ErrMalformedSignature = errors.New("malformed signature")
	// ErrSignerMismatch is returned when a well-formed signature recovers to an
	// unexpected address.
	ErrSignerMismatch = errors.New("signature from unexpected signer")
)

// MessageHash applies the Ethereum signed-message prefix to a 32 byte hash:
// keccak256("\x19Ethereum Signed Message:\n32" || hash).
func MessageHash(hash common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(hash.Bytes()))
}

// DecodeSig decodes a 0x-prefixed hex signature and checks its shape.
func DecodeSig(s string) ([]byte, error) {
	sig, err := hexutil.Decode(s)
	if err != nil {
		return nil, errors.WithMessagef(ErrMalformedSignature, "decoding %q: %v", s, err)
	}
	if _, err := normalize(sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// normalize returns a copy of sig with v mapped to {0, 1} as expected by
// ecrecover.
func normalize(sig []byte) ([]byte, error) {
	if len(sig) != SignatureLength {
		return nil, errors.WithMessagef(ErrMalformedSignature, "length %d, want %d", len(sig), SignatureLength)
	}
	n := common.CopyBytes(sig)
	v := n[crypto.RecoveryIDOffset]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return nil, errors.WithMessagef(ErrMalformedSignature, "invalid recovery id %d", sig[crypto.RecoveryIDOffset])
	}
	n[crypto.RecoveryIDOffset] = v
	return n, nil
}

// RecoverSigner recovers the address that signed the prefixed digest of hash.
func RecoverSigner(hash common.Hash, sig []byte) (common.Address, error) {
	n, err := normalize(sig)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(MessageHash(hash).Bytes(), n)
	if err != nil {
		return common.Address{}, errors.WithMessage(ErrMalformedSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that sig over hash was produced by addr.
func VerifySignature(hash common.Hash, sig []byte, addr common.Address) error {
	signer, err := RecoverSigner(hash, sig)
	if err != nil {
		return err
	}
	if signer != addr {
		return errors.WithMessagef(ErrSignerMismatch, "recovered %s, want %s", signer.Hex(), addr.Hex())
	}
	return nil
}
