package ledger

import (
	"github.com/Peersyst/xrpl-go/xrpl/transaction/types"
	"github.com/Peersyst/xrpl-go/xrpl/wallet"
	"github.com/pkg/errors"
)

// Signer signs transactions for a single account
type Signer interface {
	Address() string

	// Sign returns the hex encoded signed blob and the transaction hash
	Sign(tx Transaction) (blob string, hash string, err error)
}

// WalletSigner signs with an xrpl-go wallet
type WalletSigner struct {
	w *wallet.Wallet
}

// NewWalletSignerFromSeed derives the key pair from a family seed
func NewWalletSignerFromSeed(seed string) (*WalletSigner, error) {
	w, err := wallet.FromSeed(seed, "")
	if err != nil {
		return nil, errors.Wrap(err, "derive wallet from seed")
	}
	return &WalletSigner{w: &w}, nil
}

// NewWalletSigner builds a signer from stored keys
func NewWalletSigner(address, publicKey, privateKey string) (*WalletSigner, error) {
	if address == "" || publicKey == "" || privateKey == "" {
		return nil, errors.New("wallet signer: address and both keys are required")
	}
	return &WalletSigner{w: &wallet.Wallet{
		PublicKey:      publicKey,
		PrivateKey:     privateKey,
		ClassicAddress: types.Address(address),
	}}, nil
}

func (s *WalletSigner) Address() string {
	return string(s.w.ClassicAddress)
}

// PublicKey returns the hex encoded public key
func (s *WalletSigner) PublicKey() string {
	return s.w.PublicKey
}

// PrivateKey returns the hex encoded private key. Callers must not log it.
func (s *WalletSigner) PrivateKey() string {
	return s.w.PrivateKey
}

func (s *WalletSigner) Sign(tx Transaction) (string, string, error) {
	blob, hash, err := s.w.Sign(map[string]any(tx))
	if err != nil {
		return "", "", errors.Wrapf(err, "sign %s", tx.Type())
	}
	return blob, hash, nil
}
