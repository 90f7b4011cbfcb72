package wallet

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

// Funder creates funded ledger accounts
type Funder interface {
	Fund(ctx context.Context) (*ledger.FundedAccount, error)
}

// Keys is a derived key pair
type Keys struct {
	Address    string
	PublicKey  string
	PrivateKey string
}

// KeyDeriver turns a family seed into keys
type KeyDeriver func(seed string) (Keys, error)

// DeriveFromSeed derives keys with the xrpl-go wallet
func DeriveFromSeed(seed string) (Keys, error) {
	s, err := ledger.NewWalletSignerFromSeed(seed)
	if err != nil {
		return Keys{}, err
	}
	return Keys{Address: s.Address(), PublicKey: s.PublicKey(), PrivateKey: s.PrivateKey()}, nil
}

// Provisioner creates the custodial wallet of an account
type Provisioner struct {
	repo   relationaldb.WalletRepository
	funder Funder
	derive KeyDeriver
	logger *zap.Logger
}

// NewProvisioner creates a provisioner. A nil derive uses DeriveFromSeed; a
// nil funder disables provisioning.
func NewProvisioner(repo relationaldb.WalletRepository, funder Funder, derive KeyDeriver, logger *zap.Logger) *Provisioner {
	if derive == nil {
		derive = DeriveFromSeed
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{repo: repo, funder: funder, derive: derive, logger: logger}
}

// Provision funds a new ledger account and stores it for accountID
func (p *Provisioner) Provision(ctx context.Context, accountID int64) (*Credentials, error) {
	_, err := p.repo.GetWalletByAccount(ctx, accountID)
	switch {
	case err == nil:
		return nil, errors.Wrapf(ErrWalletExists, "account %d", accountID)
	case !errors.Is(err, relationaldb.ErrWalletNotFound):
		return nil, errors.Wrapf(err, "check wallet of account %d", accountID)
	}

	if p.funder == nil {
		return nil, ErrProvisioningDisabled
	}
	funded, err := p.funder.Fund(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fund wallet")
	}

	keys, err := p.derive(funded.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "derive wallet keys")
	}
	if keys.Address != funded.Address {
		return nil, errors.Errorf("derived address %s does not match funded account %s", keys.Address, funded.Address)
	}

	row := &relationaldb.Wallet{
		AccountID:  accountID,
		Address:    keys.Address,
		PublicKey:  keys.PublicKey,
		PrivateKey: keys.PrivateKey,
	}
	if err := p.repo.CreateWallet(ctx, row); err != nil {
		return nil, errors.Wrap(err, "store wallet")
	}

	creds := fromRow(row)
	p.logger.Info("wallet provisioned", zap.Object("wallet", creds))
	return creds, nil
}
