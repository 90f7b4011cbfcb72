package ledger

import "context"

//go:generate mockgen -destination=mocks/mock_api.go -package=mocks github.com/XavTo/Blockchain/internal/ledger API

// API is the ledger surface used by the marketplace components
type API interface {
	AccountInfo(ctx context.Context, address string) (*AccountInfo, error)
	AccountNFTs(ctx context.Context, address string) ([]NFToken, error)
	AccountNFTOffers(ctx context.Context, address string) ([]OfferEntry, error)
	NFTSellOffers(ctx context.Context, nftokenID string) ([]NFTOffer, error)
	LedgerEntryOffer(ctx context.Context, offerIndex string) (*OfferEntry, error)

	Prepare(ctx context.Context, tx Transaction, signer Signer) (*PreparedTx, error)
	SubmitAndWait(ctx context.Context, prepared *PreparedTx) (*FinalResult, error)
	Status(ctx context.Context, hash string, lastLedgerSequence uint32) (*TxStatus, error)
}

var _ API = (*Client)(nil)
