package offer

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
	"github.com/XavTo/Blockchain/internal/wallet"
)

type staticWallets map[int64][]*wallet.Credentials

func (s staticWallets) ListForAccount(_ context.Context, id int64) ([]*wallet.Credentials, error) {
	return s[id], nil
}

func hexText(s string) string {
	return hex.EncodeToString([]byte(s))
}

func TestResolveTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const (
		tokenB = "000800006203F49C21D5D6E022CB16DE3538F248662FC73C00000002"
		tokenC = "000800006203F49C21D5D6E022CB16DE3538F248662FC73C00000003"
	)
	gone := wallet.NewCredentials(9, "rGone", "ED09", "k")
	wallets := staticWallets{
		seller.AccountID: {seller},
		other.AccountID:  {other, gone},
	}

	h.api.EXPECT().AccountNFTs(gomock.Any(), seller.Address).Return([]ledger.NFToken{
		{NFTokenID: tokenA, Issuer: seller.Address, URI: hexText(`{"name":"Cat","description":"A cat","image":"ipfs://cat"}`)},
		{NFTokenID: tokenC, Issuer: seller.Address, URI: hexText("not json")},
	}, nil)
	h.api.EXPECT().AccountNFTs(gomock.Any(), other.Address).Return([]ledger.NFToken{
		{NFTokenID: tokenB, Issuer: other.Address, URI: "ZZ"},
	}, nil)
	h.api.EXPECT().AccountNFTs(gomock.Any(), "rGone").Return(nil, &ledger.RPCError{Name: ledger.ErrNameActNotFound})

	q, err := NewQuery(h.db.Repositories(), wallets, h.api, 2, nil)
	require.NoError(t, err)

	requested := []string{
		"000800006203f49c21d5d6e022cb16de3538f248662fc73c00000002",
		tokenA,
		tokenC,
		tokenA,
		"0000000000000000000000000000000000000000000000000000000000000000",
	}
	got, err := q.ResolveTokens(ctx, requested, []int64{seller.AccountID, other.AccountID, seller.AccountID})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, tokenB, got[0].NFTokenID)
	assert.Equal(t, "ZZ", got[0].Name)
	assert.Equal(t, other.Address, got[0].Owner)

	assert.Equal(t, tokenA, got[1].NFTokenID)
	assert.Equal(t, "Cat", got[1].Name)
	assert.Equal(t, "A cat", got[1].Description)
	assert.Equal(t, "ipfs://cat", got[1].Image)

	assert.Equal(t, "not json", got[2].Name)
	assert.Empty(t, got[2].Image)
}

func TestResolveTokensPropagatesLedgerErrors(t *testing.T) {
	h := newHarness(t)
	h.api.EXPECT().AccountNFTs(gomock.Any(), seller.Address).Return(nil, &ledger.RPCError{Name: ledger.ErrNameTooBusy})

	q, err := NewQuery(h.db.Repositories(), staticWallets{seller.AccountID: {seller}}, h.api, 0, nil)
	require.NoError(t, err)

	_, err = q.ResolveTokens(context.Background(), []string{tokenA}, []int64{seller.AccountID})
	require.Error(t, err)
	assert.True(t, ledger.IsRPCError(err, ledger.ErrNameTooBusy))
}

func TestListingsAndStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	offers := h.offers()

	require.NoError(t, offers.InsertOffer(ctx, &relationaldb.SellOffer{
		NFTokenID: tokenA, SellerAccountID: seller.AccountID, Amount: "0",
		Destination: buyer.Address, OfferIndex: "GIFT", Status: relationaldb.OfferStatusActive,
	}))
	h.seedOffer(t, offerIdx1, seller.AccountID, "400")
	h.seedOffer(t, "CLAIMED", seller.AccountID, "400")
	_, err := offers.TransitionOfferStatus(ctx, "CLAIMED", relationaldb.OfferStatusActive, relationaldb.OfferStatusPendingAccept, nil)
	require.NoError(t, err)

	require.NoError(t, h.db.Repositories().Events().RecordEvent(ctx, &relationaldb.OfferEvent{
		OfferIndex: "SOLD", NFTokenID: tokenA, Kind: relationaldb.OfferEventAccepted, ActorAccountID: buyer.AccountID, TxHash: hash1, Amount: "5",
	}))

	q, err := NewQuery(h.db.Repositories(), staticWallets{}, h.api, 0, nil)
	require.NoError(t, err)

	all, err := q.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := q.ListForUser(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "GIFT", mine[0].OfferIndex)

	none, err := q.ListForUser(ctx, other)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{ForSale: 2, Exchanged: 1, Cancelled: 0}, *stats)
}

func TestReconcile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedOffer(t, offerIdx1, seller.AccountID, "400")
	h.seedOffer(t, "STALE", seller.AccountID, "400")
	h.seedOffer(t, "FOREIGN", other.AccountID, "400")

	h.api.EXPECT().AccountNFTOffers(gomock.Any(), seller.Address).Return([]ledger.OfferEntry{
		{Index: "offeridx1", Owner: seller.Address, NFTokenID: tokenA, Flags: ledger.LsfSellNFToken},
		{Index: "EXTERNAL", Owner: seller.Address, NFTokenID: tokenA, Flags: ledger.LsfSellNFToken},
		{Index: "BUYSIDE", Owner: seller.Address, NFTokenID: tokenA},
	}, nil)

	q, err := NewQuery(h.db.Repositories(), staticWallets{}, h.api, 0, nil)
	require.NoError(t, err)

	drift, err := q.Reconcile(ctx, seller)
	require.NoError(t, err)
	assert.False(t, drift.InSync())
	assert.Equal(t, []string{"STALE"}, drift.MissingOnLedger)
	assert.Equal(t, []string{"EXTERNAL"}, drift.UnknownLocally)
}
