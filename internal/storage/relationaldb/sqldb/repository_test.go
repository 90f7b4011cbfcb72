package sqldb

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

func setupRepositoryManager(t *testing.T) *RepositoryManager {
	t.Helper()

	cfg := relationaldb.SQLiteConfig(filepath.Join(t.TempDir(), "market.db"))
	rm, err := NewRepositoryManager(cfg)
	require.NoError(t, err)
	require.NoError(t, rm.Open(context.Background()))
	t.Cleanup(func() { _ = rm.Close(context.Background()) })
	return rm
}

func TestRebind(t *testing.T) {
	pg := dialect{driver: relationaldb.DriverPostgres}
	lite := dialect{driver: relationaldb.DriverSQLite}

	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestWalletRepository(t *testing.T) {
	rm := setupRepositoryManager(t)
	ctx := context.Background()
	wallets := rm.Wallets()

	_, err := wallets.GetWalletByAccount(ctx, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, relationaldb.ErrWalletNotFound))

	first := &relationaldb.Wallet{AccountID: 7, Address: "rFirst", PublicKey: "ED01", PrivateKey: "secret-1"}
	second := &relationaldb.Wallet{AccountID: 7, Address: "rSecond", PublicKey: "ED02", PrivateKey: "secret-2"}
	require.NoError(t, wallets.CreateWallet(ctx, first))
	require.NoError(t, wallets.CreateWallet(ctx, second))
	assert.NotZero(t, first.ID)

	got, err := wallets.GetWalletByAccount(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "rFirst", got.Address)
	assert.Equal(t, "secret-1", got.PrivateKey)

	all, err := wallets.ListWalletsByAccount(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	dup := &relationaldb.Wallet{AccountID: 8, Address: "rFirst", PublicKey: "ED03", PrivateKey: "x"}
	err = wallets.CreateWallet(ctx, dup)
	assert.True(t, errors.Is(err, relationaldb.ErrDuplicateEntry))
}

func TestSellOfferRepository(t *testing.T) {
	rm := setupRepositoryManager(t)
	ctx := context.Background()
	offers := rm.Offers()

	offer := &relationaldb.SellOffer{
		NFTokenID:       "000800aabb",
		SellerAccountID: 1,
		Amount:          "1000000",
		Destination:     "rBuyer",
		OfferIndex:      "offeridx1",
	}
	require.NoError(t, offers.InsertOffer(ctx, offer))
	assert.Equal(t, relationaldb.OfferStatusActive, offer.Status)
	assert.Equal(t, "OFFERIDX1", offer.OfferIndex)

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		got, err := offers.GetOfferByIndex(ctx, "OfferIdx1")
		require.NoError(t, err)
		assert.Equal(t, "000800AABB", got.NFTokenID)
		assert.Equal(t, "rBuyer", got.Destination)
	})

	t.Run("duplicate offer index is rejected", func(t *testing.T) {
		err := offers.InsertOffer(ctx, &relationaldb.SellOffer{
			NFTokenID: "000800AABB", SellerAccountID: 2, Amount: "5", OfferIndex: "OFFERIDX1",
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, relationaldb.ErrDuplicateEntry))

		got, err := offers.GetOfferByIndex(ctx, "OFFERIDX1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.SellerAccountID)
	})

	t.Run("destination match is exact", func(t *testing.T) {
		list, err := offers.ListActiveOffersForDestination(ctx, "rBuyer")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "OFFERIDX1", list[0].OfferIndex)

		for _, addr := range []string{"RBUYER", "rbuyer", "rBuyer "} {
			list, err = offers.ListActiveOffersForDestination(ctx, addr)
			require.NoError(t, err)
			assert.Empty(t, list, addr)
		}
	})

	t.Run("transition requires expected status and seller", func(t *testing.T) {
		other := int64(99)
		ok, err := offers.TransitionOfferStatus(ctx, "OFFERIDX1", relationaldb.OfferStatusActive, relationaldb.OfferStatusPendingCancel, &other)
		require.NoError(t, err)
		assert.False(t, ok)

		owner := int64(1)
		ok, err = offers.TransitionOfferStatus(ctx, "OFFERIDX1", relationaldb.OfferStatusActive, relationaldb.OfferStatusPendingCancel, &owner)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = offers.TransitionOfferStatus(ctx, "OFFERIDX1", relationaldb.OfferStatusActive, relationaldb.OfferStatusPendingCancel, &owner)
		require.NoError(t, err)
		assert.False(t, ok)

		active, err := offers.ListOffersByStatus(ctx, relationaldb.OfferStatusActive)
		require.NoError(t, err)
		assert.Empty(t, active)
	})

	t.Run("delete requires expected status", func(t *testing.T) {
		ok, err := offers.DeleteOffer(ctx, "OFFERIDX1", relationaldb.OfferStatusActive)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = offers.DeleteOffer(ctx, "offeridx1", relationaldb.OfferStatusPendingCancel)
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = offers.GetOfferByIndex(ctx, "OFFERIDX1")
		assert.True(t, errors.Is(err, relationaldb.ErrOfferNotFound))
	})
}

func TestWithTransactionRollsBack(t *testing.T) {
	rm := setupRepositoryManager(t)
	ctx := context.Background()

	require.NoError(t, rm.Offers().InsertOffer(ctx, &relationaldb.SellOffer{
		NFTokenID: "AA", SellerAccountID: 1, Amount: "10", OfferIndex: "IDX",
	}))

	boom := errors.New("boom")
	err := rm.WithTransaction(ctx, func(tc relationaldb.TransactionContext) error {
		ok, err := tc.Offers().DeleteOffer(ctx, "IDX", relationaldb.OfferStatusActive)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tc.Events().RecordEvent(ctx, &relationaldb.OfferEvent{
			OfferIndex: "IDX", NFTokenID: "AA", Kind: relationaldb.OfferEventAccepted, TxHash: "H", Amount: "10",
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = rm.Offers().GetOfferByIndex(ctx, "IDX")
	assert.NoError(t, err)

	n, err := rm.Events().CountEvents(ctx, relationaldb.OfferEventAccepted)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConcurrentTransitionHasOneWinner(t *testing.T) {
	rm := setupRepositoryManager(t)
	ctx := context.Background()

	require.NoError(t, rm.Offers().InsertOffer(ctx, &relationaldb.SellOffer{
		NFTokenID: "AA", SellerAccountID: 1, Amount: "10", OfferIndex: "RACE",
	}))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := rm.Offers().TransitionOfferStatus(ctx, "RACE",
				relationaldb.OfferStatusActive, relationaldb.OfferStatusPendingCancel, nil)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
