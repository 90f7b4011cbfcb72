package offer

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalSerialisesKeys(t *testing.T) {
	j := openTestJournal(t, t.TempDir())

	first := &Intent{Kind: IntentCreate, Key: tokenKey(tokenA)}
	require.NoError(t, j.Begin(first))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, IntentPending, first.Status)

	err := j.Begin(&Intent{Kind: IntentTransfer, Key: tokenKey(tokenA)})
	assert.True(t, errors.Is(err, ErrOperationInFlight))

	require.NoError(t, j.Begin(&Intent{Kind: IntentCancel, Key: offerKey(offerIdx1)}))

	require.NoError(t, j.MarkFailed(first, errors.New("boom")))
	assert.False(t, j.InFlight(tokenKey(tokenA)))
	require.NoError(t, j.Begin(&Intent{Kind: IntentTransfer, Key: tokenKey(tokenA)}))

	_, ok := j.Get(first.ID)
	assert.False(t, ok, "failed intents are not retained")
}

func TestJournalReplay(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultJournalConfig()
	cfg.Dir = dir
	cfg.Sync = false

	j, err := OpenJournal(cfg, nil)
	require.NoError(t, err)

	done := &Intent{Kind: IntentCreate, Key: tokenKey(tokenA)}
	require.NoError(t, j.Begin(done))
	done.TxHash = "HASHDONE"
	require.NoError(t, j.Update(done))
	require.NoError(t, j.MarkDone(done))

	pending := &Intent{Kind: IntentAccept, Key: offerKey(offerIdx1), OfferIndex: offerIdx1}
	require.NoError(t, j.Begin(pending))
	pending.TxHash = hash1
	pending.LastLedgerSequence = 120
	require.NoError(t, j.Update(pending))
	require.NoError(t, j.Close())

	j, err = OpenJournal(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	left := j.Pending()
	require.Len(t, left, 1)
	assert.Equal(t, pending.ID, left[0].ID)
	assert.Equal(t, hash1, left[0].TxHash)
	assert.Equal(t, uint32(120), left[0].LastLedgerSequence)
	assert.True(t, left[0].Submitted())

	assert.True(t, j.InFlight(offerKey(offerIdx1)))
	assert.False(t, j.InFlight(tokenKey(tokenA)))

	_, ok := j.Get(done.ID)
	assert.False(t, ok)
	got, ok := j.Get(pending.ID)
	require.True(t, ok)
	assert.Equal(t, IntentPending, got.Status)
}

func TestJournalRetainsOnlyPending(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultJournalConfig()
	cfg.Dir = dir
	cfg.Sync = false

	j, err := OpenJournal(cfg, nil)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		intent := &Intent{Kind: IntentCreate, Key: tokenKey(tokenA)}
		require.NoError(t, j.Begin(intent))
		if i%2 == 0 {
			require.NoError(t, j.MarkDone(intent))
		} else {
			require.NoError(t, j.MarkFailed(intent, errors.New("tecNO_PERMISSION")))
		}
	}
	open := &Intent{Kind: IntentCancel, Key: offerKey(offerIdx1)}
	require.NoError(t, j.Begin(open))

	assert.Len(t, j.intents, 1)
	require.NoError(t, j.Close())

	j, err = OpenJournal(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	assert.Len(t, j.intents, 1)
	_, ok := j.Get(open.ID)
	assert.True(t, ok)

	require.NoError(t, j.MarkDone(open))
	assert.Empty(t, j.intents)
	assert.Empty(t, j.Pending())
}

func TestOpenJournalRequiresDir(t *testing.T) {
	_, err := OpenJournal(JournalConfig{}, nil)
	assert.Error(t, err)
}
