package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

// OfferEventRepository implements relationaldb.OfferEventRepository
type OfferEventRepository struct {
	db *sql.DB
	tx *sql.Tx
	d  dialect
}

func newOfferEventRepository(db *sql.DB, d dialect) *OfferEventRepository {
	return &OfferEventRepository{db: db, d: d}
}

func newOfferEventRepositoryWithTx(tx *sql.Tx, d dialect) *OfferEventRepository {
	return &OfferEventRepository{tx: tx, d: d}
}

func (r *OfferEventRepository) getExecutor() executor {
	if r.tx != nil {
		return boundExecutor{exec: r.tx, d: r.d}
	}
	return boundExecutor{exec: r.db, d: r.d}
}

func (r *OfferEventRepository) RecordEvent(ctx context.Context, event *relationaldb.OfferEvent) error {
	now := time.Now().UTC().UnixMilli()
	err := r.getExecutor().QueryRowContext(ctx,
		`INSERT INTO offer_events (offer_index, nftoken_id, kind, actor_account_id, tx_hash, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		relationaldb.NormalizeHex(event.OfferIndex), relationaldb.NormalizeHex(event.NFTokenID),
		string(event.Kind), event.ActorAccountID, relationaldb.NormalizeHex(event.TxHash), event.Amount, now,
	).Scan(&event.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return relationaldb.NewConstraintError("record_event", "event already recorded", err).
				WithCode(relationaldb.CodeDuplicateEntry)
		}
		return relationaldb.NewQueryError("record_event", "failed to insert offer event", err)
	}
	event.CreatedAt = time.UnixMilli(now).UTC()
	return nil
}

func (r *OfferEventRepository) EventExists(ctx context.Context, offerIndex string) (bool, error) {
	var n int64
	err := r.getExecutor().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offer_events WHERE offer_index = ?`,
		relationaldb.NormalizeHex(offerIndex)).Scan(&n)
	if err != nil {
		return false, relationaldb.NewQueryError("event_exists", "failed to look up offer event", err)
	}
	return n > 0, nil
}

func (r *OfferEventRepository) CountEvents(ctx context.Context, kind relationaldb.OfferEventKind) (int64, error) {
	var count int64
	err := r.getExecutor().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offer_events WHERE kind = ?`, string(kind)).Scan(&count)
	if err != nil {
		return 0, relationaldb.NewQueryError("count_events", "failed to count offer events", err)
	}
	return count, nil
}
