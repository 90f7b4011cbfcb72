package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

const offerColumns = `id, nftoken_id, seller_account_id, amount, destination, offer_index, status, created_at, updated_at`

// SellOfferRepository implements relationaldb.SellOfferRepository
type SellOfferRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
	d  dialect
}

func newSellOfferRepository(db *sql.DB, d dialect) *SellOfferRepository {
	return &SellOfferRepository{db: db, d: d}
}

func newSellOfferRepositoryWithTx(tx *sql.Tx, d dialect) *SellOfferRepository {
	return &SellOfferRepository{tx: tx, d: d}
}

func (r *SellOfferRepository) getExecutor() executor {
	if r.tx != nil {
		return boundExecutor{exec: r.tx, d: r.d}
	}
	return boundExecutor{exec: r.db, d: r.d}
}

// InsertOffer stores identifiers in canonical form. The unique offer_index
// constraint turns a second insert of the same offer into ErrDuplicateEntry.
func (r *SellOfferRepository) InsertOffer(ctx context.Context, offer *relationaldb.SellOffer) error {
	if offer.Status == "" {
		offer.Status = relationaldb.OfferStatusActive
	}
	offer.NFTokenID = relationaldb.NormalizeHex(offer.NFTokenID)
	offer.OfferIndex = relationaldb.NormalizeHex(offer.OfferIndex)

	now := time.Now().UTC().UnixMilli()
	err := r.getExecutor().QueryRowContext(ctx,
		`INSERT INTO sell_offers (nftoken_id, seller_account_id, amount, destination, offer_index, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		offer.NFTokenID, offer.SellerAccountID, offer.Amount, nullString(offer.Destination),
		offer.OfferIndex, string(offer.Status), now, now,
	).Scan(&offer.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return relationaldb.NewConstraintError("insert_offer", "offer index already mirrored", err).
				WithCode(relationaldb.CodeDuplicateEntry).
				WithDetail("offer_index", offer.OfferIndex)
		}
		return relationaldb.NewQueryError("insert_offer", "failed to insert sell offer", err)
	}

	offer.CreatedAt = time.UnixMilli(now).UTC()
	offer.UpdatedAt = offer.CreatedAt
	return nil
}

func (r *SellOfferRepository) GetOfferByIndex(ctx context.Context, offerIndex string) (*relationaldb.SellOffer, error) {
	row := r.getExecutor().QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM sell_offers WHERE offer_index = ?`,
		relationaldb.NormalizeHex(offerIndex))

	offer, err := scanOffer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, relationaldb.NewDataError("get_offer_by_index", "offer not mirrored", nil).
				WithCode(relationaldb.CodeOfferNotFound).
				WithDetail("offer_index", offerIndex)
		}
		return nil, relationaldb.NewQueryError("get_offer_by_index", "failed to query sell offer", err)
	}
	return offer, nil
}

func (r *SellOfferRepository) ListOffersByStatus(ctx context.Context, status relationaldb.OfferStatus) ([]relationaldb.SellOffer, error) {
	return r.list(ctx, "list_offers_by_status",
		`SELECT `+offerColumns+` FROM sell_offers WHERE status = ? ORDER BY id`, string(status))
}

func (r *SellOfferRepository) ListActiveOffersForDestination(ctx context.Context, destination string) ([]relationaldb.SellOffer, error) {
	return r.list(ctx, "list_active_offers_for_destination",
		`SELECT `+offerColumns+` FROM sell_offers
		 WHERE status = ? AND destination = ? ORDER BY id`,
		string(relationaldb.OfferStatusActive), destination)
}

func (r *SellOfferRepository) TransitionOfferStatus(ctx context.Context, offerIndex string, from, to relationaldb.OfferStatus, seller *int64) (bool, error) {
	query := `UPDATE sell_offers SET status = ?, updated_at = ? WHERE offer_index = ? AND status = ?`
	args := []any{string(to), time.Now().UTC().UnixMilli(), relationaldb.NormalizeHex(offerIndex), string(from)}
	if seller != nil {
		query += ` AND seller_account_id = ?`
		args = append(args, *seller)
	}

	res, err := r.getExecutor().ExecContext(ctx, query, args...)
	if err != nil {
		return false, relationaldb.NewQueryError("transition_offer_status", "failed to update sell offer status", err)
	}
	return affectedOne(res, "transition_offer_status")
}

func (r *SellOfferRepository) DeleteOffer(ctx context.Context, offerIndex string, expected relationaldb.OfferStatus) (bool, error) {
	res, err := r.getExecutor().ExecContext(ctx,
		`DELETE FROM sell_offers WHERE offer_index = ? AND status = ?`,
		relationaldb.NormalizeHex(offerIndex), string(expected))
	if err != nil {
		return false, relationaldb.NewQueryError("delete_offer", "failed to delete sell offer", err)
	}
	return affectedOne(res, "delete_offer")
}

func (r *SellOfferRepository) CountOffersByStatus(ctx context.Context, status relationaldb.OfferStatus) (int64, error) {
	var count int64
	err := r.getExecutor().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sell_offers WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, relationaldb.NewQueryError("count_offers_by_status", "failed to count sell offers", err)
	}
	return count, nil
}

func (r *SellOfferRepository) list(ctx context.Context, op, query string, args ...any) ([]relationaldb.SellOffer, error) {
	rows, err := r.getExecutor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, relationaldb.NewQueryError(op, "failed to query sell offers", err)
	}
	defer rows.Close()

	offers := make([]relationaldb.SellOffer, 0)
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, relationaldb.NewQueryError(op, "failed to scan sell offer", err)
		}
		offers = append(offers, *offer)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError(op, "failed to iterate sell offers", err)
	}
	return offers, nil
}

func scanOffer(s scanner) (*relationaldb.SellOffer, error) {
	var (
		o                    relationaldb.SellOffer
		destination          sql.NullString
		status               string
		createdAt, updatedAt int64
	)
	if err := s.Scan(&o.ID, &o.NFTokenID, &o.SellerAccountID, &o.Amount, &destination,
		&o.OfferIndex, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	o.Destination = destination.String
	o.Status = relationaldb.OfferStatus(status)
	o.CreatedAt = time.UnixMilli(createdAt).UTC()
	o.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &o, nil
}

func affectedOne(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, relationaldb.NewQueryError(op, "failed to read affected rows", err)
	}
	return n == 1, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
