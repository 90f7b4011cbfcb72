package ledger

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

const (
	pageLimit = 400
	maxPages  = 50
)

// AccountInfo returns the account root in the latest validated ledger.
// Lookups are strict: address must be a classic address.
func (c *Client) AccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	return c.accountInfo(ctx, address, "validated")
}

func (c *Client) accountInfo(ctx context.Context, address, ledgerIndex string) (*AccountInfo, error) {
	var res AccountInfo
	params := map[string]any{
		"account":      address,
		"ledger_index": ledgerIndex,
		"strict":       true,
	}
	if err := c.Call(ctx, "account_info", params, &res); err != nil {
		return nil, err
	}
	if err := res.validate(); err != nil {
		return nil, err
	}
	return &res, nil
}

// AccountNFTs returns every token held by address, following pagination
func (c *Client) AccountNFTs(ctx context.Context, address string) ([]NFToken, error) {
	var (
		tokens []NFToken
		marker json.RawMessage
	)
	for page := 0; page < maxPages; page++ {
		params := map[string]any{
			"account":      address,
			"ledger_index": "validated",
			"limit":        pageLimit,
		}
		if len(marker) > 0 {
			params["marker"] = marker
		}

		var res accountNFTsPage
		if err := c.Call(ctx, "account_nfts", params, &res); err != nil {
			return nil, err
		}
		if err := res.validate(); err != nil {
			return nil, err
		}
		tokens = append(tokens, res.AccountNFTs...)

		if len(res.Marker) == 0 || string(res.Marker) == "null" {
			return tokens, nil
		}
		marker = res.Marker
	}
	return nil, errors.Errorf("account_nfts: more than %d pages for %s", maxPages, address)
}

// AccountNFTOffers returns the NFTokenOffer objects owned by address
func (c *Client) AccountNFTOffers(ctx context.Context, address string) ([]OfferEntry, error) {
	var (
		offers []OfferEntry
		marker json.RawMessage
	)
	for page := 0; page < maxPages; page++ {
		params := map[string]any{
			"account":      address,
			"type":         "nft_offer",
			"ledger_index": "validated",
			"limit":        pageLimit,
		}
		if len(marker) > 0 {
			params["marker"] = marker
		}

		var res accountObjectsPage
		if err := c.Call(ctx, "account_objects", params, &res); err != nil {
			return nil, err
		}
		for i := range res.AccountObjects {
			if err := res.AccountObjects[i].validate(); err != nil {
				return nil, err
			}
		}
		offers = append(offers, res.AccountObjects...)

		if len(res.Marker) == 0 || string(res.Marker) == "null" {
			return offers, nil
		}
		marker = res.Marker
	}
	return nil, errors.Errorf("account_objects: more than %d pages for %s", maxPages, address)
}

// NFTSellOffers returns the sell offers of a token. A token without offers
// yields an empty slice rather than an error.
func (c *Client) NFTSellOffers(ctx context.Context, nftokenID string) ([]NFTOffer, error) {
	var res nftSellOffersResult
	params := map[string]any{
		"nft_id":       nftokenID,
		"ledger_index": "validated",
	}
	if err := c.Call(ctx, "nft_sell_offers", params, &res); err != nil {
		if IsRPCError(err, ErrNameObjectNotFound) {
			return []NFTOffer{}, nil
		}
		return nil, err
	}
	if err := res.validate(); err != nil {
		return nil, err
	}
	return res.Offers, nil
}

// LedgerEntryOffer fetches an NFTokenOffer by its index from the validated ledger
func (c *Client) LedgerEntryOffer(ctx context.Context, offerIndex string) (*OfferEntry, error) {
	var res ledgerEntryResult
	params := map[string]any{
		"index":        offerIndex,
		"ledger_index": "validated",
	}
	if err := c.Call(ctx, "ledger_entry", params, &res); err != nil {
		return nil, err
	}
	if err := res.Node.validate(); err != nil {
		return nil, err
	}
	if res.Node.Index == "" {
		res.Node.Index = res.Index
	}
	return &res.Node, nil
}

// Tx looks a transaction up by hash
func (c *Client) Tx(ctx context.Context, hash string) (*TxResponse, error) {
	var res TxResponse
	params := map[string]any{
		"transaction": hash,
		"binary":      false,
	}
	if err := c.Call(ctx, "tx", params, &res); err != nil {
		return nil, err
	}
	if err := res.validate(); err != nil {
		return nil, err
	}
	return &res, nil
}

// LedgerCurrent returns the index of the open ledger
func (c *Client) LedgerCurrent(ctx context.Context) (uint32, error) {
	var res ledgerCurrentResult
	if err := c.Call(ctx, "ledger_current", nil, &res); err != nil {
		return 0, err
	}
	if res.LedgerCurrentIndex == 0 {
		return 0, errors.Wrap(ErrMalformedResponse, "ledger_current: missing ledger_current_index")
	}
	return uint32(res.LedgerCurrentIndex), nil
}

// ValidatedLedger returns the index of the latest validated ledger
func (c *Client) ValidatedLedger(ctx context.Context) (uint32, error) {
	var res ledgerResult
	params := map[string]any{"ledger_index": "validated"}
	if err := c.Call(ctx, "ledger", params, &res); err != nil {
		return 0, err
	}
	if res.LedgerIndex == 0 {
		return 0, errors.Wrap(ErrMalformedResponse, "ledger: missing ledger_index")
	}
	return uint32(res.LedgerIndex), nil
}

// Fee returns the current fee levels
func (c *Client) Fee(ctx context.Context) (*FeeResponse, error) {
	var res FeeResponse
	if err := c.Call(ctx, "fee", nil, &res); err != nil {
		return nil, err
	}
	if res.Drops.BaseFee == "" {
		return nil, errors.Wrap(ErrMalformedResponse, "fee: missing drops.base_fee")
	}
	return &res, nil
}

// Submit sends a signed blob and returns the preliminary result
func (c *Client) Submit(ctx context.Context, blob string) (*SubmitResponse, error) {
	var res SubmitResponse
	if err := c.Call(ctx, "submit", map[string]any{"tx_blob": blob}, &res); err != nil {
		return nil, err
	}
	if err := res.validate(); err != nil {
		return nil, err
	}
	return &res, nil
}

// feeDrops picks the open ledger fee bounded by [base fee, max].
func (c *Client) feeDrops(ctx context.Context) (uint64, error) {
	fee, err := c.Fee(ctx)
	if err != nil {
		return 0, err
	}
	base, err := strconv.ParseUint(fee.Drops.BaseFee, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedResponse, "fee: base_fee %q", fee.Drops.BaseFee)
	}
	drops := base
	if open, err := strconv.ParseUint(fee.Drops.OpenLedgerFee, 10, 64); err == nil && open > drops {
		drops = open
	}
	if c.cfg.MaxFeeDrops > 0 && drops > c.cfg.MaxFeeDrops {
		drops = c.cfg.MaxFeeDrops
	}
	if drops < base {
		drops = base
	}
	return drops, nil
}
