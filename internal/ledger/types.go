package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LedgerSeq is a ledger sequence number. The node reports it either as a
// JSON number or as a numeric string depending on the method.
type LedgerSeq uint32

// UnmarshalJSON implements custom unmarshaling for LedgerSeq
func (s *LedgerSeq) UnmarshalJSON(data []byte) error {
	var num uint32
	if err := json.Unmarshal(data, &num); err == nil {
		*s = LedgerSeq(num)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		v, err := strconv.ParseUint(str, 10, 32)
		if err != nil {
			return fmt.Errorf("ledger_index must be numeric, got %q", str)
		}
		*s = LedgerSeq(v)
		return nil
	}

	return fmt.Errorf("ledger_index must be a number or string, got: %s", string(data))
}

// Amount is either a drops string (native currency) or an issued currency
// object. Only drops are meaningful for marketplace offers.
type Amount struct {
	Drops    string `json:"-"`
	Currency string `json:"currency,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	Value    string `json:"value,omitempty"`
}

// UnmarshalJSON implements custom unmarshaling for Amount
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.Drops)
	}

	type issued Amount
	var v issued
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// IsNative reports whether the amount is denominated in drops
func (a Amount) IsNative() bool {
	return a.Drops != ""
}

func (a Amount) String() string {
	if a.IsNative() {
		return a.Drops
	}
	return a.Value + " " + a.Currency + "/" + a.Issuer
}

// AccountRoot is the subset of the AccountRoot ledger entry we read
type AccountRoot struct {
	Account    string `json:"Account"`
	Balance    string `json:"Balance"`
	Sequence   uint32 `json:"Sequence"`
	OwnerCount uint32 `json:"OwnerCount"`
	Flags      uint32 `json:"Flags"`
}

// AccountInfo is the account_info result
type AccountInfo struct {
	AccountData        AccountRoot `json:"account_data"`
	LedgerIndex        LedgerSeq   `json:"ledger_index,omitempty"`
	LedgerCurrentIndex LedgerSeq   `json:"ledger_current_index,omitempty"`
	Validated          bool        `json:"validated"`
}

func (r *AccountInfo) validate() error {
	if r.AccountData.Account == "" || r.AccountData.Balance == "" {
		return errors.Wrap(ErrMalformedResponse, "account_info: missing account_data")
	}
	return nil
}

// NFToken is one entry of account_nfts
type NFToken struct {
	Flags        uint32 `json:"Flags"`
	Issuer       string `json:"Issuer"`
	NFTokenID    string `json:"NFTokenID"`
	NFTokenTaxon uint32 `json:"NFTokenTaxon"`
	URI          string `json:"URI,omitempty"`
	Serial       uint32 `json:"nft_serial"`
}

type accountNFTsPage struct {
	Account     string          `json:"account"`
	AccountNFTs []NFToken       `json:"account_nfts"`
	Marker      json.RawMessage `json:"marker,omitempty"`
}

func (r *accountNFTsPage) validate() error {
	if r.AccountNFTs == nil {
		return errors.Wrap(ErrMalformedResponse, "account_nfts: missing account_nfts")
	}
	for _, t := range r.AccountNFTs {
		if t.NFTokenID == "" {
			return errors.Wrap(ErrMalformedResponse, "account_nfts: token without NFTokenID")
		}
	}
	return nil
}

// NFTOffer is one entry of nft_sell_offers
type NFTOffer struct {
	Amount      Amount `json:"amount"`
	Flags       uint32 `json:"flags"`
	OfferIndex  string `json:"nft_offer_index"`
	Owner       string `json:"owner"`
	Destination string `json:"destination,omitempty"`
	Expiration  uint32 `json:"expiration,omitempty"`
}

type nftSellOffersResult struct {
	NFTokenID string     `json:"nft_id"`
	Offers    []NFTOffer `json:"offers"`
}

func (r *nftSellOffersResult) validate() error {
	for _, o := range r.Offers {
		if o.OfferIndex == "" {
			return errors.Wrap(ErrMalformedResponse, "nft_sell_offers: offer without index")
		}
	}
	return nil
}

// OfferEntry is an NFTokenOffer ledger object
type OfferEntry struct {
	LedgerEntryType string `json:"LedgerEntryType"`
	Index           string `json:"index"`
	Amount          Amount `json:"Amount"`
	Owner           string `json:"Owner"`
	NFTokenID       string `json:"NFTokenID"`
	Destination     string `json:"Destination,omitempty"`
	Flags           uint32 `json:"Flags"`
	Expiration      uint32 `json:"Expiration,omitempty"`
}

// IsSellOffer reports whether the lsfSellNFToken flag is set
func (o *OfferEntry) IsSellOffer() bool {
	return o.Flags&LsfSellNFToken != 0
}

func (o *OfferEntry) validate() error {
	if o.LedgerEntryType != "" && o.LedgerEntryType != EntryTypeNFTokenOffer {
		return errors.Wrapf(ErrMalformedResponse, "expected %s entry, got %s", EntryTypeNFTokenOffer, o.LedgerEntryType)
	}
	if o.Owner == "" || o.NFTokenID == "" {
		return errors.Wrap(ErrMalformedResponse, "offer entry: missing Owner or NFTokenID")
	}
	return nil
}

type ledgerEntryResult struct {
	Index       string     `json:"index"`
	LedgerIndex LedgerSeq  `json:"ledger_index"`
	Node        OfferEntry `json:"node"`
	Validated   bool       `json:"validated"`
}

type accountObjectsPage struct {
	Account        string          `json:"account"`
	AccountObjects []OfferEntry    `json:"account_objects"`
	Marker         json.RawMessage `json:"marker,omitempty"`
}

// AffectedNode is one entry of transaction metadata, flattened from the
// {"CreatedNode": {...}} wire shape.
type AffectedNode struct {
	NodeType        string         `json:"-"`
	LedgerEntryType string         `json:"LedgerEntryType"`
	LedgerIndex     string         `json:"LedgerIndex"`
	NewFields       map[string]any `json:"NewFields,omitempty"`
	FinalFields     map[string]any `json:"FinalFields,omitempty"`
	PreviousFields  map[string]any `json:"PreviousFields,omitempty"`
}

// Node types in transaction metadata
const (
	NodeTypeCreated  = "CreatedNode"
	NodeTypeModified = "ModifiedNode"
	NodeTypeDeleted  = "DeletedNode"
)

// UnmarshalJSON implements custom unmarshaling for AffectedNode
func (n *AffectedNode) UnmarshalJSON(data []byte) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	if len(wrapper) != 1 {
		return errors.Wrapf(ErrMalformedResponse, "affected node must have exactly one key, got %d", len(wrapper))
	}

	type plain AffectedNode
	for nodeType, body := range wrapper {
		var v plain
		if err := json.Unmarshal(body, &v); err != nil {
			return errors.Wrapf(err, "decode %s", nodeType)
		}
		*n = AffectedNode(v)
		n.NodeType = nodeType
	}
	return nil
}

// TxMeta is transaction metadata in JSON form
type TxMeta struct {
	TransactionIndex  uint32         `json:"TransactionIndex"`
	TransactionResult EngineResult   `json:"TransactionResult"`
	AffectedNodes     []AffectedNode `json:"AffectedNodes"`
	NFTokenID         string         `json:"nftoken_id,omitempty"`
	OfferID           string         `json:"offer_id,omitempty"`
}

// CreatedNodes returns created entries of the given ledger entry type
func (m *TxMeta) CreatedNodes(entryType string) []AffectedNode {
	var out []AffectedNode
	for _, n := range m.AffectedNodes {
		if n.NodeType == NodeTypeCreated && n.LedgerEntryType == entryType {
			out = append(out, n)
		}
	}
	return out
}

// TxResponse is the tx result
type TxResponse struct {
	Hash               string    `json:"hash"`
	TransactionType    string    `json:"TransactionType"`
	Account            string    `json:"Account"`
	Sequence           uint32    `json:"Sequence"`
	LastLedgerSequence uint32    `json:"LastLedgerSequence,omitempty"`
	LedgerIndex        LedgerSeq `json:"ledger_index,omitempty"`
	Validated          bool      `json:"validated"`
	Meta               *TxMeta   `json:"meta,omitempty"`
}

func (r *TxResponse) validate() error {
	if r.Hash == "" {
		return errors.Wrap(ErrMalformedResponse, "tx: missing hash")
	}
	if r.Validated && (r.Meta == nil || r.Meta.TransactionResult == "") {
		return errors.Wrap(ErrMalformedResponse, "tx: validated without meta")
	}
	return nil
}

// SubmitResponse is the submit result
type SubmitResponse struct {
	EngineResult        EngineResult `json:"engine_result"`
	EngineResultCode    int          `json:"engine_result_code"`
	EngineResultMessage string       `json:"engine_result_message"`
	Accepted            bool         `json:"accepted"`
	Applied             bool         `json:"applied"`
	Broadcast           bool         `json:"broadcast"`
	Kept                bool         `json:"kept"`
	Queued              bool         `json:"queued"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

func (r *SubmitResponse) validate() error {
	if r.EngineResult == "" {
		return errors.Wrap(ErrMalformedResponse, "submit: missing engine_result")
	}
	return nil
}

// FeeResponse is the fee result, amounts in drops
type FeeResponse struct {
	Drops struct {
		BaseFee       string `json:"base_fee"`
		MinimumFee    string `json:"minimum_fee"`
		OpenLedgerFee string `json:"open_ledger_fee"`
	} `json:"drops"`
	LedgerCurrentIndex LedgerSeq `json:"ledger_current_index"`
}

type ledgerCurrentResult struct {
	LedgerCurrentIndex LedgerSeq `json:"ledger_current_index"`
}

type ledgerResult struct {
	LedgerIndex LedgerSeq `json:"ledger_index"`
	Validated   bool      `json:"validated"`
}

// sameID compares two ledger hex identifiers ignoring case
func sameID(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
