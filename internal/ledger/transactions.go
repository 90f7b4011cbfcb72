package ledger

import (
	"encoding/hex"
	"strings"
)

// Transaction is a flat transaction field map in the node's JSON format
type Transaction map[string]any

// Transaction types
const (
	TxTypeNFTokenMint        = "NFTokenMint"
	TxTypeNFTokenCreateOffer = "NFTokenCreateOffer"
	TxTypeNFTokenAcceptOffer = "NFTokenAcceptOffer"
	TxTypeNFTokenCancelOffer = "NFTokenCancelOffer"
)

// Ledger entry types
const (
	EntryTypeNFTokenOffer = "NFTokenOffer"
	EntryTypeNFTokenPage  = "NFTokenPage"
)

// Flags
const (
	// TfTransferable allows the token to be transferred to non-issuers
	TfTransferable uint32 = 0x00000008

	// TfSellNFToken marks an NFTokenCreateOffer as a sell offer
	TfSellNFToken uint32 = 0x00000001

	// LsfSellNFToken is the ledger flag of a sell NFTokenOffer
	LsfSellNFToken uint32 = 0x00000001
)

// Type returns the TransactionType field
func (t Transaction) Type() string {
	s, _ := t["TransactionType"].(string)
	return s
}

// Account returns the Account field
func (t Transaction) Account() string {
	s, _ := t["Account"].(string)
	return s
}

// NewNFTokenMint builds a transferable, zero transfer fee, taxon 0 mint of
// uri. The URI is hex encoded as required on the wire.
func NewNFTokenMint(account, uri string) Transaction {
	return Transaction{
		"TransactionType": TxTypeNFTokenMint,
		"Account":         account,
		"Flags":           TfTransferable,
		"TransferFee":     uint16(0),
		"NFTokenTaxon":    uint32(0),
		"URI":             strings.ToUpper(hex.EncodeToString([]byte(uri))),
	}
}

// NewNFTokenCreateSellOffer builds a sell offer for tokenID priced in drops.
// An empty destination leaves the offer open to anyone.
func NewNFTokenCreateSellOffer(account, tokenID, amountDrops, destination string) Transaction {
	tx := Transaction{
		"TransactionType": TxTypeNFTokenCreateOffer,
		"Account":         account,
		"NFTokenID":       tokenID,
		"Amount":          amountDrops,
		"Flags":           TfSellNFToken,
	}
	if destination != "" {
		tx["Destination"] = destination
	}
	return tx
}

// NewNFTokenAcceptSellOffer builds an acceptance of an existing sell offer
func NewNFTokenAcceptSellOffer(account, offerIndex string) Transaction {
	return Transaction{
		"TransactionType":  TxTypeNFTokenAcceptOffer,
		"Account":          account,
		"NFTokenSellOffer": offerIndex,
	}
}

// NewNFTokenCancelOffer builds a cancellation of one or more offers
func NewNFTokenCancelOffer(account string, offerIndexes ...string) Transaction {
	offers := make([]string, len(offerIndexes))
	copy(offers, offerIndexes)
	return Transaction{
		"TransactionType": TxTypeNFTokenCancelOffer,
		"Account":         account,
		"NFTokenOffers":   offers,
	}
}
