package offer

import (
	"github.com/pkg/errors"

	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

// ExtractOfferIndex returns the index of the NFTokenOffer created by a
// transaction, read from the created nodes of its metadata.
func ExtractOfferIndex(meta *ledger.TxMeta) (string, error) {
	if meta == nil {
		return "", errors.Wrap(ErrIdentifierExtraction, "no metadata")
	}
	for _, node := range meta.CreatedNodes(ledger.EntryTypeNFTokenOffer) {
		if idx := relationaldb.NormalizeHex(node.LedgerIndex); idx != "" {
			return idx, nil
		}
	}
	return "", errors.Wrapf(ErrIdentifierExtraction, "%d affected nodes, none a created %s",
		len(meta.AffectedNodes), ledger.EntryTypeNFTokenOffer)
}
