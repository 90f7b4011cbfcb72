// Package nft mints tokens and decodes their on-ledger metadata.
package nft

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

// Submitter is the part of the ledger client used to submit transactions
type Submitter interface {
	Prepare(ctx context.Context, tx ledger.Transaction, signer ledger.Signer) (*ledger.PreparedTx, error)
	SubmitAndWait(ctx context.Context, prepared *ledger.PreparedTx) (*ledger.FinalResult, error)
}

// MintResult is the outcome of a mint. A failed mint is reported through
// Failure rather than an error; callers must check Failed.
type MintResult struct {
	Hash         string              `json:"transaction_hash,omitempty"`
	NFTokenID    string              `json:"nftoken_id,omitempty"`
	EngineResult ledger.EngineResult `json:"engine_result,omitempty"`
	Failure      string              `json:"failure,omitempty"`
}

// Failed reports whether the mint did not succeed
func (r *MintResult) Failed() bool {
	return r.Failure != ""
}

// Minter mints transferable tokens
type Minter struct {
	ledger Submitter
	logger *zap.Logger
}

// NewMinter creates a minter
func NewMinter(l Submitter, logger *zap.Logger) *Minter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Minter{ledger: l, logger: logger}
}

// Mint mints a transferable, zero transfer fee, taxon 0 token carrying uri
func (m *Minter) Mint(ctx context.Context, signer ledger.Signer, uri string) *MintResult {
	logger := m.logger.With(zap.String("account", signer.Address()))

	prepared, err := m.ledger.Prepare(ctx, ledger.NewNFTokenMint(signer.Address(), uri), signer)
	if err != nil {
		logger.Warn("mint prepare failed", zap.Error(err))
		return &MintResult{Failure: err.Error()}
	}

	final, err := m.ledger.SubmitAndWait(ctx, prepared)
	if err != nil {
		res := &MintResult{Hash: prepared.Hash, Failure: err.Error()}
		var subErr *ledger.SubmissionError
		if errors.As(err, &subErr) {
			res.EngineResult = subErr.EngineResult
		}
		logger.Warn("mint failed", zap.String("hash", prepared.Hash), zap.Error(err))
		return res
	}

	res := &MintResult{Hash: final.Hash, EngineResult: final.EngineResult}
	res.NFTokenID = MintedTokenID(final.Meta)
	if res.NFTokenID == "" {
		logger.Warn("minted token id not found in metadata", zap.String("hash", final.Hash))
	}
	logger.Info("token minted", zap.String("hash", final.Hash), zap.String("nftoken_id", res.NFTokenID))
	return res
}

// MintedTokenID returns the id of the token created by a mint. The node
// reports it directly in recent versions; otherwise it is the token that
// appears in an NFTokenPage but was not there before.
func MintedTokenID(meta *ledger.TxMeta) string {
	if meta == nil {
		return ""
	}
	if meta.NFTokenID != "" {
		return relationaldb.NormalizeHex(meta.NFTokenID)
	}

	for _, node := range meta.AffectedNodes {
		if node.LedgerEntryType != ledger.EntryTypeNFTokenPage {
			continue
		}
		var after, before map[string]struct{}
		switch node.NodeType {
		case ledger.NodeTypeCreated:
			after = pageTokens(node.NewFields)
		case ledger.NodeTypeModified:
			if _, changed := node.PreviousFields["NFTokens"]; !changed {
				continue
			}
			after = pageTokens(node.FinalFields)
			before = pageTokens(node.PreviousFields)
		default:
			continue
		}
		for id := range after {
			if _, ok := before[id]; !ok {
				return id
			}
		}
	}
	return ""
}

// pageTokens reads the NFTokens array of an NFTokenPage field set
func pageTokens(fields map[string]any) map[string]struct{} {
	out := map[string]struct{}{}
	list, _ := fields["NFTokens"].([]any)
	for _, item := range list {
		wrapper, _ := item.(map[string]any)
		token, _ := wrapper["NFToken"].(map[string]any)
		if id, _ := token["NFTokenID"].(string); id != "" {
			out[relationaldb.NormalizeHex(id)] = struct{}{}
		}
	}
	return out
}
