package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(params map[string]any) any

// fakeNode answers JSON-RPC requests from per-method handlers and records
// the parameters it received.
type fakeNode struct {
	t        *testing.T
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    map[string][]map[string]any
}

func newFakeNode(t *testing.T) (*fakeNode, *Client) {
	t.Helper()
	node := &fakeNode{t: t, handlers: map[string]handlerFunc{}, calls: map[string][]map[string]any{}}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.URL = srv.URL
	cfg.RateLimit = 0
	cfg.PollInterval = time.Millisecond
	cfg.MaxPollInterval = 2 * time.Millisecond

	client, err := NewClient(cfg)
	require.NoError(t, err)
	return node, client
}

func (n *fakeNode) on(method string, h handlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) callsTo(method string) []map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string           `json:"method"`
		Params []map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params := map[string]any{}
	if len(req.Params) > 0 {
		params = req.Params[0]
	}

	n.mu.Lock()
	n.calls[req.Method] = append(n.calls[req.Method], params)
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	var result any
	if ok {
		result = h(params)
	} else {
		result = rpcErr("unknownCmd", 32, "Unknown method.")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func rpcErr(name string, code int, msg string) map[string]any {
	return map[string]any{"status": "error", "error": name, "error_code": code, "error_message": msg}
}

func success(fields map[string]any) map[string]any {
	fields["status"] = "success"
	return fields
}

type staticSigner struct {
	address string
	hash    string
	signed  Transaction
}

func (s *staticSigner) Address() string { return s.address }

func (s *staticSigner) Sign(tx Transaction) (string, string, error) {
	s.signed = tx
	return "SIGNEDBLOB", s.hash, nil
}

func TestCallReturnsTypedRPCError(t *testing.T) {
	node, client := newFakeNode(t)
	node.on("account_info", func(map[string]any) any {
		return rpcErr(ErrNameActNotFound, 19, "Account not found.")
	})

	_, err := client.AccountInfo(context.Background(), "rMissing")
	require.Error(t, err)
	assert.True(t, IsRPCError(err, ErrNameActNotFound))

	var rpcError *RPCError
	require.True(t, errors.As(err, &rpcError))
	assert.Equal(t, 19, rpcError.Code)
	assert.Equal(t, "account_info", rpcError.Method)
	assert.Contains(t, rpcError.Error(), "Account not found.")
}

func TestAccountInfoUsesValidatedStrictLookup(t *testing.T) {
	node, client := newFakeNode(t)
	node.on("account_info", func(map[string]any) any {
		return success(map[string]any{
			"account_data": map[string]any{"Account": "rSeller", "Balance": "25000000", "Sequence": 7},
			"ledger_index": 1234,
			"validated":    true,
		})
	})

	info, err := client.AccountInfo(context.Background(), "rSeller")
	require.NoError(t, err)
	assert.Equal(t, "25000000", info.AccountData.Balance)
	assert.Equal(t, uint32(7), info.AccountData.Sequence)
	assert.Equal(t, LedgerSeq(1234), info.LedgerIndex)

	calls := node.callsTo("account_info")
	require.Len(t, calls, 1)
	assert.Equal(t, "validated", calls[0]["ledger_index"])
	assert.Equal(t, true, calls[0]["strict"])
}

func TestAccountInfoRejectsMissingFields(t *testing.T) {
	node, client := newFakeNode(t)
	node.on("account_info", func(map[string]any) any {
		return success(map[string]any{"account_data": map[string]any{"Account": "rSeller"}})
	})

	_, err := client.AccountInfo(context.Background(), "rSeller")
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestAccountNFTsFollowsMarker(t *testing.T) {
	node, client := newFakeNode(t)
	node.on("account_nfts", func(params map[string]any) any {
		if params["marker"] == nil {
			return success(map[string]any{
				"account":      "rSeller",
				"account_nfts": []map[string]any{{"NFTokenID": "AA01", "URI": "68747470", "Issuer": "rSeller"}},
				"marker":       "PAGE2",
			})
		}
		return success(map[string]any{
			"account":      "rSeller",
			"account_nfts": []map[string]any{{"NFTokenID": "AA02", "Issuer": "rSeller"}},
		})
	})

	tokens, err := client.AccountNFTs(context.Background(), "rSeller")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "AA01", tokens[0].NFTokenID)
	assert.Equal(t, "68747470", tokens[0].URI)
	assert.Equal(t, "AA02", tokens[1].NFTokenID)

	calls := node.callsTo("account_nfts")
	require.Len(t, calls, 2)
	assert.Equal(t, "PAGE2", calls[1]["marker"])
}

func TestNFTSellOffers(t *testing.T) {
	tests := []struct {
		name     string
		result   map[string]any
		expected int
	}{
		{
			name: "offers listed",
			result: success(map[string]any{
				"nft_id": "AA01",
				"offers": []map[string]any{
					{"amount": "1000000", "flags": 1, "nft_offer_index": "OFF1", "owner": "rSeller"},
					{"amount": map[string]any{"currency": "USD", "issuer": "rIssuer", "value": "5"}, "flags": 1, "nft_offer_index": "OFF2", "owner": "rSeller"},
				},
			}),
			expected: 2,
		},
		{
			name:     "no offers is not an error",
			result:   rpcErr(ErrNameObjectNotFound, 92, "The requested object was not found."),
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, client := newFakeNode(t)
			node.on("nft_sell_offers", func(map[string]any) any { return tt.result })

			offers, err := client.NFTSellOffers(context.Background(), "AA01")
			require.NoError(t, err)
			assert.Len(t, offers, tt.expected)
			if tt.expected == 2 {
				assert.True(t, offers[0].Amount.IsNative())
				assert.Equal(t, "1000000", offers[0].Amount.Drops)
				assert.False(t, offers[1].Amount.IsNative())
				assert.Equal(t, "USD", offers[1].Amount.Currency)
			}
		})
	}
}

func TestLedgerEntryOffer(t *testing.T) {
	node, client := newFakeNode(t)
	node.on("ledger_entry", func(params map[string]any) any {
		return success(map[string]any{
			"index": params["index"],
			"node": map[string]any{
				"LedgerEntryType": "NFTokenOffer",
				"Amount":          "400",
				"Owner":           "rSeller",
				"NFTokenID":       "AA01",
				"Flags":           1,
			},
			"validated": true,
		})
	})

	offer, err := client.LedgerEntryOffer(context.Background(), "OFF1")
	require.NoError(t, err)
	assert.Equal(t, "OFF1", offer.Index)
	assert.Equal(t, "400", offer.Amount.Drops)
	assert.True(t, offer.IsSellOffer())
}

func TestAffectedNodeDecoding(t *testing.T) {
	raw := `{
		"TransactionResult": "tesSUCCESS",
		"TransactionIndex": 3,
		"AffectedNodes": [
			{"ModifiedNode": {"LedgerEntryType": "AccountRoot", "LedgerIndex": "ACC1", "FinalFields": {"Balance": "10"}}},
			{"CreatedNode": {"LedgerEntryType": "NFTokenOffer", "LedgerIndex": "OFFERIDX1", "NewFields": {"Amount": "400"}}},
			{"DeletedNode": {"LedgerEntryType": "DirectoryNode", "LedgerIndex": "DIR1"}}
		]
	}`

	var meta TxMeta
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))
	require.Len(t, meta.AffectedNodes, 3)
	assert.Equal(t, NodeTypeModified, meta.AffectedNodes[0].NodeType)
	assert.Equal(t, "10", meta.AffectedNodes[0].FinalFields["Balance"])

	created := meta.CreatedNodes(EntryTypeNFTokenOffer)
	require.Len(t, created, 1)
	assert.Equal(t, "OFFERIDX1", created[0].LedgerIndex)
	assert.Equal(t, NodeTypeDeleted, meta.AffectedNodes[2].NodeType)
}

// scriptLedger installs the autofill handlers used by Prepare and a tx
// handler that reports the transaction validated on the given poll.
func scriptLedger(node *fakeNode, validatedOnPoll int, result EngineResult, validatedIndex int) {
	node.on("account_info", func(params map[string]any) any {
		return success(map[string]any{
			"account_data":         map[string]any{"Account": params["account"], "Balance": "50000000", "Sequence": 5},
			"ledger_current_index": 100,
		})
	})
	node.on("fee", func(map[string]any) any {
		return success(map[string]any{
			"drops":                map[string]any{"base_fee": "10", "minimum_fee": "10", "open_ledger_fee": "12"},
			"ledger_current_index": 100,
		})
	})
	node.on("ledger_current", func(map[string]any) any {
		return success(map[string]any{"ledger_current_index": 100})
	})
	node.on("ledger", func(map[string]any) any {
		return success(map[string]any{"ledger_index": validatedIndex, "validated": true})
	})

	var mu sync.Mutex
	polls := 0
	node.on("tx", func(params map[string]any) any {
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		if validatedOnPoll == 0 || n < validatedOnPoll {
			return rpcErr(ErrNameTxnNotFound, 29, "Transaction not found.")
		}
		return success(map[string]any{
			"hash":         params["transaction"],
			"ledger_index": 101,
			"validated":    true,
			"meta": map[string]any{
				"TransactionResult": string(result),
				"AffectedNodes": []map[string]any{
					{"CreatedNode": map[string]any{"LedgerEntryType": "NFTokenOffer", "LedgerIndex": "OFFERIDX1"}},
				},
			},
		})
	})
}

func TestPrepareAutofillsAndSigns(t *testing.T) {
	node, client := newFakeNode(t)
	scriptLedger(node, 1, TesSUCCESS, 100)

	signer := &staticSigner{address: "rSeller", hash: "abcdef"}
	tx := NewNFTokenCreateSellOffer("", "AA01", "1000000", "")

	prepared, err := client.Prepare(context.Background(), tx, signer)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", prepared.Hash)
	assert.Equal(t, "SIGNEDBLOB", prepared.Blob)
	assert.Equal(t, uint32(5), prepared.Sequence)
	assert.Equal(t, uint32(120), prepared.LastLedgerSequence)
	assert.Equal(t, uint64(12), prepared.FeeDrops)

	assert.Equal(t, "rSeller", signer.signed["Account"])
	assert.Equal(t, "12", signer.signed["Fee"])
	assert.Equal(t, uint32(120), signer.signed["LastLedgerSequence"])
	assert.Equal(t, TfSellNFToken, signer.signed["Flags"])
	_, hasDest := signer.signed["Destination"]
	assert.False(t, hasDest)

	calls := node.callsTo("account_info")
	require.Len(t, calls, 1)
	assert.Equal(t, "current", calls[0]["ledger_index"])
}

func TestPrepareRejectsForeignAccount(t *testing.T) {
	_, client := newFakeNode(t)
	signer := &staticSigner{address: "rSeller", hash: "abcdef"}

	_, err := client.Prepare(context.Background(), NewNFTokenMint("rSomeoneElse", "ipfs://x"), signer)
	assert.Error(t, err)
}

func TestPrepareCapsFee(t *testing.T) {
	node, client := newFakeNode(t)
	scriptLedger(node, 1, TesSUCCESS, 100)
	node.on("fee", func(map[string]any) any {
		return success(map[string]any{"drops": map[string]any{"base_fee": "10", "open_ledger_fee": "999999"}})
	})

	prepared, err := client.Prepare(context.Background(), NewNFTokenMint("", "ipfs://x"), &staticSigner{address: "rSeller", hash: "h"})
	require.NoError(t, err)
	assert.Equal(t, client.Config().MaxFeeDrops, prepared.FeeDrops)
}

func TestSubmitAndWait(t *testing.T) {
	tests := []struct {
		name            string
		submitResult    EngineResult
		validatedOnPoll int
		finalResult     EngineResult
		validatedIndex  int
		expectError     bool
		expectRejected  bool
		expectExpired   bool
		expectFinal     bool
	}{
		{
			name:            "validated success after polling",
			submitResult:    TesSUCCESS,
			validatedOnPoll: 3,
			finalResult:     TesSUCCESS,
			validatedIndex:  101,
			expectFinal:     true,
		},
		{
			name:            "queued then validated",
			submitResult:    TerQUEUED,
			validatedOnPoll: 1,
			finalResult:     TesSUCCESS,
			validatedIndex:  101,
			expectFinal:     true,
		},
		{
			name:           "malformed is rejected without polling",
			submitResult:   TemMALFORMED,
			validatedIndex: 101,
			expectError:    true,
			expectRejected: true,
		},
		{
			name:            "validated with claimed cost",
			submitResult:    TesSUCCESS,
			validatedOnPoll: 1,
			finalResult:     TecNO_ENTRY,
			validatedIndex:  101,
			expectError:     true,
			expectFinal:     true,
		},
		{
			name:           "expired past last ledger sequence",
			submitResult:   TesSUCCESS,
			validatedIndex: 121,
			expectError:    true,
			expectExpired:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, client := newFakeNode(t)
			scriptLedger(node, tt.validatedOnPoll, tt.finalResult, tt.validatedIndex)
			node.on("submit", func(map[string]any) any {
				return success(map[string]any{
					"engine_result":         string(tt.submitResult),
					"engine_result_message": tt.submitResult.Message(),
					"tx_json":               map[string]any{"hash": "ABCDEF"},
				})
			})

			prepared := &PreparedTx{Hash: "ABCDEF", Blob: "SIGNEDBLOB", TransactionType: TxTypeNFTokenCreateOffer, LastLedgerSequence: 120}
			final, err := client.SubmitAndWait(context.Background(), prepared)

			if tt.expectError {
				require.Error(t, err)
				var subErr *SubmissionError
				require.True(t, errors.As(err, &subErr))
				assert.Equal(t, "ABCDEF", subErr.Hash)
				assert.Equal(t, tt.expectRejected, errors.Is(err, ErrRejected))
				assert.Equal(t, tt.expectExpired, errors.Is(err, ErrExpired))
				if tt.expectRejected {
					assert.Empty(t, node.callsTo("tx"))
				}
			} else {
				require.NoError(t, err)
			}

			if tt.expectFinal {
				require.NotNil(t, final)
				assert.Equal(t, tt.finalResult, final.EngineResult)
				assert.Equal(t, uint32(101), final.LedgerIndex)
				require.NotNil(t, final.Meta)
				assert.Len(t, final.Meta.CreatedNodes(EntryTypeNFTokenOffer), 1)
			}

			require.NotEmpty(t, node.callsTo("submit"))
			assert.Equal(t, "SIGNEDBLOB", node.callsTo("submit")[0]["tx_blob"])
		})
	}
}

func TestSubmitAndWaitHonoursContext(t *testing.T) {
	node, client := newFakeNode(t)
	scriptLedger(node, 0, TesSUCCESS, 100)
	node.on("submit", func(map[string]any) any {
		return success(map[string]any{"engine_result": "tesSUCCESS"})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.SubmitAndWait(ctx, &PreparedTx{Hash: "ABCDEF", Blob: "B", LastLedgerSequence: 120})
	require.Error(t, err)
	assert.True(t, IsSubmissionError(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestStatus(t *testing.T) {
	node, client := newFakeNode(t)
	scriptLedger(node, 0, TesSUCCESS, 110)

	st, err := client.Status(context.Background(), "abcdef", 120)
	require.NoError(t, err)
	assert.False(t, st.Found)
	assert.False(t, st.Final())
	assert.Equal(t, "ABCDEF", st.Hash)

	node.on("ledger", func(map[string]any) any {
		return success(map[string]any{"ledger_index": 125, "validated": true})
	})
	st, err = client.Status(context.Background(), "abcdef", 120)
	require.NoError(t, err)
	assert.True(t, st.Expired)
	assert.True(t, st.Final())
}
