package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavTo/Blockchain/internal/funds"
	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/metrics"
	"github.com/XavTo/Blockchain/internal/nft"
	"github.com/XavTo/Blockchain/internal/offer"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
	"github.com/XavTo/Blockchain/internal/wallet"
)

const (
	testSecret  = "0123456789abcdef0123456789abcdef"
	buyerAddr   = "rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe"
	sellerAddr  = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	testTokenID = "000800006203F49C21D5D6E022CB16DE3538F248662FC73C00000001"
)

type fakeWallets map[int64]*wallet.Credentials

func (f fakeWallets) Resolve(_ context.Context, id int64) (*wallet.Credentials, error) {
	if c, ok := f[id]; ok {
		return c, nil
	}
	return nil, errors.Wrapf(wallet.ErrWalletNotFound, "account %d", id)
}

func (f fakeWallets) Provision(_ context.Context, id int64) (*wallet.Credentials, error) {
	if _, ok := f[id]; ok {
		return nil, wallet.ErrWalletExists
	}
	c := wallet.NewCredentials(id, buyerAddr, "ED02", "k")
	f[id] = c
	return c, nil
}

type fakeBalances struct{}

func (fakeBalances) GetBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(25000000), nil
}

type fakeMinter struct{ res *nft.MintResult }

func (f fakeMinter) Mint(context.Context, ledger.Signer, string) *nft.MintResult { return f.res }

type fakeOffers struct {
	err     error
	receipt *offer.Receipt
	got     offer.CreateRequest
	calls   []string
}

func (f *fakeOffers) Create(_ context.Context, _ *wallet.Credentials, req offer.CreateRequest) (*offer.Receipt, error) {
	f.got = req
	f.calls = append(f.calls, "create")
	return f.receipt, f.err
}

func (f *fakeOffers) Transfer(_ context.Context, _ *wallet.Credentials, id, dest string) (*offer.Receipt, error) {
	f.got = offer.CreateRequest{NFTokenID: id, Destination: dest}
	f.calls = append(f.calls, "transfer")
	return f.receipt, f.err
}

func (f *fakeOffers) Accept(context.Context, *wallet.Credentials, string) (*offer.Receipt, error) {
	f.calls = append(f.calls, "accept")
	return f.receipt, f.err
}

func (f *fakeOffers) Cancel(context.Context, *wallet.Credentials, string) (*offer.Receipt, error) {
	f.calls = append(f.calls, "cancel")
	return f.receipt, f.err
}

type fakeListings struct{}

func (fakeListings) ListForUser(context.Context, *wallet.Credentials) ([]relationaldb.SellOffer, error) {
	return []relationaldb.SellOffer{{OfferIndex: "GIFT", Amount: "0", Destination: buyerAddr}}, nil
}

func (fakeListings) ListAll(context.Context) ([]relationaldb.SellOffer, error) {
	return []relationaldb.SellOffer{}, nil
}

func (fakeListings) ResolveTokens(_ context.Context, ids []string, _ []int64) ([]nft.TokenRecord, error) {
	return []nft.TokenRecord{{NFTokenID: strings.ToUpper(ids[0]), Name: "Cat"}}, nil
}

func (fakeListings) Stats(context.Context) (*offer.Stats, error) {
	return &offer.Stats{ForSale: 3, Exchanged: 2, Cancelled: 1}, nil
}

type testServer struct {
	handler http.Handler
	offers  *fakeOffers
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T, mint *nft.MintResult) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	offers := &fakeOffers{receipt: &offer.Receipt{OfferIndex: "OFFERIDX1", TxHash: "HASH1"}}
	wallets := fakeWallets{1: wallet.NewCredentials(1, sellerAddr, "ED01", "k")}

	cfg := DefaultConfig()
	cfg.Auth.Secret = testSecret
	cfg.RateLimit = 0
	srv, err := NewServer(cfg, Services{
		Wallets:     wallets,
		Provisioner: wallets,
		Balances:    fakeBalances{},
		Minter:      fakeMinter{res: mint},
		Offers:      offers,
		Listings:    fakeListings{},
	}, WithMetrics(m, reg))
	require.NoError(t, err)
	return &testServer{handler: srv.Handler(), offers: offers, reg: reg}
}

func (s *testServer) do(t *testing.T, method, path string, account int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if account > 0 {
		token, err := IssueToken(testSecret, "", account, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/dashboard", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeUnauthorized, decodeError(t, w).Code)

	expired, err := IssueToken(testSecret, "", 1, -time.Minute)
	require.NoError(t, err)
	forged, err := IssueToken("another-secret-of-enough-length", "", 1, time.Minute)
	require.NoError(t, err)

	for _, token := range []string{expired, forged, "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/dashboard", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"assets_for_sale":3,"assets_exchanged":2,"offers_cancelled":1}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestClaimsAccountID(t *testing.T) {
	c := &Claims{UserID: 42}
	c.Subject = "auth0|abc"
	id, err := c.AccountID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	c = &Claims{}
	c.Subject = "7"
	id, err = c.AccountID()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = (&Claims{}).AccountID()
	assert.Error(t, err)
}

func TestWalletRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/wallet", 2, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeWalletNotFound, decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/api/wallet", 2, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "private")

	w = s.do(t, http.MethodPost, "/api/wallet", 2, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/wallet", 2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"address":"`+buyerAddr+`","public_key":"ED02","balance":"25000000"}`, w.Body.String())
}

func TestMint(t *testing.T) {
	ok := newTestServer(t, &nft.MintResult{Hash: "MINTHASH", NFTokenID: testTokenID, EngineResult: ledger.TesSUCCESS})
	w := ok.do(t, http.MethodPost, "/api/mint", 1, map[string]string{"URI": "ipfs://cat"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"transaction_hash":"MINTHASH","nftoken_id":"`+testTokenID+`"}`, w.Body.String())

	w = ok.do(t, http.MethodPost, "/api/mint", 1, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	failed := newTestServer(t, &nft.MintResult{Hash: "MINTHASH", EngineResult: "tecNO_PERMISSION", Failure: "no permission"})
	w = failed.do(t, http.MethodPost, "/api/mint", 1, map[string]string{"uri": "ipfs://cat"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, CodeMintFailed, resp.Code)
	assert.Equal(t, "MINTHASH", resp.TransactionHash)
}

func TestCreateSellOffer(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/create_sell_offer", 1, map[string]any{"nft_id": testTokenID, "amount": 1000000})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"offer_index":"OFFERIDX1","transaction_hash":"HASH1"}`, w.Body.String())
	assert.Equal(t, offer.CreateRequest{NFTokenID: testTokenID, Amount: "1000000"}, s.offers.got)

	w = s.do(t, http.MethodPost, "/api/create_sell_offer", 1, map[string]any{"nftoken_id": testTokenID, "amount": "5", "destination": buyerAddr})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, buyerAddr, s.offers.got.Destination)
	assert.Equal(t, "5", s.offers.got.Amount)

	w = s.do(t, http.MethodPost, "/api/create_sell_offer", 1, map[string]any{"nft_id": testTokenID, "amount": "5", "destination": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, s.offers.calls, 2)
}

func TestTradeNFT(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/trade_nft", 1, map[string]string{"nft_id": testTokenID, "to_address": "bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/trade_nft", 1, map[string]string{"nft_id": testTokenID, "to_address": buyerAddr})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"transfer"}, s.offers.calls)
	assert.Equal(t, buyerAddr, s.offers.got.Destination)
}

func TestOfferErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", errors.Wrap(offer.ErrOfferNotFoundOrProcessed, "offer X"), http.StatusNotFound, CodeOfferNotFound},
		{"insufficient funds", errors.Wrap(funds.ErrInsufficientFunds, "balance 500"), http.StatusPaymentRequired, CodeInsufficientFunds},
		{"in flight", errors.Wrap(offer.ErrOperationInFlight, "offer:X"), http.StatusConflict, CodeInFlight},
		{"invalid", errors.Wrap(offer.ErrInvalidRequest, "own offer"), http.StatusBadRequest, CodeInvalidRequest},
		{"validated failure", &ledger.SubmissionError{Hash: "H", EngineResult: ledger.TecNO_PERMISSION}, http.StatusBadGateway, CodeLedger},
		{"account lookup", &funds.LookupError{Address: buyerAddr, Err: errors.New("down")}, http.StatusBadGateway, CodeLedger},
		{"extraction", errors.Wrap(offer.ErrIdentifierExtraction, "no node"), http.StatusInternalServerError, CodeExtraction},
		{"unknown outcome", &offer.UnknownOutcomeError{Hash: "H", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, CodeOutcomeUnknown},
		{"deadline", errors.Wrap(context.DeadlineExceeded, "ledger"), http.StatusGatewayTimeout, CodeTimeout},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.offers.err = tt.err

			for _, path := range []string{"/api/accept_sell_offer", "/api/cancel_sell_offer"} {
				w := s.do(t, http.MethodPost, path, 1, map[string]string{"offer_index": "OFFERIDX1"})
				assert.Equal(t, tt.status, w.Code, path)
				resp := decodeError(t, w)
				assert.Equal(t, tt.code, resp.Code)
				if tt.code == CodeInternal {
					assert.Equal(t, "internal error", resp.Error)
				}
			}
		})
	}
}

func TestSettleRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/accept_sell_offer", 1, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/accept_sell_offer", 1, map[string]string{"offer_index": "OFFERIDX1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"transaction_hash":"HASH1"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/cancel_sell_offer", 1, map[string]string{"offer_index": "OFFERIDX1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"accept", "cancel"}, s.offers.calls)
}

func TestListingRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/sell_offers_for_me", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"offer_index":"GIFT"`)

	w = s.do(t, http.MethodGet, "/api/all_sell_offers", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	w = s.do(t, http.MethodPost, "/api/get_nfts", 1, map[string]any{"nftoken_ids": []string{"abc"}, "sellers": []int64{1}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"nftoken_id":"ABC"`)

	w = s.do(t, http.MethodPost, "/api/get_nfts", 1, map[string]any{"sellers": []int64{1}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/health", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)

	s.do(t, http.MethodGet, "/api/dashboard", 1, nil)
	w = s.do(t, http.MethodGet, "/metrics", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `nftmarket_http_requests_total{code="200",method="GET",route="/api/dashboard"} 1`)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Secret = testSecret
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	srv, err := NewServer(cfg, Services{Listings: fakeListings{}}, WithMetrics(nil, prometheus.NewRegistry()))
	require.NoError(t, err)
	s := &testServer{handler: srv.Handler()}

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/dashboard", 1, nil).Code)
	w := s.do(t, http.MethodGet, "/api/dashboard", 1, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "secret is required")
	cfg.Auth.Secret = testSecret
	assert.NoError(t, cfg.Validate())
	cfg.RateLimit = -1
	assert.Error(t, cfg.Validate())
}
