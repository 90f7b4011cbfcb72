package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/XavTo/Blockchain/internal/offer"
	"github.com/XavTo/Blockchain/internal/wallet"
)

// WalletResponse describes the caller's wallet. The private key is never
// returned.
type WalletResponse struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
	Balance   string `json:"balance,omitempty"`
}

// MintRequest is the body of POST /api/mint
type MintRequest struct {
	URI string `json:"uri"`
}

// MintResponse is returned by a successful mint
type MintResponse struct {
	TransactionHash string `json:"transaction_hash"`
	NFTokenID       string `json:"nftoken_id"`
}

// Drops is an amount in drops sent as a JSON string or integer
type Drops string

// UnmarshalJSON accepts "10" and 10
func (d *Drops) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Drops(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Errorf("amount must be a string or an integer, got %s", data)
	}
	*d = Drops(n.String())
	return nil
}

// CreateSellOfferRequest is the body of POST /api/create_sell_offer. The
// token may be given as nft_id or nftoken_id.
type CreateSellOfferRequest struct {
	NFTID       string `json:"nft_id"`
	NFTokenID   string `json:"nftoken_id"`
	Amount      Drops  `json:"amount"`
	Destination string `json:"destination"`
}

// OfferIndexRequest is the body of the accept and cancel routes
type OfferIndexRequest struct {
	OfferIndex string `json:"offer_index"`
}

// TradeRequest is the body of POST /api/trade_nft
type TradeRequest struct {
	NFTID     string `json:"nft_id"`
	ToAddress string `json:"to_address"`
}

// GetNFTsRequest is the body of POST /api/get_nfts
type GetNFTsRequest struct {
	NFTokenIDs []string `json:"nftoken_ids"`
	Sellers    []int64  `json:"sellers"`
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, errors.Wrap(errBadRequest, err.Error()))
		return false
	}
	return true
}

// caller resolves the authenticated account's wallet
func (s *Server) caller(c *gin.Context) (*wallet.Credentials, bool) {
	creds, err := s.svc.Wallets.Resolve(c.Request.Context(), accountID(c))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return creds, true
}

func (s *Server) health(c *gin.Context) {
	if s.svc.Health != nil {
		if err := s.svc.Health.HealthCheck(c.Request.Context()); err != nil {
			requestLogger(c).Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) provisionWallet(c *gin.Context) {
	creds, err := s.svc.Provisioner.Provision(c.Request.Context(), accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, WalletResponse{Address: creds.Address, PublicKey: creds.PublicKey})
}

func (s *Server) getWallet(c *gin.Context) {
	creds, ok := s.caller(c)
	if !ok {
		return
	}
	balance, err := s.svc.Balances.GetBalance(c.Request.Context(), creds.Address)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, WalletResponse{Address: creds.Address, PublicKey: creds.PublicKey, Balance: balance.String()})
}

func (s *Server) mint(c *gin.Context) {
	var req MintRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.URI) == "" {
		fail(c, errors.Wrap(errBadRequest, "uri is required"))
		return
	}

	creds, ok := s.caller(c)
	if !ok {
		return
	}
	signer, err := creds.Signer()
	if err != nil {
		fail(c, err)
		return
	}

	res := s.svc.Minter.Mint(c.Request.Context(), signer, req.URI)
	if res.Failed() {
		requestLogger(c).Info("mint failed", zap.String("hash", res.Hash), zap.String("failure", res.Failure))
		c.AbortWithStatusJSON(http.StatusBadGateway, ErrorResponse{
			Error:           res.Failure,
			Code:            CodeMintFailed,
			TransactionHash: res.Hash,
			EngineResult:    string(res.EngineResult),
		})
		return
	}
	c.JSON(http.StatusOK, MintResponse{TransactionHash: res.Hash, NFTokenID: res.NFTokenID})
}

func (s *Server) createSellOffer(c *gin.Context) {
	var req CreateSellOfferRequest
	if !bind(c, &req) {
		return
	}
	tokenID := req.NFTokenID
	if tokenID == "" {
		tokenID = req.NFTID
	}
	if req.Destination != "" && !wallet.IsValidAddress(req.Destination) {
		fail(c, errors.Wrapf(errBadRequest, "invalid destination %q", req.Destination))
		return
	}

	creds, ok := s.caller(c)
	if !ok {
		return
	}
	receipt, err := s.svc.Offers.Create(c.Request.Context(), creds, offer.CreateRequest{
		NFTokenID:   tokenID,
		Amount:      string(req.Amount),
		Destination: req.Destination,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) acceptSellOffer(c *gin.Context) {
	s.settleOffer(c, s.svc.Offers.Accept)
}

func (s *Server) cancelSellOffer(c *gin.Context) {
	s.settleOffer(c, s.svc.Offers.Cancel)
}

type settleFunc func(ctx context.Context, creds *wallet.Credentials, offerIndex string) (*offer.Receipt, error)

func (s *Server) settleOffer(c *gin.Context, op settleFunc) {
	var req OfferIndexRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.OfferIndex) == "" {
		fail(c, errors.Wrap(errBadRequest, "offer_index is required"))
		return
	}

	creds, ok := s.caller(c)
	if !ok {
		return
	}
	receipt, err := op(c.Request.Context(), creds, req.OfferIndex)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction_hash": receipt.TxHash})
}

func (s *Server) tradeNFT(c *gin.Context) {
	var req TradeRequest
	if !bind(c, &req) {
		return
	}
	if !wallet.IsValidAddress(req.ToAddress) {
		fail(c, errors.Wrapf(errBadRequest, "invalid to_address %q", req.ToAddress))
		return
	}

	creds, ok := s.caller(c)
	if !ok {
		return
	}
	receipt, err := s.svc.Offers.Transfer(c.Request.Context(), creds, req.NFTID, req.ToAddress)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) sellOffersForMe(c *gin.Context) {
	creds, ok := s.caller(c)
	if !ok {
		return
	}
	offers, err := s.svc.Listings.ListForUser(c.Request.Context(), creds)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, offers)
}

func (s *Server) allSellOffers(c *gin.Context) {
	offers, err := s.svc.Listings.ListAll(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, offers)
}

func (s *Server) getNFTs(c *gin.Context) {
	var req GetNFTsRequest
	if !bind(c, &req) {
		return
	}
	if len(req.NFTokenIDs) == 0 {
		c.JSON(http.StatusOK, []any{})
		return
	}

	tokens, err := s.svc.Listings.ResolveTokens(c.Request.Context(), req.NFTokenIDs, req.Sellers)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (s *Server) dashboard(c *gin.Context) {
	stats, err := s.svc.Listings.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
