package funds

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/ledger/mocks"
)

func accountWith(balance string) *ledger.AccountInfo {
	return &ledger.AccountInfo{AccountData: ledger.AccountRoot{Account: "rBuyer", Balance: balance}}
}

func TestEnsureCanPay(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		price   int64
		wantErr error
	}{
		{"balance below price plus buffer", "500", 400, ErrInsufficientFunds},
		{"exactly price plus buffer", "1400", 400, nil},
		{"comfortable balance", "25000000", 1000000, nil},
		{"one drop short", "1000999", 1000000, ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			api := mocks.NewMockAPI(ctrl)
			api.EXPECT().AccountInfo(gomock.Any(), "rBuyer").Return(accountWith(tt.balance), nil)

			err := NewChecker(api, 0, nil).EnsureCanPay(context.Background(), "rBuyer", decimal.NewFromInt(tt.price))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestGetBalanceLookupFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAPI(ctrl)
	rpcErr := &ledger.RPCError{Name: ledger.ErrNameActNotFound, Method: "account_info"}
	api.EXPECT().AccountInfo(gomock.Any(), "rGone").Return(nil, rpcErr)

	_, err := NewChecker(api, 0, nil).GetBalance(context.Background(), "rGone")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccountLookup))
	assert.True(t, ledger.IsRPCError(err, ledger.ErrNameActNotFound))
}

func TestCustomBuffer(t *testing.T) {
	c := NewChecker(nil, 10, nil)
	assert.True(t, c.CanPay(decimal.NewFromInt(510), decimal.NewFromInt(500)))
	assert.False(t, c.CanPay(decimal.NewFromInt(509), decimal.NewFromInt(500)))
}

func TestParseDrops(t *testing.T) {
	for _, ok := range []string{"0", "1000000", "18446744073709551615"} {
		_, err := ParseDrops(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "-1", "1.5", "ten"} {
		_, err := ParseDrops(bad)
		assert.Error(t, err, bad)
	}
}
