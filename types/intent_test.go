package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validListing() Listing {
	return Listing{
		Name:     "Tomatoes",
		Price:    big.NewInt(10),
		Unit:     "kg",
		Quantity: big.NewInt(1),
		Stock:    big.NewInt(50),
	}
}

func TestIntentValidateBasic(t *testing.T) {
	recipient := common.HexToAddress("0x87D58253DE27A6247Aa76223B773D326AC77Ea2c")

	testCases := map[string]struct {
		intent    Intent
		expectErr bool
	}{
		"order":                {NewOrderIntent(big.NewInt(7), big.NewInt(2)), false},
		"order zero quantity":  {NewOrderIntent(big.NewInt(7), big.NewInt(0)), true},
		"order missing id":     {NewOrderIntent(nil, big.NewInt(1)), true},
		"bid":                  {NewBidIntent(big.NewInt(7), big.NewInt(100)), false},
		"bid negative":         {NewBidIntent(big.NewInt(7), big.NewInt(-1)), true},
		"accept bid":           {NewAcceptBidIntent(big.NewInt(3)), false},
		"complete bid missing": {NewCompleteBidIntent(nil), true},
		"create product":       {NewCreateProductIntent(validListing()), false},
		"growing product":      {NewCreateProductIntent(func() Listing { l := validListing(); l.Stock = big.NewInt(0); return l }()), false},
		"short name":           {NewCreateProductIntent(func() Listing { l := validListing(); l.Name = "ab"; return l }()), true},
		"no unit":              {NewCreateProductIntent(func() Listing { l := validListing(); l.Unit = " "; return l }()), true},
		"negative stock":       {NewCreateProductIntent(func() Listing { l := validListing(); l.Stock = big.NewInt(-1); return l }()), true},
		"zero fee":             {NewSetFeeIntent(big.NewInt(0)), false},
		"negative fee":         {NewSetFeeIntent(big.NewInt(-5)), true},
		"transfer":             {NewTransferIntent(recipient, big.NewInt(1)), false},
		"transfer zero addr":   {NewTransferIntent(common.Address{}, big.NewInt(1)), true},
		"profile":              {NewSetProfileIntent(Profile{Name: "Ana", ContactInfo: "ana@farm"}), false},
		"profile without name": {NewSetProfileIntent(Profile{}), true},
		"unknown":              {Intent{Kind: "swap"}, true},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			err := tc.intent.ValidateBasic()
			if tc.expectErr {
				require.ErrorIs(t, err, ErrInvalidIntent)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIntentIDsAreUnique(t *testing.T) {
	a := NewBidIntent(big.NewInt(1), big.NewInt(1))
	b := NewBidIntent(big.NewInt(1), big.NewInt(1))
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNeedsAllowance(t *testing.T) {
	assert.True(t, IntentOrder.NeedsAllowance())
	assert.True(t, IntentBid.NeedsAllowance())
	assert.False(t, IntentAcceptBid.NeedsAllowance())
	assert.False(t, IntentTransfer.NeedsAllowance())
}

func TestProductStockAndCost(t *testing.T) {
	p := Product{Price: big.NewInt(12), Stock: big.NewInt(3)}
	assert.True(t, p.InStock(big.NewInt(3)))
	assert.False(t, p.InStock(big.NewInt(4)))
	assert.Equal(t, int64(36), p.Cost(big.NewInt(3)).Int64())

	growing := Product{Price: big.NewInt(12), Stock: big.NewInt(0)}
	assert.False(t, growing.InStock(big.NewInt(1)))
}
