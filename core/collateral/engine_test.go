// Copyright (C) 2023 Gobalsky Labs Limited
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package collateral_test

import (
	"testing"

	"code.stratumtrade.io/stratum/core/collateral"
	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *collateral.Engine {
	t.Helper()
	return collateral.New(logging.NewTestLogger(), collateral.NewDefaultConfig())
}

func TestCollateral(t *testing.T) {
	t.Run("deposit and balance", testDepositBalance)
	t.Run("debit validates the balance", testDebit)
	t.Run("withdraw", testWithdraw)
	t.Run("protocol fee pot", testProtocolFeePot)
	t.Run("referral fee pot", testReferralFeePot)
}

func testDepositBalance(t *testing.T) {
	e := testEngine(t)
	assert.True(t, e.Balance("alice").IsZero())

	e.Deposit("alice", num.NewUint(100))
	e.Deposit("alice", num.NewUint(50))
	assert.Equal(t, "150", e.Balance("alice").String())

	// the returned balance is a copy
	b := e.Balance("alice")
	b.Add(b, num.NewUint(1000))
	assert.Equal(t, "150", e.Balance("alice").String())
}

func testDebit(t *testing.T) {
	e := testEngine(t)
	e.Deposit("alice", num.NewUint(100))

	assert.True(t, e.CanDebit("alice", num.NewUint(100)))
	assert.False(t, e.CanDebit("alice", num.NewUint(101)))
	assert.False(t, e.CanDebit("bob", num.NewUint(1)))

	err := e.Debit("alice", num.NewUint(101))
	assert.ErrorIs(t, errors.Cause(err), types.ErrInsufficientBalance)
	assert.Equal(t, "100", e.Balance("alice").String())

	require.NoError(t, e.Debit("alice", num.NewUint(30)))
	assert.Equal(t, "70", e.Balance("alice").String())

	err = e.Debit("unknown", num.NewUint(1))
	assert.ErrorIs(t, errors.Cause(err), types.ErrInsufficientBalance)
}

func testWithdraw(t *testing.T) {
	e := testEngine(t)
	e.Deposit("alice", num.NewUint(100))
	require.NoError(t, e.Withdraw("alice", num.NewUint(100)))
	assert.True(t, e.Balance("alice").IsZero())
}

func testProtocolFeePot(t *testing.T) {
	e := testEngine(t)
	assert.True(t, e.ProtocolFee("eth-usd").IsZero())

	e.AddProtocolFee("eth-usd", num.NewUint(10))
	e.AddProtocolFee("eth-usd", num.NewUint(5))
	e.AddProtocolFee("btc-usd", num.NewUint(7))
	assert.Equal(t, "15", e.ProtocolFee("eth-usd").String())

	out := e.CollectProtocolFee("eth-usd", "treasury")
	assert.Equal(t, "15", out.String())
	assert.True(t, e.ProtocolFee("eth-usd").IsZero())
	assert.Equal(t, "15", e.Balance("treasury").String())
	assert.Equal(t, "7", e.ProtocolFee("btc-usd").String())

	// draining an empty pot is a no-op
	assert.True(t, e.CollectProtocolFee("eth-usd", "treasury").IsZero())
	assert.Equal(t, "15", e.Balance("treasury").String())
}

func testReferralFeePot(t *testing.T) {
	e := testEngine(t)
	e.AddReferralFee(42, num.NewUint(9))
	e.AddReferralFee(42, num.NewUint(1))
	assert.Equal(t, "10", e.ReferralFee(42).String())

	out := e.CollectReferralFee(42, "referrer")
	assert.Equal(t, "10", out.String())
	assert.True(t, e.ReferralFee(42).IsZero())
	assert.Equal(t, "10", e.Balance("referrer").String())

	assert.True(t, e.CollectReferralFee(7, "referrer").IsZero())
}
