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

package collateral

import (
	"github.com/pkg/errors"

	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"
)

// Engine is the prepaid escrow ledger. The router moves settlement tokens
// into custody before calling the market engine, the engine then validates
// every margin or deposit delta against the caller's escrowed balance
// instead of inferring token balance deltas. Payouts credit the receiver's
// escrow balance, withdrawal back to tokens is the router's job.
type Engine struct {
	Config
	log *logging.Logger

	balances     map[string]*num.Uint
	protocolFees map[string]*num.Uint
	referralFees map[uint64]*num.Uint
}

// New instantiates the escrow ledger.
func New(log *logging.Logger, config Config) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:       config,
		log:          log,
		balances:     map[string]*num.Uint{},
		protocolFees: map[string]*num.Uint{},
		referralFees: map[uint64]*num.Uint{},
	}
}

// Deposit credits an account's escrow balance, called by the router once
// tokens are in custody.
func (e *Engine) Deposit(account string, amount *num.Uint) {
	e.credit(account, amount)
	if e.log.GetLevel() == logging.DebugLevel {
		e.log.Debug("escrow deposit",
			logging.PartyID(account),
			logging.String("amount", amount.String()))
	}
}

// Withdraw debits an account's escrow balance for release back to tokens.
func (e *Engine) Withdraw(account string, amount *num.Uint) error {
	return e.Debit(account, amount)
}

// Balance returns a copy of an account's escrow balance.
func (e *Engine) Balance(account string) *num.Uint {
	if b, ok := e.balances[account]; ok {
		return b.Clone()
	}
	return num.UintZero()
}

// CanDebit reports whether the account holds at least amount, used by
// entry points to front-load the balance validation before any mutation.
func (e *Engine) CanDebit(account string, amount *num.Uint) bool {
	b, ok := e.balances[account]
	return ok && b.GTE(amount)
}

// Debit removes amount from the account's escrow balance.
func (e *Engine) Debit(account string, amount *num.Uint) error {
	b, ok := e.balances[account]
	if !ok || b.LT(amount) {
		return errors.Wrapf(types.ErrInsufficientBalance,
			"account %s balance %s, want %s", account, e.Balance(account), amount)
	}
	b.Sub(b, amount)
	return nil
}

// Credit adds amount to the account's escrow balance.
func (e *Engine) Credit(account string, amount *num.Uint) {
	e.credit(account, amount)
}

func (e *Engine) credit(account string, amount *num.Uint) {
	if amount.IsZero() {
		return
	}
	b, ok := e.balances[account]
	if !ok {
		b = num.UintZero()
		e.balances[account] = b
	}
	b.Add(b, amount)
}

// AddProtocolFee accumulates protocol fee for a market.
func (e *Engine) AddProtocolFee(marketID string, amount *num.Uint) {
	if amount.IsZero() {
		return
	}
	pot, ok := e.protocolFees[marketID]
	if !ok {
		pot = num.UintZero()
		e.protocolFees[marketID] = pot
	}
	pot.Add(pot, amount)
}

// ProtocolFee returns a copy of the accumulated protocol fee pot for a
// market.
func (e *Engine) ProtocolFee(marketID string) *num.Uint {
	if pot, ok := e.protocolFees[marketID]; ok {
		return pot.Clone()
	}
	return num.UintZero()
}

// CollectProtocolFee drains a market's protocol fee pot into the
// receiver's escrow balance and returns the amount moved.
func (e *Engine) CollectProtocolFee(marketID, receiver string) *num.Uint {
	pot, ok := e.protocolFees[marketID]
	if !ok || pot.IsZero() {
		return num.UintZero()
	}
	out := pot.Clone()
	delete(e.protocolFees, marketID)
	e.credit(receiver, out)
	return out
}

// AddReferralFee accumulates referral fee for a referral token.
func (e *Engine) AddReferralFee(token uint64, amount *num.Uint) {
	if amount.IsZero() {
		return
	}
	pot, ok := e.referralFees[token]
	if !ok {
		pot = num.UintZero()
		e.referralFees[token] = pot
	}
	pot.Add(pot, amount)
}

// ReferralFee returns a copy of the accumulated fee pot for a referral
// token.
func (e *Engine) ReferralFee(token uint64) *num.Uint {
	if pot, ok := e.referralFees[token]; ok {
		return pot.Clone()
	}
	return num.UintZero()
}

// CollectReferralFee drains a referral token's fee pot into the
// receiver's escrow balance and returns the amount moved.
func (e *Engine) CollectReferralFee(token uint64, receiver string) *num.Uint {
	pot, ok := e.referralFees[token]
	if !ok || pot.IsZero() {
		return num.UintZero()
	}
	out := pot.Clone()
	delete(e.referralFees, token)
	e.credit(receiver, out)
	return out
}
