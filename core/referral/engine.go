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

package referral

import (
	"sync"

	"github.com/pkg/errors"

	"code.stratumtrade.io/stratum/logging"
)

var (
	// ErrTokenAlreadyBound is returned when an account already carries a
	// referral token.
	ErrTokenAlreadyBound = errors.New("account already bound to a referral token")
	// ErrUnknownToken is returned when binding to a token that was never
	// registered.
	ErrUnknownToken = errors.New("unknown referral token")
	// ErrTokenAlreadyRegistered is returned when registering a taken token.
	ErrTokenAlreadyRegistered = errors.New("referral token already registered")
)

type tokenInfo struct {
	owner  string
	parent uint64
}

// Engine is the referral registry: referrers register numbered tokens,
// accounts bind to one token each, and trades by bound accounts earn
// the token owner a fee share. Tokens may themselves carry a parent
// token forming a two level chain.
type Engine struct {
	Config
	log *logging.Logger

	mu sync.RWMutex
	// token id to owner and optional parent token
	tokens map[uint64]tokenInfo
	// account to the token it is bound to
	bindings map[string]uint64
}

// New instantiates the referral registry.
func New(log *logging.Logger, config Config) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:   config,
		log:      log,
		tokens:   map[uint64]tokenInfo{},
		bindings: map[string]uint64{},
	}
}

// RegisterToken claims a token id for an owner, optionally chained to a
// parent token. Token id zero is reserved to mean "not referred".
func (e *Engine) RegisterToken(token uint64, owner string, parent uint64) error {
	if token == 0 {
		return errors.Wrap(ErrUnknownToken, "token id zero is reserved")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tokens[token]; ok {
		return errors.Wrapf(ErrTokenAlreadyRegistered, "token %d", token)
	}
	if parent != 0 {
		if _, ok := e.tokens[parent]; !ok {
			return errors.Wrapf(ErrUnknownToken, "parent token %d", parent)
		}
	}
	e.tokens[token] = tokenInfo{owner: owner, parent: parent}
	e.log.Debug("referral token registered",
		logging.Uint64("token", token),
		logging.String("owner", owner))
	return nil
}

// Bind attaches an account to a registered token. A binding is
// permanent, rebinding is rejected.
func (e *Engine) Bind(account string, token uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.bindings[account]; ok {
		return errors.Wrapf(ErrTokenAlreadyBound, "account %s", account)
	}
	if _, ok := e.tokens[token]; !ok {
		return errors.Wrapf(ErrUnknownToken, "token %d", token)
	}
	e.bindings[account] = token
	return nil
}

// ReferralTokens implements the market engine's referral lookup, both
// zero when the account is not referred.
func (e *Engine) ReferralTokens(account string) (uint64, uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	token, ok := e.bindings[account]
	if !ok {
		return 0, 0
	}
	return token, e.tokens[token].parent
}

// TokenOwner resolves the collection account of a token, empty when the
// token does not exist.
func (e *Engine) TokenOwner(token uint64) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tokens[token].owner
}
