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

package referral_test

import (
	"testing"

	"code.stratumtrade.io/stratum/core/referral"
	"code.stratumtrade.io/stratum/logging"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestEngine(t *testing.T) *referral.Engine {
	t.Helper()
	return referral.New(logging.NewTestLogger(), referral.NewDefaultConfig())
}

func TestRegisterToken(t *testing.T) {
	e := getTestEngine(t)

	t.Run("token zero is reserved", func(t *testing.T) {
		err := e.RegisterToken(0, "alice", 0)
		assert.ErrorIs(t, errors.Cause(err), referral.ErrUnknownToken)
	})
	t.Run("registers and resolves an owner", func(t *testing.T) {
		require.NoError(t, e.RegisterToken(7, "alice", 0))
		assert.Equal(t, "alice", e.TokenOwner(7))
		assert.Equal(t, "", e.TokenOwner(8))
	})
	t.Run("a taken token cannot be reclaimed", func(t *testing.T) {
		err := e.RegisterToken(7, "bob", 0)
		assert.ErrorIs(t, errors.Cause(err), referral.ErrTokenAlreadyRegistered)
	})
	t.Run("the parent must exist", func(t *testing.T) {
		err := e.RegisterToken(9, "bob", 42)
		assert.ErrorIs(t, errors.Cause(err), referral.ErrUnknownToken)
		require.NoError(t, e.RegisterToken(9, "bob", 7))
	})
}

func TestBind(t *testing.T) {
	e := getTestEngine(t)
	require.NoError(t, e.RegisterToken(7, "alice", 0))
	require.NoError(t, e.RegisterToken(9, "bob", 7))

	t.Run("binding requires a registered token", func(t *testing.T) {
		err := e.Bind("carol", 42)
		assert.ErrorIs(t, errors.Cause(err), referral.ErrUnknownToken)
	})
	t.Run("resolves the token chain for a bound account", func(t *testing.T) {
		require.NoError(t, e.Bind("carol", 9))
		token, parent := e.ReferralTokens("carol")
		assert.Equal(t, uint64(9), token)
		assert.Equal(t, uint64(7), parent)
	})
	t.Run("an unreferred account resolves to zero", func(t *testing.T) {
		token, parent := e.ReferralTokens("dave")
		assert.Zero(t, token)
		assert.Zero(t, parent)
	})
	t.Run("a binding is permanent", func(t *testing.T) {
		err := e.Bind("carol", 7)
		assert.ErrorIs(t, errors.Cause(err), referral.ErrTokenAlreadyBound)
	})
}
