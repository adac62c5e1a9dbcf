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

package stratumtime

import (
	"context"
	"sync"
	"time"
)

// Svc is the engine clock. Until SetTimeNow is called it follows the
// wall clock; once set it only advances through SetTimeNow, which is
// how a sequenced deployment drives deterministic time.
type Svc struct {
	mu        sync.RWMutex
	now       time.Time
	listeners []func(context.Context, time.Time)
}

// New instantiates the time service on the wall clock.
func New() *Svc {
	return &Svc{}
}

// GetTimeNow returns the current engine time in UTC.
func (s *Svc) GetTimeNow() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

// SetTimeNow advances the engine clock and notifies the tick listeners.
// Moving backwards is ignored.
func (s *Svc) SetTimeNow(ctx context.Context, t time.Time) {
	t = t.UTC()
	s.mu.Lock()
	if !s.now.IsZero() && t.Before(s.now) {
		s.mu.Unlock()
		return
	}
	s.now = t
	listeners := make([]func(context.Context, time.Time), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, f := range listeners {
		f(ctx, t)
	}
}

// NotifyOnTick registers a callback run on every SetTimeNow.
func (s *Svc) NotifyOnTick(f func(context.Context, time.Time)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, f)
	s.mu.Unlock()
}
