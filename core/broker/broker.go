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

package broker

import (
	"sync"

	"code.stratumtrade.io/stratum/core/events"
	"code.stratumtrade.io/stratum/logging"
)

// Subscriber receives events from the broker. Types returns the event
// types the subscriber wants, a slice containing events.All subscribes to
// everything.
type Subscriber interface {
	Push(evts ...events.Event)
	Types() []events.Type
}

// Broker is the in-process event bus: engines send audit trail events
// here, subscribers (indexers, API streams, test recorders) fan them out.
// Delivery is synchronous, subscribers must not call back into the market
// engine.
type Broker struct {
	Config
	log *logging.Logger

	mu     sync.Mutex
	subs   map[int]Subscriber
	tSubs  map[events.Type]map[int]struct{}
	allSubs map[int]struct{}
	nextID int
}

// New instantiates a new broker.
func New(log *logging.Logger, config Config) *Broker {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Broker{
		Config:  config,
		log:     log,
		subs:    map[int]Subscriber{},
		tSubs:   map[events.Type]map[int]struct{}{},
		allSubs: map[int]struct{}{},
	}
}

// Subscribe registers a subscriber and returns the key to unsubscribe
// with.
func (b *Broker) Subscribe(s Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[id] = s
	for _, t := range s.Types() {
		if t == events.All {
			b.allSubs[id] = struct{}{}
			continue
		}
		if _, ok := b.tSubs[t]; !ok {
			b.tSubs[t] = map[int]struct{}{}
		}
		b.tSubs[t][id] = struct{}{}
	}
	return id
}

// Unsubscribe removes a subscriber, a no-op for unknown keys.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	delete(b.allSubs, id)
	for _, t := range s.Types() {
		if sub, ok := b.tSubs[t]; ok {
			delete(sub, id)
		}
	}
}

// Send delivers a single event to all interested subscribers.
func (b *Broker) Send(event events.Event) {
	b.mu.Lock()
	targets := b.targets(event.Type())
	b.mu.Unlock()

	for _, s := range targets {
		s.Push(event)
	}
}

// SendBatch delivers a batch of events, preserving order per subscriber.
func (b *Broker) SendBatch(evts []events.Event) {
	for _, e := range evts {
		b.Send(e)
	}
}

func (b *Broker) targets(t events.Type) []Subscriber {
	out := make([]Subscriber, 0, len(b.allSubs)+len(b.tSubs[t]))
	for id := range b.allSubs {
		out = append(out, b.subs[id])
	}
	for id := range b.tSubs[t] {
		out = append(out, b.subs[id])
	}
	return out
}
