/*
 * Copyright (c) 2022 Cisco and/or its affiliates.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at:
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package media

import (
	"sync"
)

// Feed is an in-process Stream: packets handed to Publish are delivered
// synchronously to every subscriber.
type Feed struct {
	kind   Kind
	params RTPParameters

	mu     sync.RWMutex
	subs   map[uint64]*feedSubscription
	nextID uint64
	closed bool
}

type feedSubscription struct {
	feed     *Feed
	id       uint64
	onPacket PacketHandler
	onClose  CloseHandler
}

func NewFeed(kind Kind, params RTPParameters) *Feed {
	return &Feed{
		kind:   kind,
		params: params,
		subs:   make(map[uint64]*feedSubscription),
	}
}

func (f *Feed) Kind() Kind {
	return f.kind
}

func (f *Feed) Parameters() RTPParameters {
	return f.params
}

// Subscribe registers the handlers. Subscribing to a closed feed calls
// onClose right away.
func (f *Feed) Subscribe(onPacket PacketHandler, onClose CloseHandler) Subscription {
	f.mu.Lock()
	sub := &feedSubscription{
		feed:     f,
		id:       f.nextID,
		onPacket: onPacket,
		onClose:  onClose,
	}
	f.nextID++
	closed := f.closed
	if !closed {
		f.subs[sub.id] = sub
	}
	f.mu.Unlock()

	if closed && onClose != nil {
		onClose()
	}
	return sub
}

// Publish delivers pkt to the current subscribers. Handlers run outside
// the feed lock so they may cancel their own subscription.
func (f *Feed) Publish(pkt []byte) {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return
	}
	handlers := make([]PacketHandler, 0, len(f.subs))
	for _, sub := range f.subs {
		if sub.onPacket != nil {
			handlers = append(handlers, sub.onPacket)
		}
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		h(pkt)
	}
}

// Close ends the feed and notifies every subscriber once.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := f.subs
	f.subs = make(map[uint64]*feedSubscription)
	f.mu.Unlock()

	for _, sub := range subs {
		if sub.onClose != nil {
			sub.onClose()
		}
	}
}

func (f *Feed) Closed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

func (s *feedSubscription) Cancel() {
	s.feed.mu.Lock()
	delete(s.feed.subs, s.id)
	s.feed.mu.Unlock()
}
