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

package source

import (
	"net"
)

// Target selects the entries touched by PLAY and PAUSE: a single stream
// or every stream the client has set up.
type Target struct {
	index int
	all   bool
}

// Single targets one stream index.
func Single(index int) Target {
	return Target{index: index}
}

// All targets every stream of the client.
func All() Target {
	return Target{all: true}
}

// Index returns the stream index and false for All.
func (t Target) Index() (int, bool) {
	return t.index, !t.all
}

// AddressEntry is a client's UDP destination for one stream.
type AddressEntry struct {
	Address string
	Port    int
	Playing bool

	udpAddr *net.UDPAddr
}

type addressKey struct {
	clientID string
	index    int
}

// addressTable is keyed by (client, stream). Callers hold the source lock.
type addressTable map[addressKey]*AddressEntry

func (t addressTable) set(clientID string, index int, e *AddressEntry) {
	t[addressKey{clientID, index}] = e
}

func (t addressTable) get(clientID string, index int) (*AddressEntry, bool) {
	e, ok := t[addressKey{clientID, index}]
	return e, ok
}

func (t addressTable) hasClient(clientID string) bool {
	for k := range t {
		if k.clientID == clientID {
			return true
		}
	}
	return false
}

// setPlaying updates the targeted entries of a client. A Single target
// with no entry for that stream is left untouched.
func (t addressTable) setPlaying(clientID string, target Target, playing bool) {
	if index, ok := target.Index(); ok {
		if e, ok := t.get(clientID, index); ok {
			e.Playing = playing
		}
		return
	}
	for k, e := range t {
		if k.clientID == clientID {
			e.Playing = playing
		}
	}
}

// destinations returns the playing entries of a stream.
func (t addressTable) destinations(index int) []*net.UDPAddr {
	var out []*net.UDPAddr
	for k, e := range t {
		if k.index == index && e.Playing {
			out = append(out, e.udpAddr)
		}
	}
	return out
}

func (t addressTable) clients() int {
	seen := make(map[string]struct{})
	for k := range t {
		seen[k.clientID] = struct{}{}
	}
	return len(seen)
}
