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
	"sync"

	"github.com/media-streaming-mesh/msm-relay/internal/media"
)

// relay forwards the packets of one stream to the playing entries of
// that stream index. It owns one outbound UDP socket.
type relay struct {
	source *Source
	index  int
	stream media.Stream

	// mu is held for reading while sending and for writing while
	// closing, so no datagram leaves after close returns.
	mu        sync.RWMutex
	conn      *net.UDPConn
	sub       media.Subscription
	closed    bool
	closeOnce sync.Once
}

func newRelay(s *Source, index int, stream media.Stream) *relay {
	return &relay{
		source: s,
		index:  index,
		stream: stream,
	}
}

func (r *relay) start() error {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		r.close()
		return err
	}

	// the source may have closed since the relay was created
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return nil
	}
	r.conn = conn
	r.mu.Unlock()

	sub := r.stream.Subscribe(r.onPacket, r.onClose)

	// the stream may already have closed during Subscribe
	r.mu.Lock()
	closed := r.closed
	if !closed {
		r.sub = sub
	}
	r.mu.Unlock()

	if closed {
		sub.Cancel()
	}
	return nil
}

func (r *relay) onPacket(pkt []byte) {
	dsts := r.source.destinations(r.index)
	if len(dsts) == 0 {
		return
	}

	var sendErr error
	r.mu.RLock()
	if r.conn != nil {
		for _, dst := range dsts {
			if _, err := r.conn.WriteToUDP(pkt, dst); err != nil {
				sendErr = err
				break
			}
		}
	}
	r.mu.RUnlock()

	if sendErr != nil {
		r.fail(sendErr)
	}
}

func (r *relay) onClose() {
	if r.close() {
		r.source.log("stream %d closed, relay stopped", r.index)
	}
}

func (r *relay) fail(err error) {
	if r.close() {
		r.source.logError("relay for stream %d closed on error: %v", r.index, err)
		r.source.relayError(r.index, err)
	}
}

// close stops forwarding and releases the socket. It reports whether
// this call did the work.
func (r *relay) close() bool {
	done := false
	r.closeOnce.Do(func() {
		r.mu.Lock()
		conn, sub := r.conn, r.sub
		r.conn, r.sub = nil, nil
		r.closed = true
		r.mu.Unlock()

		if sub != nil {
			sub.Cancel()
		}
		if conn != nil {
			conn.Close()
		}
		done = true
	})
	return done
}

func (r *relay) running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn != nil
}
