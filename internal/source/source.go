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

// Package source groups the streams of one upstream peer and relays
// their packets to the RTSP clients that set them up.
package source

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/media-streaming-mesh/msm-relay/internal/media"
	"github.com/media-streaming-mesh/msm-relay/internal/model"
	"github.com/media-streaming-mesh/msm-relay/internal/sdp"
)

// Listener receives the events of a source.
type Listener func(model.SourceEvent)

// Option configures New
type Option func(*options)

type options struct {
	// Logger is the logger to use.
	Logger *logrus.Logger

	// Host is the address advertised in the session description.
	Host string

	// Listener is notified of enable/disable, new streams and relay errors.
	Listener Listener
}

// UseLogger sets the logger
func UseLogger(log *logrus.Logger) Option {
	return func(opts *options) {
		opts.Logger = log
	}
}

// UseHost sets the advertised host address
func UseHost(host string) Option {
	return func(opts *options) {
		opts.Host = host
	}
}

// UseListener sets the event listener
func UseListener(l Listener) Option {
	return func(opts *options) {
		opts.Listener = l
	}
}

type Source struct {
	id       string
	owner    string
	host     string
	logger   *logrus.Logger
	listener Listener

	mu        sync.RWMutex
	enabled   bool
	closed    bool
	relays    []*relay
	addresses addressTable
}

func New(id string, owner string, opts ...Option) *Source {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	return &Source{
		id:        id,
		owner:     owner,
		host:      cfg.Host,
		logger:    cfg.Logger,
		listener:  cfg.Listener,
		addresses: make(addressTable),
	}
}

func (s *Source) log(format string, args ...interface{}) {
	s.logger.Debugf("[Source %s] %s", s.id, fmt.Sprintf(format, args...))
}

func (s *Source) logError(format string, args ...interface{}) {
	s.logger.Errorf("[Source %s] %s", s.id, fmt.Sprintf(format, args...))
}

func (s *Source) ID() string {
	return s.id
}

func (s *Source) Owner() string {
	return s.owner
}

func (s *Source) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Enable makes the source describable.
func (s *Source) Enable() {
	s.setEnabled(true)
}

func (s *Source) Disable() {
	s.setEnabled(false)
}

func (s *Source) setEnabled(enabled bool) {
	s.mu.Lock()
	changed := s.enabled != enabled
	s.enabled = enabled
	s.mu.Unlock()

	if !changed {
		return
	}
	if enabled {
		s.log("enabled")
		s.emit(model.SourceEnabled, nil)
	} else {
		s.log("disabled")
		s.emit(model.SourceDisabled, nil)
	}
}

// AddStream appends stream at the next index and starts relaying its
// packets. A stream whose relay cannot start keeps its index.
func (s *Source) AddStream(stream media.Stream) int {
	s.mu.Lock()
	index := len(s.relays)
	r := newRelay(s, index, stream)
	s.relays = append(s.relays, r)
	closed := s.closed
	s.mu.Unlock()

	s.log("added %s stream %d (mid %s)", stream.Kind(), index, stream.Parameters().MuxID)

	if closed {
		r.close()
	} else if err := r.start(); err != nil {
		s.logError("could not open relay socket for stream %d: %v", index, err)
		s.relayError(index, err)
	}

	s.emit(model.StreamAdded, nil)
	return index
}

func (s *Source) HasStream(index int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasStream(index)
}

func (s *Source) hasStream(index int) bool {
	return index >= 0 && index < len(s.relays)
}

func (s *Source) StreamCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.relays)
}

// AddAddress creates or replaces the entry of (clientID, index), paused.
// Relay sockets are IPv4, so only unicast IPv4 destinations are accepted.
func (s *Source) AddAddress(clientID string, index int, address string, port int) error {
	ip := net.ParseIP(address).To4()
	if ip == nil || ip.IsUnspecified() || ip.IsMulticast() || ip.Equal(net.IPv4bcast) ||
		port < 1 || port > 65535 {
		return ErrInvalidAddress{Address: net.JoinHostPort(address, strconv.Itoa(port))}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasStream(index) {
		return ErrUnknownStream{Index: index}
	}

	s.addresses.set(clientID, index, &AddressEntry{
		Address: ip.String(),
		Port:    port,
		udpAddr: &net.UDPAddr{IP: ip, Port: port},
	})
	s.log("client %s stream %d -> %s:%d", clientID, index, address, port)
	return nil
}

// EnableAddress starts relaying to the targeted entries of a client.
func (s *Source) EnableAddress(clientID string, target Target) error {
	return s.setPlaying(clientID, target, true)
}

// DisableAddress stops relaying to the targeted entries of a client.
func (s *Source) DisableAddress(clientID string, target Target) error {
	return s.setPlaying(clientID, target, false)
}

func (s *Source) setPlaying(clientID string, target Target, playing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index, ok := target.Index(); ok && !s.hasStream(index) {
		return ErrUnknownStream{Index: index}
	}
	if !s.addresses.hasClient(clientID) {
		return ErrUnknownClient{ClientID: clientID}
	}

	s.addresses.setPlaying(clientID, target, playing)
	return nil
}

// Entry returns a copy of the entry of (clientID, index).
func (s *Source) Entry(clientID string, index int) (AddressEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.addresses.get(clientID, index)
	if !ok {
		return AddressEntry{}, false
	}
	return AddressEntry{Address: e.Address, Port: e.Port, Playing: e.Playing}, true
}

func (s *Source) destinations(index int) []*net.UDPAddr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	return s.addresses.destinations(index)
}

// GetSdp renders the session description of the current streams.
func (s *Source) GetSdp() ([]byte, error) {
	s.mu.RLock()
	session := sdp.Session{
		ID:      s.id,
		Host:    s.host,
		Streams: make([]sdp.Stream, 0, len(s.relays)),
	}
	for _, r := range s.relays {
		session.Streams = append(session.Streams, sdp.Stream{
			Index:      r.index,
			Kind:       r.stream.Kind(),
			Parameters: r.stream.Parameters(),
		})
	}
	s.mu.RUnlock()

	return sdp.Build(session)
}

func (s *Source) Snapshot() model.SourceData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := model.SourceData{
		ID:      s.id,
		Owner:   s.owner,
		Enabled: s.enabled,
		Streams: make([]model.StreamData, 0, len(s.relays)),
		Clients: s.addresses.clients(),
	}
	for _, r := range s.relays {
		data.Streams = append(data.Streams, model.StreamData{
			Index: r.index,
			Kind:  string(r.stream.Kind()),
			MuxID: r.stream.Parameters().MuxID,
		})
	}
	return data
}

// Close stops every relay. Once it returns no packet is sent anymore.
func (s *Source) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.enabled = false
	relays := append([]*relay(nil), s.relays...)
	s.mu.Unlock()

	for _, r := range relays {
		r.close()
	}
	s.log("closed")
}

func (s *Source) relayError(index int, err error) {
	s.emit(model.RelayError, fmt.Errorf("stream %d: %w", index, err))
}

func (s *Source) emit(t model.SourceEventType, err error) {
	if s.listener == nil {
		return
	}
	s.listener(model.SourceEvent{
		Type:   t,
		Source: s.Snapshot(),
		Err:    err,
	})
}
