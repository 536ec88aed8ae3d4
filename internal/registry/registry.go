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

// Package registry keeps the sources known to the process.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/media-streaming-mesh/msm-relay/internal/config"
	"github.com/media-streaming-mesh/msm-relay/internal/model"
	"github.com/media-streaming-mesh/msm-relay/internal/source"
)

// Listener is called for registry and source events, outside any lock.
type Listener func(model.SourceEvent)

// Option configures New
type Option func(*options)

type options struct {
	// Logger is the logger to use.
	Logger *logrus.Logger

	// Host is the address sources advertise.
	Host string
}

// UseLogger sets the logger
func UseLogger(log *logrus.Logger) Option {
	return func(opts *options) {
		opts.Logger = log
	}
}

// UseHost sets the address advertised by every source
func UseHost(host string) Option {
	return func(opts *options) {
		opts.Host = host
	}
}

type Registry struct {
	logger *logrus.Logger
	host   string

	mu      sync.RWMutex
	sources map[string]*source.Source

	lmu       sync.RWMutex
	listeners []Listener
}

func New(opts ...Option) *Registry {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	return &Registry{
		logger:  cfg.Logger,
		host:    cfg.Host,
		sources: make(map[string]*source.Source),
	}
}

// NewFromConfig builds the process registry.
func NewFromConfig(cfg *config.Cfg) *Registry {
	return New(
		UseLogger(cfg.Logger),
		UseHost(cfg.Host),
	)
}

func (r *Registry) log(format string, args ...interface{}) {
	r.logger.Infof("[Registry] %s", fmt.Sprintf(format, args...))
}

// AddListener registers l for every later event.
func (r *Registry) AddListener(l Listener) {
	r.lmu.Lock()
	defer r.lmu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Registry) notify(ev model.SourceEvent) {
	r.lmu.RLock()
	listeners := append([]Listener(nil), r.listeners...)
	r.lmu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

// Get never creates a source.
func (r *Registry) Get(id string) (*source.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	return s, ok
}

// GetEnabled returns the source only if it exists and is enabled.
func (r *Registry) GetEnabled(id string) (*source.Source, error) {
	s, ok := r.Get(id)
	if !ok || !s.Enabled() {
		return nil, source.ErrUnknownSource
	}
	return s, nil
}

// GetOrCreate returns the source of id, creating a disabled one bound to
// owner if needed. SourceCreated is emitted once per id.
func (r *Registry) GetOrCreate(id string, owner string) *source.Source {
	r.mu.Lock()
	s, ok := r.sources[id]
	if !ok {
		s = source.New(id, owner,
			source.UseLogger(r.logger),
			source.UseHost(r.host),
			source.UseListener(r.notify),
		)
		r.sources[id] = s
	}
	r.mu.Unlock()

	if !ok {
		r.log("new source %s (owner %s)", id, owner)
		r.notify(model.SourceEvent{Type: model.SourceCreated, Source: s.Snapshot()})
	}
	return s
}

// Remove unregisters and closes the source. Removing an unknown id is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sources[id]
	delete(r.sources, id)
	r.mu.Unlock()

	if !ok {
		return
	}

	s.Close()
	r.log("removed source %s", id)
	r.notify(model.SourceEvent{Type: model.SourceRemoved, Source: s.Snapshot()})
}

// Sources returns the registered sources sorted by id.
func (r *Registry) Sources() []*source.Source {
	r.mu.RLock()
	out := make([]*source.Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}
