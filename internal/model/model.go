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

package model

import (
	"fmt"
)

//============================================= Connection Key =======================================

type ConnectionKey struct {
	Local  string
	Remote string
	Key    string
}

func NewConnectionKey(local string, remote string) ConnectionKey {
	return ConnectionKey{
		local,
		remote,
		fmt.Sprintf("%s%s", local, remote),
	}
}

//============================================= Source =============================================

// SourceData is a point-in-time view of a source, used for announcements
// and the status API.
type SourceData struct {
	ID      string       `json:"id"`
	Owner   string       `json:"owner"`
	Enabled bool         `json:"enabled"`
	Streams []StreamData `json:"streams"`
	Clients int          `json:"clients"`

	// URL is only set on sources read back from etcd
	URL string `json:"url,omitempty"`
}

type StreamData struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	MuxID string `json:"mid"`
}

//============================================= Events =============================================

type SourceEventType int

const (
	SourceCreated SourceEventType = iota
	SourceEnabled
	SourceDisabled
	StreamAdded
	RelayError
	SourceRemoved
)

func (t SourceEventType) String() string {
	switch t {
	case SourceCreated:
		return "CREATED"
	case SourceEnabled:
		return "ENABLED"
	case SourceDisabled:
		return "DISABLED"
	case StreamAdded:
		return "STREAM_ADDED"
	case RelayError:
		return "RELAY_ERROR"
	case SourceRemoved:
		return "REMOVED"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// SourceEvent is emitted by sources and the registry. Err is only set
// for RelayError.
type SourceEvent struct {
	Type   SourceEventType
	Source SourceData
	Err    error
}
