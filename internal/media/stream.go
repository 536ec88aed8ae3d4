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

// Package media describes the elementary streams handed over by the
// media engine.
package media

// Kind is the media type of a stream.
type Kind string

const (
	Audio Kind = "audio"
	Video Kind = "video"
)

// Parameter is a codec format parameter. Order is kept as received.
type Parameter struct {
	Name  string
	Value interface{}
}

type Feedback struct {
	Type      string
	Parameter string
}

// Codec is one payload format a stream can carry.
type Codec struct {
	PayloadType  uint8
	Name         string
	ClockRate    uint32
	Channels     uint16
	Parameters   []Parameter
	RtcpFeedback []Feedback
}

type HeaderExtension struct {
	ID  int
	URI string
}

type RTPParameters struct {
	MuxID            string
	Codecs           []Codec
	HeaderExtensions []HeaderExtension
}

// PacketHandler receives raw packets. The slice must not be retained.
type PacketHandler func(pkt []byte)

// CloseHandler is called once when the stream ends.
type CloseHandler func()

// Subscription is a cancellable registration on a Stream.
type Subscription interface {
	Cancel()
}

// Stream is an inbound elementary feed produced by the media engine.
type Stream interface {
	Kind() Kind
	Parameters() RTPParameters
	Subscribe(onPacket PacketHandler, onClose CloseHandler) Subscription
}
