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

package stub

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/media-streaming-mesh/msm-relay/internal/media"
)

// Send stream events. Every message carries its type in the "event" field.
const (
	EventRegister = "REGISTER"
	EventConfig   = "CONFIG"
	EventAdd      = "ADD"
	EventAdded    = "ADDED"
	EventReady    = "READY"
	EventDisable  = "DISABLE"
	EventClose    = "CLOSE"
	EventDelete   = "DELETE"
	EventError    = "ERROR"
)

var (
	errPeerMissing = errors.New("peer missing")
	errMidMissing  = errors.New("mid missing")
	errNoCodecs    = errors.New("stream has no codecs")
)

type streamAnnouncement struct {
	peer   string
	kind   media.Kind
	params media.RTPParameters
}

func eventType(msg *structpb.Struct) string {
	return stringField(msg, "event")
}

func stringField(msg *structpb.Struct, name string) string {
	return msg.GetFields()[name].GetStringValue()
}

func numberField(msg *structpb.Struct, name string) float64 {
	return msg.GetFields()[name].GetNumberValue()
}

func listField(msg *structpb.Struct, name string) []*structpb.Value {
	return msg.GetFields()[name].GetListValue().GetValues()
}

func decodeAdd(msg *structpb.Struct) (streamAnnouncement, error) {
	a := streamAnnouncement{
		peer: stringField(msg, "peer"),
		kind: media.Kind(stringField(msg, "kind")),
	}
	if a.peer == "" {
		return a, errPeerMissing
	}
	switch a.kind {
	case media.Audio, media.Video:
	default:
		return a, fmt.Errorf("unsupported kind '%s'", a.kind)
	}

	a.params.MuxID = stringField(msg, "mid")
	if a.params.MuxID == "" {
		return a, errMidMissing
	}

	for _, v := range listField(msg, "codecs") {
		c := v.GetStructValue()
		pt := numberField(c, "payloadType")
		if pt < 0 || pt > 127 {
			return a, fmt.Errorf("invalid payload type %v", pt)
		}

		codec := media.Codec{
			PayloadType: uint8(pt),
			Name:        stringField(c, "mimeType"),
			ClockRate:   uint32(numberField(c, "clockRate")),
			Channels:    uint16(numberField(c, "channels")),
		}
		for _, p := range listField(c, "parameters") {
			ps := p.GetStructValue()
			codec.Parameters = append(codec.Parameters, media.Parameter{
				Name:  stringField(ps, "name"),
				Value: ps.GetFields()["value"].AsInterface(),
			})
		}
		for _, f := range listField(c, "rtcpFeedback") {
			fs := f.GetStructValue()
			codec.RtcpFeedback = append(codec.RtcpFeedback, media.Feedback{
				Type:      stringField(fs, "type"),
				Parameter: stringField(fs, "parameter"),
			})
		}
		a.params.Codecs = append(a.params.Codecs, codec)
	}
	if len(a.params.Codecs) == 0 {
		return a, errNoCodecs
	}

	for _, v := range listField(msg, "headerExtensions") {
		e := v.GetStructValue()
		a.params.HeaderExtensions = append(a.params.HeaderExtensions, media.HeaderExtension{
			ID:  int(numberField(e, "id")),
			URI: stringField(e, "uri"),
		})
	}

	return a, nil
}

// NewAddEvent encodes the announcement of a stream of peer.
func NewAddEvent(peer string, kind media.Kind, params media.RTPParameters) (*structpb.Struct, error) {
	codecs := make([]interface{}, 0, len(params.Codecs))
	for _, c := range params.Codecs {
		parameters := make([]interface{}, 0, len(c.Parameters))
		for _, p := range c.Parameters {
			parameters = append(parameters, map[string]interface{}{
				"name":  p.Name,
				"value": p.Value,
			})
		}
		feedback := make([]interface{}, 0, len(c.RtcpFeedback))
		for _, f := range c.RtcpFeedback {
			feedback = append(feedback, map[string]interface{}{
				"type":      f.Type,
				"parameter": f.Parameter,
			})
		}
		codecs = append(codecs, map[string]interface{}{
			"payloadType":  int(c.PayloadType),
			"mimeType":     c.Name,
			"clockRate":    int(c.ClockRate),
			"channels":     int(c.Channels),
			"parameters":   parameters,
			"rtcpFeedback": feedback,
		})
	}

	extensions := make([]interface{}, 0, len(params.HeaderExtensions))
	for _, e := range params.HeaderExtensions {
		extensions = append(extensions, map[string]interface{}{
			"id":  e.ID,
			"uri": e.URI,
		})
	}

	return structpb.NewStruct(map[string]interface{}{
		"event":            EventAdd,
		"peer":             peer,
		"kind":             string(kind),
		"mid":              params.MuxID,
		"codecs":           codecs,
		"headerExtensions": extensions,
	})
}

// NewPeerEvent encodes the events that only name a peer, and an optional
// stream mid.
func NewPeerEvent(event string, peer string, mid string) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"event": structpb.NewStringValue(event),
		"peer":  structpb.NewStringValue(peer),
	}
	if mid != "" {
		fields["mid"] = structpb.NewStringValue(mid)
	}
	return &structpb.Struct{Fields: fields}
}

func newErrorEvent(err error) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"event": structpb.NewStringValue(EventError),
		"error": structpb.NewStringValue(err.Error()),
	}}
}
