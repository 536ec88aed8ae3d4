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

// Package sdp renders the session description served on DESCRIBE.
package sdp

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	psdp "github.com/pion/sdp/v3"

	"github.com/media-streaming-mesh/msm-relay/internal/media"
)

const originUsername = "mediasoup"

// Stream is one media block of the description.
type Stream struct {
	Index      int
	Kind       media.Kind
	Parameters media.RTPParameters
}

// Session is the input of Build.
type Session struct {
	ID      string
	Host    string
	Streams []Stream
}

// Build renders the description. Output only depends on the input, so
// two calls with the same session return identical bytes.
func Build(s Session) ([]byte, error) {
	mids := make([]string, 0, len(s.Streams))
	for _, st := range s.Streams {
		mids = append(mids, st.Parameters.MuxID)
	}

	desc := &psdp.SessionDescription{
		Version: 0,
		Origin: psdp.Origin{
			Username:       originUsername,
			SessionID:      sessionID(s.ID),
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: s.Host,
		},
		SessionName: psdp.SessionName(s.ID),
		ConnectionInformation: &psdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &psdp.Address{Address: s.Host},
		},
		TimeDescriptions: []psdp.TimeDescription{
			{Timing: psdp.Timing{StartTime: 0, StopTime: 0}},
		},
		Attributes: []psdp.Attribute{
			psdp.NewAttribute("group", strings.TrimSpace("LS "+strings.Join(mids, " "))),
		},
	}

	for _, st := range s.Streams {
		desc.MediaDescriptions = append(desc.MediaDescriptions, mediaDescription(st))
	}

	return desc.Marshal()
}

func mediaDescription(st Stream) *psdp.MediaDescription {
	var (
		formats  []string
		rtpmaps  []psdp.Attribute
		fmtps    []psdp.Attribute
		feedback []psdp.Attribute
	)

	for _, c := range st.Parameters.Codecs {
		pt := strconv.Itoa(int(c.PayloadType))
		formats = append(formats, pt)
		rtpmaps = append(rtpmaps, psdp.NewAttribute("rtpmap", pt+" "+rtpmapValue(c)))

		if config := fmtpValue(c.Parameters); config != "" {
			fmtps = append(fmtps, psdp.NewAttribute("fmtp", pt+" "+config))
		}

		for _, fb := range c.RtcpFeedback {
			v := pt + " " + fb.Type
			if fb.Parameter != "" {
				v += " " + fb.Parameter
			}
			feedback = append(feedback, psdp.NewAttribute("rtcp-fb", v))
		}
	}

	md := &psdp.MediaDescription{
		MediaName: psdp.MediaName{
			Media:   string(st.Kind),
			Port:    psdp.RangedPort{Value: 0},
			Protos:  []string{"RTP", "AVP"},
			Formats: formats,
		},
	}

	md.Attributes = append(md.Attributes, rtpmaps...)
	md.Attributes = append(md.Attributes, fmtps...)
	md.Attributes = append(md.Attributes, psdp.NewAttribute("control", fmt.Sprintf("streamid=%d", st.Index)))
	md.Attributes = append(md.Attributes, feedback...)
	for _, ext := range st.Parameters.HeaderExtensions {
		md.Attributes = append(md.Attributes, psdp.NewAttribute("extmap", fmt.Sprintf("%d %s", ext.ID, ext.URI)))
	}
	md.Attributes = append(md.Attributes, psdp.NewAttribute("mid", st.Parameters.MuxID))
	md.Attributes = append(md.Attributes, psdp.NewPropertyAttribute("recvonly"))

	return md
}

// rtpmapValue strips the media type prefix of names like "audio/opus".
func rtpmapValue(c media.Codec) string {
	name := c.Name
	if n := strings.Index(name, "/"); n >= 0 {
		name = name[n+1:]
	}
	v := fmt.Sprintf("%s/%d", name, c.ClockRate)
	if c.Channels > 1 {
		v += fmt.Sprintf("/%d", c.Channels)
	}
	return v
}

func fmtpValue(params []media.Parameter) string {
	var configs []string
	for _, p := range params {
		if p.Value == nil || reflect.TypeOf(p.Value).Kind() == reflect.Func {
			continue
		}
		configs = append(configs, ParameterName(p.Name)+"="+parameterValue(p.Value))
	}
	return strings.Join(configs, ";")
}

// parameterValue prints numbers in plain decimal; decoded parameters are
// float64 even when integral.
func parameterValue(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

// ParameterName converts camelCase names to dash-case: packetizationMode
// becomes packetization-mode.
func ParameterName(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func sessionID(id string) uint64 {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n
	}
	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64()
}
