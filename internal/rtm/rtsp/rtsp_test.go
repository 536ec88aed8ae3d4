/*
 * Copyright (c) 2022-2022 Cisco and/or its affiliates.
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

package rtsp

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aler9/gortsplib/pkg/base"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/media-streaming-mesh/msm-relay/internal/media"
	"github.com/media-streaming-mesh/msm-relay/internal/registry"
	"github.com/media-streaming-mesh/msm-relay/internal/source"
)

const baseURL = "rtsp://127.0.0.1:8554"

type fixture struct {
	rtsp   *RTSP
	reg    *registry.Registry
	source *source.Source
	feed   *media.Feed
}

func newFixture(t *testing.T) *fixture {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	reg := registry.New(registry.UseLogger(logger), registry.UseHost("127.0.0.1"))
	s := reg.GetOrCreate("s1", "peer-1")
	feed := media.NewFeed(media.Video, media.RTPParameters{
		MuxID: "0",
		Codecs: []media.Codec{
			{PayloadType: 96, Name: "video/H264", ClockRate: 90000},
		},
	})
	s.AddStream(feed)
	s.Enable()
	t.Cleanup(func() {
		feed.Close()
		reg.Remove("s1")
	})

	return &fixture{
		rtsp:   NewRTSP(UseLogger(logger), UseRegistry(reg)),
		reg:    reg,
		source: s,
		feed:   feed,
	}
}

func newConn(ip string) *RTSPConnection {
	return newRTSPConnection(
		&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8554},
		&net.TCPAddr{IP: net.ParseIP(ip), Port: 40000},
	)
}

func request(t *testing.T, method string, path string, cseq int, headers ...string) *base.Request {
	var b strings.Builder
	b.WriteString(method + " " + baseURL + path + " RTSP/1.0\r\n")
	if cseq > 0 {
		b.WriteString("CSeq: " + strconv.Itoa(cseq) + "\r\n")
	}
	for _, h := range headers {
		b.WriteString(h + "\r\n")
	}
	b.WriteString("\r\n")

	req := &base.Request{}
	require.NoError(t, req.Read(bufio.NewReader(strings.NewReader(b.String()))))
	return req
}

func TestOptions(t *testing.T) {
	f := newFixture(t)
	rc := newConn("203.0.113.9")

	res := f.rtsp.handleRequest(request(t, "OPTIONS", "/", 1), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)
	require.Equal(t, base.HeaderValue{"OPTIONS, DESCRIBE, SETUP, PLAY, PAUSE, TEARDOWN"}, res.Header["Public"])
	require.Equal(t, base.HeaderValue{"1"}, res.Header["CSeq"])
	require.Len(t, res.Header["Date"], 1)
}

func TestMissingCSeq(t *testing.T) {
	f := newFixture(t)

	res := f.rtsp.handleRequest(request(t, "OPTIONS", "/", 0), newConn("203.0.113.9"))
	require.Equal(t, base.StatusBadRequest, res.StatusCode)
}

func TestDescribe(t *testing.T) {
	f := newFixture(t)
	rc := newConn("203.0.113.9")

	res := f.rtsp.handleRequest(request(t, "DESCRIBE", "/s1.sdp", 2), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)

	body, err := f.source.GetSdp()
	require.NoError(t, err)
	require.Equal(t, body, res.Body)
	require.Equal(t, base.HeaderValue{baseURL + "/s1.sdp"}, res.Header["Content-Base"])
	require.Equal(t, base.HeaderValue{"application/sdp"}, res.Header["Content-Type"])
	require.Equal(t, base.HeaderValue{strconv.Itoa(len(body))}, res.Header["Content-Length"])
	require.Equal(t, base.HeaderValue{"2"}, res.Header["CSeq"])
	require.Equal(t, "s1", rc.SourceID())
}

func TestDescribeNotFound(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/unknown.sdp", "/s1", "/s1.sdp/streamid=0", "/"} {
		res := f.rtsp.handleRequest(request(t, "DESCRIBE", path, 2), newConn("203.0.113.9"))
		require.Equal(t, base.StatusNotFound, res.StatusCode, path)
		require.NotContains(t, res.Header, "Error")
	}

	f.source.Disable()
	res := f.rtsp.handleRequest(request(t, "DESCRIBE", "/s1.sdp", 2), newConn("203.0.113.9"))
	require.Equal(t, base.StatusNotFound, res.StatusCode)
}

func TestSetup(t *testing.T) {
	f := newFixture(t)
	rc := newConn("203.0.113.9")

	res := f.rtsp.handleRequest(request(t, "SETUP", "/s1.sdp/streamid=0", 3,
		"Transport: RTP/AVP;unicast;client_port=5000-5001"), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)
	require.Equal(t, base.HeaderValue{"RTP/AVP;unicast;client_port=5000-5001"}, res.Header["Transport"])
	require.Equal(t, base.HeaderValue{rc.SessionID()}, res.Header["Session"])

	entry, ok := f.source.Entry(rc.SessionID(), 0)
	require.True(t, ok)
	require.Equal(t, source.AddressEntry{Address: "203.0.113.9", Port: 5000}, entry)
}

func TestSetupTransportFields(t *testing.T) {
	f := newFixture(t)

	rc := newConn("::ffff:203.0.113.9")
	res := f.rtsp.handleRequest(request(t, "SETUP", "/s1.sdp/streamid=0", 3,
		"Transport: RTP/AVP;unicast;client_port=5000-5001,RTP/AVP;unicast;client_port=6000-6001"), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)

	entry, ok := f.source.Entry(rc.SessionID(), 0)
	require.True(t, ok)
	require.Equal(t, "203.0.113.9", entry.Address)
	require.Equal(t, 6000, entry.Port)

	rc = newConn("203.0.113.10")
	res = f.rtsp.handleRequest(request(t, "SETUP", "/s1.sdp/streamid=0", 3,
		"Transport: RTP/AVP/TCP;interleaved=0-1;client_port=abc-def"), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)

	_, ok = f.source.Entry(rc.SessionID(), 0)
	require.False(t, ok)
}

func TestSetupErrors(t *testing.T) {
	f := newFixture(t)
	rc := newConn("203.0.113.9")

	res := f.rtsp.handleRequest(request(t, "SETUP", "/s1.sdp/streamid=5", 3,
		"Transport: RTP/AVP;unicast;client_port=5000-5001"), rc)
	require.Equal(t, base.StatusInternalServerError, res.StatusCode)
	require.Equal(t, base.HeaderValue{"stream id [5] not found"}, res.Header["Error"])
	require.Equal(t, base.HeaderValue{"3"}, res.Header["CSeq"])

	_, ok := f.source.Entry(rc.SessionID(), 5)
	require.False(t, ok)

	res = f.rtsp.handleRequest(request(t, "SETUP", "/s1.sdp", 4,
		"Transport: RTP/AVP;unicast;client_port=5000-5001"), rc)
	require.Equal(t, base.StatusBadRequest, res.StatusCode)

	res = f.rtsp.handleRequest(request(t, "SETUP", "/s1.sdp/streamid=0", 5), rc)
	require.Equal(t, base.StatusInternalServerError, res.StatusCode)
	require.Len(t, res.Header["Error"], 1)

	// relay sockets are IPv4 only
	v6 := newConn("2001:db8::9")
	res = f.rtsp.handleRequest(request(t, "SETUP", "/s1.sdp/streamid=0", 6,
		"Transport: RTP/AVP;unicast;client_port=5000-5001"), v6)
	require.Equal(t, base.StatusInternalServerError, res.StatusCode)
	require.Equal(t, base.HeaderValue{"invalid address '[2001:db8::9]:5000'"}, res.Header["Error"])
	_, ok = f.source.Entry(v6.SessionID(), 0)
	require.False(t, ok)
}

func TestPlayPause(t *testing.T) {
	f := newFixture(t)
	rc := newConn("203.0.113.9")

	res := f.rtsp.handleRequest(request(t, "SETUP", "/s1.sdp/streamid=0", 3,
		"Transport: RTP/AVP;unicast;client_port=5000-5001"), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)

	res = f.rtsp.handleRequest(request(t, "PLAY", "/s1.sdp/", 4, "Session: "+rc.SessionID()), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)
	require.Equal(t, base.HeaderValue{rc.SessionID()}, res.Header["Session"])

	entry, _ := f.source.Entry(rc.SessionID(), 0)
	require.True(t, entry.Playing)

	res = f.rtsp.handleRequest(request(t, "PAUSE", "/s1.sdp/streamid=0", 5), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)

	entry, _ = f.source.Entry(rc.SessionID(), 0)
	require.False(t, entry.Playing)

	res = f.rtsp.handleRequest(request(t, "TEARDOWN", "/s1.sdp", 6), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)
	require.Equal(t, base.HeaderValue{rc.SessionID()}, res.Header["Session"])

	_, ok := f.source.Entry(rc.SessionID(), 0)
	require.True(t, ok)
}

func TestPlayUnknownClient(t *testing.T) {
	f := newFixture(t)
	rc := newConn("203.0.113.9")

	res := f.rtsp.handleRequest(request(t, "PLAY", "/s1.sdp", 4), rc)
	require.Equal(t, base.StatusInternalServerError, res.StatusCode)
	require.Equal(t, base.HeaderValue{"client id [" + rc.SessionID() + "] not found"}, res.Header["Error"])
}

func TestPlayWithoutSource(t *testing.T) {
	f := newFixture(t)

	res := f.rtsp.handleRequest(request(t, "PLAY", "/", 4), newConn("203.0.113.9"))
	require.Equal(t, base.StatusNotFound, res.StatusCode)
}

func TestGating(t *testing.T) {
	f := newFixture(t)
	rc := newConn("203.0.113.9")

	res := f.rtsp.handleRequest(request(t, "DESCRIBE", "/s1.sdp", 2), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)

	other := f.reg.GetOrCreate("s2", "peer-2")
	other.Enable()
	t.Cleanup(func() { f.reg.Remove("s2") })

	res = f.rtsp.handleRequest(request(t, "SETUP", "/s2.sdp/streamid=0", 3,
		"Transport: RTP/AVP;unicast;client_port=5000-5001"), rc)
	require.Equal(t, base.StatusNotFound, res.StatusCode)

	f.source.Disable()
	res = f.rtsp.handleRequest(request(t, "OPTIONS", "/", 4), rc)
	require.Equal(t, base.StatusNotFound, res.StatusCode)
	require.Equal(t, base.HeaderValue{"4"}, res.Header["CSeq"])

	f.source.Enable()
	res = f.rtsp.handleRequest(request(t, "OPTIONS", "/", 5), rc)
	require.Equal(t, base.StatusOK, res.StatusCode)

	f.reg.Remove("s1")
	res = f.rtsp.handleRequest(request(t, "OPTIONS", "/", 6), rc)
	require.Equal(t, base.StatusNotFound, res.StatusCode)
}

func TestNotImplemented(t *testing.T) {
	f := newFixture(t)

	res := f.rtsp.handleRequest(request(t, "GET_PARAMETER", "/s1.sdp", 7), newConn("203.0.113.9"))
	require.Equal(t, base.StatusNotImplemented, res.StatusCode)
	require.Equal(t, base.HeaderValue{"7"}, res.Header["CSeq"])
}

func TestParsePath(t *testing.T) {
	p, err := parsePath("/s1.sdp")
	require.NoError(t, err)
	require.Equal(t, requestPath{sourceID: "s1"}, p)

	p, err = parsePath("/42.sdp/streamid=3")
	require.NoError(t, err)
	require.Equal(t, requestPath{sourceID: "42", stream: 3, hasStream: true}, p)

	p, err = parsePath("/s1.sdp/")
	require.NoError(t, err)
	require.Equal(t, "s1", p.sourceID)

	for _, bad := range []string{"", "/", "/s1", "/s1.sdp/streamid=", "/a/b.sdp", "/s1.sdp/trackID=0"} {
		_, err := parsePath(bad)
		require.Error(t, err, bad)
	}
}

func TestClientPorts(t *testing.T) {
	require.Equal(t, []int{5000}, clientPorts("RTP/AVP;unicast;client_port=5000-5001"))
	require.Equal(t, []int{5000, 6000}, clientPorts("RTP/AVP;client_port=5000-5001,RTP/AVP;Client_Port=6000-6001"))
	require.Empty(t, clientPorts("RTP/AVP/TCP;interleaved=0-1"))
	require.Empty(t, clientPorts("client_port=5000;client_port=0-1;client_port=x-1"))
}

func TestServe(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.rtsp.Serve(ctx, ln)
	}()

	udp, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer udp.Close()
	udpPort := udp.LocalAddr().(*net.UDPAddr).Port

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	br := bufio.NewReader(conn)

	roundTrip := func(raw string) *base.Response {
		_, err := conn.Write([]byte(raw))
		require.NoError(t, err)
		res := &base.Response{}
		require.NoError(t, res.Read(br))
		return res
	}

	url := "rtsp://" + ln.Addr().String() + "/s1.sdp"

	res := roundTrip("DESCRIBE " + url + " RTSP/1.0\r\nCSeq: 1\r\n\r\n")
	require.Equal(t, base.StatusOK, res.StatusCode)
	require.True(t, bytes.Contains(res.Body, []byte("a=control:streamid=0")))
	require.Equal(t, base.HeaderValue{"1"}, res.Header["CSeq"])
	require.Equal(t, 1, openConns(f.rtsp))

	res = roundTrip("SETUP " + url + "/streamid=0 RTSP/1.0\r\nCSeq: 2\r\n" +
		"Transport: RTP/AVP;unicast;client_port=" + strconv.Itoa(udpPort) + "-" + strconv.Itoa(udpPort+1) + "\r\n\r\n")
	require.Equal(t, base.StatusOK, res.StatusCode)
	session := res.Header["Session"]
	require.Len(t, session, 1)

	res = roundTrip("PLAY " + url + " RTSP/1.0\r\nCSeq: 3\r\nSession: " + session[0] + "\r\n\r\n")
	require.Equal(t, base.StatusOK, res.StatusCode)

	pkt := []byte{0x80, 0x60, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0xde, 0xad, 0xbe, 0xef}
	f.feed.Publish(pkt)

	buf := make([]byte, 1500)
	udp.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := udp.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, pkt, buf[:n])

	res = roundTrip("SETUP " + url + "/streamid=5 RTSP/1.0\r\nCSeq: 4\r\n" +
		"Transport: RTP/AVP;unicast;client_port=6000-6001\r\n\r\n")
	require.Equal(t, base.StatusInternalServerError, res.StatusCode)
	require.Equal(t, base.HeaderValue{"stream id [5] not found"}, res.Header["Error"])
	require.Equal(t, base.HeaderValue{"4"}, res.Header["CSeq"])

	res = roundTrip("RECORD " + url + " RTSP/1.0\r\nCSeq: 5\r\n\r\n")
	require.Equal(t, base.StatusNotImplemented, res.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	require.Zero(t, openConns(f.rtsp))
}

func openConns(r *RTSP) int {
	n := 0
	r.rtspConn.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func TestConnectionState(t *testing.T) {
	rc := newConn("::ffff:203.0.113.9")
	require.Equal(t, Connected, rc.state)
	require.Equal(t, "connected", rc.state.String())
	require.Equal(t, "closed", Closed.String())
	require.Equal(t, "203.0.113.9", rc.remoteIP)
	require.NotEmpty(t, rc.SessionID())
}
