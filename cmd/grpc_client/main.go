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

// grpc_client is a synthetic media engine: it announces one video stream
// to a relay and pushes generated RTP packets until interrupted.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/media-streaming-mesh/msm-relay/internal/media"
	"github.com/media-streaming-mesh/msm-relay/internal/stub"
	"github.com/media-streaming-mesh/msm-relay/internal/transport"
	"github.com/media-streaming-mesh/msm-relay/pkg/source_api"
)

func main() {
	target := flag.String("relay", "127.0.0.1:9000", "relay gRPC address")
	peerID := flag.String("peer", "1", "peer id, which is also the source id")
	rate := flag.Duration("interval", 40*time.Millisecond, "interval between packets")
	etcd := flag.String("etcd", "", "comma separated etcd endpoints to follow the announcement of the source")
	flag.Parse()

	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	client, err := transport.SetupClient(log, *target)
	if err != nil {
		log.Fatalf("failed to connect to relay: %v", err)
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := waitHealthy(ctx, client); err != nil {
		log.Fatalf("relay not serving: %v", err)
	}

	if *etcd != "" {
		go followAnnouncements(ctx, log, strings.Split(*etcd, ","), *peerID)
	}

	stream, err := client.Engine.Send(ctx)
	if err != nil {
		log.Fatalf("open stream error %v", err)
	}

	added := make(chan struct{})

	// receive from server on a separate goroutine
	go func() {
		var once sync.Once
		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				log.Errorf("can not receive %v", err)
				cancel()
				return
			}
			log.Infof("received %v", resp.AsMap())
			if resp.GetFields()["event"].GetStringValue() == stub.EventAdded {
				once.Do(func() { close(added) })
			}
		}
	}()

	params := media.RTPParameters{
		MuxID: "video0",
		Codecs: []media.Codec{
			{
				PayloadType: 96,
				Name:        "video/H264",
				ClockRate:   90000,
				Parameters: []media.Parameter{
					{Name: "packetizationMode", Value: 1},
					{Name: "profileLevelId", Value: "42e01f"},
				},
				RtcpFeedback: []media.Feedback{{Type: "nack"}, {Type: "nack", Parameter: "pli"}},
			},
		},
	}
	add, err := stub.NewAddEvent(*peerID, media.Video, params)
	if err != nil {
		log.Fatalf("invalid stream: %v", err)
	}

	for _, msg := range []*structpb.Struct{
		stub.NewPeerEvent(stub.EventRegister, *peerID, ""),
		add,
		stub.NewPeerEvent(stub.EventReady, *peerID, ""),
	} {
		if err := stream.Send(msg); err != nil {
			log.Fatalf("can not send %v", err)
		}
	}

	select {
	case <-added:
	case <-ctx.Done():
		return
	}

	pktCtx := metadata.AppendToOutgoingContext(ctx, stub.PeerMetadataKey, *peerID, stub.MidMetadataKey, params.MuxID)

	packets, err := client.Engine.Packets(pktCtx)
	if err != nil {
		log.Fatalf("open packet stream error %v", err)
	}

	ticker := time.NewTicker(*rate)
	defer ticker.Stop()

	header := rtp.Header{Version: 2, PayloadType: 96, SSRC: 0x4d534d}
	payload := make([]byte, 1000)
	for {
		select {
		case <-ctx.Done():
			packets.CloseAndRecv()
			stream.CloseSend()
			log.Info("finished client side")
			return
		case <-ticker.C:
		}

		rand.Read(payload)
		header.SequenceNumber++
		header.Timestamp += uint32(rate.Seconds() * float64(params.Codecs[0].ClockRate))
		pkt := rtp.Packet{Header: header, Payload: payload}
		b, err := pkt.Marshal()
		if err != nil {
			log.Fatalf("marshal packet: %v", err)
		}
		if err := packets.Send(wrapperspb.Bytes(b)); err != nil {
			log.Errorf("can not send packet %v", err)
			return
		}
	}
}

func waitHealthy(ctx context.Context, client *transport.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for {
		ok, err := client.Healthy(ctx)
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
			return err
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// followAnnouncements logs the etcd announcements of the peer's source.
func followAnnouncements(ctx context.Context, log *logrus.Logger, endpoints []string, peerID string) {
	api, err := source_api.NewSourceAPI(log, endpoints, 5*time.Second, "")
	if err != nil {
		log.Errorf("etcd: %v", err)
		return
	}
	defer api.Close()

	updates := make(chan source_api.SourceUpdate)
	go func() {
		if err := api.WatchSources(ctx, updates); err != nil {
			log.Errorf("watch: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if u.Source.ID != peerID {
				continue
			}
			if u.Deleted {
				log.Infof("source %s withdrawn", peerID)
			} else {
				log.Infof("source %s announced at %s, enabled=%v", peerID, u.Source.URL, u.Source.Enabled)
			}
		}
	}
}
