package stub

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/media-streaming-mesh/msm-relay/internal/config"
	"github.com/media-streaming-mesh/msm-relay/internal/media"
	"github.com/media-streaming-mesh/msm-relay/internal/registry"
	"github.com/media-streaming-mesh/msm-relay/internal/util"
)

// API provides external access to stub
type StubAPI interface {
	Send(conn MediaEngine_SendServer) error
	Packets(conn MediaEngine_PacketsServer) error
}

type feedKey struct {
	peer string
	mid  string
}

type StubHandler struct {
	logger   *logrus.Logger
	registry *registry.Registry
	rtspURL  string

	mu    sync.Mutex
	feeds map[feedKey]*media.Feed
}

func NewStubHandler(cfg *config.Cfg, reg *registry.Registry) *StubHandler {
	return &StubHandler{
		logger:   cfg.Logger,
		registry: reg,
		rtspURL:  cfg.RTSPURL(),
		feeds:    make(map[feedKey]*media.Feed),
	}
}

func (s *StubHandler) log(format string, args ...interface{}) {
	s.logger.Debugf("[Stub Handler] %s", fmt.Sprintf(format, args...))
}

func (s *StubHandler) logError(format string, args ...interface{}) {
	s.logger.Errorf("[Stub Handler] %s", fmt.Sprintf(format, args...))
}

// Send serves the event stream of one media engine. Every peer announced
// on the stream is deleted when the stream ends.
func (s *StubHandler) Send(conn MediaEngine_SendServer) error {
	var ctx = conn.Context()
	owner := stubAddress(conn)
	peers := make(map[string]struct{})

	defer func() {
		for p := range peers {
			s.OnDelete(p)
		}
	}()

	for {
		// exit if context is done or continue
		select {
		case <-ctx.Done():
			s.log("received connection done")
			return ctx.Err()
		default:
		}

		msg, err := conn.Recv()
		if err == io.EOF {
			s.log("found EOF, exiting")
			return nil
		}
		if err != nil {
			s.logError("received error %v", err)
			return err
		}

		var reply *structpb.Struct
		p := stringField(msg, "peer")

		switch eventType(msg) {
		case EventRegister:
			s.log("Received REGISTER event from %s", owner)
			reply = s.OnRegistration()

		case EventAdd:
			s.log("Received ADD event: %v", msg)
			reply, err = s.OnAdd(owner, msg)
			if err == nil {
				peers[p] = struct{}{}
			}

		case EventReady:
			s.log("Received READY event for peer %s", p)
			err = s.OnReady(p, true)

		case EventDisable:
			s.log("Received DISABLE event for peer %s", p)
			err = s.OnReady(p, false)

		case EventClose:
			s.log("Received CLOSE event for peer %s", p)
			err = s.OnClose(p, stringField(msg, "mid"))

		case EventDelete:
			s.log("Received DELETE event for peer %s", p)
			s.OnDelete(p)
			delete(peers, p)

		default:
			err = fmt.Errorf("unknown event '%s'", eventType(msg))
		}

		if err != nil {
			s.logError("%s event failed: %v", eventType(msg), err)
			reply = newErrorEvent(err)
		}
		if reply != nil {
			if err := conn.Send(reply); err != nil {
				s.logError("could not send reply, error: %v", err)
				return err
			}
		}
	}
}

// Call when receive REGISTER event
func (s *StubHandler) OnRegistration() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"event":   structpb.NewStringValue(EventConfig),
		"rtspUrl": structpb.NewStringValue(s.rtspURL),
	}}
}

// Call when receive ADD event. The source of the peer is created on its
// first stream and bound to the announcing engine.
func (s *StubHandler) OnAdd(owner string, msg *structpb.Struct) (*structpb.Struct, error) {
	a, err := decodeAdd(msg)
	if err != nil {
		return nil, err
	}

	src := s.registry.GetOrCreate(a.peer, owner)
	if src.Owner() != owner {
		return nil, fmt.Errorf("peer %s is owned by %s", a.peer, src.Owner())
	}

	key := feedKey{peer: a.peer, mid: a.params.MuxID}
	feed := media.NewFeed(a.kind, a.params)

	s.mu.Lock()
	if _, ok := s.feeds[key]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("stream %s of peer %s already announced", key.mid, key.peer)
	}
	s.feeds[key] = feed
	s.mu.Unlock()

	index := src.AddStream(feed)
	s.log("peer %s stream %s added at index %d", a.peer, a.params.MuxID, index)

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"event": structpb.NewStringValue(EventAdded),
		"peer":  structpb.NewStringValue(a.peer),
		"mid":   structpb.NewStringValue(a.params.MuxID),
		"index": structpb.NewNumberValue(float64(index)),
	}}, nil
}

// Call when receive READY or DISABLE event
func (s *StubHandler) OnReady(p string, ready bool) error {
	src, ok := s.registry.Get(p)
	if !ok {
		return fmt.Errorf("peer %s has no source", p)
	}
	if ready {
		src.Enable()
	} else {
		src.Disable()
	}
	return nil
}

// Call when receive CLOSE event
func (s *StubHandler) OnClose(p string, mid string) error {
	key := feedKey{peer: p, mid: mid}

	s.mu.Lock()
	feed, ok := s.feeds[key]
	delete(s.feeds, key)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("stream %s of peer %s not found", mid, p)
	}
	feed.Close()
	return nil
}

// Call when receive DELETE event, or when the engine stream of the peer
// ends.
func (s *StubHandler) OnDelete(p string) {
	s.registry.Remove(p)

	var closing []*media.Feed
	s.mu.Lock()
	for key, feed := range s.feeds {
		if key.peer == p {
			closing = append(closing, feed)
			delete(s.feeds, key)
		}
	}
	s.mu.Unlock()

	for _, feed := range closing {
		feed.Close()
	}
}

// Packets publishes the RTP packets of the stream named by the msm-peer
// and msm-mid metadata.
func (s *StubHandler) Packets(conn MediaEngine_PacketsServer) error {
	md, _ := metadata.FromIncomingContext(conn.Context())
	key := feedKey{peer: firstValue(md, PeerMetadataKey), mid: firstValue(md, MidMetadataKey)}

	s.mu.Lock()
	feed, ok := s.feeds[key]
	s.mu.Unlock()
	if !ok {
		return status.Errorf(codes.NotFound, "stream %s of peer %s not found", key.mid, key.peer)
	}

	var pkt rtp.Packet
	for {
		msg, err := conn.Recv()
		if errors.Is(err, io.EOF) {
			return conn.SendAndClose(&emptypb.Empty{})
		}
		if err != nil {
			return err
		}

		data := msg.GetValue()
		if err := pkt.Unmarshal(data); err != nil || pkt.Version != 2 {
			s.log("dropping non RTP payload of %d bytes from peer %s", len(data), key.peer)
			continue
		}
		feed.Publish(data)
	}
}

func firstValue(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func stubAddress(conn MediaEngine_SendServer) string {
	p, ok := peer.FromContext(conn.Context())
	if !ok || p.Addr == nil {
		return ""
	}
	if ip := util.GetRemoteIPv4Address(p.Addr.String()); ip != "" {
		return ip
	}
	return p.Addr.String()
}
