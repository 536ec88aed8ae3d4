package source_api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/media-streaming-mesh/msm-relay/internal/model"
)

const (
	keyPrefix = "sourceKey:"
	queueSize = 256
)

var requestTimeout = 10 * time.Second

// SourceAPI mirrors the sources of the relay to etcd.
type SourceAPI struct {
	logger  *logrus.Logger
	client  *clientv3.Client
	kv      clientv3.KV
	watcher clientv3.Watcher
	rtspURL string
	events  chan model.SourceEvent
}

// SourceUpdate is a change of an announced source seen by WatchSources.
// Source only carries the id when Deleted is set.
type SourceUpdate struct {
	Deleted bool
	Source  model.SourceData
}

func NewSourceAPI(logger *logrus.Logger, endpoints []string, dialTimeout time.Duration, rtspURL string) (*SourceAPI, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		logger.Errorf("[Source API] create client error %v", err)
		return nil, err
	}

	s := NewSourceAPIWithKV(logger, cli.KV, cli.Watcher, rtspURL)
	s.client = cli
	return s, nil
}

// NewSourceAPIWithKV uses the given etcd KV and Watcher instead of dialing.
func NewSourceAPIWithKV(logger *logrus.Logger, kv clientv3.KV, watcher clientv3.Watcher, rtspURL string) *SourceAPI {
	return &SourceAPI{
		logger:  logger,
		kv:      kv,
		watcher: watcher,
		rtspURL: strings.TrimSuffix(rtspURL, "/"),
		events:  make(chan model.SourceEvent, queueSize),
	}
}

func (s *SourceAPI) log(format string, args ...interface{}) {
	s.logger.Debugf("[Source API] %s", fmt.Sprintf(format, args...))
}

func (s *SourceAPI) logError(format string, args ...interface{}) {
	s.logger.Errorf("[Source API] %s", fmt.Sprintf(format, args...))
}

// Listen queues a registry event for Run. It never blocks: the event is
// dropped when the queue is full.
func (s *SourceAPI) Listen(ev model.SourceEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warnf("[Source API] queue full, dropping %s event of source %s", ev.Type, ev.Source.ID)
	}
}

// Run writes queued events to etcd until ctx is done.
func (s *SourceAPI) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			if err := s.apply(ctx, ev); err != nil {
				s.logError("%s event of source %s failed: %v", ev.Type, ev.Source.ID, err)
			}
		}
	}
}

func (s *SourceAPI) apply(ctx context.Context, ev model.SourceEvent) error {
	if ev.Type == model.SourceRemoved {
		return s.Delete(ctx, ev.Source.ID)
	}
	return s.Put(ctx, ev.Source)
}

func sourceKey(id string) string {
	return keyPrefix + id
}

func (s *SourceAPI) Put(ctx context.Context, data model.SourceData) error {
	msg, err := s.encode(data)
	if err != nil {
		return err
	}
	protoData, err := proto.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	resp, err := s.kv.Put(ctx, sourceKey(data.ID), string(protoData))
	cancel()
	if err != nil {
		return err
	}
	s.log("PUT %s response %v", data.ID, resp)
	return nil
}

func (s *SourceAPI) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	resp, err := s.kv.Delete(ctx, sourceKey(id))
	cancel()
	if err != nil {
		return err
	}
	s.log("DELETE %s response %v", id, resp)
	return nil
}

// GetSources lists the announced sources sorted by id.
func (s *SourceAPI) GetSources(ctx context.Context) ([]model.SourceData, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	resp, err := s.kv.Get(ctx, keyPrefix, clientv3.WithPrefix())
	cancel()
	if err != nil {
		return nil, err
	}

	sources := make([]model.SourceData, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		data, err := decode(kv.Value)
		if err != nil {
			s.logError("skipping %s: %v", kv.Key, err)
			continue
		}
		sources = append(sources, data)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources, nil
}

// WatchSources sends every change under the source prefix to updates
// until ctx is done.
func (s *SourceAPI) WatchSources(ctx context.Context, updates chan<- SourceUpdate) error {
	if s.watcher == nil {
		return errors.New("no etcd watcher")
	}

	s.log("Start WATCH")
	watchChan := s.watcher.Watch(ctx, keyPrefix, clientv3.WithPrefix())
	for resp := range watchChan {
		if err := resp.Err(); err != nil {
			return err
		}
		for _, event := range resp.Events {
			var update SourceUpdate
			switch event.Type {
			case mvccpb.PUT:
				data, err := decode(event.Kv.Value)
				if err != nil {
					s.logError("skipping %s: %v", event.Kv.Key, err)
					continue
				}
				update.Source = data
			case mvccpb.DELETE:
				update.Deleted = true
				update.Source.ID = strings.TrimPrefix(string(event.Kv.Key), keyPrefix)
			}

			select {
			case updates <- update:
			case <-ctx.Done():
				return nil
			}
		}
	}
	return nil
}

// PurgeStale deletes the announcements served by this relay's RTSP URL,
// left over from an earlier run, and returns how many went away.
func (s *SourceAPI) PurgeStale(ctx context.Context) (int, error) {
	sources, err := s.GetSources(ctx)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, src := range sources {
		if src.URL != s.sourceURL(src.ID) {
			continue
		}
		if err := s.Delete(ctx, src.ID); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func (s *SourceAPI) sourceURL(id string) string {
	return fmt.Sprintf("%s/%s.sdp", s.rtspURL, id)
}

func (s *SourceAPI) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *SourceAPI) encode(data model.SourceData) (*structpb.Struct, error) {
	streams := make([]interface{}, 0, len(data.Streams))
	for _, st := range data.Streams {
		streams = append(streams, map[string]interface{}{
			"index": st.Index,
			"kind":  st.Kind,
			"mid":   st.MuxID,
		})
	}

	return structpb.NewStruct(map[string]interface{}{
		"id":      data.ID,
		"owner":   data.Owner,
		"enabled": data.Enabled,
		"clients": data.Clients,
		"rtspUrl": s.sourceURL(data.ID),
		"streams": streams,
	})
}

func decode(value []byte) (model.SourceData, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(value, &msg); err != nil {
		return model.SourceData{}, err
	}

	fields := msg.GetFields()
	data := model.SourceData{
		ID:      fields["id"].GetStringValue(),
		Owner:   fields["owner"].GetStringValue(),
		Enabled: fields["enabled"].GetBoolValue(),
		Clients: int(fields["clients"].GetNumberValue()),
		Streams: []model.StreamData{},
		URL:     fields["rtspUrl"].GetStringValue(),
	}
	for _, v := range fields["streams"].GetListValue().GetValues() {
		st := v.GetStructValue().GetFields()
		data.Streams = append(data.Streams, model.StreamData{
			Index: int(st["index"].GetNumberValue()),
			Kind:  st["kind"].GetStringValue(),
			MuxID: st["mid"].GetStringValue(),
		})
	}
	if data.ID == "" {
		return data, errors.New("source id missing")
	}
	return data, nil
}
