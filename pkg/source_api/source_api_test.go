package source_api

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/media-streaming-mesh/msm-relay/internal/model"
)

// fakeKV keeps keys in memory. Methods it does not override panic.
type fakeKV struct {
	clientv3.KV

	mu   sync.Mutex
	data map[string]string
	err  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.data[key] = val
	return &clientv3.PutResponse{}, nil
}

func (f *fakeKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, key) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	resp := &clientv3.GetResponse{}
	for _, k := range keys {
		resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(f.data[k])})
	}
	return resp, nil
}

func (f *fakeKV) Delete(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return &clientv3.DeleteResponse{}, nil
}

func (f *fakeKV) value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

type fakeWatcher struct {
	clientv3.Watcher
	ch chan clientv3.WatchResponse
}

func (w *fakeWatcher) Watch(_ context.Context, _ string, _ ...clientv3.OpOption) clientv3.WatchChan {
	return w.ch
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func sourceData(id string) model.SourceData {
	return model.SourceData{
		ID:      id,
		Owner:   "10.0.0.1",
		Enabled: true,
		Clients: 2,
		Streams: []model.StreamData{
			{Index: 0, Kind: "audio", MuxID: "0"},
			{Index: 1, Kind: "video", MuxID: "1"},
		},
	}
}

func announced(id string, base string) model.SourceData {
	data := sourceData(id)
	data.URL = base + "/" + id + ".sdp"
	return data
}

func TestPutGetDelete(t *testing.T) {
	kv := newFakeKV()
	api := NewSourceAPIWithKV(testLogger(), kv, nil, "rtsp://192.0.2.1:8554/")
	ctx := context.Background()

	require.NoError(t, api.Put(ctx, sourceData("s2")))
	require.NoError(t, api.Put(ctx, sourceData("s1")))

	raw, ok := kv.value("sourceKey:s1")
	require.True(t, ok)
	var msg structpb.Struct
	require.NoError(t, proto.Unmarshal([]byte(raw), &msg))
	require.Equal(t, "rtsp://192.0.2.1:8554/s1.sdp", msg.GetFields()["rtspUrl"].GetStringValue())

	sources, err := api.GetSources(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.SourceData{
		announced("s1", "rtsp://192.0.2.1:8554"),
		announced("s2", "rtsp://192.0.2.1:8554"),
	}, sources)

	require.NoError(t, api.Delete(ctx, "s1"))
	_, ok = kv.value("sourceKey:s1")
	require.False(t, ok)
}

func TestGetSourcesSkipsGarbage(t *testing.T) {
	kv := newFakeKV()
	kv.data["sourceKey:bad"] = "\xff\xff"
	api := NewSourceAPIWithKV(testLogger(), kv, nil, "rtsp://192.0.2.1:8554")

	require.NoError(t, api.Put(context.Background(), sourceData("s1")))
	sources, err := api.GetSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "s1", sources[0].ID)
}

func TestRunMirrorsEvents(t *testing.T) {
	kv := newFakeKV()
	api := NewSourceAPIWithKV(testLogger(), kv, nil, "rtsp://192.0.2.1:8554")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- api.Run(ctx) }()

	api.Listen(model.SourceEvent{Type: model.SourceCreated, Source: sourceData("s1")})
	require.Eventually(t, func() bool {
		_, ok := kv.value("sourceKey:s1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	api.Listen(model.SourceEvent{Type: model.SourceRemoved, Source: model.SourceData{ID: "s1"}})
	require.Eventually(t, func() bool {
		_, ok := kv.value("sourceKey:s1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestListenDropsWhenFull(t *testing.T) {
	api := NewSourceAPIWithKV(testLogger(), newFakeKV(), nil, "")

	for i := 0; i < queueSize+10; i++ {
		api.Listen(model.SourceEvent{Type: model.StreamAdded, Source: sourceData("s1")})
	}
	require.Len(t, api.events, queueSize)
}

func TestRunSurvivesErrors(t *testing.T) {
	kv := newFakeKV()
	kv.err = errors.New("etcd unavailable")
	api := NewSourceAPIWithKV(testLogger(), kv, nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- api.Run(ctx) }()

	api.Listen(model.SourceEvent{Type: model.SourceEnabled, Source: sourceData("s1")})
	require.Eventually(t, func() bool { return len(api.events) == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchSources(t *testing.T) {
	kv := newFakeKV()
	api := NewSourceAPIWithKV(testLogger(), kv, nil, "rtsp://192.0.2.1:8554")
	require.NoError(t, api.Put(context.Background(), sourceData("s1")))
	raw, _ := kv.value("sourceKey:s1")

	watcher := &fakeWatcher{ch: make(chan clientv3.WatchResponse, 1)}
	api.watcher = watcher
	watcher.ch <- clientv3.WatchResponse{Events: []*clientv3.Event{
		{Type: mvccpb.PUT, Kv: &mvccpb.KeyValue{Key: []byte("sourceKey:s1"), Value: []byte(raw)}},
		{Type: mvccpb.DELETE, Kv: &mvccpb.KeyValue{Key: []byte("sourceKey:s1")}},
	}}
	close(watcher.ch)

	updates := make(chan SourceUpdate, 2)
	require.NoError(t, api.WatchSources(context.Background(), updates))

	require.Equal(t, SourceUpdate{Source: announced("s1", "rtsp://192.0.2.1:8554")}, <-updates)
	require.Equal(t, SourceUpdate{Deleted: true, Source: model.SourceData{ID: "s1"}}, <-updates)
}

func TestPurgeStale(t *testing.T) {
	kv := newFakeKV()
	ctx := context.Background()

	other := NewSourceAPIWithKV(testLogger(), kv, nil, "rtsp://192.0.2.2:8554")
	require.NoError(t, other.Put(ctx, sourceData("o1")))

	api := NewSourceAPIWithKV(testLogger(), kv, nil, "rtsp://192.0.2.1:8554/")
	require.NoError(t, api.Put(ctx, sourceData("s1")))
	require.NoError(t, api.Put(ctx, sourceData("s2")))

	n, err := api.PurgeStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	sources, err := api.GetSources(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.SourceData{announced("o1", "rtsp://192.0.2.2:8554")}, sources)
}
