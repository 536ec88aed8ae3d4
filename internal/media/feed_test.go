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

package media

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeedPublish(t *testing.T) {
	f := NewFeed(Audio, RTPParameters{MuxID: "0"})

	var got [][]byte
	f.Subscribe(func(pkt []byte) {
		got = append(got, append([]byte(nil), pkt...))
	}, nil)

	f.Publish([]byte{1, 2, 3})
	f.Publish([]byte{4})

	require.Equal(t, [][]byte{{1, 2, 3}, {4}}, got)
	require.Equal(t, Audio, f.Kind())
	require.Equal(t, "0", f.Parameters().MuxID)
}

func TestFeedCancel(t *testing.T) {
	f := NewFeed(Video, RTPParameters{})

	count := 0
	sub := f.Subscribe(func(pkt []byte) { count++ }, nil)
	f.Publish([]byte{1})
	sub.Cancel()
	sub.Cancel()
	f.Publish([]byte{1})

	require.Equal(t, 1, count)
}

func TestFeedCancelFromHandler(t *testing.T) {
	f := NewFeed(Video, RTPParameters{})

	count := 0
	var sub Subscription
	sub = f.Subscribe(func(pkt []byte) {
		count++
		sub.Cancel()
	}, nil)

	f.Publish([]byte{1})
	f.Publish([]byte{1})
	require.Equal(t, 1, count)
}

func TestFeedClose(t *testing.T) {
	f := NewFeed(Audio, RTPParameters{})

	closes := 0
	packets := 0
	f.Subscribe(func(pkt []byte) { packets++ }, func() { closes++ })

	f.Close()
	f.Close()
	f.Publish([]byte{1})

	require.True(t, f.Closed())
	require.Equal(t, 1, closes)
	require.Equal(t, 0, packets)

	late := 0
	f.Subscribe(nil, func() { late++ })
	require.Equal(t, 1, late)
}
