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
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aler9/gortsplib/pkg/base"
)

var (
	sourcePathRe = regexp.MustCompile(`(?i)^/([^/.]+)\.sdp/?$`)
	streamPathRe = regexp.MustCompile(`(?i)^/([^/.]+)\.sdp/streamid=(\d+)/?$`)
)

// ErrInvalidPath is returned for request paths that name no source.
type ErrInvalidPath struct {
	Path string
}

func (e ErrInvalidPath) Error() string {
	return fmt.Sprintf("invalid path '%s'", e.Path)
}

type requestPath struct {
	sourceID  string
	stream    int
	hasStream bool
}

// parsePath accepts "/<id>.sdp" and "/<id>.sdp/streamid=<n>".
func parsePath(path string) (requestPath, error) {
	if m := streamPathRe.FindStringSubmatch(path); m != nil {
		index, err := strconv.Atoi(m[2])
		if err != nil {
			return requestPath{}, ErrInvalidPath{Path: path}
		}
		return requestPath{sourceID: m[1], stream: index, hasStream: true}, nil
	}
	if m := sourcePathRe.FindStringSubmatch(path); m != nil {
		return requestPath{sourceID: m[1]}, nil
	}
	return requestPath{}, ErrInvalidPath{Path: path}
}

// clientPorts returns the low port of every client_port=<lo>-<hi> field of
// a Transport header. Fields of other shapes are ignored.
func clientPorts(transport string) []int {
	var ports []int
	fields := strings.FieldsFunc(transport, func(r rune) bool {
		return r == ';' || r == ','
	})
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if len(field) < len("client_port=") || !strings.EqualFold(field[:len("client_port=")], "client_port=") {
			continue
		}
		lo, hi, ok := strings.Cut(field[len("client_port="):], "-")
		if !ok {
			continue
		}
		loPort, err := strconv.Atoi(lo)
		if err != nil || loPort <= 0 || loPort > 65535 {
			continue
		}
		if _, err := strconv.Atoi(hi); err != nil {
			continue
		}
		ports = append(ports, loPort)
	}
	return ports
}

func getSessionID(header base.Header) string {
	if h, ok := header["Session"]; ok && len(h) == 1 {
		// drop the ;timeout= suffix
		id, _, _ := strings.Cut(h[0], ";")
		return strings.TrimSpace(id)
	}
	return ""
}

func methodList(methods []base.Method) string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, string(m))
	}
	return strings.Join(out, ", ")
}
