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
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aler9/gortsplib/pkg/base"
	"github.com/aler9/gortsplib/pkg/liberrors"

	"github.com/media-streaming-mesh/msm-relay/internal/source"
)

// handleRequest always returns a response; the connection stays usable
// whatever the outcome.
func (r *RTSP) handleRequest(req *base.Request, rc *RTSPConnection) (res *base.Response) {
	var cSeq base.HeaderValue
	var ok bool

	if cSeq, ok = req.Header["CSeq"]; !ok || len(cSeq) != 1 {
		r.logError("%v", liberrors.ErrServerCSeqMissing{})
		return &base.Response{
			StatusCode: base.StatusBadRequest,
			Header:     base.Header{},
		}
	}

	defer func() {
		if p := recover(); p != nil {
			r.logError("panic handling %s %s: %v", req.Method, req.URL, p)
			res = errorResponse(base.StatusInternalServerError, fmt.Errorf("%v", p))
		}
		// reflect back the cSeq
		res.Header["CSeq"] = cSeq
		res.Header["Date"] = base.HeaderValue{time.Now().UTC().Format(http.TimeFormat)}
	}()

	if sxID := getSessionID(req.Header); sxID != "" && sxID != rc.sessionID {
		r.log("session %s of %s does not match %s", sxID, rc.remoteIP, rc.sessionID)
	}

	if req.Method != base.Describe && rc.sourceID != "" {
		if _, err := r.registry.GetEnabled(rc.sourceID); err != nil {
			r.log("source %s of %s is gone", rc.sourceID, rc.remoteIP)
			return &base.Response{StatusCode: base.StatusNotFound, Header: base.Header{}}
		}
	}

	var err error
	switch req.Method {
	case base.Options:
		res, err = r.OnOptions(req, rc)
	case base.Describe:
		res, err = r.OnDescribe(req, rc)
	case base.Setup:
		res, err = r.OnSetup(req, rc)
	case base.Play:
		res, err = r.OnPlay(req, rc)
	case base.Pause:
		res, err = r.OnPause(req, rc)
	case base.Teardown:
		res, err = r.OnTeardown(req, rc)
	default:
		r.log("method %s not implemented", req.Method)
		return &base.Response{StatusCode: base.StatusNotImplemented, Header: base.Header{}}
	}

	if err != nil {
		r.logError("%s %s from %s: %v", req.Method, req.URL, rc.remoteIP, err)
		return errorResponse(statusFor(err), err)
	}
	return res
}

func statusFor(err error) base.StatusCode {
	var pathErr ErrInvalidPath
	switch {
	case errors.Is(err, source.ErrUnknownSource):
		return base.StatusNotFound
	case errors.As(err, &pathErr):
		return base.StatusBadRequest
	}
	return base.StatusInternalServerError
}

func errorResponse(code base.StatusCode, err error) *base.Response {
	res := &base.Response{
		StatusCode: code,
		Header:     base.Header{},
	}
	if code == base.StatusInternalServerError || code == base.StatusBadRequest {
		// header values are single lines
		msg := strings.NewReplacer("\r", " ", "\n", " ").Replace(err.Error())
		res.Header["Error"] = base.HeaderValue{msg}
	}
	return res
}
