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
	"context"
	"errors"
	"io"
	"net"

	"github.com/aler9/gortsplib/pkg/base"
)

const readBufferSize = 4096

// Serve accepts RTSP connections on ln until ctx is done, then closes
// every open connection and waits for their loops to exit.
func (r *RTSP) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	r.logger.Infof("RTSP listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			r.closeAll()
			r.wg.Wait()

			select {
			case <-ctx.Done():
				r.logger.Debugf("RTSP server stopped")
				return nil
			default:
			}
			return err
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.handleConn(conn)
		}()
	}
}

func (r *RTSP) handleConn(conn net.Conn) {
	rc := newRTSPConnection(conn.LocalAddr(), conn.RemoteAddr())
	rc.conn = conn
	r.rtspConn.Store(rc.key, rc)
	r.logger.Infof("RTSP connection %s from client %s", rc.state, conn.RemoteAddr())

	defer func() {
		rc.state = Closed
		r.rtspConn.Delete(rc.key)
		conn.Close()
		r.logger.Infof("RTSP connection %s from client %s", rc.state, conn.RemoteAddr())
	}()

	rb := bufio.NewReaderSize(conn, readBufferSize)

	for {
		req := &base.Request{}
		if err := req.Read(rb); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				r.logError("reading request from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		res := r.handleRequest(req, rc)

		b, err := res.Marshal()
		if err != nil {
			r.logError("could not marshal response, error: %v", err)
			return
		}
		if _, err := conn.Write(b); err != nil {
			r.logError("could not send response, error: %v", err)
			return
		}
	}
}

func (r *RTSP) closeAll() {
	r.rtspConn.Range(func(_, v interface{}) bool {
		v.(*RTSPConnection).conn.Close()
		return true
	})
}
