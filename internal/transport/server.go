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

package transport

import (
	"errors"
	"sync"

	"google.golang.org/grpc"
)

// Run serves the media engine service until the context is done.
func Run(opts ...Option) error {
	cfg, err := newOptions(opts...)
	if err != nil {
		return err
	}

	log := cfg.logger

	grpcServer, err := newGrpcServer(cfg)
	if err != nil {
		return err
	}

	wg := sync.WaitGroup{}

	var gprcErrs = make(chan error, 1)
	wg.Add(1)
	go func() {
		err := grpcServer.start()
		gprcErrs <- err
		log.Debugf("GRPC server has exited, err=%v", err)
		wg.Done()
	}()

	defer wg.Wait() // Wait for server run processes to exit before returning

	select {
	case err := <-gprcErrs:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		log.Errorf("failed to run the GRPC server, err=%v", err)
		return err
	case <-cfg.ctx.Done():
		grpcServer.close()
		return nil
	}
}
