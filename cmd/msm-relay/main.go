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

package main

import (
	"github.com/sirupsen/logrus"

	"github.com/media-streaming-mesh/msm-relay/internal/core"
)

func main() {
	app, err := core.InitializeApp()
	if err != nil {
		logrus.Fatalf("unable to initialize the relay: %v", err)
	}

	if err := app.Start(); err != nil {
		logrus.Fatalf("relay exited: %v", err)
	}
}
