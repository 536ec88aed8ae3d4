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

package source

import (
	"errors"
	"fmt"
)

// ErrUnknownSource is returned when an id has no registered, enabled source.
var ErrUnknownSource = errors.New("source not found")

// ErrUnknownStream is an error that can be returned by a source.
type ErrUnknownStream struct {
	Index int
}

// Error implements the error interface.
func (e ErrUnknownStream) Error() string {
	return fmt.Sprintf("stream id [%d] not found", e.Index)
}

// ErrUnknownClient is an error that can be returned by a source.
type ErrUnknownClient struct {
	ClientID string
}

// Error implements the error interface.
func (e ErrUnknownClient) Error() string {
	return fmt.Sprintf("client id [%s] not found", e.ClientID)
}

// ErrInvalidAddress is an error that can be returned by a source.
type ErrInvalidAddress struct {
	Address string
}

// Error implements the error interface.
func (e ErrInvalidAddress) Error() string {
	return fmt.Sprintf("invalid address '%s'", e.Address)
}
