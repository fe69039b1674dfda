// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package pickle

import "errors"

var (
	// ErrUnsupportedType reports a Go type the codec cannot represent.
	// Raised at registry construction, never during encode/decode.
	ErrUnsupportedType = errors.New("pickle: unsupported type")

	// ErrUnknownType reports a concrete type that was not discovered during
	// registry construction, e.g. an unregistered variant assigned to an
	// interface field.
	ErrUnknownType = errors.New("pickle: unknown type")

	// ErrCorrupt reports a malformed byte stream. Decoding stops at the
	// first corruption; no partial value is returned.
	ErrCorrupt = errors.New("pickle: corrupt data")

	// ErrSchemaEvolution reports an encoded shape that the configured
	// compatibility mode does not allow to be decoded.
	ErrSchemaEvolution = errors.New("pickle: incompatible schema")

	// ErrDepthExceeded reports a value graph deeper than the configured
	// recursion limit.
	ErrDepthExceeded = errors.New("pickle: max depth exceeded")
)
