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

import (
	"fmt"
	"os"
	"strings"
)

// Compatibility selects how strictly decoded field counts must match the
// declared shape of a type.
type Compatibility int

const (
	// CompatibilityNone requires an exact match of field count and type
	// signature.
	CompatibilityNone Compatibility = iota
	// CompatibilityBackwards allows decoding data written by an older
	// writer with fewer fields, through a fallback constructor.
	CompatibilityBackwards
	// CompatibilityForwards allows decoding data written by a newer writer
	// with extra trailing fields, which are parsed and discarded.
	CompatibilityForwards
	// CompatibilityAll allows both directions.
	CompatibilityAll
)

// CompatibilityEnv is the environment variable consulted at registry
// construction when no explicit option is given.
const CompatibilityEnv = "PICKLE_COMPATIBILITY"

func (c Compatibility) String() string {
	switch c {
	case CompatibilityNone:
		return "NONE"
	case CompatibilityBackwards:
		return "BACKWARDS"
	case CompatibilityForwards:
		return "FORWARDS"
	case CompatibilityAll:
		return "ALL"
	default:
		return fmt.Sprintf("Compatibility(%d)", int(c))
	}
}

// ParseCompatibility parses a mode name, case-insensitively.
func ParseCompatibility(s string) (Compatibility, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE", "":
		return CompatibilityNone, nil
	case "BACKWARDS":
		return CompatibilityBackwards, nil
	case "FORWARDS":
		return CompatibilityForwards, nil
	case "ALL":
		return CompatibilityAll, nil
	default:
		return CompatibilityNone, fmt.Errorf("pickle: unknown compatibility mode %q", s)
	}
}

// compatibilityFromEnv resolves the process-wide default. An unparsable
// value falls back to NONE, the strict default.
func compatibilityFromEnv() Compatibility {
	c, err := ParseCompatibility(os.Getenv(CompatibilityEnv))
	if err != nil {
		return CompatibilityNone
	}
	return c
}

func (c Compatibility) allowsFewer() bool {
	return c == CompatibilityBackwards || c == CompatibilityAll
}

func (c Compatibility) allowsMore() bool {
	return c == CompatibilityForwards || c == CompatibilityAll
}

// validateFieldCount checks an encoded field count against the declared one.
// Pure: the same inputs always produce the same answer.
func (c Compatibility) validateFieldCount(typeName string, declared, encoded int) error {
	switch {
	case encoded == declared:
		return nil
	case encoded < declared:
		if c.allowsFewer() {
			return nil
		}
		return fmt.Errorf("%w: compatibility mode %s cannot decode %d encoded fields into type %s declaring %d fields",
			ErrSchemaEvolution, c, encoded, typeName, declared)
	default:
		if c.allowsMore() {
			return nil
		}
		return fmt.Errorf("%w: compatibility mode %s cannot decode %d encoded fields into type %s declaring %d fields",
			ErrSchemaEvolution, c, encoded, typeName, declared)
	}
}
