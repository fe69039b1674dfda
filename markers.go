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

// Wire markers. Every encoded value starts with one marker byte, which makes
// the stream fully self-describing: a reader can always consume a value it
// does not understand. Zero is reserved for null so a zeroed buffer never
// parses as data.
const (
	markerNull            int8 = 0
	markerBool            int8 = -1
	markerInt8            int8 = -2
	markerInt16           int8 = -3
	markerChar            int8 = -4
	markerInt32           int8 = -5
	markerInt64           int8 = -6
	markerFloat32         int8 = -7
	markerFloat64         int8 = -8
	markerString          int8 = -9
	markerStruct          int8 = -10
	markerEnum            int8 = -11
	markerArray           int8 = -12
	markerMap             int8 = -13
	markerOptionalEmpty   int8 = -14
	markerOptionalPresent int8 = -15
	markerList            int8 = -16
	markerInternedName    int8 = -17
	markerInternedOffset  int8 = -18
	markerSameType        int8 = -19
	markerUUID            int8 = -20
)

// Array payload forms for the adaptive numeric codecs.
const (
	arrayFormFixed  int8 = 0
	arrayFormVarint int8 = 1
)

func markerName(m int8) string {
	switch m {
	case markerNull:
		return "null"
	case markerBool:
		return "bool"
	case markerInt8:
		return "int8"
	case markerInt16:
		return "int16"
	case markerChar:
		return "char"
	case markerInt32:
		return "int32"
	case markerInt64:
		return "int64"
	case markerFloat32:
		return "float32"
	case markerFloat64:
		return "float64"
	case markerString:
		return "string"
	case markerStruct:
		return "struct"
	case markerEnum:
		return "enum"
	case markerArray:
		return "array"
	case markerMap:
		return "map"
	case markerOptionalEmpty:
		return "optional-empty"
	case markerOptionalPresent:
		return "optional-present"
	case markerList:
		return "list"
	case markerInternedName:
		return "interned-name"
	case markerInternedOffset:
		return "interned-offset"
	case markerSameType:
		return "same-type"
	case markerUUID:
		return "uuid"
	default:
		return "unknown"
	}
}
