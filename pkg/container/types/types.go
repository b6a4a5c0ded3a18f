// Copyright 2025 Keel DB
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

// T is the field type tag.
type T uint8

const (
	T_any T = 0

	T_bool T = 10

	T_int8  T = 20
	T_int16 T = 21
	T_int32 T = 22
	T_int64 T = 23

	T_uint8  T = 24
	T_uint16 T = 25
	T_uint32 T = 26
	T_uint64 T = 27

	T_float32 T = 30
	T_float64 T = 31

	T_varchar T = 40
	T_json    T = 41
)

// Type describes one schema field.
type Type struct {
	Oid T
	// Width is a declared length limit for varchar fields, 0 when unbounded.
	Width int32
}

func New(oid T, width int32) Type {
	return Type{Oid: oid, Width: width}
}

func (t T) ToType() Type {
	return Type{Oid: t}
}

func (t Type) String() string {
	return t.Oid.String()
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int8:
		return "TINYINT"
	case T_int16:
		return "SMALLINT"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_uint8:
		return "TINYINT UNSIGNED"
	case T_uint16:
		return "SMALLINT UNSIGNED"
	case T_uint32:
		return "INT UNSIGNED"
	case T_uint64:
		return "BIGINT UNSIGNED"
	case T_float32:
		return "FLOAT"
	case T_float64:
		return "DOUBLE"
	case T_varchar:
		return "VARCHAR"
	case T_json:
		return "JSON"
	}
	return "unknown type"
}

// FixedSized reports whether values of the type occupy a fixed number of
// bytes.
func (t T) FixedSized() bool {
	switch t {
	case T_varchar, T_json, T_any:
		return false
	}
	return true
}

// Packable reports whether the packed tuple codec can represent values
// of the type. The packed row path is only eligible when every key and
// output field type is packable.
func (t T) Packable() bool {
	switch t {
	case T_any, T_json:
		return false
	}
	return true
}

// TypeSize returns the in-memory size of a fixed-sized type, and the
// pointer-and-length size for the rest. Used for memory accounting only.
func (t T) TypeSize() int {
	switch t {
	case T_bool, T_int8, T_uint8:
		return 1
	case T_int16, T_uint16:
		return 2
	case T_int32, T_uint32, T_float32:
		return 4
	case T_int64, T_uint64, T_float64:
		return 8
	}
	return 24
}
