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

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/keeldb/keel/pkg/common/kerr"
)

// TupleElement is one boxed field value. nil represents NULL.
type TupleElement any

// Tuple is the generic (boxed) encoding of a field sequence.
type Tuple []TupleElement

func (tp Tuple) String() string {
	var res strings.Builder
	res.WriteString("(")
	for i, t := range tp {
		if i > 0 {
			res.WriteString(",")
		}
		switch t := t.(type) {
		case nil:
			res.WriteString("null")
		case []byte:
			res.WriteString(string(t))
		default:
			fmt.Fprintf(&res, "%v", t)
		}
	}
	res.WriteString(")")
	return res.String()
}

// HasNull reports whether any element of the tuple is NULL.
func (tp Tuple) HasNull() bool {
	for _, t := range tp {
		if t == nil {
			return true
		}
	}
	return false
}

// The packed encoding stores a tuple in one contiguous byte buffer: a
// type-code byte per element, variable-length two's-complement integers
// around intZeroCode, sign-adjusted big-endian floats, and 0x00-escaped
// byte strings. Equal tuples pack to equal buffers, so structural
// comparison and hashing work directly on the bytes, and appending the
// packed form of tuple B to the packed form of tuple A yields exactly
// the packed form of A++B. The join's packed output path relies on both
// properties.
const (
	nilCode        = 0x00
	bytesCode      = 0x01
	intZeroCode    = 0x14
	float32Code    = 0x20
	float64Code    = 0x21
	falseCode      = 0x26
	trueCode       = 0x27
	int8Code       = 0x28
	int16Code      = 0x29
	int32Code      = 0x3a
	int64Code      = 0x3b
	uint8Code      = 0x3c
	uint16Code     = 0x3d
	uint32Code     = 0x3e
	uint64Code     = 0x40
	stringTypeCode = 0x46
)

var sizeLimits = []uint64{
	1<<(0*8) - 1,
	1<<(1*8) - 1,
	1<<(2*8) - 1,
	1<<(3*8) - 1,
	1<<(4*8) - 1,
	1<<(5*8) - 1,
	1<<(6*8) - 1,
	1<<(7*8) - 1,
	1<<(8*8) - 1,
}

func bisectLeft(u uint64) int {
	var n int
	for sizeLimits[n] < u {
		n++
	}
	return n
}

// Packer encodes a sequence of elements into the packed form. The buffer
// is reused across Reset calls; Bytes returns a stable copy.
type Packer struct {
	buf []byte
}

func NewPacker() *Packer {
	return &Packer{}
}

func (p *Packer) Reset() {
	p.buf = p.buf[:0]
}

// GetBuf returns the internal buffer. It is only valid until the next
// Encode or Reset call.
func (p *Packer) GetBuf() []byte {
	return p.buf
}

// Bytes returns a copy of the packed buffer that survives Reset.
func (p *Packer) Bytes() []byte {
	return append([]byte(nil), p.buf...)
}

func (p *Packer) EncodeNull() {
	p.buf = append(p.buf, nilCode)
}

// EncodeRaw appends bytes verbatim. The buffer stops being a packed
// tuple afterwards; callers that only need comparable key bytes use it
// for out-of-codec values.
func (p *Packer) EncodeRaw(b []byte) {
	p.buf = append(p.buf, b...)
}

func (p *Packer) EncodeBool(v bool) {
	if v {
		p.buf = append(p.buf, trueCode)
	} else {
		p.buf = append(p.buf, falseCode)
	}
}

func (p *Packer) encodeInt(code byte, v int64) {
	p.buf = append(p.buf, code)
	if v == 0 {
		p.buf = append(p.buf, intZeroCode)
		return
	}
	var n int
	if v > 0 {
		n = bisectLeft(uint64(v))
		p.buf = append(p.buf, byte(intZeroCode+n))
	} else {
		n = bisectLeft(uint64(-(v + 1)) + 1)
		p.buf = append(p.buf, byte(intZeroCode-n))
	}
	// negative values are stored offset by sizeLimits[n]; the wrap-around
	// of uint64 addition produces exactly the right low n bytes
	stored := uint64(v)
	if v < 0 {
		stored += sizeLimits[n]
	}
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], stored)
	p.buf = append(p.buf, scratch[8-n:]...)
}

func (p *Packer) encodeUint(code byte, v uint64) {
	p.buf = append(p.buf, code)
	if v == 0 {
		p.buf = append(p.buf, intZeroCode)
		return
	}
	n := bisectLeft(v)
	p.buf = append(p.buf, byte(intZeroCode+n))
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], v)
	p.buf = append(p.buf, scratch[8-n:]...)
}

func (p *Packer) EncodeInt8(v int8)     { p.encodeInt(int8Code, int64(v)) }
func (p *Packer) EncodeInt16(v int16)   { p.encodeInt(int16Code, int64(v)) }
func (p *Packer) EncodeInt32(v int32)   { p.encodeInt(int32Code, int64(v)) }
func (p *Packer) EncodeInt64(v int64)   { p.encodeInt(int64Code, v) }
func (p *Packer) EncodeUint8(v uint8)   { p.encodeUint(uint8Code, uint64(v)) }
func (p *Packer) EncodeUint16(v uint16) { p.encodeUint(uint16Code, uint64(v)) }
func (p *Packer) EncodeUint32(v uint32) { p.encodeUint(uint32Code, uint64(v)) }
func (p *Packer) EncodeUint64(v uint64) { p.encodeUint(uint64Code, v) }

func adjustFloatBytes(b []byte, encode bool) {
	if (encode && b[0]&0x80 != 0x00) || (!encode && b[0]&0x80 == 0x00) {
		// Negative numbers: flip all of the bytes.
		for i := 0; i < len(b); i++ {
			b[i] = b[i] ^ 0xff
		}
	} else {
		// Positive number: flip just the sign bit.
		b[0] = b[0] ^ 0x80
	}
}

func (p *Packer) EncodeFloat32(v float32) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], math.Float32bits(v))
	adjustFloatBytes(scratch[:], true)
	p.buf = append(p.buf, float32Code)
	p.buf = append(p.buf, scratch[:]...)
}

func (p *Packer) EncodeFloat64(v float64) {
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], math.Float64bits(v))
	adjustFloatBytes(scratch[:], true)
	p.buf = append(p.buf, float64Code)
	p.buf = append(p.buf, scratch[:]...)
}

// EncodeStringType writes a byte-string element. 0x00 bytes in the value
// are escaped as 0x00 0xFF so the 0x00 terminator stays unambiguous.
func (p *Packer) EncodeStringType(v []byte) {
	p.buf = append(p.buf, stringTypeCode, bytesCode)
	for _, b := range v {
		p.buf = append(p.buf, b)
		if b == 0x00 {
			p.buf = append(p.buf, 0xFF)
		}
	}
	p.buf = append(p.buf, 0x00)
}

// EncodeTupleElement dispatches on the boxed value. A nil element packs
// as NULL.
func (p *Packer) EncodeTupleElement(e TupleElement) error {
	switch v := e.(type) {
	case nil:
		p.EncodeNull()
	case bool:
		p.EncodeBool(v)
	case int8:
		p.EncodeInt8(v)
	case int16:
		p.EncodeInt16(v)
	case int32:
		p.EncodeInt32(v)
	case int64:
		p.EncodeInt64(v)
	case uint8:
		p.EncodeUint8(v)
	case uint16:
		p.EncodeUint16(v)
	case uint32:
		p.EncodeUint32(v)
	case uint64:
		p.EncodeUint64(v)
	case float32:
		p.EncodeFloat32(v)
	case float64:
		p.EncodeFloat64(v)
	case []byte:
		p.EncodeStringType(v)
	case string:
		p.EncodeStringType([]byte(v))
	default:
		return kerr.NewNotSupported("packing element of type %T", e)
	}
	return nil
}

func findTerminator(b []byte) int {
	var length int
	bp := b
	for {
		idx := bytes.IndexByte(bp, 0x00)
		if idx < 0 {
			return len(b)
		}
		length += idx
		if idx+1 == len(bp) || bp[idx+1] != 0xFF {
			return length
		}
		length += 2
		bp = bp[idx+2:]
	}
}

func decodeBytes(b []byte) ([]byte, int) {
	idx := findTerminator(b[1:])
	return bytes.ReplaceAll(b[1:idx+1], []byte{0x00, 0xFF}, []byte{0x00}), idx + 2
}

func decodeInt(code byte, b []byte) (TupleElement, int) {
	if b[0] == intZeroCode {
		switch code {
		case int8Code:
			return int8(0), 1
		case int16Code:
			return int16(0), 1
		case int32Code:
			return int32(0), 1
		default:
			return int64(0), 1
		}
	}

	var neg bool
	n := int(b[0]) - intZeroCode
	if n < 0 {
		n = -n
		neg = true
	}

	var scratch [8]byte
	copy(scratch[8-n:], b[1:n+1])
	ret := int64(binary.BigEndian.Uint64(scratch[:]))
	if neg {
		ret -= int64(sizeLimits[n])
	}

	switch code {
	case int8Code:
		return int8(ret), n + 1
	case int16Code:
		return int16(ret), n + 1
	case int32Code:
		return int32(ret), n + 1
	default:
		return ret, n + 1
	}
}

func decodeUint(code byte, b []byte) (TupleElement, int) {
	if b[0] == intZeroCode {
		switch code {
		case uint8Code:
			return uint8(0), 1
		case uint16Code:
			return uint16(0), 1
		case uint32Code:
			return uint32(0), 1
		default:
			return uint64(0), 1
		}
	}
	n := int(b[0]) - intZeroCode

	var scratch [8]byte
	copy(scratch[8-n:], b[1:n+1])
	ret := binary.BigEndian.Uint64(scratch[:])

	switch code {
	case uint8Code:
		return uint8(ret), n + 1
	case uint16Code:
		return uint16(ret), n + 1
	case uint32Code:
		return uint32(ret), n + 1
	default:
		return ret, n + 1
	}
}

func decodeFloat32(b []byte) (float32, int) {
	var scratch [4]byte
	copy(scratch[:], b[1:5])
	adjustFloatBytes(scratch[:], false)
	return math.Float32frombits(binary.BigEndian.Uint32(scratch[:])), 5
}

func decodeFloat64(b []byte) (float64, int) {
	var scratch [8]byte
	copy(scratch[:], b[1:9])
	adjustFloatBytes(scratch[:], false)
	return math.Float64frombits(binary.BigEndian.Uint64(scratch[:])), 9
}

func decodeTuple(b []byte) (Tuple, int, []T, error) {
	var t Tuple

	var i int
	schema := make([]T, 0, 4)
	for i < len(b) {
		var el TupleElement
		var off int

		switch {
		case b[i] == nilCode:
			schema = append(schema, T_any)
			el, off = nil, 1
		case b[i] == trueCode:
			schema = append(schema, T_bool)
			el, off = true, 1
		case b[i] == falseCode:
			schema = append(schema, T_bool)
			el, off = false, 1
		case b[i] == int8Code:
			schema = append(schema, T_int8)
			el, off = decodeInt(int8Code, b[i+1:])
			off += 1
		case b[i] == int16Code:
			schema = append(schema, T_int16)
			el, off = decodeInt(int16Code, b[i+1:])
			off += 1
		case b[i] == int32Code:
			schema = append(schema, T_int32)
			el, off = decodeInt(int32Code, b[i+1:])
			off += 1
		case b[i] == int64Code:
			schema = append(schema, T_int64)
			el, off = decodeInt(int64Code, b[i+1:])
			off += 1
		case b[i] == uint8Code:
			schema = append(schema, T_uint8)
			el, off = decodeUint(uint8Code, b[i+1:])
			off += 1
		case b[i] == uint16Code:
			schema = append(schema, T_uint16)
			el, off = decodeUint(uint16Code, b[i+1:])
			off += 1
		case b[i] == uint32Code:
			schema = append(schema, T_uint32)
			el, off = decodeUint(uint32Code, b[i+1:])
			off += 1
		case b[i] == uint64Code:
			schema = append(schema, T_uint64)
			el, off = decodeUint(uint64Code, b[i+1:])
			off += 1
		case b[i] == float32Code:
			schema = append(schema, T_float32)
			el, off = decodeFloat32(b[i:])
		case b[i] == float64Code:
			schema = append(schema, T_float64)
			el, off = decodeFloat64(b[i:])
		case b[i] == stringTypeCode:
			schema = append(schema, T_varchar)
			el, off = decodeBytes(b[i+1:])
			off += 1
		default:
			return nil, i, nil, kerr.NewInternal("unable to decode tuple element with unknown typecode %02x", b[i])
		}
		t = append(t, el)
		i += off
	}

	return t, i, schema, nil
}

// Unpack decodes a packed buffer back into a boxed tuple.
func Unpack(b []byte) (Tuple, error) {
	t, _, _, err := decodeTuple(b)
	return t, err
}

// UnpackWithSchema also reports the type tag of each decoded element.
// NULL elements decode as T_any.
func UnpackWithSchema(b []byte) (Tuple, []T, error) {
	t, _, schema, err := decodeTuple(b)
	return t, schema, err
}
