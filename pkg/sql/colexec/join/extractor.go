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

package join

import (
	"encoding/binary"
	"fmt"

	"github.com/keeldb/keel/pkg/common/kerr"
	"github.com/keeldb/keel/pkg/container/row"
	"github.com/keeldb/keel/pkg/container/types"
	"github.com/keeldb/keel/pkg/sql/colexec"
)

// rawTag prefixes the fallback key encoding for values outside the
// packed codec. It collides with no packer type code.
const rawTag = 0xff

// keyExtractor serializes a row's key values into comparable bytes and
// reports whether any key field is null. The returned slice aliases the
// extractor's scratch buffer and is only valid until the next call.
type keyExtractor func(r row.Row) (key []byte, hasNull bool, err error)

// makeExtractor compiles the key expressions into an extractor for the
// given encoding. The packed variant requires every key type to be
// packable; selectEncoding guarantees that, so a violation here is a
// configuration bug, not a runtime path.
func makeExtractor(keys []colexec.Evaluator, enc row.Encoding, p *types.Packer) (keyExtractor, error) {
	if len(keys) == 0 {
		return nil, kerr.NewBadConfig("join requires at least one key expression")
	}
	if enc == row.Packed {
		for i, e := range keys {
			if !e.Typ().Oid.Packable() {
				return nil, kerr.NewBadConfig("packed key extractor over unpackable type %s at key %d", e.Typ(), i)
			}
		}
		return packedExtractor(keys, p), nil
	}
	return genericExtractor(keys, p), nil
}

func packedExtractor(keys []colexec.Evaluator, p *types.Packer) keyExtractor {
	return func(r row.Row) ([]byte, bool, error) {
		p.Reset()
		hasNull := false
		for _, e := range keys {
			v, err := e.Eval(r)
			if err != nil {
				return nil, false, err
			}
			if v == nil {
				hasNull = true
				p.EncodeNull()
				continue
			}
			if err := p.EncodeTupleElement(v); err != nil {
				return nil, false, err
			}
		}
		return p.GetBuf(), hasNull, nil
	}
}

// genericExtractor serializes through the packer where the value's
// dynamic type allows it and falls back to a tagged, length-prefixed
// textual form otherwise. Equal values yield equal bytes either way.
func genericExtractor(keys []colexec.Evaluator, p *types.Packer) keyExtractor {
	return func(r row.Row) ([]byte, bool, error) {
		p.Reset()
		hasNull := false
		for _, e := range keys {
			v, err := e.Eval(r)
			if err != nil {
				return nil, false, err
			}
			if v == nil {
				hasNull = true
				p.EncodeNull()
				continue
			}
			if err := p.EncodeTupleElement(v); err == nil {
				continue
			}
			s := fmt.Sprintf("%T|%v", v, v)
			var lenBuf [5]byte
			lenBuf[0] = rawTag
			binary.BigEndian.PutUint32(lenBuf[1:], uint32(len(s)))
			p.EncodeRaw(lenBuf[:])
			p.EncodeRaw([]byte(s))
		}
		return p.GetBuf(), hasNull, nil
	}
}
