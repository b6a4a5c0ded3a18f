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

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cobra"

	"github.com/keeldb/keel/pkg/common/kerr"
	"github.com/keeldb/keel/pkg/common/mpool"
	"github.com/keeldb/keel/pkg/config"
	"github.com/keeldb/keel/pkg/container/row"
	"github.com/keeldb/keel/pkg/container/types"
	"github.com/keeldb/keel/pkg/logutil"
	"github.com/keeldb/keel/pkg/sql/colexec"
	"github.com/keeldb/keel/pkg/sql/colexec/join"
)

func runJoin(cmd *cobra.Command, args []string) error {
	params, err := loadParams()
	if err != nil {
		return err
	}
	logutil.SetupLogger(&params.Log)

	leftSchema, err := parseSchema(flags.leftTypes)
	if err != nil {
		return err
	}
	rightSchema, err := parseSchema(flags.rightTypes)
	if err != nil {
		return err
	}
	leftKeyPos, err := parseOrdinals(flags.leftKeys)
	if err != nil {
		return err
	}
	rightKeyPos, err := parseOrdinals(flags.rightKeys)
	if err != nil {
		return err
	}
	leftKeys, err := keyEvaluators(leftKeyPos, leftSchema)
	if err != nil {
		return err
	}
	rightKeys, err := keyEvaluators(rightKeyPos, rightSchema)
	if err != nil {
		return err
	}
	side := join.BuildRight
	switch flags.buildSide {
	case "right":
	case "left":
		side = join.BuildLeft
	default:
		return kerr.NewBadConfig("unknown build side %q", flags.buildSide)
	}

	left, err := readRows(args[0], leftSchema)
	if err != nil {
		return err
	}
	right, err := readRows(args[1], rightSchema)
	if err != nil {
		return err
	}

	mp, err := mpool.NewMPool("keel-join", params.MemoryLimit)
	if err != nil {
		return err
	}

	newJoin := func(l, r []row.Row) *join.InnerJoin {
		return &join.InnerJoin{
			Left:          colexec.NewRows(l...),
			Right:         colexec.NewRows(r...),
			LeftTypes:     leftSchema,
			RightTypes:    rightSchema,
			LeftKeys:      leftKeys,
			RightKeys:     rightKeys,
			Side:          side,
			PackedEnabled: params.PackedRowsEnabled(),
		}
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if flags.partitions > 1 {
		leftParts := partitionRows(left, leftKeyPos, flags.partitions)
		rightParts := partitionRows(right, rightKeyPos, flags.partitions)
		joins := make([]*join.InnerJoin, flags.partitions)
		for p := range joins {
			joins[p] = newJoin(leftParts[p], rightParts[p])
		}
		results, err := join.RunPartitions(context.Background(), mp, joins, int(params.PartitionConcurrency))
		if err != nil {
			return err
		}
		for _, out := range results {
			for _, r := range out {
				if err := w.Write(formatRow(r)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	proc := colexec.NewProcess(context.Background(), mp)
	j := newJoin(left, right)
	defer j.Free(proc)
	if err := j.Prepare(proc); err != nil {
		return err
	}
	for {
		r, err := j.Next(proc)
		if err != nil {
			return err
		}
		if r == nil {
			return nil
		}
		if err := w.Write(formatRow(r)); err != nil {
			return err
		}
	}
}

// partitionRows spreads rows over n partitions by a hash of the textual
// key values. Equal keys land in the same partition on both sides; rows
// with a null key field never match, so their placement is arbitrary.
func partitionRows(rows []row.Row, keyPos []int, n int) [][]row.Row {
	parts := make([][]row.Row, n)
	var sb strings.Builder
	for _, r := range rows {
		sb.Reset()
		for _, pos := range keyPos {
			fmt.Fprintf(&sb, "%v|", r.ValueAt(pos))
		}
		p := xxhash.Sum64String(sb.String()) % uint64(n)
		parts[p] = append(parts[p], r)
	}
	return parts
}

func loadParams() (*config.EngineParameters, error) {
	if flags.configFile == "" {
		return config.NewEngineParameters(), nil
	}
	return config.LoadEngineConfig(flags.configFile)
}

func parseSchema(spec string) ([]types.Type, error) {
	if spec == "" {
		return nil, kerr.NewBadConfig("column types are required, e.g. --left-types int64,varchar")
	}
	names := strings.Split(spec, ",")
	schema := make([]types.Type, len(names))
	for i, name := range names {
		t, err := typeByName(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		schema[i] = t.ToType()
	}
	return schema, nil
}

func typeByName(name string) (types.T, error) {
	switch name {
	case "bool":
		return types.T_bool, nil
	case "int8":
		return types.T_int8, nil
	case "int16":
		return types.T_int16, nil
	case "int32":
		return types.T_int32, nil
	case "int64", "int":
		return types.T_int64, nil
	case "uint8":
		return types.T_uint8, nil
	case "uint16":
		return types.T_uint16, nil
	case "uint32":
		return types.T_uint32, nil
	case "uint64", "uint":
		return types.T_uint64, nil
	case "float32":
		return types.T_float32, nil
	case "float64", "float":
		return types.T_float64, nil
	case "varchar", "string":
		return types.T_varchar, nil
	case "json":
		return types.T_json, nil
	default:
		return types.T_any, kerr.NewBadConfig("unknown column type %q", name)
	}
}

func parseOrdinals(spec string) ([]int, error) {
	parts := strings.Split(spec, ",")
	out := make([]int, len(parts))
	for i, s := range parts {
		pos, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, kerr.NewBadConfig("bad key ordinal %q", s)
		}
		out[i] = pos
	}
	return out, nil
}

func keyEvaluators(ordinals []int, schema []types.Type) ([]colexec.Evaluator, error) {
	evals := make([]colexec.Evaluator, len(ordinals))
	for i, pos := range ordinals {
		e, err := colexec.NewColExpr(pos, schema)
		if err != nil {
			return nil, err
		}
		evals[i] = e
	}
	return evals, nil
}

func readRows(path string, schema []types.Type) ([]row.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = len(schema)
	var rows []row.Row
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		r, err := parseRecord(rec, schema)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
}

// parseRecord converts one CSV record into a generic row. An empty cell
// is a NULL.
func parseRecord(rec []string, schema []types.Type) (row.Row, error) {
	fields := make([]types.TupleElement, len(rec))
	for i, cell := range rec {
		if cell == "" {
			continue
		}
		v, err := parseCell(cell, schema[i].Oid)
		if err != nil {
			return nil, kerr.NewInvalidInput("column %d: %s", i, err)
		}
		fields[i] = v
	}
	return row.NewGenericRow(fields...), nil
}

func parseCell(cell string, t types.T) (types.TupleElement, error) {
	switch t {
	case types.T_bool:
		return strconv.ParseBool(cell)
	case types.T_int8:
		v, err := strconv.ParseInt(cell, 10, 8)
		return int8(v), err
	case types.T_int16:
		v, err := strconv.ParseInt(cell, 10, 16)
		return int16(v), err
	case types.T_int32:
		v, err := strconv.ParseInt(cell, 10, 32)
		return int32(v), err
	case types.T_int64:
		return strconv.ParseInt(cell, 10, 64)
	case types.T_uint8:
		v, err := strconv.ParseUint(cell, 10, 8)
		return uint8(v), err
	case types.T_uint16:
		v, err := strconv.ParseUint(cell, 10, 16)
		return uint16(v), err
	case types.T_uint32:
		v, err := strconv.ParseUint(cell, 10, 32)
		return uint32(v), err
	case types.T_uint64:
		return strconv.ParseUint(cell, 10, 64)
	case types.T_float32:
		v, err := strconv.ParseFloat(cell, 32)
		return float32(v), err
	case types.T_float64:
		return strconv.ParseFloat(cell, 64)
	case types.T_varchar:
		return cell, nil
	case types.T_json:
		return []byte(cell), nil
	default:
		return nil, kerr.NewNotSupported("column type %s", t)
	}
}

func formatRow(r row.Row) []string {
	out := make([]string, r.Len())
	for i := range out {
		if r.IsNullAt(i) {
			continue
		}
		switch v := r.ValueAt(i).(type) {
		case string:
			out[i] = v
		case []byte:
			out[i] = string(v)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
