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

package config

import (
	"github.com/BurntSushi/toml"
	"github.com/keeldb/keel/pkg/common/kerr"
	"github.com/keeldb/keel/pkg/logutil"
)

// EngineParameters of the execution engine
type EngineParameters struct {
	//disable the packed binary row path even when key and schema types
	//allow it. default: false
	DisablePackedRows bool `toml:"disablePackedRows"`

	//memory cap in bytes for materializing one build-side relation.
	//default: 1 << 34
	MemoryLimit int64 `toml:"memoryLimit"`

	//count of partitions joined concurrently. default: 4
	PartitionConcurrency int64 `toml:"partitionConcurrency"`

	Log logutil.LogConfig `toml:"log"`
}

// PackedRowsEnabled is the single configuration bit the join operator
// consults when selecting a row encoding.
func (ep *EngineParameters) PackedRowsEnabled() bool {
	return !ep.DisablePackedRows
}

func (ep *EngineParameters) SetDefaultValues() {
	if ep.MemoryLimit <= 0 {
		ep.MemoryLimit = 1 << 34
	}
	if ep.PartitionConcurrency <= 0 {
		ep.PartitionConcurrency = 4
	}
	if ep.Log.Level == "" {
		ep.Log.Level = "info"
	}
	if ep.Log.Format == "" {
		ep.Log.Format = "console"
	}
}

// NewEngineParameters returns parameters with every default applied.
func NewEngineParameters() *EngineParameters {
	ep := &EngineParameters{}
	ep.SetDefaultValues()
	return ep
}

// LoadEngineConfig reads a toml configuration file and applies defaults
// for everything the file does not mention.
func LoadEngineConfig(configFile string) (*EngineParameters, error) {
	ep := &EngineParameters{}
	if _, err := toml.DecodeFile(configFile, ep); err != nil {
		return nil, kerr.NewBadConfig("%s: %s", configFile, err)
	}
	ep.SetDefaultValues()
	return ep, nil
}
