// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"github.com/BurntSushi/toml"
)

type CatalogOptions struct {
	Path          string `toml:"path"`
	DefaultSchema string `toml:"defaultSchema"`
}

type ServerOptions struct {
	Addr string `toml:"addr"`
}

type PlannerOptions struct {
	ExploreLimit int `toml:"exploreLimit"`
}

type DebugOptions struct {
	LogLevel  string `toml:"logLevel"`
	PrintPlan bool   `toml:"printPlan"`
}

type Config struct {
	Catalog CatalogOptions `toml:"catalog"`
	Server  ServerOptions  `toml:"server"`
	Planner PlannerOptions `toml:"planner"`
	Debug   DebugOptions   `toml:"debug"`
}

func DefaultConfig() Config {
	return Config{
		Catalog: CatalogOptions{
			Path:          "catalog.toml",
			DefaultSchema: "doc",
		},
		Server: ServerOptions{
			Addr: "127.0.0.1:5432",
		},
		Planner: PlannerOptions{
			ExploreLimit: 8,
		},
		Debug: DebugOptions{
			LogLevel: "info",
		},
	}
}

// LoadConfig decodes fpath over the defaults.
func LoadConfig(fpath string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(fpath, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
