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

package main

import (
	"context"
	"os"
	"path/filepath"

	wire "github.com/jeroenrinzema/psql-wire"
	"go.uber.org/zap"

	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/planner"
	"github.com/weizai118/crate/pkg/session"
	"github.com/weizai118/crate/pkg/util"
)

var runCfg = util.DefaultConfig()
var env = &session.Env{
	Settings: planner.NewClusterSettings(),
}

func init() {
	loadConfig()
}

var defCfgFilePaths = []string{".", "etc"}
var cfgFileName = "server.toml"

func loadConfig() {
	for _, dirPath := range defCfgFilePaths {
		fpath := filepath.Join(dirPath, cfgFileName)
		if util.FileIsValid(fpath) {
			cfg, err := util.LoadConfig(fpath)
			if err != nil {
				util.Error("load config file failed",
					zap.String("fpath", fpath),
					zap.Error(err))
				continue
			}
			runCfg = cfg
			return
		}
	}
	util.Warn("server.toml does not exist, using defaults")
}

func main() {
	if err := util.SetLogLevel(runCfg.Debug.LogLevel); err != nil {
		util.Error("invalid log level", zap.Error(err))
		os.Exit(1)
	}
	defer util.Sync()
	catalog, err := metadata.LoadCatalog(runCfg.Catalog.Path, runCfg.Catalog.DefaultSchema)
	if err != nil {
		util.Error("load catalog failed", zap.Error(err))
		os.Exit(1)
	}
	env.Catalog = catalog
	util.Info("listening", zap.String("addr", runCfg.Server.Addr))
	if err = wire.ListenAndServe(runCfg.Server.Addr, handler); err != nil {
		util.Error("serve failed", zap.Error(err))
		os.Exit(1)
	}
}

func handler(ctx context.Context, query string) (wire.PreparedStatements, error) {
	util.Info("incoming SQL :", zap.String("query", query))
	run, err := session.InitRunner(ctx, &runCfg, env, query)
	if err != nil {
		return nil, err
	}
	return wire.Prepared(
		wire.NewStatement(func(ctx context.Context, writer wire.DataWriter, parameters []wire.Parameter) error {
			return run.Run(ctx, writer)
		},
			wire.WithColumns(run.Columns()),
		),
	), nil
}
