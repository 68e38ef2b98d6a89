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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/planner"
	"github.com/weizai118/crate/pkg/session"
	"github.com/weizai118/crate/pkg/util"
)

func init() {
	cobra.OnInitialize(loadConfig)
	initAnalyzeCmd()
}

var analyzerCfg = util.DefaultConfig()

///root cmd

var info = "analyzer"
var RootCmd = &cobra.Command{
	Use:          "analyzer",
	Short:        info,
	Long:         info,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("use analyzer --help or -h")
	},
}

//analyze cmd

var analyzeInfo = "analyze statements against a catalog and print their plans"
var analyzeCmd = &cobra.Command{
	Use:   "analyze [sql...]",
	Short: analyzeInfo,
	Long:  analyzeInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		initAnalyzeCfg()
		if err := util.SetLogLevel(analyzerCfg.Debug.LogLevel); err != nil {
			return err
		}
		defer util.Sync()
		return analyze(cmd.Context(), args)
	},
}

func initAnalyzeCfg() {
	analyzerCfg.Catalog.Path = viper.GetString("catalog.path")
	analyzerCfg.Catalog.DefaultSchema = viper.GetString("catalog.defaultSchema")
	analyzerCfg.Planner.ExploreLimit = viper.GetInt("planner.exploreLimit")
	analyzerCfg.Debug.LogLevel = viper.GetString("debug.logLevel")
	analyzerCfg.Debug.PrintPlan = viper.GetBool("debug.printPlan")
}

func initAnalyzeCmd() {
	RootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzerCfg.Catalog.Path, "catalog", analyzerCfg.Catalog.Path, "catalog file")
	analyzeCmd.Flags().StringVar(&analyzerCfg.Catalog.DefaultSchema, "schema", analyzerCfg.Catalog.DefaultSchema, "default schema")
	analyzeCmd.Flags().IntVar(&analyzerCfg.Planner.ExploreLimit, "explore_limit", analyzerCfg.Planner.ExploreLimit, "join orders to explore")
	analyzeCmd.Flags().StringVar(&analyzerCfg.Debug.LogLevel, "log_level", analyzerCfg.Debug.LogLevel, "debug, info, warn or error")

	viper.BindPFlag("catalog.path", analyzeCmd.Flags().Lookup("catalog"))
	viper.BindPFlag("catalog.defaultSchema", analyzeCmd.Flags().Lookup("schema"))
	viper.BindPFlag("planner.exploreLimit", analyzeCmd.Flags().Lookup("explore_limit"))
	viper.BindPFlag("debug.logLevel", analyzeCmd.Flags().Lookup("log_level"))
}

func analyze(ctx context.Context, queries []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	catalog, err := metadata.LoadCatalog(analyzerCfg.Catalog.Path, analyzerCfg.Catalog.DefaultSchema)
	if err != nil {
		return err
	}
	env := &session.Env{
		Catalog:  catalog,
		Settings: planner.NewClusterSettings(),
	}
	for _, query := range queries {
		run, err := session.InitRunner(ctx, &analyzerCfg, env, query)
		if err != nil {
			return fmt.Errorf("%s: %w", query, err)
		}
		fmt.Println(run.Explain())
		rows, err := run.Rows(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", query, err)
		}
		if len(run.Columns()) > 1 {
			for _, row := range rows {
				fmt.Println(row)
			}
		}
	}
	return nil
}

var defCfgFilePaths = []string{".", "etc"}
var cfgFileName = "analyzer.toml"

func loadConfig() {
	for _, dirPath := range defCfgFilePaths {
		fpath := filepath.Join(dirPath, cfgFileName)
		if util.FileIsValid(fpath) {
			viper.SetConfigFile(fpath)
			err := viper.ReadInConfig()
			if err != nil {
				util.Error("viper load config file failed",
					zap.String("fpath", fpath),
					zap.Error(err))
				continue
			}
			return
		}
	}
	util.Warn("analyzer.toml does not exist, using defaults")
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
