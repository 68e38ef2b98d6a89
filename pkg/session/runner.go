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

package session

import (
	"context"
	"fmt"
	"strings"

	wire "github.com/jeroenrinzema/psql-wire"
	"github.com/lib/pq/oid"
	pg_query "github.com/pganalyze/pg_query_go/v5"
	"github.com/xlab/treeprint"
	"go.uber.org/zap"

	"github.com/weizai118/crate/pkg/analyze"
	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/parser"
	"github.com/weizai118/crate/pkg/planner"
	"github.com/weizai118/crate/pkg/util"
)

// Env holds the state statements are analyzed and executed against.
type Env struct {
	Catalog  *metadata.Catalog
	Settings *planner.ClusterSettings
}

type Runner struct {
	cfg     *util.Config
	env     *Env
	tag     string
	columns []string
	explain treeprint.Tree
	exec    func(ctx context.Context) ([][]string, error)
}

// InitRunner analyzes query. Analyzed statements answer with their
// explained plan, settings statements are executed by Run.
func InitRunner(ctx context.Context, cfg *util.Config, env *Env, query string) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	stmt, err := parser.ParseOne(query)
	if err != nil {
		return nil, err
	}
	run := &Runner{
		cfg: cfg,
		env: env,
	}
	switch realStmt := stmt.GetNode().(type) {
	case *pg_query.Node_InsertStmt:
		err = run.initInsert(ctx, realStmt.InsertStmt)
	case *pg_query.Node_SelectStmt:
		err = run.initSelect(ctx, realStmt.SelectStmt)
	case *pg_query.Node_AlterSystemStmt, *pg_query.Node_VariableSetStmt:
		err = run.initSettings(stmt)
	case *pg_query.Node_VariableShowStmt:
		run.initShow(realStmt.VariableShowStmt.GetName())
	default:
		err = common.ErrUnsupportedFeature.New(fmt.Sprintf("statement %T", realStmt))
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (run *Runner) explainPlan(ctx context.Context, tree treeprint.Tree, qr *analyze.QueriedRelation) error {
	if len(qr.Context.Sources()) == 0 {
		return nil
	}
	plan, err := planner.NewJoinPlanner(run.cfg.Planner.ExploreLimit).Explore(ctx, qr.Context, qr.Where)
	if err != nil {
		return err
	}
	plan.Print(tree.AddMetaBranch("join plan", plan.Ordinal))
	return nil
}

func (run *Runner) initInsert(ctx context.Context, stmt *pg_query.InsertStmt) error {
	analyzed, err := analyze.NewInsertFromSubQueryAnalyzer(run.env.Catalog).Analyze(stmt)
	if err != nil {
		return err
	}
	tree := treeprint.NewWithRoot("insert")
	analyzed.Print(tree)
	if err = run.explainPlan(ctx, tree, analyzed.SubQueryRelation()); err != nil {
		return err
	}
	run.setExplain("INSERT", tree)
	return nil
}

func (run *Runner) initSelect(ctx context.Context, stmt *pg_query.SelectStmt) error {
	qr, err := analyze.NewRelationAnalyzer(run.env.Catalog).AnalyzeSelect(stmt)
	if err != nil {
		return err
	}
	tree := treeprint.NewWithRoot("select")
	qr.Print(tree)
	if err = run.explainPlan(ctx, tree, qr); err != nil {
		return err
	}
	run.setExplain("SELECT", tree)
	return nil
}

func (run *Runner) setExplain(tag string, tree treeprint.Tree) {
	run.tag = tag
	run.columns = []string{"plan"}
	run.explain = tree
	run.exec = func(context.Context) ([][]string, error) {
		var rows [][]string
		for _, line := range strings.Split(strings.TrimRight(tree.String(), "\n"), "\n") {
			rows = append(rows, []string{line})
		}
		return rows, nil
	}
}

func (run *Runner) initSettings(stmt *pg_query.Node) error {
	plan, err := planner.NewClusterUpdateSettingsPlanFromStmt(stmt)
	if err != nil {
		return err
	}
	run.tag = "SET"
	run.explain = treeprint.NewWithRoot("set")
	plan.Print(run.explain)
	run.exec = func(ctx context.Context) ([][]string, error) {
		return nil, plan.Execute(ctx, run.env.Settings)
	}
	return nil
}

func (run *Runner) initShow(name string) {
	run.tag = "SHOW"
	run.columns = []string{"name", "setting"}
	run.explain = treeprint.NewWithRoot("show " + name)
	run.exec = func(context.Context) ([][]string, error) {
		if name != "all" {
			value, ok := run.env.Settings.Get(name)
			if !ok {
				return nil, fmt.Errorf("unknown setting %s", name)
			}
			return [][]string{{name, value}}, nil
		}
		var rows [][]string
		for _, setting := range run.env.Settings.Effective() {
			rows = append(rows, []string{setting.First, setting.Second})
		}
		return rows, nil
	}
}

// Explain renders what the statement was analyzed into.
func (run *Runner) Explain() string {
	return run.explain.String()
}

func (run *Runner) Columns() wire.Columns {
	cols := make(wire.Columns, 0, len(run.columns))
	for _, name := range run.columns {
		cols = append(cols, wire.Column{
			Name:  name,
			Oid:   oid.T_varchar,
			Width: 256,
		})
	}
	return cols
}

// Rows executes the statement and returns its result rows.
func (run *Runner) Rows(ctx context.Context) ([][]string, error) {
	if run.cfg.Debug.PrintPlan {
		fmt.Println(run.Explain())
	}
	rows, err := run.exec(ctx)
	if err != nil {
		return nil, err
	}
	util.Debug("statement executed",
		zap.String("tag", run.tag),
		zap.Int("rows", len(rows)))
	return rows, nil
}

func (run *Runner) Run(ctx context.Context, writer wire.DataWriter) error {
	rows, err := run.Rows(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		values := make([]any, len(row))
		for i, value := range row {
			values[i] = value
		}
		if err = writer.Row(values); err != nil {
			return err
		}
	}
	return writer.Complete(run.tag)
}
