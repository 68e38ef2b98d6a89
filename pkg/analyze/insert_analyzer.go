package analyze

import (
	pg_query "github.com/pganalyze/pg_query_go/v5"
	"go.uber.org/zap"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/expression"
	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/symbol"
	"github.com/weizai118/crate/pkg/util"
)

const (
	excludedRelation = "excluded"

	// dynamicPosition marks target columns unknown to the table.
	dynamicPosition = -1
)

type InsertFromSubQueryAnalyzer struct {
	tables    TableResolver
	relations *RelationAnalyzer
}

func NewInsertFromSubQueryAnalyzer(tables TableResolver) *InsertFromSubQueryAnalyzer {
	return &InsertFromSubQueryAnalyzer{
		tables:    tables,
		relations: NewRelationAnalyzer(tables),
	}
}

func (ia *InsertFromSubQueryAnalyzer) Analyze(stmt *pg_query.InsertStmt) (*InsertFromSubQueryAnalyzedStatement, error) {
	rel := stmt.GetRelation()
	table, err := ia.tables.ResolveTable(rel.GetSchemaname(), rel.GetRelname())
	if err != nil {
		return nil, err
	}
	if !table.SupportedOperations().Contains(metadata.OpInsert) {
		return nil, common.ErrOperationNotSupported.New(table.Ident().Fqn(), metadata.OpInsert)
	}

	targets, err := targetColumns(table, stmt.GetCols())
	if err != nil {
		return nil, err
	}

	subQuery, err := ia.relations.AnalyzeSelect(stmt.GetSelectStmt().GetSelectStmt())
	if err != nil {
		return nil, err
	}
	if len(subQuery.Outputs) != len(targets) {
		return nil, common.ErrColumnCountMismatch.New(len(targets), len(subQuery.Outputs))
	}
	for i, target := range targets {
		if target.Position == dynamicPosition && target.Typ.IsUndefined() {
			target.Typ = subQuery.Outputs[i].ValueType()
		}
	}

	assignments, err := onConflictAssignments(table, targets, stmt.GetOnConflictClause())
	if err != nil {
		return nil, err
	}

	analyzed, err := NewInsertFromSubQueryAnalyzedStatement(subQuery, table, targets, assignments)
	if err != nil {
		return nil, err
	}
	util.Debug("insert analyzed",
		zap.String("table", table.Ident().Fqn()),
		zap.Int("targets", len(targets)),
		zap.Int("primaryKeySymbols", len(analyzed.PrimaryKeySymbols())),
		zap.Int("partitionedBySymbols", len(analyzed.PartitionedBySymbols())),
		zap.Bool("routed", analyzed.ClusteredBySymbol() != nil))
	return analyzed, nil
}

func columnOfResTarget(res *pg_query.ResTarget) (common.ColumnIdent, error) {
	path, err := expression.SubscriptPath(res.GetIndirection())
	if err != nil {
		return common.ColumnIdent{}, err
	}
	return common.NewColumnIdent(res.GetName(), path...), nil
}

// targetColumns resolves the insert column list. Without a list all
// non generated columns are targets. Unknown columns are added
// dynamically unless the table is strict.
func targetColumns(table *metadata.DocTableInfo, cols []*pg_query.Node) ([]*metadata.Reference, error) {
	if len(cols) == 0 {
		var targets []*metadata.Reference
		for _, col := range table.Columns() {
			if table.GetGenerated(col.Column) != nil {
				continue
			}
			targets = append(targets, col)
		}
		return targets, nil
	}

	targets := make([]*metadata.Reference, 0, len(cols))
	seen := make(map[common.ColumnIdent]bool, len(cols))
	for _, col := range cols {
		column, err := columnOfResTarget(col.GetResTarget())
		if err != nil {
			return nil, err
		}
		if seen[column] {
			return nil, common.ErrDuplicateColumn.New(column.SqlFqn())
		}
		seen[column] = true

		ref := table.GetReference(column)
		if ref == nil {
			if table.ColumnPolicy() == metadata.ColumnPolicyStrict {
				return nil, common.ErrColumnUnknown.New(column.SqlFqn())
			}
			ref = metadata.NewReference(table.Ident(), column, common.UndefinedType())
			ref.Position = dynamicPosition
			util.Debug("dynamic insert column",
				zap.String("table", table.Ident().Fqn()),
				zap.String("column", column.SqlFqn()))
		}
		targets = append(targets, ref)
	}
	return targets, nil
}

// onConflictAssignments analyzes ON CONFLICT DO UPDATE SET. Values may
// use excluded.col to address the row that failed to insert.
func onConflictAssignments(
	table *metadata.DocTableInfo,
	targets []*metadata.Reference,
	clause *pg_query.OnConflictClause,
) (map[common.ColumnIdent]symbol.Symbol, error) {
	if clause == nil || clause.GetAction() != pg_query.OnConflictAction_ONCONFLICT_UPDATE {
		return nil, nil
	}
	if clause.GetWhereClause() != nil {
		return nil, common.ErrUnsupportedFeature.New("ON CONFLICT DO UPDATE ... WHERE")
	}
	exprs := expression.NewAnalyzer(&conflictResolver{table: table})
	inputCtx := NewInputColumnsContext(targets)
	assignments := make(map[common.ColumnIdent]symbol.Symbol, len(clause.GetTargetList()))
	for _, target := range clause.GetTargetList() {
		res := target.GetResTarget()
		column, err := columnOfResTarget(res)
		if err != nil {
			return nil, err
		}
		if table.GetReference(column) == nil {
			return nil, common.ErrColumnUnknown.New(column.SqlFqn())
		}
		if table.GetGenerated(column) != nil {
			return nil, common.ErrGeneratedColumnTarget.New(column.SqlFqn())
		}
		value, err := exprs.Analyze(res.GetVal())
		if err != nil {
			return nil, err
		}
		var missing error
		value = symbol.Transform(value, func(s symbol.Symbol) symbol.Symbol {
			ref, ok := s.(*symbol.Reference)
			if !ok || ref.Relation != excludedRelation {
				return s
			}
			input := inputCtx.InputFor(ref.Column, ref.Typ)
			if input == nil {
				missing = common.ErrColumnUnknown.New(excludedRelation + "." + ref.Column.SqlFqn())
				return s
			}
			return input
		})
		if missing != nil {
			return nil, missing
		}
		assignments[column] = value
	}
	return assignments, nil
}

type conflictResolver struct {
	table *metadata.DocTableInfo
}

func (cr *conflictResolver) ResolveField(relation string, column common.ColumnIdent) (*symbol.Reference, error) {
	ref := cr.table.GetReference(column)
	if ref == nil {
		return nil, common.ErrColumnUnknown.New(column.SqlFqn())
	}
	switch relation {
	case "", excludedRelation:
		return ref.Symbol(relation), nil
	default:
		name := NewRelationName(cr.table.Ident().Schema, cr.table.Ident().Name)
		if !name.Matches(relation) {
			return nil, common.ErrTableUnknown.New(relation)
		}
		return ref.Symbol(""), nil
	}
}
