package analyze

import (
	"sort"

	"github.com/xlab/treeprint"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/symbol"
)

// InsertFromSubQueryAnalyzedStatement is an analyzed
// INSERT INTO table (columns) SELECT ... statement together with the
// symbols computing the primary key, partition and routing values of
// each inserted row from the row provided by the sub query.
type InsertFromSubQueryAnalyzedStatement struct {
	table                *metadata.DocTableInfo
	subQuery             *QueriedRelation
	targetColumns        []*metadata.Reference
	onConflictAssignment map[common.ColumnIdent]symbol.Symbol
	primaryKeySymbols    []symbol.Symbol
	partitionedBySymbols []symbol.Symbol
	clusteredBySymbol    symbol.Symbol
}

func NewInsertFromSubQueryAnalyzedStatement(
	subQuery *QueriedRelation,
	table *metadata.DocTableInfo,
	targetColumns []*metadata.Reference,
	onConflictAssignment map[common.ColumnIdent]symbol.Symbol,
) (*InsertFromSubQueryAnalyzedStatement, error) {
	stmt := &InsertFromSubQueryAnalyzedStatement{
		table:                table,
		subQuery:             subQuery,
		targetColumns:        targetColumns,
		onConflictAssignment: onConflictAssignment,
	}
	positions := ToPositionMap(targetColumns)
	stmt.clusteredBySymbol = ClusteredBySymbol(table, positions, targetColumns)

	var inputCtx *InputColumnsContext
	var err error
	stmt.primaryKeySymbols, inputCtx, err = PrimaryKeySymbols(table, positions, targetColumns, inputCtx)
	if err != nil {
		return nil, err
	}
	stmt.partitionedBySymbols, _, err = PartitionedBySymbols(table, positions, targetColumns, inputCtx)
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

func (stmt *InsertFromSubQueryAnalyzedStatement) TableInfo() *metadata.DocTableInfo {
	return stmt.table
}

func (stmt *InsertFromSubQueryAnalyzedStatement) SubQueryRelation() *QueriedRelation {
	return stmt.subQuery
}

func (stmt *InsertFromSubQueryAnalyzedStatement) Columns() []*metadata.Reference {
	return stmt.targetColumns
}

// OnDuplicateKeyAssignments is nil without ON CONFLICT DO UPDATE.
func (stmt *InsertFromSubQueryAnalyzedStatement) OnDuplicateKeyAssignments() map[common.ColumnIdent]symbol.Symbol {
	return stmt.onConflictAssignment
}

func (stmt *InsertFromSubQueryAnalyzedStatement) PrimaryKeySymbols() []symbol.Symbol {
	return stmt.primaryKeySymbols
}

func (stmt *InsertFromSubQueryAnalyzedStatement) PartitionedBySymbols() []symbol.Symbol {
	return stmt.partitionedBySymbols
}

// ClusteredBySymbol is nil if the routing column is not inserted.
func (stmt *InsertFromSubQueryAnalyzedStatement) ClusteredBySymbol() symbol.Symbol {
	return stmt.clusteredBySymbol
}

func (stmt *InsertFromSubQueryAnalyzedStatement) IsWriteOperation() bool {
	return true
}

func (stmt *InsertFromSubQueryAnalyzedStatement) Print(tree treeprint.Tree) {
	tree.AddMetaNode("table", stmt.table.Ident().Fqn())
	columns := tree.AddBranch("columns")
	for i, col := range stmt.targetColumns {
		columns.AddMetaNode(i, col.Column.SqlFqn()+" "+col.Typ.String())
	}
	if stmt.subQuery != nil {
		stmt.subQuery.Print(tree.AddBranch("query"))
	}
	symbol.PrintList(tree.AddBranch("primary key"), stmt.primaryKeySymbols)
	if len(stmt.partitionedBySymbols) > 0 {
		symbol.PrintList(tree.AddBranch("partitioned by"), stmt.partitionedBySymbols)
	}
	if stmt.clusteredBySymbol != nil {
		symbol.Print(tree.AddBranch("clustered by"), stmt.clusteredBySymbol, "")
	}
	if len(stmt.onConflictAssignment) > 0 {
		assignments := tree.AddBranch("on conflict")
		keys := make([]common.ColumnIdent, 0, len(stmt.onConflictAssignment))
		for key := range stmt.onConflictAssignment {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].Less(keys[j])
		})
		for _, key := range keys {
			symbol.Print(assignments, stmt.onConflictAssignment[key], key.SqlFqn())
		}
	}
}

func (stmt *InsertFromSubQueryAnalyzedStatement) String() string {
	tree := treeprint.NewWithRoot("insert from sub query")
	stmt.Print(tree)
	return tree.String()
}
