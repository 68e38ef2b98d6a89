package analyze

import (
	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/symbol"
)

// SymbolsFromTargetColumnPositionOrGeneratedExpression resolves one
// symbol per required column. A column provided by the insert becomes
// an input column, otherwise its generated expression is bound to the
// input columns. inputCtx is created on first use and returned so
// later resolutions of the same statement share it.
func SymbolsFromTargetColumnPositionOrGeneratedExpression(
	table metadata.TableInfo,
	positions map[common.ColumnIdent]int,
	targets []*metadata.Reference,
	required []common.ColumnIdent,
	generated []*metadata.GeneratedReference,
	inputCtx *InputColumnsContext,
) ([]symbol.Symbol, *InputColumnsContext, error) {
	if len(required) == 0 {
		return nil, inputCtx, nil
	}
	symbols := make([]symbol.Symbol, 0, len(required))
	for _, column := range required {
		if input := targetInput(table, positions, targets, column); input != nil {
			symbols = append(symbols, input)
			continue
		}
		gen := metadata.FindGenerated(generated, column)
		if gen == nil {
			return nil, inputCtx, common.ErrColumnRequired.New(column.SqlFqn())
		}
		if inputCtx == nil {
			inputCtx = NewInputColumnsContext(targets)
		}
		symbols = append(symbols, CreateInputColumns(gen.Expression, inputCtx))
	}
	return symbols, inputCtx, nil
}

// targetInput returns the input providing column, nil if no target
// provides it. A target providing column itself wins, otherwise column
// is read from the top level target of its root.
func targetInput(
	table metadata.TableInfo,
	positions map[common.ColumnIdent]int,
	targets []*metadata.Reference,
	column common.ColumnIdent,
) symbol.Symbol {
	for i, target := range targets {
		if target.Column == column {
			return symbol.NewInputColumn(i, target.ValueType())
		}
	}
	pos, has := positions[column.Root()]
	if !has || !targets[pos].Column.IsTopLevel() {
		return nil
	}
	input := symbol.NewInputColumn(pos, targets[pos].ValueType())
	leafType := common.UndefinedType()
	if ref := table.GetReference(column); ref != nil {
		leafType = ref.ValueType()
	}
	return RewriteNestedInputToSubscript(column, input, leafType)
}

// PrimaryKeySymbols is empty for tables with a system assigned primary
// key.
func PrimaryKeySymbols(
	table metadata.TableInfo,
	positions map[common.ColumnIdent]int,
	targets []*metadata.Reference,
	inputCtx *InputColumnsContext,
) ([]symbol.Symbol, *InputColumnsContext, error) {
	if table.HasAutoGeneratedPrimaryKey() {
		return nil, inputCtx, nil
	}
	return SymbolsFromTargetColumnPositionOrGeneratedExpression(
		table, positions, targets, table.PrimaryKey(), table.GeneratedColumns(), inputCtx)
}

func PartitionedBySymbols(
	table metadata.TableInfo,
	positions map[common.ColumnIdent]int,
	targets []*metadata.Reference,
	inputCtx *InputColumnsContext,
) ([]symbol.Symbol, *InputColumnsContext, error) {
	return SymbolsFromTargetColumnPositionOrGeneratedExpression(
		table, positions, targets, table.PartitionedBy(), table.GeneratedColumns(), inputCtx)
}

// ClusteredBySymbol returns nil when the routing column is not provided
// by the insert. Rows are then routed by their _id.
func ClusteredBySymbol(
	table metadata.TableInfo,
	positions map[common.ColumnIdent]int,
	targets []*metadata.Reference,
) symbol.Symbol {
	routing := table.ClusteredBy()
	if routing.IsEmpty() {
		return nil
	}
	return targetInput(table, positions, targets, routing)
}
