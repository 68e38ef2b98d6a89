package analyze

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v5"
	"github.com/xlab/treeprint"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/expression"
	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/symbol"
)

// QueriedRelation is an analyzed SELECT.
type QueriedRelation struct {
	Context     *RelationAnalysisContext
	Outputs     []symbol.Symbol
	OutputNames []string
	Where       symbol.Symbol
}

func (qr *QueriedRelation) Print(tree treeprint.Tree) {
	from := tree.AddBranch("from")
	for _, name := range qr.Context.RelationNames() {
		from.AddNode(name.String())
	}
	if len(qr.Context.JoinPairs()) > 0 {
		joins := tree.AddBranch("joins")
		for _, pair := range qr.Context.JoinPairs() {
			joins.AddNode(pair.String())
		}
	}
	outputs := tree.AddBranch("outputs")
	symbol.PrintList(outputs, qr.Outputs)
	if qr.Where != nil {
		symbol.Print(tree.AddBranch("where"), qr.Where, "")
	}
}

// TableResolver looks up the tables a FROM clause addresses.
type TableResolver interface {
	ResolveTable(schema, name string) (*metadata.DocTableInfo, error)
}

type RelationAnalyzer struct {
	tables TableResolver
}

func NewRelationAnalyzer(tables TableResolver) *RelationAnalyzer {
	return &RelationAnalyzer{tables: tables}
}

func (ra *RelationAnalyzer) AnalyzeSelect(stmt *pg_query.SelectStmt) (*QueriedRelation, error) {
	if stmt == nil {
		return nil, common.ErrUnsupportedFeature.New("missing query")
	}
	if len(stmt.GetValuesLists()) > 0 {
		return nil, common.ErrUnsupportedFeature.New("VALUES as a query")
	}
	if stmt.GetOp() != pg_query.SetOperation_SETOP_NONE {
		return nil, common.ErrUnsupportedFeature.New("set operations")
	}
	if len(stmt.GetGroupClause()) > 0 || stmt.GetHavingClause() != nil {
		return nil, common.ErrUnsupportedFeature.New("GROUP BY")
	}
	ctx := NewRelationAnalysisContext()
	if err := ra.AnalyzeFrom(stmt.GetFromClause(), ctx); err != nil {
		return nil, err
	}
	exprs := expression.NewAnalyzer(ctx)
	qr := &QueriedRelation{Context: ctx}
	for _, target := range stmt.GetTargetList() {
		res := target.GetResTarget()
		if ref := res.GetVal().GetColumnRef(); ref != nil && isStar(ref) {
			if err := ra.expandStar(ctx, ref, qr); err != nil {
				return nil, err
			}
			continue
		}
		out, err := exprs.Analyze(res.GetVal())
		if err != nil {
			return nil, err
		}
		name := res.GetName()
		if ref, ok := out.(*symbol.Reference); ok && name == "" {
			name = ref.Column.SqlFqn()
		} else if name == "" {
			name = symbol.Format(out)
		}
		qr.Outputs = append(qr.Outputs, out)
		qr.OutputNames = append(qr.OutputNames, name)
	}
	where, err := exprs.Analyze(stmt.GetWhereClause())
	if err != nil {
		return nil, err
	}
	qr.Where = where
	return qr, nil
}

func isStar(ref *pg_query.ColumnRef) bool {
	fields := ref.GetFields()
	return len(fields) > 0 && fields[len(fields)-1].GetAStar() != nil
}

func (ra *RelationAnalyzer) expandStar(ctx *RelationAnalysisContext, ref *pg_query.ColumnRef, qr *QueriedRelation) error {
	qualifier := ""
	fields := ref.GetFields()
	for _, field := range fields[:len(fields)-1] {
		if qualifier != "" {
			qualifier += "."
		}
		qualifier += field.GetString_().GetSval()
	}
	matched := false
	for _, src := range ctx.Sources() {
		if qualifier != "" && !src.Name.Matches(qualifier) {
			continue
		}
		matched = true
		for _, col := range src.Table.Columns() {
			qr.Outputs = append(qr.Outputs, col.Symbol(src.Name.String()))
			qr.OutputNames = append(qr.OutputNames, col.Column.Fqn())
		}
	}
	if !matched {
		return common.ErrTableUnknown.New(qualifier)
	}
	return nil
}

// AnalyzeFrom adds the relations and join pairs of a FROM clause to ctx.
func (ra *RelationAnalyzer) AnalyzeFrom(from []*pg_query.Node, ctx *RelationAnalysisContext) error {
	for _, item := range from {
		if _, err := ra.analyzeFromItem(item, ctx); err != nil {
			return err
		}
	}
	return nil
}

// analyzeFromItem returns the rightmost relation of item.
func (ra *RelationAnalyzer) analyzeFromItem(item *pg_query.Node, ctx *RelationAnalysisContext) (RelationName, error) {
	switch realItem := item.GetNode().(type) {
	case *pg_query.Node_RangeVar:
		return ra.analyzeRangeVar(realItem.RangeVar, ctx)
	case *pg_query.Node_JoinExpr:
		return ra.analyzeJoin(realItem.JoinExpr, ctx)
	default:
		return RelationName{}, common.ErrUnsupportedFeature.New(fmt.Sprintf("FROM item %T", realItem))
	}
}

func (ra *RelationAnalyzer) analyzeRangeVar(rv *pg_query.RangeVar, ctx *RelationAnalysisContext) (RelationName, error) {
	table, err := ra.tables.ResolveTable(rv.GetSchemaname(), rv.GetRelname())
	if err != nil {
		return RelationName{}, err
	}
	name := NewRelationName(table.Ident().Schema, table.Ident().Name)
	if alias := rv.GetAlias().GetAliasname(); alias != "" {
		name = NewRelationName("", alias)
	}
	if err = ctx.AddSourceRelation(name, table); err != nil {
		return RelationName{}, err
	}
	return name, nil
}

func (ra *RelationAnalyzer) analyzeJoin(join *pg_query.JoinExpr, ctx *RelationAnalysisContext) (RelationName, error) {
	if join.GetIsNatural() {
		return RelationName{}, common.ErrUnsupportedFeature.New("NATURAL JOIN")
	}
	if join.GetAlias() != nil {
		return RelationName{}, common.ErrUnsupportedFeature.New("aliased JOIN")
	}
	typ, err := joinTypeFromPg(join)
	if err != nil {
		return RelationName{}, err
	}
	left, err := ra.analyzeFromItem(join.GetLarg(), ctx)
	if err != nil {
		return RelationName{}, err
	}
	right, err := ra.analyzeFromItem(join.GetRarg(), ctx)
	if err != nil {
		return RelationName{}, err
	}

	exprs := expression.NewAnalyzer(ctx)
	var cond symbol.Symbol
	for _, using := range join.GetUsingClause() {
		column := common.NewColumnIdent(using.GetString_().GetSval())
		lhs, err := ctx.ResolveField(left.String(), column)
		if err != nil {
			return RelationName{}, err
		}
		rhs, err := ctx.ResolveField(right.String(), column)
		if err != nil {
			return RelationName{}, err
		}
		cond = symbol.And(cond, symbol.Operator(symbol.OpEqual, lhs, rhs))
	}
	quals, err := exprs.Analyze(join.GetQuals())
	if err != nil {
		return RelationName{}, err
	}
	cond = symbol.And(cond, quals)

	err = ctx.AddJoinPair(JoinPair{
		Left:      left,
		Right:     right,
		Type:      typ,
		Condition: cond,
	})
	if err != nil {
		return RelationName{}, err
	}
	return right, nil
}
