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

// Package expression converts parsed value expressions into symbols.
package expression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/govalues/decimal"
	pg_query "github.com/pganalyze/pg_query_go/v5"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/symbol"
)

// FieldResolver resolves column references. relation is empty for
// unqualified references.
type FieldResolver interface {
	ResolveField(relation string, column common.ColumnIdent) (*symbol.Reference, error)
}

type Analyzer struct {
	resolver FieldResolver
}

func NewAnalyzer(resolver FieldResolver) *Analyzer {
	return &Analyzer{resolver: resolver}
}

func (a *Analyzer) Analyze(expr *pg_query.Node) (symbol.Symbol, error) {
	if expr == nil {
		return nil, nil
	}
	switch realExpr := expr.GetNode().(type) {
	case *pg_query.Node_ColumnRef:
		return a.analyzeColumnRef(realExpr.ColumnRef, nil)
	case *pg_query.Node_AIndirection:
		return a.analyzeIndirection(realExpr.AIndirection)
	case *pg_query.Node_AConst:
		return analyzeConst(realExpr.AConst)
	case *pg_query.Node_AExpr:
		return a.analyzeAExpr(realExpr.AExpr)
	case *pg_query.Node_BoolExpr:
		return a.analyzeBoolExpr(realExpr.BoolExpr)
	case *pg_query.Node_NullTest:
		return a.analyzeNullTest(realExpr.NullTest)
	case *pg_query.Node_FuncCall:
		return a.analyzeFuncCall(realExpr.FuncCall)
	case *pg_query.Node_CoalesceExpr:
		return a.analyzeScalar("coalesce", realExpr.CoalesceExpr.GetArgs())
	case *pg_query.Node_MinMaxExpr:
		name := "greatest"
		if realExpr.MinMaxExpr.GetOp() == pg_query.MinMaxOp_IS_LEAST {
			name = "least"
		}
		return a.analyzeScalar(name, realExpr.MinMaxExpr.GetArgs())
	case *pg_query.Node_TypeCast:
		return a.analyzeTypeCast(realExpr.TypeCast)
	case *pg_query.Node_SqlvalueFunction:
		return analyzeSQLValueFunction(realExpr.SqlvalueFunction), nil
	default:
		return nil, common.ErrUnsupportedFeature.New(fmt.Sprintf("expression %T", realExpr))
	}
}

func (a *Analyzer) AnalyzeList(exprs []*pg_query.Node) ([]symbol.Symbol, error) {
	ret := make([]symbol.Symbol, 0, len(exprs))
	for _, expr := range exprs {
		s, err := a.Analyze(expr)
		if err != nil {
			return nil, err
		}
		ret = append(ret, s)
	}
	return ret, nil
}

// SplitColumnRef returns the relation and column name of a column
// reference. Three part names keep schema.table as the relation.
func SplitColumnRef(ref *pg_query.ColumnRef) (string, string, error) {
	names := make([]string, 0, len(ref.GetFields()))
	for _, field := range ref.GetFields() {
		str := field.GetString_()
		if str == nil {
			return "", "", common.ErrUnsupportedFeature.New("column reference " + ref.String())
		}
		names = append(names, str.GetSval())
	}
	switch len(names) {
	case 1:
		return "", names[0], nil
	case 2:
		return names[0], names[1], nil
	case 3:
		return names[0] + "." + names[1], names[2], nil
	default:
		return "", "", common.ErrUnsupportedFeature.New(fmt.Sprintf("column reference with %d parts", len(names)))
	}
}

func (a *Analyzer) analyzeColumnRef(ref *pg_query.ColumnRef, path []string) (symbol.Symbol, error) {
	relation, name, err := SplitColumnRef(ref)
	if err != nil {
		return nil, err
	}
	return a.resolver.ResolveField(relation, common.NewColumnIdent(name, path...))
}

// SubscriptPath extracts the object keys of col['a']['b'] or (col).a.b.
func SubscriptPath(indirection []*pg_query.Node) ([]string, error) {
	path := make([]string, 0, len(indirection))
	for _, node := range indirection {
		switch realNode := node.GetNode().(type) {
		case *pg_query.Node_String_:
			path = append(path, realNode.String_.GetSval())
		case *pg_query.Node_AIndices:
			idx := realNode.AIndices
			key := idx.GetUidx().GetAConst().GetSval()
			if idx.GetIsSlice() || key == nil {
				return nil, common.ErrUnsupportedFeature.New("non object subscript")
			}
			path = append(path, key.GetSval())
		default:
			return nil, common.ErrUnsupportedFeature.New(fmt.Sprintf("subscript %T", realNode))
		}
	}
	return path, nil
}

func (a *Analyzer) analyzeIndirection(ind *pg_query.A_Indirection) (symbol.Symbol, error) {
	ref := ind.GetArg().GetColumnRef()
	if ref == nil {
		return nil, common.ErrUnsupportedFeature.New("subscript on a non column expression")
	}
	path, err := SubscriptPath(ind.GetIndirection())
	if err != nil {
		return nil, err
	}
	return a.analyzeColumnRef(ref, path)
}

func analyzeConst(c *pg_query.A_Const) (symbol.Symbol, error) {
	if c.GetIsnull() {
		return symbol.NullLiteral(), nil
	}
	switch val := c.GetVal().(type) {
	case *pg_query.A_Const_Ival:
		return &symbol.Literal{Typ: common.IntegerType(), Value: int64(val.Ival.GetIval())}, nil
	case *pg_query.A_Const_Fval:
		return numericLiteral(val.Fval.GetFval())
	case *pg_query.A_Const_Sval:
		return symbol.StringLiteral(val.Sval.GetSval()), nil
	case *pg_query.A_Const_Boolval:
		return symbol.BoolLiteral(val.Boolval.GetBoolval()), nil
	default:
		return nil, common.ErrUnsupportedFeature.New(fmt.Sprintf("constant %T", val))
	}
}

// numericLiteral handles the numbers the parser does not fit in int32.
func numericLiteral(s string) (symbol.Symbol, error) {
	if !strings.ContainsAny(s, ".eE") {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return symbol.BigintLiteral(v), nil
		}
	}
	d, err := decimal.Parse(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil, fmt.Errorf("invalid numeric literal %q: %w", s, err)
		}
		return symbol.DoubleLiteral(f), nil
	}
	return symbol.DecimalLiteral(d), nil
}

func negate(s symbol.Symbol) symbol.Symbol {
	if lit, ok := s.(*symbol.Literal); ok {
		switch v := lit.Value.(type) {
		case int64:
			return &symbol.Literal{Typ: lit.Typ, Value: -v}
		case float64:
			return &symbol.Literal{Typ: lit.Typ, Value: -v}
		case decimal.Decimal:
			return &symbol.Literal{Typ: lit.Typ, Value: v.Neg()}
		}
	}
	info := symbol.NewFunctionInfo("negate", s.ValueType(), s.ValueType())
	return symbol.NewFunction(info, s)
}

var comparisonNames = map[string]string{
	"=":  symbol.OpEqual,
	"<>": symbol.OpNotEqual,
	"!=": symbol.OpNotEqual,
	"<":  symbol.OpLess,
	"<=": symbol.OpLessEqual,
	">":  symbol.OpGreater,
	">=": symbol.OpGreaterEqual,
}

var arithmeticNames = map[string]string{
	"+": symbol.FnAdd,
	"-": symbol.FnSubtract,
	"*": symbol.FnMultiply,
	"/": symbol.FnDivide,
	"%": symbol.FnModulus,
}

func operatorName(names []*pg_query.Node) string {
	for _, node := range names {
		sval := node.GetString_().GetSval()
		if sval == "pg_catalog" {
			continue
		}
		return sval
	}
	return ""
}

func (a *Analyzer) analyzeAExpr(expr *pg_query.A_Expr) (symbol.Symbol, error) {
	op := operatorName(expr.GetName())
	switch expr.GetKind() {
	case pg_query.A_Expr_Kind_AEXPR_OP:
	case pg_query.A_Expr_Kind_AEXPR_LIKE:
		op = "~~"
	case pg_query.A_Expr_Kind_AEXPR_NULLIF:
		return a.analyzeScalar("nullif", []*pg_query.Node{expr.GetLexpr(), expr.GetRexpr()})
	default:
		return nil, common.ErrUnsupportedFeature.New(fmt.Sprintf("operator kind %v", expr.GetKind()))
	}

	rhs, err := a.Analyze(expr.GetRexpr())
	if err != nil {
		return nil, err
	}
	if expr.GetLexpr() == nil {
		if op == "-" {
			return negate(rhs), nil
		}
		if op == "+" {
			return rhs, nil
		}
		return nil, common.ErrUnsupportedFeature.New("prefix operator " + op)
	}
	lhs, err := a.Analyze(expr.GetLexpr())
	if err != nil {
		return nil, err
	}

	if name, has := comparisonNames[op]; has {
		return symbol.Operator(name, lhs, rhs), nil
	}
	if op == "~~" {
		return symbol.Operator(symbol.OpLike, lhs, rhs), nil
	}
	if name, has := arithmeticNames[op]; has {
		retTyp := arithmeticResultType(lhs.ValueType(), rhs.ValueType())
		info := symbol.NewFunctionInfo(name, retTyp, lhs.ValueType(), rhs.ValueType())
		return symbol.NewFunction(info, lhs, rhs), nil
	}
	return nil, common.ErrUnsupportedFeature.New("operator " + op)
}

var numericPrecedence = map[common.LTypeId]int{
	common.LTID_TINYINT:  1,
	common.LTID_SMALLINT: 2,
	common.LTID_INTEGER:  3,
	common.LTID_BIGINT:   4,
	common.LTID_DECIMAL:  5,
	common.LTID_FLOAT:    6,
	common.LTID_DOUBLE:   7,
}

func arithmeticResultType(lhs, rhs common.LType) common.LType {
	if lhs.Id == common.LTID_TIMESTAMP || rhs.Id == common.LTID_TIMESTAMP {
		return common.TimestampType()
	}
	lp, lok := numericPrecedence[lhs.Id]
	rp, rok := numericPrecedence[rhs.Id]
	if !lok || !rok {
		return common.UndefinedType()
	}
	ret := lhs
	if rp > lp {
		ret = rhs
	}
	switch ret.Id {
	case common.LTID_TINYINT, common.LTID_SMALLINT, common.LTID_INTEGER:
		return common.BigintType()
	case common.LTID_DECIMAL:
		return common.DecimalType(0, 0)
	}
	return ret
}

func (a *Analyzer) analyzeBoolExpr(expr *pg_query.BoolExpr) (symbol.Symbol, error) {
	args, err := a.AnalyzeList(expr.GetArgs())
	if err != nil {
		return nil, err
	}
	switch expr.GetBoolop() {
	case pg_query.BoolExprType_AND_EXPR, pg_query.BoolExprType_OR_EXPR:
		name := symbol.OpAnd
		if expr.GetBoolop() == pg_query.BoolExprType_OR_EXPR {
			name = symbol.OpOr
		}
		ret := args[0]
		for _, arg := range args[1:] {
			ret = symbol.Operator(name, ret, arg)
		}
		return ret, nil
	case pg_query.BoolExprType_NOT_EXPR:
		return symbol.Operator(symbol.OpNot, args[0]), nil
	default:
		return nil, common.ErrUnsupportedFeature.New(fmt.Sprintf("bool expression %v", expr.GetBoolop()))
	}
}

func (a *Analyzer) analyzeNullTest(expr *pg_query.NullTest) (symbol.Symbol, error) {
	arg, err := a.Analyze(expr.GetArg())
	if err != nil {
		return nil, err
	}
	isNull := symbol.Operator(symbol.OpIsNull, arg)
	if expr.GetNulltesttype() == pg_query.NullTestType_IS_NOT_NULL {
		return symbol.Operator(symbol.OpNot, isNull), nil
	}
	return isNull, nil
}

func (a *Analyzer) analyzeFuncCall(expr *pg_query.FuncCall) (symbol.Symbol, error) {
	if expr.GetAggStar() || expr.GetAggDistinct() || expr.GetOver() != nil {
		return nil, common.ErrUnsupportedFeature.New("aggregate or window function")
	}
	return a.analyzeScalar(strings.ToLower(operatorName(expr.GetFuncname())), expr.GetArgs())
}

// analyzeScalar builds a call of the scalar function name. coalesce,
// greatest, least and nullif have their own parse nodes and end here too.
func (a *Analyzer) analyzeScalar(name string, argNodes []*pg_query.Node) (symbol.Symbol, error) {
	args, err := a.AnalyzeList(argNodes)
	if err != nil {
		return nil, err
	}
	argTypes := make([]common.LType, 0, len(args))
	for _, arg := range args {
		argTypes = append(argTypes, arg.ValueType())
	}
	info := symbol.NewFunctionInfo(name, scalarReturnType(name, argTypes), argTypes...)
	return symbol.NewFunction(info, args...), nil
}

var scalarReturnTypes = map[string]common.LType{
	"date_trunc":   common.TimestampType(),
	"date_format":  common.VarcharType(),
	"now":          common.TimestampType(),
	"concat":       common.VarcharType(),
	"format":       common.VarcharType(),
	"lower":        common.VarcharType(),
	"upper":        common.VarcharType(),
	"substr":       common.VarcharType(),
	"trim":         common.VarcharType(),
	"md5":          common.VarcharType(),
	"sha1":         common.VarcharType(),
	"length":       common.IntegerType(),
	"char_length":  common.IntegerType(),
	"octet_length": common.IntegerType(),
	"extract":      common.IntegerType(),
	"random":       common.DoubleType(),
	"ceil":         common.BigintType(),
	"floor":        common.BigintType(),
	"round":        common.BigintType(),
}

// scalarReturnType resolves the builtins analysis needs to type, the
// rest are typed by their first argument or left undefined.
func scalarReturnType(name string, argTypes []common.LType) common.LType {
	if typ, has := scalarReturnTypes[name]; has {
		return typ
	}
	switch name {
	case "abs", "coalesce", "greatest", "least", "nullif":
		if len(argTypes) > 0 {
			return argTypes[0]
		}
	}
	return common.UndefinedType()
}

func (a *Analyzer) analyzeTypeCast(expr *pg_query.TypeCast) (symbol.Symbol, error) {
	arg, err := a.Analyze(expr.GetArg())
	if err != nil {
		return nil, err
	}
	typName := ""
	for _, name := range expr.GetTypeName().GetNames() {
		if name.GetString_().GetSval() == "pg_catalog" {
			continue
		}
		typName = name.GetString_().GetSval()
	}
	typ, err := castTarget(typName)
	if err != nil {
		return nil, err
	}
	if len(expr.GetTypeName().GetArrayBounds()) > 0 {
		typ = common.ArrayType(typ.Id)
	}
	info := symbol.NewFunctionInfo(symbol.FnCast, typ, arg.ValueType())
	return symbol.NewFunction(info, arg), nil
}

var pgInternalTypeNames = map[string]string{
	"bpchar":  "text",
	"numeric": "numeric",
	"bool":    "boolean",
}

func castTarget(name string) (common.LType, error) {
	if mapped, has := pgInternalTypeNames[name]; has {
		name = mapped
	}
	return common.ParseLType(name)
}

func analyzeSQLValueFunction(fn *pg_query.SQLValueFunction) symbol.Symbol {
	name := strings.ToLower(strings.TrimPrefix(fn.GetOp().String(), "SVFOP_"))
	typ := common.VarcharType()
	if strings.Contains(name, "time") || strings.Contains(name, "date") {
		typ = common.TimestampType()
	}
	return symbol.NewFunction(symbol.NewFunctionInfo(name, typ))
}
