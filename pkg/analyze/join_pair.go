package analyze

import (
	"fmt"
	"slices"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/symbol"
)

// RelationName names a relation of a FROM clause. Aliased relations
// have no schema.
type RelationName struct {
	Schema string
	Name   string
}

func NewRelationName(schema, name string) RelationName {
	return RelationName{Schema: schema, Name: name}
}

func (rn RelationName) String() string {
	if rn.Schema == "" {
		return rn.Name
	}
	return rn.Schema + "." + rn.Name
}

// Matches reports whether a qualifier written in a query addresses rn.
func (rn RelationName) Matches(qualifier string) bool {
	if qualifier == rn.String() {
		return true
	}
	return !strings.Contains(qualifier, ".") && qualifier == rn.Name
}

type JoinType int

const (
	JoinTypeCross JoinType = iota
	JoinTypeInner
	JoinTypeLeft
	JoinTypeRight
	JoinTypeFull
	JoinTypeSemi
	JoinTypeAnti
)

func (jt JoinType) String() string {
	switch jt {
	case JoinTypeCross:
		return "CROSS"
	case JoinTypeInner:
		return "INNER"
	case JoinTypeLeft:
		return "LEFT"
	case JoinTypeRight:
		return "RIGHT"
	case JoinTypeFull:
		return "FULL"
	case JoinTypeSemi:
		return "SEMI"
	case JoinTypeAnti:
		return "ANTI"
	default:
		panic(fmt.Sprintf("usp join type %d", jt))
	}
}

// SupportsInversion reports whether a join of this type can be
// expressed with both sides swapped.
func (jt JoinType) SupportsInversion() bool {
	switch jt {
	case JoinTypeSemi, JoinTypeAnti:
		return false
	default:
		return true
	}
}

// Invert returns the type of the join with both sides swapped.
func (jt JoinType) Invert() JoinType {
	switch jt {
	case JoinTypeLeft:
		return JoinTypeRight
	case JoinTypeRight:
		return JoinTypeLeft
	case JoinTypeSemi, JoinTypeAnti:
		panic(fmt.Sprintf("usp invert %s join", jt))
	default:
		return jt
	}
}

func (jt JoinType) IsOuter() bool {
	return jt == JoinTypeLeft || jt == JoinTypeRight || jt == JoinTypeFull
}

func (jt JoinType) preservesLeft() bool {
	return jt == JoinTypeLeft || jt == JoinTypeFull
}

func (jt JoinType) preservesRight() bool {
	return jt == JoinTypeRight || jt == JoinTypeFull
}

func joinTypeFromPg(expr *pg_query.JoinExpr) (JoinType, error) {
	switch expr.GetJointype() {
	case pg_query.JoinType_JOIN_INNER:
		if expr.GetQuals() == nil && len(expr.GetUsingClause()) == 0 {
			return JoinTypeCross, nil
		}
		return JoinTypeInner, nil
	case pg_query.JoinType_JOIN_LEFT:
		return JoinTypeLeft, nil
	case pg_query.JoinType_JOIN_RIGHT:
		return JoinTypeRight, nil
	case pg_query.JoinType_JOIN_FULL:
		return JoinTypeFull, nil
	case pg_query.JoinType_JOIN_SEMI:
		return JoinTypeSemi, nil
	case pg_query.JoinType_JOIN_ANTI:
		return JoinTypeAnti, nil
	default:
		return 0, common.ErrUnsupportedFeature.New(fmt.Sprintf("join type %v", expr.GetJointype()))
	}
}

// JoinPair is a join between two relations of a FROM clause.
type JoinPair struct {
	Left      RelationName
	Right     RelationName
	Type      JoinType
	Condition symbol.Symbol
}

func (jp JoinPair) EqualsNames(left, right RelationName) bool {
	return jp.Left == left && jp.Right == right
}

// Reverse returns the same join with both sides swapped.
func (jp JoinPair) Reverse() JoinPair {
	return JoinPair{
		Left:      jp.Right,
		Right:     jp.Left,
		Type:      jp.Type.Invert(),
		Condition: mirrorCondition(jp.Condition),
	}
}

// IsOuterRelation reports whether rows of name are preserved by an
// outer join of this pair.
func (jp JoinPair) IsOuterRelation(name RelationName) bool {
	if jp.Type.preservesLeft() && jp.Left == name {
		return true
	}
	return jp.Type.preservesRight() && jp.Right == name
}

func (jp JoinPair) String() string {
	ret := fmt.Sprintf("%s %s JOIN %s", jp.Left, jp.Type, jp.Right)
	if jp.Condition != nil {
		ret += " ON " + symbol.Format(jp.Condition)
	}
	return ret
}

// mirrorCondition swaps the operands of the comparisons in cond.
func mirrorCondition(cond symbol.Symbol) symbol.Symbol {
	if cond == nil {
		return nil
	}
	return symbol.Transform(cond, func(s symbol.Symbol) symbol.Symbol {
		fn, ok := s.(*symbol.Function)
		if !ok || len(fn.Args) != 2 {
			return s
		}
		mirror, ok := symbol.MirrorOperator(fn.Name())
		if !ok {
			return s
		}
		return symbol.Operator(mirror, fn.Args[1], fn.Args[0])
	})
}

// ExactFindPair finds the pair joining left with right in this
// orientation.
func ExactFindPair(pairs []JoinPair, left, right RelationName) (JoinPair, bool) {
	for _, pair := range pairs {
		if pair.EqualsNames(left, right) {
			return pair, true
		}
	}
	return JoinPair{}, false
}

// FuzzyFindPair finds the pair joining left with right in either
// orientation. A pair found in the opposite orientation is reversed and
// replaces the original entry in the returned list, pairs itself is not
// modified. Pairs whose join type cannot be inverted only match in
// their own orientation.
func FuzzyFindPair(pairs []JoinPair, left, right RelationName) (JoinPair, []JoinPair, bool) {
	if pair, ok := ExactFindPair(pairs, left, right); ok {
		return pair, pairs, true
	}
	for i, pair := range pairs {
		if !pair.Type.SupportsInversion() || !pair.EqualsNames(right, left) {
			continue
		}
		reversed := pair.Reverse()
		normalized := slices.Clone(pairs)
		normalized[i] = reversed
		return reversed, normalized, true
	}
	return JoinPair{}, pairs, false
}

// IsOuterRelation reports whether name is preserved by an outer join in
// pairs.
func IsOuterRelation(name RelationName, pairs []JoinPair) bool {
	for _, pair := range pairs {
		if pair.IsOuterRelation(name) {
			return true
		}
	}
	return false
}

// IsNullExtended reports whether rows of name may be null extended by
// an outer join in pairs.
func IsNullExtended(name RelationName, pairs []JoinPair) bool {
	for _, pair := range pairs {
		if (pair.Left == name && pair.Type.preservesRight()) ||
			(pair.Right == name && pair.Type.preservesLeft()) {
			return true
		}
	}
	return false
}
