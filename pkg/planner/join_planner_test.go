package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weizai118/crate/pkg/analyze"
	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/symbol"
)

var (
	relA = analyze.NewRelationName("", "a")
	relB = analyze.NewRelationName("", "b")
	relC = analyze.NewRelationName("", "c")
)

func ref(rel analyze.RelationName, name string) *symbol.Reference {
	return &symbol.Reference{
		Table:    common.NewTableIdent("doc", "t"),
		Relation: rel.String(),
		Column:   common.NewColumnIdent(name),
		Typ:      common.BigintType(),
	}
}

func eq(lhs, rhs symbol.Symbol) symbol.Symbol {
	return symbol.Operator(symbol.OpEqual, lhs, rhs)
}

func and(conds ...symbol.Symbol) symbol.Symbol {
	var ret symbol.Symbol
	for _, cond := range conds {
		ret = symbol.And(ret, cond)
	}
	return ret
}

func TestPlanNormalizesPairs(t *testing.T) {
	pairs := []analyze.JoinPair{
		{Left: relB, Right: relA, Type: analyze.JoinTypeLeft, Condition: eq(ref(relB, "x"), ref(relA, "x"))},
		{Left: relB, Right: relC, Type: analyze.JoinTypeInner, Condition: eq(ref(relB, "x"), ref(relC, "x"))},
	}
	where := and(
		eq(ref(relA, "y"), symbol.BigintLiteral(1)),
		eq(ref(relB, "y"), symbol.BigintLiteral(2)),
		eq(ref(relC, "y"), symbol.BigintLiteral(3)),
		eq(ref(relA, "z"), ref(relB, "z")),
	)

	plan, err := NewJoinPlanner(1).Plan([]analyze.RelationName{relA, relB, relC}, pairs, where)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.CrossJoins)

	// a right join b, then c
	root := plan.Root
	assert.Equal(t, analyze.JoinTypeInner, root.Type)
	assert.Equal(t, relC, root.Right.Relation)
	ab := root.Left
	assert.Equal(t, analyze.JoinTypeRight, ab.Type)
	assert.Equal(t, "(a.x = b.x)", symbol.Format(ab.Condition))
	assert.Equal(t, relA, ab.Left.Relation)
	assert.Equal(t, relB, ab.Right.Relation)
	assert.True(t, ab.Right.Preserved)
	assert.False(t, ab.Left.Preserved)

	// a is null extended and keeps its filter above the join
	assert.Nil(t, ab.Left.Filter)
	assert.Equal(t, "(b.y = 2)", symbol.Format(ab.Right.Filter))
	assert.Equal(t, "(c.y = 3)", symbol.Format(root.Right.Filter))
	assert.Equal(t, "((a.y = 1) AND (a.z = b.z))", symbol.Format(plan.Filter))

	_, ok := analyze.ExactFindPair(plan.Pairs, relA, relB)
	assert.True(t, ok)
	// the caller's list is untouched
	assert.Equal(t, relB, pairs[0].Left)
	assert.Contains(t, plan.String(), "RIGHT")
}

func TestPlanCrossJoins(t *testing.T) {
	pairs := []analyze.JoinPair{
		{Left: relA, Right: relB, Type: analyze.JoinTypeInner, Condition: eq(ref(relA, "x"), ref(relB, "x"))},
		{Left: relB, Right: relC, Type: analyze.JoinTypeInner, Condition: eq(ref(relB, "y"), ref(relC, "y"))},
	}
	plan, err := NewJoinPlanner(1).Plan([]analyze.RelationName{relA, relC, relB}, pairs, nil)
	require.NoError(t, err)
	// c joins a without condition, both pairs are merged into the join of b
	assert.Equal(t, 1, plan.CrossJoins)
	assert.Nil(t, plan.Filter)
	assert.Equal(t, analyze.JoinTypeInner, plan.Root.Type)
	assert.Equal(t, "((c.y = b.y) AND (a.x = b.x))", symbol.Format(plan.Root.Condition))

	_, err = NewJoinPlanner(1).Plan(nil, pairs, nil)
	assert.Error(t, err)
	_, err = NewJoinPlanner(1).Plan([]analyze.RelationName{relA, relA}, pairs, nil)
	assert.Error(t, err)
}

func TestPlanRejectsUnusableJoins(t *testing.T) {
	semi := []analyze.JoinPair{
		{Left: relA, Right: relB, Type: analyze.JoinTypeSemi, Condition: eq(ref(relA, "x"), ref(relB, "x"))},
	}
	// a semi join cannot be used from b
	_, err := NewJoinPlanner(1).Plan([]analyze.RelationName{relB, relA}, semi, nil)
	assert.True(t, common.ErrJoinOrder.Is(err))

	plan, err := NewJoinPlanner(1).Plan([]analyze.RelationName{relA, relB}, semi, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.CrossJoins)
	assert.Equal(t, analyze.JoinTypeSemi, plan.Root.Type)

	left := []analyze.JoinPair{
		{Left: relA, Right: relB, Type: analyze.JoinTypeLeft, Condition: eq(ref(relA, "x"), ref(relB, "x"))},
		{Left: relC, Right: relB, Type: analyze.JoinTypeLeft, Condition: eq(ref(relC, "x"), ref(relB, "x"))},
	}
	// b would be joined by two left joins at once
	_, err = NewJoinPlanner(1).Plan([]analyze.RelationName{relA, relC, relB}, left, nil)
	assert.True(t, common.ErrJoinOrder.Is(err))

	plan, err = NewJoinPlanner(1).Plan([]analyze.RelationName{relA, relB, relC}, left, nil)
	require.NoError(t, err)
	assert.Nil(t, plan.Filter)
	assert.Equal(t, analyze.JoinTypeRight, plan.Root.Type)
	assert.Equal(t, analyze.JoinTypeLeft, plan.Root.Left.Type)
}

func testRelationContext(t *testing.T) *analyze.RelationAnalysisContext {
	table, err := metadata.FromIndexMetaData(common.NewTableIdent("doc", "t"), metadata.IndexMetaData{
		Mapping: map[string]any{
			"properties": map[string]any{"x": map[string]any{"type": "long"}},
		},
	})
	require.NoError(t, err)
	ctx := analyze.NewRelationAnalysisContext()
	for _, rel := range []analyze.RelationName{relA, relB, relC} {
		require.NoError(t, ctx.AddSourceRelation(rel, table))
	}
	require.NoError(t, ctx.AddJoinPair(analyze.JoinPair{
		Left: relC, Right: relA, Type: analyze.JoinTypeInner, Condition: eq(ref(relC, "x"), ref(relA, "x")),
	}))
	require.NoError(t, ctx.AddJoinPair(analyze.JoinPair{
		Left: relC, Right: relB, Type: analyze.JoinTypeInner, Condition: eq(ref(relC, "x"), ref(relB, "x")),
	}))
	return ctx
}

func TestExplore(t *testing.T) {
	relCtx := testRelationContext(t)

	first, err := NewJoinPlanner(1).Explore(context.Background(), relCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Ordinal)
	assert.Equal(t, 1, first.CrossJoins)

	best, err := NewJoinPlanner(6).Explore(context.Background(), relCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, best.Ordinal)
	assert.Equal(t, 0, best.CrossJoins)
	assert.Equal(t, relB, best.Root.Right.Relation)

	// explorations work on forks
	assert.Equal(t, relC, relCtx.JoinPairs()[0].Left)
	assert.Equal(t, relC, relCtx.JoinPairs()[1].Left)
}

func TestExploreSkipsRejectedOrders(t *testing.T) {
	table, err := metadata.FromIndexMetaData(common.NewTableIdent("doc", "t"), metadata.IndexMetaData{})
	require.NoError(t, err)
	relCtx := analyze.NewRelationAnalysisContext()
	for _, rel := range []analyze.RelationName{relA, relC, relB} {
		require.NoError(t, relCtx.AddSourceRelation(rel, table))
	}
	require.NoError(t, relCtx.AddJoinPair(analyze.JoinPair{
		Left: relA, Right: relB, Type: analyze.JoinTypeLeft, Condition: eq(ref(relA, "x"), ref(relB, "x")),
	}))
	require.NoError(t, relCtx.AddJoinPair(analyze.JoinPair{
		Left: relC, Right: relB, Type: analyze.JoinTypeLeft, Condition: eq(ref(relC, "x"), ref(relB, "x")),
	}))

	_, err = NewJoinPlanner(1).Explore(context.Background(), relCtx, nil)
	assert.True(t, common.ErrJoinOrder.Is(err))

	plan, err := NewJoinPlanner(6).Explore(context.Background(), relCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Ordinal)
	assert.Equal(t, 0, plan.CrossJoins)
	assert.Nil(t, plan.Filter)
}

func TestExploreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewJoinPlanner(6).Explore(ctx, testRelationContext(t), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJoinOrders(t *testing.T) {
	orders := joinOrders([]analyze.RelationName{relA, relB, relC}, 100)
	require.Len(t, orders, 6)
	assert.Equal(t, []analyze.RelationName{relA, relB, relC}, orders[0])
	assert.Equal(t, []analyze.RelationName{relA, relC, relB}, orders[1])
	assert.Equal(t, []analyze.RelationName{relC, relB, relA}, orders[5])

	assert.Len(t, joinOrders([]analyze.RelationName{relA, relB, relC}, 2), 2)
	assert.Nil(t, joinOrders(nil, 2))
}
