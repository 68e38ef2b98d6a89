package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/symbol"
)

func TestAddJoinPairMerges(t *testing.T) {
	ctx := NewRelationAnalysisContext()
	eq := symbol.Operator(symbol.OpEqual, colRef(relA, "x"), colRef(relB, "x"))
	less := symbol.Operator(symbol.OpLess, colRef(relB, "y"), colRef(relA, "y"))

	require.NoError(t, ctx.AddJoinPair(JoinPair{Left: relA, Right: relB, Type: JoinTypeCross}))
	require.NoError(t, ctx.AddJoinPair(JoinPair{Left: relA, Right: relB, Type: JoinTypeLeft, Condition: eq}))
	require.NoError(t, ctx.AddJoinPair(JoinPair{Left: relB, Right: relA, Type: JoinTypeRight, Condition: less}))
	require.NoError(t, ctx.AddJoinPair(JoinPair{Left: relB, Right: relC, Type: JoinTypeInner}))

	pairs := ctx.JoinPairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, relA, pairs[0].Left)
	assert.Equal(t, JoinTypeLeft, pairs[0].Type)
	assert.Equal(t, "((doc.a.x = doc.b.x) AND (doc.a.y > doc.b.y))", symbol.Format(pairs[0].Condition))

	err := ctx.AddJoinPair(JoinPair{Left: relA, Right: relB, Type: JoinTypeFull})
	assert.True(t, common.ErrUnsupportedFeature.Is(err))
}

func TestAddJoinPairNonInvertible(t *testing.T) {
	ctx := NewRelationAnalysisContext()
	require.NoError(t, ctx.AddJoinPair(JoinPair{Left: relA, Right: relB, Type: JoinTypeSemi}))
	require.NoError(t, ctx.AddJoinPair(JoinPair{Left: relB, Right: relA, Type: JoinTypeCross}))
	require.Len(t, ctx.JoinPairs(), 1)
	assert.Equal(t, JoinTypeSemi, ctx.JoinPairs()[0].Type)

	err := ctx.AddJoinPair(JoinPair{Left: relB, Right: relA, Type: JoinTypeAnti})
	assert.True(t, common.ErrUnsupportedFeature.Is(err))
}

func TestFork(t *testing.T) {
	catalog := testCatalog(t)
	src, err := catalog.ResolveTable("", "src")
	require.NoError(t, err)
	other, err := catalog.ResolveTable("", "other")
	require.NoError(t, err)

	ctx := NewRelationAnalysisContext()
	require.NoError(t, ctx.AddSourceRelation(relA, src))
	require.NoError(t, ctx.AddSourceRelation(relB, other))
	assert.True(t, common.ErrRelationDuplicate.Is(ctx.AddSourceRelation(relA, other)))
	cond := symbol.Operator(symbol.OpEqual, colRef(relB, "a"), colRef(relA, "a"))
	require.NoError(t, ctx.AddJoinPair(JoinPair{Left: relB, Right: relA, Type: JoinTypeInner, Condition: cond}))

	fork := ctx.Fork()
	assert.Same(t, src, fork.Sources()[0].Table)
	assert.Equal(t, ctx.JoinPairs(), fork.JoinPairs())

	_, normalized, ok := FuzzyFindPair(fork.JoinPairs(), relA, relB)
	require.True(t, ok)
	fork.joinPairs = normalized
	assert.Equal(t, relB, ctx.JoinPairs()[0].Left)
	assert.Equal(t, relA, fork.JoinPairs()[0].Left)

	require.NoError(t, fork.AddSourceRelation(relC, src))
	assert.Len(t, ctx.Sources(), 2)
}

func TestResolveField(t *testing.T) {
	catalog := testCatalog(t)
	src, err := catalog.ResolveTable("", "src")
	require.NoError(t, err)
	other, err := catalog.ResolveTable("", "other")
	require.NoError(t, err)

	ctx := NewRelationAnalysisContext()
	require.NoError(t, ctx.AddSourceRelation(NewRelationName("doc", "src"), src))
	require.NoError(t, ctx.AddSourceRelation(NewRelationName("", "o"), other))

	ref, err := ctx.ResolveField("", common.NewColumnIdent("b"))
	require.NoError(t, err)
	assert.Equal(t, "o", ref.Relation)

	ref, err = ctx.ResolveField("src", common.NewColumnIdent("a"))
	require.NoError(t, err)
	assert.Equal(t, "doc.src", ref.Relation)

	_, err = ctx.ResolveField("", common.NewColumnIdent("a"))
	assert.True(t, common.ErrColumnAmbiguous.Is(err))
	_, err = ctx.ResolveField("other", common.NewColumnIdent("a"))
	assert.True(t, common.ErrTableUnknown.Is(err))
	_, err = ctx.ResolveField("o", common.NewColumnIdent("zz"))
	assert.True(t, common.ErrColumnUnknown.Is(err))
}
