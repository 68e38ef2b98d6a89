package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/parser"
	"github.com/weizai118/crate/pkg/symbol"
)

func testCatalog(t *testing.T) *metadata.Catalog {
	catalog := metadata.NewCatalog("")
	catalog.Add(usersTable(t, map[string]any{
		"primary_keys":      []any{"id"},
		"partitioned_by":    []any{[]any{"payload.region", "string"}, "day"},
		"routing":           "id",
		"generated_columns": map[string]any{"day": "date_trunc('day', ts)"},
	}))
	catalog.Add(newTable(t, "src", map[string]any{}, map[string]any{
		"a":  col("integer", 1),
		"p":  col("object", 2),
		"ts": col("timestamp", 3),
	}))
	catalog.Add(newTable(t, "other", map[string]any{}, map[string]any{
		"a": col("integer", 1),
		"b": col("string", 2),
	}))

	strict, err := metadata.FromIndexMetaData(common.NewTableIdent("doc", "strict_t"), metadata.IndexMetaData{
		Mapping: map[string]any{
			"dynamic":    "strict",
			"properties": map[string]any{"x": col("long", 1)},
		},
	})
	require.NoError(t, err)
	catalog.Add(strict)

	readOnly, err := metadata.FromIndexMetaData(common.NewTableIdent("doc", "ro"), metadata.IndexMetaData{
		Settings: map[string]any{metadata.SettingBlocksReadOnly: true},
		Mapping:  map[string]any{"properties": map[string]any{"x": col("long", 1)}},
	})
	require.NoError(t, err)
	catalog.Add(readOnly)
	return catalog
}

func analyzeInsert(t *testing.T, catalog *metadata.Catalog, sql string) (*InsertFromSubQueryAnalyzedStatement, error) {
	stmt, err := parser.ParseOne(sql)
	require.NoError(t, err)
	require.NotNil(t, stmt.GetInsertStmt())
	return NewInsertFromSubQueryAnalyzer(catalog).Analyze(stmt.GetInsertStmt())
}

func TestAnalyzeInsertFromSubQuery(t *testing.T) {
	catalog := testCatalog(t)
	stmt, err := analyzeInsert(t, catalog,
		"insert into t (id, payload, ts) select a, p, ts from src")
	require.NoError(t, err)

	assert.Equal(t, "doc.t", stmt.TableInfo().Ident().Fqn())
	require.Len(t, stmt.Columns(), 3)
	assert.True(t, stmt.IsWriteOperation())
	assert.Nil(t, stmt.OnDuplicateKeyAssignments())

	assert.Equal(t, []symbol.Symbol{symbol.NewInputColumn(0, common.IntegerType())}, stmt.PrimaryKeySymbols())
	require.Len(t, stmt.PartitionedBySymbols(), 2)
	assert.Equal(t, "subscript_obj(INPUT(1), 'region')", symbol.Format(stmt.PartitionedBySymbols()[0]))
	assert.Equal(t, common.VarcharType(), stmt.PartitionedBySymbols()[0].ValueType())
	assert.Equal(t, "date_trunc('day', INPUT(2))", symbol.Format(stmt.PartitionedBySymbols()[1]))
	assert.Equal(t, symbol.NewInputColumn(0, common.IntegerType()), stmt.ClusteredBySymbol())

	sub := stmt.SubQueryRelation()
	require.NotNil(t, sub)
	assert.Equal(t, []string{"a", "p", "ts"}, sub.OutputNames)
	assert.Contains(t, stmt.String(), "subscript_obj")
}

func TestAnalyzeInsertMissingPartitionColumn(t *testing.T) {
	_, err := analyzeInsert(t, testCatalog(t), "insert into t (id, ts) select a, ts from src")
	require.Error(t, err)
	assert.True(t, common.ErrColumnRequired.Is(err))
	assert.Contains(t, err.Error(), "payload['region']")
}

func TestAnalyzeInsertErrors(t *testing.T) {
	catalog := testCatalog(t)
	cases := []struct {
		sql  string
		kind interface{ Is(error) bool }
	}{
		{"insert into nope (x) select a from src", common.ErrTableUnknown},
		{"insert into ro (x) select a from src", common.ErrOperationNotSupported},
		{"insert into strict_t (y) select a from src", common.ErrColumnUnknown},
		{"insert into t (id, id) select a, a from src", common.ErrDuplicateColumn},
		{"insert into t (id, payload) select a from src", common.ErrColumnCountMismatch},
		{"insert into t (id) select missing from src", common.ErrColumnUnknown},
		{"insert into t (id) select a from src, other", common.ErrColumnAmbiguous},
		{"insert into t (id) select a from src join src on true", common.ErrRelationDuplicate},
		{"insert into t (id) values (1)", common.ErrUnsupportedFeature},
		{"insert into t (id, payload, ts) select a, p, ts from src " +
			"on conflict (id) do update set day = excluded.ts", common.ErrGeneratedColumnTarget},
		{"insert into t (id, payload, ts) select a, p, ts from src " +
			"on conflict (id) do update set ts = excluded.day", common.ErrColumnUnknown},
	}
	for _, c := range cases {
		_, err := analyzeInsert(t, catalog, c.sql)
		require.Error(t, err, c.sql)
		assert.True(t, c.kind.Is(err), "%s: %v", c.sql, err)
	}
}

func TestAnalyzeInsertDynamicColumn(t *testing.T) {
	stmt, err := analyzeInsert(t, testCatalog(t),
		"insert into other (a, extra['k']) select a, ts from src")
	require.NoError(t, err)
	require.Len(t, stmt.Columns(), 2)
	extra := stmt.Columns()[1]
	assert.Equal(t, common.NewColumnIdent("extra", "k"), extra.Column)
	assert.Equal(t, common.TimestampType(), extra.Typ)
	assert.Nil(t, stmt.TableInfo().GetReference(extra.Column))
}

func TestAnalyzeInsertOnConflict(t *testing.T) {
	stmt, err := analyzeInsert(t, testCatalog(t),
		"insert into t (id, payload, ts) select a, p, ts from src "+
			"on conflict (id) do update set ts = excluded.ts, payload['region'] = 'eu'")
	require.NoError(t, err)
	assignments := stmt.OnDuplicateKeyAssignments()
	require.Len(t, assignments, 2)
	assert.Equal(t, symbol.NewInputColumn(2, common.TimestampType()), assignments[common.NewColumnIdent("ts")])
	assert.Equal(t, symbol.StringLiteral("eu"), assignments[common.NewColumnIdent("payload", "region")])
}

func TestAnalyzeInsertWithoutColumnList(t *testing.T) {
	stmt, err := analyzeInsert(t, testCatalog(t), "insert into other select * from other")
	require.NoError(t, err)
	require.Len(t, stmt.Columns(), 2)
	assert.Empty(t, stmt.PrimaryKeySymbols())
	assert.Nil(t, stmt.ClusteredBySymbol())
}

func TestAnalyzeSelectJoins(t *testing.T) {
	stmt, err := parser.ParseOne("select s.a, o.b from src s left join other o on s.a = o.a " +
		"join other o2 using (a) where o.b = 'x'")
	require.NoError(t, err)
	qr, err := NewRelationAnalyzer(testCatalog(t)).AnalyzeSelect(stmt.GetSelectStmt())
	require.NoError(t, err)

	s := NewRelationName("", "s")
	o := NewRelationName("", "o")
	o2 := NewRelationName("", "o2")
	assert.Equal(t, []RelationName{s, o, o2}, qr.Context.RelationNames())
	pairs := qr.Context.JoinPairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, JoinPair{Left: s, Right: o, Type: JoinTypeLeft, Condition: pairs[0].Condition}, pairs[0])
	assert.Equal(t, "(s.a = o.a)", symbol.Format(pairs[0].Condition))
	assert.Equal(t, o, pairs[1].Left)
	assert.Equal(t, o2, pairs[1].Right)
	assert.Equal(t, JoinTypeInner, pairs[1].Type)
	assert.Equal(t, "(o.a = o2.a)", symbol.Format(pairs[1].Condition))
	assert.Equal(t, "(o.b = 'x')", symbol.Format(qr.Where))
}
