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

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser(t *testing.T) {
	stmts, err := Parse("SELECT 42")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(stmts))
	assert.Equal(t, int32(42), stmts[0].Stmt.GetSelectStmt().GetTargetList()[0].GetResTarget().GetVal().GetAConst().GetIval().Ival)
}

func TestParseInsertFromSubquery(t *testing.T) {
	stmt, err := ParseOne("insert into t (id, payload['region']) select a, b from s1 left join s2 on s1.a = s2.a")
	require.NoError(t, err)
	ins := stmt.GetInsertStmt()
	require.NotNil(t, ins)
	assert.Equal(t, "t", ins.GetRelation().GetRelname())
	require.Len(t, ins.GetCols(), 2)
	assert.Equal(t, "payload", ins.GetCols()[1].GetResTarget().GetName())
	assert.Len(t, ins.GetCols()[1].GetResTarget().GetIndirection(), 1)
	from := ins.GetSelectStmt().GetSelectStmt().GetFromClause()
	require.Len(t, from, 1)
	assert.NotNil(t, from[0].GetJoinExpr())
}

func TestParseOne(t *testing.T) {
	_, err := ParseOne("select 1; select 2")
	assert.Error(t, err)
	_, err = ParseOne("select from where")
	assert.Error(t, err)
}

func TestParseExpression(t *testing.T) {
	node, err := ParseExpression("date_trunc('day', ts)")
	require.NoError(t, err)
	assert.NotNil(t, node.GetFuncCall())

	node, err = ParseExpression("payload['region']")
	require.NoError(t, err)
	assert.NotNil(t, node.GetAIndirection())

	_, err = ParseExpression("a, b")
	assert.Error(t, err)
	_, err = ParseExpression("a from t")
	assert.Error(t, err)
}
