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

package analyze

import (
	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/symbol"
)

// ToPositionMap maps the root of each target column to its position.
// The first occurrence of a root wins.
func ToPositionMap(targetColumns []*metadata.Reference) map[common.ColumnIdent]int {
	positions := make(map[common.ColumnIdent]int, len(targetColumns))
	for i, target := range targetColumns {
		root := target.Column.Root()
		if _, has := positions[root]; has {
			continue
		}
		positions[root] = i
	}
	return positions
}

// RewriteNestedInputToSubscript turns the access of ident's path on
// input into a chain of subscript_obj calls. Intermediate links return
// objects, the last one returns leafType.
func RewriteNestedInputToSubscript(ident common.ColumnIdent, input symbol.Symbol, leafType common.LType) symbol.Symbol {
	path := ident.Path()
	ret := input
	for i, key := range path {
		retTyp := common.ObjectType()
		if i == len(path)-1 {
			retTyp = leafType
		}
		ret = symbol.SubscriptObject(ret, key, retTyp)
	}
	return ret
}

// InputColumnsContext maps target columns to their input positions.
// It is built once per statement and shared by all key resolutions.
type InputColumnsContext struct {
	targets   []*metadata.Reference
	positions map[common.ColumnIdent]int
	exact     map[common.ColumnIdent]int
}

func NewInputColumnsContext(targets []*metadata.Reference) *InputColumnsContext {
	ctx := &InputColumnsContext{
		targets:   targets,
		positions: ToPositionMap(targets),
		exact:     make(map[common.ColumnIdent]int, len(targets)),
	}
	for i, target := range targets {
		if _, has := ctx.exact[target.Column]; !has {
			ctx.exact[target.Column] = i
		}
	}
	return ctx
}

// InputFor returns the input symbol providing column, nil if no target
// column provides it.
func (ctx *InputColumnsContext) InputFor(column common.ColumnIdent, typ common.LType) symbol.Symbol {
	if pos, has := ctx.exact[column]; has {
		return symbol.NewInputColumn(pos, ctx.targets[pos].ValueType())
	}
	pos, has := ctx.positions[column.Root()]
	if !has || !ctx.targets[pos].Column.IsTopLevel() {
		return nil
	}
	input := symbol.NewInputColumn(pos, ctx.targets[pos].ValueType())
	return RewriteNestedInputToSubscript(column, input, typ)
}

// CreateInputColumns replaces the references to target columns in expr
// with input columns. Other references are kept.
func CreateInputColumns(expr symbol.Symbol, ctx *InputColumnsContext) symbol.Symbol {
	return symbol.Transform(expr, func(s symbol.Symbol) symbol.Symbol {
		ref, ok := s.(*symbol.Reference)
		if !ok {
			return s
		}
		if input := ctx.InputFor(ref.Column, ref.Typ); input != nil {
			return input
		}
		return s
	})
}
