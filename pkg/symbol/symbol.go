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

// Package symbol holds the analyzed expression trees.
//
// A Symbol is one of *InputColumn, *Literal, *Function or *Reference.
// The set is closed: the marker method is unexported and every consumer
// dispatches with a type switch that panics on anything else. Symbols are
// immutable once built; rewrites always produce new nodes.
package symbol

import (
	"fmt"

	"github.com/govalues/decimal"

	"github.com/weizai118/crate/pkg/common"
)

type Symbol interface {
	ValueType() common.LType
	symbol()
}

// InputColumn addresses a column of the row being processed by its
// position, e.g. the position in an insert target column list.
type InputColumn struct {
	Index int
	Typ   common.LType
}

func NewInputColumn(index int, typ common.LType) *InputColumn {
	return &InputColumn{Index: index, Typ: typ}
}

func (ic *InputColumn) ValueType() common.LType { return ic.Typ }
func (*InputColumn) symbol()                    {}

// Literal is a typed constant. Value is nil, bool, int64, float64,
// decimal.Decimal or string.
type Literal struct {
	Typ   common.LType
	Value any
}

func NullLiteral() *Literal {
	return &Literal{Typ: common.Null()}
}

func StringLiteral(s string) *Literal {
	return &Literal{Typ: common.VarcharType(), Value: s}
}

func BigintLiteral(v int64) *Literal {
	return &Literal{Typ: common.BigintType(), Value: v}
}

func BoolLiteral(v bool) *Literal {
	return &Literal{Typ: common.BooleanType(), Value: v}
}

func DoubleLiteral(v float64) *Literal {
	return &Literal{Typ: common.DoubleType(), Value: v}
}

func DecimalLiteral(d decimal.Decimal) *Literal {
	return &Literal{
		Typ:   common.DecimalType(d.Prec(), d.Scale()),
		Value: d,
	}
}

func (l *Literal) ValueType() common.LType { return l.Typ }
func (*Literal) symbol()                    {}

// Function applies a scalar function or operator to its arguments.
type Function struct {
	Info FunctionInfo
	Args []Symbol
}

func NewFunction(info FunctionInfo, args ...Symbol) *Function {
	return &Function{Info: info, Args: args}
}

func (f *Function) ValueType() common.LType { return f.Info.ReturnType }
func (*Function) symbol()                    {}

func (f *Function) Name() string {
	return f.Info.Ident.Name
}

// Reference is a plain reference to a table column. Relation is the
// name the column was addressed through in a FROM clause, it is empty
// for references inside table definitions.
type Reference struct {
	Table    common.TableIdent
	Relation string
	Column   common.ColumnIdent
	Typ      common.LType
}

func (r *Reference) ValueType() common.LType { return r.Typ }
func (*Reference) symbol()                    {}

func unknownSymbol(s Symbol) string {
	return fmt.Sprintf("usp symbol %T", s)
}
