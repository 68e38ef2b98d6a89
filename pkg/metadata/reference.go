package metadata

import (
	"fmt"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/symbol"
)

// Reference is the declared metadata of one column of a table.
type Reference struct {
	Table    common.TableIdent
	Column   common.ColumnIdent
	Typ      common.LType
	Position int
	Nullable bool
}

func NewReference(table common.TableIdent, column common.ColumnIdent, typ common.LType) *Reference {
	return &Reference{
		Table:    table,
		Column:   column,
		Typ:      typ,
		Nullable: true,
	}
}

func (r *Reference) ValueType() common.LType {
	return r.Typ
}

// Symbol returns the plain reference to this column as addressed
// through relation.
func (r *Reference) Symbol(relation string) *symbol.Reference {
	return &symbol.Reference{
		Table:    r.Table,
		Relation: relation,
		Column:   r.Column,
		Typ:      r.Typ,
	}
}

func (r *Reference) String() string {
	return fmt.Sprintf("%s.%s %s", r.Table, r.Column.SqlFqn(), r.Typ)
}

// GeneratedReference is a column computed from other columns of the
// same table.
type GeneratedReference struct {
	Reference
	FormattedExpression string
	Expression          symbol.Symbol
}

func (gr *GeneratedReference) String() string {
	return fmt.Sprintf("%s AS %s", gr.Reference.String(), gr.FormattedExpression)
}

// FindGenerated returns the definition for column, falling back to the
// definition of its root.
func FindGenerated(generated []*GeneratedReference, column common.ColumnIdent) *GeneratedReference {
	var rootMatch *GeneratedReference
	root := column.Root()
	for _, gen := range generated {
		if gen.Column == column {
			return gen
		}
		if rootMatch == nil && gen.Column == root {
			rootMatch = gen
		}
	}
	return rootMatch
}
