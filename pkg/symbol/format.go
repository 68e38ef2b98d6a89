package symbol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/govalues/decimal"
	"github.com/xlab/treeprint"
)

func literalValueEqual(a, b any) bool {
	da, aIsDec := a.(decimal.Decimal)
	db, bIsDec := b.(decimal.Decimal)
	if aIsDec || bIsDec {
		return aIsDec && bIsDec && da.Cmp(db) == 0
	}
	return a == b
}

func formatLiteral(l *Literal) string {
	switch v := l.Value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case decimal.Decimal:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

var infixOperators = map[string]string{
	OpEqual:        "=",
	OpNotEqual:     "<>",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpAnd:          "AND",
	OpOr:           "OR",
	OpLike:         "LIKE",
}

// Format renders s in a sql like notation, positional references are
// printed as INPUT(n).
func Format(s Symbol) string {
	sb := strings.Builder{}
	format(&sb, s)
	return sb.String()
}

func format(sb *strings.Builder, s Symbol) {
	switch real := s.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *InputColumn:
		sb.WriteString(fmt.Sprintf("INPUT(%d)", real.Index))
	case *Literal:
		sb.WriteString(formatLiteral(real))
	case *Reference:
		if real.Relation != "" {
			sb.WriteString(real.Relation)
			sb.WriteByte('.')
		}
		sb.WriteString(real.Column.SqlFqn())
	case *Function:
		name := real.Info.Ident.Name
		if op, has := infixOperators[name]; has && len(real.Args) == 2 {
			sb.WriteByte('(')
			format(sb, real.Args[0])
			sb.WriteString(" " + op + " ")
			format(sb, real.Args[1])
			sb.WriteByte(')')
			return
		}
		switch name {
		case OpNot:
			sb.WriteString("(NOT ")
			format(sb, real.Args[0])
			sb.WriteByte(')')
			return
		case OpIsNull:
			sb.WriteByte('(')
			format(sb, real.Args[0])
			sb.WriteString(" IS NULL)")
			return
		case FnCast:
			sb.WriteString("cast(")
			format(sb, real.Args[0])
			sb.WriteString(" AS " + real.Info.ReturnType.String() + ")")
			return
		}
		sb.WriteString(name)
		sb.WriteByte('(')
		for i, arg := range real.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, arg)
		}
		sb.WriteByte(')')
	default:
		panic(unknownSymbol(s))
	}
}

// Print adds s with its type to tree.
func Print(tree treeprint.Tree, s Symbol, meta string) {
	if s == nil {
		return
	}
	head := s.ValueType().String()
	if meta != "" {
		head = meta + " " + head
	}
	switch real := s.(type) {
	case *InputColumn, *Literal, *Reference:
		tree.AddMetaNode(head, Format(real))
	case *Function:
		branch := tree.AddMetaBranch(head, real.Info.Ident.Name)
		for _, arg := range real.Args {
			Print(branch, arg, "")
		}
	default:
		panic(unknownSymbol(s))
	}
}

func PrintList(tree treeprint.Tree, list []Symbol) {
	for i, s := range list {
		Print(tree, s, fmt.Sprintf("%d", i))
	}
}

func String(s Symbol) string {
	tree := treeprint.New()
	Print(tree, s, "")
	return tree.String()
}
