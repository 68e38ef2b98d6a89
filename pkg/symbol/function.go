package symbol

import (
	"strings"

	"github.com/weizai118/crate/pkg/common"
)

const (
	SubscriptObjectName = "subscript_obj"

	OpEqual        = "op_="
	OpNotEqual     = "op_<>"
	OpLess         = "op_<"
	OpLessEqual    = "op_<="
	OpGreater      = "op_>"
	OpGreaterEqual = "op_>="
	OpAnd          = "op_and"
	OpOr           = "op_or"
	OpNot          = "op_not"
	OpIsNull       = "op_isnull"
	OpLike         = "op_like"

	FnAdd      = "add"
	FnSubtract = "subtract"
	FnMultiply = "multiply"
	FnDivide   = "divide"
	FnModulus  = "modulus"
	FnCast     = "cast"
)

type FunctionIdent struct {
	Name     string
	ArgTypes []common.LType
}

func (fi FunctionIdent) String() string {
	sb := strings.Builder{}
	sb.WriteString(fi.Name)
	sb.WriteByte('(')
	for i, typ := range fi.ArgTypes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(typ.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

type FunctionInfo struct {
	Ident      FunctionIdent
	ReturnType common.LType
}

func NewFunctionInfo(name string, returnType common.LType, argTypes ...common.LType) FunctionInfo {
	return FunctionInfo{
		Ident: FunctionIdent{
			Name:     name,
			ArgTypes: argTypes,
		},
		ReturnType: returnType,
	}
}

// SubscriptObject builds subscript_obj(base, 'key') returning returnType.
func SubscriptObject(base Symbol, key string, returnType common.LType) *Function {
	info := NewFunctionInfo(SubscriptObjectName, returnType,
		common.ObjectType(), common.VarcharType())
	return NewFunction(info, base, StringLiteral(key))
}

// Operator builds a boolean operator over args.
func Operator(name string, args ...Symbol) *Function {
	argTypes := make([]common.LType, 0, len(args))
	for _, arg := range args {
		argTypes = append(argTypes, arg.ValueType())
	}
	return NewFunction(NewFunctionInfo(name, common.BooleanType(), argTypes...), args...)
}

// And joins both sides, either may be nil.
func And(lhs, rhs Symbol) Symbol {
	if lhs == nil {
		return rhs
	}
	if rhs == nil {
		return lhs
	}
	return Operator(OpAnd, lhs, rhs)
}

var comparisonMirrors = map[string]string{
	OpEqual:        OpEqual,
	OpNotEqual:     OpNotEqual,
	OpLess:         OpGreater,
	OpLessEqual:    OpGreaterEqual,
	OpGreater:      OpLess,
	OpGreaterEqual: OpLessEqual,
}

// MirrorOperator returns the operator that holds after swapping the two
// operands of name.
func MirrorOperator(name string) (string, bool) {
	mirror, has := comparisonMirrors[name]
	return mirror, has
}

func IsComparison(name string) bool {
	_, has := comparisonMirrors[name]
	return has
}
