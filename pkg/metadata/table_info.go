package metadata

import (
	"github.com/weizai118/crate/pkg/common"
)

// TableInfo is the read only view of a table the insert analysis needs.
type TableInfo interface {
	Ident() common.TableIdent

	// PrimaryKey returns the primary key columns in declaration order.
	PrimaryKey() []common.ColumnIdent

	PartitionedBy() []common.ColumnIdent

	// ClusteredBy returns the routing column, empty if the table has none.
	ClusteredBy() common.ColumnIdent

	// HasAutoGeneratedPrimaryKey reports whether the primary key is
	// assigned by the system.
	HasAutoGeneratedPrimaryKey() bool

	GeneratedColumns() []*GeneratedReference

	// GetReference returns nil for unknown columns.
	GetReference(column common.ColumnIdent) *Reference
}

type ColumnPolicy int

const (
	ColumnPolicyDynamic ColumnPolicy = iota
	ColumnPolicyStrict
	ColumnPolicyIgnored
)

func (cp ColumnPolicy) String() string {
	switch cp {
	case ColumnPolicyDynamic:
		return "dynamic"
	case ColumnPolicyStrict:
		return "strict"
	case ColumnPolicyIgnored:
		return "ignored"
	default:
		panic("usp column policy")
	}
}

// columnPolicyFromMapping reads the "dynamic" entry of a mapping.
func columnPolicyFromMapping(value any) ColumnPolicy {
	switch v := value.(type) {
	case nil:
		return ColumnPolicyDynamic
	case bool:
		if v {
			return ColumnPolicyDynamic
		}
		return ColumnPolicyIgnored
	case string:
		switch v {
		case "strict":
			return ColumnPolicyStrict
		case "false", "ignored":
			return ColumnPolicyIgnored
		}
	}
	return ColumnPolicyDynamic
}

type Operation uint8

const (
	OpRead Operation = 1 << iota
	OpInsert
	OpUpdate
	OpDelete
	OpAlter
	OpDrop
)

var operationNames = []struct {
	op   Operation
	name string
}{
	{OpRead, "READ"},
	{OpInsert, "INSERT"},
	{OpUpdate, "UPDATE"},
	{OpDelete, "DELETE"},
	{OpAlter, "ALTER"},
	{OpDrop, "DROP"},
}

func (op Operation) String() string {
	for _, on := range operationNames {
		if on.op == op {
			return on.name
		}
	}
	panic("usp operation")
}

type OperationSet uint8

const AllOperations = OperationSet(OpRead | OpInsert | OpUpdate | OpDelete | OpAlter | OpDrop)

func (set OperationSet) Contains(op Operation) bool {
	return set&OperationSet(op) != 0
}

func (set OperationSet) String() string {
	ret := ""
	for _, on := range operationNames {
		if !set.Contains(on.op) {
			continue
		}
		if ret != "" {
			ret += ","
		}
		ret += on.name
	}
	return ret
}
