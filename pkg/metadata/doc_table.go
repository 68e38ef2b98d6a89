package metadata

import (
	"fmt"
	"sort"

	"github.com/spf13/cast"
	"github.com/tidwall/btree"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/expression"
	"github.com/weizai118/crate/pkg/parser"
	"github.com/weizai118/crate/pkg/symbol"
)

const (
	IdColumnName = "_id"

	SettingNumberOfShards     = "index.number_of_shards"
	SettingNumberOfReplicas   = "index.number_of_replicas"
	SettingAutoExpandReplicas = "index.auto_expand_replicas"
	SettingBlocksReadOnly     = "index.blocks.read_only"
	SettingBlocksRead         = "index.blocks.read"
	SettingBlocksWrite        = "index.blocks.write"
	SettingBlocksMetadata     = "index.blocks.metadata"

	defaultNumberOfShards = 4
)

// IndexMetaData is the raw index description a table is built from:
// flattened index settings and the source of its type mapping.
type IndexMetaData struct {
	Settings map[string]any `toml:"settings"`
	Mapping  map[string]any `toml:"mapping"`
}

type DocTableInfo struct {
	ident         common.TableIdent
	columns       *btree.BTreeG[*Reference]
	references    map[common.ColumnIdent]*Reference
	generated     []*GeneratedReference
	primaryKey    []common.ColumnIdent
	partitionedBy []common.ColumnIdent
	clusteredBy   common.ColumnIdent
	autoPK        bool
	shards        int
	replicas      string
	policy        ColumnPolicy
	operations    OperationSet
}

var _ TableInfo = &DocTableInfo{}
var _ expression.FieldResolver = &DocTableInfo{}

func referenceLess(a, b *Reference) bool {
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.Column.Less(b.Column)
}

func (dti *DocTableInfo) Ident() common.TableIdent {
	return dti.ident
}

func (dti *DocTableInfo) PrimaryKey() []common.ColumnIdent {
	return dti.primaryKey
}

func (dti *DocTableInfo) PartitionedBy() []common.ColumnIdent {
	return dti.partitionedBy
}

func (dti *DocTableInfo) IsPartitioned() bool {
	return len(dti.partitionedBy) != 0
}

func (dti *DocTableInfo) ClusteredBy() common.ColumnIdent {
	return dti.clusteredBy
}

func (dti *DocTableInfo) HasAutoGeneratedPrimaryKey() bool {
	return dti.autoPK
}

func (dti *DocTableInfo) GeneratedColumns() []*GeneratedReference {
	return dti.generated
}

func (dti *DocTableInfo) GetReference(column common.ColumnIdent) *Reference {
	return dti.references[column]
}

func (dti *DocTableInfo) GetGenerated(column common.ColumnIdent) *GeneratedReference {
	for _, gen := range dti.generated {
		if gen.Column == column {
			return gen
		}
	}
	return nil
}

// Columns returns the top level user columns ordered by position.
func (dti *DocTableInfo) Columns() []*Reference {
	ret := make([]*Reference, 0, dti.columns.Len())
	dti.columns.Scan(func(item *Reference) bool {
		ret = append(ret, item)
		return true
	})
	return ret
}

func (dti *DocTableInfo) NumberOfShards() int {
	return dti.shards
}

func (dti *DocTableInfo) NumberOfReplicas() string {
	return dti.replicas
}

func (dti *DocTableInfo) ColumnPolicy() ColumnPolicy {
	return dti.policy
}

func (dti *DocTableInfo) SupportedOperations() OperationSet {
	return dti.operations
}

// ResolveField resolves columns used in expressions defined on the
// table itself, e.g. generated columns.
func (dti *DocTableInfo) ResolveField(relation string, column common.ColumnIdent) (*symbol.Reference, error) {
	ref := dti.references[column]
	if ref == nil {
		return nil, common.ErrColumnUnknown.New(column.SqlFqn())
	}
	return ref.Symbol(relation), nil
}

// FromIndexMetaData builds the table described by an index's settings
// and mapping.
func FromIndexMetaData(ident common.TableIdent, md IndexMetaData) (*DocTableInfo, error) {
	dti := &DocTableInfo{
		ident:      ident,
		columns:    btree.NewBTreeG[*Reference](referenceLess),
		references: make(map[common.ColumnIdent]*Reference),
		policy:     columnPolicyFromMapping(md.Mapping["dynamic"]),
	}

	var err error
	dti.shards, err = cast.ToIntE(settingOr(md.Settings, SettingNumberOfShards, defaultNumberOfShards))
	if err != nil {
		return nil, common.ErrInvalidMapping.New(ident, err.Error())
	}
	dti.replicas = numberOfReplicas(md.Settings)
	dti.operations, err = operationsFromSettings(md.Settings)
	if err != nil {
		return nil, common.ErrInvalidMapping.New(ident, err.Error())
	}

	meta, err := cast.ToStringMapE(mappingOr(md.Mapping, "_meta"))
	if err != nil {
		return nil, common.ErrInvalidMapping.New(ident, "_meta: "+err.Error())
	}
	props, err := cast.ToStringMapE(mappingOr(md.Mapping, "properties"))
	if err != nil {
		return nil, common.ErrInvalidMapping.New(ident, "properties: "+err.Error())
	}
	if err = dti.addColumns(common.ColumnIdent{}, props); err != nil {
		return nil, err
	}
	if err = dti.addPartitionedBy(meta["partitioned_by"]); err != nil {
		return nil, err
	}
	if err = dti.addPrimaryKey(meta["primary_keys"]); err != nil {
		return nil, err
	}
	if err = dti.addClusteredBy(meta["routing"]); err != nil {
		return nil, err
	}
	if err = dti.addGeneratedColumns(meta["generated_columns"]); err != nil {
		return nil, err
	}
	return dti, nil
}

func settingOr(settings map[string]any, key string, def any) any {
	if v, has := settings[key]; has {
		return v
	}
	return def
}

func mappingOr(mapping map[string]any, key string) any {
	if v, has := mapping[key]; has && v != nil {
		return v
	}
	return map[string]any{}
}

func numberOfReplicas(settings map[string]any) string {
	auto := cast.ToString(settings[SettingAutoExpandReplicas])
	if auto != "" && auto != "false" {
		return auto
	}
	return cast.ToString(settingOr(settings, SettingNumberOfReplicas, 1))
}

func operationsFromSettings(settings map[string]any) (OperationSet, error) {
	flag := func(key string) (bool, error) {
		return cast.ToBoolE(settingOr(settings, key, false))
	}
	readOnly, err := flag(SettingBlocksReadOnly)
	if err != nil {
		return 0, err
	}
	if readOnly {
		return OperationSet(OpRead | OpAlter), nil
	}
	ops := AllOperations
	blocks := []struct {
		key string
		ops OperationSet
	}{
		{SettingBlocksRead, OperationSet(OpRead)},
		{SettingBlocksWrite, OperationSet(OpInsert | OpUpdate | OpDelete)},
		{SettingBlocksMetadata, OperationSet(OpAlter)},
	}
	for _, block := range blocks {
		set, err := flag(block.key)
		if err != nil {
			return 0, err
		}
		if set {
			ops &^= block.ops
		}
	}
	return ops, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// addColumns walks the mapping properties below parent. Columns
// without an explicit position are placed after the positioned ones in
// name order.
func (dti *DocTableInfo) addColumns(parent common.ColumnIdent, props map[string]any) error {
	nextPos := 0
	for _, name := range sortedKeys(props) {
		def, err := cast.ToStringMapE(props[name])
		if err != nil {
			return common.ErrInvalidMapping.New(dti.ident, fmt.Sprintf("column %s: %v", name, err))
		}
		if pos, has := def["position"]; has {
			nextPos = max(nextPos, cast.ToInt(pos))
		}
	}
	for _, name := range sortedKeys(props) {
		def := cast.ToStringMap(props[name])
		column := common.NewColumnIdent(name)
		if !parent.IsEmpty() {
			column = parent.Child(name)
		}
		typ, err := typeFromMapping(def)
		if err != nil {
			return common.ErrInvalidMapping.New(dti.ident, fmt.Sprintf("column %s: %v", column.Fqn(), err))
		}
		ref := NewReference(dti.ident, column, typ)
		if pos, has := def["position"]; has {
			ref.Position = cast.ToInt(pos)
		} else {
			nextPos++
			ref.Position = nextPos
		}
		if notNull, has := def["not_null"]; has {
			ref.Nullable = !cast.ToBool(notNull)
		}
		dti.references[column] = ref
		if parent.IsEmpty() {
			dti.columns.Set(ref)
		}
		if typ.IsObject() {
			if err = dti.addColumns(column, cast.ToStringMap(def["properties"])); err != nil {
				return err
			}
		}
	}
	return nil
}

func typeFromMapping(def map[string]any) (common.LType, error) {
	typName := cast.ToString(def["type"])
	if typName == "" {
		if _, has := def["properties"]; has {
			return common.ObjectType(), nil
		}
		return common.LType{}, fmt.Errorf("missing type")
	}
	if typName == "array" {
		inner, err := typeFromMapping(cast.ToStringMap(def["inner"]))
		if err != nil {
			return common.LType{}, fmt.Errorf("array inner type: %w", err)
		}
		if inner.Id == common.LTID_ARRAY {
			return common.LType{}, fmt.Errorf("nested arrays are not supported")
		}
		return common.ArrayType(inner.Id), nil
	}
	return common.ParseLType(typName)
}

func (dti *DocTableInfo) addPartitionedBy(value any) error {
	if value == nil {
		return nil
	}
	entries, err := cast.ToSliceE(value)
	if err != nil {
		return common.ErrInvalidMapping.New(dti.ident, "partitioned_by: "+err.Error())
	}
	for _, entry := range entries {
		var name, typName string
		switch v := entry.(type) {
		case string:
			name = v
		default:
			pair, err := cast.ToStringSliceE(v)
			if err != nil || len(pair) == 0 {
				return common.ErrInvalidMapping.New(dti.ident, fmt.Sprintf("partitioned_by entry %v", entry))
			}
			name = pair[0]
			if len(pair) > 1 {
				typName = pair[1]
			}
		}
		column := common.ParseColumnIdent(name)
		if dti.references[column] == nil {
			if typName == "" {
				return common.ErrInvalidMapping.New(dti.ident, "unknown partition column "+name)
			}
			typ, err := common.ParseLType(typName)
			if err != nil {
				return common.ErrInvalidMapping.New(dti.ident, err.Error())
			}
			ref := NewReference(dti.ident, column, typ)
			if last, ok := dti.columns.Max(); ok {
				ref.Position = last.Position + 1
			}
			dti.references[column] = ref
			if column.IsTopLevel() {
				dti.columns.Set(ref)
			}
		}
		dti.partitionedBy = append(dti.partitionedBy, column)
	}
	return nil
}

func (dti *DocTableInfo) addPrimaryKey(value any) error {
	var names []string
	if value != nil {
		var err error
		names, err = cast.ToStringSliceE(value)
		if err != nil {
			return common.ErrInvalidMapping.New(dti.ident, "primary_keys: "+err.Error())
		}
	}
	for _, name := range names {
		column := common.ParseColumnIdent(name)
		ref := dti.references[column]
		if ref == nil {
			return common.ErrInvalidMapping.New(dti.ident, "unknown primary key column "+name)
		}
		ref.Nullable = false
		dti.primaryKey = append(dti.primaryKey, column)
	}
	if len(dti.primaryKey) == 0 {
		id := common.NewColumnIdent(IdColumnName)
		ref := NewReference(dti.ident, id, common.VarcharType())
		ref.Nullable = false
		dti.references[id] = ref
		dti.primaryKey = []common.ColumnIdent{id}
		dti.autoPK = true
	}
	return nil
}

func (dti *DocTableInfo) addClusteredBy(value any) error {
	routing := cast.ToString(value)
	switch {
	case routing != "":
		column := common.ParseColumnIdent(routing)
		if dti.references[column] == nil {
			return common.ErrInvalidMapping.New(dti.ident, "unknown routing column "+routing)
		}
		dti.clusteredBy = column
	case len(dti.primaryKey) == 1:
		dti.clusteredBy = dti.primaryKey[0]
	default:
		dti.clusteredBy = common.NewColumnIdent(IdColumnName)
	}
	return nil
}

func (dti *DocTableInfo) addGeneratedColumns(value any) error {
	if value == nil {
		return nil
	}
	defs, err := cast.ToStringMapStringE(value)
	if err != nil {
		return common.ErrInvalidMapping.New(dti.ident, "generated_columns: "+err.Error())
	}
	analyzer := expression.NewAnalyzer(dti)
	for _, name := range sortedKeys(cast.ToStringMap(value)) {
		column := common.ParseColumnIdent(name)
		ref := dti.references[column]
		if ref == nil {
			return common.ErrInvalidMapping.New(dti.ident, "unknown generated column "+name)
		}
		node, err := parser.ParseExpression(defs[name])
		if err != nil {
			return common.ErrInvalidMapping.New(dti.ident, err.Error())
		}
		expr, err := analyzer.Analyze(node)
		if err != nil {
			return common.ErrInvalidMapping.New(dti.ident,
				fmt.Sprintf("generated column %s: %v", column.Fqn(), err))
		}
		for _, dep := range symbol.References(expr) {
			if dep.Column == column || column.IsChildOf(dep.Column) || dep.Column.IsChildOf(column) {
				return common.ErrInvalidMapping.New(dti.ident,
					fmt.Sprintf("generated column %s references itself", column.Fqn()))
			}
		}
		gen := &GeneratedReference{
			Reference:           *ref,
			FormattedExpression: defs[name],
			Expression:          expr,
		}
		dti.references[column] = &gen.Reference
		if column.IsTopLevel() {
			dti.columns.Set(&gen.Reference)
		}
		dti.generated = append(dti.generated, gen)
	}
	return nil
}
