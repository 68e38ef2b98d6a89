package metadata

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/btree"
	"go.uber.org/zap"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/util"
)

// TableDef is one table entry of a catalog file.
type TableDef struct {
	Schema string `toml:"schema"`
	Name   string `toml:"name"`
	IndexMetaData
}

type catalogFile struct {
	Tables []TableDef `toml:"tables"`
}

// Catalog holds the known tables ordered by fully qualified name.
type Catalog struct {
	defaultSchema string
	tables        *btree.BTreeG[*DocTableInfo]
}

func NewCatalog(defaultSchema string) *Catalog {
	if defaultSchema == "" {
		defaultSchema = common.DefaultSchema
	}
	return &Catalog{
		defaultSchema: defaultSchema,
		tables: btree.NewBTreeG[*DocTableInfo](func(a, b *DocTableInfo) bool {
			return a.ident.Fqn() < b.ident.Fqn()
		}),
	}
}

// LoadCatalog reads a toml file with one [[tables]] entry per table.
func LoadCatalog(fpath string, defaultSchema string) (*Catalog, error) {
	var file catalogFile
	if _, err := toml.DecodeFile(fpath, &file); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", fpath, err)
	}
	catalog := NewCatalog(defaultSchema)
	for _, def := range file.Tables {
		if err := catalog.AddIndex(def); err != nil {
			return nil, err
		}
	}
	util.Info("catalog loaded",
		zap.String("path", fpath),
		zap.Int("tables", catalog.tables.Len()))
	return catalog, nil
}

func (c *Catalog) DefaultSchema() string {
	return c.defaultSchema
}

func (c *Catalog) AddIndex(def TableDef) error {
	schema := def.Schema
	if schema == "" {
		schema = c.defaultSchema
	}
	table, err := FromIndexMetaData(common.NewTableIdent(schema, def.Name), def.IndexMetaData)
	if err != nil {
		return err
	}
	c.Add(table)
	return nil
}

// Add registers table, replacing a table with the same ident.
func (c *Catalog) Add(table *DocTableInfo) {
	c.tables.Set(table)
	util.Debug("table added",
		zap.String("table", table.ident.Fqn()),
		zap.Int("columns", table.columns.Len()),
		zap.Bool("partitioned", table.IsPartitioned()))
}

// ResolveTable looks up schema.name, an empty schema means the default
// schema.
func (c *Catalog) ResolveTable(schema, name string) (*DocTableInfo, error) {
	if schema == "" {
		schema = c.defaultSchema
	}
	ident := common.NewTableIdent(schema, name)
	table, ok := c.tables.Get(&DocTableInfo{ident: ident})
	if !ok {
		return nil, common.ErrTableUnknown.New(ident.Fqn())
	}
	return table, nil
}

func (c *Catalog) Tables() []*DocTableInfo {
	ret := make([]*DocTableInfo, 0, c.tables.Len())
	c.tables.Scan(func(item *DocTableInfo) bool {
		ret = append(ret, item)
		return true
	})
	return ret
}

func (c *Catalog) String() string {
	sb := strings.Builder{}
	for _, table := range c.Tables() {
		sb.WriteString(table.ident.Fqn())
		sb.WriteString(" (")
		for i, col := range table.Columns() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(col.Column.Fqn())
			sb.WriteByte(' ')
			sb.WriteString(col.Typ.String())
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}
