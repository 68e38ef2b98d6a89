package planner

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	treemap "github.com/liyue201/gostl/ds/map"
	pg_query "github.com/pganalyze/pg_query_go/v5"
	"github.com/xlab/treeprint"
	"go.uber.org/zap"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/expression"
	"github.com/weizai118/crate/pkg/symbol"
	"github.com/weizai118/crate/pkg/util"
)

// SettingsUpdater applies evaluated cluster settings.
type SettingsUpdater interface {
	UpdateSettings(ctx context.Context, persistent, transient map[string]string) error
}

// ClusterUpdateSettingsPlan updates persistent and transient cluster
// settings. Transient settings always include the persistent ones so a
// stale transient value never shadows a new persistent value.
type ClusterUpdateSettingsPlan struct {
	persistent map[string][]symbol.Symbol
	transient  map[string][]symbol.Symbol
}

func NewClusterUpdateSettingsPlan(persistent, transient map[string][]symbol.Symbol) *ClusterUpdateSettingsPlan {
	merged := make(map[string][]symbol.Symbol, len(persistent)+len(transient))
	maps.Copy(merged, persistent)
	maps.Copy(merged, transient)
	if persistent == nil {
		persistent = map[string][]symbol.Symbol{}
	}
	return &ClusterUpdateSettingsPlan{
		persistent: persistent,
		transient:  merged,
	}
}

// NewPersistentClusterUpdateSettingsPlan also overrides the transient
// values of the settings.
func NewPersistentClusterUpdateSettingsPlan(persistent map[string][]symbol.Symbol) *ClusterUpdateSettingsPlan {
	return NewClusterUpdateSettingsPlan(persistent, persistent)
}

func (plan *ClusterUpdateSettingsPlan) PersistentSettings() map[string][]symbol.Symbol {
	return plan.persistent
}

func (plan *ClusterUpdateSettingsPlan) TransientSettings() map[string][]symbol.Symbol {
	return plan.transient
}

func (plan *ClusterUpdateSettingsPlan) Equal(o *ClusterUpdateSettingsPlan) bool {
	if o == nil {
		return false
	}
	return settingsEqual(plan.persistent, o.persistent) && settingsEqual(plan.transient, o.transient)
}

func settingsEqual(a, b map[string][]symbol.Symbol) bool {
	return maps.EqualFunc(a, b, func(x, y []symbol.Symbol) bool {
		return slices.EqualFunc(x, y, symbol.Equal)
	})
}

type noColumns struct{}

func (noColumns) ResolveField(_ string, column common.ColumnIdent) (*symbol.Reference, error) {
	return nil, common.ErrColumnUnknown.New(column.SqlFqn())
}

// NewClusterUpdateSettingsPlanFromStmt plans ALTER SYSTEM SET as a
// persistent and SET as a transient settings update.
func NewClusterUpdateSettingsPlanFromStmt(stmt *pg_query.Node) (*ClusterUpdateSettingsPlan, error) {
	var set *pg_query.VariableSetStmt
	persistent := false
	switch realStmt := stmt.GetNode().(type) {
	case *pg_query.Node_AlterSystemStmt:
		set = realStmt.AlterSystemStmt.GetSetstmt()
		persistent = true
	case *pg_query.Node_VariableSetStmt:
		set = realStmt.VariableSetStmt
	default:
		return nil, common.ErrUnsupportedFeature.New(fmt.Sprintf("settings statement %T", realStmt))
	}
	if set.GetKind() != pg_query.VariableSetKind_VAR_SET_VALUE {
		return nil, common.ErrUnsupportedFeature.New("SET " + set.GetKind().String())
	}
	values, err := expression.NewAnalyzer(noColumns{}).AnalyzeList(set.GetArgs())
	if err != nil {
		return nil, err
	}
	settings := map[string][]symbol.Symbol{set.GetName(): values}
	if persistent {
		return NewPersistentClusterUpdateSettingsPlan(settings), nil
	}
	return NewClusterUpdateSettingsPlan(nil, settings), nil
}

func evaluateSettings(settings map[string][]symbol.Symbol) (map[string]string, error) {
	ret := make(map[string]string, len(settings))
	for name, values := range settings {
		strs := make([]string, 0, len(values))
		for _, value := range values {
			lit, ok := value.(*symbol.Literal)
			if !ok {
				return nil, fmt.Errorf("setting %s: value %s is not a literal", name, symbol.Format(value))
			}
			switch v := lit.Value.(type) {
			case nil:
				strs = append(strs, "")
			case string:
				strs = append(strs, v)
			default:
				strs = append(strs, symbol.Format(lit))
			}
		}
		ret[name] = strings.Join(strs, ",")
	}
	return ret, nil
}

// Execute evaluates the setting values and hands them to updater.
func (plan *ClusterUpdateSettingsPlan) Execute(ctx context.Context, updater SettingsUpdater) error {
	persistent, err := evaluateSettings(plan.persistent)
	if err != nil {
		return err
	}
	transient, err := evaluateSettings(plan.transient)
	if err != nil {
		return err
	}
	return updater.UpdateSettings(ctx, persistent, transient)
}

func printSettings(tree treeprint.Tree, settings map[string][]symbol.Symbol) {
	for _, name := range slices.Sorted(maps.Keys(settings)) {
		branch := tree.AddBranch(name)
		symbol.PrintList(branch, settings[name])
	}
}

func (plan *ClusterUpdateSettingsPlan) Print(tree treeprint.Tree) {
	printSettings(tree.AddBranch("persistent"), plan.persistent)
	printSettings(tree.AddBranch("transient"), plan.transient)
}

// ClusterSettings keeps the cluster settings in memory.
type ClusterSettings struct {
	mu         sync.Mutex
	persistent *treemap.Map[string, string]
	transient  *treemap.Map[string, string]
}

func NewClusterSettings() *ClusterSettings {
	cmp := func(a, b string) int {
		return strings.Compare(a, b)
	}
	return &ClusterSettings{
		persistent: treemap.New[string, string](cmp),
		transient:  treemap.New[string, string](cmp),
	}
}

func (cs *ClusterSettings) UpdateSettings(ctx context.Context, persistent, transient map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for name, value := range persistent {
		cs.persistent.Insert(name, value)
	}
	for name, value := range transient {
		cs.transient.Insert(name, value)
	}
	util.Info("cluster settings updated",
		zap.Int("persistent", len(persistent)),
		zap.Int("transient", len(transient)))
	return nil
}

// Get returns the effective value of a setting. Transient values win.
func (cs *ClusterSettings) Get(name string) (string, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if value, err := cs.transient.Get(name); err == nil {
		return value, true
	}
	if value, err := cs.persistent.Get(name); err == nil {
		return value, true
	}
	return "", false
}

// Effective lists the effective settings ordered by name.
func (cs *ClusterSettings) Effective() []util.Pair[string, string] {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var ret []util.Pair[string, string]
	for iter := cs.persistent.Begin(); iter.IsValid(); iter.Next() {
		if _, err := cs.transient.Get(iter.Key()); err == nil {
			continue
		}
		ret = append(ret, util.Pair[string, string]{First: iter.Key(), Second: iter.Value()})
	}
	for iter := cs.transient.Begin(); iter.IsValid(); iter.Next() {
		ret = append(ret, util.Pair[string, string]{First: iter.Key(), Second: iter.Value()})
	}
	slices.SortFunc(ret, func(a, b util.Pair[string, string]) int {
		return strings.Compare(a.First, b.First)
	})
	return ret
}
