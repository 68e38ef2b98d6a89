package analyze

import (
	"fmt"
	"reflect"

	"github.com/huandu/go-clone"

	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/metadata"
	"github.com/weizai118/crate/pkg/symbol"
)

func init() {
	// tables are shared read only metadata
	clone.MarkAsOpaquePointer(reflect.TypeOf((*metadata.DocTableInfo)(nil)))
}

// SourceRelation is a table addressed in a FROM clause.
type SourceRelation struct {
	Name  RelationName
	Table *metadata.DocTableInfo
}

// RelationAnalysisContext collects the relations of a FROM clause in
// discovery order and the join pairs between them.
type RelationAnalysisContext struct {
	sources   []*SourceRelation
	joinPairs []JoinPair
}

func NewRelationAnalysisContext() *RelationAnalysisContext {
	return &RelationAnalysisContext{}
}

func (ctx *RelationAnalysisContext) AddSourceRelation(name RelationName, table *metadata.DocTableInfo) error {
	for _, src := range ctx.sources {
		if src.Name == name {
			return common.ErrRelationDuplicate.New(name.String())
		}
	}
	ctx.sources = append(ctx.sources, &SourceRelation{Name: name, Table: table})
	return nil
}

func (ctx *RelationAnalysisContext) Sources() []*SourceRelation {
	return ctx.sources
}

func (ctx *RelationAnalysisContext) RelationNames() []RelationName {
	ret := make([]RelationName, 0, len(ctx.sources))
	for _, src := range ctx.sources {
		ret = append(ret, src.Name)
	}
	return ret
}

func (ctx *RelationAnalysisContext) JoinPairs() []JoinPair {
	return ctx.joinPairs
}

// AddJoinPair adds pair or merges it into the pair already joining the
// same relations, in either orientation. Conditions are combined with
// AND. A cross join is refined by the type of the merged pair.
func (ctx *RelationAnalysisContext) AddJoinPair(pair JoinPair) error {
	for i, existing := range ctx.joinPairs {
		switch {
		case existing.EqualsNames(pair.Left, pair.Right):
		case existing.EqualsNames(pair.Right, pair.Left):
			switch {
			case pair.Type.SupportsInversion():
				pair = pair.Reverse()
			case existing.Type.SupportsInversion():
				existing = existing.Reverse()
			default:
				return common.ErrUnsupportedFeature.New(
					fmt.Sprintf("%s and %s join between %s and %s", existing.Type, pair.Type, pair.Left, pair.Right))
			}
		default:
			continue
		}
		merged, err := mergeJoinPairs(existing, pair)
		if err != nil {
			return err
		}
		ctx.joinPairs[i] = merged
		return nil
	}
	ctx.joinPairs = append(ctx.joinPairs, pair)
	return nil
}

func mergeJoinPairs(existing, pair JoinPair) (JoinPair, error) {
	ret := existing
	switch {
	case existing.Type == pair.Type:
	case existing.Type == JoinTypeCross:
		ret.Type = pair.Type
	case pair.Type == JoinTypeCross:
	default:
		return JoinPair{}, common.ErrUnsupportedFeature.New(
			fmt.Sprintf("%s and %s join between %s and %s", existing.Type, pair.Type, existing.Left, existing.Right))
	}
	ret.Condition = symbol.And(existing.Condition, pair.Condition)
	return ret, nil
}

// Fork returns an independent copy for exploring join orders.
func (ctx *RelationAnalysisContext) Fork() *RelationAnalysisContext {
	return clone.Clone(ctx).(*RelationAnalysisContext)
}

// ResolveField resolves a column of the relations in scope. Unqualified
// columns must be unique across all relations.
func (ctx *RelationAnalysisContext) ResolveField(relation string, column common.ColumnIdent) (*symbol.Reference, error) {
	var found *symbol.Reference
	relationKnown := relation == ""
	for _, src := range ctx.sources {
		if relation != "" && !src.Name.Matches(relation) {
			continue
		}
		relationKnown = true
		ref := src.Table.GetReference(column)
		if ref == nil {
			continue
		}
		if found != nil {
			return nil, common.ErrColumnAmbiguous.New(column.SqlFqn())
		}
		found = ref.Symbol(src.Name.String())
	}
	if !relationKnown {
		return nil, common.ErrTableUnknown.New(relation)
	}
	if found == nil {
		if relation != "" {
			return nil, common.ErrColumnUnknown.New(relation + "." + column.SqlFqn())
		}
		return nil, common.ErrColumnUnknown.New(column.SqlFqn())
	}
	return found, nil
}
