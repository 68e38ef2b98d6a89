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

package planner

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/xlab/treeprint"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/weizai118/crate/pkg/analyze"
	"github.com/weizai118/crate/pkg/common"
	"github.com/weizai118/crate/pkg/symbol"
	"github.com/weizai118/crate/pkg/util"
)

// JoinNode is a relation (leaf) or a join of two nodes.
type JoinNode struct {
	Relation analyze.RelationName
	// Preserved is set on leaves whose rows an outer join keeps.
	Preserved bool
	// Filter holds the WHERE conjuncts pushed down to a leaf.
	Filter symbol.Symbol

	Left      *JoinNode
	Right     *JoinNode
	Type      analyze.JoinType
	Condition symbol.Symbol
}

func (node *JoinNode) IsLeaf() bool {
	return node.Left == nil
}

func (node *JoinNode) Print(tree treeprint.Tree) {
	if node.IsLeaf() {
		meta := "scan"
		if node.Preserved {
			meta = "scan preserved"
		}
		leaf := tree.AddMetaBranch(meta, node.Relation.String())
		if node.Filter != nil {
			symbol.Print(leaf, node.Filter, "filter")
		}
		return
	}
	branch := tree.AddMetaBranch("join", node.Type.String())
	if node.Condition != nil {
		symbol.Print(branch, node.Condition, "on")
	}
	node.Left.Print(branch)
	node.Right.Print(branch)
}

type JoinPlan struct {
	Root *JoinNode
	// Filter holds the conditions that could not be pushed below the
	// joins.
	Filter symbol.Symbol
	// CrossJoins counts joins without a condition plus pairs whose
	// relations were joined in an order the pair could not be used in.
	CrossJoins int
	// Pairs is the join pair list normalized for this order.
	Pairs []analyze.JoinPair
	// Ordinal is the number of the explored order.
	Ordinal int
}

func (plan *JoinPlan) Print(tree treeprint.Tree) {
	tree.AddMetaNode("cross joins", plan.CrossJoins)
	if plan.Filter != nil {
		symbol.Print(tree, plan.Filter, "filter")
	}
	plan.Root.Print(tree)
}

func (plan *JoinPlan) String() string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("join plan #%d", plan.Ordinal))
	plan.Print(tree)
	return tree.String()
}

type JoinPlanner struct {
	exploreLimit int
}

func NewJoinPlanner(exploreLimit int) *JoinPlanner {
	if exploreLimit <= 0 {
		exploreLimit = 1
	}
	return &JoinPlanner{exploreLimit: exploreLimit}
}

// Plan builds a left deep join tree joining relations in the given
// order. Each relation is joined to the already joined relations
// through the pair found for them, in either orientation. The returned
// plan carries the pair list as normalized for this order. Inner pairs
// the order cannot use become filters, any other unusable pair fails
// with ErrJoinOrder.
func (jp *JoinPlanner) Plan(relations []analyze.RelationName, pairs []analyze.JoinPair, where symbol.Symbol) (*JoinPlan, error) {
	if len(relations) == 0 {
		return nil, errors.New("no relation to plan")
	}
	plan := &JoinPlan{}
	leaves := make(map[analyze.RelationName]*JoinNode, len(relations))
	newLeaf := func(rel analyze.RelationName) *JoinNode {
		leaf := &JoinNode{Relation: rel}
		leaves[rel] = leaf
		return leaf
	}

	used := make(map[analyze.RelationName]map[analyze.RelationName]bool)
	markUsed := func(pair analyze.JoinPair) {
		if used[pair.Left] == nil {
			used[pair.Left] = make(map[analyze.RelationName]bool)
		}
		used[pair.Left][pair.Right] = true
	}

	joined := []analyze.RelationName{relations[0]}
	plan.Root = newLeaf(relations[0])
	for _, rel := range relations[1:] {
		if _, has := leaves[rel]; has {
			return nil, fmt.Errorf("relation %s planned twice", rel)
		}
		node := &JoinNode{
			Left:  plan.Root,
			Right: newLeaf(rel),
			Type:  analyze.JoinTypeCross,
		}
		// the most recently joined relation first
		for i := len(joined) - 1; i >= 0; i-- {
			var pair analyze.JoinPair
			var ok bool
			pair, pairs, ok = analyze.FuzzyFindPair(pairs, joined[i], rel)
			if !ok {
				continue
			}
			switch {
			case node.Type == analyze.JoinTypeCross:
				node.Type = pair.Type
				node.Condition = pair.Condition
			case isInnerLike(node.Type) && isInnerLike(pair.Type):
				node.Type = analyze.JoinTypeInner
				node.Condition = symbol.And(node.Condition, pair.Condition)
			default:
				continue
			}
			markUsed(pair)
		}
		if node.Type == analyze.JoinTypeCross && node.Condition == nil {
			plan.CrossJoins++
		}
		plan.Root = node
		joined = append(joined, rel)
	}

	for _, pair := range pairs {
		if used[pair.Left][pair.Right] {
			continue
		}
		if _, has := leaves[pair.Left]; !has {
			continue
		}
		if _, has := leaves[pair.Right]; !has {
			continue
		}
		// only inner conditions keep their meaning as a filter
		if !isInnerLike(pair.Type) {
			return nil, common.ErrJoinOrder.New(pair.String(), fmt.Sprint(relations))
		}
		util.Warn("join pair not usable in order",
			zap.String("pair", pair.String()))
		plan.CrossJoins++
		plan.Filter = symbol.And(plan.Filter, pair.Condition)
	}
	plan.Pairs = pairs

	for rel, leaf := range leaves {
		leaf.Preserved = analyze.IsOuterRelation(rel, pairs)
	}
	for _, conjunct := range splitConjunction(where) {
		if leaf := pushdownTarget(conjunct, leaves, pairs); leaf != nil {
			leaf.Filter = symbol.And(leaf.Filter, conjunct)
			continue
		}
		plan.Filter = symbol.And(plan.Filter, conjunct)
	}
	return plan, nil
}

func isInnerLike(typ analyze.JoinType) bool {
	return typ == analyze.JoinTypeInner || typ == analyze.JoinTypeCross
}

func splitConjunction(cond symbol.Symbol) []symbol.Symbol {
	if cond == nil {
		return nil
	}
	if fn, ok := cond.(*symbol.Function); ok && fn.Name() == symbol.OpAnd {
		var ret []symbol.Symbol
		for _, arg := range fn.Args {
			ret = append(ret, splitConjunction(arg)...)
		}
		return ret
	}
	return []symbol.Symbol{cond}
}

// pushdownTarget returns the leaf a conjunct touching a single relation
// can be evaluated at. Relations an outer join null extends keep their
// filters above the join.
func pushdownTarget(conjunct symbol.Symbol, leaves map[analyze.RelationName]*JoinNode, pairs []analyze.JoinPair) *JoinNode {
	var target *JoinNode
	for _, ref := range symbol.References(conjunct) {
		var owner *JoinNode
		for rel, leaf := range leaves {
			if rel.Matches(ref.Relation) {
				owner = leaf
				break
			}
		}
		if owner == nil || (target != nil && target != owner) {
			return nil
		}
		target = owner
	}
	if target == nil || analyze.IsNullExtended(target.Relation, pairs) {
		return nil
	}
	return target
}

// Explore plans up to the planner's limit of join orders concurrently,
// each on its own fork of the relation context, and returns the plan
// with the fewest cross joins. Ties go to the earlier order. Orders
// rejected with ErrJoinOrder are skipped.
func (jp *JoinPlanner) Explore(ctx context.Context, relCtx *analyze.RelationAnalysisContext, where symbol.Symbol) (*JoinPlan, error) {
	orders := joinOrders(relCtx.RelationNames(), jp.exploreLimit)
	if len(orders) == 0 {
		return nil, errors.New("no relation to plan")
	}
	plans := make([]*JoinPlan, len(orders))
	rejected := make([]error, len(orders))
	wg, gctx := errgroup.WithContext(ctx)
	wg.SetLimit(runtime.NumCPU())
	for i, order := range orders {
		wg.Go(func() (retErr error) {
			defer func() {
				if xre := recover(); xre != nil {
					retErr = util.ConvertPanicError(xre)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			fork := relCtx.Fork()
			plan, err := jp.Plan(order, fork.JoinPairs(), where)
			if common.ErrJoinOrder.Is(err) {
				rejected[i] = err
				return nil
			}
			if err != nil {
				return err
			}
			plan.Ordinal = i
			plans[i] = plan
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	var best *JoinPlan
	for _, plan := range plans {
		if plan != nil && (best == nil || plan.CrossJoins < best.CrossJoins) {
			best = plan
		}
	}
	if best == nil {
		return nil, rejected[0]
	}
	util.Debug("join orders explored",
		zap.Int("orders", len(orders)),
		zap.Int("best", best.Ordinal),
		zap.Int("crossJoins", best.CrossJoins))
	return best, nil
}

// joinOrders returns up to limit permutations of relations in
// lexicographic order of their discovery positions, starting with the
// discovery order itself.
func joinOrders(relations []analyze.RelationName, limit int) [][]analyze.RelationName {
	if len(relations) == 0 {
		return nil
	}
	idx := make([]int, len(relations))
	for i := range idx {
		idx[i] = i
	}
	var orders [][]analyze.RelationName
	for {
		order := make([]analyze.RelationName, len(idx))
		for i, j := range idx {
			order[i] = relations[j]
		}
		orders = append(orders, order)
		if len(orders) >= limit || !nextPermutation(idx) {
			return orders
		}
	}
}

func nextPermutation(idx []int) bool {
	i := len(idx) - 2
	for i >= 0 && idx[i] >= idx[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(idx) - 1
	for idx[j] <= idx[i] {
		j--
	}
	util.Swap(idx, i, j)
	for l, r := i+1, len(idx)-1; l < r; l, r = l+1, r-1 {
		util.Swap(idx, l, r)
	}
	return true
}
