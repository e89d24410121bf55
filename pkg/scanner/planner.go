/**
 * Copyright 2021 The LineDB Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package scanner

import (
	"strings"

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/eval"
	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/dr0pdb/linedb/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

// Strategy is the physical access path of a SELECT
type Strategy int

const (
	// StrategyFullScan reads every line of the table
	StrategyFullScan Strategy = iota

	// StrategyScanOnce stops at the first matching row
	StrategyScanOnce
)

func (s Strategy) String() string {
	switch s {
	case StrategyFullScan:
		return "full_scan"
	case StrategyScanOnce:
		return "scan_once"
	}
	panic("programming error: unexpected strategy in String() of Strategy")
}

// MetaSource provides the metadata of tables.
type MetaSource interface {
	TableMeta(table string) (*codec.TableMeta, error)
}

// Limit is the LIMIT/OFFSET clause. Count < 0 means unlimited.
type Limit struct {
	Count  int64
	Offset int64
}

// SelectArgs are the clauses of a parsed SELECT.
// Every slot has to be present; absent clauses are filled with their neutral value by ArgsFromSelect.
type SelectArgs struct {
	Table   string
	Columns []*frontend.SelectionItem
	Where   frontend.Expression
	Group   []string
	Having  frontend.Expression
	Order   []*frontend.OrderItem
	Limit   *Limit
}

// ArgsFromSelect derives the clause slots of a SELECT statement.
func ArgsFromSelect(st *frontend.SelectStatement) (*SelectArgs, error) {
	args := &SelectArgs{
		Columns: st.Selections,
		Where:   st.Where,
		Group:   st.GroupBy,
		Having:  st.Having,
		Order:   st.OrderBy,
		Limit:   &Limit{Count: -1},
	}

	if st.From != nil {
		args.Table = st.From.Name
	}
	if args.Columns == nil {
		args.Columns = []*frontend.SelectionItem{}
	}
	if args.Where == nil {
		args.Where = frontend.Literal(true)
	}
	if args.Group == nil {
		args.Group = []string{}
	}
	if args.Having == nil {
		args.Having = frontend.Literal(true)
	}
	if args.Order == nil {
		args.Order = []*frontend.OrderItem{}
	}

	var err error
	if st.Limit != nil {
		if args.Limit.Count, err = evalCount(st.Limit, "LIMIT"); err != nil {
			return nil, err
		}
	}
	if st.Offset != nil {
		if args.Limit.Offset, err = evalCount(st.Offset, "OFFSET"); err != nil {
			return nil, err
		}
	}

	return args, nil
}

func evalCount(expr frontend.Expression, clause string) (int64, error) {
	v, err := eval.Value(expr, nil)
	if err != nil {
		return 0, icommon.NewInvalidQueryError("scanner::planner::ArgsFromSelect; invalid %s: %v", clause, err)
	}
	n, ok := v.(int64)
	if !ok || n < 0 {
		return 0, icommon.NewInvalidQueryError("scanner::planner::ArgsFromSelect; %s must be a non negative integer, found %s", clause, expr)
	}
	return n, nil
}

// Validate checks that every clause slot is present.
func (a *SelectArgs) Validate() error {
	var missing []string
	if a.Table == "" {
		missing = append(missing, "table")
	}
	if a.Columns == nil {
		missing = append(missing, "columns")
	}
	if a.Where == nil {
		missing = append(missing, "predicate")
	}
	if a.Group == nil {
		missing = append(missing, "group")
	}
	if a.Having == nil {
		missing = append(missing, "having")
	}
	if a.Order == nil {
		missing = append(missing, "order")
	}
	if a.Limit == nil {
		missing = append(missing, "limit")
	}

	if len(missing) > 0 {
		return icommon.NewInvalidQueryError("scanner::planner::Validate; missing select clauses: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Plan is the chosen access path of a SELECT
type Plan struct {
	Table    string
	Strategy Strategy
	Where    frontend.Expression
	Meta     *codec.TableMeta
}

// Planner chooses between a full scan and a scan with early exit.
// It matches the shape of the query and isn't cost based.
type Planner struct {
	scanner *Scanner
	metas   MetaSource
}

// NewPlanner creates a new planner
func NewPlanner(scanner *Scanner, metas MetaSource) *Planner {
	return &Planner{
		scanner: scanner,
		metas:   metas,
	}
}

// Plan validates the arguments, loads the table metadata and chooses the strategy without scanning.
func (p *Planner) Plan(args *SelectArgs) (*Plan, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}

	meta, err := p.metas.TableMeta(args.Table)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Table:    args.Table,
		Strategy: StrategyFullScan,
		Where:    args.Where,
		Meta:     meta,
	}
	if atMostOneRow(args, meta) {
		plan.Strategy = StrategyScanOnce
	}

	log.WithFields(log.Fields{"table": plan.Table, "strategy": plan.Strategy}).Debug("scanner::planner::Plan; chosen strategy")
	return plan, nil
}

// Execute runs the plan.
func (p *Planner) Execute(plan *Plan) ([]codec.Row, error) {
	metrics.ScanStrategyTotal.WithLabelValues(plan.Strategy.String()).Inc()

	if plan.Strategy == StrategyScanOnce {
		return p.scanner.ScanFullTablesOnce(plan.Table, plan.Where)
	}
	return p.scanner.ScanFullTables(plan.Table, plan.Where)
}

// ApplyOptimizeExplain plans the SELECT and scans the table with the chosen strategy.
// Only the WHERE clause is applied to the returned rows.
func (p *Planner) ApplyOptimizeExplain(args *SelectArgs) ([]codec.Row, error) {
	plan, err := p.Plan(args)
	if err != nil {
		return nil, err
	}
	return p.Execute(plan)
}

// atMostOneRow checks if the shape of the query proves that at most one row qualifies.
func atMostOneRow(args *SelectArgs, meta *codec.TableMeta) bool {
	// LIMIT 1 without any condition
	if args.Limit.Count == 1 && args.Limit.Offset == 0 && eval.IsMatchAll(args.Where) &&
		len(args.Group) == 0 && eval.IsMatchAll(args.Having) && len(args.Order) == 0 {
		return true
	}

	for _, conj := range conjuncts(args.Where) {
		if isUniqueEquality(conj, meta) {
			return true
		}
	}
	return false
}

// conjuncts splits the top level AND chain of the expression.
func conjuncts(expr frontend.Expression) []frontend.Expression {
	switch e := expr.(type) {
	case *frontend.GroupingExpression:
		return conjuncts(e.InExp)
	case *frontend.BinaryOpExpression:
		if e.Op == frontend.OperatorAndAnd {
			return append(conjuncts(e.L), conjuncts(e.R)...)
		}
	}
	return []frontend.Expression{expr}
}

// isUniqueEquality checks for `column = literal` with a primary key or unique column.
func isUniqueEquality(expr frontend.Expression, meta *codec.TableMeta) bool {
	for {
		g, ok := expr.(*frontend.GroupingExpression)
		if !ok {
			break
		}
		expr = g.InExp
	}

	be, ok := expr.(*frontend.BinaryOpExpression)
	if !ok || be.Op != frontend.OperatorEqual {
		return false
	}

	id, val := unwrapSides(be.L, be.R)
	if id == nil {
		id, val = unwrapSides(be.R, be.L)
	}
	if id == nil || val == nil || val.Val == nil || val.Val.IsNull() {
		return false
	}
	return meta.IsUniqueColumn(id.Identifier)
}

func unwrapSides(l, r frontend.Expression) (*frontend.IdentifierExpression, *frontend.ValueExpression) {
	id, ok := l.(*frontend.IdentifierExpression)
	if !ok {
		return nil, nil
	}
	val, ok := r.(*frontend.ValueExpression)
	if !ok {
		return nil, nil
	}
	return id, val
}
