package relic

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/relic/rel"
)

// Sample data: five employees in two departments, two departments, three
// phone entries, one contractor.

func employee(id int64, name string, dept, salary int64) rel.Tuple {
	return rel.NewTuple(map[string]rel.Value{
		"emp_id":  rel.Int(id),
		"name":    rel.String(name),
		"dept_id": rel.Int(dept),
		"salary":  rel.Int(salary),
	})
}

func sampleEnv(t *testing.T) *rel.Env {
	t.Helper()

	env := rel.NewEnv()

	env.Set("E", rel.MustRelation(
		[]string{"emp_id", "name", "dept_id", "salary"},
		employee(1, "Alice", 10, 80000),
		employee(2, "Bob", 10, 60000),
		employee(3, "Carol", 20, 55000),
		employee(4, "Dave", 10, 90000),
		employee(5, "Eve", 20, 45000),
	))

	env.Set("D", rel.MustRelation(
		[]string{"dept_id", "dept_name"},
		rel.NewTuple(map[string]rel.Value{"dept_id": rel.Int(10), "dept_name": rel.String("Engineering")}),
		rel.NewTuple(map[string]rel.Value{"dept_id": rel.Int(20), "dept_name": rel.String("Sales")}),
	))

	env.Set("Phone", rel.MustRelation(
		[]string{"emp_id", "phone"},
		rel.NewTuple(map[string]rel.Value{"emp_id": rel.Int(1), "phone": rel.String("555-0100")}),
		rel.NewTuple(map[string]rel.Value{"emp_id": rel.Int(3), "phone": rel.String("555-0101")}),
		rel.NewTuple(map[string]rel.Value{"emp_id": rel.Int(3), "phone": rel.String("555-0102")}),
	))

	env.Set("ContractorPay", rel.MustRelation(
		[]string{"name", "pay"},
		rel.NewTuple(map[string]rel.Value{"name": rel.String("Frank"), "pay": rel.Int(70000)}),
	))

	return env
}

func evalRelation(t *testing.T, env *rel.Env, source string) *rel.Relation {
	t.Helper()

	res, err := Run(source, env)
	require.NoError(t, err)

	r, ok := res.(*rel.Relation)
	require.True(t, ok, "expected a relation")

	return r
}

func nameSalary(name string, salary int64) rel.Tuple {
	return rel.NewTuple(map[string]rel.Value{"name": rel.String(name), "salary": rel.Int(salary)})
}

func TestFilterAndProject(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E ? salary > 50000 # [name salary]")

	want := rel.MustRelation(
		[]string{"name", "salary"},
		nameSalary("Alice", 80000),
		nameSalary("Bob", 60000),
		nameSalary("Carol", 55000),
		nameSalary("Dave", 90000),
	)

	assert.True(t, want.Equal(got), "got %v", got)
}

func TestChainedFiltersAreConjunction(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E ? dept_id = 10 ? salary > 70000 # name")

	want := rel.MustRelation(
		[]string{"name"},
		rel.NewTuple(map[string]rel.Value{"name": rel.String("Alice")}),
		rel.NewTuple(map[string]rel.Value{"name": rel.String("Dave")}),
	)

	assert.True(t, want.Equal(got), "got %v", got)
}

func TestFilterCommutesAndGroups(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	a := evalRelation(t, env, "E ? dept_id = 10 ? salary > 70000")
	b := evalRelation(t, env, "E ? salary > 70000 ? dept_id = 10")
	c := evalRelation(t, env, "E ? (dept_id = 10 & salary > 70000)")

	assert.True(t, a.Equal(b))
	assert.True(t, a.Equal(c))
}

func TestNegatedFilter(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	neg := evalRelation(t, env, "E ?! salary > 50000")
	require.Equal(t, 1, neg.Len())

	name, _ := neg.Tuples()[0].Get("name")
	assert.Equal(t, "Eve", name.AsString())

	// Filter and its negation partition the relation.
	pos := evalRelation(t, env, "E ? salary > 50000")
	assert.Equal(t, 5, pos.Len()+neg.Len())
}

func TestSetLiteralMembership(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E ? emp_id = {1, 3, 5} # name")

	assert.Equal(t, 3, got.Len())
}

func TestSubqueryMembership(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E ? emp_id = (Phone # emp_id) # name")

	want := rel.MustRelation(
		[]string{"name"},
		rel.NewTuple(map[string]rel.Value{"name": rel.String("Alice")}),
		rel.NewTuple(map[string]rel.Value{"name": rel.String("Carol")}),
	)

	assert.True(t, want.Equal(got), "got %v", got)
}

func TestProjectionIdempotence(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	once := evalRelation(t, env, "E # [name salary]")
	twice := evalRelation(t, env, "E # [name salary] # [name salary]")

	assert.True(t, once.Equal(twice))
}

func TestProjectAbsentAttribute(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	_, err := Run("E # missing", env)
	require.Error(t, err)

	var schemaErr *rel.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestProjectDeduplicates(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E # dept_id")

	assert.Equal(t, 2, got.Len())
}

func TestNaturalJoin(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E * D")

	assert.Equal(t, 5, got.Len())
	assert.Equal(t, []string{"dept_id", "dept_name", "emp_id", "name", "salary"}, got.Schema())
}

func TestJoinDropsUnmatched(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E * Phone")

	// Only Alice (1 phone) and Carol (2 phones) match.
	assert.Equal(t, 3, got.Len())
}

func TestJoinDisjointSchemasIsProduct(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	env.Set("Dids", evalRelation(t, env, "D @ [dept_id > did] # did"))

	got := evalRelation(t, env, "(E # name) * Dids")

	assert.Equal(t, 10, got.Len())
}

func TestJoinOnCommonSchemaIsIntersection(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	env.Set("PhoneIDs", evalRelation(t, env, "Phone # emp_id"))

	join := evalRelation(t, env, "(E # emp_id) * PhoneIDs")
	inter := evalRelation(t, env, "E # emp_id & PhoneIDs")

	assert.True(t, join.Equal(inter))
}

func TestNestJoinKeepsEveryLeftTuple(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E *: Phone > phones")

	require.Equal(t, 5, got.Len())
	assert.Equal(t, []string{"dept_id", "emp_id", "name", "phones", "salary"}, got.Schema())

	counts := map[string]int{}

	for _, tup := range got.Tuples() {
		name, _ := tup.Get("name")

		phones, _ := tup.Get("phones")
		require.Equal(t, rel.KindRelation, phones.Kind())

		inner := phones.AsRelation()
		assert.Equal(t, []string{"phone"}, inner.Schema(), "inner schema survives even when empty")

		counts[name.AsString()] = inner.Len()
	}

	assert.Equal(t, map[string]int{"Alice": 1, "Bob": 0, "Carol": 2, "Dave": 0, "Eve": 0}, counts)
}

func TestUnnestInvertsNestJoin(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	// Matching tuples only: unnesting drops lefts with empty groups.
	unnested := evalRelation(t, env, "E *: Phone > phones <: phones")
	joined := evalRelation(t, env, "E * Phone")

	assert.True(t, joined.Equal(unnested))
}

func TestUnnestCollision(t *testing.T) {
	t.Parallel()

	inner := rel.MustRelation(
		[]string{"a"},
		rel.NewTuple(map[string]rel.Value{"a": rel.Int(2)}),
	)

	env := rel.NewEnv()
	env.Set("C", rel.MustRelation(
		[]string{"a", "grp"},
		rel.NewTuple(map[string]rel.Value{"a": rel.Int(1), "grp": rel.Rel(inner)}),
	))

	// The nested group's attribute collides with the outer tuple's.
	_, err := Run("C <: grp", env)
	require.Error(t, err)

	var schemaErr *rel.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestExtendComputesPerTuple(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E + [bonus: salary / 10] ? name = \"Alice\" # bonus")

	v, _ := got.Tuples()[0].Get("bonus")
	assert.Equal(t, int64(8000), v.AsInt())
}

func TestExtendCollision(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	_, err := Run("E + [salary: 1]", env)
	require.Error(t, err)

	var schemaErr *rel.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestExtendTernary(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, `E + [band: ? salary > 70000 "high" "low"] ? band = "high" # name`)

	assert.Equal(t, 2, got.Len())
}

func TestRenameSwapIsSimultaneous(t *testing.T) {
	t.Parallel()

	env := rel.NewEnv()
	env.Set("R", rel.MustRelation(
		[]string{"a", "b"},
		rel.NewTuple(map[string]rel.Value{"a": rel.Int(1), "b": rel.Int(2)}),
	))

	got := evalRelation(t, env, "R @ [a > b b > a]")

	tup := got.Tuples()[0]

	a, _ := tup.Get("a")
	b, _ := tup.Get("b")

	assert.Equal(t, int64(2), a.AsInt())
	assert.Equal(t, int64(1), b.AsInt())
}

func TestRenameErrors(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	var schemaErr *rel.SchemaError

	_, err := Run("E @ [missing > x]", env)
	require.Error(t, err)
	assert.ErrorAs(t, err, &schemaErr)

	_, err = Run("E @ [name > salary]", env)
	require.Error(t, err)
	assert.ErrorAs(t, err, &schemaErr)
}

func TestSetOperations(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	union := evalRelation(t, env, `ContractorPay @ [pay > salary] | (E # [name salary])`)
	assert.Equal(t, 6, union.Len())
	assert.Equal(t, []string{"name", "salary"}, union.Schema())

	diff := evalRelation(t, env, "E # emp_id - (Phone # emp_id)")
	want := rel.MustRelation(
		[]string{"emp_id"},
		rel.NewTuple(map[string]rel.Value{"emp_id": rel.Int(2)}),
		rel.NewTuple(map[string]rel.Value{"emp_id": rel.Int(4)}),
		rel.NewTuple(map[string]rel.Value{"emp_id": rel.Int(5)}),
	)
	assert.True(t, want.Equal(diff), "got %v", diff)
}

func TestSetOperationSchemaCheck(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	for _, op := range []string{"|", "-", "&"} {
		_, err := Run("E "+op+" D", env)
		require.Error(t, err, op)

		var schemaErr *rel.SchemaError
		assert.ErrorAs(t, err, &schemaErr, op)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E / dept_id [n: #. avg: %. salary]")

	want := rel.MustRelation(
		[]string{"dept_id", "n", "avg"},
		rel.NewTuple(map[string]rel.Value{"dept_id": rel.Int(10), "n": rel.Int(3), "avg": rel.Int(76666)}),
		rel.NewTuple(map[string]rel.Value{"dept_id": rel.Int(20), "n": rel.Int(2), "avg": rel.Int(50000)}),
	)

	assert.True(t, want.Equal(got), "got %v", got)
}

func TestSummarizeAll(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E /. [n: #. total: +. salary]")

	want := rel.MustRelation(
		[]string{"n", "total"},
		rel.NewTuple(map[string]rel.Value{"n": rel.Int(5), "total": rel.Int(330000)}),
	)

	assert.True(t, want.Equal(got), "got %v", got)
}

func TestSummarizeEmptyInput(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	// No group, no output tuple.
	grouped := evalRelation(t, env, "E ? salary > 1000000 / dept_id [n: #.]")
	assert.Equal(t, 0, grouped.Len())

	// Summarize-all still yields one tuple of zeros for count, sum, mean.
	all := evalRelation(t, env, "E ? salary > 1000000 /. [n: #. total: +. salary avg: %. salary]")
	require.Equal(t, 1, all.Len())

	tup := all.Tuples()[0]

	for _, attr := range []string{"n", "total", "avg"} {
		v, _ := tup.Get(attr)
		assert.Equal(t, int64(0), v.AsInt(), attr)
	}

	// Min and max over the empty input are a domain error.
	_, err := Run("E ? salary > 1000000 /. [top: >. salary]", env)
	require.Error(t, err)

	var domainErr *rel.DomainError
	assert.ErrorAs(t, err, &domainErr)
}

func TestNestByThenAggregate(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E /: dept_id > team + [top: >. team.salary] # [dept_id top]")

	want := rel.MustRelation(
		[]string{"dept_id", "top"},
		rel.NewTuple(map[string]rel.Value{"dept_id": rel.Int(10), "top": rel.Int(90000)}),
		rel.NewTuple(map[string]rel.Value{"dept_id": rel.Int(20), "top": rel.Int(55000)}),
	)

	assert.True(t, want.Equal(got), "got %v", got)
}

func TestNestByIsFurtherComposable(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	got := evalRelation(t, env, "E /: dept_id > team + [n: #. team] ? n > 2 # dept_id")

	require.Equal(t, 1, got.Len())

	v, _ := got.Tuples()[0].Get("dept_id")
	assert.Equal(t, int64(10), v.AsInt())
}

func TestSortAndTake(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	res, err := Run("E # [name salary] $ salary- ^ 3", env)
	require.NoError(t, err)

	ot, ok := res.(*rel.OrderedTuples)
	require.True(t, ok)
	require.Equal(t, 3, ot.Len())

	var names []string

	for _, tup := range ot.Tuples() {
		n, _ := tup.Get("name")
		names = append(names, n.AsString())
	}

	assert.Equal(t, []string{"Dave", "Alice", "Bob"}, names)
}

func TestSortSecondaryKey(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	res, err := Run("E $ [dept_id salary-]", env)
	require.NoError(t, err)

	ot := res.(*rel.OrderedTuples)

	var names []string

	for _, tup := range ot.Tuples() {
		n, _ := tup.Get("name")
		names = append(names, n.AsString())
	}

	assert.Equal(t, []string{"Dave", "Alice", "Bob", "Carol", "Eve"}, names)
}

func TestTakeBeyondLength(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	res, err := Run("E $ salary ^ 99", env)
	require.NoError(t, err)

	assert.Equal(t, 5, res.(*rel.OrderedTuples).Len())
}

func TestTypeBoundary(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	// A relational operator after sort crosses the boundary.
	_, err := Run("E $ salary- # name", env)
	require.Error(t, err)

	var boundaryErr *rel.BoundaryError
	assert.ErrorAs(t, err, &boundaryErr)

	var evalError *EvalError
	require.ErrorAs(t, err, &evalError)
	assert.Equal(t, 1, evalError.Pos.Line)
}

func TestUnknownNames(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	var nameErr *rel.NameError

	_, err := Run("Nope ? x = 1", env)
	require.Error(t, err)
	require.ErrorAs(t, err, &nameErr)
	assert.Equal(t, rel.NameRelation, nameErr.Kind)

	_, err = Run("E ? nope = 1", env)
	require.Error(t, err)
	require.ErrorAs(t, err, &nameErr)
	assert.Equal(t, rel.NameAttribute, nameErr.Kind)
}

func TestArithmeticErrors(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)

	var typeErr *rel.TypeError

	_, err := Run("E + [x: name * 2]", env)
	require.Error(t, err)
	assert.ErrorAs(t, err, &typeErr)

	var domainErr *rel.DomainError

	_, err = Run("E + [x: salary / 0]", env)
	require.Error(t, err)
	assert.ErrorAs(t, err, &domainErr)
}

func TestDecimalArithmetic(t *testing.T) {
	t.Parallel()

	env := rel.NewEnv()
	env.Set("P", rel.MustRelation(
		[]string{"id", "price"},
		rel.NewTuple(map[string]rel.Value{"id": rel.Int(1), "price": rel.Dec(decimal.RequireFromString("19.99"))}),
		rel.NewTuple(map[string]rel.Value{"id": rel.Int(2), "price": rel.Dec(decimal.RequireFromString("0.01"))}),
	))

	got := evalRelation(t, env, "P /. [total: +. price]")

	v, _ := got.Tuples()[0].Get("total")
	require.Equal(t, rel.KindDecimal, v.Kind())
	assert.True(t, v.AsDecimal().Equal(decimal.RequireFromString("20.00")), "got %v", v)
}

func TestRoundBuiltin(t *testing.T) {
	t.Parallel()

	env := rel.NewEnv()
	env.Set("P", rel.MustRelation(
		[]string{"id", "price"},
		rel.NewTuple(map[string]rel.Value{"id": rel.Int(1), "price": rel.Dec(decimal.RequireFromString("19.987"))}),
	))

	got := evalRelation(t, env, "P + [r: round(price, 2)] # r")

	v, _ := got.Tuples()[0].Get("r")
	require.Equal(t, rel.KindDecimal, v.Kind(), "round preserves decimal")
	assert.True(t, v.AsDecimal().Equal(decimal.RequireFromString("19.99")))
}

func TestFailedQueryLeavesEnvironmentUntouched(t *testing.T) {
	t.Parallel()

	env := sampleEnv(t)
	before := env.Names()

	_, err := Run("E # missing", env)
	require.Error(t, err)

	assert.Equal(t, before, env.Names())

	e, _ := env.Get("E")
	assert.Equal(t, 5, e.Len())
}

func TestEvaluateSeparatedFromParse(t *testing.T) {
	t.Parallel()

	expr, err := Parse("E # name")
	require.NoError(t, err)

	// Parsing never consults the environment; evaluation does.
	_, err = Evaluate(expr, rel.NewEnv())
	require.Error(t, err)

	var nameErr *rel.NameError
	assert.True(t, errors.As(err, &nameErr))

	res, err := Evaluate(expr, sampleEnv(t))
	require.NoError(t, err)
	assert.Equal(t, 5, res.(*rel.Relation).Len())
}
