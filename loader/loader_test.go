package loader_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/relic/loader"
	"github.com/rlch/relic/rel"
)

func TestReadCSVInfersColumnTypes(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(
		"emp_id,name,salary,active,rate\n" +
			"1,Alice,80000,true,1.5\n" +
			"2,Bob,60000,false,2.25\n")

	r, err := loader.New(nil).ReadCSV(input, ',')
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"active", "emp_id", "name", "rate", "salary"}, r.Schema())

	for _, tup := range r.Tuples() {
		id, _ := tup.Get("emp_id")
		assert.Equal(t, rel.KindInt, id.Kind())

		name, _ := tup.Get("name")
		assert.Equal(t, rel.KindString, name.Kind())

		active, _ := tup.Get("active")
		assert.Equal(t, rel.KindBool, active.Kind())

		rate, _ := tup.Get("rate")
		assert.Equal(t, rel.KindDecimal, rate.Kind())
	}
}

func TestReadCSVMixedNumericColumnWidensToDecimal(t *testing.T) {
	t.Parallel()

	input := strings.NewReader("x\n1\n2.5\n")

	r, err := loader.New(nil).ReadCSV(input, ',')
	require.NoError(t, err)

	for _, tup := range r.Tuples() {
		v, _ := tup.Get("x")
		assert.Equal(t, rel.KindDecimal, v.Kind())
	}
}

func TestReadCSVMixedColumnFallsBackToString(t *testing.T) {
	t.Parallel()

	input := strings.NewReader("x\n1\nhello\n")

	r, err := loader.New(nil).ReadCSV(input, ',')
	require.NoError(t, err)

	for _, tup := range r.Tuples() {
		v, _ := tup.Get("x")
		assert.Equal(t, rel.KindString, v.Kind())
	}
}

func TestReadCSVRejectsEmptyFields(t *testing.T) {
	t.Parallel()

	input := strings.NewReader("x,y\n1,\n")

	_, err := loader.New(nil).ReadCSV(input, ',')
	require.ErrorIs(t, err, loader.ErrEmptyField)
}

func TestReadCSVDeduplicates(t *testing.T) {
	t.Parallel()

	input := strings.NewReader("x\n1\n1\n2\n")

	r, err := loader.New(nil).ReadCSV(input, ',')
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestReadJSON(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(`[
		{"emp_id": 1, "name": "Alice", "rate": 1.5},
		{"emp_id": 2, "name": "Bob", "rate": 2}
	]`)

	r, err := loader.New(nil).ReadJSON(input)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"emp_id", "name", "rate"}, r.Schema())
}

func TestReadJSONRejectsNull(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(`[{"x": null}]`)

	_, err := loader.New(nil).ReadJSON(input)
	require.ErrorIs(t, err, loader.ErrEmptyField)
}

func TestReadJSONRejectsRaggedObjects(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(`[{"x": 1}, {"y": 2}]`)

	_, err := loader.New(nil).ReadJSON(input)
	require.Error(t, err)
}

func TestLoadFileFormats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	csvPath := filepath.Join(dir, "e.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("x\n1\n"), 0o644))

	tsvPath := filepath.Join(dir, "e.tsv")
	require.NoError(t, os.WriteFile(tsvPath, []byte("x\ty\n1\t2\n"), 0o644))

	ld := loader.New(nil)

	r, err := ld.LoadFile(csvPath, "")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	r, err = ld.LoadFile(tsvPath, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, r.Schema())

	_, err = ld.LoadFile(csvPath, "xml")
	require.ErrorIs(t, err, loader.ErrUnknownFormat)
}
