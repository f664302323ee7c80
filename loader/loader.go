// Package loader produces named relations from CSV, TSV, and JSON files.
// Every loaded relation carries a well-defined schema; absent or empty
// fields are an error, never a null inside a tuple.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rlch/relic/rel"
)

// Loader errors.
var (
	ErrNoHeader      = errors.New("loader: input has no header row")
	ErrEmptyField    = errors.New("loader: empty field (decompose instead of using nulls)")
	ErrRaggedRow     = errors.New("loader: row width does not match header")
	ErrUnknownFormat = errors.New("loader: unknown format")
)

// Loader reads data files into relations.
type Loader struct {
	log *zap.Logger
}

// New creates a loader. A nil logger disables logging.
func New(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}

	return &Loader{log: log}
}

// LoadFile loads path into a relation. The format is taken from the
// extension unless format overrides it: csv, tsv, or json.
func (l *Loader) LoadFile(path, format string) (*rel.Relation, error) {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r *rel.Relation

	switch format {
	case "csv":
		r, err = l.ReadCSV(f, ',')
	case "tsv":
		r, err = l.ReadCSV(f, '\t')
	case "json":
		r, err = l.ReadJSON(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	l.log.Debug("loaded relation",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("tuples", r.Len()),
		zap.Strings("schema", r.Schema()))

	return r, nil
}

// ReadCSV reads delimited text with a header row. Column types are
// inferred over the whole column: all-integer, numeric (decimal),
// all-boolean, otherwise string.
func (l *Loader) ReadCSV(r io.Reader, delim rune) (*rel.Relation, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	header := rows[0]
	body := rows[1:]

	kinds := make([]rel.Kind, len(header))
	for col := range header {
		kinds[col] = inferColumn(body, col)
	}

	b := rel.NewBuilder(header)

	for i, row := range body {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: row %d", ErrRaggedRow, i+2)
		}

		attrs := make(map[string]rel.Value, len(header))

		for col, cell := range row {
			v, err := parseCell(cell, kinds[col])
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", i+2, header[col], err)
			}

			attrs[header[col]] = v
		}

		if err := b.Add(rel.NewTuple(attrs)); err != nil {
			return nil, err
		}
	}

	return b.Relation(), nil
}

// ReadJSON reads an array of flat objects. All objects must share one key
// set.
func (l *Loader) ReadJSON(r io.Reader) (*rel.Relation, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var objects []map[string]any
	if err := dec.Decode(&objects); err != nil {
		return nil, err
	}

	if len(objects) == 0 {
		return nil, ErrNoHeader
	}

	schema := make([]string, 0, len(objects[0]))
	for k := range objects[0] {
		schema = append(schema, k)
	}

	sort.Strings(schema)

	b := rel.NewBuilder(schema)

	for i, obj := range objects {
		if len(obj) != len(schema) {
			return nil, fmt.Errorf("object %d: keys do not match schema {%s}", i, strings.Join(schema, " "))
		}

		attrs := make(map[string]rel.Value, len(schema))

		for _, k := range schema {
			raw, ok := obj[k]
			if !ok {
				return nil, fmt.Errorf("object %d: keys do not match schema {%s}", i, strings.Join(schema, " "))
			}

			v, err := jsonValue(raw)
			if err != nil {
				return nil, fmt.Errorf("object %d, key %s: %w", i, k, err)
			}

			attrs[k] = v
		}

		if err := b.Add(rel.NewTuple(attrs)); err != nil {
			return nil, err
		}
	}

	return b.Relation(), nil
}

func jsonValue(raw any) (rel.Value, error) {
	switch v := raw.(type) {
	case string:
		return rel.String(v), nil
	case bool:
		return rel.Bool(v), nil
	case json.Number:
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			i, err := strconv.ParseInt(s, 10, 64)
			if err == nil {
				return rel.Int(i), nil
			}
		}

		d, err := decimal.NewFromString(s)
		if err != nil {
			return rel.Value{}, fmt.Errorf("invalid number %q", s)
		}

		return rel.Dec(d), nil
	case nil:
		return rel.Value{}, ErrEmptyField
	default:
		return rel.Value{}, fmt.Errorf("nested value of type %T is not loadable", raw)
	}
}

// inferColumn picks the narrowest kind covering every cell of a column.
func inferColumn(rows [][]string, col int) rel.Kind {
	allInt, allNum, allBool := true, true, true
	sawCell := false

	for _, row := range rows {
		if col >= len(row) {
			continue
		}

		cell := row[col]
		sawCell = true

		if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
			allInt = false
		}

		if _, err := decimal.NewFromString(cell); err != nil {
			allNum = false
		}

		if cell != "true" && cell != "false" {
			allBool = false
		}
	}

	switch {
	case !sawCell:
		return rel.KindString
	case allInt:
		return rel.KindInt
	case allNum:
		return rel.KindDecimal
	case allBool:
		return rel.KindBool
	default:
		return rel.KindString
	}
}

func parseCell(cell string, kind rel.Kind) (rel.Value, error) {
	if cell == "" {
		return rel.Value{}, ErrEmptyField
	}

	switch kind {
	case rel.KindInt:
		i, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return rel.Value{}, err
		}

		return rel.Int(i), nil
	case rel.KindDecimal:
		d, err := decimal.NewFromString(cell)
		if err != nil {
			return rel.Value{}, err
		}

		return rel.Dec(d), nil
	case rel.KindBool:
		return rel.Bool(cell == "true"), nil
	default:
		return rel.String(cell), nil
	}
}
