// Package render turns results into terminal tables. Relations have
// unordered rows and attributes, so the renderer picks the display order:
// sorted attribute names, canonical row order. Ordered tuples keep their
// row order.
package render

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rlch/relic/rel"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	countStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
)

// Renderer renders results and errors. Color false produces unstyled
// output for pipes and files.
type Renderer struct {
	color bool
}

// New creates a renderer.
func New(color bool) *Renderer {
	return &Renderer{color: color}
}

// Result renders a relation or an ordered tuple sequence as a table with a
// tuple-count footer.
func (rd *Renderer) Result(res rel.Result) string {
	switch r := res.(type) {
	case *rel.Relation:
		return rd.table(r.Schema(), r.Tuples(), r.Len(), false)
	case *rel.OrderedTuples:
		return rd.table(r.Schema(), r.Tuples(), r.Len(), true)
	default:
		return ""
	}
}

// Error renders an error line.
func (rd *Renderer) Error(err error) string {
	msg := "error: " + err.Error()
	if rd.color {
		return errorStyle.Render(msg)
	}

	return msg
}

func (rd *Renderer) table(schema []string, tuples []rel.Tuple, n int, ordered bool) string {
	rows := make([][]string, len(tuples))

	for i, t := range tuples {
		row := make([]string, len(schema))

		for j, a := range schema {
			v, _ := t.Get(a)
			row[j] = formatValue(v)
		}

		rows[i] = row
	}

	tb := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(schema...).
		Rows(rows...)

	if rd.color {
		tb = tb.BorderStyle(borderStyle).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}

				return lipgloss.NewStyle()
			})
	}

	count := countLine(n, ordered)
	if rd.color {
		count = countStyle.Render(count)
	}

	return tb.Render() + "\n" + count
}

func countLine(n int, ordered bool) string {
	noun := "tuples"
	if n == 1 {
		noun = "tuple"
	}

	if ordered {
		return strconv.Itoa(n) + " " + noun + " (ordered)"
	}

	return strconv.Itoa(n) + " " + noun
}

// formatValue renders one cell. Nested relations render inline.
func formatValue(v rel.Value) string {
	if v.Kind() == rel.KindString {
		return v.AsString()
	}

	return fmt.Sprint(v)
}
