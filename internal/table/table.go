package table

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
)

// TimeLayout is used for time.Time cells.
const TimeLayout = "Mon Jan 02 2006 15:04:05 GMT-0700"

type Column struct {
	Name    string `json:"name"`
	Numeric bool   `json:"numeric,omitempty"`
}

// Table is a rendered page: column headers plus pre-formatted cells.
type Table struct {
	Title     string     `json:"title"`
	Columns   []Column   `json:"columns"`
	Rows      [][]string `json:"rows"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func New(title string, columns ...Column) *Table {
	return &Table{
		Title:   title,
		Columns: columns,
		Rows:    [][]string{},
	}
}

func Text(name string) Column    { return Column{Name: name} }
func Numeric(name string) Column { return Column{Name: name, Numeric: true} }

// AddRow appends one row. It panics if the number of cells does not match
// the number of columns.
func (t *Table) AddRow(cells ...any) {
	if len(cells) != len(t.Columns) {
		panic(fmt.Sprintf("table %q: row has %d cells, want %d", t.Title, len(cells), len(t.Columns)))
	}
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = FormatCell(c)
	}
	t.Rows = append(t.Rows, row)
}

func FormatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case decimal.Decimal:
		return c.String()
	case time.Time:
		if c.IsZero() {
			return ""
		}
		return c.Format(TimeLayout)
	case time.Duration:
		return c.String()
	case fmt.Stringer:
		return c.String()
	default:
		return fmt.Sprint(c)
	}
}

func (t *Table) writer(style table.Style) table.Writer {
	w := table.NewWriter()
	w.SetStyle(style)

	header := make(table.Row, len(t.Columns))
	configs := make([]table.ColumnConfig, 0, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
		if c.Numeric {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight, AlignHeader: text.AlignRight})
		}
	}
	w.AppendHeader(header)
	w.SetColumnConfigs(configs)

	for _, r := range t.Rows {
		row := make(table.Row, len(r))
		for i, cell := range r {
			row[i] = cell
		}
		w.AppendRow(row)
	}
	return w
}

// RenderText writes the table as a box-drawn text table.
func (t *Table) RenderText(out io.Writer) {
	w := t.writer(baseStyle())
	w.SetTitle(t.Title)
	w.SetOutputMirror(out)
	w.Render()
	if !t.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "Updated: %s\n", t.UpdatedAt.Format(TimeLayout))
	}
}

// RenderHTML returns the table as an HTML <table> fragment with escaped cells.
func (t *Table) RenderHTML() string {
	style := baseStyle()
	style.HTML = table.HTMLOptions{
		CSSClass:    "dash-table",
		EmptyColumn: "&nbsp;",
		EscapeText:  true,
		Newline:     "<br/>",
	}
	return t.writer(style).RenderHTML()
}

func (t *Table) RenderCSV() string {
	return t.writer(baseStyle()).RenderCSV()
}

func (t *Table) RenderMarkdown() string {
	return t.writer(baseStyle()).RenderMarkdown()
}

// baseStyle is the rounded box style with headers left as written.
func baseStyle() table.Style {
	style := table.Style{
		Name:    "StyleRounded",
		Box:     table.StyleBoxRounded,
		Format:  table.FormatOptionsDefault,
		HTML:    table.DefaultHTMLOptions,
		Options: table.OptionsDefault,
		Title:   table.TitleOptionsDefault,
		Color:   table.ColorOptionsDefault,
	}
	style.Format.Header = text.FormatDefault
	return style
}
