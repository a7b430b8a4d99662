package twoda

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/meigma/nwnpatch/internal/fsutil"
)

var (
	// ErrBadHeader is returned by Read when the first line is not a 2DA header.
	ErrBadHeader = errors.New("twoda: bad header")

	// ErrBadCell is returned by Write for cells the text format cannot
	// hold: a double quote or a line break.
	ErrBadCell = errors.New("twoda: cell cannot be encoded")
)

// Header is the first line of every table written.
const Header = "2DA V2.0"

const defaultPrefix = "DEFAULT:"

// rowGrammar is one whitespace-separated line of cells.
//
//nolint:govet // participle grammar tags are not standard struct tags
type rowGrammar struct {
	Cells []string `@(Quoted | Word)*`
}

var rowLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Quoted", Pattern: `"[^"]*"?`},
	{Name: "Word", Pattern: `[^\s"]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var rowParser = participle.MustBuild[rowGrammar](
	participle.Lexer(rowLexer),
	participle.Elide("Whitespace"),
)

// splitCells tokenizes one line. Quoted cells may contain whitespace; the
// quotes are removed.
func splitCells(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	parsed, err := rowParser.ParseString("", line)
	if err != nil {
		return nil, err
	}
	cells := parsed.Cells
	for i, c := range cells {
		if strings.HasPrefix(c, `"`) {
			c = strings.TrimPrefix(c, `"`)
			cells[i] = strings.TrimSuffix(c, `"`)
		}
	}
	return cells, nil
}

// Read parses a 2DA V2.0 table.
//
// The second line may be blank or carry a "DEFAULT:" value. Blank rows are
// skipped. Rows with more cells than the header allows are truncated and
// short rows are padded with Empty.
func Read(r io.Reader) (*Table, error) {
	sc := &lineScanner{Scanner: bufio.NewScanner(r)}
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	line, ok := nextLine(sc)
	if !ok {
		return nil, fmt.Errorf("%w: empty input", ErrBadHeader)
	}
	if fields := strings.Fields(line); len(fields) == 0 || !strings.EqualFold(fields[0], "2DA") {
		return nil, fmt.Errorf("%w: %q", ErrBadHeader, line)
	}

	t := &Table{}
	line, ok = nextLine(sc)
	if !ok {
		return nil, fmt.Errorf("%w: missing column labels", ErrBadHeader)
	}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(strings.ToUpper(trimmed), defaultPrefix) {
		t.defaultValue = strings.TrimSpace(trimmed[len(defaultPrefix):])
		if cells, err := splitCells(t.defaultValue); err == nil && len(cells) == 1 {
			t.defaultValue = cells[0]
		}
		trimmed = ""
	}
	for trimmed == "" {
		if line, ok = nextLine(sc); !ok {
			return nil, fmt.Errorf("%w: missing column labels", ErrBadHeader)
		}
		trimmed = strings.TrimSpace(line)
	}

	labels, err := splitCells(line)
	if err != nil {
		return nil, fmt.Errorf("%w: column labels: %v", ErrBadHeader, err)
	}
	t.labels = labels

	for {
		line, ok := nextLine(sc)
		if !ok {
			break
		}
		cells, err := splitCells(line)
		if err != nil {
			return nil, fmt.Errorf("twoda: line %d: %w", sc.n, err)
		}
		if len(cells) == 0 {
			continue
		}
		t.AppendRow(cells)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

type lineScanner struct {
	*bufio.Scanner
	n int
}

func nextLine(sc *lineScanner) (string, bool) {
	if !sc.Scan() {
		return "", false
	}
	sc.n++
	return strings.TrimRight(sc.Text(), "\r"), true
}

// ReadFile parses the table stored at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// render formats a cell for output.
func render(c string) string {
	switch {
	case c == "":
		return Empty
	case strings.ContainsAny(c, " \t"):
		return `"` + c + `"`
	default:
		return c
	}
}

// checkCells rejects any label, default or cell that would not read back
// unchanged.
func (t *Table) checkCells() error {
	check := func(where, c string) error {
		if strings.ContainsAny(c, "\"\r\n") {
			return fmt.Errorf("%w: %s: %q", ErrBadCell, where, c)
		}
		return nil
	}
	if err := check("default", t.defaultValue); err != nil {
		return err
	}
	for i, l := range t.labels {
		if err := check(fmt.Sprintf("column label %d", i+1), l); err != nil {
			return err
		}
	}
	for r, row := range t.rows {
		for i, c := range row {
			if err := check(fmt.Sprintf("row %d column %d", r, i), c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Write encodes t with columns aligned to their widest cell. Lines end
// with "\n". Cells holding a double quote or a line break fail with
// ErrBadCell before anything is written.
func (t *Table) Write(w io.Writer) error {
	if err := t.checkCells(); err != nil {
		return err
	}
	widths := make([]int, t.Columns())
	for i, l := range t.labels {
		widths[i+1] = len(render(l))
	}
	for _, row := range t.rows {
		for i, c := range row {
			widths[i] = max(widths[i], len(render(c)))
		}
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(Header)
	bw.WriteByte('\n')
	if t.defaultValue != "" {
		bw.WriteString(defaultPrefix + " " + render(t.defaultValue))
	}
	bw.WriteByte('\n')

	header := make([]string, t.Columns())
	for i, l := range t.labels {
		header[i+1] = render(l)
	}
	writeLine(bw, header, widths)
	cells := make([]string, t.Columns())
	for _, row := range t.rows {
		for i, c := range row {
			cells[i] = render(c)
		}
		writeLine(bw, cells, widths)
	}
	return bw.Flush()
}

func writeLine(bw *bufio.Writer, cells []string, widths []int) {
	var sb strings.Builder
	for i, c := range cells {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c)
		if i < len(cells)-1 {
			sb.WriteString(strings.Repeat(" ", widths[i]-len(c)))
		}
	}
	bw.WriteString(strings.TrimRight(sb.String(), " "))
	bw.WriteByte('\n')
}

// WriteFile atomically replaces path with the encoded table.
func (t *Table) WriteFile(path string) error {
	return fsutil.WriteStream(path, t.Write)
}
