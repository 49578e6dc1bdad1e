package tools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PabloGalante/insighter/internal/domain"
)

// Querier is the subset of *sql.DB the SQL tools need.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

const defaultMaxRows = 200

var identRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var readOnlyVerbs = map[string]bool{
	"select":   true,
	"show":     true,
	"describe": true,
	"desc":     true,
	"explain":  true,
	"with":     true,
}

// writeWords may not appear outside string literals of a WITH statement.
var writeWords = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"replace":  true,
	"merge":    true,
	"drop":     true,
	"alter":    true,
	"create":   true,
	"truncate": true,
	"grant":    true,
	"revoke":   true,
	"call":     true,
	"load":     true,
}

var (
	quotedRe   = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"|` + "`[^`]*`")
	wordRe     = regexp.MustCompile(`[a-z_]+`)
	fileSinkRe = regexp.MustCompile(`\binto\s+(outfile|dumpfile)\b`)
)

// ErrWriteStatement is returned for anything that is not a single read statement.
var ErrWriteStatement = errors.New("only single read-only statements are allowed")

// SQLTools returns the data explorer's database tools.
func SQLTools(db Querier, maxRows int) []Tool {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return []Tool{
		&ListTablesTool{db: db},
		&DescribeTableTool{db: db},
		&RunQueryTool{db: db, maxRows: maxRows},
	}
}

// ListTablesTool lists the tables of the current database.
type ListTablesTool struct {
	db Querier
}

func (t *ListTablesTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "list_tables",
		Description: "List the tables available in the database.",
	}
}

func (t *ListTablesTool) Call(ctx context.Context, _ ToolContext, _ map[string]any) (string, error) {
	rows, err := t.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return "", failed("query", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", failed("query", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return "", failed("query", err)
	}

	if len(names) == 0 {
		return "no tables found", nil
	}
	return "tables:\n" + strings.Join(names, "\n"), nil
}

// DescribeTableTool shows the columns of one table.
type DescribeTableTool struct {
	db Querier
}

func (t *DescribeTableTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "describe_table",
		Description: "Describe the columns of a table: name, type, nullability, key and comment.",
		Params: []domain.ToolParam{
			{Name: "table", Type: domain.ParamString, Description: "Table name.", Required: true},
		},
	}
}

const describeQuery = `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY, COLUMN_COMMENT
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

func (t *DescribeTableTool) Call(ctx context.Context, _ ToolContext, args map[string]any) (string, error) {
	table := getString(args, "table")
	if !identRe.MatchString(table) {
		return "", failed("query", fmt.Errorf("invalid table name %q", table))
	}

	rows, err := t.db.QueryContext(ctx, describeQuery, table)
	if err != nil {
		return "", failed("query", err)
	}
	defer rows.Close()

	out, n, err := renderRows(rows, 0)
	if err != nil {
		return "", failed("query", err)
	}
	if n == 0 {
		return "", failed("query", fmt.Errorf("table %q not found", table))
	}
	return fmt.Sprintf("table %s:\n%s", table, out), nil
}

// RunQueryTool executes a read-only SQL statement.
type RunQueryTool struct {
	db      Querier
	maxRows int
}

func (t *RunQueryTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "run_query",
		Description: fmt.Sprintf("Run a read-only SQL query (SELECT, SHOW, DESCRIBE, EXPLAIN). At most %d rows are returned.", t.maxRows),
		Params: []domain.ToolParam{
			{Name: "sql", Type: domain.ParamString, Description: "The SQL statement.", Required: true},
		},
	}
}

func (t *RunQueryTool) Call(ctx context.Context, _ ToolContext, args map[string]any) (string, error) {
	query, err := readOnlyStatement(getString(args, "sql"))
	if err != nil {
		return "", failed("query", err)
	}

	start := time.Now()
	// never committed
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return "", failed("query", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return "", failed("query", err)
	}
	defer rows.Close()

	out, n, err := renderRows(rows, t.maxRows)
	if err != nil {
		return "", failed("query", err)
	}
	if n == 0 {
		return "query returned no rows", nil
	}
	return fmt.Sprintf("%s\n(%d rows, %d ms)", out, n, time.Since(start).Milliseconds()), nil
}

// readOnlyStatement trims a trailing semicolon and rejects writes or batches.
func readOnlyStatement(q string) (string, error) {
	q = strings.TrimSpace(q)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" {
		return "", errors.New("empty statement")
	}
	if strings.Contains(q, ";") {
		return "", ErrWriteStatement
	}
	lower := strings.ToLower(q)
	bare := quotedRe.ReplaceAllString(lower, "''")
	verb := strings.Fields(lower)[0]
	if !readOnlyVerbs[verb] {
		return "", ErrWriteStatement
	}
	if fileSinkRe.MatchString(bare) {
		return "", ErrWriteStatement
	}
	if verb == "with" {
		for _, w := range wordRe.FindAllString(bare, -1) {
			if writeWords[w] {
				return "", ErrWriteStatement
			}
		}
	}
	return q, nil
}

// renderRows renders a markdown table. limit <= 0 means no limit.
// The returned count excludes rows dropped by the limit.
func renderRows(rows *sql.Rows, limit int) (string, int, error) {
	cols, err := rows.Columns()
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(cols)) + "\n")

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	n := 0
	truncated := false
	for rows.Next() {
		if limit > 0 && n >= limit {
			truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", 0, err
		}
		cells := make([]string, len(cols))
		for i, v := range values {
			cells[i] = formatValue(v)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		n++
	}
	if err := rows.Err(); err != nil {
		return "", 0, err
	}
	if truncated {
		fmt.Fprintf(&b, "(truncated to %d rows)\n", limit)
	}
	return strings.TrimRight(b.String(), "\n"), n, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
