package tools

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLToolset(t *testing.T, maxRows int) (*Toolset, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewToolset(SQLTools(db, maxRows)...), mock
}

func TestListTables(t *testing.T) {
	ts, mock := newSQLToolset(t, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SHOW TABLES")).
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_sales"}).AddRow("orders").AddRow("customers"))

	out := ts.Invoke(context.Background(), ToolContext{}, "list_tables", nil)

	assert.Equal(t, "tables:\norders\ncustomers", out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTable(t *testing.T) {
	ts, mock := newSQLToolset(t, 0)
	mock.ExpectQuery("information_schema.COLUMNS").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_KEY", "COLUMN_COMMENT"}).
			AddRow("id", "int", "NO", "PRI", "").
			AddRow("amount", "decimal(10,2)", "YES", "", "order total"))

	out := ts.Invoke(context.Background(), ToolContext{}, "describe_table", map[string]any{"table": "orders"})

	assert.True(t, strings.HasPrefix(out, "table orders:\n| COLUMN_NAME |"))
	assert.Contains(t, out, "| amount | decimal(10,2) | YES |  | order total |")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTableRejectsInjection(t *testing.T) {
	ts, _ := newSQLToolset(t, 0)

	out := ts.Invoke(context.Background(), ToolContext{}, "describe_table", map[string]any{"table": "orders; DROP TABLE x"})
	assert.True(t, strings.HasPrefix(out, "query failed: invalid table name"))
}

func TestRunQueryTruncates(t *testing.T) {
	ts, mock := newSQLToolset(t, 2)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT region, total FROM sales")).
		WillReturnRows(sqlmock.NewRows([]string{"region", "total"}).
			AddRow("north", 10).
			AddRow("south", nil).
			AddRow("east", 30))
	mock.ExpectRollback()

	out := ts.Invoke(context.Background(), ToolContext{}, "run_query", map[string]any{"sql": "SELECT region, total FROM sales;"})

	assert.Contains(t, out, "| region | total |")
	assert.Contains(t, out, "| south | NULL |")
	assert.NotContains(t, out, "east")
	assert.Contains(t, out, "(truncated to 2 rows)")
	assert.Contains(t, out, "(2 rows,")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunQueryRefusesWrites(t *testing.T) {
	ts, mock := newSQLToolset(t, 0)

	for _, q := range []string{
		"DELETE FROM orders",
		"update orders set amount = 0",
		"SELECT 1; DROP TABLE orders",
		"",
		"WITH t AS (SELECT 1) DELETE FROM sales",
		"WITH t AS (SELECT 1) UPDATE sales SET amount = 0",
		"with t as (select 1) insert into sales select * from t",
		"SELECT * FROM sales INTO OUTFILE '/tmp/x.csv'",
		"select * from sales into   dumpfile '/tmp/x.bin'",
	} {
		out := ts.Invoke(context.Background(), ToolContext{}, "run_query", map[string]any{"sql": q})
		assert.True(t, strings.HasPrefix(out, "query failed:") || strings.HasPrefix(out, "run_query failed:"), out)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunQueryDriverError(t *testing.T) {
	ts, mock := newSQLToolset(t, 0)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	out := ts.Invoke(context.Background(), ToolContext{}, "run_query", map[string]any{"sql": "SELECT * FROM nope"})
	assert.Equal(t, "query failed: "+assert.AnError.Error(), out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunQueryAcceptsReadOnlyCTE(t *testing.T) {
	ts, mock := newSQLToolset(t, 0)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WITH recent AS")).
		WillReturnRows(sqlmock.NewRows([]string{"action", "n"}).AddRow("delete", 3))
	mock.ExpectRollback()

	q := "WITH recent AS (SELECT action, updated_at FROM audit) SELECT action, COUNT(*) AS n FROM recent WHERE action = 'delete' GROUP BY action"
	out := ts.Invoke(context.Background(), ToolContext{}, "run_query", map[string]any{"sql": q})

	assert.Contains(t, out, "| delete | 3 |")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunQueryRunsInsideReadOnlyTransaction(t *testing.T) {
	ts, mock := newSQLToolset(t, 0)
	mock.ExpectBegin().WillReturnError(assert.AnError)

	out := ts.Invoke(context.Background(), ToolContext{}, "run_query", map[string]any{"sql": "SELECT 1"})

	assert.Equal(t, "query failed: "+assert.AnError.Error(), out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadOnlyStatement(t *testing.T) {
	tests := []struct {
		query string
		ok    bool
	}{
		{"SELECT * FROM sales;", true},
		{"show tables", true},
		{"SELECT note FROM t WHERE note = 'into outfile'", true},
		{"WITH t AS (SELECT 1) DELETE FROM sales", false},
		{"WITH t AS (SELECT 1) UPDATE sales SET amount = 0", false},
		{"SELECT * FROM sales INTO OUTFILE '/tmp/x.csv'", false},
		{"INSERT INTO sales VALUES (1)", false},
	}
	for _, tt := range tests {
		_, err := readOnlyStatement(tt.query)
		if tt.ok {
			assert.NoError(t, err, tt.query)
		} else {
			assert.ErrorIs(t, err, ErrWriteStatement, tt.query)
		}
	}
}
