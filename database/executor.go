package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "floatchat/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Dataset is the tabular result of a structured query.
type Dataset struct {
	Columns []string
	Rows    [][]any
}

// Empty reports whether the dataset has no rows.
func (d Dataset) Empty() bool {
	return len(d.Rows) == 0
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Rows)
}

// Head returns a dataset holding at most n leading rows.
func (d Dataset) Head(n int) Dataset {
	if n < 0 || n >= len(d.Rows) {
		return d
	}
	return Dataset{Columns: d.Columns, Rows: d.Rows[:n]}
}

// Records returns the rows keyed by column name.
func (d Dataset) Records() []map[string]any {
	out := make([]map[string]any, 0, len(d.Rows))
	for _, row := range d.Rows {
		rec := make(map[string]any, len(d.Columns))
		for i, col := range d.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Execute runs a read-only statement against the data table. Statements that
// fail validation are logged and yield an empty dataset. Errors a retry
// cannot fix (bad SQL, bad data) are marked permanent and wrap
// ErrQueryExecutionFailed.
func (s *PostgresStore) Execute(ctx context.Context, statement string) (Dataset, error) {
	stmt, err := ValidateReadOnly(statement, s.dataTable)
	if err != nil {
		s.logger.Warn("Rejected structured query", zap.Error(err), zap.String("statement", statement))
		return Dataset{}, nil
	}

	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Dataset{}, fmt.Errorf("begin read-only transaction: %w: %v", apperrors.ErrDatabaseOperation, err)
	}
	defer tx.Rollback()

	if s.readerRole != "" {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`SET LOCAL ROLE %s`, s.readerRole)); err != nil {
			return Dataset{}, apperrors.Permanent(fmt.Errorf("switch to reader role %s: %w: %v", s.readerRole, apperrors.ErrDatabaseOperation, err))
		}
	}

	start := time.Now()
	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return Dataset{}, classifyQueryError(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Dataset{}, fmt.Errorf("read columns: %w: %v", apperrors.ErrDatabaseOperation, err)
	}

	ds := Dataset{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Dataset{}, classifyQueryError(err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		ds.Rows = append(ds.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Dataset{}, classifyQueryError(err)
	}

	s.logger.Debug("Executed structured query",
		zap.Int("rows", ds.Len()),
		zap.Int("columns", len(columns)),
		zap.Duration("elapsed", time.Since(start)))
	return ds, nil
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC()
	default:
		return x
	}
}

// classifyQueryError separates statement problems from infrastructure ones.
func classifyQueryError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "42"), // syntax error or access rule violation
			strings.HasPrefix(pgErr.Code, "22"), // data exception
			strings.HasPrefix(pgErr.Code, "25"), // invalid transaction state (read-only)
			strings.HasPrefix(pgErr.Code, "0A"): // feature not supported
			return apperrors.Permanent(fmt.Errorf("%w: %s (%s)", apperrors.ErrQueryExecutionFailed, pgErr.Message, pgErr.Code))
		}
	}
	return fmt.Errorf("run query: %w: %v", apperrors.ErrDatabaseOperation, err)
}
