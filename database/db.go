package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type PostgresStore struct {
	DB         *sql.DB
	dataTable  string
	readerRole string
	logger     *zap.Logger
}

func NewPostgresStore(connStr, dataTable string, logger *zap.Logger) (*PostgresStore, error) {
	if !identifierPattern.MatchString(dataTable) {
		return nil, fmt.Errorf("invalid data table name %q", dataTable)
	}
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Successfully connected to the database", zap.String("data_table", dataTable))
	return &PostgresStore{DB: db, dataTable: dataTable, logger: logger}, nil
}

// SetReaderRole makes Execute switch to role for the duration of each
// read-only transaction. The role should hold SELECT on the data table only.
// An empty role keeps the connection's own privileges.
func (s *PostgresStore) SetReaderRole(role string) error {
	if role != "" && !identifierPattern.MatchString(role) {
		return fmt.Errorf("invalid reader role name %q", role)
	}
	s.readerRole = role
	return nil
}

// DataTable is the single table structured queries may read.
func (s *PostgresStore) DataTable() string {
	return s.dataTable
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.DB.Close()
}

// EnsureSchema creates the required tables if they do not already exist.
// The measurement table is normally loaded by an external import job; it is
// created here only so a fresh database accepts queries.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            profile INTEGER,
            "date" TIMESTAMP,
            latitude DOUBLE PRECISION,
            longitude DOUBLE PRECISION,
            pres_raw_dbar DOUBLE PRECISION,
            pres_adj_dbar DOUBLE PRECISION,
            temp_raw_c DOUBLE PRECISION,
            temp_adj_c DOUBLE PRECISION,
            psal_raw_psu DOUBLE PRECISION,
            psal_adj_psu DOUBLE PRECISION,
            float_id BIGINT,
            unique_id BIGINT
        )`, s.dataTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_float_id ON %s(float_id)`, s.dataTable, s.dataTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_date ON %s("date")`, s.dataTable, s.dataTable),
		`CREATE TABLE IF NOT EXISTS conversation_turns (
            id UUID PRIMARY KEY,
            session_id TEXT NOT NULL,
            question TEXT NOT NULL,
            answer TEXT NOT NULL,
            outcome TEXT NOT NULL DEFAULT '',
            degraded BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session_created_at ON conversation_turns(session_id, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}
