package database

import (
	"errors"
	"testing"

	apperrors "floatchat/errors"
)

func TestValidateReadOnly(t *testing.T) {
	const table = "argo_data_clean"

	tests := []struct {
		name    string
		stmt    string
		want    string
		wantErr bool
	}{
		{
			name: "simple_select_with_semicolon",
			stmt: `SELECT "float_id", "latitude", "longitude" FROM argo_data_clean WHERE "date"::DATE BETWEEN '2023-03-01' AND '2024-04-01';`,
			want: `SELECT "float_id", "latitude", "longitude" FROM argo_data_clean WHERE "date"::DATE BETWEEN '2023-03-01' AND '2024-04-01'`,
		},
		{
			name: "aggregate_with_extract",
			stmt: `SELECT EXTRACT(MONTH FROM "date") AS m, AVG("temp_adj_c") FROM public.argo_data_clean GROUP BY m`,
			want: `SELECT EXTRACT(MONTH FROM "date") AS m, AVG("temp_adj_c") FROM public.argo_data_clean GROUP BY m`,
		},
		{
			name: "cte_over_allowed_table",
			stmt: `WITH recent AS (SELECT * FROM argo_data_clean WHERE "float_id" IN (2902746, 2902747)) SELECT "float_id", COUNT(*) FROM recent GROUP BY "float_id"`,
			want: `WITH recent AS (SELECT * FROM argo_data_clean WHERE "float_id" IN (2902746, 2902747)) SELECT "float_id", COUNT(*) FROM recent GROUP BY "float_id"`,
		},
		{
			name: "keyword_inside_literal_is_fine",
			stmt: `SELECT * FROM argo_data_clean WHERE "float_id" = '2902746' AND 'drop table' <> ''`,
			want: `SELECT * FROM argo_data_clean WHERE "float_id" = '2902746' AND 'drop table' <> ''`,
		},
		{
			name: "comma_list_over_cte_and_table",
			stmt: `WITH f AS (SELECT DISTINCT "float_id" FROM argo_data_clean) SELECT a."float_id", AVG(a."psal_adj_psu") FROM argo_data_clean a, f WHERE a."float_id" = f."float_id" GROUP BY a."float_id", a."profile" ORDER BY 1, 2`,
			want: `WITH f AS (SELECT DISTINCT "float_id" FROM argo_data_clean) SELECT a."float_id", AVG(a."psal_adj_psu") FROM argo_data_clean a, f WHERE a."float_id" = f."float_id" GROUP BY a."float_id", a."profile" ORDER BY 1, 2`,
		},
		{
			name: "subquery_in_select_list",
			stmt: `SELECT (SELECT MAX("temp_adj_c") FROM argo_data_clean), COUNT(*) FROM argo_data_clean`,
			want: `SELECT (SELECT MAX("temp_adj_c") FROM argo_data_clean), COUNT(*) FROM argo_data_clean`,
		},
		{name: "empty", stmt: "   ", wantErr: true},
		{name: "comma_list_other_table", stmt: `SELECT * FROM argo_data_clean, conversation_turns`, wantErr: true},
		{name: "comma_list_aliased_other_table", stmt: `SELECT t.question FROM argo_data_clean a, conversation_turns t LIMIT 5`, wantErr: true},
		{name: "comma_list_after_join", stmt: `SELECT * FROM argo_data_clean a JOIN argo_data_clean b ON a."float_id" = b."float_id", float_documents d`, wantErr: true},
		{name: "comma_list_in_subquery", stmt: `SELECT * FROM argo_data_clean WHERE "float_id" IN (SELECT 1 FROM argo_data_clean, public.conversation_turns)`, wantErr: true},
		{name: "comma_list_function", stmt: `SELECT * FROM argo_data_clean, pg_read_file('/etc/passwd') f`, wantErr: true},
		{name: "delete", stmt: `DELETE FROM argo_data_clean`, wantErr: true},
		{name: "stacked_statements", stmt: `SELECT 1 FROM argo_data_clean; DROP TABLE argo_data_clean;`, wantErr: true},
		{name: "select_into", stmt: `SELECT * INTO copy_table FROM argo_data_clean`, wantErr: true},
		{name: "other_table", stmt: `SELECT * FROM conversation_turns`, wantErr: true},
		{name: "join_other_table", stmt: `SELECT * FROM argo_data_clean a JOIN pg_user u ON true`, wantErr: true},
		{name: "other_schema", stmt: `SELECT * FROM secret.argo_data_clean`, wantErr: true},
		{name: "no_table", stmt: `SELECT pg_sleep(10)`, wantErr: true},
		{name: "comment_hiding_write", stmt: "SELECT * FROM argo_data_clean -- harmless\n; UPDATE argo_data_clean SET temp_adj_c = 0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateReadOnly(tt.stmt, table)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ValidateReadOnly() = %q, want error", got)
				}
				if !errors.Is(err, apperrors.ErrReadOnlyViolation) {
					t.Errorf("error %v does not wrap ErrReadOnlyViolation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateReadOnly() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateReadOnly() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDatasetHeadAndRecords(t *testing.T) {
	ds := Dataset{
		Columns: []string{"float_id", "temp_adj_c"},
		Rows:    [][]any{{int64(1), 28.1}, {int64(2), 27.4}, {int64(3), 26.9}},
	}

	head := ds.Head(2)
	if head.Len() != 2 || ds.Len() != 3 {
		t.Fatalf("Head(2) len = %d, original len = %d", head.Len(), ds.Len())
	}
	if ds.Head(10).Len() != 3 {
		t.Errorf("Head beyond length should return all rows")
	}

	recs := head.Records()
	if recs[1]["float_id"] != int64(2) || recs[1]["temp_adj_c"] != 27.4 {
		t.Errorf("Records()[1] = %v", recs[1])
	}
}
