package utils

import (
	"errors"
	"strings"
	"testing"

	apperrors "floatchat/errors"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "argo_data.csv", want: "argo_data.csv"},
		{name: "traversal", in: "../../etc/passwd", want: "etcpasswd"},
		{name: "spaces", in: " monthly  mean temp.csv ", want: "monthly_mean_temp.csv"},
		{name: "symbols", in: "temp$(rm -rf).csv", want: "temprm_-rf.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "ok", in: "average salinity in the Arabian Sea"},
		{name: "blank", in: "  \n ", wantErr: true},
		{name: "too_long", in: strings.Repeat("a", MaxQuestionLength+1), wantErr: true},
		{name: "limit_in_runes", in: strings.Repeat("é", MaxQuestionLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestion(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateQuestion() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("error %v does not wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestValidSessionID(t *testing.T) {
	if !ValidSessionID(GenerateSessionID()) {
		t.Error("generated session id should be valid")
	}
	for _, bad := range []string{"", "has space", "semi;colon", strings.Repeat("a", 65)} {
		if ValidSessionID(bad) {
			t.Errorf("ValidSessionID(%q) = true", bad)
		}
	}
}
