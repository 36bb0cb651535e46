package filter

import (
	"testing"
)

func mustParse(t *testing.T, raw string) Expression {
	t.Helper()
	expr, _, err := ParseJSON([]byte(raw))
	if err != nil {
		t.Fatalf("ParseJSON(%s) error = %v", raw, err)
	}
	return expr
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "empty",
			raw:  `{}`,
			want: "<empty>",
		},
		{
			name: "single_flag",
			raw:  `{"VISITED ARABIAN SEA": true}`,
			want: "VISITED ARABIAN SEA eq true",
		},
		{
			name: "and_of_flags",
			raw:  `{"$and": [{"HAS TEMP": true}, {"HAS PSAL": true}]}`,
			want: "and(HAS TEMP eq true, HAS PSAL eq true)",
		},
		{
			name: "implicit_and_of_top_level_keys",
			raw:  `{"HAS TEMP": true, "CENTROID_LAT": {"$gte": 9}}`,
			want: "and(CENTROID_LAT gte 9, HAS TEMP eq true)",
		},
		{
			name: "range_pair_in_one_object",
			raw:  `{"LAT_MIN": {"$gte": 5, "$lte": 15}}`,
			want: "and(LAT_MIN gte 5, LAT_MIN lte 15)",
		},
		{
			name: "set_membership",
			raw:  `{"FLOAT_ID": {"$in": [2902746, 2902747]}}`,
			want: "FLOAT_ID in [2902746,2902747]",
		},
		{
			name: "or_with_malformed_branch_is_dropped",
			raw:  `{"$or": [{"HAS TEMP": true}, {"HAS PSAL": {"$bogus": 1}}]}`,
			want: "<empty>",
		},
		{
			name: "underscore_flag_spelling",
			raw:  `{"has_doxy": true}`,
			want: "HAS DOXY eq true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.raw)
			if got.String() != tt.want {
				t.Errorf("Parse() = %s, want %s", got.String(), tt.want)
			}
		})
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		text         string
		want         string
		wantRejected int
	}{
		{
			name: "no_evidence_yields_empty",
			raw:  `{"$and": [{"HAS TEMP": true}, {"VISITED BAY OF BENGAL": true}]}`,
			text: "Show me the ARGO floats that are currently reporting.",
			want: "<empty>",
			// both leaves rejected
			wantRejected: 2,
		},
		{
			name:         "evidenced_region_flag_kept",
			raw:          `{"VISITED ARABIAN SEA": true}`,
			text:         "Retrieve missions similar to those in the Arabian Sea.",
			want:         "VISITED ARABIAN SEA eq true",
			wantRejected: 0,
		},
		{
			name:         "unknown_attribute_dropped_rest_kept",
			raw:          `{"$and": [{"HAS PSAL": true}, {"PI_NAME": "M Ravichandran"}]}`,
			text:         "Salinity profiles from floats run by M Ravichandran",
			want:         "HAS PSAL eq true",
			wantRejected: 1,
		},
		{
			name:         "temporal_attribute_rejected",
			raw:          `{"$and": [{"HAS TEMP": true}, {"LAUNCH_DATE": {"$gte": "2023-01-01"}}]}`,
			text:         "Temperature floats launched after 2023-01-01",
			want:         "HAS TEMP eq true",
			wantRejected: 1,
		},
		{
			name:         "date_value_on_allowed_attribute_rejected",
			raw:          `{"END_MISSION_STATUS": "2024-01-01"}`,
			text:         "floats whose status ended 2024-01-01",
			want:         "<empty>",
			wantRejected: 1,
		},
		{
			name:         "or_losing_branch_is_dropped",
			raw:          `{"$and": [{"HAS TEMP": true}, {"$or": [{"HAS PRES": true}, {"PLATFORM_MAKER": "TWR"}]}]}`,
			text:         "temperature and pressure floats made by TWR",
			want:         "HAS TEMP eq true",
			wantRejected: 2,
		},
		{
			name:         "spatial_bounds_with_coordinates",
			raw:          `{"$and": [{"CENTROID_LAT": {"$gte": 9}}, {"CENTROID_LAT": {"$lte": 11}}]}`,
			text:         "Retrieve the ARGO float nearest to 10N, 60E.",
			want:         "and(CENTROID_LAT gte 9, CENTROID_LAT lte 11)",
			wantRejected: 0,
		},
		{
			name:         "range_on_text_attribute_rejected",
			raw:          `{"DOMINANT_REGION": {"$gt": 3}}`,
			text:         "floats dominant in region 3",
			want:         "<empty>",
			wantRejected: 1,
		},
		{
			name:         "string_flag_value_normalised",
			raw:          `{"HAS DOXY": "true"}`,
			text:         "floats measuring dissolved oxygen",
			want:         "HAS DOXY eq true",
			wantRejected: 0,
		},
		{
			name:         "lat_inside_correlation_is_not_evidence",
			raw:          `{"LAT_MIN": {"$gte": 10}}`,
			text:         "Show the correlation between salinity and pressure for float 2902746",
			want:         "<empty>",
			wantRejected: 1,
		},
		{
			name:         "weekday_is_not_duration_evidence",
			raw:          `{"MISSION_DURATION_DAYS": {"$gt": 500}}`,
			text:         "Show salinity profiles recorded on Monday",
			want:         "<empty>",
			wantRejected: 1,
		},
		{
			name:         "east_inside_least_is_not_evidence",
			raw:          `{"CENTROID_LAT": {"$gt": 5}}`,
			text:         "floats with at least 20 profiles",
			want:         "<empty>",
			wantRejected: 1,
		},
		{
			name:         "duration_word_kept",
			raw:          `{"MISSION_DURATION_DAYS": {"$gt": 500}}`,
			text:         "floats whose mission duration exceeded 500 days",
			want:         "MISSION_DURATION_DAYS gt 500",
			wantRejected: 0,
		},
		{
			name:         "hemisphere_word_kept",
			raw:          `{"CENTROID_LAT": {"$gte": 0}}`,
			text:         "floats north of the equator",
			want:         "CENTROID_LAT gte 0",
			wantRejected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rejected := Reduce(mustParse(t, tt.raw), tt.text)
			if got.String() != tt.want {
				t.Errorf("Reduce() = %s, want %s", got.String(), tt.want)
			}
			if len(rejected) != tt.wantRejected {
				t.Errorf("Reduce() rejected %d (%v), want %d", len(rejected), rejected, tt.wantRejected)
			}
			for _, p := range got.Predicates() {
				if !Allowed(p.Attribute) {
					t.Errorf("reduced filter kept non allow-listed attribute %s", p.Attribute)
				}
			}
		})
	}
}

func TestEvidenced(t *testing.T) {
	tests := []struct {
		attr  string
		value any
		text  string
		want  bool
	}{
		{attr: "LAT_MAX", value: 20.0, text: "latest salinity readings", want: false},
		{attr: "LON_MIN", value: 60.0, text: "fit a linear trend to temperature", want: false},
		{attr: "CENTROID_LON", value: 60.0, text: "temperature along the track", want: false},
		{attr: "MISSION_DURATION_DAYS", value: 365.0, text: "what is the temperature today", want: false},
		{attr: "MISSION_DURATION_DAYS", value: 365.0, text: "how long did float 2902746 last", want: false},
		{attr: "HAS PRES", value: true, text: "present the salinity values", want: false},
		{attr: "LAT_MIN", value: 10.0, text: "floats between 10 and 20 degrees latitude", want: true},
		{attr: "CENTROID_LON", value: 72.0, text: "floats near 72.5°E", want: true},
		{attr: "HAS TEMP", value: true, text: "Temperatures of floats", want: true},
		{attr: "FLOAT_ID", value: 2902746.0, text: "salinity for float 2902746?", want: true},
		{attr: "FLOAT_ID", value: 290274.0, text: "salinity for float 2902746", want: false},
		{attr: "END_MISSION_STATUS", value: "active", text: "floats that are now reporting", want: false},
		{attr: "VISITED BAY OF BENGAL", value: true, text: "floats in the Bay  of Bengal", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.attr+"/"+tt.text, func(t *testing.T) {
			p := Predicate{Attribute: tt.attr, Op: OpEq, Value: tt.value}
			if got := Evidenced(p, tt.text); got != tt.want {
				t.Errorf("Evidenced(%s, %q) = %v, want %v", tt.attr, tt.text, got, tt.want)
			}
		})
	}
}

func TestAttributes(t *testing.T) {
	expr := mustParse(t, `{"$and": [{"HAS TEMP": true}, {"HAS TEMP": false}, {"FLOAT_ID": 1}]}`)
	got := expr.Attributes()
	if len(got) != 2 || got[0] != "FLOAT_ID" || got[1] != "HAS TEMP" {
		t.Errorf("Attributes() = %v", got)
	}
}
