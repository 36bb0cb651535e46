package filter

import (
	"regexp"
	"strings"
)

// Kind is the value type an attribute accepts.
type Kind int

const (
	KindNumber Kind = iota
	KindText
	KindFlag
)

// attribute describes one allow-listed metadata key and the words in a
// question that count as evidence for filtering on it.
type attribute struct {
	kind Kind
	// evidence lists lower-case words or phrases, matched as whole words.
	evidence []string
	// spatial attributes also accept spatialWords and coordinate-shaped text.
	spatial bool
	// valueEvidence accepts the predicate value appearing in the text.
	valueEvidence bool

	pattern *regexp.Regexp
}

var spatialWords = []string{
	"lat", "latitude", "lon", "longitude", "degree", "coordinate",
	"north", "northern", "south", "southern", "east", "eastern", "west", "western",
	"near", "nearest", "nearby", "off the coast", "coast", "coastal", "equator", "equatorial",
	"bounding box",
}

var attributes = map[string]attribute{
	"FLOAT_ID":              {kind: KindNumber, evidence: []string{"float id", "wmo"}, valueEvidence: true},
	"END_MISSION_STATUS":    {kind: KindText, evidence: []string{"status", "active", "inactive", "dead", "operational", "ended", "retired"}, valueEvidence: true},
	"MISSION_DURATION_DAYS": {kind: KindNumber, evidence: []string{"duration", "lasted", "lifetime", "lifespan", "mission length", "long-lived"}},
	"DOMINANT_REGION":       {kind: KindText, evidence: []string{"dominant", "mostly", "mainly", "primarily"}, valueEvidence: true},
	"REGIONS_VISITED":       {kind: KindText, evidence: []string{"visited", "passed through"}, valueEvidence: true},
	"FIRST_REGION":          {kind: KindText, evidence: []string{"first region", "started in", "began in", "deployed in", "launched in", "starting region"}, valueEvidence: true},
	"LAST_REGION":           {kind: KindText, evidence: []string{"last region", "ended in", "finished in", "final region", "last seen in", "ending region"}, valueEvidence: true},
	"LAT_MIN":               {kind: KindNumber, spatial: true},
	"LAT_MAX":               {kind: KindNumber, spatial: true},
	"LON_MIN":               {kind: KindNumber, spatial: true},
	"LON_MAX":               {kind: KindNumber, spatial: true},
	"CENTROID_LAT":          {kind: KindNumber, spatial: true},
	"CENTROID_LON":          {kind: KindNumber, spatial: true},

	"HAS TEMP": {kind: KindFlag, evidence: []string{"temperature", "temp", "thermal", "warm", "cold"}},
	"HAS PSAL": {kind: KindFlag, evidence: []string{"salinity", "psal", "salt", "saline"}},
	"HAS PRES": {kind: KindFlag, evidence: []string{"pressure", "pres", "dbar", "depth"}},
	"HAS DOXY": {kind: KindFlag, evidence: []string{"oxygen", "doxy", "o2", "bgc", "biogeochemical"}},

	"VISITED INDIAN OCEAN":  {kind: KindFlag, evidence: []string{"indian ocean"}},
	"VISITED ARABIAN SEA":   {kind: KindFlag, evidence: []string{"arabian sea"}},
	"VISITED BAY OF BENGAL": {kind: KindFlag, evidence: []string{"bay of bengal"}},
	"VISITED LACCADIVE SEA": {kind: KindFlag, evidence: []string{"laccadive", "lakshadweep"}},
}

func init() {
	for name, a := range attributes {
		words := a.evidence
		if a.spatial {
			words = append(append([]string(nil), words...), spatialWords...)
		}
		a.pattern = wordsPattern(words)
		attributes[name] = a
	}
}

// wordsPattern matches any of words as a whole word or phrase, allowing a
// plural suffix. Letters and digits on either side break the match, so "lat"
// does not match inside "correlation" and "east" not inside "least".
func wordsPattern(words []string) *regexp.Regexp {
	if len(words) == 0 {
		return nil
	}
	alts := make([]string, len(words))
	for i, w := range words {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(alts, "|") + `)(?:s|es)?(?:$|[^\p{L}\p{N}_])`)
}

var (
	temporalAttrPattern = regexp.MustCompile(`DATE|TIME|YEAR|MONTH|JULD|LAUNCH|TIMESTAMP`)
	dateValuePattern    = regexp.MustCompile(`^\d{4}-\d{2}(-\d{2})?`)
	coordinatePattern   = regexp.MustCompile(`(?i)-?\d+(\.\d+)?\s*(°\s*[NSEW]?|[NSEW]\b)`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// Canonical normalises an attribute key the way the allow-list spells it.
// Flag keys accept underscores in place of spaces ("HAS_TEMP").
func Canonical(attr string) string {
	a := strings.ToUpper(strings.TrimSpace(attr))
	if strings.HasPrefix(a, "HAS_") || strings.HasPrefix(a, "VISITED_") {
		a = strings.ReplaceAll(a, "_", " ")
	}
	return whitespacePattern.ReplaceAllString(a, " ")
}

// Allowed reports whether attr is on the allow-list.
func Allowed(attr string) bool {
	_, ok := attributes[Canonical(attr)]
	return ok
}

// KindOf returns the value kind for an allow-listed attribute.
func KindOf(attr string) (Kind, bool) {
	a, ok := attributes[Canonical(attr)]
	return a.kind, ok
}

// AllowedAttributes lists the allow-list, for prompts and diagnostics.
func AllowedAttributes() []string {
	out := make([]string, 0, len(attributes))
	for k := range attributes {
		out = append(out, k)
	}
	return sortStrings(out)
}

// IsTemporal reports whether a predicate filters on time, which this filter
// never does. Both the attribute name and date-shaped values count.
func IsTemporal(p Predicate) bool {
	if _, ok := attributes[Canonical(p.Attribute)]; !ok && temporalAttrPattern.MatchString(Canonical(p.Attribute)) {
		return true
	}
	values := p.Values
	if !p.Op.IsSet() {
		values = []any{p.Value}
	}
	for _, v := range values {
		if s, ok := v.(string); ok && dateValuePattern.MatchString(strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

// Evidenced reports whether text mentions the predicate's attribute or value.
// Words count only when they appear whole.
func Evidenced(p Predicate, text string) bool {
	attr, ok := attributes[Canonical(p.Attribute)]
	if !ok {
		return false
	}
	if attr.pattern != nil && attr.pattern.MatchString(text) {
		return true
	}
	if attr.spatial && coordinatePattern.MatchString(text) {
		return true
	}
	if attr.valueEvidence {
		values := p.Values
		if !p.Op.IsSet() {
			values = []any{p.Value}
		}
		for _, v := range values {
			s := strings.TrimSpace(formatValue(v))
			if s != "" && wordsPattern([]string{strings.ToLower(s)}).MatchString(text) {
				return true
			}
		}
	}
	return false
}
