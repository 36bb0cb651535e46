package prompts

import (
	_ "embed"
	"strings"
)

// Embedded prompt files

//go:embed rewriter.txt
var rewriter string

//go:embed classifier.txt
var classifier string

//go:embed filters.txt
var filters string

//go:embed sqlgen.txt
var sqlgen string

//go:embed synthesizer.txt
var synthesizer string

// Rewriter returns the rewrite prompt with the ground-truth time filled in.
func Rewriter(currentTime, timezone, language string) string {
	return strings.NewReplacer(
		"{{CURRENT_TIME}}", currentTime,
		"{{TIMEZONE}}", timezone,
		"{{LANGUAGE}}", languageName(language),
	).Replace(rewriter)
}

func Classifier() string { return classifier }
func Filters() string    { return filters }

// QueryGenerator returns the SQL prompt for the given table.
func QueryGenerator(table string) string {
	return strings.ReplaceAll(sqlgen, "{{TABLE}}", table)
}

func Synthesizer(language string) string {
	return strings.ReplaceAll(synthesizer, "{{LANGUAGE}}", languageName(language))
}

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"bn": "Bengali",
	"ta": "Tamil",
	"te": "Telugu",
	"kn": "Kannada",
	"ml": "Malayalam",
	"mr": "Marathi",
	"gu": "Gujarati",
	"pa": "Punjabi",
	"ur": "Urdu",
}

// languageName maps a language code to the name used in prompts. Unknown
// values are passed through, so "French" works as well as "fr" would.
func languageName(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" {
		return "English"
	}
	if name, ok := languageNames[c]; ok {
		return name
	}
	if i := strings.IndexAny(c, "-_"); i > 0 {
		if name, ok := languageNames[c[:i]]; ok {
			return name
		}
	}
	return strings.TrimSpace(code)
}
