package database

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "floatchat/errors"
)

var (
	stringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
	lineCommentPattern   = regexp.MustCompile(`--[^\n]*`)
	blockCommentPattern  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	// Functions whose argument syntax contains FROM without naming a table.
	fromFunctionPattern = regexp.MustCompile(`(?i)\b(extract|substring|trim|overlay|position)\s*\([^()]*\)`)
	tableRefPattern     = regexp.MustCompile(`(?i)\b(from|join)\s+((?:"?[a-z_][a-z0-9_]*"?\.)?"?[a-z_][a-z0-9_]*"?)`)
	cteNamePattern      = regexp.MustCompile(`(?i)(?:\bwith(?:\s+recursive)?|,)\s*"?([a-z_][a-z0-9_]*)"?\s*(?:\([^()]*\))?\s+as\s*(?:not\s+)?(?:materialized\s*)?\(`)
	writeKeywordPattern = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|grant|revoke|copy|merge|call|do|vacuum|analyze|comment|lock|set|reset|refresh|reindex|cluster|listen|notify|into|execute|prepare|deallocate|discard|security|pg_sleep|pg_terminate_backend|lo_import|lo_export|dblink)\b`)
	leadingKeyword      = regexp.MustCompile(`(?i)^\s*(select|with)\b`)
	fromKeywordPattern  = regexp.MustCompile(`(?i)\bfrom\b`)
	fromListEndPattern  = regexp.MustCompile(`(?i)^(where|group|order|limit|offset|having|window|union|intersect|except|fetch|for)\b`)
	relationPattern     = regexp.MustCompile(`(?i)^(?:only\s+|lateral\s+)?((?:"?[a-z_][a-z0-9_]*"?\.)?"?[a-z_][a-z0-9_]*"?)`)
)

// ValidateReadOnly checks that statement is a single SELECT (optionally with
// CTEs) reading only from table, and returns it without a trailing semicolon.
func ValidateReadOnly(statement, table string) (string, error) {
	stmt := strings.TrimSpace(statement)
	if stmt == "" {
		return "", fmt.Errorf("%w: empty statement", apperrors.ErrReadOnlyViolation)
	}

	scrubbed := blockCommentPattern.ReplaceAllString(stmt, " ")
	scrubbed = lineCommentPattern.ReplaceAllString(scrubbed, " ")
	scrubbed = stringLiteralPattern.ReplaceAllString(scrubbed, "''")

	trimmed := strings.TrimRight(strings.TrimSpace(scrubbed), "; \n\t")
	if strings.Contains(trimmed, ";") {
		return "", fmt.Errorf("%w: multiple statements", apperrors.ErrReadOnlyViolation)
	}
	if !leadingKeyword.MatchString(trimmed) {
		return "", fmt.Errorf("%w: statement must start with SELECT or WITH", apperrors.ErrReadOnlyViolation)
	}
	if kw := writeKeywordPattern.FindString(trimmed); kw != "" {
		return "", fmt.Errorf("%w: forbidden keyword %q", apperrors.ErrReadOnlyViolation, strings.ToUpper(kw))
	}

	allowed := map[string]bool{strings.ToLower(table): true}
	for _, m := range cteNamePattern.FindAllStringSubmatch(trimmed, -1) {
		allowed[strings.ToLower(m[1])] = true
	}

	refs := fromFunctionPattern.ReplaceAllString(trimmed, "fn()")
	matches := tableRefPattern.FindAllStringSubmatch(refs, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: statement does not read %s", apperrors.ErrReadOnlyViolation, table)
	}
	relations := fromRelations(refs)
	for _, m := range matches {
		relations = append(relations, m[2])
	}
	for _, rel := range relations {
		name := strings.ToLower(strings.ReplaceAll(rel, `"`, ""))
		if i := strings.LastIndex(name, "."); i >= 0 {
			if name[:i] != "public" {
				return "", fmt.Errorf("%w: schema %q is not allowed", apperrors.ErrReadOnlyViolation, name[:i])
			}
			name = name[i+1:]
		}
		if !allowed[name] {
			return "", fmt.Errorf("%w: table %q is not allowed", apperrors.ErrReadOnlyViolation, name)
		}
	}

	// Strip the trailing semicolon from the original text, not the scrubbed copy.
	return strings.TrimRight(stmt, "; \n\t"), nil
}

// fromRelations returns the relation named by every item of every FROM list.
// Parenthesised items are subqueries whose own FROM lists are visited
// separately. Items that do not start with a plain relation name are returned
// whole so the caller rejects them.
func fromRelations(stmt string) []string {
	var names []string
	for _, loc := range fromKeywordPattern.FindAllStringIndex(stmt, -1) {
		for _, item := range splitFromList(stmt[loc[1]:]) {
			item = strings.TrimSpace(item)
			if item == "" || item[0] == '(' {
				continue
			}
			if m := relationPattern.FindStringSubmatch(item); m != nil {
				names = append(names, m[1])
			} else {
				names = append(names, item)
			}
		}
	}
	return names
}

// splitFromList splits the text following FROM at top-level commas. It stops
// at the first clause keyword or at a closing parenthesis that ends the
// enclosing subquery. Join targets are left to tableRefPattern.
func splitFromList(rest string) []string {
	var items []string
	depth, start := 0, 0
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		switch {
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return append(items, rest[start:i])
			}
			depth--
		case c == ',' && depth == 0:
			items = append(items, rest[start:i])
			start = i + 1
		case depth == 0 && wordStart(rest, i) && fromListEndPattern.MatchString(rest[i:]):
			return append(items, rest[start:i])
		}
	}
	return append(items, rest[start:])
}

func wordStart(s string, i int) bool {
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	return isIdentByte(s[i])
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '"' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
