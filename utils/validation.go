package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "floatchat/errors"

	"github.com/google/uuid"
)

// MaxQuestionLength bounds the question accepted from clients, in runes.
const MaxQuestionLength = 2000

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._\s-]`)
	sessionIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// SanitizeFilename cleans filename for safe storage by removing dangerous characters
// and limiting length. It trims spaces and dots, removes parent directory references,
// and filters out non-alphanumeric characters except for safe punctuation.
func SanitizeFilename(filename string) string {
	sanitized := strings.Trim(filename, " .")
	sanitized = strings.ReplaceAll(sanitized, "..", "")
	sanitized = unsafeFilenameChars.ReplaceAllString(sanitized, "")
	sanitized = strings.Join(strings.Fields(sanitized), "_")
	if len(sanitized) > 255 {
		sanitized = sanitized[:255]
	}
	return sanitized
}

// ValidateQuestion rejects empty or oversized questions.
func ValidateQuestion(question string) error {
	q := strings.TrimSpace(question)
	if q == "" {
		return fmt.Errorf("%w: question is empty", apperrors.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(q); n > MaxQuestionLength {
		return fmt.Errorf("%w: question has %d characters, limit is %d", apperrors.ErrInvalidInput, n, MaxQuestionLength)
	}
	return nil
}

// ValidSessionID reports whether id is usable as a session key.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// GenerateRequestID creates a unique request identifier using UUID v4.
func GenerateRequestID() string {
	return uuid.New().String()
}

// GenerateSessionID creates a new session identifier.
func GenerateSessionID() string {
	return uuid.New().String()
}
