package errors

import (
	"math"
	"path/filepath"
	"strings"
	"unicode"
)

// ValidateWeight validates a goal-function weight.
// Weights must be strictly positive and finite.
func ValidateWeight(what string, w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return New(ErrCodeInvalidWeight, "%s weight must be finite, got %g", what, w)
	}
	if w <= 0 {
		return New(ErrCodeInvalidWeight, "%s weight must be positive, got %g", what, w)
	}
	return nil
}

// ValidateScale validates a variable scale factor.
func ValidateScale(s float64) error {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return New(ErrCodeInvalidScale, "scale must be finite, got %g", s)
	}
	if s <= 0 {
		return New(ErrCodeInvalidScale, "scale must be positive, got %g", s)
	}
	return nil
}

// ValidateFinite validates that a derived value is neither NaN nor infinite.
func ValidateFinite(what string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeNonFinite, "%s is not finite (%g)", what, v)
	}
	return nil
}

// problemExtensions are the file extensions accepted for problem and result files.
var problemExtensions = map[string]bool{
	".json": true,
	".toml": true,
	".yaml": true,
	".yml":  true,
}

// ValidateProblemFilename validates a problem or result filename.
// Only the extension is checked; the format is selected from it.
func ValidateProblemFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidPath, "filename cannot be empty")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !problemExtensions[ext] {
		return New(ErrCodeInvalidFormat, "unsupported file extension %q (want .json, .toml, .yaml)", ext)
	}
	return nil
}

// ValidatePath validates a relative file path for safety.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
