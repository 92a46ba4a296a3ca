package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ValidPackageIDRegex allows alphanumeric, dash, underscore, and dot
var ValidPackageIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidatePackageID validates a package ID for use as a directory name and
// desktop-entry filename stem
func ValidatePackageID(id string) error {
	if id == "" {
		return fmt.Errorf("package ID cannot be empty")
	}

	if len(id) > 255 {
		return fmt.Errorf("package ID too long (max 255 characters)")
	}

	if !ValidPackageIDRegex.MatchString(id) {
		return fmt.Errorf("invalid package ID: must contain only alphanumeric, dash, underscore, or dot characters")
	}

	if id == "." || id == ".." {
		return fmt.Errorf("invalid package ID: %q", id)
	}

	return nil
}

// ValidateSourcePath validates a user-supplied source file path
func ValidateSourcePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	if len(path) >= 4096 {
		return fmt.Errorf("file path too long (max 4096 characters)")
	}

	if strings.Contains(path, "\x00") {
		return fmt.Errorf("file path contains null byte")
	}

	return nil
}

// IsPathWithinDirectory checks if a target path is within a given base
// directory. Both paths must be absolute.
func IsPathWithinDirectory(targetPath, basePath string) (bool, error) {
	if !filepath.IsAbs(targetPath) {
		return false, fmt.Errorf("target path must be absolute, got relative path: %s", targetPath)
	}
	if !filepath.IsAbs(basePath) {
		return false, fmt.Errorf("base path must be absolute, got relative path: %s", basePath)
	}

	rel, err := filepath.Rel(filepath.Clean(basePath), filepath.Clean(targetPath))
	if err != nil {
		return false, fmt.Errorf("failed to compute relative path: %w", err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}

	return true, nil
}
