package domain

import (
	"fmt"
	"regexp"
)

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// ValidateRunID rejects ids that are empty, too long, or unsafe to use as a
// file name or key suffix.
func ValidateRunID(runID string) error {
	if !runIDPattern.MatchString(runID) || runID == "." || runID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}
