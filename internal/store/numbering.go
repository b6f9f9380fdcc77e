package store

import (
	"fmt"
	"strconv"
	"strings"
)

// NextNumber returns the document number following last. The result keeps
// the width of last, or uses width when last is empty. Non-numeric input
// restarts the sequence at 1.
func NextNumber(last string, width int) string {
	last = strings.TrimSpace(last)
	if last == "" {
		return fmt.Sprintf("%0*d", width, 1)
	}
	n, err := strconv.ParseUint(last, 10, 64)
	if err != nil {
		return fmt.Sprintf("%0*d", width, 1)
	}
	return fmt.Sprintf("%0*d", len(last), n+1)
}
