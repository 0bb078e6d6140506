package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const employeeIDOrg = "OG"

// EmployeeIDPrefix returns the "OG/{ABBR}/" prefix shared by every ID issued for abbr.
func EmployeeIDPrefix(abbr string) string {
	return employeeIDOrg + "/" + abbr + "/"
}

// FormatEmployeeID renders OG/{ABBR}/{N} with N padded to at least three digits.
func FormatEmployeeID(abbr string, n int) string {
	return fmt.Sprintf("%s/%s/%03d", employeeIDOrg, abbr, n)
}

// EmployeeIDNumber extracts the sequence number from an ID. Values with fewer than three
// segments or a non-numeric third segment are malformed.
func EmployeeIDNumber(id string) (int, bool) {
	parts := strings.Split(id, "/")
	if len(parts) < 3 {
		return 0, false
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// EmployeeIDAbbreviation returns the ABBR segment of an "OG/..." ID.
func EmployeeIDAbbreviation(id string) (string, bool) {
	if !strings.HasPrefix(id, employeeIDOrg+"/") {
		return "", false
	}
	parts := strings.Split(id, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// NextEmployeeNumber returns max(well-formed numbers)+1, or 1 when none parse.
func NextEmployeeNumber(existing []string) int {
	next := 1
	for _, id := range existing {
		if n, ok := EmployeeIDNumber(id); ok && n+1 > next {
			next = n + 1
		}
	}
	return next
}
