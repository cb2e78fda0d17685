package dbkind

import (
	"fmt"
	"regexp"
	"strings"
)

// sublevelSep joins a parent table with a sublevel name. Components may not
// contain consecutive underscores or start/end with one, which keeps the
// joined identifier unambiguous: "a_b"+"c" -> "a_b__c" can never collide
// with "a"+"b_c" -> "a__b_c".
const sublevelSep = "__"

var tableComponentRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(_[A-Za-z0-9]+)*$`)

// ValidTableComponent reports whether name may be used as a table name or
// sublevel component.
func ValidTableComponent(name string) bool {
	return tableComponentRe.MatchString(name) && !strings.Contains(name, sublevelSep)
}

// ValidTableName reports whether name is a full table identifier: one or
// more valid components joined by the sublevel separator.
func ValidTableName(name string) bool {
	for _, part := range strings.Split(name, sublevelSep) {
		if !tableComponentRe.MatchString(part) {
			return false
		}
	}
	return true
}

// SublevelTable resolves a (parent, name) pair to the canonical table
// identifier of the derived logical store.
func SublevelTable(parent, name string) (string, error) {
	if !ValidTableComponent(name) {
		return "", fmt.Errorf("invalid sublevel name %q: must match %s and not contain %q",
			name, tableComponentRe.String(), sublevelSep)
	}
	return parent + sublevelSep + name, nil
}
