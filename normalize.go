package dataflow

import (
	"regexp"

	"github.com/iancoleman/strcase"
)

// NameNormalizer converts an arbitrary label into an identifier-safe name.
type NameNormalizer func(name string) string

var nonIdentifier = regexp.MustCompile(`[^a-zA-Z0-9]`)

func needsNormalizing(name string) bool {
	return nonIdentifier.MatchString(name)
}

// CamelCase is the default NameNormalizer: "fetch user-data" becomes
// "fetchUserData".
func CamelCase(name string) string {
	return strcase.ToLowerCamel(name)
}
