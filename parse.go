package strata

import (
	"regexp"
	"strconv"
	"strings"
)

// Migration files are named (U|V){version}__{name}.sql. The extension is
// optional so callers that already stripped it can pass the stem. A
// decimal version such as V1.0 is accepted for compatibility and parsed
// as an integer after stripping the trailing .0.
var migrationNameRe = regexp.MustCompile(`^(U|V)(\d+(?:\.\d+)?)__(\w+?)(?:\.(sql|rs))?$`)

// ParseName decodes a migration file name into its prefix, version and
// name. It returns an InvalidName error when the name does not match the
// naming convention and an InvalidVersion error when the version part is
// not an integer.
func ParseName(input string) (Prefix, int32, string, error) {
	captures := migrationNameRe.FindStringSubmatch(input)
	if captures == nil {
		return 0, 0, "", errInvalidName(input)
	}

	prefix := Versioned
	if captures[1] == "U" {
		prefix = Unversioned
	}

	versionStr := captures[2]
	if i := strings.IndexByte(versionStr, '.'); i >= 0 {
		frac := versionStr[i+1:]
		if strings.Trim(frac, "0") != "" {
			return 0, 0, "", errInvalidVersion(input)
		}
		versionStr = versionStr[:i]
	}

	version, err := strconv.ParseInt(versionStr, 10, 32)
	if err != nil {
		return 0, 0, "", errInvalidVersion(input)
	}

	return prefix, int32(version), captures[3], nil
}

// The no-transaction header must be the first line of the SQL, modulo
// leading whitespace. It is read without executing the SQL.
var noTransactionRe = regexp.MustCompile(`(?i)^\s*--\s*strata:no_transaction[ \t]*(?:\r?\n|$)`)

// scanNoTransaction reports whether the SQL begins with the
// -- strata:no_transaction annotation line.
func scanNoTransaction(sql string) bool {
	return noTransactionRe.MatchString(sql)
}
