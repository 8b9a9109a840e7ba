package services

import "strings"

// typeFamily groups declared Postgres types whose values can be joined or
// compared without an explicit cast.
type typeFamily int

const (
	familyUnknown typeFamily = iota
	familyNumeric
	familyText
	familyTemporal
	familyJSON
	familyBoolean
	familyUUID
)

var typeAliases = map[string]string{
	"int":         "integer",
	"int4":        "integer",
	"serial":      "integer",
	"serial4":     "integer",
	"int2":        "smallint",
	"smallserial": "smallint",
	"int8":        "bigint",
	"serial8":     "bigint",
	"bigserial":   "bigint",
	"decimal":     "numeric",
	"float4":      "real",
	"float8":      "double precision",
	"float":       "double precision",
	"varchar":     "character varying",
	"char":        "character",
	"bpchar":      "character",
	"bool":        "boolean",
	"timestamp":   "timestamp without time zone",
	"timestamptz": "timestamp with time zone",
	"time":        "time without time zone",
	"timetz":      "time with time zone",
}

var typeFamilies = map[string]typeFamily{
	"smallint":                    familyNumeric,
	"integer":                     familyNumeric,
	"bigint":                      familyNumeric,
	"numeric":                     familyNumeric,
	"real":                        familyNumeric,
	"double precision":            familyNumeric,
	"text":                        familyText,
	"character varying":           familyText,
	"character":                   familyText,
	"citext":                      familyText,
	"name":                        familyText,
	"date":                        familyTemporal,
	"timestamp without time zone": familyTemporal,
	"timestamp with time zone":    familyTemporal,
	"json":                        familyJSON,
	"jsonb":                       familyJSON,
	"boolean":                     familyBoolean,
	"uuid":                        familyUUID,
}

// normalizeType lowercases a declared type, strips type modifiers and
// resolves aliases so "character varying(20)" and "varchar" compare equal.
func normalizeType(declared string) string {
	t := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.Index(t, "("); i >= 0 {
		if j := strings.Index(t[i:], ")"); j >= 0 {
			t = strings.TrimSpace(t[:i] + t[i+j+1:])
		}
	}
	t = strings.Join(strings.Fields(t), " ")
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

func familyOf(normalized string) typeFamily {
	return typeFamilies[normalized]
}

// typeCompatibility scores two declared types: 1.0 when identical after
// normalization, 0.5 when they share a family, 0 otherwise.
func typeCompatibility(left, right string) float64 {
	l, r := normalizeType(left), normalizeType(right)
	if l == r {
		return 1.0
	}
	if f := familyOf(l); f != familyUnknown && f == familyOf(r) {
		return 0.5
	}
	return 0
}
