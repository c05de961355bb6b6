package utils

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// GetSchemaFromConfig reflects a JSON schema for a configuration struct.
// Definitions are inlined so the output can be read without resolving references.
func GetSchemaFromConfig(config any) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(config)

	jsonSchemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}

// QuoteIdentifier quotes a column or table name for DuckDB.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a string literal (typically a file path) for DuckDB.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

var fileNameReplacer = strings.NewReplacer(
	"/", "_",
	`\`, "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeFileName replaces characters that are not portable in file names with underscores.
func SanitizeFileName(name string) string {
	return fileNameReplacer.Replace(name)
}

// GetKeychainFields returns the JSON names of the fields tagged keychain:"true".
// Embedded structs are searched as well.
func GetKeychainFields(config any) []string {
	t := reflect.TypeOf(config)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	var fields []string

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		if f.Anonymous {
			fields = append(fields, GetKeychainFields(reflect.New(f.Type).Elem().Interface())...)

			continue
		}

		if f.Tag.Get("keychain") != "true" {
			continue
		}

		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" {
			name = f.Name
		}

		fields = append(fields, name)
	}

	return fields
}
