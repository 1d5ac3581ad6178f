// Package eventschema holds the field-type registry the rule editor
// validates conditions against. Each event type the platform emits
// (purchase, level-up, referral, ...) declares the fields of its payload
// and their scalar types; the registry is loaded from the database and
// consulted on every rule save.
package eventschema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/badgekit/badgerules/ruletree"
)

// Schema maps dotted field names ("user.level", "amount") to their
// declared scalar types for one event type.
type Schema map[string]ruletree.ScalarType

// FieldType implements ruletree.FieldTypes.
func (s Schema) FieldType(name string) (ruletree.ScalarType, bool) {
	t, ok := s[name]
	return t, ok
}

// MaxFields bounds a single event schema.
const MaxFields = 500

var validSegment = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateSchema checks a schema definition before it is persisted or
// installed in the registry. Returns nil when the schema is valid.
func ValidateSchema(schema Schema) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema cannot be empty, must declare at least one field")
	}
	if len(schema) > MaxFields {
		return fmt.Errorf("schema declares %d fields, maximum allowed is %d", len(schema), MaxFields)
	}

	for fieldName, fieldType := range schema {
		if err := validateFieldName(fieldName); err != nil {
			return fmt.Errorf("invalid field name %q: %w", fieldName, err)
		}
		if !isValidScalarType(fieldType) {
			return fmt.Errorf("field %q has invalid type %q (must be one of: string, number, bool, timestamp)", fieldName, fieldType)
		}
	}

	return nil
}

// validateFieldName checks a dotted field path: every segment must be a
// valid identifier and must not collide with an expression keyword of
// the downstream rule engine.
func validateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("field name length %d exceeds maximum of 100 characters", len(name))
	}
	for _, segment := range strings.Split(name, ".") {
		if !validSegment.MatchString(segment) {
			return fmt.Errorf("segment %q must match ^[a-zA-Z_][a-zA-Z0-9_]*$", segment)
		}
		if isReservedKeyword(segment) {
			return fmt.Errorf("segment %q is a reserved keyword", segment)
		}
	}
	return nil
}

func isValidScalarType(t ruletree.ScalarType) bool {
	switch t {
	case ruletree.TypeString, ruletree.TypeNumber, ruletree.TypeBool, ruletree.TypeTimestamp:
		return true
	}
	return false
}

// isReservedKeyword rejects CEL reserved words, since field paths become
// identifiers in the expression handed to the rule engine.
func isReservedKeyword(name string) bool {
	reservedKeywords := map[string]bool{
		"true": true, "false": true, "null": true,
		"if": true, "else": true, "for": true, "while": true,
		"break": true, "continue": true, "return": true,
		"var": true, "let": true, "const": true, "function": true,
		"in": true, "as": true, "import": true, "package": true,
		"namespace": true, "loop": true, "void": true,
	}
	return reservedKeywords[name]
}
