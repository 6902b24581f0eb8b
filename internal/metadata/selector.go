package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"satpipe/internal/filestate"
)

// Selector is a parsed conjunction of field comparisons, e.g.
//
//	product_type=ntf AND date_time='2024-01-01T00:00:00' AND area_id=5
//
// Parentheses are accepted and ignored since only AND exists. Values are
// always bound as parameters.
type Selector struct {
	Raw        string
	Conditions []Condition
}

// Condition is a single field comparison.
type Condition struct {
	Field string
	Op    string
	Value string
}

type fieldKind int

const (
	kindInt fieldKind = iota
	kindAreaID
	kindDateTime
	kindStatus
	kindText
	kindProductName
	kindAreaName
)

var selectorFields = map[string]fieldKind{
	"id":              kindInt,
	"product_type_id": kindInt,
	"area_id":         kindAreaID,
	"date_time":       kindDateTime,
	"status":          kindStatus,
	"filepath":        kindText,
	"multihash":       kindText,
	"product_type":    kindProductName,
	"area":            kindAreaName,
}

var fieldAliases = map[string]string{
	"product_id": "product_type_id",
	"product":    "product_type",
}

var selectorOps = []string{"!=", "<=", ">=", "=", "<", ">"}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuoted
	tokOp
)

type token struct {
	kind  tokenKind
	value string
}

// ParseSelector parses a selector string. Malformed input, unknown fields
// and OR clauses fail with ErrValidation.
func ParseSelector(raw string) (Selector, error) {
	tokens, err := tokenize(raw)
	if err != nil {
		return Selector{}, err
	}
	if len(tokens) == 0 {
		return Selector{}, fmt.Errorf("%w: empty selector", ErrValidation)
	}

	sel := Selector{Raw: raw}
	for i := 0; i < len(tokens); {
		if len(sel.Conditions) > 0 {
			word := tokens[i]
			if word.kind != tokWord {
				return Selector{}, fmt.Errorf("%w: expected AND before %q", ErrValidation, word.value)
			}
			switch strings.ToUpper(word.value) {
			case "AND":
				i++
			case "OR":
				return Selector{}, fmt.Errorf("%w: OR is not supported in selectors", ErrValidation)
			default:
				return Selector{}, fmt.Errorf("%w: expected AND before %q", ErrValidation, word.value)
			}
		}
		if i+3 > len(tokens) {
			return Selector{}, fmt.Errorf("%w: incomplete comparison in %q", ErrValidation, raw)
		}
		field, op, value := tokens[i], tokens[i+1], tokens[i+2]
		if field.kind != tokWord {
			return Selector{}, fmt.Errorf("%w: expected field name, got %q", ErrValidation, field.value)
		}
		if op.kind != tokOp {
			return Selector{}, fmt.Errorf("%w: expected operator after %q", ErrValidation, field.value)
		}
		if value.kind == tokOp {
			return Selector{}, fmt.Errorf("%w: expected value after %s%s", ErrValidation, field.value, op.value)
		}
		cond, err := newCondition(field.value, op.value, value.value)
		if err != nil {
			return Selector{}, err
		}
		sel.Conditions = append(sel.Conditions, cond)
		i += 3
	}
	return sel, nil
}

func newCondition(field, op, value string) (Condition, error) {
	name := strings.ToLower(field)
	if alias, ok := fieldAliases[name]; ok {
		name = alias
	}
	kind, ok := selectorFields[name]
	if !ok {
		return Condition{}, fmt.Errorf("%w: unknown selector field %q", ErrValidation, field)
	}
	cond := Condition{Field: name, Op: op, Value: value}
	switch kind {
	case kindInt:
		if _, err := parseID(name, value); err != nil {
			return Condition{}, err
		}
	case kindAreaID:
		if isNullValue(value) {
			cond.Value = "0"
		} else if _, err := parseID(name, value); err != nil {
			return Condition{}, err
		}
	case kindDateTime:
		dt, err := ParseDateTime(value)
		if err != nil {
			return Condition{}, err
		}
		cond.Value = dt.Format(DateTimeLayout)
	case kindStatus, kindProductName, kindAreaName:
		if op != "=" && op != "!=" {
			return Condition{}, fmt.Errorf("%w: %s only supports = and !=", ErrValidation, name)
		}
		if kind == kindStatus {
			status, err := filestate.Parse(value)
			if err != nil {
				return Condition{}, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			cond.Value = string(status)
		}
	}
	return cond, nil
}

// where renders the selector as a SQL predicate over the file table.
func (s Selector) where() (string, []any) {
	clauses := make([]string, 0, len(s.Conditions))
	args := make([]any, 0, len(s.Conditions))
	for _, cond := range s.Conditions {
		switch selectorFields[cond.Field] {
		case kindInt, kindAreaID:
			n, _ := strconv.ParseInt(cond.Value, 10, 64)
			clauses = append(clauses, fmt.Sprintf("%s %s ?", cond.Field, cond.Op))
			args = append(args, n)
		case kindProductName:
			clauses = append(clauses, fmt.Sprintf("product_type_id %s (SELECT id FROM product WHERE short_name = ?)", selectorIn(cond.Op)))
			args = append(args, cond.Value)
		case kindAreaName:
			clauses = append(clauses, fmt.Sprintf("area_id %s (SELECT id FROM area WHERE short_name = ?)", selectorIn(cond.Op)))
			args = append(args, cond.Value)
		default:
			clauses = append(clauses, fmt.Sprintf("%s %s ?", cond.Field, cond.Op))
			args = append(args, cond.Value)
		}
	}
	return strings.Join(clauses, " AND "), args
}

func selectorIn(op string) string {
	if op == "!=" {
		return "NOT IN"
	}
	return "IN"
}

func tokenize(raw string) ([]token, error) {
	var tokens []token
	runes := []rune(raw)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r), r == '(', r == ')':
			i++
		case r == '\'' || r == '"':
			end := i + 1
			for end < len(runes) && runes[end] != r {
				end++
			}
			if end >= len(runes) {
				return nil, fmt.Errorf("%w: unterminated quote in %q", ErrValidation, raw)
			}
			tokens = append(tokens, token{kind: tokQuoted, value: string(runes[i+1 : end])})
			i = end + 1
		case isOpRune(r):
			op := matchOp(runes[i:])
			if op == "" {
				return nil, fmt.Errorf("%w: invalid operator near %q", ErrValidation, string(runes[i:]))
			}
			tokens = append(tokens, token{kind: tokOp, value: op})
			i += len(op)
		default:
			end := i
			for end < len(runes) && !unicode.IsSpace(runes[end]) && !isOpRune(runes[end]) &&
				runes[end] != '(' && runes[end] != ')' && runes[end] != '\'' && runes[end] != '"' {
				end++
			}
			tokens = append(tokens, token{kind: tokWord, value: string(runes[i:end])})
			i = end
		}
	}
	return tokens, nil
}

func isOpRune(r rune) bool {
	return r == '=' || r == '!' || r == '<' || r == '>'
}

func matchOp(runes []rune) string {
	for _, op := range selectorOps {
		if len(runes) >= len(op) && string(runes[:len(op)]) == op {
			return op
		}
	}
	return ""
}
