package assertions

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpExists
	OpNotExists
	OpLength
	OpIncludes
	OpIn
	OpType
	OpSchema
)

var operatorNames = map[Operator]string{
	OpEquals:         "==",
	OpNotEquals:      "!=",
	OpGreaterThan:    ">",
	OpGreaterOrEqual: ">=",
	OpLessThan:       "<",
	OpLessOrEqual:    "<=",
	OpContains:       "contains",
	OpNotContains:    "!contains",
	OpStartsWith:     "startsWith",
	OpEndsWith:       "endsWith",
	OpMatches:        "matches",
	OpExists:         "exists",
	OpNotExists:      "!exists",
	OpLength:         "length",
	OpIncludes:       "includes",
	OpIn:             "in",
	OpType:           "type",
	OpSchema:         "schema",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

func lookupOperator(s string) (Operator, bool) {
	for op, name := range operatorNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

func (o Operator) unary() bool {
	return o == OpExists || o == OpNotExists
}

// Assertion checks one subject of a response.
type Assertion struct {
	Subject  string
	Operator Operator
	Expected any
}

func (a *Assertion) String() string {
	if a.Operator.unary() {
		return a.Subject + " " + a.Operator.String()
	}
	return fmt.Sprintf("%s %s %v", a.Subject, a.Operator, a.Expected)
}

// Parse reads an assertion written as "subject operator [expected]", for
// example `status == 200`, `body.items length 3` or `header.ETag exists`.
// The expected value is decoded as JSON when it is valid JSON and kept as a
// string otherwise.
func Parse(expr string) (*Assertion, error) {
	fields := strings.Fields(expr)
	if len(fields) < 2 {
		return nil, fmt.Errorf("invalid assertion %q: expected \"subject operator [value]\"", expr)
	}

	op, ok := lookupOperator(fields[1])
	if !ok {
		return nil, fmt.Errorf("invalid assertion %q: unknown operator %q", expr, fields[1])
	}

	a := &Assertion{Subject: fields[0], Operator: op}
	if op.unary() {
		if len(fields) > 2 {
			return nil, fmt.Errorf("invalid assertion %q: %s takes no value", expr, op)
		}
		return a, nil
	}
	if len(fields) < 3 {
		return nil, fmt.Errorf("invalid assertion %q: missing expected value", expr)
	}

	rest := strings.TrimSpace(expr)[len(fields[0]):]
	rest = strings.TrimSpace(rest)[len(fields[1]):]
	a.Expected = parseExpected(strings.TrimSpace(rest))
	return a, nil
}

func parseExpected(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
