package models

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ConditionOperator is a comparison applied between a field and a value.
type ConditionOperator string

const (
	OperatorEquals         ConditionOperator = "equals"
	OperatorNotEquals      ConditionOperator = "not_equals"
	OperatorGreaterThan    ConditionOperator = "greater_than"
	OperatorLessThan       ConditionOperator = "less_than"
	OperatorGreaterOrEqual ConditionOperator = "greater_or_equal"
	OperatorLessOrEqual    ConditionOperator = "less_or_equal"
	OperatorContains       ConditionOperator = "contains"
	OperatorNotContains    ConditionOperator = "not_contains"
	OperatorStartsWith     ConditionOperator = "starts_with"
	OperatorEndsWith       ConditionOperator = "ends_with"
	OperatorExists         ConditionOperator = "exists"
	OperatorNotExists      ConditionOperator = "not_exists"
	OperatorIn             ConditionOperator = "in"
)

var operatorAliases = map[ConditionOperator]ConditionOperator{
	"==": OperatorEquals,
	"!=": OperatorNotEquals,
	">":  OperatorGreaterThan,
	"<":  OperatorLessThan,
	">=": OperatorGreaterOrEqual,
	"<=": OperatorLessOrEqual,
}

// Normalize resolves symbol aliases to their named operator.
func (o ConditionOperator) Normalize() ConditionOperator {
	if named, ok := operatorAliases[o]; ok {
		return named
	}

	return o
}

// Valid reports whether o (or its alias) is known.
func (o ConditionOperator) Valid() bool {
	switch o.Normalize() {
	case OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterOrEqual, OperatorLessOrEqual, OperatorContains, OperatorNotContains,
		OperatorStartsWith, OperatorEndsWith, OperatorExists, OperatorNotExists, OperatorIn:
		return true
	}

	return false
}

// LogicalOperator joins the predicates of a condition.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// Valid reports whether l is empty or a known operator.
func (l LogicalOperator) Valid() bool {
	return l == "" || l == LogicalAnd || l == LogicalOr
}

// Evaluate applies the predicate to data. Missing fields compare as nil;
// mismatched types evaluate to false rather than failing.
func (p Predicate) Evaluate(data map[string]any) (bool, error) {
	actual, found := Lookup(data, p.Field)

	switch p.Operator.Normalize() {
	case OperatorExists:
		return found && actual != nil, nil
	case OperatorNotExists:
		return !found || actual == nil, nil
	case OperatorEquals:
		return looseEqual(actual, p.Value), nil
	case OperatorNotEquals:
		return !looseEqual(actual, p.Value), nil
	case OperatorGreaterThan:
		return compare(actual, p.Value, func(c int) bool { return c > 0 }), nil
	case OperatorLessThan:
		return compare(actual, p.Value, func(c int) bool { return c < 0 }), nil
	case OperatorGreaterOrEqual:
		return compare(actual, p.Value, func(c int) bool { return c >= 0 }), nil
	case OperatorLessOrEqual:
		return compare(actual, p.Value, func(c int) bool { return c <= 0 }), nil
	case OperatorContains:
		return containsValue(actual, p.Value), nil
	case OperatorNotContains:
		return !containsValue(actual, p.Value), nil
	case OperatorStartsWith:
		s, ok := actual.(string)
		return ok && strings.HasPrefix(s, fmt.Sprint(p.Value)), nil
	case OperatorEndsWith:
		s, ok := actual.(string)
		return ok && strings.HasSuffix(s, fmt.Sprint(p.Value)), nil
	case OperatorIn:
		return containsValue(p.Value, actual), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, p.Operator)
	}
}

// Evaluate applies the primary predicate and every rule, joined by the logical operator.
func (c ConditionConfig) Evaluate(data map[string]any) (bool, error) {
	result, err := c.Predicate.Evaluate(data)
	if err != nil {
		return false, err
	}

	for _, rule := range c.Rules {
		next, err := rule.Evaluate(data)
		if err != nil {
			return false, err
		}

		if c.LogicalOperator == LogicalOr {
			result = result || next
		} else {
			result = result && next
		}
	}

	return result, nil
}

// Lookup resolves a dotted path ("lead.score") in nested maps.
func Lookup(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	if v, ok := data[path]; ok {
		return v, true
	}

	var current any = data

	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func looseEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}

	if ab, ok := a.(bool); ok {
		if bs, ok := b.(string); ok {
			parsed, err := strconv.ParseBool(bs)
			return err == nil && parsed == ab
		}
	}

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return reflect.DeepEqual(a, b) || fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any, accept func(int) bool) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return accept(-1)
			case af > bf:
				return accept(1)
			default:
				return accept(0)
			}
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)

	if aok && bok {
		return accept(strings.Compare(as, bs))
	}

	return false
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		if needle == nil {
			return false
		}

		return strings.Contains(h, fmt.Sprint(needle))
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
	case []string:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
	case map[string]any:
		_, ok := h[fmt.Sprint(needle)]
		return ok
	}

	return false
}
