package notionclient

import (
	"time"

	"normlite/internal/types"
)

// matchesFilter evaluates a Notion-shaped filter (as produced by
// internal/compiler) against a page's properties map. Supported shapes:
// {"and": [...]}, {"or": [...]}, and a leaf {"property": name, <type>:
// {<verb>: value}}.
func matchesFilter(props Payload, filter Payload) bool {
	if andList, ok := filter["and"].([]any); ok {
		for _, sub := range andList {
			cond, ok := sub.(Payload)
			if !ok || !matchesFilter(props, cond) {
				return false
			}
		}
		return true
	}
	if orList, ok := filter["or"].([]any); ok {
		for _, sub := range orList {
			cond, ok := sub.(Payload)
			if ok && matchesFilter(props, cond) {
				return true
			}
		}
		return false
	}

	propName, _ := filter["property"].(string)
	propFragment, _ := props[propName].(Payload)

	for typeKey, condRaw := range filter {
		if typeKey == "property" {
			continue
		}
		cond, ok := condRaw.(Payload)
		if !ok {
			continue
		}
		return evalLeaf(propFragment, typeKey, cond)
	}
	return false
}

func evalLeaf(propFragment Payload, typeKey string, cond Payload) bool {
	actual, ok := extractValue(propFragment, typeKey)
	if !ok {
		return false
	}
	for verb, want := range cond {
		return compareVerb(verb, actual, want)
	}
	return false
}

func extractValue(fragment Payload, typeKey string) (any, bool) {
	switch typeKey {
	case "rich_text":
		v, err := types.String{IsTitle: false}.Result(fragment)
		return v, err == nil
	case "title":
		v, err := types.String{IsTitle: true}.Result(fragment)
		return v, err == nil
	case "number":
		v, err := types.Numeric{}.Result(fragment)
		return v, err == nil
	case "checkbox":
		v, err := types.Boolean{}.Result(fragment)
		return v, err == nil
	case "date":
		v, err := types.Date{}.Result(fragment)
		return v, err == nil
	default:
		return nil, false
	}
}

func compareVerb(verb string, actual, want any) bool {
	switch verb {
	case "equals":
		return equalValues(actual, want)
	case "does_not_equal":
		return !equalValues(actual, want)
	case "less_than":
		return compareOrdered(actual, want) < 0
	case "less_than_or_equal_to":
		return compareOrdered(actual, want) <= 0
	case "greater_than":
		return compareOrdered(actual, want) > 0
	case "greater_than_or_equal_to":
		return compareOrdered(actual, want) >= 0
	default:
		return false
	}
}

func equalValues(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		return at.Equal(bt)
	}
	return a == b
}

// compareOrdered returns -1/0/1 comparing a to b. Unordered/mismatched
// types compare as 0, so for such operands "<" and ">" never match
// while "<=" and ">=" always do.
func compareOrdered(a, b any) int {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
