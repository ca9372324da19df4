package universe

import (
	"strconv"

	"github.com/stockrhythm/gatewayapi/internal/models"
)

// Passes evaluates one filter condition against a snapshot field value.
// Every operator is total: unknown operators, missing values and
// non-comparable operands all evaluate to false rather than erroring.
func Passes(value interface{}, op models.FilterOp, target interface{}) bool {
	switch op {
	case models.FilterOpEQ:
		return compareEq(value, target)
	case models.FilterOpNE:
		return value != nil && !compareEq(value, target)
	case models.FilterOpGT, models.FilterOpGTE, models.FilterOpLT, models.FilterOpLTE:
		left, lok := toFloat(value)
		right, rok := toFloat(target)
		if !lok || !rok {
			return false
		}
		switch op {
		case models.FilterOpGT:
			return left > right
		case models.FilterOpGTE:
			return left >= right
		case models.FilterOpLT:
			return left < right
		default:
			return left <= right
		}
	case models.FilterOpIn:
		return inList(value, target)
	case models.FilterOpNotIn:
		if _, ok := listOf(target); !ok {
			return false
		}
		return value != nil && !inList(value, target)
	case models.FilterOpBetween:
		bounds, ok := listOf(target)
		if !ok || len(bounds) != 2 {
			return false
		}
		left, lok := toFloat(value)
		lo, look := toFloat(bounds[0])
		hi, hiok := toFloat(bounds[1])
		if !lok || !look || !hiok {
			return false
		}
		return left >= lo && left <= hi
	default:
		return false
	}
}

func compareEq(value, target interface{}) bool {
	if value == nil || target == nil {
		return value == target
	}
	if left, lok := toFloat(value); lok {
		if right, rok := toFloat(target); rok {
			return left == right
		}
		return false
	}
	return value == target
}

func inList(value, target interface{}) bool {
	items, ok := listOf(target)
	if !ok {
		return false
	}
	for _, item := range items {
		if compareEq(value, item) {
			return true
		}
	}
	return false
}

func listOf(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case []interface{}:
		return list, true
	case []float64:
		items := make([]interface{}, len(list))
		for i, n := range list {
			items[i] = n
		}
		return items, true
	case []string:
		items := make([]interface{}, len(list))
		for i, s := range list {
			items[i] = s
		}
		return items, true
	}
	return nil, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
