package cache

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/saiset-co/estate-client/types"
)

type pair struct {
	name  string
	value string
}

// BuildKey returns path plus the sorted, non-nil params as escaped
// name=value pairs joined with '&'. Permutations of the same params give the
// same key, and the query part equals QueryString(params).
func BuildKey(path string, params types.Params) string {
	query := QueryString(params)
	if query == "" {
		return path
	}

	return path + "?" + query
}

// QueryString encodes the sorted, non-nil params for the wire.
func QueryString(params types.Params) string {
	pairs := canonicalPairs(params)
	if len(pairs) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(len(pairs) * 16)
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}

	return b.String()
}

func canonicalPairs(params types.Params) []pair {
	if len(params) == 0 {
		return nil
	}

	pairs := make([]pair, 0, len(params))
	for name, raw := range params {
		value, ok := formatValue(raw)
		if !ok {
			continue
		}
		pairs = append(pairs, pair{name: name, value: value})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].name < pairs[j].name
	})

	return pairs
}

// formatValue renders a param value; ok is false for nil and nil pointers.
func formatValue(raw any) (string, bool) {
	if raw == nil {
		return "", false
	}

	rv := reflect.ValueOf(raw)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	default:
		if stringer, ok := rv.Interface().(fmt.Stringer); ok {
			return stringer.String(), true
		}
		return fmt.Sprint(rv.Interface()), true
	}
}
