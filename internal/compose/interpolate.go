package compose

import (
	"fmt"
	"strings"
)

// LookupFunc resolves a variable name against the interpolation environment.
type LookupFunc func(name string) (string, bool)

// MapLookup returns a LookupFunc backed by a plain map.
func MapLookup(env map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

// Interpolate expands $VAR, ${VAR}, ${VAR:-def}, ${VAR-def}, ${VAR:?err},
// ${VAR?err} and the $$ escape in input. Unset variables without a default
// expand to the empty string and are returned as warnings; the ? forms
// return an error instead.
func Interpolate(input string, lookup LookupFunc) (string, []string, error) {
	var out strings.Builder
	var warnings []string
	warned := map[string]bool{}
	warn := func(name string) {
		if !warned[name] {
			warned[name] = true
			warnings = append(warnings, fmt.Sprintf("variable %q is not set, defaulting to empty string", name))
		}
	}

	for i := 0; i < len(input); {
		c := input[i]
		if c != '$' {
			out.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(input) {
			out.WriteByte('$')
			break
		}
		next := input[i+1]
		switch {
		case next == '$':
			out.WriteByte('$')
			i += 2
		case next == '{':
			end := strings.IndexByte(input[i+2:], '}')
			if end < 0 {
				return "", warnings, fmt.Errorf("unclosed variable expression at offset %d", i)
			}
			expr := input[i+2 : i+2+end]
			val, err := expandBraced(expr, lookup, warn)
			if err != nil {
				return "", warnings, err
			}
			out.WriteString(val)
			i += 2 + end + 1
		case isNameStart(next):
			j := i + 1
			for j < len(input) && isNameByte(input[j]) {
				j++
			}
			name := input[i+1 : j]
			val, ok := lookup(name)
			if !ok {
				warn(name)
			}
			out.WriteString(val)
			i = j
		default:
			out.WriteByte('$')
			i++
		}
	}
	return out.String(), warnings, nil
}

func expandBraced(expr string, lookup LookupFunc, warn func(string)) (string, error) {
	name := expr
	op := ""
	arg := ""
	for j := 0; j < len(expr); j++ {
		if isNameByte(expr[j]) {
			continue
		}
		name = expr[:j]
		rest := expr[j:]
		for _, candidate := range []string{":-", ":?", "-", "?"} {
			if strings.HasPrefix(rest, candidate) {
				op = candidate
				arg = rest[len(candidate):]
				break
			}
		}
		if op == "" {
			return "", fmt.Errorf("invalid variable expression ${%s}", expr)
		}
		break
	}
	if name == "" || !isNameStart(name[0]) {
		return "", fmt.Errorf("invalid variable expression ${%s}", expr)
	}

	val, ok := lookup(name)
	switch op {
	case "":
		if !ok {
			warn(name)
		}
		return val, nil
	case "-":
		if !ok {
			return arg, nil
		}
		return val, nil
	case ":-":
		if !ok || val == "" {
			return arg, nil
		}
		return val, nil
	case "?":
		if !ok {
			return "", interpolationError(name, arg)
		}
		return val, nil
	case ":?":
		if !ok || val == "" {
			return "", interpolationError(name, arg)
		}
		return val, nil
	}
	return "", fmt.Errorf("invalid variable expression ${%s}", expr)
}

func interpolationError(name, message string) error {
	if message == "" {
		message = "required variable is missing"
	}
	return fmt.Errorf("required variable %q is not set: %s", name, message)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
