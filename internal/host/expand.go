package host

import (
	"errors"
	"strings"
)

var (
	errEmptyCommand = errors.New("empty command line")
	errUnterminated = errors.New("unterminated quote")
)

// expand splits a command line into arguments and substitutes {name}
// placeholders in each one. Substitution happens after splitting, so values
// containing spaces stay a single argument.
func expand(cmdline string, vars map[string]string) ([]string, error) {
	fields, err := splitFields(cmdline)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errEmptyCommand
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	for i, f := range fields {
		fields[i] = r.Replace(f)
	}
	return fields, nil
}

// splitFields splits s on unquoted whitespace. Single quotes are literal;
// inside double quotes a backslash escapes " and \.
func splitFields(s string) ([]string, error) {
	var (
		fields  []string
		cur     strings.Builder
		inField bool
		quote   rune
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inField = true
		case r == ' ' || r == '\t' || r == '\n':
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			cur.WriteRune(r)
			inField = true
		}
	}
	if quote != 0 || escaped {
		return nil, errUnterminated
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields, nil
}
