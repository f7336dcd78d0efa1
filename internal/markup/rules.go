package markup

import (
	"fmt"
	"strings"
)

type finding struct {
	message    string
	suggestion *string
}

// twoArgCommands take exactly two brace-delimited arguments
var twoArgCommands = map[string]bool{
	"frac":  true,
	"dfrac": true,
	"tfrac": true,
	"binom": true,
}

// textCommands take an argument that is set as text, not math
var textCommands = map[string]bool{
	"text":         true,
	"textrm":       true,
	"textit":       true,
	"textbf":       true,
	"mathrm":       true,
	"mathit":       true,
	"mathbf":       true,
	"operatorname": true,
}

// namedFunctions are typeset upright only when written as commands
var namedFunctions = map[string]bool{
	"sin": true, "cos": true, "tan": true,
	"sec": true, "csc": true, "cot": true,
	"arcsin": true, "arccos": true, "arctan": true,
	"sinh": true, "cosh": true, "tanh": true,
	"log": true, "ln": true, "exp": true,
	"lim": true, "max": true, "min": true,
	"sqrt": true, "frac": true,
}

func suggest(s string) *string {
	return &s
}

func checkSpan(s string) []finding {
	var out []finding
	if f := checkBraces(s); f != nil {
		out = append(out, *f)
	}
	out = append(out, checkCommands(s)...)
	out = append(out, checkScripts(s)...)
	return out
}

func checkBraces(s string) *finding {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return &finding{message: "unbalanced braces (unexpected })"}
			}
		}
	}
	if depth > 0 {
		return &finding{message: fmt.Sprintf("unbalanced braces (%d unclosed {)", depth)}
	}
	return nil
}

// checkCommands looks at every letter run: commands with missing arguments
// and bare function names that lack their backslash.
func checkCommands(s string) []finding {
	var out []finding
	for i := 0; i < len(s); {
		if !isLetter(s[i]) {
			if s[i] == '\\' && i+1 < len(s) && !isLetter(s[i+1]) {
				i += 2
				continue
			}
			i++
			continue
		}

		start := i
		for i < len(s) && isLetter(s[i]) {
			i++
		}
		word := s[start:i]
		isCommand := start > 0 && s[start-1] == '\\'

		switch {
		case isCommand && textCommands[word]:
			if end := argumentEnd(s, i); end != -1 {
				i = end
			}
		case isCommand && twoArgCommands[word]:
			if !hasBraceArgs(s, i, 2) {
				out = append(out, finding{
					message:    fmt.Sprintf(`\%s needs two brace-delimited arguments`, word),
					suggestion: suggest(twoArgSuggestion(word, s[i:])),
				})
			}
		case !isCommand && namedFunctions[word]:
			out = append(out, finding{
				message:    fmt.Sprintf("missing backslash before %s", word),
				suggestion: suggest(`\` + word),
			})
		}
	}
	return out
}

// argumentEnd returns the position just past the {...} group starting at
// pos, or -1 when there is none.
func argumentEnd(s string, pos int) int {
	for pos < len(s) && s[pos] == ' ' {
		pos++
	}
	if pos >= len(s) || s[pos] != '{' {
		return -1
	}
	end := matchingBrace(s, pos)
	if end == -1 {
		return -1
	}
	return end + 1
}

// hasBraceArgs reports whether n consecutive {...} groups start at pos
func hasBraceArgs(s string, pos, n int) bool {
	for k := 0; k < n; k++ {
		for pos < len(s) && s[pos] == ' ' {
			pos++
		}
		if pos >= len(s) || s[pos] != '{' {
			return false
		}
		end := matchingBrace(s, pos)
		if end == -1 {
			return false
		}
		pos = end + 1
	}
	return true
}

func matchingBrace(s string, open int) int {
	depth := 0
	for j := open; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// twoArgSuggestion rewrites the common shorthand \frac12 as \frac{1}{2};
// anything else gets a placeholder form.
func twoArgSuggestion(cmd, rest string) string {
	rest = strings.TrimLeft(rest, " ")
	if len(rest) >= 2 && isAlnum(rest[0]) && isAlnum(rest[1]) {
		return fmt.Sprintf(`\%s{%c}{%c}`, cmd, rest[0], rest[1])
	}
	if cmd == "binom" {
		return `\binom{n}{k}`
	}
	return fmt.Sprintf(`\%s{1}{2}`, cmd)
}

// checkScripts flags exponents and subscripts that span several characters
// without braces, such as x^10 or a_-1.
func checkScripts(s string) []finding {
	var out []finding
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] != '^' && s[i] != '_' {
			continue
		}

		j := i + 1
		if j < len(s) && s[j] == '-' {
			j++
		}
		digits := j
		for digits < len(s) && isDigit(s[digits]) {
			digits++
		}

		run := s[i+1 : digits]
		if digits-j >= 1 && len(run) >= 2 {
			kind := "exponent"
			if s[i] == '_' {
				kind = "subscript"
			}
			base := ""
			if i > 0 {
				base = string(s[i-1])
			}
			out = append(out, finding{
				message:    fmt.Sprintf("multi-character %s needs braces", kind),
				suggestion: suggest(fmt.Sprintf("%s%c{%s}", base, s[i], run)),
			})
		}
		i = digits - 1
	}
	return out
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlnum(c byte) bool {
	return isLetter(c) || isDigit(c)
}
