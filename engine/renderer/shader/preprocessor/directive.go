// directive.go implements the directive scanner. It classifies a single source line as
// one of the preprocessor directives the build pipeline evaluates itself (#if, #ifdef,
// #ifndef, #elif, #else, #endif, #define, #undef, #include) and tokenizes #if/#elif
// conditions into defined(NAME) clauses joined by &&. Conditions outside that grammar
// are marked as pass-through so the external compiler evaluates them instead.
package preprocessor

import (
	"fmt"
	"strings"
	"unicode"
)

// DirectiveKind identifies the directive found on a source line.
type DirectiveKind int

const (
	// DirectiveNone marks a line that is not a directive this package evaluates. Such
	// lines, including #version, #extension and #pragma, are emitted verbatim.
	DirectiveNone DirectiveKind = iota

	// DirectiveIf opens a conditional block (#if, #ifdef, #ifndef).
	DirectiveIf

	// DirectiveElif is an alternative branch of the innermost conditional block.
	DirectiveElif

	// DirectiveElse is the final branch of the innermost conditional block.
	DirectiveElse

	// DirectiveEndif closes the innermost conditional block.
	DirectiveEndif

	// DirectiveDefine declares a macro name for later conditionals in the same file.
	DirectiveDefine

	// DirectiveUndef removes a macro name.
	DirectiveUndef

	// DirectiveInclude inlines another file.
	DirectiveInclude
)

// String returns the directive keyword.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveIf:
		return "#if"
	case DirectiveElif:
		return "#elif"
	case DirectiveElse:
		return "#else"
	case DirectiveEndif:
		return "#endif"
	case DirectiveDefine:
		return "#define"
	case DirectiveUndef:
		return "#undef"
	case DirectiveInclude:
		return "#include"
	default:
		return "none"
	}
}

// Clause is a single defined(NAME) or !defined(NAME) term of a condition.
type Clause struct {
	Name    string
	Negated bool
}

// holds reports whether the clause is satisfied by the set of defined names.
func (c Clause) holds(defined map[string]bool) bool {
	return defined[c.Name] != c.Negated
}

// Directive is the result of scanning one source line.
type Directive struct {
	// Kind identifies the directive.
	Kind DirectiveKind

	// Clauses holds the AND-ed terms of an #if or #elif condition.
	Clauses []Clause

	// Passthrough is set on #if/#elif directives whose condition is not a chain of
	// defined() clauses. Such blocks are left for the external compiler to evaluate.
	Passthrough bool

	// Name is the macro name of a #define or #undef.
	Name string

	// Path is the target of an #include.
	Path string
}

// Holds reports whether every clause of the condition is satisfied.
func (d Directive) Holds(defined map[string]bool) bool {
	for _, c := range d.Clauses {
		if !c.holds(defined) {
			return false
		}
	}
	return true
}

// ScanDirective classifies a single source line.
//
// Parameters:
//   - line: the raw source line
//
// Returns:
//   - Directive: the scanned directive, Kind is DirectiveNone for ordinary lines
//   - error: an error if the line is an #include without a quoted path
func ScanDirective(line string) (Directive, error) {
	trimmed := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(trimmed, "#")
	if !ok {
		return Directive{}, nil
	}
	rest = strings.TrimLeft(rest, " \t")
	keyword, args := splitKeyword(rest)
	args = stripLineComment(args)

	switch keyword {
	case "if":
		return scanCondition(DirectiveIf, args), nil
	case "elif":
		return scanCondition(DirectiveElif, args), nil
	case "ifdef", "ifndef":
		name := strings.TrimSpace(args)
		if !isIdentifier(name) {
			return Directive{Kind: DirectiveIf, Passthrough: true}, nil
		}
		return Directive{
			Kind:    DirectiveIf,
			Clauses: []Clause{{Name: name, Negated: keyword == "ifndef"}},
		}, nil
	case "else":
		return Directive{Kind: DirectiveElse}, nil
	case "endif":
		return Directive{Kind: DirectiveEndif}, nil
	case "define", "undef":
		fields := strings.Fields(args)
		if len(fields) == 0 {
			return Directive{}, nil
		}
		name := fields[0]
		if i := strings.IndexByte(name, '('); i > 0 {
			name = name[:i]
		}
		kind := DirectiveDefine
		if keyword == "undef" {
			kind = DirectiveUndef
		}
		return Directive{Kind: kind, Name: name}, nil
	case "include":
		path, err := scanIncludePath(args)
		if err != nil {
			return Directive{}, err
		}
		return Directive{Kind: DirectiveInclude, Path: path}, nil
	default:
		return Directive{}, nil
	}
}

func splitKeyword(s string) (string, string) {
	i := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

func stripLineComment(s string) string {
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func scanIncludePath(args string) (string, error) {
	args = strings.TrimSpace(args)
	if len(args) >= 2 {
		open, want := args[0], byte(0)
		switch open {
		case '"':
			want = '"'
		case '<':
			want = '>'
		}
		if want != 0 {
			if end := strings.IndexByte(args[1:], want); end > 0 {
				return args[1 : end+1], nil
			}
		}
	}
	return "", fmt.Errorf("malformed #include %q: expected a quoted path", args)
}

// condition scanner states
type condState int

const (
	condExpectClause condState = iota // start of a clause, "!" allowed
	condExpectDefined                 // after "!", "defined" required
	condExpectName                    // after "defined", "(" or a name
	condExpectParenName               // after "(", a name required
	condExpectClose                   // after the parenthesized name, ")" required
	condAfterClause                   // after a full clause, "&&" or end
)

// scanCondition runs the clause FSM over the condition text. Any token sequence the
// FSM does not accept yields a pass-through directive.
func scanCondition(kind DirectiveKind, expr string) Directive {
	passthrough := Directive{Kind: kind, Passthrough: true}
	tokens, ok := tokenizeCondition(expr)
	if !ok || len(tokens) == 0 {
		return passthrough
	}

	var clauses []Clause
	var cur Clause
	state := condExpectClause
	for _, tok := range tokens {
		switch state {
		case condExpectClause:
			switch tok {
			case "!":
				cur.Negated = true
				state = condExpectDefined
			case "defined":
				state = condExpectName
			default:
				return passthrough
			}
		case condExpectDefined:
			if tok != "defined" {
				return passthrough
			}
			state = condExpectName
		case condExpectName:
			switch {
			case tok == "(":
				state = condExpectParenName
			case isIdentifier(tok):
				cur.Name = tok
				clauses = append(clauses, cur)
				cur = Clause{}
				state = condAfterClause
			default:
				return passthrough
			}
		case condExpectParenName:
			if !isIdentifier(tok) {
				return passthrough
			}
			cur.Name = tok
			state = condExpectClose
		case condExpectClose:
			if tok != ")" {
				return passthrough
			}
			clauses = append(clauses, cur)
			cur = Clause{}
			state = condAfterClause
		case condAfterClause:
			if tok != "&&" {
				return passthrough
			}
			state = condExpectClause
		}
	}
	if state != condAfterClause {
		return passthrough
	}
	return Directive{Kind: kind, Clauses: clauses}
}

// tokenizeCondition splits a condition into identifiers and the punctuation the clause
// grammar uses. It reports false on any other character.
func tokenizeCondition(expr string) ([]string, bool) {
	var tokens []string
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '(' || c == ')' || c == '!':
			tokens = append(tokens, string(c))
			i++
		case c == '&':
			if i+1 >= len(expr) || expr[i+1] != '&' {
				return nil, false
			}
			tokens = append(tokens, "&&")
			i += 2
		case isIdentStart(c):
			j := i + 1
			for j < len(expr) && isIdentPart(expr[j]) {
				j++
			}
			tokens = append(tokens, expr[i:j])
			i = j
		default:
			return nil, false
		}
	}
	return tokens, true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return s != "defined"
}
