// Package command expands command templates against target parameters and
// runs the result.
package command

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	"git.home.luguber.info/inful/docmeld/internal/config"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
)

// MaxExpansionPasses bounds placeholder re-expansion.
const MaxExpansionPasses = 16

// token matches, in order of preference, the {{ and }} escapes, shell
// ${NAME} references, and {name} placeholders. Names may be dotted paths.
var token = regexp.MustCompile(`\{\{|\}\}|\$?\{([A-Za-z_][A-Za-z0-9_\-]*(?:\.[A-Za-z0-9_\-]+)*)\}`)

var homeRef = regexp.MustCompile(`(^|[\s="'])~(/|$|[\s"'])`)

// Format expands the command held in params. output_file is expanded first and
// written back into params so that {output_file} sees its final value; an
// absent or empty output_file is stored as null.
func Format(params *cfgtree.Map) (string, error) {
	if out := params.GetString(config.KeyOutputFile); out != "" {
		expanded, err := Expand(expandHome(out), params)
		if err != nil {
			return "", err
		}
		params.Set(config.KeyOutputFile, cfgtree.Scalar(expanded))
	} else {
		params.Set(config.KeyOutputFile, cfgtree.Null())
	}

	cmd, _ := params.Get(config.KeyCommand)
	return Expand(expandHome(cmd.Text()), params)
}

// Expand substitutes {name} placeholders in s from params, repeating until a
// pass changes nothing. {{ and }} produce literal braces; ${NAME} is left for
// the shell.
func Expand(s string, params *cfgtree.Map) (string, error) {
	root := cfgtree.Mapping(params)
	cur := s
	for range MaxExpansionPasses {
		next, pending := expandOnce(cur, root)
		if next == cur {
			if len(pending) > 0 {
				return "", unresolved(s, pending, "placeholders did not resolve")
			}
			return unescape(next), nil
		}
		cur = next
	}
	_, pending := expandOnce(cur, root)
	return "", unresolved(s, pending, fmt.Sprintf("expansion did not settle after %d passes", MaxExpansionPasses))
}

// expandOnce replaces every resolvable placeholder once. pending lists the
// placeholder names still present in the output.
func expandOnce(s string, root cfgtree.Value) (string, []string) {
	seen := map[string]bool{}
	out := token.ReplaceAllStringFunc(s, func(tok string) string {
		if tok == "{{" || tok == "}}" || strings.HasPrefix(tok, "$") {
			return tok
		}
		name := tok[1 : len(tok)-1]
		v, ok := cfgtree.Lookup(root, name)
		if !ok {
			seen[name] = true
			return tok
		}
		return formatValue(v)
	})
	for _, m := range token.FindAllStringSubmatch(out, -1) {
		if m[1] != "" && !strings.HasPrefix(m[0], "$") {
			seen[m[1]] = true
		}
	}
	pending := make([]string, 0, len(seen))
	for name := range seen {
		pending = append(pending, name)
	}
	sort.Strings(pending)
	return out, pending
}

func formatValue(v cfgtree.Value) string {
	if v.IsSequence() {
		parts := make([]string, 0, len(v.Items()))
		for _, item := range v.Items() {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, " ")
	}
	return v.Text()
}

func unescape(s string) string {
	return token.ReplaceAllStringFunc(s, func(tok string) string {
		switch tok {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		return tok
	})
}

func expandHome(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	home, err := homedir.Dir()
	if err != nil {
		return s
	}
	return homeRef.ReplaceAllString(s, "${1}"+escapeRepl(home)+"${2}")
}

func escapeRepl(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

func unresolved(cmd string, names []string, reason string) error {
	return ferrors.WrapError(ErrUnresolvedPlaceholder, ferrors.CategoryCommand,
		fmt.Sprintf("%s: %s", reason, strings.Join(names, ", "))).
		WithContext("command", cmd).
		Build()
}
