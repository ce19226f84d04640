package javaidx

import (
	"regexp"
	"strings"

	"github.com/zlbkkk/cloudimpact/pkg/model"
)

var (
	packageRe = regexp.MustCompile(`^\s*package\s+([\w.]+)\s*;`)
	importRe  = regexp.MustCompile(`^\s*import\s+(static\s+)?([\w.]+?)(\.\*)?\s*;`)

	// classDeclRe finds "class|interface|enum|record Name" anywhere on a
	// (comment/string-stripped) line.
	classDeclRe = regexp.MustCompile(`\b(class|interface|enum|record)\s+([A-Za-z_]\w*)`)

	// firstStringLiteralRe recovers the first quoted argument of an
	// annotation invocation, e.g. @RequestMapping("/api/x") or
	// @RequestMapping(value = "/api/x", method = RequestMethod.GET).
	// Scanned lines have literal contents blanked by LineScanner, so this
	// regex is applied to the *raw* source line instead.
	firstStringLiteralRe = regexp.MustCompile(`"([^"]*)"`)

	// fieldDeclRe matches a field declaration, tolerating leading inline
	// annotations and modifiers, and capturing (type, name).
	fieldDeclRe = regexp.MustCompile(
		`^\s*(?:@\w+(?:\([^)]*\))?\s*)*(?:private|public|protected)?\s*(?:static\s+)?(?:final\s+)?` +
			`([A-Za-z_][\w.]*)(?:<[^>]*>)?(?:\[\])?\s+([A-Za-z_]\w*)\s*[=;]`)

	// methodStartRe matches a single-line method signature ending in `{`.
	methodStartRe = regexp.MustCompile(
		`^\s*(?:@\w+(?:\([^)]*\))?\s*)*(?:public|private|protected)?\s*(?:static\s+)?(?:final\s+)?` +
			`(?:synchronized\s+)?(?:<[^>]*>\s*)?[\w.\[\]<>,\s]+?\s+(\w+)\s*\([^;{}]*\)\s*` +
			`(?:throws\s+[\w.,\s]+)?\s*\{\s*$`)
)

// httpMethodVerbs maps a mapping annotation's simple name to its derived
// HTTP verb.
var httpMethodVerbs = map[string]string{
	"@RequestMapping": "REQUEST",
	"@GetMapping":     "GET",
	"@PostMapping":    "POST",
	"@PutMapping":     "PUT",
	"@DeleteMapping":  "DELETE",
	"@PatchMapping":   "PATCH",
}

// rpcInjectionAnnotations maps an injection annotation to its RPCKind.
var rpcInjectionAnnotations = map[string]model.RPCKind{
	"@DubboReference": model.RPCKindDubbo,
	"@Reference":      model.RPCKindDubbo,
	"@Autowired":      model.RPCKindSpringDI,
	"@Resource":       model.RPCKindSpringDI,
}

// extractPathValue recovers the first string literal argument from a raw
// (unscanned) annotation line, e.g. the "/api/x" in @RequestMapping("/api/x").
func extractPathValue(rawLine string) (string, bool) {
	m := firstStringLiteralRe.FindStringSubmatch(rawLine)
	if m == nil {
		return "", false
	}

	return m[1], true
}

// joinPaths concatenates a base path and a method path, collapsing
// duplicate slashes.
func joinPaths(base, path string) string {
	if base == "" {
		return normalizeSlashes(path)
	}

	if path == "" {
		return normalizeSlashes(base)
	}

	return normalizeSlashes(base + "/" + path)
}

func normalizeSlashes(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}

	if p == "" {
		return "/"
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return p
}

// annotationNamesOn returns the @-prefixed annotation names tokenized from
// a scanned (comment/string-stripped) line.
func annotationNamesOn(tokens []Token) []string {
	var names []string

	for _, tok := range tokens {
		if tok.Kind == TokAnnotation {
			names = append(names, tok.Text)
		}
	}

	return names
}

func containsAnnotation(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}

	return false
}

func anyHTTPMappingAnnotation(names []string) (string, bool) {
	for _, n := range names {
		if _, ok := httpMethodVerbs[n]; ok {
			return n, true
		}
	}

	return "", false
}

func anyRPCInjectionAnnotation(names []string) (string, model.RPCKind, bool) {
	for _, n := range names {
		if kind, ok := rpcInjectionAnnotations[n]; ok {
			return n, kind, true
		}
	}

	return "", "", false
}
