// Package usage implements the Usage Tracer (C2): given a symbol index and
// a fully-qualified class name or API route, it finds reference sites
// within that one repository.
package usage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/zlbkkk/cloudimpact/pkg/model"
)

var (
	packageRe = regexp.MustCompile(`^\s*package\s+([\w.]+)\s*;`)
	importRe  = regexp.MustCompile(`^\s*import\s+(static\s+)?([\w.]+?)(\.\*)?\s*;`)

	injectionAnnotationRe = regexp.MustCompile(`@(DubboReference|Reference|Autowired|Resource)\b`)

	restTemplateRe = regexp.MustCompile(`RestTemplate\s*\.\s*(getForObject|postForObject|exchange)\s*\(`)
	webClientURIRe = regexp.MustCompile(`WebClient[\w.]*\.uri\s*\(`)
	feignClientRe  = regexp.MustCompile(`@FeignClient\b`)
)

// FindUsages scans every file recorded in idx.FilesScanned for a
// reference to fqn, applying rules
// U1-U4, and returns at most one Usage per (path, line).
func FindUsages(idx *model.SymbolIndex, fqn string) ([]model.Usage, error) {
	simple := model.SimpleName(fqn)
	pkg := strings.TrimSuffix(fqn, "."+simple)

	var usages []model.Usage

	for _, relPath := range idx.FilesScanned {
		fileUsages, err := scanFileForUsages(idx.RepoRoot, relPath, fqn, pkg, simple)
		if err != nil {
			// A malformed file contributes zero Usages; not an error to
			// the caller.
			continue
		}

		usages = append(usages, fileUsages...)
	}

	sort.SliceStable(usages, func(i, j int) bool {
		if usages[i].Path != usages[j].Path {
			return usages[i].Path < usages[j].Path
		}

		return usages[i].Line < usages[j].Line
	})

	return usages, nil
}

func scanFileForUsages(repoRoot, relPath, fqn, pkg, simple string) ([]model.Usage, error) {
	content, err := os.ReadFile(filepath.Join(repoRoot, relPath))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}

	lines := strings.Split(string(content), "\n")

	var (
		hasExplicitImport bool
		hasWildcardImport bool
		explicitOtherSame bool // another class with the same simple name is explicitly imported
		filePkg           string
	)

	for _, raw := range lines {
		if m := packageRe.FindStringSubmatch(raw); m != nil {
			filePkg = m[1]

			continue
		}

		if m := importRe.FindStringSubmatch(raw); m != nil {
			path := m[2]
			if m[3] != "" {
				if path == pkg {
					hasWildcardImport = true
				}

				continue
			}

			if path == fqn {
				hasExplicitImport = true
			} else if model.SimpleName(path) == simple {
				explicitOtherSame = true
			}
		}
	}

	samePackage := filePkg == pkg

	applicable := hasExplicitImport || samePackage || (hasWildcardImport && !explicitOtherSame)
	if !applicable {
		return nil, nil
	}

	seen := map[int]bool{}

	var usages []model.Usage

	service := serviceLabel(relPath)

	for i, raw := range lines {
		lineNo := i + 1

		if injectionAnnotationRe.MatchString(raw) {
			fieldType, ok := fieldTypeOnNextNonBlank(lines, i)
			if ok && fieldType == simple && !seen[lineNo] {
				seen[lineNo] = true
				usages = append(usages, model.Usage{
					Path: relPath, Line: lineNo, Snippet: strings.TrimSpace(raw),
					Service: service, Kind: "injection",
				})
			}

			continue
		}

		if isTypeTokenReference(raw, simple) && !seen[lineNo] {
			seen[lineNo] = true
			usages = append(usages, model.Usage{
				Path: relPath, Line: lineNo, Snippet: strings.TrimSpace(raw),
				Service: service, Kind: "reference",
			})
		}
	}

	return usages, nil
}

var fieldDeclRe = regexp.MustCompile(`^\s*(?:@\w+(?:\([^)]*\))?\s*)*(?:private|public|protected)?\s*(?:static\s+)?(?:final\s+)?([A-Za-z_][\w.]*)(?:<[^>]*>)?(?:\[\])?\s+([A-Za-z_]\w*)\s*[=;]`)

func fieldTypeOnNextNonBlank(lines []string, annotationLineIdx int) (string, bool) {
	for i := annotationLineIdx; i < len(lines) && i < annotationLineIdx+3; i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := fieldDeclRe.FindStringSubmatch(line); m != nil {
			return m[1], true
		}

		if i > annotationLineIdx && !strings.Contains(line, "@") {
			return "", false
		}
	}

	return "", false
}

// typeTokenRe recognizes simpleName used as a field declaration, parameter,
// `new` expression, `implements`/`extends` clause, cast, or generic
// argument -- the "type token" contexts.
func typeTokenRe(simple string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(simple)

	return regexp.MustCompile(
		`(?:\bnew\s+` + escaped + `\b)` +
			`|(?:\bimplements\b[^{]*\b` + escaped + `\b)` +
			`|(?:\bextends\b[^{]*\b` + escaped + `\b)` +
			`|(?:\(\s*` + escaped + `\s*\))` + // cast
			`|(?:<[^>]*\b` + escaped + `\b[^>]*>)` + // generic argument
			`|(?:\b` + escaped + `\s+[A-Za-z_]\w*\s*[,)=;])`, // field/parameter decl
	)
}

func isTypeTokenReference(line, simple string) bool {
	return typeTokenRe(simple).MatchString(line)
}

func serviceLabel(relPath string) string {
	slash := strings.IndexByte(relPath, '/')
	if slash < 0 {
		return relPath
	}

	return relPath[:slash]
}

// FindAPICallers scans every file for common client idioms invoking
// route, tolerating
// {var}-style path placeholders.
func FindAPICallers(idx *model.SymbolIndex, route string) ([]model.APICall, error) {
	routeRe := routeMatcher(route)

	var calls []model.APICall

	for _, relPath := range idx.FilesScanned {
		content, err := os.ReadFile(filepath.Join(idx.RepoRoot, relPath))
		if err != nil {
			continue
		}

		lines := strings.Split(string(content), "\n")
		service := serviceLabel(relPath)

		for i, raw := range lines {
			if !routeRe.MatchString(raw) {
				continue
			}

			if restTemplateRe.MatchString(raw) || webClientURIRe.MatchString(raw) || feignClientCallLine(lines, i) {
				calls = append(calls, model.APICall{
					Path: relPath, Line: i + 1, Snippet: strings.TrimSpace(raw),
					Service: service, Route: route,
				})
			}
		}
	}

	sort.SliceStable(calls, func(i, j int) bool {
		if calls[i].Path != calls[j].Path {
			return calls[i].Path < calls[j].Path
		}

		return calls[i].Line < calls[j].Line
	})

	return calls, nil
}

// feignClientCallLine reports whether line i sits within a few lines of a
// @FeignClient-annotated interface declaration, a loose proxy for "a
// @FeignClient method annotated with the matching route".
func feignClientCallLine(lines []string, i int) bool {
	for j := i; j >= 0 && j > i-8; j-- {
		if feignClientRe.MatchString(lines[j]) {
			return true
		}
	}

	return false
}

// routeMatcher compiles route into a regex tolerant of {placeholder}
// segments: matching is literal with placeholder equivalence
// `{id}` ≡ `{[^}]+}`.
func routeMatcher(route string) *regexp.Regexp {
	placeholderRe := regexp.MustCompile(`\{[^}]+\}`)

	var b strings.Builder

	last := 0

	for _, loc := range placeholderRe.FindAllStringIndex(route, -1) {
		b.WriteString(regexp.QuoteMeta(route[last:loc[0]]))
		b.WriteString(`\{[^}]+\}`)
		last = loc[1]
	}

	b.WriteString(regexp.QuoteMeta(route[last:]))

	return regexp.MustCompile(b.String())
}
