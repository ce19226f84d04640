// Package javaidx implements the Symbol Indexer (C1): a shallow,
// regex-and-lexer Java parser that builds per-repository symbol indices
// without a real grammar, per the repo's design note that a full Java
// grammar is deliberately out of scope.
package javaidx

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zlbkkk/cloudimpact/pkg/model"
)

// Options configures a Build call.
type Options struct {
	SkipGlobs []string
	Logger    *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return slog.Default()
}

func (o Options) skipGlobs() []string {
	if o.SkipGlobs != nil {
		return o.SkipGlobs
	}

	return DefaultSkipGlobs
}

// Build walks repoRoot, parses every non-skipped .java file, and returns
// the resulting SymbolIndex. commitHash is stamped onto the index as-is
// (the caller, typically pkg/gitutil, resolves HEAD). A file that fails to
// parse is logged and skipped; no file error is fatal.
func Build(repoRoot, commitHash string, opts Options) (*model.SymbolIndex, error) {
	idx := model.NewSymbolIndex(repoRoot, commitHash)
	log := opts.logger()
	globs := opts.skipGlobs()

	walkErr := filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}

		rel, relErr := filepath.Rel(repoRoot, path)
		if relErr != nil {
			return nil
		}

		if rel != "." && MatchesAnyGlob(rel, globs) {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() || !strings.HasSuffix(path, ".java") {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			log.Warn("javaidx: read failed", "file", rel, "error", readErr)

			return nil
		}

		parseErr := parseFileInto(idx, rel, string(content))
		if parseErr != nil {
			log.Warn("javaidx: parse failed", "file", rel, "error", parseErr)

			return nil
		}

		idx.FilesScanned = append(idx.FilesScanned, rel)

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrParse, repoRoot, walkErr)
	}

	return idx, nil
}

// FileParse is the output of BuildFile: the single file's declared FQN
// and its method body line ranges, used by the orchestrator to compute
// changed_methods by intersecting diff hunks with these ranges.
type FileParse struct {
	FQN     string
	Methods []MethodRange
}

// MethodRange is one method's declared name and its body's line span
// (both 1-indexed, inclusive).
type MethodRange struct {
	Name      string
	StartLine int
	EndLine   int
}

// BuildFile parses a single file's content without touching the
// filesystem, for the orchestrator's changed-file FQN/method extraction.
// relPath is used only for error messages.
func BuildFile(relPath, content string) (*FileParse, error) {
	idx := model.NewSymbolIndex("", "")

	err := parseFileInto(idx, relPath, content)
	if err != nil {
		return nil, err
	}

	fp := &FileParse{}

	for fqn := range idx.ClassMap {
		fp.FQN = fqn

		break
	}

	fp.Methods = parseMethodRanges(content)

	return fp, nil
}

// parseFileInto applies the indexer's heuristics to one file's content,
// recording classes, API routes, RPC injection sites, and imports into
// idx.
func parseFileInto(idx *model.SymbolIndex, relPath, content string) error {
	lines := strings.Split(content, "\n")

	var (
		pkgName        string
		primaryFQN     string
		primaryFound   bool
		basePath       string
		classAnnots    []string
		classDeclared  bool
		importsBySimp  = map[string]string{}
		wildcardPkgs   []string
	)

	scanner := NewLineScanner()

	for i, raw := range lines {
		lineNo := i + 1
		depthBefore := scanner.Depth()
		cleaned := scanner.Scan(raw)

		if pkgName == "" {
			if m := packageRe.FindStringSubmatch(raw); m != nil {
				pkgName = m[1]
			}
		}

		if m := importRe.FindStringSubmatch(raw); m != nil {
			path := m[2]
			if m[3] != "" {
				wildcardPkgs = append(wildcardPkgs, path)
			} else {
				importsBySimp[model.SimpleName(path)] = path
			}
		}

		tokens := Tokenize(cleaned)
		annots := annotationNamesOn(tokens)

		if len(annots) > 0 {
			classAnnots = append(classAnnots, annots...)
		}

		if !classDeclared && depthBefore == 0 {
			if m := classDeclRe.FindStringSubmatch(cleaned); m != nil {
				name := m[2]
				if pkgName != "" {
					primaryFQN = pkgName + "." + name
				} else {
					primaryFQN = name
				}

				primaryFound = true
				classDeclared = true

				idx.AddClass(primaryFQN, model.ClassEntry{File: relPath, Line: lineNo})

				if containsAnnotation(classAnnots, "@RestController") || containsAnnotation(classAnnots, "@Controller") {
					// base path comes from a @RequestMapping among the
					// class-level annotations collected so far; take the
					// closest preceding occurrence.
					for j := 0; j < i; j++ {
						if strings.Contains(lines[j], "@RequestMapping") {
							if p, ok := extractPathValue(lines[j]); ok {
								basePath = p
							}
						}
					}
				}

				if containsAnnotation(classAnnots, "@FeignClient") {
					idx.RPCMarkers[primaryFQN] = model.MarkerFeignClient
				}

				if containsAnnotation(classAnnots, "@DubboService") {
					idx.RPCMarkers[primaryFQN] = model.MarkerDubboService
				}

				classAnnots = nil

				continue
			}
		}

		if classDeclared {
			if name, ok := anyHTTPMappingAnnotation(annots); ok {
				methodPath, _ := extractPathValue(raw)
				route := joinPaths(basePath, methodPath)
				verb := httpMethodVerbs[name]

				idx.APIMap[route] = model.APIEntry{File: relPath, Line: lineNo, Verb: verb}
			}

			if _, kind, ok := anyRPCInjectionAnnotation(annots); ok {
				fieldType, _, fieldOK := fieldTypeOnFollowingLine(lines, i)
				if fieldOK {
					fqn := resolveFQN(fieldType, pkgName, importsBySimp, wildcardPkgs, primaryFQN)
					idx.RPCMap[fqn] = model.RPCEntry{File: relPath, Line: lineNo, Kind: kind}
				}
			}
		}

		if !classDeclared && len(annots) == 0 && strings.TrimSpace(cleaned) != "" {
			classAnnots = nil
		}
	}

	if !primaryFound {
		return fmt.Errorf("%w: no class/interface/enum/record declaration found in %s", model.ErrParse, relPath)
	}

	return nil
}

// fieldTypeOnFollowingLine implements the "following non-blank line
// declares a field of type T" rule: starting at the
// annotation's own line, scan forward (including the annotation's own
// line, for same-line field+annotation style) for the first line matching
// a field declaration.
func fieldTypeOnFollowingLine(lines []string, annotationLineIdx int) (fieldType, fieldName string, ok bool) {
	for i := annotationLineIdx; i < len(lines) && i < annotationLineIdx+3; i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := fieldDeclRe.FindStringSubmatch(line); m != nil {
			return m[1], m[2], true
		}

		if i > annotationLineIdx && !strings.Contains(line, "@") {
			// First non-blank, non-annotation line that isn't a field
			// declaration: stop looking.
			return "", "", false
		}
	}

	return "", "", false
}

// resolveFQN determines the fully qualified name of a referenced type
// using the file's own package, explicit imports, and wildcard imports,
// falling back to same-package assumption.
func resolveFQN(typeName, pkgName string, importsBySimp map[string]string, wildcardPkgs []string, primaryFQN string) string {
	if strings.Contains(typeName, ".") {
		return typeName
	}

	if fqn, ok := importsBySimp[typeName]; ok {
		return fqn
	}

	if typeName == model.SimpleName(primaryFQN) && primaryFQN != "" {
		return primaryFQN
	}

	if len(wildcardPkgs) > 0 {
		return wildcardPkgs[0] + "." + typeName
	}

	if pkgName != "" {
		return pkgName + "." + typeName
	}

	return typeName
}

// parseMethodRanges recovers single-line-signature method declarations and
// their body line spans by tracking brace depth from the signature's
// opening brace to its matching close. Multi-line signatures are not
// recognized; this matches the indexer's other deliberately shallow rules.
func parseMethodRanges(content string) []MethodRange {
	lines := strings.Split(content, "\n")
	scanner := NewLineScanner()

	var ranges []MethodRange

	i := 0
	for i < len(lines) {
		lineNo := i + 1
		cleaned := scanner.Scan(lines[i])

		m := methodStartRe.FindStringSubmatch(cleaned)
		if m == nil {
			i++

			continue
		}

		startDepth := scanner.Depth() - 1
		endLine := lineNo

		j := i + 1
		for j < len(lines) {
			scanner.Scan(lines[j])

			endLine = j + 1

			if scanner.Depth() <= startDepth {
				break
			}

			j++
		}

		ranges = append(ranges, MethodRange{Name: m[1], StartLine: lineNo, EndLine: endLine})

		i = j + 1
	}

	return ranges
}
