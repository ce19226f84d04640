// Package crossproject composes one indexer/tracer per scan root and,
// given a changed FQN, produces the grouped list of cross-repository
// impacts, always excluding the main repo.
package crossproject

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/zlbkkk/cloudimpact/pkg/model"
	"github.com/zlbkkk/cloudimpact/pkg/usage"
)

// State is the tracer's lifecycle state:
// NEW --init-indices--> READY --query--> READY
//
//	\--cache_miss--> BUILDING --ok--> READY
//	                         \--err--> DEGRADED (skip that repo, keep others)
type State string

// Tracer states.
const (
	StateNew       State = "NEW"
	StateReady     State = "READY"
	StateBuilding  State = "BUILDING"
	StateDegraded  State = "DEGRADED"
)

// IndexProvider resolves or builds the SymbolIndex for a scan root,
// consulting the Index Cache (C7). Implementations typically wrap
// pkg/indexcache.Store.GetOrBuild.
type IndexProvider interface {
	GetOrBuild(ctx context.Context, repoRoot string) (*model.SymbolIndex, error)
}

// Tracer composes N indexers/tracers, one per scan root; index 0 is always
// the main repo.
type Tracer struct {
	roots    []string
	provider IndexProvider
	logger   *slog.Logger

	state            State
	indices          map[string]*model.SymbolIndex
	degradedProjects []string
}

// New constructs a Tracer over scanRoots, where scanRoots[0] is the main
// repo. The tracer starts in state NEW; indices are built lazily on first
// query, matching the state diagram's init-indices transition happening at
// query time rather than construction time (no behavioral difference to a
// caller that queries immediately after construction).
func New(scanRoots []string, provider IndexProvider, logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracer{
		roots:    scanRoots,
		provider: provider,
		logger:   logger,
		state:    StateNew,
		indices:  make(map[string]*model.SymbolIndex),
	}
}

// State returns the tracer's current lifecycle state.
func (t *Tracer) State() State {
	return t.state
}

// DegradedProjects lists the basenames of related repos whose index failed
// to build and were excluded from the scan.
func (t *Tracer) DegradedProjects() []string {
	return t.degradedProjects
}

func (t *Tracer) mainRoot() string {
	if len(t.roots) == 0 {
		return ""
	}

	return t.roots[0]
}

func (t *Tracer) mainBasename() string {
	return filepath.Base(t.mainRoot())
}

// FindCrossProjectImpacts finds every cross-repository reference to fqn
// across the tracer's related scan roots. A tracer built over a single
// root (main only) trivially returns []; a total failure across every
// related root is never fatal and also yields [].
func (t *Tracer) FindCrossProjectImpacts(ctx context.Context, fqn string, changedMethods []string) ([]model.Impact, error) {
	if len(t.roots) <= 1 {
		t.state = StateReady

		return nil, nil
	}

	mainIdx, mainErr := t.getIndex(ctx, t.mainRoot())
	if mainErr != nil {
		t.logger.Warn("crossproject: main index build failed, impacts limited to rpc/api heuristics", "error", mainErr)
	}

	var rpcMarker model.RPCMarkerKind

	var hasMarker bool

	if mainIdx != nil {
		rpcMarker, hasMarker = mainIdx.RPCMarkerOf(fqn)
	}

	var routes []string

	if hasMarker {
		routes = routesForFQN(mainIdx, fqn, changedMethods)
	}

	var impacts []model.Impact

	for _, root := range t.roots[1:] {
		related := filepath.Base(root)
		if related == t.mainBasename() {
			// A related root sharing the main repo's basename is never
			// reported; skip it outright.
			continue
		}

		t.state = StateBuilding

		idx, err := t.getIndex(ctx, root)
		if err != nil {
			t.logger.Warn("crossproject: index build failed, skipping repo", "repo", related, "error", err)
			t.degradedProjects = append(t.degradedProjects, related)
			t.state = StateDegraded

			continue
		}

		t.state = StateReady

		impacts = append(impacts, classReferenceImpacts(idx, related, fqn)...)

		if hasMarker {
			impacts = append(impacts, apiCallImpacts(idx, related, routes)...)
		}

		if hasMarker && rpcMarker == model.MarkerDubboService {
			impacts = append(impacts, rpcReferenceImpacts(idx, related, fqn)...)
		}
	}

	filtered := impacts[:0]

	for _, imp := range impacts {
		if imp.Project == t.mainBasename() {
			continue
		}

		filtered = append(filtered, imp)
	}

	model.SortImpacts(filtered)

	return filtered, nil
}

func (t *Tracer) getIndex(ctx context.Context, root string) (*model.SymbolIndex, error) {
	if idx, ok := t.indices[root]; ok {
		return idx, nil
	}

	idx, err := t.provider.GetOrBuild(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("build index for %s: %w", root, err)
	}

	t.indices[root] = idx

	return idx, nil
}

func classReferenceImpacts(idx *model.SymbolIndex, project, fqn string) []model.Impact {
	usages, err := usage.FindUsages(idx, fqn)
	if err != nil {
		return nil
	}

	impacts := make([]model.Impact, 0, len(usages))

	for _, u := range usages {
		impacts = append(impacts, model.Impact{
			Project: project,
			Type:    model.ImpactClassReference,
			File:    u.Path,
			Line:    u.Line,
			Snippet: u.Snippet,
			Detail:  fmt.Sprintf("%s references %s", u.Service, fqn),
		})
	}

	return impacts
}

func apiCallImpacts(idx *model.SymbolIndex, project string, routes []string) []model.Impact {
	var impacts []model.Impact

	for _, route := range routes {
		calls, err := usage.FindAPICallers(idx, route)
		if err != nil {
			continue
		}

		for _, c := range calls {
			impacts = append(impacts, model.Impact{
				Project: project,
				Type:    model.ImpactAPICall,
				File:    c.Path,
				Line:    c.Line,
				Snippet: c.Snippet,
				Detail:  fmt.Sprintf("%s calls %s", c.Service, route),
				API:     route,
			})
		}
	}

	return impacts
}

// rpcReferenceImpacts reports @DubboReference injection sites whose field
// type matches fqn's simple name. Spring-DI fields (RPCKindSpringDI) are
// not Dubbo RPC references and are excluded.
func rpcReferenceImpacts(idx *model.SymbolIndex, project, fqn string) []model.Impact {
	simple := model.SimpleName(fqn)

	var impacts []model.Impact

	for rpcFQN, entry := range idx.RPCMap {
		if entry.Kind != model.RPCKindDubbo {
			continue
		}

		if model.SimpleName(rpcFQN) != simple {
			continue
		}

		impacts = append(impacts, model.Impact{
			Project: project,
			Type:    model.ImpactRPCReference,
			File:    entry.File,
			Line:    entry.Line,
			Snippet: fmt.Sprintf("%s field of type %s", entry.Kind, simple),
			Detail:  fmt.Sprintf("dubbo reference injection of %s", fqn),
		})
	}

	return impacts
}

// routesForFQN looks up every api_map route declared in fqn's file. The
// index does not track which method owns which route, so when
// changedMethods is non-empty this still returns every route in the file
// rather than a precise per-method subset.
func routesForFQN(mainIdx *model.SymbolIndex, fqn string, changedMethods []string) []string {
	entry, ok := mainIdx.ClassMap[fqn]
	if !ok {
		return nil
	}

	var routes []string

	for route, api := range mainIdx.APIMap {
		if api.File == entry.File {
			routes = append(routes, route)
		}
	}

	return routes
}
