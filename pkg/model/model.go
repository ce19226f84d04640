// Package model defines the core domain types shared across the cross-project
// impact engine: symbol indices, usages, impacts, tasks and reports.
package model

import "sort"

// TaskStatus is the lifecycle state of an AnalysisTask.
type TaskStatus string

// Task lifecycle states.
const (
	TaskPending    TaskStatus = "PENDING"
	TaskProcessing TaskStatus = "PROCESSING"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
)

// ImpactType discriminates the kind of cross-repo reference an Impact
// record describes. Go has no native sum types, so Impact is a single
// struct carrying this discriminator rather than ClassRef | ApiCall | RpcRef.
type ImpactType string

// Impact kinds.
const (
	ImpactClassReference ImpactType = "class_reference"
	ImpactAPICall        ImpactType = "api_call"
	ImpactRPCReference   ImpactType = "rpc_reference"
)

// RPCKind identifies the dependency-injection idiom behind an RPC reference.
type RPCKind string

// Recognized RPC/DI kinds.
const (
	RPCKindDubbo    RPCKind = "dubbo"
	RPCKindSpringDI RPCKind = "spring_di"
)

// RPCMarkerKind identifies why a class was recorded in a SymbolIndex's
// RPCMarkers: it exposes RPC-style entry points, as either a Feign client
// interface or a Dubbo service implementation.
type RPCMarkerKind string

// Recognized RPC marker kinds.
const (
	MarkerFeignClient  RPCMarkerKind = "feign_client"
	MarkerDubboService RPCMarkerKind = "dubbo_service"
)

// ProjectRelation is a configuration row describing one main→related repo
// pairing. The core reads it at task start; it is otherwise owned by the
// external configuration surface.
type ProjectRelation struct {
	MainName      string
	MainGitURL    string
	RelatedName   string
	RelatedGitURL string
	RelatedBranch string
	Active        bool
}

// DefaultRelatedBranch is used when a ProjectRelation omits RelatedBranch.
const DefaultRelatedBranch = "master"

// RelatedProject is one entry of AnalysisTask.RelatedProjects: the minimal
// shape the materializer needs to clone or fast-forward a repo.
type RelatedProject struct {
	Name   string
	GitURL string
	Branch string
}

// LogEntry is one line of an AnalysisTask's append-only log.
type LogEntry struct {
	UnixNano int64
	Level    string
	Message  string
}

// AnalysisTask is a single end-to-end run of the impact engine.
type AnalysisTask struct {
	ID                  string
	MainGitURL          string
	TargetBranch        string
	BaseCommit          string
	TargetCommit        string
	EnableCrossProject  bool
	RelatedProjects     []RelatedProject
	Status              TaskStatus
	Log                 []LogEntry
	DegradedProjects    []string
	FailureReason       string
}

// AppendLog records one entry to the task's in-memory log mirror. The
// authoritative log stream is the persistence store; this slice exists so
// callers without a store (tests, the CLI) can still observe it.
func (t *AnalysisTask) AppendLog(level, message string, unixNano int64) {
	t.Log = append(t.Log, LogEntry{UnixNano: unixNano, Level: level, Message: message})
}

// ValidationState records how an AnalysisReport's LLM reply was obtained.
type ValidationState string

// Reply validation outcomes.
const (
	ValidationOK      ValidationState = "ok"
	ValidationRetried ValidationState = "retried"
	ValidationFailed  ValidationState = "failed"
)

// AnalysisReport is produced once per changed file.
type AnalysisReport struct {
	TaskID                string
	ProjectName           string
	FileName              string
	DiffContent           string
	RiskLevel             string
	ChangeIntent          string
	DownstreamDependency  []Impact
	CrossServiceImpact    []Impact
	FunctionalImpact      string
	TestStrategy          []string
	SourceProject         string // "main" or a related project name
	ValidationState       ValidationState
}

// ClassEntry is one class_map value: the file it was declared in, plus the
// line of its primary type declaration.
type ClassEntry struct {
	File string
	Line int
}

// APIEntry is one api_map value.
type APIEntry struct {
	File string
	Line int
	Verb string // HTTP verb, or "REQUEST" when unspecified
}

// RPCEntry is one rpc_map value.
type RPCEntry struct {
	File string
	Line int
	Kind RPCKind
}

// SymbolIndex is the per-repo output of the Symbol Indexer (C1).
type SymbolIndex struct {
	RepoRoot     string
	CommitHash   string
	ClassMap     map[string]ClassEntry   // FQN -> entry
	SimpleNames  map[string][]string     // simple class name -> FQNs sharing it
	APIMap       map[string]APIEntry     // route -> entry
	RPCMap       map[string]RPCEntry     // FQN -> entry
	FilesScanned []string
	// RPCMarkers records which FQNs in this index are Feign clients or Dubbo
	// services, so C3 step 2(b)/(c) can classify a changed symbol without
	// re-parsing. Populated for every built index; C3 consults the main
	// repo's.
	RPCMarkers map[string]RPCMarkerKind
}

// NewSymbolIndex returns an empty, ready-to-populate index for repoRoot at
// commitHash.
func NewSymbolIndex(repoRoot, commitHash string) *SymbolIndex {
	return &SymbolIndex{
		RepoRoot:    repoRoot,
		CommitHash:  commitHash,
		ClassMap:    make(map[string]ClassEntry),
		SimpleNames: make(map[string][]string),
		APIMap:      make(map[string]APIEntry),
		RPCMap:      make(map[string]RPCEntry),
		RPCMarkers:  make(map[string]RPCMarkerKind),
	}
}

// AddClass records FQN -> entry and maintains the simple-name index,
// preserving duplicate simple-name classes across packages.
func (s *SymbolIndex) AddClass(fqn string, entry ClassEntry) {
	s.ClassMap[fqn] = entry

	simple := SimpleName(fqn)
	for _, existing := range s.SimpleNames[simple] {
		if existing == fqn {
			return
		}
	}

	s.SimpleNames[simple] = append(s.SimpleNames[simple], fqn)
}

// RPCMarkerOf reports whether fqn is known (from this index's main-repo
// scan) to be a Feign client or Dubbo service, and if so which marker kind.
func (s *SymbolIndex) RPCMarkerOf(fqn string) (RPCMarkerKind, bool) {
	kind, ok := s.RPCMarkers[fqn]
	return kind, ok
}

// SimpleName returns the trailing identifier of a fully qualified name.
func SimpleName(fqn string) string {
	for i := len(fqn) - 1; i >= 0; i-- {
		if fqn[i] == '.' {
			return fqn[i+1:]
		}
	}

	return fqn
}

// Usage is one reference site found by the Usage Tracer (C2).
type Usage struct {
	Path    string
	Line    int
	Snippet string
	Service string
	Kind    string // "reference" or "injection"
}

// APICall is one client call site found by find_api_callers.
type APICall struct {
	Path    string
	Line    int
	Snippet string
	Service string
	Route   string
}

// Snippet is the structured ±K-line context window around a cited line;
// the structured form is canonical and Flatten derives the string form
// from it.
type Snippet struct {
	TargetLine   int
	TargetCode   string
	ContextBefore []string
	ContextAfter  []string
}

// Flatten renders the structured snippet as a single string, for
// UI-legacy consumers that expect a flattened form.
func (s Snippet) Flatten() string {
	lines := make([]string, 0, len(s.ContextBefore)+1+len(s.ContextAfter))
	lines = append(lines, s.ContextBefore...)
	lines = append(lines, s.TargetCode)
	lines = append(lines, s.ContextAfter...)

	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}

		out += l
	}

	return out
}

// Impact is the unit produced by the Multi-Project Tracer (C3).
type Impact struct {
	Project string
	Type    ImpactType
	File    string
	Line    int
	Snippet string
	Detail  string
	API     string // present only when Type == ImpactAPICall
}

// SortImpacts orders impacts by (project, file, line) ascending, matching
// P-GroupOrder.
func SortImpacts(impacts []Impact) {
	sort.SliceStable(impacts, func(i, j int) bool {
		a, b := impacts[i], impacts[j]
		if a.Project != b.Project {
			return a.Project < b.Project
		}

		if a.File != b.File {
			return a.File < b.File
		}

		return a.Line < b.Line
	})
}
