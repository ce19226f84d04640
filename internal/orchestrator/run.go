// Package orchestrator implements the analysis orchestrator: the
// end-to-end driver that turns one AnalysisTask into a per-file sequence
// of AnalysisReports, wiring together the symbol indexer, usage tracer,
// multi-project tracer, repo materializer and prompt assembler.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	noopTrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/zlbkkk/cloudimpact/internal/config"
	"github.com/zlbkkk/cloudimpact/internal/observability"
	"github.com/zlbkkk/cloudimpact/pkg/crossproject"
	"github.com/zlbkkk/cloudimpact/pkg/gitutil"
	"github.com/zlbkkk/cloudimpact/pkg/javaidx"
	"github.com/zlbkkk/cloudimpact/pkg/materializer"
	"github.com/zlbkkk/cloudimpact/pkg/model"
	"github.com/zlbkkk/cloudimpact/pkg/promptasm"
	"github.com/zlbkkk/cloudimpact/pkg/usage"
)

// Dependencies bundles everything Run needs beyond the task itself.
type Dependencies struct {
	Config        config.Config
	Store         TaskStore
	IndexProvider crossproject.IndexProvider
	Runner        gitutil.Runner
	LLM           LLMClient
	Logger        *slog.Logger
	Tracer        trace.Tracer
	Metrics       *observability.AnalysisMetrics
}

// Orchestrator drives one or more AnalysisTasks to completion.
type Orchestrator struct {
	deps   Dependencies
	logger *slog.Logger
	tracer trace.Tracer
	tokens *promptasm.TokenCounter
}

// New builds an Orchestrator. It eagerly loads the token encoding used by
// every Run call, so a bad encoding name fails fast at startup rather than
// on the first file of the first task.
func New(deps Dependencies) (*Orchestrator, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = noopTrace.NewTracerProvider().Tracer("orchestrator")
	}

	tokens, err := promptasm.NewTokenCounter()
	if err != nil {
		return nil, err
	}

	return &Orchestrator{deps: deps, logger: logger, tracer: tracer, tokens: tokens}, nil
}

// Run drives task to completion: materialize the main repo, diff
// base..target, conditionally materialize related projects, then for each
// changed file compute in-repo and cross-project impacts, assemble and
// send a prompt, validate the reply (one retry), and persist a report.
// Run always returns nil on a handled failure -- the outcome is recorded
// on task.Status/task.FailureReason and via the TaskStore, not via the
// returned error, matching a long-running background task's contract. A
// non-nil error indicates the task could not even be saved.
func (o *Orchestrator) Run(ctx context.Context, task *model.AnalysisTask) error {
	started := time.Now()

	task.Status = model.TaskProcessing
	if err := o.deps.Store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("orchestrator: save task: %w", err)
	}

	_, filesAnalyzed, err := o.runTask(ctx, task)
	if err != nil {
		task.Status = model.TaskFailed
		task.FailureReason = err.Error()
		task.AppendLog("error", err.Error(), started.UnixNano())
	} else {
		task.Status = model.TaskCompleted
	}

	if saveErr := o.deps.Store.SaveTask(ctx, task); saveErr != nil {
		return fmt.Errorf("orchestrator: save task: %w", saveErr)
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordTaskCompletion(ctx, string(task.Status), time.Since(started).Seconds(), filesAnalyzed)

		for range task.DegradedProjects {
			o.deps.Metrics.RecordDegradedProject(ctx)
		}
	}

	return nil
}

func (o *Orchestrator) runTask(ctx context.Context, task *model.AnalysisTask) ([]model.AnalysisReport, int, error) {
	ctx, taskSpan := o.tracer.Start(ctx, "orchestrator.run_task", trace.WithAttributes(
		attribute.String("task.id", task.ID),
	))
	defer taskSpan.End()

	gitTimeout := time.Duration(o.deps.Config.Git.GitOpTimeoutSeconds) * time.Second
	runner := o.deps.Runner
	if runner == nil {
		runner = gitutil.NewSubprocessRunner()
	}

	mainDir := filepath.Join(o.deps.Config.Workspace, task.ID, "main")

	mainRepo := gitutil.Open(runner, mainDir, gitTimeout)

	materializeCtx, materializeSpan := o.tracer.Start(ctx, "orchestrator.materialize")
	err := materializeMain(materializeCtx, mainRepo, task)
	materializeSpan.End()

	if err != nil {
		return nil, 0, err
	}

	changedFiles, err := mainRepo.DiffNameOnly(ctx, task.BaseCommit, task.TargetCommit)
	if err != nil {
		return nil, 0, err
	}

	snippets := newSnippetSource()
	snippets.register("main", mainRepo)

	scanRoots := []string{mainRepo.Dir()}

	if task.EnableCrossProject && len(task.RelatedProjects) > 0 {
		result := materializer.Materialize(ctx, task.RelatedProjects, filepath.Join(o.deps.Config.Workspace, task.ID, "related"), materializer.Options{
			ParallelLimit:       o.deps.Config.Git.ParallelCloneLimit,
			GitOpTimeout:        gitTimeout,
			AllowBranchFallback: o.deps.Config.Git.AllowBranchFallback,
			Runner:              runner,
			Logger:              o.logger,
		})

		for _, fail := range result.Fail {
			task.AppendLog("warn", fmt.Sprintf("related project %s: %s", fail.Name, fail.Error), time.Now().UnixNano())
			task.DegradedProjects = append(task.DegradedProjects, fail.Name)
		}

		for _, ok := range result.OK {
			related := gitutil.Open(runner, ok.Path, gitTimeout)
			snippets.register(ok.Name, related)
			scanRoots = append(scanRoots, ok.Path)
		}
	}

	impactTracer := crossproject.New(scanRoots, o.deps.IndexProvider, o.logger)

	reports := make([]model.AnalysisReport, 0, len(changedFiles))

	for _, relPath := range changedFiles {
		if relPath == "" {
			continue
		}

		select {
		case <-ctx.Done():
			return reports, len(reports), fmt.Errorf("%w: %w", model.ErrCancel, ctx.Err())
		default:
		}

		report, err := o.analyzeFile(ctx, task, mainRepo, impactTracer, snippets, relPath)
		if err != nil {
			o.logger.Warn("orchestrator: skipping file after analysis error", "file", relPath, "error", err)

			continue
		}

		if err := o.deps.Store.SaveReport(ctx, report); err != nil {
			return reports, len(reports), fmt.Errorf("orchestrator: save report for %s: %w", relPath, err)
		}

		reports = append(reports, report)
	}

	for _, degraded := range impactTracer.DegradedProjects() {
		task.DegradedProjects = append(task.DegradedProjects, degraded)
	}

	if len(changedFiles) > 0 && len(reports) == 0 {
		return reports, 0, fmt.Errorf("%w: no changed file could be analyzed", model.ErrParse)
	}

	return reports, len(reports), nil
}

// materializeMain clones or fast-forwards the main repo then pins the
// worktree to task.TargetCommit.
func materializeMain(ctx context.Context, repo *gitutil.Repo, task *model.AnalysisTask) error {
	if repo.Exists() {
		if err := repo.FetchAll(ctx); err != nil {
			return err
		}
	} else if err := repo.Clone(ctx, task.MainGitURL, task.TargetBranch); err != nil {
		return err
	}

	if err := repo.Checkout(ctx, task.TargetCommit); err != nil {
		return err
	}

	return repo.ResetHard(ctx, task.TargetCommit)
}

// analyzeFile computes in-repo and cross-project impacts for a single
// changed file, assembles and sends a prompt, validates the reply, and
// returns the resulting report.
func (o *Orchestrator) analyzeFile(ctx context.Context, task *model.AnalysisTask, mainRepo *gitutil.Repo,
	impactTracer *crossproject.Tracer, snippets *snippetSource, relPath string,
) (model.AnalysisReport, error) {
	ctx, fileSpan := o.tracer.Start(ctx, "orchestrator.analyze_file", trace.WithAttributes(
		attribute.String("file.path", relPath),
	))
	defer fileSpan.End()

	diff, err := mainRepo.FileDiff(ctx, task.BaseCommit, task.TargetCommit, relPath)
	if err != nil {
		return model.AnalysisReport{}, err
	}

	var (
		fqn              string
		changedMethods   []string
		downstreamUsages []model.Usage
	)

	if strings.HasSuffix(relPath, ".java") {
		postImage, showErr := mainRepo.ShowFile(ctx, task.TargetCommit, relPath)
		if showErr != nil {
			o.logger.Warn("orchestrator: post-image unavailable, file-level analysis only", "file", relPath, "error", showErr)
		} else {
			parse, parseErr := javaidx.BuildFile(relPath, postImage)
			if parseErr != nil {
				o.logger.Warn("orchestrator: java parse failed, file-level analysis only", "file", relPath, "error", parseErr)
			} else {
				fqn = parse.FQN

				methods, methodErr := ChangedMethods(relPath, postImage, diff)
				if methodErr != nil {
					o.logger.Warn("orchestrator: changed-method extraction failed", "file", relPath, "error", methodErr)
				} else {
					changedMethods = methods
				}
			}
		}
	}

	if fqn != "" {
		indexCtx, indexSpan := o.tracer.Start(ctx, "orchestrator.index")

		if mainIdx, idxErr := o.deps.IndexProvider.GetOrBuild(indexCtx, mainRepo.Dir()); idxErr != nil {
			o.logger.Warn("orchestrator: main index unavailable, downstream usages skipped", "file", relPath, "error", idxErr)
		} else if usages, usageErr := usage.FindUsages(mainIdx, fqn); usageErr == nil {
			downstreamUsages = usages
		}

		indexSpan.End()
	}

	var crossImpacts []model.Impact

	if fqn != "" {
		traceCtx, traceSpan := o.tracer.Start(ctx, "orchestrator.trace")

		impacts, impactErr := impactTracer.FindCrossProjectImpacts(traceCtx, fqn, changedMethods)
		if impactErr != nil {
			o.logger.Warn("orchestrator: cross-project tracing failed", "file", relPath, "error", impactErr)
		} else {
			crossImpacts = impacts
		}

		traceSpan.End()
	}

	downstreamImpacts := usagesToImpacts(downstreamUsages)

	_, promptSpan := o.tracer.Start(ctx, "orchestrator.prompt")

	k := o.deps.Config.Prompt.ContextLinesK

	promptCtx := promptasm.Context{
		Intent:        promptasm.ChangeIntent{FileName: relPath, Verb: detectVerb(diff)},
		UnifiedDiff:   diff,
		Downstream:    promptasm.GroupByCallsiteClass(downstreamUsages),
		CrossProject:  promptasm.GroupCrossProject(crossImpacts),
		Snippets:      buildSnippets(ctx, snippets, downstreamUsages, crossImpacts, k),
		ContextWindow: k,
	}

	promptCtx = o.tokens.Trim(promptCtx, o.deps.Config.Prompt.MaxTokens, o.logger)
	body := promptasm.BuildPrompt(promptCtx)

	promptSpan.End()

	llmCtx, llmSpan := o.tracer.Start(ctx, "orchestrator.llm")
	defer llmSpan.End()

	// One-retry-then-FAILED semantics: a transport error or a reply that
	// fails schema validation is retried exactly once (a validation retry
	// carries a clarifying turn); a failure after that one retry still
	// produces a report, carrying ValidationFailed rather than propagating
	// an error.
	state := model.ValidationOK

	reply, err := o.deps.LLM.Generate(llmCtx, promptasm.ToMessages(body))
	if err != nil {
		o.logger.Warn("orchestrator: llm transport failed, retrying", "file", relPath, "error", err)

		state = model.ValidationRetried
		reply, err = o.deps.LLM.Generate(llmCtx, promptasm.ToMessages(body))
	}

	if err != nil {
		o.logger.Warn("orchestrator: llm transport failed", "file", relPath, "error", err)

		report := promptasm.MergeReport(task.ID, "main", relPath, diff, nil, downstreamImpacts, crossImpacts, model.ValidationFailed)
		report.SourceProject = "main"

		return report, nil
	}

	fields, verr := promptasm.ValidateReply([]byte(reply))

	if verr != nil && state == model.ValidationRetried {
		o.logger.Warn("orchestrator: reply after transport retry failed validation", "file", relPath, "error", verr)

		report := promptasm.MergeReport(task.ID, "main", relPath, diff, nil, downstreamImpacts, crossImpacts, model.ValidationFailed)
		report.SourceProject = "main"

		return report, nil
	}

	if verr != nil {
		o.logger.Warn("orchestrator: reply failed validation, retrying", "file", relPath, "error", verr)

		retryReply, rerr := o.deps.LLM.Generate(llmCtx, promptasm.RetryMessages(body, verr.Error()))
		if rerr != nil {
			report := promptasm.MergeReport(task.ID, "main", relPath, diff, nil, downstreamImpacts, crossImpacts, model.ValidationFailed)
			report.SourceProject = "main"

			return report, nil
		}

		retryFields, rverr := promptasm.ValidateReply([]byte(retryReply))
		if rverr != nil {
			o.logger.Warn("orchestrator: retried reply still invalid", "file", relPath, "error", rverr)

			report := promptasm.MergeReport(task.ID, "main", relPath, diff, nil, downstreamImpacts, crossImpacts, model.ValidationFailed)
			report.SourceProject = "main"

			return report, nil
		}

		fields = retryFields
		state = model.ValidationRetried
	}

	report := promptasm.MergeReport(task.ID, "main", relPath, diff, fields, downstreamImpacts, crossImpacts, state)
	report.SourceProject = "main"

	return report, nil
}

func usagesToImpacts(usages []model.Usage) []model.Impact {
	if len(usages) == 0 {
		return nil
	}

	impacts := make([]model.Impact, 0, len(usages))

	for _, u := range usages {
		impacts = append(impacts, model.Impact{
			Project: "main",
			Type:    model.ImpactClassReference,
			File:    u.Path,
			Line:    u.Line,
			Snippet: u.Snippet,
			Detail:  fmt.Sprintf("%s references the changed symbol", u.Service),
		})
	}

	return impacts
}

func buildSnippets(ctx context.Context, source *snippetSource, usages []model.Usage, impacts []model.Impact, k int) map[string]model.Snippet {
	out := make(map[string]model.Snippet, len(usages)+len(impacts))

	for _, u := range usages {
		out[promptasm.SnippetKey(u.Path, u.Line)] = source.window(ctx, "main", u.Path, u.Line, k)
	}

	for _, imp := range impacts {
		out[promptasm.SnippetKey(imp.File, imp.Line)] = source.window(ctx, imp.Project, imp.File, imp.Line, k)
	}

	return out
}

// detectVerb inspects a `git diff` file header for the add/delete markers
// it emits for new or removed files; anything else is a plain edit.
func detectVerb(diff string) string {
	switch {
	case strings.Contains(diff, "\nnew file mode"):
		return "added"
	case strings.Contains(diff, "\ndeleted file mode"):
		return "deleted"
	case strings.Contains(diff, "\nrename from "):
		return "renamed"
	default:
		return "modified"
	}
}
