// Package commands provides CLI command implementations for cloudimpact.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zlbkkk/cloudimpact/internal/config"
	"github.com/zlbkkk/cloudimpact/internal/observability"
	"github.com/zlbkkk/cloudimpact/internal/orchestrator"
	"github.com/zlbkkk/cloudimpact/pkg/gitutil"
	"github.com/zlbkkk/cloudimpact/pkg/indexcache"
	"github.com/zlbkkk/cloudimpact/pkg/javaidx"
	"github.com/zlbkkk/cloudimpact/pkg/model"
	"github.com/zlbkkk/cloudimpact/pkg/version"
)

// AnalyzeCommand holds the flags for the analyze command.
type AnalyzeCommand struct {
	configPath *string

	mainGitURL   string
	targetBranch string
	baseCommit   string
	targetCommit string
	taskID       string
	forceReindex bool
}

// NewAnalyzeCommand creates and configures the analyze command. configPath
// is shared with the root command's persistent --config flag.
func NewAnalyzeCommand(configPath *string) *cobra.Command {
	ac := &AnalyzeCommand{configPath: configPath}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute the cross-project impact of a commit range",
		Long:  "Analyze diffs base..target on the configured main repository and reports which related-project symbols it touches.",
		RunE:  ac.run,
	}

	cmd.Flags().StringVar(&ac.mainGitURL, "repo", "", "git URL of the main repository")
	cmd.Flags().StringVar(&ac.targetBranch, "branch", "main", "branch of the main repository to materialize")
	cmd.Flags().StringVar(&ac.baseCommit, "base", "", "base commit of the diff")
	cmd.Flags().StringVar(&ac.targetCommit, "target", "", "target commit of the diff")
	cmd.Flags().StringVar(&ac.taskID, "task-id", "", "task identifier (default: a generated UUID)")
	cmd.Flags().BoolVar(&ac.forceReindex, "force-reindex", false,
		"discard any cached symbol index for the main repo at the target commit before analyzing")

	for _, required := range []string{"repo", "base", "target"} {
		_ = cmd.MarkFlagRequired(required)
	}

	return cmd
}

func (ac *AnalyzeCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(*ac.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	providers, err := observability.Init(observability.Config{
		ServiceName:    "cloudimpact",
		ServiceVersion: version.Version,
		Environment:    cfg.Observability.Environment,
		Mode:           observability.ModeCLI,
		LogLevel:       parseLogLevel(cfg.Observability.LogLevel),
		LogJSON:        cfg.Observability.LogJSON,
		EnableMetrics:  cfg.Observability.EnableMetrics,
		EnableTracing:  cfg.Observability.EnableTracing,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		_ = providers.Shutdown(cmd.Context())
	}()

	metrics, err := observability.NewAnalysisMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(cfg.Workspace, config.DefaultCacheDirName)
	}

	gitTimeout := time.Duration(cfg.Git.GitOpTimeoutSeconds) * time.Second
	runner := gitutil.NewSubprocessRunner()

	cache, err := indexcache.Open(indexcache.Options{
		DBPath:   filepath.Join(cacheDir, "index_cache.db"),
		Logger:   providers.Logger,
		HeadFunc: func(ctx context.Context, repoRoot string) (string, error) {
			return gitutil.Open(runner, repoRoot, gitTimeout).HeadCommit(ctx)
		},
		Build: func(ctx context.Context, repoRoot string) (*model.SymbolIndex, error) {
			commit, headErr := gitutil.Open(runner, repoRoot, gitTimeout).HeadCommit(ctx)
			if headErr != nil {
				return nil, headErr
			}

			return javaidx.Build(repoRoot, commit, javaidx.Options{Logger: providers.Logger})
		},
	})
	if err != nil {
		return fmt.Errorf("open index cache: %w", err)
	}

	defer cache.Close() //nolint:errcheck

	store := orchestrator.NewMemoryStore()
	store.SeedRelations(projectRelationsFromConfig(cfg.RelatedProjects, ac.mainGitURL))

	orch, err := orchestrator.New(orchestrator.Dependencies{
		Config:        *cfg,
		Store:         store,
		IndexProvider: cache,
		Runner:        runner,
		LLM:           &langchainModel{},
		Logger:        providers.Logger,
		Tracer:        providers.Tracer,
		Metrics:       metrics,
	})
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	relations, err := store.LoadProjectRelations(cmd.Context(), ac.mainGitURL)
	if err != nil {
		return fmt.Errorf("load project relations: %w", err)
	}

	taskID := ac.resolveTaskID()

	if ac.forceReindex {
		mainDir := filepath.Join(cfg.Workspace, taskID, "main")
		if err := cache.Invalidate(cmd.Context(), mainDir, ac.targetCommit); err != nil {
			return fmt.Errorf("force reindex: %w", err)
		}
	}

	task := &model.AnalysisTask{
		ID:                 taskID,
		MainGitURL:         ac.mainGitURL,
		TargetBranch:       ac.targetBranch,
		BaseCommit:         ac.baseCommit,
		TargetCommit:       ac.targetCommit,
		EnableCrossProject: cfg.EnableCrossProject,
		RelatedProjects:    relatedProjectsFromRelations(relations),
	}

	if err := orch.Run(cmd.Context(), task); err != nil {
		return fmt.Errorf("run analysis: %w", err)
	}

	reports, err := store.ReportsForTask(cmd.Context(), task.ID)
	if err != nil {
		return fmt.Errorf("load reports: %w", err)
	}

	printSummary(cmd, task, reports)

	if task.Status == model.TaskFailed {
		return fmt.Errorf("task %s failed: %s", task.ID, task.FailureReason)
	}

	return nil
}

func (ac *AnalyzeCommand) resolveTaskID() string {
	if ac.taskID != "" {
		return ac.taskID
	}

	return uuid.NewString()
}

// projectRelationsFromConfig turns the configured related-project specs
// into ProjectRelation rows owned by mainGitURL, all active by
// construction -- the config file is the only relation source the CLI
// has today.
func projectRelationsFromConfig(specs []config.RelatedProjectSpec, mainGitURL string) []model.ProjectRelation {
	relations := make([]model.ProjectRelation, 0, len(specs))

	for _, rp := range specs {
		relations = append(relations, model.ProjectRelation{
			MainGitURL:    mainGitURL,
			RelatedName:   rp.Name,
			RelatedGitURL: rp.GitURL,
			RelatedBranch: rp.Branch,
			Active:        true,
		})
	}

	return relations
}

func relatedProjectsFromRelations(relations []model.ProjectRelation) []model.RelatedProject {
	related := make([]model.RelatedProject, 0, len(relations))

	for _, rel := range relations {
		related = append(related, model.RelatedProject{Name: rel.RelatedName, GitURL: rel.RelatedGitURL, Branch: rel.RelatedBranch})
	}

	return related
}

func printSummary(cmd *cobra.Command, task *model.AnalysisTask, reports []model.AnalysisReport) {
	out := cmd.OutOrStdout()

	statusColor := color.New(color.FgGreen)
	if task.Status == model.TaskFailed {
		statusColor = color.New(color.FgRed)
	}

	fmt.Fprintf(out, "task %s: %s (%s analyzed)\n", task.ID, statusColor.Sprint(task.Status),
		humanize.Comma(int64(len(reports))))

	if len(task.DegradedProjects) > 0 {
		fmt.Fprintf(out, "degraded projects: %s\n", strings.Join(task.DegradedProjects, ", "))
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"File", "Risk", "Downstream", "Cross-project", "Validation"})

	for _, r := range reports {
		tbl.AppendRow(table.Row{r.FileName, r.RiskLevel, len(r.DownstreamDependency), len(r.CrossServiceImpact), r.ValidationState})
	}

	tbl.Render()
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
