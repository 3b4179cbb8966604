package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joshsymonds/accesslens/internal/config"
	"github.com/joshsymonds/accesslens/internal/database"
	"github.com/joshsymonds/accesslens/internal/enrichment"
	"github.com/joshsymonds/accesslens/internal/filter"
	"github.com/joshsymonds/accesslens/internal/models"
	"github.com/joshsymonds/accesslens/pkg/logger"
)

// APICallCounter reports how many platform API calls have been made so far.
type APICallCounter interface {
	Calls() int64
}

// RunStore persists run history. Nil-safe wrapper methods on Service allow
// running without one.
type RunStore interface {
	SaveRun(ctx context.Context, run database.Run) error
}

// Service drives the report workflows: extending every report in the input
// tree and building filtered custom reports.
type Service struct {
	config   *config.Config
	extender *enrichment.Extender
	calls    APICallCounter
	runs     RunStore
	logger   logger.Logger
}

// NewService wires the report workflows. runs and calls may be nil.
func NewService(cfg *config.Config, extender *enrichment.Extender, calls APICallCounter, runs RunStore, log logger.Logger) *Service {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Service{
		config:   cfg,
		extender: extender,
		calls:    calls,
		runs:     runs,
		logger:   log,
	}
}

// Directory accessors. The layout is a working directory holding an input
// tree, an output tree mirroring it, and a custom reports directory.

func (s *Service) InputResourceAccessDir() string {
	return filepath.Join(s.config.Reports.WorkingDir, s.config.Reports.InputDir, s.config.Reports.ResourceAccessDir)
}

func (s *Service) OutputResourceAccessDir() string {
	return filepath.Join(s.config.Reports.WorkingDir, s.config.Reports.OutputDir, s.config.Reports.ResourceAccessDir)
}

func (s *Service) InputUnusedAccessDir() string {
	return filepath.Join(s.config.Reports.WorkingDir, s.config.Reports.InputDir, s.config.Reports.UnusedAccessDir)
}

func (s *Service) OutputUnusedAccessDir() string {
	return filepath.Join(s.config.Reports.WorkingDir, s.config.Reports.OutputDir, s.config.Reports.UnusedAccessDir)
}

func (s *Service) CustomReportsDir() string {
	return filepath.Join(s.config.Reports.WorkingDir, s.config.Reports.CustomDir)
}

func (s *Service) ArchivePath() string {
	return filepath.Join(s.config.Reports.WorkingDir, s.config.Reports.InputDir, s.config.Reports.ResourceAccessArchive)
}

// ExtendAll extends every CSV report in the input trees into the output
// trees. The raw archive, when present, is extracted into the input tree
// first, and output directories are cleaned before writing. A report that
// fails to read is logged and skipped so one bad file cannot sink the run.
func (s *Service) ExtendAll(ctx context.Context, opts enrichment.Options) (*RunSummary, error) {
	started := time.Now()
	summary := &RunSummary{RunID: uuid.NewString(), Kind: database.RunKindExtend, Report: "all"}

	if _, err := os.Stat(s.ArchivePath()); err == nil {
		s.logger.Info("Extracting resource access archive", "archive", s.ArchivePath())
		if err := Unzip(s.ArchivePath(), s.InputResourceAccessDir()); err != nil {
			return nil, err
		}
	}

	trees := []struct{ in, out string }{
		{s.InputResourceAccessDir(), s.OutputResourceAccessDir()},
		{s.InputUnusedAccessDir(), s.OutputUnusedAccessDir()},
	}
	for _, tree := range trees {
		if err := EnsureDirectory(tree.out); err != nil {
			return nil, err
		}
		if err := CleanupDirectory(tree.out); err != nil {
			return nil, err
		}
		names, err := ListCSVFiles(tree.in)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			in, out, err := s.ExtendReport(ctx, name, tree.in, tree.out, opts)
			if err != nil {
				s.logger.Error("Skipping report", "report", name, "error", err)
				summary.Errors++
				continue
			}
			summary.Reports++
			summary.RecordsIn += in
			summary.RecordsOut += out
		}
	}

	summary.Duration = time.Since(started)
	if s.calls != nil {
		summary.APICalls = int(s.calls.Calls())
	}
	s.saveRun(ctx, started, summary)
	return summary, nil
}

// ExtendReport extends one report file from inDir into outDir, keeping the
// file name. Returns the input and output record counts.
func (s *Service) ExtendReport(ctx context.Context, name, inDir, outDir string, opts enrichment.Options) (int, int, error) {
	header, recs, err := ReadCSV(filepath.Join(inDir, name))
	if err != nil {
		return 0, 0, err
	}
	log := s.logger.With("report", name)
	log.Info("Extending report", "records", len(recs))

	extended, err := s.extender.Extend(ctx, recs, opts)
	if err != nil {
		return 0, 0, err
	}

	columns := OutputColumns(s.config.IdentityAttributeColumns(), header, extended)
	if err := WriteCSV(filepath.Join(outDir, name), columns, extended); err != nil {
		return 0, 0, err
	}
	return len(recs), len(extended), nil
}

// Search collects the records matching a filter expression across every
// extended resource-access report whose file name matches the CSP and
// service selectors. Reading the output tree means filters can reference
// the identity context columns added by extension. Invalid inputs or an
// empty result produce the single-row error record instead of failing
// the run.
func (s *Service) Search(ctx context.Context, filterExpr, csp, service string, opts enrichment.Options) ([]models.Record, error) {
	if strings.TrimSpace(filterExpr) == "" {
		return models.ErrorRecord(fmt.Sprintf("No filter provided for custom report (csp %q, service %q)", csp, service)), nil
	}
	expr, err := filter.Parse(filterExpr)
	if err != nil {
		return models.ErrorRecord(fmt.Sprintf("Invalid filter expression: %v", err)), nil
	}
	pattern, err := BuildFileNamePattern(csp, service)
	if err != nil {
		return nil, err
	}

	names, err := ListCSVFiles(s.OutputResourceAccessDir())
	if err != nil {
		return nil, err
	}
	matched := FilterFilesByPattern(names, pattern)
	if len(matched) == 0 {
		return models.ErrorRecord(fmt.Sprintf("No reports matched pattern %s", pattern.String())), nil
	}

	var selected []models.Record
	for _, name := range matched {
		_, recs, err := ReadCSV(filepath.Join(s.OutputResourceAccessDir(), name))
		if err != nil {
			s.logger.Error("Skipping report in search", "report", name, "error", err)
			continue
		}
		selected = append(selected, filter.Apply(expr, recs)...)
	}
	if len(selected) == 0 {
		return models.ErrorRecord(""), nil
	}

	if opts.IncludeAccessPaths {
		return s.extender.Extend(ctx, selected, opts)
	}
	return selected, nil
}

// CreateCustomReport runs Search and writes the result to the custom
// reports directory under the given name.
func (s *Service) CreateCustomReport(ctx context.Context, name, filterExpr, csp, service string, opts enrichment.Options) (*RunSummary, error) {
	started := time.Now()
	summary := &RunSummary{RunID: uuid.NewString(), Kind: database.RunKindCustom, Report: name}

	filterStart := time.Now()
	recs, err := s.Search(ctx, filterExpr, csp, service, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Custom report search complete",
		"report", name,
		"records", len(recs),
		"elapsed", FormatDuration(time.Since(filterStart)),
	)

	if err := EnsureDirectory(s.CustomReportsDir()); err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		name += ".csv"
	}

	writeStart := time.Now()
	columns := OutputColumns(s.config.IdentityAttributeColumns(), nil, recs)
	if err := WriteCSV(filepath.Join(s.CustomReportsDir(), name), columns, recs); err != nil {
		return nil, err
	}
	s.logger.Info("Custom report written",
		"report", name,
		"elapsed", FormatDuration(time.Since(writeStart)),
	)

	summary.Reports = 1
	summary.RecordsOut = len(recs)
	summary.Duration = time.Since(started)
	if s.calls != nil {
		summary.APICalls = int(s.calls.Calls())
	}
	s.logger.Info("Custom report complete", "report", name, "total", FormatDuration(summary.Duration))
	s.saveRun(ctx, started, summary)
	return summary, nil
}

// saveRun records the run when a store is configured. Persistence failures
// are logged, never fatal.
func (s *Service) saveRun(ctx context.Context, started time.Time, summary *RunSummary) {
	if s.runs == nil {
		return
	}
	err := s.runs.SaveRun(ctx, database.Run{
		ID:          summary.RunID,
		Kind:        summary.Kind,
		Report:      summary.Report,
		StartedAt:   started,
		CompletedAt: started.Add(summary.Duration),
		RecordsIn:   summary.RecordsIn,
		RecordsOut:  summary.RecordsOut,
		APICalls:    summary.APICalls,
		Errors:      summary.Errors,
	})
	if err != nil {
		s.logger.Error("Unable to save run history", "run_id", summary.RunID, "error", err)
	}
}
