package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/journal-harvester/internal/harvest"
)

// newRunCmd creates the 'run' subcommand, which walks the archive once.
func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Walk the archive and harvest every new article",
		Long: `Visits archive pages 1..N, then every issue and article they link to.
Articles already present in the record store are skipped, so an interrupted
run can simply be restarted.`,
		RunE: runHarvestCommand,
	}
	cmd.Flags().Int("pages", 0, "number of archive pages to walk (overrides archive.pages)")
	cmd.Flags().String("base-url", "", "archive listing URL (overrides archive.base_url)")
	_ = v.BindPFlag("archive.pages", cmd.Flags().Lookup("pages"))
	_ = v.BindPFlag("archive.base_url", cmd.Flags().Lookup("base-url"))
	return cmd
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	s, err := sessionFrom(cmd.Context())
	if err != nil {
		return err
	}
	logger := s.logger
	logger.Info("starting harvest",
		zap.String("archive", s.cfg.Archive.BaseURL),
		zap.Int("pages", s.cfg.Archive.Pages),
		zap.String("store", s.cfg.Store.Backend),
		zap.String("artifacts", s.cfg.Artifacts.Backend),
	)

	summary, err := s.app.Walker(logger).Run(cmd.Context(), s.cfg.Archive.Pages)
	logSummary(logger, summary)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("harvest interrupted; rerun to resume")
			return nil
		}
		return fmt.Errorf("run harvest: %w", err)
	}
	logger.Info("harvest finished")
	return nil
}

func logSummary(logger *zap.Logger, summary harvest.Summary) {
	logger.Info("harvest summary",
		zap.Int("pages_visited", summary.PagesVisited),
		zap.Int("pages_failed", summary.PagesFailed),
		zap.Int("issues", summary.Issues),
		zap.Int("issues_failed", summary.IssuesFailed),
		zap.Int("articles", summary.Articles),
		zap.Int("skipped", summary.Skipped),
		zap.Int("success", summary.ByStatus[harvest.StatusSuccess]),
		zap.Int("failed", summary.ByStatus[harvest.StatusFailed]),
		zap.Int("pdf_download_failed", summary.ByStatus[harvest.StatusPDFDownloadFailed]),
	)
}
