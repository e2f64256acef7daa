package cmd

import (
	"context"
	"fmt"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/helper"
	"portfolio-tracker/internal/model"
	"portfolio-tracker/internal/reference"
	"portfolio-tracker/internal/repository"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/pkg/postgres"
	"portfolio-tracker/pkg/utils"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	reportUserID  string
	reportGroupBy string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a stored portfolio with its summary",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportUserID, "user", "", "user id (uuid) of the portfolio")
	reportCmd.Flags().StringVar(&reportGroupBy, "group-by", string(dto.GroupBySector), "allocation grouping: sector or industry")
	_ = reportCmd.MarkFlagRequired("user")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	if _, err := uuid.Parse(reportUserID); err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return err
	}
	db, err := postgres.NewDB(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer db.Close()

	row, err := repository.NewPortfolioRepository(db.DB).GetByUserID(ctx, reportUserID)
	if err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}
	loc := utils.LoadLocation(cfg.Market.TimeZone)
	doc := model.EmptyDocument(utils.TodayISO(loc))
	if row != nil {
		doc = row.Data.Data()
	}

	table, err := repository.NewReferenceRepository(cfg, log).Load(ctx)
	if err != nil {
		log.Warn("Reference table unavailable, sectors fall back to Other", logger.ErrorField(err))
	}
	resolver := reference.NewResolver(table)

	summary := helper.Summarize(doc, dto.GroupBy(reportGroupBy), resolver)
	markdown := helper.FormatPortfolioReport(doc, summary, time.Now().In(loc))

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
