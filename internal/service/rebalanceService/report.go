package rebalanceService

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/service"
	"github.com/KotFed0t/blu_rebalancer/utils"
)

// ExportRebalanceReport renders the current preview into a workbook and
// returns a download link to it.
func (s *Service) ExportRebalanceReport(ctx context.Context, userID int64, mode model.RebalanceMode) (link string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.ExportRebalanceReport"

	slog.Debug("ExportRebalanceReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("ExportRebalanceReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	if !mode.Valid() {
		return "", &service.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}

	snapshot, err := s.snapshot(ctx, userID)
	if err != nil {
		return "", err
	}

	preview := s.engine(ctx).Preview(ctx, snapshot, mode)

	fileBytes, ext, err := s.reports.Generate(ctx, snapshot, preview)
	if err != nil {
		slog.Error("got error from reports.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	filename := fmt.Sprintf("rebalance_%d_%s%s", userID, s.clock.Now().UTC().Format("20060102_150405"), ext)
	link, err = s.cloud.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from cloud.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	return link, nil
}

func (s *Service) CleanupReports(ctx context.Context) error {
	return s.cloud.DeleteOldFiles(ctx)
}
