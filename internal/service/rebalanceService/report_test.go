package rebalanceService

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func withReports(f *fixture) (*reportsMock, *cloudMock) {
	reports, cloud := &reportsMock{}, &cloudMock{}
	f.svc.reports = reports
	f.svc.cloud = cloud
	return reports, cloud
}

func TestExportRebalanceReport(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads the rendered preview", func(t *testing.T) {
		f := newFixture(t, drifted(false))
		reports, cloud := withReports(f)

		reports.On("Generate", mock.Anything,
			mock.MatchedBy(func(s model.PortfolioSnapshot) bool { return s.UserID == userID }),
			mock.MatchedBy(func(p model.RebalancePreview) bool { return p.Mode == model.HoldingsOnly && len(p.Trades) > 0 }),
		).Return([]byte("xlsx"), ".xlsx", nil).Once()

		cloud.On("UploadFile", mock.Anything,
			mock.MatchedBy(func(r io.Reader) bool {
				b, err := io.ReadAll(r)
				return err == nil && string(b) == "xlsx"
			}),
			"rebalance_7_20260310_120000.xlsx",
		).Return("https://drive.example/file", nil).Once()

		link, err := f.svc.ExportRebalanceReport(ctx, userID, model.HoldingsOnly)
		require.NoError(t, err)
		assert.Equal(t, "https://drive.example/file", link)

		reports.AssertExpectations(t)
		cloud.AssertExpectations(t)
	})

	t.Run("generator failure", func(t *testing.T) {
		f := newFixture(t, drifted(false))
		reports, cloud := withReports(f)

		reports.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(nil, "", errors.New("disk full")).Once()

		_, err := f.svc.ExportRebalanceReport(ctx, userID, model.Smart)
		require.Error(t, err)
		cloud.AssertNotCalled(t, "UploadFile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid mode", func(t *testing.T) {
		f := newFixture(t, drifted(false))
		withReports(f)

		_, err := f.svc.ExportRebalanceReport(ctx, userID, model.RebalanceMode("ALL_IN"))
		assert.ErrorIs(t, err, service.ErrValidation)
	})
}

func TestCleanupReports(t *testing.T) {
	f := newFixture(t)
	_, cloud := withReports(f)
	cloud.On("DeleteOldFiles", mock.Anything).Return(nil).Once()

	require.NoError(t, f.svc.CleanupReports(context.Background()))
	cloud.AssertExpectations(t)
}
