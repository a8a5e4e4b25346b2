package googleDriveApi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/KotFed0t/blu_rebalancer/config"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/jonboulle/clockwork"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const downloadLinkTemplate = "https://drive.google.com/file/d/%s/view"

type GoogleDriveApi struct {
	srv   *drive.Service
	ttl   time.Duration
	clock clockwork.Clock
}

func New(ctx context.Context, cfg *config.Config, clock clockwork.Clock) *GoogleDriveApi {
	srv, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.GoogleDrive.CredentialsFile))
	if err != nil {
		slog.Error("failed on drive.NewService", slog.String("err", err.Error()))
		panic(err)
	}
	return &GoogleDriveApi{srv: srv, ttl: cfg.GoogleDrive.FileTTL, clock: clock}
}

// UploadFile stores a report and opens it for reading by link.
func (a *GoogleDriveApi) UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.UploadFile"

	slog.Debug("UploadFile start", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))

	fileMeta := &drive.File{
		Name:     filename,
		MimeType: mime.TypeByExtension(filepath.Ext(filename)),
	}

	// Media uploads in chunks and retries them on network errors.
	uploadedFile, err := a.srv.Files.
		Create(fileMeta).
		Media(reader).
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("failed on uploading file to google drive", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	perm := &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}

	if _, err = a.srv.Permissions.Create(uploadedFile.Id, perm).Context(ctx).Do(); err != nil {
		slog.Error("failed on creating permission to uploaded file in google drive", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	slog.Debug("UploadFile completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("fileID", uploadedFile.Id))

	return fmt.Sprintf(downloadLinkTemplate, uploadedFile.Id), nil
}

func (a *GoogleDriveApi) DeleteOldFiles(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.DeleteOldFiles"

	slog.Debug("DeleteOldFiles start", slog.String("rqID", rqID), slog.String("op", op))

	r, err := a.srv.Files.List().Fields("files(id, createdTime)").Context(ctx).Do()
	if err != nil {
		slog.Error("failed on getting files", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	ids := expiredFiles(ctx, r.Files, a.clock.Now().Add(-a.ttl))

	deletedFiles := 0
	for _, id := range ids {
		if err = a.srv.Files.Delete(id).Context(ctx).Do(); err != nil {
			slog.Error("failed delete file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()), slog.String("fileID", id))
			continue
		}
		deletedFiles++
	}

	if err = a.srv.Files.EmptyTrash().Context(ctx).Do(); err != nil {
		slog.Error("failed empty trash", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	slog.Info(
		"delete old files done",
		slog.String("rqID", rqID),
		slog.Int("deletedFiles", deletedFiles),
		slog.Int("remainingFiles", len(r.Files)-deletedFiles),
	)

	return nil
}

// expiredFiles returns ids of files created before deadline. Files with an
// unparsable creation time are kept.
func expiredFiles(ctx context.Context, files []*drive.File, deadline time.Time) []string {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res := make([]string, 0, len(files))
	for _, f := range files {
		createdTime, err := time.Parse(time.RFC3339, f.CreatedTime)
		if err != nil {
			slog.Error(
				"failed parse time",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.String("fileID", f.Id),
				slog.String("createdTime", f.CreatedTime),
			)
			continue
		}

		if createdTime.Before(deadline) {
			res = append(res, f.Id)
		}
	}
	return res
}
