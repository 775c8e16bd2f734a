package port

import (
	"context"
	"io"
)

type MediaStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	UploadPDF(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
