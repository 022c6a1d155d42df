// Package media stores listing images with an external host and hands back
// public URLs. Backends: local disk, MinIO/S3 and Firebase Storage.
package media

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/carmarket/backend/internal/metrics"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrImageRejected   = errors.New("image rejected: violates community guidelines")
	ErrForeignURL      = errors.New("url does not belong to this media store")
)

// maxParallel bounds concurrent calls to the image host per request.
const maxParallel = 5

// File is one uploaded image held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Gateway uploads and deletes images. Delete takes the URL Upload returned.
type Gateway interface {
	Upload(ctx context.Context, file File, folder string) (string, error)
	Delete(ctx context.Context, url string) error
}

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func IsAllowedContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := allowedTypes[strings.ToLower(mediaType)]
	return ok
}

// objectKey builds "<folder>/<uuid><ext>", keeping the client's extension
// when it has one.
func objectKey(folder string, f File) string {
	ext := strings.ToLower(path.Ext(f.Name))
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
		if mediaType, _, err := mime.ParseMediaType(f.ContentType); err == nil {
			if e, ok := allowedTypes[strings.ToLower(mediaType)]; ok {
				ext = e
			}
		}
	}
	name := uuid.NewString() + ext
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// UploadFailure records one file that did not make it to the host.
type UploadFailure struct {
	Name string
	Err  error
}

type UploadResult struct {
	URLs   []string
	Failed []UploadFailure
}

// AllFailed is true when uploads were attempted and none succeeded.
func (r UploadResult) AllFailed() bool {
	return len(r.URLs) == 0 && len(r.Failed) > 0
}

// UploadAll uploads every file concurrently and waits for all of them.
// A failing file never cancels its siblings. Successful URLs keep the input
// order.
func UploadAll(ctx context.Context, gw Gateway, files []File, folder string) UploadResult {
	urls := make([]string, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, f := range files {
		g.Go(func() error {
			if !IsAllowedContentType(f.ContentType) {
				errs[i] = ErrUnsupportedType
				return nil
			}
			urls[i], errs[i] = gw.Upload(ctx, f, folder)
			return nil
		})
	}
	_ = g.Wait()

	res := UploadResult{URLs: make([]string, 0, len(files))}
	for i := range files {
		if errs[i] != nil {
			metrics.RecordMediaOperation("upload", false)
			logrus.WithFields(logrus.Fields{
				"file":   files[i].Name,
				"folder": folder,
			}).WithError(errs[i]).Warn("image upload failed")
			res.Failed = append(res.Failed, UploadFailure{Name: files[i].Name, Err: errs[i]})
			continue
		}
		metrics.RecordMediaOperation("upload", true)
		res.URLs = append(res.URLs, urls[i])
	}
	return res
}

// DeleteAll removes every url concurrently and returns the failures, which
// callers treat as best effort.
func DeleteAll(ctx context.Context, gw Gateway, urls []string) []error {
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, u := range urls {
		g.Go(func() error {
			errs[i] = gw.Delete(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for i, err := range errs {
		metrics.RecordMediaOperation("delete", err == nil)
		if err != nil {
			logrus.WithField("url", urls[i]).WithError(err).Warn("image delete failed")
			failed = append(failed, err)
		}
	}
	return failed
}
