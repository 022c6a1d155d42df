package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type FirebaseConfig struct {
	Bucket          string
	CredentialsJSON string
	// Moderate runs SafeSearch on every upload and rejects unsafe images.
	Moderate bool
}

// FirebaseStore writes images to Firebase Storage and returns tokenized
// download URLs.
type FirebaseStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
	moderator  Moderator
}

func NewFirebaseStore(ctx context.Context, cfg FirebaseConfig) (*FirebaseStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: cfg.Bucket}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage: %w", err)
	}
	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("firebase bucket: %w", err)
	}

	s := &FirebaseStore{bucket: bucket, bucketName: cfg.Bucket}
	if cfg.Moderate {
		ss, err := NewSafeSearch(ctx, opts...)
		if err != nil {
			return nil, err
		}
		s.moderator = ss
	}
	return s, nil
}

func (s *FirebaseStore) Upload(ctx context.Context, file File, folder string) (string, error) {
	key := objectKey(folder, file)
	token := uuid.NewString()

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = file.ContentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if _, err := w.Write(file.Data); err != nil {
		w.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}

	if s.moderator != nil {
		if err := s.moderate(ctx, key); err != nil {
			return "", err
		}
	}
	return firebaseDownloadURL(s.bucketName, key, token), nil
}

func (s *FirebaseStore) moderate(ctx context.Context, key string) error {
	gcsURI := fmt.Sprintf("gs://%s/%s", s.bucketName, key)
	ss, err := s.moderator.Check(ctx, gcsURI)
	if err != nil {
		s.deleteObject(ctx, key)
		return fmt.Errorf("moderation: safesearch: %w", err)
	}
	if ss.IsUnsafe() {
		logrus.WithFields(logrus.Fields{
			"object":   key,
			"adult":    ss.Adult,
			"violence": ss.Violence,
			"racy":     ss.Racy,
		}).Warn("image rejected by safesearch")
		s.deleteObject(ctx, key)
		return ErrImageRejected
	}
	return nil
}

func (s *FirebaseStore) deleteObject(ctx context.Context, key string) {
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		logrus.WithField("object", key).WithError(err).Warn("firebase delete failed")
	}
}

func (s *FirebaseStore) Delete(ctx context.Context, rawURL string) error {
	key, err := firebaseObjectName(s.bucketName, rawURL)
	if err != nil {
		return err
	}
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func firebaseDownloadURL(bucket, objectName, token string) string {
	return fmt.Sprintf(
		"https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket,
		url.PathEscape(objectName),
		url.QueryEscape(token),
	)
}

// firebaseObjectName reverses firebaseDownloadURL.
func firebaseObjectName(bucket, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != "firebasestorage.googleapis.com" {
		return "", ErrForeignURL
	}
	prefix := "/v0/b/" + bucket + "/o/"
	escaped := u.EscapedPath()
	if !strings.HasPrefix(escaped, prefix) {
		return "", ErrForeignURL
	}
	name, err := url.PathUnescape(strings.TrimPrefix(escaped, prefix))
	if err != nil || name == "" {
		return "", ErrForeignURL
	}
	return name, nil
}
