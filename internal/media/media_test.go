package media

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu      sync.Mutex
	fail    map[string]bool
	deleted []string
}

func (g *fakeGateway) Upload(ctx context.Context, f File, folder string) (string, error) {
	if g.fail[f.Name] {
		return "", errors.New("host unavailable")
	}
	return "https://cdn.test/" + folder + "/" + f.Name, nil
}

func (g *fakeGateway) Delete(ctx context.Context, u string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if strings.Contains(u, "broken") {
		return errors.New("delete failed")
	}
	g.deleted = append(g.deleted, u)
	return nil
}

func jpeg(name string) File {
	return File{Name: name, ContentType: "image/jpeg", Data: []byte("jpeg-bytes")}
}

func TestUploadAllSettlesEveryFile(t *testing.T) {
	gw := &fakeGateway{fail: map[string]bool{"b.jpg": true}}
	files := []File{
		jpeg("a.jpg"),
		jpeg("b.jpg"),
		{Name: "doc.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
		jpeg("c.jpg"),
	}

	res := UploadAll(context.Background(), gw, files, "cars")

	assert.Equal(t, []string{"https://cdn.test/cars/a.jpg", "https://cdn.test/cars/c.jpg"}, res.URLs)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, "b.jpg", res.Failed[0].Name)
	assert.ErrorIs(t, res.Failed[1].Err, ErrUnsupportedType)
	assert.False(t, res.AllFailed())
}

func TestUploadAllReportsTotalFailure(t *testing.T) {
	gw := &fakeGateway{fail: map[string]bool{"a.jpg": true, "b.jpg": true}}
	res := UploadAll(context.Background(), gw, []File{jpeg("a.jpg"), jpeg("b.jpg")}, "cars")
	assert.True(t, res.AllFailed())
	assert.Empty(t, res.URLs)

	empty := UploadAll(context.Background(), gw, nil, "cars")
	assert.False(t, empty.AllFailed())
}

func TestDeleteAllIsBestEffort(t *testing.T) {
	gw := &fakeGateway{}
	errs := DeleteAll(context.Background(), gw, []string{"https://cdn.test/1", "https://cdn.test/broken", "https://cdn.test/2"})
	assert.Len(t, errs, 1)
	assert.ElementsMatch(t, []string{"https://cdn.test/1", "https://cdn.test/2"}, gw.deleted)
}

func TestIsAllowedContentType(t *testing.T) {
	assert.True(t, IsAllowedContentType("image/png"))
	assert.True(t, IsAllowedContentType("IMAGE/JPEG"))
	assert.True(t, IsAllowedContentType("image/webp; charset=binary"))
	assert.False(t, IsAllowedContentType("text/plain"))
	assert.False(t, IsAllowedContentType(""))
}

func TestObjectKey(t *testing.T) {
	key := objectKey("cars", File{Name: "Front.PNG", ContentType: "image/png"})
	assert.True(t, strings.HasPrefix(key, "cars/"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	key = objectKey("", File{Name: "blob", ContentType: "image/webp"})
	assert.False(t, strings.Contains(key, "/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))
}

func TestLocalStoreUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/")
	require.NoError(t, err)

	u, err := store.Upload(context.Background(), jpeg("car.jpg"), "cars")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:8080/uploads/cars/"))

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	onDisk := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(parsed.Path, "/uploads/")))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	require.NoError(t, store.Delete(context.Background(), u))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	// Deleting twice is not an error.
	require.NoError(t, store.Delete(context.Background(), u))

	assert.ErrorIs(t, store.Delete(context.Background(), "https://elsewhere.test/x.jpg"), ErrForeignURL)
	assert.ErrorIs(t, store.Delete(context.Background(), "/uploads/../etc/passwd"), ErrForeignURL)
}

func TestMinioObjectURL(t *testing.T) {
	u := objectURL("http://minio:9000", "cars", "cars/abc.jpg")
	assert.Equal(t, "http://minio:9000/cars/cars/abc.jpg", u)

	key, err := objectKeyFromURL("http://minio:9000", "cars", u)
	require.NoError(t, err)
	assert.Equal(t, "cars/abc.jpg", key)

	_, err = objectKeyFromURL("http://minio:9000", "cars", "http://other:9000/cars/abc.jpg")
	assert.ErrorIs(t, err, ErrForeignURL)
}

func TestFirebaseDownloadURLRoundTrip(t *testing.T) {
	u := firebaseDownloadURL("market.appspot.com", "cars/abc.jpg", "tok-1")
	assert.Equal(t, "https://firebasestorage.googleapis.com/v0/b/market.appspot.com/o/cars%2Fabc.jpg?alt=media&token=tok-1", u)

	name, err := firebaseObjectName("market.appspot.com", u)
	require.NoError(t, err)
	assert.Equal(t, "cars/abc.jpg", name)

	_, err = firebaseObjectName("other.appspot.com", u)
	assert.ErrorIs(t, err, ErrForeignURL)
}

func TestSafeSearchResultIsUnsafe(t *testing.T) {
	assert.False(t, (&SafeSearchResult{Adult: "POSSIBLE", Racy: "UNLIKELY"}).IsUnsafe())
	assert.True(t, (&SafeSearchResult{Racy: "LIKELY"}).IsUnsafe())
	assert.True(t, (&SafeSearchResult{Violence: "VERY_LIKELY"}).IsUnsafe())
	assert.False(t, (&SafeSearchResult{Spoof: "VERY_LIKELY"}).IsUnsafe())
}
