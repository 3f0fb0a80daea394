package blob_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/blob"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ port.BlobStore = (*blob.Memory)(nil)
	_ port.BlobStore = (*blob.S3)(nil)
)

// fakeS3 answers path-style object requests from a map.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// /<bucket>/<key>
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	empty := io.NopCloser(bytes.NewReader(nil))

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = body
		f.types[key] = req.Header.Get("Content-Type")
		return &http.Response{StatusCode: http.StatusOK, Body: empty, Header: http.Header{"ETag": {`"etag"`}}}, nil
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			xml := `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Body:       io.NopCloser(strings.NewReader(xml)),
				Header:     http.Header{"Content-Type": {"application/xml"}},
			}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{
			"Content-Type": {f.types[key]},
			"ETag":         {`"etag"`},
		}}, nil
	case http.MethodDelete:
		delete(f.objects, key)
		return &http.Response{StatusCode: http.StatusNoContent, Body: empty, Header: http.Header{}}, nil
	}
	return &http.Response{StatusCode: http.StatusNotImplemented, Body: empty, Header: http.Header{}}, nil
}

func newTestS3(t *testing.T, fake *fakeS3) *blob.S3 {
	t.Helper()
	store, err := blob.NewS3(context.Background(), blob.S3Config{
		Bucket:     "attachments",
		Region:     "us-east-1",
		Endpoint:   "http://blob.test",
		PathStyle:  true,
		HTTPClient: &http.Client{Transport: fake},
		ConfigOptions: []func(*config.LoadOptions) error{
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
		},
	})
	require.NoError(t, err)
	return store
}

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := blob.NewMemory()

	require.NoError(t, m.Put(ctx, "acme/orders/o1/a1", "application/pdf", []byte("%PDF")))
	body, ct, err := m.Get(ctx, "acme/orders/o1/a1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), body)
	assert.Equal(t, "application/pdf", ct)

	require.NoError(t, m.Delete(ctx, "acme/orders/o1/a1"))
	_, _, err = m.Get(ctx, "acme/orders/o1/a1")
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_CopiesPayload(t *testing.T) {
	ctx := context.Background()
	m := blob.NewMemory()
	payload := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", "", payload))
	payload[0] = 'z'

	body, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(body))
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := blob.NewS3(context.Background(), blob.S3Config{})
	assert.Error(t, err)
}

func TestS3_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newTestS3(t, fake)

	require.NoError(t, store.Put(ctx, "acme/orders/o1/a1", "image/png", []byte("png-bytes")))
	assert.Equal(t, []byte("png-bytes"), fake.objects["acme/orders/o1/a1"])

	body, ct, err := store.Get(ctx, "acme/orders/o1/a1")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", ct)

	require.NoError(t, store.Delete(ctx, "acme/orders/o1/a1"))
	assert.Empty(t, fake.objects)
}

func TestS3_MissingKeyIsNotFound(t *testing.T) {
	store := newTestS3(t, newFakeS3())

	_, _, err := store.Get(context.Background(), "acme/orders/o1/missing")
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}
