package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"clipshelf/internal/services"
)

// memoryS3 answers the single-part upload path plus reads, heads, deletes
// and listings from an in-memory bucket.
type memoryS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryS3() *memoryS3 {
	return &memoryS3{objects: make(map[string][]byte)}
}

func (m *memoryS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (m *memoryS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (m *memoryS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (m *memoryS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (m *memoryS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(time.Now()),
	}, nil
}

func (m *memoryS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), LastModified: aws.Time(time.Now())}, nil
}

func (m *memoryS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memoryS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(m.objects[key]))),
			LastModified: aws.Time(time.Now()),
		})
	}
	return out, nil
}

func TestS3StoreRoundTripWithPrefix(t *testing.T) {
	backend := newMemoryS3()
	store := NewS3StoreWithClient(backend, "media", "/clips/")
	ctx := context.Background()

	written, err := store.Put(ctx, "abc", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if written != int64(len("payload")) {
		t.Fatalf("unexpected written count %d", written)
	}
	if _, ok := backend.objects["clips/abc"]; !ok {
		t.Fatalf("expected prefixed key, have %v", backend.objects)
	}

	obj, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(obj.Body)
	_ = obj.Body.Close()
	if string(data) != "payload" {
		t.Fatalf("unexpected payload %q", data)
	}

	backend.objects["clips/nested/skip"] = []byte("x")
	backend.objects["other"] = []byte("x")
	objects, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 1 || objects[0].Key != "abc" {
		t.Fatalf("unexpected listing %#v", objects)
	}
	if store.Describe() != "s3://media/clips" {
		t.Fatalf("unexpected describe %q", store.Describe())
	}
}

func TestS3StoreMissingKeys(t *testing.T) {
	store := NewS3StoreWithClient(newMemoryS3(), "media", "")
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on get, got %v", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestS3StorePutFailureIsStorageUnavailable(t *testing.T) {
	backend := newMemoryS3()
	backend.putErr = &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce request rate"}
	store := NewS3StoreWithClient(backend, "media", "")

	_, err := store.Put(context.Background(), "abc", strings.NewReader("payload"))
	if !errors.Is(err, services.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestIsS3NotFound(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&types.NoSuchKey{}, true},
		{&types.NotFound{}, true},
		{&smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{&smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := isS3NotFound(tc.err); got != tc.want {
			t.Fatalf("isS3NotFound(%T) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
