package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func exerciseProvider(t *testing.T, p Provider) {
	t.Helper()
	ctx := context.Background()

	_, err := p.Read(ctx, "guest/abc.json")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.Write(ctx, "guest/abc.json", []byte(`{"a":1}`)))
	require.NoError(t, p.Write(ctx, "guest/abc.json", []byte(`{"a":2}`)))
	data, err := p.Read(ctx, "guest/abc.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	require.NoError(t, p.Delete(ctx, "guest/abc.json"))
	require.NoError(t, p.Delete(ctx, "guest/abc.json"), "delete is idempotent")
	_, err = p.Read(ctx, "guest/abc.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal(t *testing.T) {
	exerciseProvider(t, NewLocal(t.TempDir()))
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	p := NewLocal(t.TempDir())
	assert.Error(t, p.Write(context.Background(), "../outside", []byte("x")))
}

func TestS3(t *testing.T) {
	exerciseProvider(t, NewS3(newFakeS3(), "bucket", "present-ponder"))
}

func TestS3WriteError(t *testing.T) {
	fake := newFakeS3()
	fake.failPut = errors.New("access denied")
	err := NewS3(fake, "bucket", "").Write(context.Background(), "k", []byte("x"))
	assert.ErrorContains(t, err, "access denied")
}

func TestPrefixed(t *testing.T) {
	fake := newFakeS3()
	p := NewPrefixed(NewS3(fake, "bucket", "root"), "/guest/")
	exerciseProvider(t, p)

	require.NoError(t, p.Write(context.Background(), "b1", []byte("x")))
	_, ok := fake.objects["bucket/root/guest/b1"]
	assert.True(t, ok)
}

func TestNew(t *testing.T) {
	_, err := New(Config{Backend: BackendLocal})
	assert.Error(t, err)

	_, err = New(Config{Backend: BackendS3, Bucket: "b"})
	assert.Error(t, err)

	_, err = New(Config{Backend: "ftp"})
	assert.Error(t, err)

	p, err := New(Config{Backend: BackendS3, Bucket: "b", Client: newFakeS3()})
	require.NoError(t, err)
	assert.IsType(t, &S3{}, p)
}

type fakeRedis struct {
	mu   sync.Mutex
	vals map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{vals: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vals[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vals[key] = string(value.([]byte))
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.vals[k]; ok {
			n++
		}
		delete(f.vals, k)
	}
	return redis.NewIntResult(n, nil)
}

func TestRedis(t *testing.T) {
	fake := newFakeRedis()
	exerciseProvider(t, NewRedis(fake, WithRedisKeyPrefix("pp:"), WithRedisTTL(time.Hour)))

	p := NewRedis(fake, WithRedisKeyPrefix("pp:"), WithRedisTTL(time.Hour))
	require.NoError(t, p.Write(context.Background(), "slot", []byte("x")))
	assert.Equal(t, time.Hour, fake.ttls["pp:slot"])
}

func TestMemory(t *testing.T) {
	exerciseProvider(t, NewMemory())
}
