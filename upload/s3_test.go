package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects      map[string][]byte
	types        map[string]string
	dispositions map[string]string
	putErr       error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}, dispositions: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := aws.ToString(in.Key)
	if aws.ToString(in.IfNoneMatch) == "*" {
		if _, exists := f.objects[key]; exists {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
		}
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = b
	f.types[key] = aws.ToString(in.ContentType)
	f.dispositions[key] = aws.ToString(in.ContentDisposition)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorePut(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "media", "posts", "https://cdn.example.com")

	f, err := store.Put(context.Background(), strings.NewReader("png-bytes"), ".png")
	require.NoError(t, err)
	require.EqualValues(t, 9, f.Size)
	require.Equal(t, "https://cdn.example.com/posts/"+f.Name, f.URL)
	require.Equal(t, "media/posts", f.Dir)
	require.Equal(t, []byte("png-bytes"), client.objects["posts/"+f.Name])
	require.Equal(t, "image/png", client.types["posts/"+f.Name])
	require.Empty(t, client.dispositions["posts/"+f.Name])
}

func TestS3StoreWritesNonImagesAsAttachments(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "media", "", "https://cdn.example.com").WithServePolicy(DefaultPolicy())

	for _, ext := range []string{".html", ".svg", ""} {
		f, err := store.Put(context.Background(), strings.NewReader("<script>alert(1)</script>"), ext)
		require.NoError(t, err)
		require.Equal(t, "application/octet-stream", client.types[f.Name], ext)
		require.Equal(t, "attachment", client.dispositions[f.Name], ext)
	}
}

func TestS3StoreRetriesWhenKeyTaken(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "media", "", "").WithNamer(sequenceNamer(5, 5, 6))

	first, err := store.Put(context.Background(), strings.NewReader("a"), ".jpg")
	require.NoError(t, err)
	second, err := store.Put(context.Background(), strings.NewReader("b"), ".jpg")
	require.NoError(t, err)

	require.Equal(t, "1000-5.jpg", first.Name)
	require.Equal(t, "1000-6.jpg", second.Name)
	require.Equal(t, []byte("a"), client.objects[first.Name])
	require.Equal(t, []byte("b"), client.objects[second.Name])
}

func TestS3StorePutFailure(t *testing.T) {
	client := newFakeS3()
	client.putErr = &smithy.GenericAPIError{Code: "AccessDenied"}
	store := NewS3Store(client, "media", "", "")

	_, err := store.Put(context.Background(), strings.NewReader("a"), ".jpg")
	require.Error(t, err)
	var apiErr smithy.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "AccessDenied", apiErr.ErrorCode())
}

func TestS3StoreDelete(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "media", "p/", "")

	f, err := store.Put(context.Background(), strings.NewReader("a"), ".gif")
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), f.Name))
	require.Empty(t, client.objects)
}
