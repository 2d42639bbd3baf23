package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/imgindex/internal/event"
	"github.com/your-org/imgindex/internal/storage"
)

type fakeLister struct {
	objects []storage.ObjectInfo
	err     error
	prefix  string
}

func (f *fakeLister) Bucket() string { return "photos" }

func (f *fakeLister) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	f.prefix = prefix
	return f.objects, f.err
}

type fakePublisher struct {
	events []events.S3Event
	failAt int
}

func (f *fakePublisher) PublishUpload(_ context.Context, ev events.S3Event) error {
	if f.failAt > 0 && len(f.events)+1 == f.failAt {
		return errors.New("stream full")
	}
	f.events = append(f.events, ev)
	return nil
}

var modified = time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

func TestBackfillEnqueuesImages(t *testing.T) {
	lister := &fakeLister{objects: []storage.ObjectInfo{
		{Key: "uploads/cat.jpg", Size: 100, ETag: "e1", LastModified: modified},
		{Key: "uploads/notes.txt", Size: 5},
		{Key: "uploads/My Dog.PNG", Size: 200, ETag: "e2", LastModified: modified},
		{Key: "uploads/scan.jpeg", Size: 300, ETag: "e3", LastModified: modified},
	}}
	pub := &fakePublisher{}

	n, err := NewBackfill(lister, pub, "us-east-1").Run(context.Background(), "uploads/")
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, "uploads/", lister.prefix)
	require.Len(t, pub.events, 3)

	// Enqueued notifications must parse exactly like real ones.
	up, err := event.FromS3Event(pub.events[1])
	require.NoError(t, err)
	assert.Equal(t, "photos", up.Bucket)
	assert.Equal(t, "uploads/My Dog.PNG", up.Key)
	assert.Equal(t, "us-east-1", up.Region)
}

func TestBackfillStopsOnPublishError(t *testing.T) {
	lister := &fakeLister{objects: []storage.ObjectInfo{
		{Key: "a.jpg"}, {Key: "b.jpg"}, {Key: "c.jpg"},
	}}
	pub := &fakePublisher{failAt: 2}

	n, err := NewBackfill(lister, pub, "us-east-1").Run(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "b.jpg")
}

func TestBackfillListError(t *testing.T) {
	lister := &fakeLister{err: errors.New("access denied")}

	_, err := NewBackfill(lister, &fakePublisher{}, "us-east-1").Run(context.Background(), "")
	assert.Error(t, err)
}

func TestIsImageKey(t *testing.T) {
	assert.True(t, IsImageKey("a/b/c.JPG"))
	assert.True(t, IsImageKey("x.jpeg"))
	assert.True(t, IsImageKey("x.png"))
	assert.False(t, IsImageKey("x.gif"))
	assert.False(t, IsImageKey("jpg"))
	assert.False(t, IsImageKey("folder/"))
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"prefix":"2024/"}`))
	require.NoError(t, err)
	assert.Equal(t, "2024/", cmd.Prefix)

	cmd, err = ParseCommand(nil)
	require.NoError(t, err)
	assert.Empty(t, cmd.Prefix)

	_, err = ParseCommand([]byte(`{`))
	assert.Error(t, err)
}
