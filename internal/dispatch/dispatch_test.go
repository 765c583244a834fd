package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/streampack/vod/internal/domain"
)

type fakeStarter struct {
	encodeErr   error
	subtitleErr error
	encodes     int
	subtitles   int
	timelines   int
	previews    int
}

func (f *fakeStarter) StartEncode(ctx context.Context, r *domain.Rendition, v *domain.Video) error {
	f.encodes++
	return f.encodeErr
}

func (f *fakeStarter) StartSubtitle(ctx context.Context, s *domain.Subtitle) error {
	f.subtitles++
	return f.subtitleErr
}

func (f *fakeStarter) StartTimeline(ctx context.Context, v *domain.Video) error {
	f.timelines++
	return nil
}

func (f *fakeStarter) StartPreview(ctx context.Context, p *domain.Preview, v *domain.Video) error {
	f.previews++
	return nil
}

type fakeRenditionStore struct {
	byKey  map[string]*domain.Rendition
	failed map[uuid.UUID]string
}

func newFakeRenditionStore() *fakeRenditionStore {
	return &fakeRenditionStore{
		byKey:  make(map[string]*domain.Rendition),
		failed: make(map[uuid.UUID]string),
	}
}

func (f *fakeRenditionStore) CreateIfAbsent(ctx context.Context, r *domain.Rendition) (*domain.Rendition, bool, error) {
	if existing, ok := f.byKey[r.DispatchKey]; ok {
		return existing, false, nil
	}
	f.byKey[r.DispatchKey] = r
	return r, true, nil
}

func (f *fakeRenditionStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	f.failed[id] = reason
	for key, r := range f.byKey {
		if r.ID == id {
			r.Status = domain.RenditionFailed
			r.FailureReason = &reason
			delete(f.byKey, key)
		}
	}
	return nil
}

type fakeSubtitleStore struct {
	created []*domain.Subtitle
	failed  map[uuid.UUID]bool
}

func newFakeSubtitleStore() *fakeSubtitleStore {
	return &fakeSubtitleStore{failed: make(map[uuid.UUID]bool)}
}

func (f *fakeSubtitleStore) Create(ctx context.Context, s *domain.Subtitle) error {
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSubtitleStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	f.failed[id] = true
	return nil
}

func testFixtures() (*domain.Video, *domain.Profile) {
	video := domain.NewVideo("sources", "file-1", 1024)
	profile := domain.NewProfile("720p", 2000, 128, 1280, 720)
	return video, profile
}

func TestDispatchEncodeStartsWorkflow(t *testing.T) {
	starter := &fakeStarter{}
	renditions := newFakeRenditionStore()
	d := NewDispatcher(starter, renditions, newFakeSubtitleStore(), zap.NewNop())
	video, profile := testFixtures()

	rendition, err := d.DispatchEncode(context.Background(), video, profile, domain.OutputHLS)
	require.NoError(t, err)

	assert.Equal(t, 1, starter.encodes)
	assert.Equal(t, domain.RenditionPending, rendition.Status)
	assert.Equal(t, video.ID, rendition.VideoID)
}

func TestDispatchEncodeIsIdempotent(t *testing.T) {
	starter := &fakeStarter{}
	renditions := newFakeRenditionStore()
	d := NewDispatcher(starter, renditions, newFakeSubtitleStore(), zap.NewNop())
	video, profile := testFixtures()

	first, err := d.DispatchEncode(context.Background(), video, profile, domain.OutputHLS)
	require.NoError(t, err)

	second, err := d.DispatchEncode(context.Background(), video, profile, domain.OutputHLS)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, starter.encodes, "second dispatch must not start another run")
}

func TestDispatchEncodeDifferentOutputsAreSeparate(t *testing.T) {
	starter := &fakeStarter{}
	d := NewDispatcher(starter, newFakeRenditionStore(), newFakeSubtitleStore(), zap.NewNop())
	video, profile := testFixtures()

	hls, err := d.DispatchEncode(context.Background(), video, profile, domain.OutputHLS)
	require.NoError(t, err)
	dash, err := d.DispatchEncode(context.Background(), video, profile, domain.OutputDASH)
	require.NoError(t, err)

	assert.NotEqual(t, hls.ID, dash.ID)
	assert.Equal(t, 2, starter.encodes)
}

func TestDispatchEncodeEnqueueFailureMarksFailed(t *testing.T) {
	starter := &fakeStarter{encodeErr: errors.New("queue down")}
	renditions := newFakeRenditionStore()
	d := NewDispatcher(starter, renditions, newFakeSubtitleStore(), zap.NewNop())
	video, profile := testFixtures()

	_, err := d.DispatchEncode(context.Background(), video, profile, domain.OutputHLS)
	require.Error(t, err)

	require.Len(t, renditions.failed, 1, "unenqueued rendition must not stay pending")
	for _, reason := range renditions.failed {
		assert.Equal(t, "failed to enqueue encode", reason)
	}
}

func TestDispatchEncodeAfterFailureStartsFresh(t *testing.T) {
	starter := &fakeStarter{encodeErr: errors.New("queue down")}
	renditions := newFakeRenditionStore()
	d := NewDispatcher(starter, renditions, newFakeSubtitleStore(), zap.NewNop())
	video, profile := testFixtures()

	_, err := d.DispatchEncode(context.Background(), video, profile, domain.OutputHLS)
	require.Error(t, err)
	require.Len(t, renditions.failed, 1)

	starter.encodeErr = nil
	rendition, err := d.DispatchEncode(context.Background(), video, profile, domain.OutputHLS)
	require.NoError(t, err, "failed rendition must not block re-dispatch")

	assert.Equal(t, 2, starter.encodes)
	assert.Equal(t, domain.RenditionPending, rendition.Status)
	_, wasFailed := renditions.failed[rendition.ID]
	assert.False(t, wasFailed, "re-dispatch must produce a fresh record")
}

func TestDispatchSubtitle(t *testing.T) {
	starter := &fakeStarter{}
	subtitles := newFakeSubtitleStore()
	d := NewDispatcher(starter, newFakeRenditionStore(), subtitles, zap.NewNop())
	video, _ := testFixtures()

	subtitle, err := d.DispatchSubtitle(context.Background(), video, "sources", "subs-1", "English", "eng", true)
	require.NoError(t, err)

	assert.Equal(t, 1, starter.subtitles)
	require.Len(t, subtitles.created, 1)
	assert.Equal(t, domain.SubtitlePending, subtitle.Status)
	assert.True(t, subtitle.Default)
}

func TestDispatchSubtitleEnqueueFailureMarksFailed(t *testing.T) {
	starter := &fakeStarter{subtitleErr: errors.New("queue down")}
	subtitles := newFakeSubtitleStore()
	d := NewDispatcher(starter, newFakeRenditionStore(), subtitles, zap.NewNop())
	video, _ := testFixtures()

	_, err := d.DispatchSubtitle(context.Background(), video, "sources", "subs-1", "English", "eng", false)
	require.Error(t, err)

	require.Len(t, subtitles.created, 1)
	assert.True(t, subtitles.failed[subtitles.created[0].ID])
}

func TestDispatchTimelineAndPreview(t *testing.T) {
	starter := &fakeStarter{}
	d := NewDispatcher(starter, newFakeRenditionStore(), newFakeSubtitleStore(), zap.NewNop())
	video, _ := testFixtures()

	require.NoError(t, d.DispatchTimeline(context.Background(), video))
	assert.Equal(t, 1, starter.timelines)

	preview, err := d.DispatchPreview(context.Background(), video, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, starter.previews)
	assert.Equal(t, 42, preview.Second)
	assert.False(t, preview.Sprite)
}
