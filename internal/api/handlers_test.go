package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/streampack/vod/internal/config"
	"github.com/streampack/vod/internal/db"
	"github.com/streampack/vod/internal/domain"
	"github.com/streampack/vod/internal/metrics"
)

type fakeVideos struct {
	byID map[uuid.UUID]*domain.Video
}

func (f *fakeVideos) Create(ctx context.Context, v *domain.Video) error {
	f.byID[v.ID] = v
	return nil
}

func (f *fakeVideos) GetByID(ctx context.Context, id uuid.UUID) (*domain.Video, error) {
	if v, ok := f.byID[id]; ok {
		return v, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeVideos) List(ctx context.Context, limit, offset int) ([]*domain.Video, error) {
	out := make([]*domain.Video, 0, len(f.byID))
	for _, v := range f.byID {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeVideos) Count(ctx context.Context) (int, error) { return len(f.byID), nil }

func (f *fakeVideos) Update(ctx context.Context, v *domain.Video) error {
	if _, ok := f.byID[v.ID]; !ok {
		return db.ErrNotFound
	}
	f.byID[v.ID] = v
	return nil
}

func (f *fakeVideos) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeProfiles struct {
	byID map[uuid.UUID]*domain.Profile
}

func (f *fakeProfiles) Create(ctx context.Context, p *domain.Profile) error {
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProfiles) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeProfiles) List(ctx context.Context) ([]*domain.Profile, error) {
	out := make([]*domain.Profile, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProfiles) Update(ctx context.Context, p *domain.Profile) error {
	if _, ok := f.byID[p.ID]; !ok {
		return db.ErrNotFound
	}
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProfiles) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeRenditions struct {
	byID  map[uuid.UUID]*domain.Rendition
	order []uuid.UUID
}

func (f *fakeRenditions) add(r *domain.Rendition) {
	f.byID[r.ID] = r
	f.order = append(f.order, r.ID)
}

func (f *fakeRenditions) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rendition, error) {
	if r, ok := f.byID[id]; ok {
		return r, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeRenditions) GetReady(ctx context.Context, id uuid.UUID) (*domain.Rendition, error) {
	r, err := f.GetByID(ctx, id)
	if err != nil || r.Status != domain.RenditionReady {
		return nil, db.ErrNotFound
	}
	return r, nil
}

func (f *fakeRenditions) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Rendition, error) {
	var out []*domain.Rendition
	for _, id := range f.order {
		if r := f.byID[id]; r != nil && r.VideoID == videoID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRenditions) ListAll(ctx context.Context) ([]*domain.Rendition, error) {
	var out []*domain.Rendition
	for _, id := range f.order {
		if r := f.byID[id]; r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRenditions) ListReadyByVideo(ctx context.Context, videoID uuid.UUID, output domain.OutputFormat) ([]*domain.Rendition, error) {
	var out []*domain.Rendition
	for _, id := range f.order {
		r := f.byID[id]
		if r != nil && r.VideoID == videoID && r.Output == output && r.Status == domain.RenditionReady {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRenditions) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeSubtitles struct {
	byID map[uuid.UUID]*domain.Subtitle
}

func (f *fakeSubtitles) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subtitle, error) {
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeSubtitles) GetReady(ctx context.Context, id uuid.UUID) (*domain.Subtitle, error) {
	s, err := f.GetByID(ctx, id)
	if err != nil || s.Status != domain.SubtitleReady {
		return nil, db.ErrNotFound
	}
	return s, nil
}

func (f *fakeSubtitles) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Subtitle, error) {
	var out []*domain.Subtitle
	for _, s := range f.byID {
		if s.VideoID == videoID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubtitles) ListReadyByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Subtitle, error) {
	var out []*domain.Subtitle
	for _, s := range f.byID {
		if s.VideoID == videoID && s.Status == domain.SubtitleReady {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubtitles) Update(ctx context.Context, s *domain.Subtitle) error {
	if _, ok := f.byID[s.ID]; !ok {
		return db.ErrNotFound
	}
	f.byID[s.ID] = s
	return nil
}

func (f *fakeSubtitles) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeSegments struct {
	byID map[uuid.UUID]*domain.Segment
}

func (f *fakeSegments) add(s *domain.Segment) { f.byID[s.ID] = s }

func (f *fakeSegments) GetByID(ctx context.Context, id uuid.UUID) (*domain.Segment, error) {
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeSegments) ListByRendition(ctx context.Context, renditionID uuid.UUID) ([]*domain.Segment, error) {
	var out []*domain.Segment
	for _, s := range f.byID {
		if s.RenditionID != nil && *s.RenditionID == renditionID {
			out = append(out, s)
		}
	}
	domain.SortSegments(out)
	return out, nil
}

func (f *fakeSegments) ListByRenditionStream(ctx context.Context, renditionID uuid.UUID, streamID int) ([]*domain.Segment, error) {
	var out []*domain.Segment
	for _, s := range f.byID {
		if s.RenditionID != nil && *s.RenditionID == renditionID && s.StreamID == streamID {
			out = append(out, s)
		}
	}
	domain.SortSegments(out)
	return out, nil
}

func (f *fakeSegments) ListBySubtitle(ctx context.Context, subtitleID uuid.UUID) ([]*domain.Segment, error) {
	var out []*domain.Segment
	for _, s := range f.byID {
		if s.SubtitleID != nil && *s.SubtitleID == subtitleID {
			out = append(out, s)
		}
	}
	domain.SortSegments(out)
	return out, nil
}

func (f *fakeSegments) DeleteByRendition(ctx context.Context, renditionID uuid.UUID) error {
	for id, s := range f.byID {
		if s.RenditionID != nil && *s.RenditionID == renditionID {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *fakeSegments) DeleteBySubtitle(ctx context.Context, subtitleID uuid.UUID) error {
	for id, s := range f.byID {
		if s.SubtitleID != nil && *s.SubtitleID == subtitleID {
			delete(f.byID, id)
		}
	}
	return nil
}

type fakePreviews struct {
	byID map[uuid.UUID]*domain.Preview
}

func (f *fakePreviews) GetByID(ctx context.Context, id uuid.UUID) (*domain.Preview, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakePreviews) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Preview, error) {
	var out []*domain.Preview
	for _, p := range f.byID {
		if p.VideoID == videoID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePreviews) DeleteByVideo(ctx context.Context, videoID uuid.UUID) error {
	for id, p := range f.byID {
		if p.VideoID == videoID {
			delete(f.byID, id)
		}
	}
	return nil
}

type fakeObjectStore struct {
	objects map[string][]byte
}

func (f *fakeObjectStore) Read(ctx context.Context, key string) ([]byte, error) {
	if data, ok := f.objects[key]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("no such key %q", key)
}

func (f *fakeObjectStore) ReadRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %q", key)
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	return io.NopCloser(bytes.NewReader(data[start : end+1])), nil
}

func (f *fakeObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
		}
	}
	return nil
}

func (f *fakeObjectStore) Health(ctx context.Context) error { return nil }

type fakeDispatcher struct {
	encodes   int
	subtitles int
	timelines int
	previews  int
	encodeErr error
}

func (f *fakeDispatcher) DispatchEncode(ctx context.Context, video *domain.Video, profile *domain.Profile, output domain.OutputFormat) (*domain.Rendition, error) {
	f.encodes++
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	return domain.NewRendition(video, profile, output), nil
}

func (f *fakeDispatcher) DispatchSubtitle(ctx context.Context, video *domain.Video, bucketID, fileID, name, code string, isDefault bool) (*domain.Subtitle, error) {
	f.subtitles++
	return domain.NewSubtitle(video.ID, bucketID, fileID, name, code, isDefault), nil
}

func (f *fakeDispatcher) DispatchTimeline(ctx context.Context, video *domain.Video) error {
	f.timelines++
	return nil
}

func (f *fakeDispatcher) DispatchPreview(ctx context.Context, video *domain.Video, second int) (*domain.Preview, error) {
	f.previews++
	return domain.NewPreview(video.ID, second, false), nil
}

type testEnv struct {
	videos     *fakeVideos
	profiles   *fakeProfiles
	renditions *fakeRenditions
	subtitles  *fakeSubtitles
	segments   *fakeSegments
	previews   *fakePreviews
	store      *fakeObjectStore
	dispatcher *fakeDispatcher
	router     http.Handler
}

var testMetrics = metrics.New()

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		videos:     &fakeVideos{byID: make(map[uuid.UUID]*domain.Video)},
		profiles:   &fakeProfiles{byID: make(map[uuid.UUID]*domain.Profile)},
		renditions: &fakeRenditions{byID: make(map[uuid.UUID]*domain.Rendition)},
		subtitles:  &fakeSubtitles{byID: make(map[uuid.UUID]*domain.Subtitle)},
		segments:   &fakeSegments{byID: make(map[uuid.UUID]*domain.Segment)},
		previews:   &fakePreviews{byID: make(map[uuid.UUID]*domain.Preview)},
		store:      &fakeObjectStore{objects: make(map[string][]byte)},
		dispatcher: &fakeDispatcher{},
	}

	cfg := &config.Config{
		Segments: config.SegmentsConfig{TargetDurationSec: 10, ServeChunkBytes: 64},
		Preview: config.PreviewConfig{
			MaxWidth:     1280,
			MaxHeight:    720,
			Quality:      80,
			CacheEntries: 16,
			CacheTTL:     time.Hour,
		},
	}

	handler := NewHandler(cfg,
		env.videos, env.profiles, env.renditions, env.subtitles,
		env.segments, env.previews, env.store, env.dispatcher,
		zap.NewNop(), testMetrics)
	env.router = NewRouter(handler, zap.NewNop())
	return env
}

func (e *testEnv) seedVideo() *domain.Video {
	video := domain.NewVideo("sources", "file-1", 4096)
	e.videos.byID[video.ID] = video
	return video
}

func (e *testEnv) seedReadyRendition(video *domain.Video, name, lang string) *domain.Rendition {
	profile := domain.NewProfile(name, 2000, 128, 1280, 720)
	rendition := domain.NewRendition(video, profile, domain.OutputHLS)
	rendition.Status = domain.RenditionReady
	rendition.TargetDuration = 10
	rendition.Metadata = domain.RenditionMetadata{
		Streams: []domain.StreamMetadata{
			{Type: domain.StreamVideo, ID: 0, Resolution: "1280x720", Bandwidth: 2179072},
			{Type: domain.StreamAudio, ID: 1, Language: lang, Bandwidth: 131072},
		},
	}
	e.renditions.add(rendition)

	for i := 0; i < 3; i++ {
		seg := domain.NewRenditionSegment(rendition.ID, 0, i, 10, false, rendition.Path, fmt.Sprintf("segment_%03d.ts", i), 1024)
		e.segments.add(seg)
	}
	return rendition
}

func (e *testEnv) do(method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["code"]
}

func TestMasterManifestDeduplicatesAudioAcrossRenditions(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()
	env.seedReadyRendition(video, "720p", "eng")
	env.seedReadyRendition(video, "480p", "eng")

	rec := env.do(http.MethodGet, "/v1/videos/"+video.ID.String()+"/outputs/hls/master.m3u8", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/x-mpegurl", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "TYPE=AUDIO"), body)
	assert.Equal(t, 2, strings.Count(body, "#EXT-X-STREAM-INF"), body)
	assert.Contains(t, body, "DEFAULT=YES")
}

func TestMasterManifestNoReadyRenditions(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()

	rec := env.do(http.MethodGet, "/v1/videos/"+video.ID.String()+"/outputs/hls/master.m3u8", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeRenditionNotFound, errorCode(t, rec))
}

func TestMasterManifestInvalidOutput(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()

	rec := env.do(http.MethodGet, "/v1/videos/"+video.ID.String()+"/outputs/rtmp/master.m3u8", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeOutputNotValid, errorCode(t, rec))
}

func TestMediaPlaylist(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()
	rendition := env.seedReadyRendition(video, "720p", "eng")

	base := "/v1/videos/" + video.ID.String() + "/outputs/hls/renditions/" + rendition.ID.String()
	rec := env.do(http.MethodGet, base+"/streams/0/playlist.m3u8", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.String()
	assert.Contains(t, body, "#EXT-X-TARGETDURATION:10")
	assert.Equal(t, 3, strings.Count(body, "#EXTINF"))
	assert.Contains(t, body, "#EXT-X-ENDLIST")

	rec = env.do(http.MethodGet, base+"/streams/7/playlist.m3u8", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeSegmentNotFound, errorCode(t, rec))
}

func TestSegmentRangeServing(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()
	rendition := env.seedReadyRendition(video, "720p", "eng")

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	segment := domain.NewRenditionSegment(rendition.ID, 0, 99, 10, false, rendition.Path, "segment_099.ts", int64(len(payload)))
	env.segments.add(segment)
	env.store.objects[segment.StorageKey()] = payload

	url := "/v1/videos/" + video.ID.String() + "/outputs/hls/renditions/" + rendition.ID.String() +
		"/streams/0/segments/" + segment.ID.String() + "/segment_099.ts"

	t.Run("full read", func(t *testing.T) {
		rec := env.do(http.MethodGet, url, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
		assert.Equal(t, payload, rec.Body.Bytes())
	})

	t.Run("partial read", func(t *testing.T) {
		rec := env.do(http.MethodGet, url, nil, map[string]string{"Range": "bytes=10-19"})
		require.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Equal(t, "bytes 10-19/100", rec.Header().Get("Content-Range"))
		assert.Equal(t, payload[10:20], rec.Body.Bytes())
	})

	t.Run("open ended read", func(t *testing.T) {
		rec := env.do(http.MethodGet, url, nil, map[string]string{"Range": "bytes=90-"})
		require.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Equal(t, "bytes 90-99/100", rec.Header().Get("Content-Range"))
		assert.Equal(t, payload[90:], rec.Body.Bytes())
	})

	t.Run("end at size", func(t *testing.T) {
		rec := env.do(http.MethodGet, url, nil, map[string]string{"Range": "bytes=0-100"})
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
		assert.Equal(t, CodeInvalidRange, errorCode(t, rec))
	})

	t.Run("inverted", func(t *testing.T) {
		rec := env.do(http.MethodGet, url, nil, map[string]string{"Range": "bytes=20-10"})
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	})

	t.Run("bad unit", func(t *testing.T) {
		rec := env.do(http.MethodGet, url, nil, map[string]string{"Range": "items=0-10"})
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	})

	t.Run("without stream path", func(t *testing.T) {
		alt := "/v1/videos/" + video.ID.String() + "/outputs/hls/renditions/" + rendition.ID.String() +
			"/segments/" + segment.ID.String() + "/segment_099.ts"
		rec := env.do(http.MethodGet, alt, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestDispatchRendition(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()
	profile := domain.NewProfile("720p", 2000, 128, 1280, 720)
	env.profiles.byID[profile.ID] = profile

	rec := env.do(http.MethodPost, "/v1/videos/"+video.ID.String()+"/rendition",
		DispatchRenditionRequest{ProfileID: profile.ID, Output: "hls"}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, env.dispatcher.encodes)
}

func TestDispatchRenditionUnknownProfile(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()

	rec := env.do(http.MethodPost, "/v1/videos/"+video.ID.String()+"/rendition",
		DispatchRenditionRequest{ProfileID: uuid.New(), Output: "hls"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeProfileNotFound, errorCode(t, rec))
	assert.Zero(t, env.dispatcher.encodes)
}

func TestDispatchRenditionInvalidOutput(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()

	rec := env.do(http.MethodPost, "/v1/videos/"+video.ID.String()+"/rendition",
		DispatchRenditionRequest{ProfileID: uuid.New(), Output: "rtmp"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeOutputNotValid, errorCode(t, rec))
}

func TestCreateVideoDispatchesAnalysis(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/videos",
		CreateVideoRequest{BucketID: "sources", FileID: "file-9", Size: 1024}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, env.dispatcher.timelines)

	var video domain.Video
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &video))
	assert.Equal(t, "file-9", video.FileID)
}

func TestUpdateVideoReplacesSource(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()
	duration := 120.0
	video.Duration = &duration

	rec := env.do(http.MethodPut, "/v1/videos/"+video.ID.String(),
		CreateVideoRequest{BucketID: "sources", FileID: "file-2", Size: 2048}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	updated := env.videos.byID[video.ID]
	assert.Equal(t, "file-2", updated.FileID)
	assert.Nil(t, updated.Duration, "probe summary resets on source replace")
	assert.Equal(t, 1, env.dispatcher.timelines)
}

func TestCreateVideoRejectsBadMimeType(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/videos",
		CreateVideoRequest{BucketID: "sources", FileID: "f", MimeType: "application/pdf"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeVideoNotValid, errorCode(t, rec))
}

func TestCreateSubtitleValidatesLanguageCode(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()

	rec := env.do(http.MethodPost, "/v1/videos/"+video.ID.String()+"/subtitles",
		CreateSubtitleRequest{BucketID: "b", FileID: "f", Name: "English", Code: "english"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeLanguageCodeNotValid, errorCode(t, rec))
	assert.Zero(t, env.dispatcher.subtitles)

	rec = env.do(http.MethodPost, "/v1/videos/"+video.ID.String()+"/subtitles",
		CreateSubtitleRequest{BucketID: "b", FileID: "f", Name: "English", Code: "eng"}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, env.dispatcher.subtitles)
}

func TestGetTimeline(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()

	rec := env.do(http.MethodGet, "/v1/videos/"+video.ID.String()+"/timeline", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeTimelineNotFound, errorCode(t, rec))

	env.store.objects[domain.TimelineKey(video.ID)] = []byte("WEBVTT\n")
	rec = env.do(http.MethodGet, "/v1/videos/"+video.ID.String()+"/timeline", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/vtt", rec.Header().Get("Content-Type"))
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestGetPreviewNegotiatesFormat(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()
	p := domain.NewPreview(video.ID, 5, false)
	env.previews.byID[p.ID] = p
	env.store.objects[p.StorageKey()] = jpegBytes(t, 32, 32)

	url := "/v1/videos/" + video.ID.String() + "/preview/" + p.ID.String() + "?output=webp"

	rec := env.do(http.MethodGet, url, nil, map[string]string{"Accept": "image/jpeg"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"), "webp downgrades when not accepted")

	rec = env.do(http.MethodGet, url, nil, map[string]string{"Accept": "image/webp,image/*"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=2592000")
}

func TestGetPreviewNotStoredYet(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()
	p := domain.NewPreview(video.ID, 5, false)
	env.previews.byID[p.ID] = p

	rec := env.do(http.MethodGet, "/v1/videos/"+video.ID.String()+"/preview/"+p.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodePreviewNotFound, errorCode(t, rec))
}

func TestDeleteVideoRemovesAssets(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()
	env.seedReadyRendition(video, "720p", "eng")
	subtitle := domain.NewSubtitle(video.ID, "sources", "subs-1", "English", "eng", true)
	env.subtitles.byID[subtitle.ID] = subtitle
	env.segments.add(domain.NewSubtitleSegment(subtitle.ID, 0, 6, subtitle.Path, "segment_000.vtt", 256))
	p := domain.NewPreview(video.ID, 5, false)
	env.previews.byID[p.ID] = p
	env.store.objects[video.ID.String()+"/renditions/x/segment_000.ts"] = []byte("data")

	rec := env.do(http.MethodDelete, "/v1/videos/"+video.ID.String(), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.store.objects)
	assert.Empty(t, env.videos.byID)
	assert.Empty(t, env.renditions.byID)
	assert.Empty(t, env.subtitles.byID)
	assert.Empty(t, env.segments.byID, "segment rows must go with the video")
	assert.Empty(t, env.previews.byID, "preview rows must go with the video")
}

func TestDeleteRenditionPurgesSegments(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()
	rendition := env.seedReadyRendition(video, "720p", "eng")

	rec := env.do(http.MethodDelete,
		"/v1/videos/"+video.ID.String()+"/renditions/"+rendition.ID.String(), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	segments, err := env.segments.ListByRendition(context.Background(), rendition.ID)
	require.NoError(t, err)
	assert.Empty(t, segments, "deleted rendition must leave no segment rows")

	rec = env.do(http.MethodGet, "/v1/videos/"+video.ID.String()+"/outputs/hls/master.m3u8", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeRenditionNotFound, errorCode(t, rec))
}

func TestDeleteSubtitlePurgesSegments(t *testing.T) {
	env := newTestEnv(t)
	video := env.seedVideo()
	subtitle := domain.NewSubtitle(video.ID, "sources", "subs-1", "English", "eng", true)
	subtitle.Status = domain.SubtitleReady
	env.subtitles.byID[subtitle.ID] = subtitle
	env.segments.add(domain.NewSubtitleSegment(subtitle.ID, 0, 6, subtitle.Path, "segment_000.vtt", 256))

	rec := env.do(http.MethodDelete,
		"/v1/videos/"+video.ID.String()+"/subtitles/"+subtitle.ID.String(), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	segments, err := env.segments.ListBySubtitle(context.Background(), subtitle.ID)
	require.NoError(t, err)
	assert.Empty(t, segments, "deleted subtitle must leave no segment rows")
}

func TestProfileValidationRanges(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/videos/profiles",
		ProfileRequest{Name: "bad", VideoBitRate: 10_000, AudioBitRate: 128, Width: 1280, Height: 720}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeProfileNotValid, errorCode(t, rec))

	rec = env.do(http.MethodPost, "/v1/videos/profiles",
		ProfileRequest{Name: "720p", VideoBitRate: 2000, AudioBitRate: 128, Width: 1280, Height: 720}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestParseByteRange(t *testing.T) {
	start, end, err := parseByteRange("bytes=0-49", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(49), end)

	start, end, err = parseByteRange("bytes=50-", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50), start)
	assert.Equal(t, int64(99), end)

	for _, header := range []string{
		"items=0-10",
		"bytes=10-5",
		"bytes=0-100",
		"bytes=100-",
		"bytes=-10",
		"bytes=0-10,20-30",
		"bytes=abc-def",
	} {
		_, _, err := parseByteRange(header, 100)
		assert.Error(t, err, header)
	}
}
