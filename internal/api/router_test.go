package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentfactory/internal/app"
	"contentfactory/internal/avatar"
	"contentfactory/internal/model"
	"contentfactory/internal/provider"
	"contentfactory/internal/settings"
	"contentfactory/internal/store/memory"
	"contentfactory/pkg/config"
)

type stubGenerator struct{}

func (stubGenerator) GenerateVideo(context.Context, provider.Request) (*provider.Result, error) {
	return &provider.Result{VideoID: "hg1", Status: "processing"}, nil
}

func (stubGenerator) GenerateVideoFromTemplate(context.Context, provider.TemplateRequest) (*provider.Result, error) {
	return nil, provider.ErrTemplateUnsupported
}

func (stubGenerator) GetVideoStatus(context.Context, string) (*provider.Status, error) {
	return &provider.Status{Status: "completed", VideoURL: "https://cdn/v.mp4"}, nil
}

func (stubGenerator) Name() string { return "heygen" }

type testServer struct {
	router  *gin.Engine
	service *app.Service
	store   *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Video.DefaultDuration = 30
	cfg.Video.DuplicateWindow = 6 * time.Hour
	cfg.Dispatch.Timeout = time.Minute

	st := memory.New()
	resolver := avatar.NewResolver(st, nil, nil)
	settingsService := settings.New(st, nil, 0)
	service := app.NewService(app.ServiceOptions{
		Config:    cfg,
		Videos:    st,
		PlanItems: st,
		Prefs:     st,
		Settings:  settingsService,
		Resolver:  resolver,
		Providers: map[model.VideoProvider]provider.Generator{model.ProviderHeyGen: stubGenerator{}},
	})
	t.Cleanup(service.Wait)

	manager := avatar.NewManager(avatar.ManagerOptions{Avatars: st, Resolver: resolver})
	return &testServer{
		router:  NewRouter(NewHandler(service, manager, settingsService)),
		service: service,
		store:   st,
	}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userHeader, user)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) addAvatar(t *testing.T, user string) *model.Avatar {
	t.Helper()
	a := &model.Avatar{UserID: user, HeyGenAvatarID: "hg_av", Source: model.SourceSynced,
		Kind: model.KindStandard, Status: model.AvatarActive, IsDefault: true}
	require.NoError(t, s.store.InsertAvatar(context.Background(), a))
	return a
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequiresUser(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/videos", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateVideo(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		withAvatar bool
		wantStatus int
	}{
		{
			name:       "accepted",
			body:       map[string]any{"topic": "sleep", "script": "go to bed", "style": "casual", "duration": 20},
			withAvatar: true,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "missingTopic",
			body:       map[string]any{"style": "casual"},
			withAvatar: true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknownStyle",
			body:       map[string]any{"topic": "sleep", "style": "dramatic"},
			withAvatar: true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "noAvatar",
			body:       map[string]any{"topic": "sleep"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknownAvatar",
			body:       map[string]any{"topic": "sleep", "avatar_id": "nope"},
			withAvatar: true,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.withAvatar {
				s.addAvatar(t, "u1")
			}

			rec := s.do(t, http.MethodPost, "/api/videos", "u1", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus == http.StatusAccepted {
				var video model.Video
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &video))
				assert.Equal(t, model.StatusPending, video.Status)
				assert.Equal(t, "u1", video.UserID)
			}
		})
	}
}

func TestVideoLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.addAvatar(t, "u1")

	rec := s.do(t, http.MethodPost, "/api/videos", "u1", map[string]any{"topic": "sleep", "script": "go to bed"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var video model.Video
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &video))
	s.service.Wait()

	rec = s.do(t, http.MethodGet, "/api/videos/"+video.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/videos/"+video.ID+"/retry", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/videos/"+video.ID+"/status", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status app.StatusResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, model.StatusCompleted, status.Video.Status)

	rec = s.do(t, http.MethodGet, "/api/videos", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var videos []model.Video
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &videos))
	assert.Len(t, videos, 1)

	rec = s.do(t, http.MethodDelete, "/api/videos/"+video.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/videos/"+video.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishWithoutUploader(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/videos/v1/publish", "u1", map[string]any{"privacy": "public"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateScriptWithoutWriter(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/scripts", "u1", map[string]any{"topic": "sleep"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvatarRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/avatars", "u1", map[string]any{"name": "Anna", "heygen_avatar_id": "Anna_public"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.Avatar
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.IsDefault)

	rec = s.do(t, http.MethodPost, "/api/avatars", "u1", map[string]any{"name": "Nobody"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/avatars", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var avatars []model.Avatar
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &avatars))
	assert.Len(t, avatars, 1)

	rec = s.do(t, http.MethodPost, "/api/avatars/missing/default", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/avatars/sync", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/avatars/"+created.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSettingsRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/settings/video_provider", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"video_provider","value":"heygen"}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/settings/video_provider", "u1", map[string]any{"value": "runway"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/settings/video_provider", "u1", map[string]any{"value": "sora"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/settings/video_provider", "u1", nil)
	assert.JSONEq(t, `{"key":"video_provider","value":"sora"}`, rec.Body.String())
}

func TestPreferencesRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/preferences", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1"}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/preferences", "u1", map[string]any{"output_resolution": "4k"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/preferences", "u1", map[string]any{"voice_id": "v1", "aspect_ratio": "9:16"})
	require.Equal(t, http.StatusOK, rec.Code)

	prefs, err := s.store.GetPreferences(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "v1", prefs.VoiceID)
	assert.Equal(t, "9:16", prefs.AspectRatio)

	rec = s.do(t, http.MethodGet, "/api/preferences", "u2", nil)
	assert.JSONEq(t, `{"user_id":"u2"}`, rec.Body.String())
}
