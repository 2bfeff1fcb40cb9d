package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"contentfactory/internal/avatar"
	"contentfactory/internal/distribution"
	"contentfactory/internal/llm"
	"contentfactory/internal/model"
	"contentfactory/internal/provider"
	"contentfactory/internal/store/memory"
	"contentfactory/pkg/config"
)

type fixture struct {
	store    *memory.Store
	gen      *MockGenerator
	uploader *MockUploader
	writer   *MockScriptWriter
	service  *Service
	cfg      *config.Config

	defaultAvatar *model.Avatar
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Video.DefaultDuration = 30
	cfg.Video.DuplicateWindow = 6 * time.Hour
	cfg.Dispatch.Timeout = time.Minute
	cfg.HeyGen.VoiceID = "voice"
	cfg.HeyGen.OutputResolution = "720p"
	cfg.YouTube.PrivacyStatus = "private"
	return cfg
}

func newFixture(t *testing.T, configure ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	f := &fixture{
		store:    memory.New(),
		gen:      new(MockGenerator),
		uploader: new(MockUploader),
		writer:   new(MockScriptWriter),
		cfg:      cfg,
	}
	f.defaultAvatar = f.addAvatar(t, "hg_default", true)

	f.service = NewService(ServiceOptions{
		Config:    cfg,
		Videos:    f.store,
		PlanItems: f.store,
		Prefs:     f.store,
		Settings:  fixedProvider(model.ProviderHeyGen),
		Resolver:  avatar.NewResolver(f.store, nil, nil),
		Providers: map[model.VideoProvider]provider.Generator{model.ProviderHeyGen: f.gen},
		Uploader:  f.uploader,
	})
	return f
}

func (f *fixture) addAvatar(t *testing.T, providerID string, isDefault bool) *model.Avatar {
	t.Helper()
	a := &model.Avatar{
		UserID:         "u1",
		Name:           providerID,
		HeyGenAvatarID: providerID,
		Source:         model.SourceSynced,
		Kind:           model.KindStandard,
		Status:         model.AvatarActive,
		IsDefault:      isDefault,
	}
	require.NoError(t, f.store.InsertAvatar(context.Background(), a))
	return a
}

func (f *fixture) stored(t *testing.T, id string) *model.Video {
	t.Helper()
	v, err := f.store.GetVideoByID(context.Background(), id)
	require.NoError(t, err)
	return v
}

func avatarRequest(avatarID string) interface{} {
	return mock.MatchedBy(func(req provider.Request) bool {
		return req.Params.AvatarID == avatarID
	})
}

func baseRequest() Request {
	return Request{
		UserID:   "u1",
		Topic:    "morning routines",
		Script:   "wake up early and stretch",
		Style:    model.StyleCasual,
		Duration: 30,
	}
}

func TestRequestManualVideo(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatchesPendingVideo", func(t *testing.T) {
		f := newFixture(t)
		f.gen.On("GenerateVideo", mock.Anything, mock.MatchedBy(func(req provider.Request) bool {
			return req.Params.AvatarID == "hg_default" && req.Params.Style == model.StyleCasual &&
				req.Params.Script == "wake up early and stretch" && req.Params.Duration == 30
		})).
			Return(&provider.Result{VideoID: "hg1", Status: "processing"}, nil).Once()

		video, err := f.service.RequestManualVideo(ctx, baseRequest())
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, video.Status)
		assert.Equal(t, f.defaultAvatar.ID, video.AvatarRecordID())

		f.service.Wait()

		stored := f.stored(t, video.ID)
		assert.Equal(t, model.StatusGenerating, stored.Status)
		assert.Equal(t, "hg1", stored.ProviderID())
		assert.Nil(t, stored.ErrorMessage)
		f.gen.AssertExpectations(t)
	})

	t.Run("returnsDuplicateWithinWindow", func(t *testing.T) {
		f := newFixture(t)
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).
			Return(&provider.Result{VideoID: "hg1", Status: "processing"}, nil)

		first, err := f.service.RequestManualVideo(ctx, baseRequest())
		require.NoError(t, err)
		f.service.Wait()

		second, err := f.service.RequestManualVideo(ctx, baseRequest())
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		changed := baseRequest()
		changed.Script = "a different script"
		third, err := f.service.RequestManualVideo(ctx, changed)
		require.NoError(t, err)
		f.service.Wait()

		assert.NotEqual(t, first.ID, third.ID)
		f.gen.AssertNumberOfCalls(t, "GenerateVideo", 2)
	})

	t.Run("differentAvatarIsNotADuplicate", func(t *testing.T) {
		f := newFixture(t)
		other := f.addAvatar(t, "hg_other", false)
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).
			Return(&provider.Result{VideoID: "hg1"}, nil)

		first, err := f.service.RequestManualVideo(ctx, baseRequest())
		require.NoError(t, err)

		req := baseRequest()
		req.AvatarID = other.ID
		second, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)
		f.service.Wait()

		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("failedVideosAreNotReused", func(t *testing.T) {
		f := newFixture(t)
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).
			Return(nil, &provider.APIError{Provider: "heygen", StatusCode: http.StatusInternalServerError}).Once()
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).
			Return(&provider.Result{VideoID: "hg2"}, nil).Once()

		first, err := f.service.RequestManualVideo(ctx, baseRequest())
		require.NoError(t, err)
		f.service.Wait()
		assert.Equal(t, model.StatusFailed, f.stored(t, first.ID).Status)

		second, err := f.service.RequestManualVideo(ctx, baseRequest())
		require.NoError(t, err)
		f.service.Wait()
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("reusesPlanItemVideo", func(t *testing.T) {
		f := newFixture(t)
		existing := &model.Video{UserID: "u1", Topic: "old", Style: model.StyleCasual, Status: model.StatusCompleted}
		require.NoError(t, f.store.InsertVideo(ctx, existing))
		item := &model.PlanItem{UserID: "u1", VideoID: model.StringPtr(existing.ID), Status: model.StatusCompleted}
		require.NoError(t, f.store.InsertPlanItem(ctx, item))

		req := baseRequest()
		req.PlanItemID = item.ID
		video, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)
		f.service.Wait()

		assert.Equal(t, existing.ID, video.ID)
		f.gen.AssertNotCalled(t, "GenerateVideo", mock.Anything, mock.Anything)
	})

	t.Run("mirrorsStatusOntoPlanItem", func(t *testing.T) {
		f := newFixture(t)
		item := &model.PlanItem{UserID: "u1", Status: model.StatusPending}
		require.NoError(t, f.store.InsertPlanItem(ctx, item))
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).
			Return(nil, &provider.APIError{Provider: "heygen", StatusCode: http.StatusTooManyRequests})

		req := baseRequest()
		req.PlanItemID = item.ID
		video, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)
		f.service.Wait()

		got, err := f.store.GetPlanItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, video.ID, *got.VideoID)
		assert.Equal(t, model.StatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "heygen rate limit exceeded: try again later", *got.ErrorMessage)
	})

	t.Run("noAvatarConfigured", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.DeleteAvatar(ctx, "u1", f.defaultAvatar.ID))

		_, err := f.service.RequestManualVideo(ctx, baseRequest())
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("unknownRequestedAvatar", func(t *testing.T) {
		f := newFixture(t)
		req := baseRequest()
		req.AvatarID = "missing"

		_, err := f.service.RequestManualVideo(ctx, req)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalidStyle", func(t *testing.T) {
		f := newFixture(t)
		req := baseRequest()
		req.Style = "dramatic"

		_, err := f.service.RequestManualVideo(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("trimsScriptToDuration", func(t *testing.T) {
		f := newFixture(t)
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).Return(&provider.Result{VideoID: "hg1"}, nil)

		req := baseRequest()
		req.Duration = 2
		req.Script = "one two three four five six seven eight nine ten eleven twelve"
		video, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)
		f.service.Wait()

		assert.Equal(t, "one two three four five six seven eight nine ten", video.ScriptText())
	})

	t.Run("generatesMissingScript", func(t *testing.T) {
		f := newFixture(t)
		f.service.writer = f.writer
		f.writer.On("GenerateScript", mock.Anything, llm.ScriptRequest{Topic: "morning routines", Style: "casual", Duration: 30, WordCount: 90}).
			Return("rise and shine", nil)
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).Return(&provider.Result{VideoID: "hg1"}, nil)

		req := baseRequest()
		req.Script = ""
		video, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)
		f.service.Wait()

		assert.Equal(t, "rise and shine", video.ScriptText())
		assert.True(t, video.ScriptGenerated)
		f.writer.AssertExpectations(t)
	})

	t.Run("generatedScriptDedupes", func(t *testing.T) {
		f := newFixture(t)
		f.service.writer = f.writer
		f.writer.On("GenerateScript", mock.Anything, mock.Anything).Return("rise and shine", nil)
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).Return(&provider.Result{VideoID: "hg1"}, nil)

		req := baseRequest()
		req.Script = ""
		first, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)
		f.service.Wait()

		second, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)
		f.service.Wait()

		assert.Equal(t, first.ID, second.ID)
		f.writer.AssertNumberOfCalls(t, "GenerateScript", 1)
		f.gen.AssertNumberOfCalls(t, "GenerateVideo", 1)
	})

	t.Run("suppliedScriptSkipsGenerated", func(t *testing.T) {
		f := newFixture(t)
		f.service.writer = f.writer
		f.writer.On("GenerateScript", mock.Anything, mock.Anything).Return("rise and shine", nil)
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).Return(&provider.Result{VideoID: "hg1"}, nil)

		req := baseRequest()
		req.Script = ""
		generated, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)

		req.Script = "rise and shine"
		supplied, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)
		f.service.Wait()

		assert.NotEqual(t, generated.ID, supplied.ID)
		assert.False(t, supplied.ScriptGenerated)
	})
}

func TestDispatchTemplateFallback(t *testing.T) {
	ctx := context.Background()
	withTemplate := func(cfg *config.Config) { cfg.HeyGen.TemplateID = "tpl1" }

	t.Run("templateSuccess", func(t *testing.T) {
		f := newFixture(t, withTemplate)
		f.gen.On("GenerateVideoFromTemplate", mock.Anything, mock.MatchedBy(func(req provider.TemplateRequest) bool {
			return req.TemplateID == "tpl1" && req.Params.AvatarID == "hg_default"
		})).Return(&provider.Result{VideoID: "tpl_video", Status: "completed", VideoURL: "https://cdn/v.mp4"}, nil)

		video, err := f.service.RequestManualVideo(ctx, baseRequest())
		require.NoError(t, err)
		f.service.Wait()

		stored := f.stored(t, video.ID)
		assert.Equal(t, model.StatusCompleted, stored.Status)
		assert.Equal(t, "https://cdn/v.mp4", *stored.VideoURL)
		f.gen.AssertNotCalled(t, "GenerateVideo", mock.Anything, mock.Anything)
	})

	t.Run("fallsBackToAvatarRender", func(t *testing.T) {
		f := newFixture(t, withTemplate)
		f.gen.On("GenerateVideoFromTemplate", mock.Anything, mock.Anything).
			Return(nil, &provider.APIError{Provider: "heygen", StatusCode: http.StatusBadRequest, Message: "bad template"})
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).Return(&provider.Result{VideoID: "hg1"}, nil)

		video, err := f.service.RequestManualVideo(ctx, baseRequest())
		require.NoError(t, err)
		f.service.Wait()

		stored := f.stored(t, video.ID)
		assert.Equal(t, model.StatusGenerating, stored.Status)
		assert.Equal(t, "hg1", stored.ProviderID())
		f.gen.AssertExpectations(t)
	})

	t.Run("skipsAlreadyDispatchedVideo", func(t *testing.T) {
		f := newFixture(t)
		video := &model.Video{UserID: "u1", Topic: "t", Style: model.StyleCasual, Status: model.StatusGenerating,
			Provider: model.ProviderHeyGen, HeyGenVideoID: model.StringPtr("hg_existing")}
		require.NoError(t, f.store.InsertVideo(ctx, video))

		f.service.dispatch(ctx, dispatchJob{videoID: video.ID, allowAvatarRetry: true})

		assert.Equal(t, "hg_existing", f.stored(t, video.ID).ProviderID())
		f.gen.AssertNotCalled(t, "GenerateVideo", mock.Anything, mock.Anything)
	})
}

func TestDispatchAvatarNotFoundRetry(t *testing.T) {
	ctx := context.Background()
	notFound := &provider.APIError{Provider: "heygen", StatusCode: http.StatusBadRequest, Code: "avatar_not_found", Message: "avatar not found"}

	t.Run("retriesOnceWithDefaultAvatar", func(t *testing.T) {
		f := newFixture(t)
		gone := f.addAvatar(t, "hg_gone", false)
		f.gen.On("GenerateVideo", mock.Anything, avatarRequest("hg_gone")).Return(nil, notFound).Once()
		f.gen.On("GenerateVideo", mock.Anything, avatarRequest("hg_default")).
			Return(&provider.Result{VideoID: "hg_ok"}, nil).Once()

		req := baseRequest()
		req.AvatarID = gone.ID
		video, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)
		f.service.Wait()

		stored := f.stored(t, video.ID)
		assert.Equal(t, model.StatusGenerating, stored.Status)
		assert.Equal(t, f.defaultAvatar.ID, stored.AvatarRecordID())
		f.gen.AssertNumberOfCalls(t, "GenerateVideo", 2)
	})

	t.Run("secondFailureIsFinal", func(t *testing.T) {
		f := newFixture(t)
		gone := f.addAvatar(t, "hg_gone", false)
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).Return(nil, notFound)

		req := baseRequest()
		req.AvatarID = gone.ID
		video, err := f.service.RequestManualVideo(ctx, req)
		require.NoError(t, err)
		f.service.Wait()

		stored := f.stored(t, video.ID)
		assert.Equal(t, model.StatusFailed, stored.Status)
		assert.Equal(t, "heygen error: avatar not found", *stored.ErrorMessage)
		f.gen.AssertNumberOfCalls(t, "GenerateVideo", 2)
	})

	t.Run("otherErrorsAreNotRetried", func(t *testing.T) {
		f := newFixture(t)
		f.gen.On("GenerateVideo", mock.Anything, mock.Anything).
			Return(nil, &provider.APIError{Provider: "heygen", StatusCode: http.StatusUnauthorized})

		video, err := f.service.RequestManualVideo(ctx, baseRequest())
		require.NoError(t, err)
		f.service.Wait()

		stored := f.stored(t, video.ID)
		assert.Equal(t, "heygen authentication failed: check the API key", *stored.ErrorMessage)
		f.gen.AssertNumberOfCalls(t, "GenerateVideo", 1)
	})
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("failedVideoIsResetAndRedispatched", func(t *testing.T) {
		f := newFixture(t)
		video := &model.Video{
			UserID:        "u1",
			Topic:         "t",
			Style:         model.StyleCasual,
			Duration:      30,
			Status:        model.StatusFailed,
			Provider:      model.ProviderHeyGen,
			AvatarID:      model.StringPtr(f.defaultAvatar.ID),
			HeyGenVideoID: model.StringPtr("old"),
			VideoURL:      model.StringPtr("https://old"),
			ErrorMessage:  model.StringPtr("boom"),
		}
		require.NoError(t, f.store.InsertVideo(ctx, video))
		f.gen.On("GenerateVideo", mock.Anything, avatarRequest("hg_default")).
			Return(&provider.Result{VideoID: "new"}, nil).Once()

		got, err := f.service.Retry(ctx, "u1", video.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.Nil(t, got.HeyGenVideoID)
		assert.Nil(t, got.VideoURL)
		assert.Nil(t, got.ErrorMessage)

		f.service.Wait()
		assert.Equal(t, "new", f.stored(t, video.ID).ProviderID())
		f.gen.AssertNumberOfCalls(t, "GenerateVideo", 1)
	})

	t.Run("completedVideoIsRejected", func(t *testing.T) {
		f := newFixture(t)
		video := &model.Video{UserID: "u1", Topic: "t", Style: model.StyleCasual, Status: model.StatusCompleted,
			HeyGenVideoID: model.StringPtr("done")}
		require.NoError(t, f.store.InsertVideo(ctx, video))
		before := f.stored(t, video.ID)

		_, err := f.service.Retry(ctx, "u1", video.ID)
		assert.ErrorIs(t, err, ErrValidation)

		f.service.Wait()
		assert.Equal(t, before, f.stored(t, video.ID))
		f.gen.AssertNotCalled(t, "GenerateVideo", mock.Anything, mock.Anything)
	})

	t.Run("otherUsersVideo", func(t *testing.T) {
		f := newFixture(t)
		video := &model.Video{UserID: "u2", Topic: "t", Style: model.StyleCasual, Status: model.StatusFailed}
		require.NoError(t, f.store.InsertVideo(ctx, video))

		_, err := f.service.Retry(ctx, "u1", video.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRefreshStatus(t *testing.T) {
	ctx := context.Background()
	progress := 100

	tests := []struct {
		name       string
		status     model.VideoStatus
		providerID string
		reply      *provider.Status
		want       model.VideoStatus
		wantCall   bool
	}{
		{
			name:       "completed",
			status:     model.StatusGenerating,
			providerID: "hg1",
			reply:      &provider.Status{Status: "completed", VideoURL: "https://cdn/v.mp4", Progress: &progress},
			want:       model.StatusCompleted,
			wantCall:   true,
		},
		{
			name:       "failed",
			status:     model.StatusPending,
			providerID: "hg1",
			reply:      &provider.Status{Status: "failed", Error: "render crashed"},
			want:       model.StatusFailed,
			wantCall:   true,
		},
		{
			name:       "processing",
			status:     model.StatusPending,
			providerID: "hg1",
			reply:      &provider.Status{Status: "processing"},
			want:       model.StatusGenerating,
			wantCall:   true,
		},
		{
			name:       "notDispatched",
			status:     model.StatusPending,
			providerID: "",
			want:       model.StatusPending,
		},
		{
			name:       "alreadyCompleted",
			status:     model.StatusCompleted,
			providerID: "hg1",
			want:       model.StatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			video := &model.Video{UserID: "u1", Topic: "t", Style: model.StyleCasual, Status: tt.status, Provider: model.ProviderHeyGen}
			if tt.providerID != "" {
				video.HeyGenVideoID = model.StringPtr(tt.providerID)
			}
			require.NoError(t, f.store.InsertVideo(ctx, video))
			if tt.wantCall {
				f.gen.On("GetVideoStatus", mock.Anything, tt.providerID).Return(tt.reply, nil).Once()
			}

			result, err := f.service.RefreshStatus(ctx, "u1", video.ID)
			require.NoError(t, err)

			assert.Equal(t, tt.want, result.Video.Status)
			assert.Equal(t, tt.want, f.stored(t, video.ID).Status)
			if tt.wantCall {
				assert.Equal(t, tt.reply.Progress, result.Progress)
				f.gen.AssertExpectations(t)
			} else {
				f.gen.AssertNotCalled(t, "GetVideoStatus", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestRefreshStatusProviderError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	video := &model.Video{UserID: "u1", Topic: "t", Style: model.StyleCasual, Status: model.StatusGenerating,
		Provider: model.ProviderHeyGen, HeyGenVideoID: model.StringPtr("hg1")}
	require.NoError(t, f.store.InsertVideo(ctx, video))
	f.gen.On("GetVideoStatus", mock.Anything, "hg1").
		Return(nil, &provider.APIError{Provider: "heygen", StatusCode: http.StatusBadGateway})

	_, err := f.service.RefreshStatus(ctx, "u1", video.ID)
	require.Error(t, err)
	assert.Equal(t, KindProvider, KindOf(err))
	assert.Equal(t, model.StatusGenerating, f.stored(t, video.ID).Status)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	video := &model.Video{UserID: "u1", Topic: "t", Style: model.StyleCasual, Status: model.StatusCompleted}
	require.NoError(t, f.store.InsertVideo(ctx, video))

	assert.ErrorIs(t, f.service.Delete(ctx, "u2", video.ID), ErrNotFound)
	require.NoError(t, f.service.Delete(ctx, "u1", video.ID))
	assert.ErrorIs(t, f.service.Delete(ctx, "u1", video.ID), ErrNotFound)

	_, err := f.service.Get(ctx, "u1", video.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSoraSkipsAvatarResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.DeleteAvatar(ctx, "u1", f.defaultAvatar.ID))

	soraGen := new(MockGenerator)
	soraGen.On("GenerateVideo", mock.Anything, mock.MatchedBy(func(req provider.Request) bool {
		return req.Params.AvatarID == ""
	})).Return(&provider.Result{VideoID: "video_1", Status: "queued"}, nil)
	f.service.settings = fixedProvider(model.ProviderSora)
	f.service.providers[model.ProviderSora] = soraGen

	req := baseRequest()
	req.TemplateID = "ignored"
	video, err := f.service.RequestManualVideo(ctx, req)
	require.NoError(t, err)
	f.service.Wait()

	assert.Equal(t, model.ProviderSora, video.Provider)
	assert.Empty(t, video.TemplateID)
	assert.Nil(t, video.AvatarID)
	assert.Equal(t, "video_1", f.stored(t, video.ID).ProviderID())
}

func TestUnconfiguredProviderFailsVideo(t *testing.T) {
	f := newFixture(t)
	f.service.settings = fixedProvider(model.ProviderSora)

	video, err := f.service.RequestManualVideo(context.Background(), baseRequest())
	require.NoError(t, err)
	f.service.Wait()

	stored := f.stored(t, video.ID)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Contains(t, *stored.ErrorMessage, "not configured")
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mp4 bytes"))
	}))
	defer server.Close()

	t.Run("uploadsCompletedVideo", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.YouTube.DefaultTags = []string{"shorts"}
		video := &model.Video{UserID: "u1", Topic: "Morning Routines!", Style: model.StyleCasual,
			Status: model.StatusCompleted, VideoURL: model.StringPtr(server.URL + "/v.mp4")}
		require.NoError(t, f.store.InsertVideo(ctx, video))

		f.uploader.On("Upload", mock.Anything, mock.MatchedBy(func(req distribution.UploadRequest) bool {
			return req.Title == "Morning Routines!" && req.Privacy == "private" && len(req.Tags) == 1
		})).Return(&distribution.UploadResponse{ID: "yt1", URL: "https://youtube.com/watch?v=yt1", Platform: "youtube"}, nil)

		resp, err := f.service.Publish(ctx, "u1", video.ID, Publication{})
		require.NoError(t, err)

		assert.Equal(t, "yt1", resp.ID)
		assert.Equal(t, "mp4 bytes", string(f.uploader.uploaded))
		f.uploader.AssertExpectations(t)
	})

	t.Run("rejectsUnfinishedVideo", func(t *testing.T) {
		f := newFixture(t)
		video := &model.Video{UserID: "u1", Topic: "t", Style: model.StyleCasual, Status: model.StatusGenerating}
		require.NoError(t, f.store.InsertVideo(ctx, video))

		_, err := f.service.Publish(ctx, "u1", video.ID, Publication{})
		assert.ErrorIs(t, err, ErrValidation)
		f.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("withoutUploader", func(t *testing.T) {
		f := newFixture(t)
		f.service.uploader = nil

		_, err := f.service.Publish(ctx, "u1", "any", Publication{})
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestGenerateScriptWithoutWriter(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GenerateScript(context.Background(), "topic", model.StyleCasual, 30)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestReconcilerRunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })

	stale := &model.Video{UserID: "u1", Topic: "t", Style: model.StyleCasual, Status: model.StatusGenerating,
		Provider: model.ProviderHeyGen, HeyGenVideoID: model.StringPtr("hg1")}
	undispatched := &model.Video{UserID: "u1", Topic: "t", Style: model.StyleCasual, Status: model.StatusPending,
		Provider: model.ProviderHeyGen}
	require.NoError(t, f.store.InsertVideo(ctx, stale))
	require.NoError(t, f.store.InsertVideo(ctx, undispatched))

	f.gen.On("GetVideoStatus", mock.Anything, "hg1").
		Return(&provider.Status{Status: "completed", VideoURL: "https://cdn/v.mp4"}, nil).Once()

	checked := NewReconciler(f.service, time.Minute).RunOnce(ctx)

	assert.Equal(t, 1, checked)
	assert.Equal(t, model.StatusCompleted, f.stored(t, stale.ID).Status)
	assert.Equal(t, model.StatusPending, f.stored(t, undispatched.ID).Status)
	f.gen.AssertExpectations(t)
}
