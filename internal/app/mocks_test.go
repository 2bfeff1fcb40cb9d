package app

import (
	"context"
	"os"

	"github.com/stretchr/testify/mock"

	"contentfactory/internal/distribution"
	"contentfactory/internal/llm"
	"contentfactory/internal/model"
	"contentfactory/internal/provider"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateVideo(ctx context.Context, req provider.Request) (*provider.Result, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*provider.Result)
	return result, args.Error(1)
}

func (m *MockGenerator) GenerateVideoFromTemplate(ctx context.Context, req provider.TemplateRequest) (*provider.Result, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*provider.Result)
	return result, args.Error(1)
}

func (m *MockGenerator) GetVideoStatus(ctx context.Context, videoID string) (*provider.Status, error) {
	args := m.Called(ctx, videoID)
	status, _ := args.Get(0).(*provider.Status)
	return status, args.Error(1)
}

func (m *MockGenerator) Name() string {
	return "heygen"
}

type MockUploader struct {
	mock.Mock
	// uploaded holds the file content seen during Upload.
	uploaded []byte
}

func (m *MockUploader) Upload(ctx context.Context, req distribution.UploadRequest) (*distribution.UploadResponse, error) {
	m.uploaded, _ = os.ReadFile(req.FilePath)
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*distribution.UploadResponse)
	return resp, args.Error(1)
}

func (m *MockUploader) Platform() string {
	return "youtube"
}

type MockScriptWriter struct {
	mock.Mock
}

func (m *MockScriptWriter) GenerateScript(ctx context.Context, req llm.ScriptRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockScriptWriter) Name() string {
	return "mock"
}

type fixedProvider model.VideoProvider

func (p fixedProvider) Provider(context.Context) model.VideoProvider {
	return model.VideoProvider(p)
}
