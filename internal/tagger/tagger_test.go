package tagger

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"autotag/internal/inference"
	"autotag/internal/models"
	"autotag/internal/services"
	"autotag/internal/tagging"
	"autotag/internal/testsupport"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(path string) (inference.Runner, error) {
	args := m.Called(path)
	runner, _ := args.Get(0).(inference.Runner)
	return runner, args.Error(1)
}

type stubScorer struct {
	source tagging.Source
	out    FrameResult
	err    error
	calls  int
}

func (s *stubScorer) Source() tagging.Source { return s.source }

func (s *stubScorer) Score(context.Context, image.Image) (FrameResult, error) {
	s.calls++
	return s.out, s.err
}

func TestInitSkipsAbsentModels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Paths.ModelsDir, 0o755))
	nsfwPath := filepath.Join(cfg.Paths.ModelsDir, cfg.Tier1.NSFWModel)
	testsupport.WriteFile(t, nsfwPath, 10)
	// Tagger model without its label file is skipped too.
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ModelsDir, cfg.Tier1.TaggerModel), 10)

	loader := &mockLoader{}
	loader.On("Load", nsfwPath).Return(&fakeRunner{}, nil).Once()

	tg := New(cfg, models.NewAssets(cfg), loader, nil)
	require.NoError(t, tg.Init())
	assert.True(t, tg.Available())
	assert.Equal(t, []tagging.Source{tagging.SourceNSFW}, tg.Sources())
	loader.AssertExpectations(t)

	require.NoError(t, tg.Init(), "init result is cached")
	loader.AssertNumberOfCalls(t, "Load", 1)
}

func TestInitFailsWhenModelWontLoad(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Paths.ModelsDir, 0o755))
	detector := filepath.Join(cfg.Paths.ModelsDir, cfg.Tier1.DetectorModel)
	testsupport.WriteFile(t, detector, 10)

	loader := &mockLoader{}
	loader.On("Load", detector).Return(nil, errors.New("bad model"))

	tg := New(cfg, models.NewAssets(cfg), loader, nil)
	err := tg.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConfiguration)
	assert.False(t, tg.Available())
}

func TestInitFailsWithNoModels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tg := New(cfg, models.NewAssets(cfg), &mockLoader{}, nil)
	err := tg.Init()
	assert.ErrorIs(t, err, services.ErrUnavailable)
	assert.False(t, tg.Available())

	_, err = tg.Analyze(context.Background(), []string{"x.jpg"})
	assert.ErrorIs(t, err, services.ErrUnavailable)
}

func TestAnalyzeSkipsUndecodableFrames(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.jpg")
	testsupport.WriteJPEG(t, good, 32, 32)
	bad := filepath.Join(dir, "bad.jpg")
	testsupport.WriteFile(t, bad, 2048)

	nsfw := &stubScorer{source: tagging.SourceNSFW, out: FrameResult{NSFW: &NSFWScore{Category: tagging.CategoryDrawings, Confidence: 0.9}}}
	labels := &stubScorer{source: tagging.SourceTagger, out: FrameResult{Labels: []ScoredLabel{lbl("smile", 0.8)}}}
	tg := NewWithScorers(DefaultThresholds(), nil, nsfw, labels)

	res, err := tg.Analyze(context.Background(), []string{bad, good})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Frames)
	assert.Equal(t, 1, nsfw.calls)
	assert.Equal(t, tagging.ContentAnime, res.ContentType)
	_, ok := findTag(res.Tags, "smile")
	assert.True(t, ok)
	assert.NotEmpty(t, res.Proposals())
	assert.Len(t, res.Labels(), len(res.Tags))
}

func TestAnalyzeFailsWhenNoFrameDecodes(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.jpg")
	testsupport.WriteFile(t, bad, 2048)
	tg := NewWithScorers(DefaultThresholds(), nil, &stubScorer{source: tagging.SourceNSFW})
	_, err := tg.Analyze(context.Background(), []string{bad})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestAnalyzeFailsOnScorerError(t *testing.T) {
	good := filepath.Join(t.TempDir(), "good.jpg")
	testsupport.WriteJPEG(t, good, 16, 16)
	tg := NewWithScorers(DefaultThresholds(), nil, &stubScorer{source: tagging.SourceDetector, err: errors.New("session crashed")})
	_, err := tg.Analyze(context.Background(), []string{good})
	assert.ErrorIs(t, err, services.ErrExternalTool)
}
