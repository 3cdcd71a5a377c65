package models_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotag/internal/models"
	"autotag/internal/testsupport"
)

func TestPathForReportsAbsentFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Paths.ModelsDir, 0o755))
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ModelsDir, cfg.Tier1.NSFWModel), 10)

	assets := models.NewAssets(cfg)
	path, ok := assets.PathFor(models.NSFW)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(cfg.Paths.ModelsDir, cfg.Tier1.NSFWModel), path)

	_, ok = assets.PathFor(models.Detector)
	assert.False(t, ok)

	inv := assets.Inventory()
	require.Len(t, inv, len(models.All))
	assert.True(t, inv[0].Present)
	assert.False(t, inv[1].Present)
}

func TestParseTagLabelsWithHeader(t *testing.T) {
	csv := "tag_id,name,category,count\n9999999,general,9,1\n1,long_hair,0,100\n2,Blue_Eyes,0,90\n"
	labels, err := models.ParseTagLabels(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, labels, 3)
	assert.True(t, labels[0].IsRating())
	assert.Equal(t, "long hair", labels[1].Name)
	assert.Equal(t, "blue eyes", labels[2].Name)
	assert.False(t, labels[2].IsRating())
}

func TestParseTagLabelsHeaderless(t *testing.T) {
	labels, err := models.ParseTagLabels(strings.NewReader("smile\nopen_mouth\n"))
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "open mouth", labels[1].Name)
	assert.Equal(t, 0, labels[1].Category)
}

func TestTagLabelsFromDisk(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Paths.ModelsDir, 0o755))
	path := filepath.Join(cfg.Paths.ModelsDir, cfg.Tier1.TaggerLabels)
	require.NoError(t, os.WriteFile(path, []byte("name,category\nsmile,0\n"), 0o644))

	names, err := models.NewAssets(cfg).TagLabels()
	require.NoError(t, err)
	assert.Equal(t, []string{"smile"}, names)
}

func TestParsePromptBankNormalizes(t *testing.T) {
	raw := `{"categories":[{"name":"setting","prompts":[
        {"label":"Indoors","embedding":[3,4]},
        {"label":"outdoors","embedding":[0,2]}]}]}`
	bank, err := models.ParsePromptBank(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 2, bank.Dim)
	p := bank.Categories[0].Prompts[0]
	assert.Equal(t, "indoors", p.Label)
	assert.InDelta(t, 0.6, p.Embedding[0], 1e-6)
	assert.InDelta(t, 0.8, p.Embedding[1], 1e-6)
}

func TestParsePromptBankRejectsMismatchedDims(t *testing.T) {
	raw := `{"categories":[{"name":"x","prompts":[{"label":"a","embedding":[1,0]},{"label":"b","embedding":[1]}]}]}`
	_, err := models.ParsePromptBank(strings.NewReader(raw))
	assert.Error(t, err)
}
