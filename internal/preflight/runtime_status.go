package preflight

import (
	"fmt"
	"strings"

	"autotag/internal/config"
	"autotag/internal/models"
)

// scorerModels are the assets that each enable one Tier 1 scorer.
var scorerModels = []models.Name{models.NSFW, models.Tagger, models.Detector, models.ZeroShot}

// CheckModels passes when at least one Tier 1 scorer model is present in
// the models directory. Missing models are listed in the detail.
func CheckModels(cfg *config.Config) Result {
	const name = "Tier 1 models"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	inventory := models.NewAssets(cfg).Inventory()
	present := make(map[models.Name]bool, len(inventory))
	for _, asset := range inventory {
		present[asset.Name] = asset.Present
	}

	var found, missing []string
	for _, m := range scorerModels {
		if present[m] {
			found = append(found, string(m))
		} else {
			missing = append(missing, string(m))
		}
	}
	if len(found) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("no models found in %s", cfg.Paths.ModelsDir)}
	}
	detail := "loaded: " + strings.Join(found, ", ")
	if len(missing) > 0 {
		detail += "; missing: " + strings.Join(missing, ", ")
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// ModelInventory lists every Tier 1 asset for status displays.
func ModelInventory(cfg *config.Config) []models.AssetStatus {
	if cfg == nil {
		return nil
	}
	return models.NewAssets(cfg).Inventory()
}
