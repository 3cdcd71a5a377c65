package config

const (
	defaultConfigPath = "~/.config/autotag/config.toml"
	defaultDataDir    = "~/.local/share/autotag"
	defaultLogDir     = "~/.local/share/autotag/logs"
	defaultFramesDir  = "~/.cache/autotag/frames"
	defaultModelsDir  = "~/.local/share/autotag/models"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"
	defaultAPIBind    = "127.0.0.1:7488"

	defaultNSFWModel       = "nsfw_mobilenet_v2.onnx"
	defaultTaggerModel     = "wd_tagger.onnx"
	defaultTaggerLabels    = "selected_tags.csv"
	defaultDetectorModel   = "nudenet_320n.onnx"
	defaultZeroShotModel   = "clip_vit_b32_visual.onnx"
	defaultZeroShotPrompts = "clip_prompts.json"

	defaultTier2BaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultTier2Model          = "google/gemini-2.5-flash"
	defaultTier2Referer        = "https://github.com/autotag/autotag"
	defaultTier2Title          = "autotag"
	defaultTier2TimeoutSeconds = 90
	defaultTier2MaxFrames      = 3
	defaultTier2MaxImageEdge   = 768
	defaultTier2TagConfidence  = 0.7

	defaultResolverCacheTTLSeconds = 60
	defaultResolverMaxSuggestions  = 20
	defaultSuggestionMinConfidence = 0.5
	defaultSuggestionMinLength     = 3

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultMinFrameBytes = 1024
	defaultScaleWidth    = 640
	defaultJPEGQuality   = 2
	defaultMinFreeMiB    = 256
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			FramesDir: defaultFramesDir,
			ModelsDir: defaultModelsDir,
		},
		Tier1: Tier1{
			NSFWModel:       defaultNSFWModel,
			TaggerModel:     defaultTaggerModel,
			TaggerLabels:    defaultTaggerLabels,
			DetectorModel:   defaultDetectorModel,
			ZeroShotModel:   defaultZeroShotModel,
			ZeroShotPrompts: defaultZeroShotPrompts,

			TaggerThreshold:   0.35,
			DetectorThreshold: 0.5,
			ZeroShotThreshold: 0.5,
			ZeroShotTopK:      10,

			MinConfidence:         0.35,
			RealMinConfidence:     0.25,
			MinFrequency:          0.30,
			HighConfidence:        0.8,
			ContentTypeConfidence: 0.6,
			NSFWTagConfidence:     0.5,
			RealBoost:             1.15,
			MaxTags:               60,
		},
		Tier2: Tier2{
			BaseURL:        defaultTier2BaseURL,
			Model:          defaultTier2Model,
			Referer:        defaultTier2Referer,
			Title:          defaultTier2Title,
			TimeoutSeconds: defaultTier2TimeoutSeconds,
			MaxFrames:      defaultTier2MaxFrames,
			MaxImageEdge:   defaultTier2MaxImageEdge,
			TagConfidence:  defaultTier2TagConfidence,
		},
		Resolver: Resolver{
			CacheTTLSeconds:         defaultResolverCacheTTLSeconds,
			MaxSuggestions:          defaultResolverMaxSuggestions,
			SuggestionMinConfidence: defaultSuggestionMinConfidence,
			SuggestionMinLength:     defaultSuggestionMinLength,
		},
		Frames: Frames{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			MinFrameBytes: defaultMinFrameBytes,
			ScaleWidth:    defaultScaleWidth,
			JPEGQuality:   defaultJPEGQuality,
			MinFreeMiB:    defaultMinFreeMiB,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			Concurrency:        1,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		API: API{
			Bind: defaultAPIBind,
		},
	}
}
