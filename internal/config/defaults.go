package config

const (
	defaultMusicDir               = "~/content/music"
	defaultVideosDir              = "~/content/videos"
	defaultMoviesDir              = "~/content/movies"
	defaultStateDir               = "~/.local/share/mediacopier"
	defaultLogDir                 = "~/.local/share/mediacopier/logs"
	defaultAPIBaseURL             = "http://localhost:3006"
	defaultAPITimeoutSeconds      = 15
	defaultAPIMaxRetries          = 3
	defaultAPIRetryDelayMillis    = 500
	defaultBreakerThreshold       = 5
	defaultBreakerCooldownSeconds = 60
	defaultPollIntervalSeconds    = 30
	defaultMinSizeMB              = 0.5
	defaultFuzzyThreshold         = 60
	defaultMaxConcurrentJobs      = 2
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "auto"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MusicDir:  defaultMusicDir,
			VideosDir: defaultVideosDir,
			MoviesDir: defaultMoviesDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		API: API{
			BaseURL:                defaultAPIBaseURL,
			TimeoutSeconds:         defaultAPITimeoutSeconds,
			MaxRetries:             defaultAPIMaxRetries,
			RetryDelayMillis:       defaultAPIRetryDelayMillis,
			BreakerThreshold:       defaultBreakerThreshold,
			BreakerCooldownSeconds: defaultBreakerCooldownSeconds,
			PollIntervalSeconds:    defaultPollIntervalSeconds,
		},
		Rules: Rules{
			MusicExtensions: []string{".mp3", ".flac", ".wav", ".m4a"},
			VideoExtensions: []string{".mp4", ".mkv", ".avi", ".mov"},
			MovieExtensions: []string{".mp4", ".mkv", ".avi"},
			MinSizeMB:       defaultMinSizeMB,
			FilterBySize:    false,
			FuzzyEnabled:    true,
			FuzzyThreshold:  defaultFuzzyThreshold,
			SkipDuplicates:  true,
		},
		Runner: Runner{
			MaxConcurrentJobs: defaultMaxConcurrentJobs,
			AutoStart:         true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
