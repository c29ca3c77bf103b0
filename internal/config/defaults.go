package config

const (
	defaultDataDir = "~/.local/share/shelfmark"
	defaultLogDir  = "~/.local/share/shelfmark/logs"
	defaultAPIBind = "127.0.0.1:7319"

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds = 60
	defaultLLMMaxTokens      = 4096

	defaultFetchTimeoutSeconds = 30
	defaultFetchUserAgent      = "Shelfmark/0.1 (+https://github.com/shelfmark/shelfmark)"
	defaultFetchMaxBodyBytes   = 8 << 20
	defaultFetchMaxImages      = 10

	// Retry delays are seconds; backoff doubles from base up to max.
	defaultWorkerCount       = 4
	defaultQueuePollInterval = 2
	defaultRetryBaseDelay    = 5
	defaultRetryMaxDelay     = 300
	defaultRetryMaxAttempts  = 8

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxTokens:      defaultLLMMaxTokens,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			UserAgent:      defaultFetchUserAgent,
			MaxBodyBytes:   defaultFetchMaxBodyBytes,
			MaxImages:      defaultFetchMaxImages,
		},
		Workflow: Workflow{
			WorkerCount:       defaultWorkerCount,
			QueuePollInterval: defaultQueuePollInterval,
			RetryBaseDelay:    defaultRetryBaseDelay,
			RetryMaxDelay:     defaultRetryMaxDelay,
			RetryMaxAttempts:  defaultRetryMaxAttempts,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Enrichment:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
