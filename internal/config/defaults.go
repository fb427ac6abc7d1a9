package config

const (
	defaultDataDir             = "~/.local/share/sherpa"
	defaultLogDir              = "~/.local/share/sherpa/logs"
	defaultAPIBind             = "127.0.0.1:5170"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultJudgeBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultJudgeModel          = "openai/gpt-4o"
	defaultJudgeReferer        = "https://github.com/sherpa-overlay/sherpa"
	defaultJudgeTitle          = "Sherpa Step Judge"
	defaultJudgeTimeoutSeconds = 45
	defaultBusSendBuffer       = 16
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Judge: Judge{
			BaseURL:        defaultJudgeBaseURL,
			Model:          defaultJudgeModel,
			Referer:        defaultJudgeReferer,
			Title:          defaultJudgeTitle,
			TimeoutSeconds: defaultJudgeTimeoutSeconds,
		},
		Bus: Bus{
			SendBuffer: defaultBusSendBuffer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
