package config

import (
	"os"
	"strings"
)

// envJudgeAPIKey lets deployments supply the judge credential outside the
// config file (typically via a .env file loaded by sherpad).
const envJudgeAPIKey = "SHERPA_JUDGE_API_KEY"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)

	c.Judge.APIKey = strings.TrimSpace(c.Judge.APIKey)
	if c.Judge.APIKey == "" {
		c.Judge.APIKey = strings.TrimSpace(os.Getenv(envJudgeAPIKey))
	}
	c.Judge.BaseURL = strings.TrimSpace(c.Judge.BaseURL)
	if c.Judge.BaseURL == "" {
		c.Judge.BaseURL = defaultJudgeBaseURL
	}
	c.Judge.Model = strings.TrimSpace(c.Judge.Model)
	if c.Judge.Model == "" {
		c.Judge.Model = defaultJudgeModel
	}
	c.Judge.Referer = strings.TrimSpace(c.Judge.Referer)
	c.Judge.Title = strings.TrimSpace(c.Judge.Title)
	if c.Judge.TimeoutSeconds <= 0 {
		c.Judge.TimeoutSeconds = defaultJudgeTimeoutSeconds
	}

	if c.Bus.SendBuffer <= 0 {
		c.Bus.SendBuffer = defaultBusSendBuffer
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}
