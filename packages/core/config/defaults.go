package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         30000, // 30 seconds
		Retries:         0,
		RetryInterval:   1000, // 1 second
		FollowRedirects: BoolPtr(true),
		ValidateSSL:     BoolPtr(true),
		Cache:           "",
		LogLevel:        "warning",
		NoColor:         BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Timeout == defaults.Timeout &&
		c.Retries == defaults.Retries &&
		c.RetryInterval == defaults.RetryInterval &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == defaults.Proxy &&
		len(c.Headers) == 0 &&
		c.Token == "" &&
		c.OAuth2 == "" &&
		c.Cache == defaults.Cache &&
		c.Rate == defaults.Rate &&
		c.LogLevel == defaults.LogLevel &&
		c.GetNoColor() == defaults.GetNoColor()
}
