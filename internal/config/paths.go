package config

import "path/filepath"

const (
	// Layout under TELEDISPATCH_HOME.
	ConfigFilePath = "config.toml"
	EnvFilePath    = ".env"
	DataDirPath    = "data"
	PIDFilePath    = "teledispatch.pid"
	HistoryPath    = "console_history"
	StatsFilePath  = "stats.tsv"
)

func homeConfigPath(home string) string {
	return filepath.Join(home, ConfigFilePath)
}

func homeEnvPath(home string) string {
	return filepath.Join(home, EnvFilePath)
}

func defaultHomePath(home string) string {
	return filepath.Join(home, ".teledispatch")
}

func homeDataPath(home string) string {
	return filepath.Join(home, DataDirPath)
}

func (c *Config) ConfigPath() string {
	return homeConfigPath(c.HomeDir)
}

func (c *Config) EnvPath() string {
	return homeEnvPath(c.HomeDir)
}

func (c *Config) DataDir() string {
	return homeDataPath(c.HomeDir)
}

func (c *Config) PIDPath() string {
	return filepath.Join(c.DataDir(), PIDFilePath)
}

func (c *Config) ConsoleHistoryPath() string {
	return filepath.Join(c.DataDir(), HistoryPath)
}

func (c *Config) StatsPath() string {
	return filepath.Join(c.DataDir(), StatsFilePath)
}
