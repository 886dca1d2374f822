package config

import (
	"os"

	"go.uber.org/fx"
)

var Module = fx.Module("config", fx.Provide(
	// The configuration file is optional. When it doesn't exist the settings
	// come from defaults and the environment alone.
	func() (*Config, error) {
		path := Path()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return LoadConfig(nil)
		}

		return LoadConfigFile(path)
	},
))
