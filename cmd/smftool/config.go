package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// config holds defaults that can be set in a config file or through SMF_* environment variables.
// Command line flags take precedence.
var config = viper.New()

func init() {
	config.SetEnvPrefix("SMF")
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()

	config.SetDefault("log-level", "info")
	config.SetDefault("log-file", "")
	config.SetDefault("log-max-size", 10)
	config.SetDefault("log-max-backups", 3)
	config.SetDefault("overwrite", false)
	config.SetDefault("tile-size", 32)
	config.SetDefault("floor", 10.0)
	config.SetDefault("ceiling", 256.0)
}

// setup loads the config file and configures logging.
func setup(c *cli.Context) error {
	if path := c.String("config"); path != "" {
		config.SetConfigFile(path)
		if err := config.ReadInConfig(); err != nil {
			return errors.Wrap(err, "read config")
		}
	}

	level, err := logrus.ParseLevel(stringOption(c, "log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	if file := stringOption(c, "log-file"); file != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    config.GetInt("log-max-size"),
			MaxBackups: config.GetInt("log-max-backups"),
		})
	}

	if used := config.ConfigFileUsed(); used != "" {
		logrus.Debugf("using config file %s", used)
	}
	return nil
}

func stringOption(c *cli.Context, name string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return config.GetString(name)
}

func intOption(c *cli.Context, name string) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	return config.GetInt(name)
}

func floatOption(c *cli.Context, name string) float64 {
	if c.IsSet(name) {
		return c.Float64(name)
	}
	return config.GetFloat64(name)
}

func boolOption(c *cli.Context, name string) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return config.GetBool(name)
}
