package config

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DEVELOPMENT = "development"
	PRODUCTION  = "production"
)

// envPrefix namespaces the environment variables, e.g. FUNNELYTICS_CLICKHOUSE_HOST.
const envPrefix = "funnelytics"

// Configuration holds the environment driven settings for the analytics
// engine.
type Configuration struct {
	Env string `default:"development"`

	ClickhouseHost     string `split_words:"true" default:"localhost"`
	ClickhousePort     int    `split_words:"true" default:"9000"`
	ClickhouseDatabase string `split_words:"true" default:"analytics"`
	ClickhouseUser     string `split_words:"true" default:"default"`
	ClickhousePassword string `split_words:"true"`
}

func (c *Configuration) IsDevelopment() bool {
	return c.Env == DEVELOPMENT
}

// Init parses the environment and configures logging.
func Init() (*Configuration, error) {
	var conf Configuration
	if err := envconfig.Process(envPrefix, &conf); err != nil {
		return nil, errors.Wrap(err, "process environment config")
	}

	initLogging(&conf)
	return &conf, nil
}

func initLogging(conf *Configuration) {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	if conf.IsDevelopment() {
		log.SetLevel(log.DebugLevel)
	}
}
