package config

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/datamunge/taxipipe/constants"
	h "github.com/datamunge/taxipipe/helper"
	"github.com/ghodss/yaml"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/xo/dburl"
)

const (
	MainDir          = ".taxipipe"
	MainFileFullName = "config.yaml"
)

// Warehouse holds the Postgres connection settings.
type Warehouse struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Dsn renders the warehouse settings as a postgres:// URL.
func (w Warehouse) Dsn() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(w.Username, w.Password),
		Host:   fmt.Sprintf("%v:%v", w.Host, w.Port),
		Path:   w.Database,
	}
	return u.String()
}

// Config carries all pipeline settings, populated from defaults, then the
// optional config file, then environment variables. Later sources win.
type Config struct {
	Warehouse             Warehouse `json:"warehouse"`
	DataDir               string    `json:"dataDir"`
	SchemaMonthly         string    `json:"schemaMonthly"`
	SchemaYearly          string    `json:"schemaYearly"`
	CommitBatchSize       int       `json:"commitBatchSize"`
	TxtBatchNumRows       int       `json:"txtBatchNumRows"`
	Workers               int       `json:"workers"`
	RetryMaxAttempts      int       `json:"retryMaxAttempts"`
	FetchRetryBackoffSecs int       `json:"fetchRetryBackoffSecs"`
	LoadRetryBackoffSecs  int       `json:"loadRetryBackoffSecs"`
	HttpTimeoutSecs       int       `json:"httpTimeoutSecs"`
	LogLevel              string    `json:"logLevel"`
}

func Default() Config {
	return Config{
		Warehouse: Warehouse{
			Host: "localhost",
			Port: 5432,
		},
		DataDir:               constants.DataDirDefault,
		SchemaMonthly:         constants.SchemaMonthlyDefault,
		SchemaYearly:          constants.SchemaYearlyDefault,
		CommitBatchSize:       constants.CommitBatchSizeDefault,
		TxtBatchNumRows:       constants.TxtBatchNumRowsDefault,
		Workers:               constants.WorkersDefault,
		RetryMaxAttempts:      constants.RetryMaxAttemptsDefault,
		FetchRetryBackoffSecs: constants.FetchRetryBackoffSecsDefault,
		LoadRetryBackoffSecs:  constants.LoadRetryBackoffSecsDefault,
		HttpTimeoutSecs:       constants.HttpTimeoutSecsDefault,
		LogLevel:              "info",
	}
}

// Load builds the effective config: defaults, overlaid by ~/.taxipipe/config.yaml
// when present, overlaid by environment variables.
func Load() (Config, error) {
	cfg := Default()
	filePath, err := configFilePath()
	if err != nil {
		return cfg, err
	}
	if err := overlayFile(&cfg, filePath); err != nil {
		return cfg, err
	}
	if err := overlayEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func configFilePath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "unable to find the home directory")
	}
	return path.Join(home, MainDir, MainFileFullName), nil
}

// overlayFile merges the yaml config file into cfg. A missing file is fine.
func overlayFile(cfg *Config, filePath string) error {
	b, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "unable to read config file %v", filePath)
	}
	raw := make(map[string]interface{})
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return errors.Wrapf(err, "unable to parse config file %v", filePath)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  cfg,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return errors.Wrapf(err, "bad values in config file %v", filePath)
	}
	return nil
}

// overlayEnv applies PG_* connection settings and TP_* overrides.
func overlayEnv(cfg *Config) error {
	_ = h.ReadValueFromEnv(constants.EnvVarPgHost, &cfg.Warehouse.Host)
	_ = h.ReadValueFromEnv(constants.EnvVarPgUsername, &cfg.Warehouse.Username)
	_ = h.ReadValueFromEnv(constants.EnvVarPgPassword, &cfg.Warehouse.Password)
	_ = h.ReadValueFromEnv(constants.EnvVarPgDatabase, &cfg.Warehouse.Database)
	if v := os.Getenv(constants.EnvVarPgPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Errorf("bad value %q for %v", v, constants.EnvVarPgPort)
		}
		cfg.Warehouse.Port = port
	}
	cfg.DataDir = h.ReadValueFromEnvWithDefault(constants.EnvVarDataDir, cfg.DataDir)
	cfg.LogLevel = h.ReadValueFromEnvWithDefault(constants.EnvVarLogLevel, cfg.LogLevel)
	// A full warehouse URL beats the individual settings.
	if v := os.Getenv(constants.EnvVarWarehouseUrl); v != "" {
		u, err := dburl.Parse(v)
		if err != nil {
			return errors.Wrapf(err, "bad value for %v", constants.EnvVarWarehouseUrl)
		}
		cfg.Warehouse.Host = u.Hostname()
		if p := u.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return errors.Errorf("bad port in %v", constants.EnvVarWarehouseUrl)
			}
			cfg.Warehouse.Port = port
		}
		if u.User != nil {
			cfg.Warehouse.Username = u.User.Username()
			if pw, ok := u.User.Password(); ok {
				cfg.Warehouse.Password = pw
			}
		}
		cfg.Warehouse.Database = strings.TrimPrefix(u.Path, "/")
	}
	return nil
}
