package actions

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/datamunge/taxipipe/config"
	"github.com/datamunge/taxipipe/helper"
	"github.com/datamunge/taxipipe/logger"
	"github.com/datamunge/taxipipe/rdbms"
	"github.com/datamunge/taxipipe/tripdata"
	"github.com/pkg/errors"
)

type LoadConfig struct {
	Granularity      string `errorTxt:"granularity (monthly|yearly)" mandatory:"yes"`
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	StackDumpOnPanic bool
	WatchStats       bool
}

// RunLoad re-loads the warehouse from artifacts already on disk, without
// touching the source. Useful after a warehouse rebuild: the fetch stage sees
// the canonical artifacts and skips straight to the load.
func RunLoad(cfg *LoadConfig) error {
	log := logger.NewLogger("taxipipe", cfg.LogLevel, cfg.StackDumpOnPanic)
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	granularity, err := tripdata.ParseGranularity(cfg.Granularity)
	if err != nil {
		return err
	}
	appCfg, err := config.Load()
	if err != nil {
		return err
	}
	units, err := unitsFromArtifacts(appCfg.DataDir)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return errors.Errorf("no artifacts found under %v", appCfg.DataDir)
	}
	log.Info("Found ", len(units), " artifact(s) under ", appCfg.DataDir)
	db, err := rdbms.NewPostgresConnection(log, appCfg.Warehouse.Dsn())
	if err != nil {
		return err
	}
	defer db.Close()
	o := orchestratorFromConfig(log, appCfg, granularity, cfg.WatchStats)
	o.Db = db
	summary, err := o.Run(context.Background(), units)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, &summary)
	if summary.HasFailures() {
		return errors.Errorf("%v of %v unit(s) failed", summary.Failed, len(summary.Outcomes))
	}
	return nil
}

// unitsFromArtifacts walks the data directory for canonical artifacts and
// parses each file name back into a unit of work.
func unitsFromArtifacts(dataDir string) ([]tripdata.UnitOfWork, error) {
	seen := make(map[string]bool)
	units := make([]tripdata.UnitOfWork, 0)
	err := filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dataDir { // if the data dir itself is missing...
				return filepath.SkipAll
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		u, parseErr := tripdata.ParseArtifactName(filepath.Base(path))
		if parseErr != nil { // not an artifact, ignore it.
			return nil
		}
		if !seen[u.Key()] {
			seen[u.Key()] = true
			units = append(units, u)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error scanning %v for artifacts", dataDir)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Key() < units[j].Key() })
	return units, nil
}
