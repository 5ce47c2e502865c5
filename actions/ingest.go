package actions

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/datamunge/taxipipe/config"
	c "github.com/datamunge/taxipipe/constants"
	"github.com/datamunge/taxipipe/helper"
	"github.com/datamunge/taxipipe/logger"
	"github.com/datamunge/taxipipe/pipeline"
	"github.com/datamunge/taxipipe/rdbms"
	"github.com/datamunge/taxipipe/tripdata"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

type IngestConfig struct {
	ServicesCsv      string `errorTxt:"services CSV e.g. 'yellow,green'" mandatory:"yes"`
	Year             int    `errorTxt:"year" mandatory:"yes"`
	MonthsCsv        string `errorTxt:"months CSV e.g. '1,2,3'"`
	Granularity      string `errorTxt:"granularity (monthly|yearly)" mandatory:"yes"`
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	StackDumpOnPanic bool
	WatchStats       bool
	DryRun           bool
}

// RunIngest executes one batch run: fetch, normalize and load every requested
// (service, year, month) unit into the warehouse.
func RunIngest(cfg *IngestConfig) error {
	log := logger.NewLogger("taxipipe", cfg.LogLevel, cfg.StackDumpOnPanic)
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	services, err := tripdata.ParseServicesCsv(cfg.ServicesCsv)
	if err != nil {
		return err
	}
	granularity, err := tripdata.ParseGranularity(cfg.Granularity)
	if err != nil {
		return err
	}
	months, err := parseMonthsCsv(cfg.MonthsCsv)
	if err != nil {
		return err
	}
	units, err := pipeline.UnitsFor(services, cfg.Year, months)
	if err != nil {
		return err
	}
	if cfg.DryRun { // if we only want to see the plan...
		for _, u := range units {
			fmt.Printf("%v -> %v\n", u.SourceURL(), u.TableName(granularity))
		}
		return nil
	}
	appCfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := rdbms.NewPostgresConnection(log, appCfg.Warehouse.Dsn())
	if err != nil {
		return err
	}
	defer db.Close()
	// Handle interrupts by cancelling the run context.
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()
	chanQuit := make(chan os.Signal, 2)
	signal.Notify(chanQuit, os.Interrupt, syscall.SIGTERM)
	go func() {
		x := <-chanQuit
		fmt.Println() // add new line char for clean CLI look n feel.
		log.Info("Caught ", x.String(), ", stopping run...")
		cancelFn()
	}()
	o := orchestratorFromConfig(log, appCfg, granularity, cfg.WatchStats)
	o.Db = db
	summary, err := o.Run(ctx, units)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, &summary)
	if summary.HasFailures() {
		return errors.Errorf("%v of %v unit(s) failed", summary.Failed, len(summary.Outcomes))
	}
	return nil
}

func orchestratorFromConfig(log logger.Logger, appCfg config.Config, g tripdata.Granularity, watchStats bool) *pipeline.Orchestrator {
	return &pipeline.Orchestrator{
		Log:             log,
		Client:          &http.Client{Timeout: time.Duration(appCfg.HttpTimeoutSecs) * time.Second},
		DataDir:         appCfg.DataDir,
		Granularity:     g,
		SchemaMonthly:   appCfg.SchemaMonthly,
		SchemaYearly:    appCfg.SchemaYearly,
		Workers:         appCfg.Workers,
		TxtBatchNumRows: appCfg.TxtBatchNumRows,
		CommitBatchSize: appCfg.CommitBatchSize,
		FetchRetry: pipeline.RetryPolicy{
			MaxAttempts: appCfg.RetryMaxAttempts,
			Backoff:     time.Duration(appCfg.FetchRetryBackoffSecs) * time.Second,
		},
		LoadRetry: pipeline.RetryPolicy{
			MaxAttempts: appCfg.RetryMaxAttempts,
			Backoff:     time.Duration(appCfg.LoadRetryBackoffSecs) * time.Second,
		},
		WatchStats: watchStats,
	}
}

// parseMonthsCsv turns '1,2,3' into month numbers; an empty string means the
// whole year.
func parseMonthsCsv(s string) ([]int, error) {
	if s == "" {
		months := make([]int, 12)
		for i := range months {
			months[i] = i + 1
		}
		return months, nil
	}
	tokens := helper.CsvToStringSliceTrimSpaces(s)
	months := make([]int, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		m, err := strconv.Atoi(t)
		if err != nil || m < 1 || m > 12 {
			return nil, errors.Errorf("bad month %q (expected 1-12)", t)
		}
		months = append(months, m)
	}
	if len(months) == 0 {
		return nil, errors.New("no months supplied")
	}
	return months, nil
}

// printSummary renders the run outcome, with emoji status markers when stdout
// is an interactive terminal.
func printSummary(f *os.File, s *pipeline.Summary) {
	interactive := isatty.IsTerminal(f.Fd())
	marker := func(status pipeline.UnitStatus) string {
		if !interactive {
			return status.String()
		}
		switch status {
		case pipeline.StatusLoaded:
			return "\U00002705" // green tick
		case pipeline.StatusSkipped:
			return "\U000023ED" // skip
		default:
			return "\U0000274C" // cross
		}
	}
	_, _ = fmt.Fprintf(f, "Run %v (%v) started %v, finished in %v\n",
		s.RunId, s.Granularity, s.StartTime.Format(c.TimeFormatYearSeconds), s.EndTime.Sub(s.StartTime).Round(time.Millisecond))
	for _, o := range s.Outcomes {
		line := fmt.Sprintf("%v  %-16v -> %v  rows=%v attempts=%v", marker(o.Status), o.Unit.String(), o.Table, o.RowsLoaded, o.Attempts)
		if o.Error != "" {
			line += "  error=" + o.Error
		}
		_, _ = fmt.Fprintln(f, line)
	}
	_, _ = fmt.Fprintf(f, "loaded=%v skipped=%v failed=%v rows=%v\n", s.Loaded, s.Skipped, s.Failed, s.RowsLoaded)
}
