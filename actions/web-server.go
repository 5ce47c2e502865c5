package actions

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/datamunge/taxipipe/config"
	c "github.com/datamunge/taxipipe/constants"
	"github.com/datamunge/taxipipe/helper"
	"github.com/datamunge/taxipipe/logger"
	"github.com/datamunge/taxipipe/pipeline"
	"github.com/datamunge/taxipipe/rdbms"
	"github.com/datamunge/taxipipe/rdbms/shared"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

type WebServerConfig struct {
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	Addr             string `errorTxt:"address"`
	Port             int    `errorTxt:"port" mandatory:"yes"`
	StackDumpOnPanic bool
}

// RunWebServer starts the HTTP trigger surface: ingest runs are launched by
// POST and observed by GET while they make progress.
func RunWebServer(web *WebServerConfig) error {
	if web == nil {
		return errors.New("nil pointer to web server config supplied")
	}
	log := logger.NewLogger("taxipipe", web.LogLevel, web.StackDumpOnPanic)
	// Check if we have valid input params.
	if err := helper.ValidateStructIsPopulated(web); err != nil {
		return err
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
	// Start the web server.
	srv, chanStopServer := runServer(log, web, appCfg, db)
	// Block & wait for completion.
	return waitForServer(log, srv, chanStopServer)
}

// runServer starts a web server and returns:
// 1) the server; and
// 2) a channel that can be used to stop the web server
func runServer(log logger.Logger, web *WebServerConfig, appCfg config.Config, db shared.Connector) (*http.Server, chan string) {
	chanStopServer := make(chan string, 1)
	allRunInfo := pipeline.NewSafeMapRunInfo()
	// Create routes.
	r := mux.NewRouter()
	r.HandleFunc("/stop", GetHandlerStopServer(log, chanStopServer))
	r.Path("/health").HandlerFunc(GetHandlerHealth(log))
	r.Path("/runs").Methods(http.MethodGet).HandlerFunc(GetHandlerRunList(log, allRunInfo))
	r.Path("/runs/{runId}").Methods(http.MethodGet).HandlerFunc(GetHandlerRunStatus(log, allRunInfo))
	r.Path("/ingest").Methods(http.MethodPost).Headers("Content-Type", "application/json").HandlerFunc(
		GetHandlerIngestLaunch(log, allRunInfo, appCfg, db))
	// Configure HTTP server.
	srv := &http.Server{ // Good practice to set timeouts to avoid Slowloris attacks.
		Addr:         fmt.Sprintf("%v:%v", web.Addr, web.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r, // supply our instance of gorilla/mux.
	}
	// Run HTTP server non-blocking.
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				log.Info(err)
			} else {
				log.Panic(err)
			}
		}
	}()
	log.Info(fmt.Sprintf("Listening on http://%v:%v", web.Addr, web.Port))
	return srv, chanStopServer
}

func waitForServer(log logger.Logger, srv *http.Server, chanStopServer chan string) error {
	// Block & wait for shutdown signals.
	// Accept graceful shutdowns when quit via SIGINT (Ctrl+C);
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+\) will not be caught.
	chanOS := make(chan os.Signal, 1)
	signal.Notify(chanOS, os.Interrupt) // request signals be sent to chanOS.
	select {
	case <-chanStopServer:
	case <-chanOS:
	}
	fmt.Println() // print new line char for clean looking CLI.
	log.Info("Shutting down web server...")
	wait := time.Second * c.WebServerShutdownTimeoutSecs
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("Web server shutdown complete")
	return nil
}
