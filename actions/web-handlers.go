package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/datamunge/taxipipe/config"
	"github.com/datamunge/taxipipe/logger"
	"github.com/datamunge/taxipipe/pipeline"
	"github.com/datamunge/taxipipe/rdbms/shared"
	"github.com/datamunge/taxipipe/tripdata"
	"github.com/gorilla/mux"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

func (w *WebServerResponse) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "ok":
		*w = Okay
	case "error":
		*w = Error
	default:
		return fmt.Errorf("unhandled WebServerResponse value %q in UnmarshalJSON() conversion", s)
	}
	return nil
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseRunList struct {
	Status  WebServerResponse  `json:"status"`
	RunList []pipeline.Summary `json:"runs"`
}

type ResponseRunStatus struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message,omitempty"`
	Run     *pipeline.Summary `json:"run,omitempty"`
}

type ResponseIngestLaunch struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunId   string            `json:"runId,omitempty"`
}

// IngestRequest is the POST /ingest body.
type IngestRequest struct {
	Services    []string `json:"services"`
	Year        int      `json:"year"`
	Months      []int    `json:"months"`
	Granularity string   `json:"granularity"`
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStopServer(log logger.Logger, chanStop chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chanStop <- "stop"
		log.Info("Stop signal sent")
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerRunList(log logger.Logger, allRunInfo *pipeline.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunList{Status: Okay, RunList: allRunInfo.List()})
	}
}

func GetHandlerRunStatus(log logger.Logger, allRunInfo *pipeline.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		runId := vars["runId"]
		s, ok := allRunInfo.Load(runId)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			respond(log, w, ResponseRunStatus{Status: Error, Message: fmt.Sprintf("run %q not found", runId)})
			return
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunStatus{Status: Okay, Run: &s})
	}
}

func GetHandlerIngestLaunch(log logger.Logger, allRunInfo *pipeline.SafeMapRunInfo, appCfg config.Config, db shared.Connector) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// Ingest the run request from the body JSON.
		b, _ := io.ReadAll(r.Body)
		req := IngestRequest{}
		if err := json.Unmarshal(b, &req); err != nil {
			logAndRespond(log, err, w,
				ResponseIngestLaunch{Status: Error, Message: fmt.Sprintf("error unmarshalling JSON: %v", err)})
			return
		}
		units, granularity, err := unitsFromRequest(&req)
		if err != nil {
			logAndRespond(log, err, w,
				ResponseIngestLaunch{Status: Error, Message: fmt.Sprintf("invalid ingest request: %v", err)})
			return
		}
		o := orchestratorFromConfig(log, appCfg, granularity, false)
		o.Db = db
		// Launch in the background; progress is visible via /runs.
		runId := launchRun(log, allRunInfo, o, units)
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseIngestLaunch{Status: Okay, Message: "run launched", RunId: runId})
	}
}

func unitsFromRequest(req *IngestRequest) ([]tripdata.UnitOfWork, tripdata.Granularity, error) {
	granularity, err := tripdata.ParseGranularity(req.Granularity)
	if err != nil {
		return nil, "", err
	}
	services := make([]tripdata.Service, 0, len(req.Services))
	for _, s := range req.Services {
		svc, err := tripdata.ParseService(s)
		if err != nil {
			return nil, "", err
		}
		services = append(services, svc)
	}
	if len(services) == 0 {
		services = tripdata.AllServices()
	}
	months := req.Months
	if len(months) == 0 {
		for m := 1; m <= 12; m++ {
			months = append(months, m)
		}
	}
	units, err := pipeline.UnitsFor(services, req.Year, months)
	if err != nil {
		return nil, "", err
	}
	return units, granularity, nil
}

// launchRun starts the orchestrator in a goroutine. The ledger goes straight
// into the registry so /runs shows the run while it is still in flight.
func launchRun(log logger.Logger, allRunInfo *pipeline.SafeMapRunInfo, o *pipeline.Orchestrator, units []tripdata.UnitOfWork) string {
	ledger := pipeline.NewRunLedger(o.Granularity)
	runId := ledger.RunId()
	allRunInfo.Store(ledger)
	go func() {
		if _, err := o.RunWithLedger(context.Background(), ledger, units); err != nil {
			log.Error("run ", runId, " aborted: ", err)
		}
	}()
	return runId
}

func logAndRespond(log logger.Logger, err error, w http.ResponseWriter, r ResponseIngestLaunch) {
	log.Error(err)
	w.WriteHeader(http.StatusBadRequest)
	respond(log, w, r)
}

// respond will marshal i to a string and write it to w.
func respond(log logger.Logger, w http.ResponseWriter, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Panic(err)
	}
	_, err = fmt.Fprint(w, string(j))
	if err != nil {
		log.Panic(err)
	}
}
