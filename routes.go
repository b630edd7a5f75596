// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"
	"github.com/xmidt-org/setsync/ingest"
	"github.com/xmidt-org/setsync/store"
	"github.com/xmidt-org/touchstone/touchhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	eventsPath  = "events"
	recordsPath = "records"
	metricsPath = "/metrics"
	healthPath  = "/health"

	// recoveredStatusCode is returned when a handler panics.
	recoveredStatusCode = 555
)

type PrimaryRoutesIn struct {
	fx.In
	LC           fx.Lifecycle
	Logger       *zap.Logger
	Servers      ServersConfig
	Instrumenter touchhttp.ServerInstrumenter `name:"servers.primary.metrics"`
	Tracing      candlelight.Tracing
	Handlers     PrimaryHandlersIn
}

type PrimaryHandlersIn struct {
	fx.In
	Events  ingest.Handler
	Records store.Handler `name:"list_records_handler"`
}

type MetricsRoutesIn struct {
	fx.In
	LC         fx.Lifecycle
	Logger     *zap.Logger
	Servers    ServersConfig
	Gatherer   prometheus.Gatherer
	Registerer prometheus.Registerer
}

type HealthRoutesIn struct {
	fx.In
	LC           fx.Lifecycle
	Logger       *zap.Logger
	Servers      ServersConfig
	Instrumenter touchhttp.ServerInstrumenter `name:"servers.health.metrics"`
}

func newPrimaryRouter(in PrimaryHandlersIn, tracing candlelight.Tracing) *mux.Router {
	router := mux.NewRouter()
	router.Use(
		otelmux.Middleware("server_primary",
			otelmux.WithTracerProvider(tracing.TracerProvider()),
			otelmux.WithPropagators(tracing.Propagator()),
		),
		candlelight.EchoFirstTraceNodeInfo(tracing.Propagator(), false),
	)
	router.Handle(fmt.Sprintf("/%s/%s", apiBase, eventsPath), in.Events).Methods(http.MethodPost)
	router.Handle(fmt.Sprintf("/%s/%s", apiBase, recordsPath), in.Records).Methods(http.MethodGet)
	return router
}

func BuildPrimaryRoutes(in PrimaryRoutesIn) {
	h := alice.New(
		recovery.Middleware(recovery.WithStatusCode(recoveredStatusCode)),
		in.Instrumenter.Then,
	).Then(newPrimaryRouter(in.Handlers, in.Tracing))
	bindServer(in.LC, "primary", newServer(in.Servers.Primary, h, in.Logger), in.Logger)
}

func BuildMetricsRoutes(in MetricsRoutesIn) {
	router := mux.NewRouter()
	router.Handle(metricsPath, promhttp.InstrumentMetricHandler(
		in.Registerer,
		promhttp.HandlerFor(in.Gatherer, promhttp.HandlerOpts{}),
	)).Methods(http.MethodGet)
	bindServer(in.LC, "metrics", newServer(in.Servers.Metrics, router, in.Logger), in.Logger)
}

func BuildHealthRoutes(in HealthRoutesIn) {
	router := mux.NewRouter()
	router.Handle(healthPath, httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
	bindServer(in.LC, "health", newServer(in.Servers.Health, in.Instrumenter.Then(router), in.Logger), in.Logger)
}
