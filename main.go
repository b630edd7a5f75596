// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/xmidt-org/setsync/queue"
	"github.com/xmidt-org/setsync/store"
	"github.com/xmidt-org/setsync/store/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const (
	applicationName = "setsync"
	apiBase         = "api/v1"
)

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

func main() {
	v, logger, f, err := setup(os.Args[1:])
	switch {
	case errors.Is(err, pflag.ErrHelp):
		return
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Supply(logger, v),
		provideMetrics(),
		db.Provide(),
		queue.ProvideMetrics(),
		store.ProvideHandlers(),
		provideComponents(),
		mode(f, logger),
	)

	switch err := app.Err(); {
	case err == nil:
		app.Run()
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// mode picks between the long running service and a one-shot backfill.
func mode(f flags, logger *zap.Logger) fx.Option {
	if f.BackfillStoreID != "" {
		logger.Info("running backfill", zap.String("storeID", f.BackfillStoreID))
		return fx.Options(
			fx.Supply(fx.Annotated{Name: "backfill_store_id", Target: f.BackfillStoreID}),
			fx.Invoke(runBackfill),
		)
	}

	return fx.Options(
		fx.Invoke(
			startConsumer,
			BuildPrimaryRoutes,
			BuildMetricsRoutes,
			BuildHealthRoutes,
		),
	)
}
