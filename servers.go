// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newServer(config ServerConfig, h http.Handler, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              config.Address,
		Handler:           h,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ErrorLog:          zap.NewStdLog(logger),
	}
}

// bindServer listens when the application starts and shuts the server down when it
// stops.
func bindServer(lc fx.Lifecycle, name string, s *http.Server, logger *zap.Logger) {
	logger = logger.With(zap.String("server", name), zap.String("address", s.Addr))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			l, err := net.Listen("tcp", s.Addr)
			if err != nil {
				return err
			}
			logger.Info("server listening")
			go func() {
				if err := s.Serve(l); !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: s.Shutdown,
	})
}
