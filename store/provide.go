// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type handlerIn struct {
	fx.In

	Store  S
	Logger *zap.Logger `optional:"true"`
}

// ProvideHandlers builds the read-only handlers for the record store.
func ProvideHandlers() fx.Option {
	return fx.Provide(
		fx.Annotated{
			Name: "list_records_handler",
			Target: func(in handlerIn) Handler {
				return newListRecordsHandler(in.Store, in.Logger)
			},
		},
	)
}
