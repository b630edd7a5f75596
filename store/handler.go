// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/sallust/sallusthttp"
	"go.uber.org/zap"
)

type Handler http.Handler

func newListRecordsHandler(s S, logger *zap.Logger) Handler {
	if logger == nil {
		logger = sallust.Default()
	}
	return kithttp.NewServer(
		newListRecordsEndpoint(s),
		decodeListRecordsRequest,
		encodeListRecordsResponse,
		kithttp.ServerBefore(sallusthttp.SetLogger(logger, sallusthttp.RequestInfo)),
		kithttp.ServerErrorEncoder(EncodeError),
	)
}
