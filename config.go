// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/setsync/applier"
	"github.com/xmidt-org/setsync/backfill"
	"github.com/xmidt-org/setsync/consumer"
	omicsenrich "github.com/xmidt-org/setsync/enrich/omics"
	"github.com/xmidt-org/setsync/ingest"
	"github.com/xmidt-org/setsync/queue"
	"github.com/xmidt-org/setsync/queue/inmem"
	"github.com/xmidt-org/setsync/queue/sqs"
	"github.com/xmidt-org/setsync/store/cassandra"
	"github.com/xmidt-org/setsync/store/db"
	"github.com/xmidt-org/setsync/store/dynamodb"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Queue types
const (
	InMemQueue = "inmem"
	SQSQueue   = "sqs"
)

var errUnknownQueueType = errors.New("unknown queue type")

// ServerConfig describes one of the HTTP servers.
type ServerConfig struct {
	Address           string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

type ServersConfig struct {
	Primary ServerConfig
	Metrics ServerConfig
	Health  ServerConfig
}

// QueueConfig selects and configures the delivery queue.
type QueueConfig struct {
	// Type is inmem or sqs. (Optional). Defaults to inmem.
	Type     string
	Grouping queue.Grouping
	InMem    inmem.Config
	SQS      sqs.Config
}

// ConfigOut exposes every configuration section to the container.
type ConfigOut struct {
	fx.Out

	Prometheus touchstone.Config
	Tracing    candlelight.Config
	Servers    ServersConfig
	Queue      QueueConfig
	Stores     db.Configs
	Omics      omicsenrich.Config
	Consumer   consumer.Config
	Policy     applier.Policy
	Ingest     ingest.Config
	Backfill   backfill.Config
}

const (
	defaultPrimaryAddress = ":6600"
	defaultMetricsAddress = ":6601"
	defaultHealthAddress  = ":6602"
)

func validateServers(config *ServersConfig) {
	if config.Primary.Address == "" {
		config.Primary.Address = defaultPrimaryAddress
	}
	if config.Metrics.Address == "" {
		config.Metrics.Address = defaultMetricsAddress
	}
	if config.Health.Address == "" {
		config.Health.Address = defaultHealthAddress
	}
}

func unmarshalConfig(v *viper.Viper) (ConfigOut, error) {
	var out ConfigOut
	sections := []struct {
		key    string
		target interface{}
	}{
		{key: "prometheus", target: &out.Prometheus},
		{key: "tracing", target: &out.Tracing},
		{key: "servers", target: &out.Servers},
		{key: "queue", target: &out.Queue},
		{key: "omics", target: &out.Omics},
		{key: "consumer", target: &out.Consumer},
		{key: "policy", target: &out.Policy},
		{key: "ingest", target: &out.Ingest},
		{key: "backfill", target: &out.Backfill},
	}
	for _, s := range sections {
		if !v.IsSet(s.key) {
			continue
		}
		if err := v.UnmarshalKey(s.key, s.target); err != nil {
			return ConfigOut{}, fmt.Errorf("failed to unmarshal %s config: %w", s.key, err)
		}
	}
	out.Tracing.ApplicationName = applicationName
	validateServers(&out.Servers)

	if v.IsSet("dynamo") {
		out.Stores.Dynamo = new(dynamodb.Config)
		if err := v.UnmarshalKey("dynamo", out.Stores.Dynamo); err != nil {
			return ConfigOut{}, fmt.Errorf("failed to unmarshal dynamo config: %w", err)
		}
	}
	if v.IsSet("yugabyte") {
		out.Stores.Yugabyte = new(cassandra.Config)
		if err := v.UnmarshalKey("yugabyte", out.Stores.Yugabyte); err != nil {
			return ConfigOut{}, fmt.Errorf("failed to unmarshal yugabyte config: %w", err)
		}
	}

	if err := out.Queue.Grouping.Validate(); err != nil {
		return ConfigOut{}, err
	}
	switch out.Queue.Type {
	case "":
		out.Queue.Type = InMemQueue
	case InMemQueue, SQSQueue:
	default:
		return ConfigOut{}, fmt.Errorf("%w: %q", errUnknownQueueType, out.Queue.Type)
	}
	if err := out.Policy.Validate(); err != nil {
		return ConfigOut{}, err
	}
	return out, nil
}
