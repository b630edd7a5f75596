// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package awsconfig builds the shared AWS SDK configuration used by the DynamoDB
// store, the SQS queue and the HealthOmics lookup.
package awsconfig

import (
	"context"

	"emperror.dev/emperror"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Config identifies where and as whom an AWS client connects.
type Config struct {
	// Region of the service. (Optional) Defaults to the SDK's resolution chain.
	Region string

	// Endpoint overrides the service endpoint, e.g. for local emulators.
	Endpoint string

	// Profile selects a shared config profile.
	Profile string

	// AccessKey and SecretKey enable static credentials. Both must be set.
	AccessKey    string
	SecretKey    string
	SessionToken string

	// MaxRetries caps the SDK's own retry attempts. (Optional)
	MaxRetries int
}

// Load resolves an aws.Config from c.
func Load(ctx context.Context, c Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, config.WithRegion(c.Region))
	}
	if c.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(c.Profile))
	}
	if c.AccessKey != "" && c.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, c.SessionToken)))
	}
	if c.MaxRetries > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(c.MaxRetries))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, emperror.WrapWith(err, "loading aws config failed", "region", c.Region, "profile", c.Profile)
	}
	return cfg, nil
}

// BaseEndpoint returns the endpoint override as the SDK expects it, or nil.
func (c Config) BaseEndpoint() *string {
	if c.Endpoint == "" {
		return nil
	}
	return aws.String(c.Endpoint)
}
