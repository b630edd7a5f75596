// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package awsconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStaticCredentials(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	cfg, err := Load(context.Background(), Config{
		Region:     "us-west-2",
		AccessKey:  "AKIDEXAMPLE",
		SecretKey:  "secret",
		MaxRetries: 4,
	})
	require.NoError(err)
	assert.Equal("us-west-2", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(err)
	assert.Equal("AKIDEXAMPLE", creds.AccessKeyID)
	assert.Equal("secret", creds.SecretAccessKey)
}

func TestBaseEndpoint(t *testing.T) {
	assert := assert.New(t)
	assert.Nil(Config{}.BaseEndpoint())
	ep := Config{Endpoint: "http://localhost:8000"}.BaseEndpoint()
	if assert.NotNil(ep) {
		assert.Equal("http://localhost:8000", *ep)
	}
}
