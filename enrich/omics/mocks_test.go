// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package omics

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/omics"
	"github.com/stretchr/testify/mock"
)

type mockClient struct {
	mock.Mock
}

func (c *mockClient) GetReadSetMetadata(_ context.Context, input *omics.GetReadSetMetadataInput, _ ...func(*omics.Options)) (*omics.GetReadSetMetadataOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*omics.GetReadSetMetadataOutput), args.Error(1)
}

func (c *mockClient) ListTagsForResource(_ context.Context, input *omics.ListTagsForResourceInput, _ ...func(*omics.Options)) (*omics.ListTagsForResourceOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*omics.ListTagsForResourceOutput), args.Error(1)
}

func (c *mockClient) GetSequenceStore(_ context.Context, input *omics.GetSequenceStoreInput, _ ...func(*omics.Options)) (*omics.GetSequenceStoreOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*omics.GetSequenceStoreOutput), args.Error(1)
}

func (c *mockClient) ListReadSets(_ context.Context, input *omics.ListReadSetsInput, _ ...func(*omics.Options)) (*omics.ListReadSetsOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*omics.ListReadSetsOutput), args.Error(1)
}
