// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/setsync/model"
)

type mockDB struct {
	mock.Mock
}

func (s *mockDB) Put(_ context.Context, record model.Record) error {
	args := s.Called(record)
	return args.Error(0)
}

func (s *mockDB) Delete(_ context.Context, key model.Key) error {
	args := s.Called(key)
	return args.Error(0)
}

func (s *mockDB) List(_ context.Context, resourceID string) ([]model.Record, error) {
	args := s.Called(resourceID)
	return args.Get(0).([]model.Record), args.Error(1)
}

func (s *mockDB) Close() {
	s.Called()
}

func (s *mockDB) Ping() error {
	args := s.Called()
	return args.Error(0)
}
