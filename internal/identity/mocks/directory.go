// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

// Package mocks provides testify mocks for the identity contract.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/oryen/oryen/internal/identity"
)

// MockDirectory is a testify mock of identity.Directory.
type MockDirectory struct {
	mock.Mock
}

// NewMockDirectory creates a MockDirectory that asserts its expectations on cleanup.
func NewMockDirectory(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockDirectory {
	m := &MockDirectory{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// DocumentExists implements identity.Directory.
func (m *MockDirectory) DocumentExists(ctx context.Context, kind identity.ActorKind, digits string) (bool, error) {
	args := m.Called(ctx, kind, digits)
	return args.Bool(0), args.Error(1)
}

// EmailExists implements identity.Directory.
func (m *MockDirectory) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// ResolveEmailForDocument implements identity.Directory.
func (m *MockDirectory) ResolveEmailForDocument(ctx context.Context, kind identity.ActorKind, digits string) (string, error) {
	args := m.Called(ctx, kind, digits)
	return args.String(0), args.Error(1)
}

// SignIn implements identity.Directory.
func (m *MockDirectory) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(identity.Session), args.Error(1)
}

// CreateAccount implements identity.Directory.
func (m *MockDirectory) CreateAccount(ctx context.Context, email, password string) (identity.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(identity.Session), args.Error(1)
}

// PersistIdentity implements identity.Directory.
func (m *MockDirectory) PersistIdentity(ctx context.Context, userID string, record identity.Record) error {
	args := m.Called(ctx, userID, record)
	return args.Error(0)
}

// SubscribeSessionChanges implements identity.Directory.
func (m *MockDirectory) SubscribeSessionChanges(fn func(identity.SessionChange)) (identity.Subscription, error) {
	args := m.Called(fn)
	var sub identity.Subscription
	if v := args.Get(0); v != nil {
		sub = v.(identity.Subscription)
	}
	return sub, args.Error(1)
}
