// Package mocks provides mock implementations of the session ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the backend interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	backend := mocks.NewMockSessionBackend(ctrl)
//	backend.EXPECT().Lock(gomock.Any(), gomock.Any()).Return(func() {}, nil)
package mocks

// Generate mock for SessionBackend interface from internal/ports package.
// This creates MockSessionBackend with methods for all SessionBackend interface methods:
// Load, Save, Delete, Lock
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_backend_mock.go github.com/target/gatehouse/internal/ports SessionBackend
