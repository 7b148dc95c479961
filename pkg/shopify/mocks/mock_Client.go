// Package mocks provides test doubles for the shopify client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/reprice/internal/model"
	shopify "github.com/sells-group/reprice/pkg/shopify"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// FetchActiveVariants provides a mock function with given fields: ctx
func (_m *MockClient) FetchActiveVariants(ctx context.Context) ([]model.Variant, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for FetchActiveVariants")
	}

	var r0 []model.Variant
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) ([]model.Variant, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) []model.Variant); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.Variant)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateVariant provides a mock function with given fields: ctx, variantID, upd
func (_m *MockClient) UpdateVariant(ctx context.Context, variantID int64, upd shopify.VariantUpdate) error {
	ret := _m.Called(ctx, variantID, upd)

	if len(ret) == 0 {
		panic("no return value specified for UpdateVariant")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, int64, shopify.VariantUpdate) error); ok {
		r0 = rf(ctx, variantID, upd)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ shopify.Client = (*MockClient)(nil)
