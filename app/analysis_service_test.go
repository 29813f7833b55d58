package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"loostaar/adapters/memory"
	"loostaar/domain/core"
	"loostaar/domain/loo"
	apperrors "loostaar/internal/errors"
	"loostaar/internal/testkit"
	"loostaar/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Save(ctx context.Context, table *loo.Table) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

func (m *MockRunRepository) Get(ctx context.Context, id core.RunID) (*loo.Table, error) {
	args := m.Called(ctx, id)
	table, _ := args.Get(0).(*loo.Table)
	return table, args.Error(1)
}

func (m *MockRunRepository) List(ctx context.Context, limit, offset int) ([]ports.RunSummary, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]ports.RunSummary), args.Error(1)
}

func (m *MockRunRepository) Delete(ctx context.Context, id core.RunID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestAnalysisService_AnalyzeStoresTable(t *testing.T) {
	ctx := context.Background()
	m, test := testkit.ExampleScenario()
	svc := NewAnalysisService(newService(t, test), memory.NewRunRepository())

	table, err := svc.Analyze(ctx, exampleRequest(m, 2))
	require.NoError(t, err)

	stored, err := svc.Get(ctx, table.RunID)
	require.NoError(t, err)
	assert.Equal(t, table.Rows, stored.Rows)

	list, err := svc.List(ctx, 0, -5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "example", list[0].Label)

	require.NoError(t, svc.Delete(ctx, table.RunID))
	_, err = svc.Get(ctx, table.RunID)
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
	assert.True(t, stderrors.Is(svc.Delete(ctx, table.RunID), apperrors.ErrNotFound))
}

func TestAnalysisService_SaveFailureReturnsTable(t *testing.T) {
	ctx := context.Background()
	m, test := testkit.ExampleScenario()

	repo := new(MockRunRepository)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*loo.Table")).
		Return(apperrors.DatabaseError("insert loo_runs", fmt.Errorf("connection refused")))

	svc := NewAnalysisService(newService(t, test), repo)
	table, err := svc.Analyze(ctx, exampleRequest(m, 2))

	require.Error(t, err)
	require.NotNil(t, table)
	assert.Len(t, table.Rows, 6)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetCode(err))
	repo.AssertExpectations(t)
}

func TestAnalysisService_FatalRunIsNotStored(t *testing.T) {
	ctx := context.Background()
	m, test := testkit.ExampleScenario()
	test.FailFull(fmt.Errorf("boom"))

	repo := new(MockRunRepository)
	svc := NewAnalysisService(newService(t, test), repo)

	_, err := svc.Analyze(ctx, exampleRequest(m, 2))
	require.Error(t, err)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
