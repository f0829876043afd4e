package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tqrg-bot/ambari-sync/internal/status"
	"github.com/tqrg-bot/ambari-sync/internal/status/mocks"
)

func TestMemoryStateService_Initialize(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := mocks.NewMockStatusPersistence(ctrl)
	persistence.EXPECT().LoadAllStatus(gomock.Any()).Return(map[string]*status.TaskStatus{
		"updateHost":     {Phase: status.SyncPhaseComplete, ItemCount: 4},
		"updateServices": {Phase: status.SyncPhaseSyncing},
		"removedTask":    {Phase: status.SyncPhaseComplete},
	}, nil)

	svc := NewMemoryStateService(persistence)
	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx, []string{"updateHost", "updateServices", "updateAlertGroups"}))

	statuses, err := svc.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.Equal(t, status.SyncPhaseComplete, statuses["updateHost"].Phase)
	assert.Equal(t, 4, statuses["updateHost"].ItemCount)
	assert.Equal(t, status.SyncPhaseFailed, statuses["updateServices"].Phase)
	assert.Equal(t, "Previous run was interrupted", statuses["updateServices"].Message)
	assert.Equal(t, status.SyncPhasePending, statuses["updateAlertGroups"].Phase)
}

func TestMemoryStateService_InitializeWithUnreadablePersistence(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := mocks.NewMockStatusPersistence(ctrl)
	persistence.EXPECT().LoadAllStatus(gomock.Any()).Return(nil, errors.New("corrupt"))

	svc := NewMemoryStateService(persistence)
	require.NoError(t, svc.Initialize(context.Background(), []string{"updateHost"}))

	st, err := svc.GetStatus(context.Background(), "updateHost")
	require.NoError(t, err)
	assert.Equal(t, status.SyncPhasePending, st.Phase)
}

func TestMemoryStateService_GetStatusUnknown(t *testing.T) {
	t.Parallel()

	svc := NewMemoryStateService(nil)
	_, err := svc.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownTask)

	_, err = svc.UpdateStatusAtomically(context.Background(), "missing", func(*status.TaskStatus) bool { return true })
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestMemoryStateService_UpdateStatusAtomically(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := mocks.NewMockStatusPersistence(ctrl)
	persistence.EXPECT().LoadAllStatus(gomock.Any()).Return(map[string]*status.TaskStatus{}, nil)
	persistence.EXPECT().SaveStatus(gomock.Any(), "updateHost", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, st *status.TaskStatus) error {
			assert.Equal(t, status.SyncPhaseFailed, st.Phase)
			return nil
		})

	svc := NewMemoryStateService(persistence)
	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx, []string{"updateHost"}))

	changed, err := svc.UpdateStatusAtomically(ctx, "updateHost", func(*status.TaskStatus) bool { return false })
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = svc.UpdateStatusAtomically(ctx, "updateHost", func(st *status.TaskStatus) bool {
		st.Fail("FetchFailed", "HTTP 500")
		return true
	})
	require.NoError(t, err)
	assert.True(t, changed)

	st, err := svc.GetStatus(ctx, "updateHost")
	require.NoError(t, err)
	assert.Equal(t, status.SyncPhaseFailed, st.Phase)
	assert.Equal(t, "FetchFailed", st.Reason)
}

func TestMemoryStateService_FailedSaveKeepsCachedStatus(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := mocks.NewMockStatusPersistence(ctrl)
	persistence.EXPECT().LoadAllStatus(gomock.Any()).Return(map[string]*status.TaskStatus{}, nil)
	persistence.EXPECT().SaveStatus(gomock.Any(), "updateHost", gomock.Any()).Return(errors.New("disk full"))

	svc := NewMemoryStateService(persistence)
	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx, []string{"updateHost"}))

	changed, err := svc.UpdateStatusAtomically(ctx, "updateHost", func(st *status.TaskStatus) bool {
		st.Phase = status.SyncPhaseComplete
		return true
	})
	require.Error(t, err)
	assert.False(t, changed)

	st, err := svc.GetStatus(ctx, "updateHost")
	require.NoError(t, err)
	assert.Equal(t, status.SyncPhasePending, st.Phase)
}

func TestMemoryStateService_ReturnsCopies(t *testing.T) {
	t.Parallel()

	svc := NewMemoryStateService(nil)
	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx, []string{"updateHost"}))

	st, err := svc.GetStatus(ctx, "updateHost")
	require.NoError(t, err)
	st.Phase = status.SyncPhaseFailed

	statuses, err := svc.ListStatuses(ctx)
	require.NoError(t, err)
	statuses["updateHost"].Phase = status.SyncPhaseFailed

	st, err = svc.GetStatus(ctx, "updateHost")
	require.NoError(t, err)
	assert.Equal(t, status.SyncPhasePending, st.Phase)
}
