package heap_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/brkheap/heap"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/sbrk"
	"github.com/vkngwrapper/brkheap/memutils/sbrk/mock_sbrk"
	"go.uber.org/mock/gomock"
)

func TestOutOfMemoryLeavesHeapUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backing := sbrk.NewReserved(4096)
	env := mock_sbrk.NewMockEnvironment(ctrl)
	env.EXPECT().Memory().DoAndReturn(backing.Memory).AnyTimes()

	gomock.InOrder(
		env.EXPECT().Sbrk(gomock.Any()).Return(-1, errors.New("address space exhausted")).Times(2),
		env.EXPECT().Sbrk(gomock.Any()).DoAndReturn(backing.Sbrk),
	)

	h, err := heap.New(nil, env, heap.CreateOptions{})
	require.NoError(t, err)

	p, err := h.Allocate(100)
	require.True(t, errors.Is(err, memutils.OutOfMemoryError))
	require.Contains(t, err.Error(), "could not grow the heap")
	require.Equal(t, heap.Null, p)
	require.True(t, h.IsEmpty())
	require.Equal(t, 0, h.Stats().GrowCalls)
	require.NoError(t, h.Validate())

	// Retrying is idempotent
	_, err = h.Allocate(100)
	require.True(t, errors.Is(err, memutils.OutOfMemoryError))
	require.True(t, h.IsEmpty())
	require.NoError(t, h.Validate())

	p, err = h.Allocate(100)
	require.NoError(t, err)
	require.NotEqual(t, heap.Null, p)
	require.Equal(t, 1, h.Stats().GrowCalls)
	require.Equal(t, 128, h.Extent())
	require.NoError(t, h.Validate())
}

func TestGrowthRequestsOnlyWhatSlackCannotCover(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backing := sbrk.NewReserved(4096)
	env := mock_sbrk.NewMockEnvironment(ctrl)
	env.EXPECT().Memory().DoAndReturn(backing.Memory).AnyTimes()

	gomock.InOrder(
		env.EXPECT().Sbrk(224).DoAndReturn(backing.Sbrk),
		// 144 bytes of slack left by the shrink cover most of the 176 bytes needed
		env.EXPECT().Sbrk(32).DoAndReturn(backing.Sbrk),
	)

	h, err := heap.New(nil, env, heap.CreateOptions{})
	require.NoError(t, err)

	a, err := h.Allocate(200)
	require.NoError(t, err)
	_, err = h.Resize(a, 50)
	require.NoError(t, err)
	require.Equal(t, 144, h.Slack())

	_, err = h.Allocate(140)
	require.NoError(t, err)
	require.Equal(t, 0, h.Slack())
	require.NoError(t, h.Validate())
}

func TestEnvironmentMustNotMoveBreak(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backing := sbrk.NewReserved(4096)
	env := mock_sbrk.NewMockEnvironment(ctrl)
	env.EXPECT().Memory().DoAndReturn(backing.Memory).AnyTimes()
	env.EXPECT().Sbrk(gomock.Any()).DoAndReturn(func(increment int) (int, error) {
		_, _ = backing.Sbrk(64)
		return backing.Sbrk(increment)
	})

	h, err := heap.New(nil, env, heap.CreateOptions{})
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = h.Allocate(10)
	})
}
