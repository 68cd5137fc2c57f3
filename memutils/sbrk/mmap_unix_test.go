//go:build linux || darwin

package sbrk_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/sbrk"
)

func TestMmapGrowth(t *testing.T) {
	env, err := sbrk.NewMmap(1 << 20)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, env.Close())
	}()

	brk, err := env.Sbrk(4096)
	require.NoError(t, err)
	require.Equal(t, 0, brk)

	memory := env.Memory()
	require.Len(t, memory, 4096)
	memory[4095] = 0xAB

	brk, err = env.Sbrk(1<<20 - 4096)
	require.NoError(t, err)
	require.Equal(t, 4096, brk)
	require.Equal(t, byte(0xAB), env.Memory()[4095])

	_, err = env.Sbrk(1)
	require.True(t, errors.Is(err, memutils.OutOfMemoryError))
}

func TestMmapClosed(t *testing.T) {
	env, err := sbrk.NewMmap(4096)
	require.NoError(t, err)
	require.NoError(t, env.Close())
	require.NoError(t, env.Close())

	_, err = env.Sbrk(16)
	require.Error(t, err)
	require.Len(t, env.Memory(), 0)
}
