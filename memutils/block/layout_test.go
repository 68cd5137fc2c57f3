package block_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/block"
)

func TestLayoutGeometry(t *testing.T) {
	testCases := []struct {
		alignment    uint
		headerSize   int
		overhead     int
		minBlockSize int
		minPayload   int
	}{
		{alignment: 8, headerSize: 16, overhead: 24, minBlockSize: 40, minPayload: 16},
		{alignment: 16, headerSize: 16, overhead: 24, minBlockSize: 48, minPayload: 24},
		{alignment: 32, headerSize: 32, overhead: 40, minBlockSize: 64, minPayload: 24},
	}

	for _, testCase := range testCases {
		layout, err := block.NewLayout(testCase.alignment)
		require.NoError(t, err)

		require.Equal(t, testCase.alignment, layout.Alignment())
		require.Equal(t, testCase.headerSize, layout.HeaderSize())
		require.Equal(t, 8, layout.FooterSize())
		require.Equal(t, testCase.overhead, layout.Overhead())
		require.Equal(t, testCase.minBlockSize, layout.MinBlockSize())
		require.Equal(t, testCase.minPayload, layout.MinPayload())
	}
}

func TestLayoutRejectsBadAlignment(t *testing.T) {
	_, err := block.NewLayout(24)
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))

	_, err = block.NewLayout(4)
	require.Error(t, err)

	_, err = block.NewLayout(0)
	require.Error(t, err)
}

func TestPaddedSize(t *testing.T) {
	layout := block.DefaultLayout()

	testCases := map[int]int{
		0:   48,
		1:   48,
		24:  48,
		25:  64,
		40:  64,
		41:  80,
		50:  80,
		140: 176,
		200: 224,
	}

	for payload, expected := range testCases {
		require.Equal(t, expected, layout.PaddedSize(payload), "payload %d", payload)
	}
}

func TestPaddedSizeIsConsistent(t *testing.T) {
	for _, alignment := range []uint{8, 16, 32, 64} {
		layout, err := block.NewLayout(alignment)
		require.NoError(t, err)

		for payload := 0; payload < 1024; payload++ {
			total := layout.PaddedSize(payload)
			require.True(t, memutils.IsAligned(total, alignment))
			require.GreaterOrEqual(t, total, layout.MinBlockSize())
			require.GreaterOrEqual(t, total, payload+layout.Overhead())
			require.GreaterOrEqual(t, layout.PayloadOf(total), payload)
			require.Equal(t, total, layout.PaddedSize(layout.PayloadOf(total)))
		}
	}
}
