package block_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/brkheap/memutils/block"
)

func TestRegionTags(t *testing.T) {
	layout := block.DefaultLayout()
	region := block.NewRegion(layout, make([]byte, 512))

	first := block.Block(0)
	region.WriteTags(first, 40, false)

	require.Equal(t, 40, region.PayloadSize(first))
	require.Equal(t, 40, region.FooterPayloadSize(first))
	require.Equal(t, 64, region.TotalSize(first))
	require.False(t, region.Available(first))

	second := region.Next(first)
	require.Equal(t, block.Block(64), second)
	region.WriteTags(second, 200, true)

	require.True(t, region.Available(second))
	require.Equal(t, first, region.Prev(second))
	require.Equal(t, block.Block(288), region.Next(second))

	region.SetAvailable(second, false)
	require.False(t, region.Available(second))
	require.Equal(t, 200, region.PayloadSize(second))
}

func TestRegionPayload(t *testing.T) {
	layout := block.DefaultLayout()
	region := block.NewRegion(layout, make([]byte, 256))

	b := block.Block(48)
	region.WriteTags(b, 30, false)

	payload := region.Payload(b)
	require.Len(t, payload, 30)
	require.Equal(t, 30, cap(payload))
	require.Equal(t, 64, region.PayloadOffset(b))
	require.Equal(t, b, region.BlockAt(region.PayloadOffset(b)))

	for i := range payload {
		payload[i] = 0xFF
	}

	// The payload must not reach the footer
	require.Equal(t, 30, region.FooterPayloadSize(b))
}

func TestRegionLinks(t *testing.T) {
	layout := block.DefaultLayout()
	region := block.NewRegion(layout, make([]byte, 256))

	b := block.Block(96)
	region.WriteTags(b, layout.MinPayload(), true)
	region.SetPrevFree(b, block.None)
	region.SetNextFree(b, 160)

	require.Equal(t, block.None, region.PrevFree(b))
	require.Equal(t, block.Block(160), region.NextFree(b))
	require.Equal(t, layout.MinPayload(), region.PayloadSize(b))
	require.Equal(t, layout.MinPayload(), region.FooterPayloadSize(b))
}

func TestRegionCanaryOffset(t *testing.T) {
	layout := block.DefaultLayout()
	region := block.NewRegion(layout, make([]byte, 256))

	small := block.Block(0)
	region.WriteTags(small, layout.MinPayload(), true)
	_, ok := region.CanaryOffset(small, 16)
	require.False(t, ok)

	_, ok = region.CanaryOffset(small, 0)
	require.False(t, ok)

	large := region.Next(small)
	region.WriteTags(large, 64, true)
	offset, ok := region.CanaryOffset(large, 16)
	require.True(t, ok)
	require.Equal(t, region.PayloadOffset(large)+16, offset)
}

func TestRegionReset(t *testing.T) {
	layout := block.DefaultLayout()
	backing := make([]byte, 0, 256)
	region := block.NewRegion(layout, backing[:64])
	require.Equal(t, 64, region.Len())

	region.WriteTags(0, 40, false)
	region.Reset(backing[:128])
	require.Equal(t, 128, region.Len())
	require.Equal(t, 40, region.PayloadSize(0))
}

func TestAlignmentPadding(t *testing.T) {
	data := make([]byte, 4096)
	base := block.AlignmentPadding(data, 0, 64)
	require.GreaterOrEqual(t, base, 0)
	require.Less(t, base, 64)

	require.Equal(t, 0, block.AlignmentPadding(data, base, 64))
	require.Equal(t, 63, block.AlignmentPadding(data, base+1, 64))
	require.Equal(t, 8, block.AlignmentPadding(data, base+56, 16))
	require.Equal(t, 0, block.AlignmentPadding(nil, 32, 16))
}

func TestRegionOffsetOf(t *testing.T) {
	data := make([]byte, 256)
	region := block.NewRegion(block.DefaultLayout(), data)

	offset, ok := region.OffsetOf(data[48:64])
	require.True(t, ok)
	require.Equal(t, 48, offset)

	_, ok = region.OffsetOf(make([]byte, 16))
	require.False(t, ok)

	_, ok = region.OffsetOf(nil)
	require.False(t, ok)
}
