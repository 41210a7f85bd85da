package titleparser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voidwalker/annatar/internal/model"
)

func TestParse_Movie(t *testing.T) {
	meta := Parse("The.Matrix.1999.2160p.BluRay.x265.10bit.HDR.7.1.DTS-HD")

	assert.Equal(t, "The.Matrix", meta.Title)
	assert.Equal(t, 1999, meta.Year)
	assert.Equal(t, model.Resolution4K, meta.Resolution)
	assert.Equal(t, "hevc", meta.Codec)
	assert.True(t, meta.HDR)
	assert.Equal(t, 10, meta.BitDepth)
	assert.Equal(t, "7.1", meta.AudioChannels)
	assert.Nil(t, meta.Season)
	assert.Nil(t, meta.Episode)
}

func TestParse_SeasonPack(t *testing.T) {
	meta := Parse("Friends.S05.COMPLETE.1080p")

	assert.True(t, meta.Season.Contains(5))
	assert.Nil(t, meta.Episode)
	assert.Equal(t, model.Resolution1080p, meta.Resolution)
}

func TestParse_SeriesRange(t *testing.T) {
	meta := Parse("Friends.S01-S10.COMPLETE.4k")

	for s := 1; s <= 10; s++ {
		assert.True(t, meta.Season.Contains(s), "season %d", s)
	}
	assert.False(t, meta.Season.Contains(11))
	assert.Equal(t, model.Resolution4K, meta.Resolution)
}

func TestParse_SeasonEpisode(t *testing.T) {
	meta := Parse("Friends.S05E10.720p.WEB-DL")

	assert.True(t, meta.Season.Contains(5))
	assert.True(t, meta.Episode.Contains(10))
	assert.False(t, meta.Episode.Contains(11))
}

func TestParse_ResolutionAliases(t *testing.T) {
	cases := map[string]string{
		"Show.1440p":     model.ResolutionQHD,
		"Show.2160p":     model.Resolution4K,
		"Show.2880p":     model.Resolution5K,
		"Show.4320p":     model.Resolution8K,
		"Show.4K.HDR":    model.Resolution4K,
		"Show.unrelated": "",
	}
	for title, want := range cases {
		meta := Parse(title)
		assert.Equal(t, want, meta.Resolution, title)
	}
}

func TestParse_Garbage(t *testing.T) {
	meta := Parse("")
	assert.Equal(t, "", meta.Title)
	assert.Equal(t, 0, meta.Year)
	assert.Equal(t, "", meta.Resolution)
}
