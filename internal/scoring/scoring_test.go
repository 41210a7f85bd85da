package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voidwalker/annatar/internal/model"
)

func TestMatchesName(t *testing.T) {
	assert.True(t, MatchesName("Friends", "Friends"))
	assert.True(t, MatchesName("The.Matrix", "the matrix"))
	assert.False(t, MatchesName("Best.Friends", "Friends"))
}

func TestScoreSeries_Movie(t *testing.T) {
	assert.Equal(t, 0, ScoreSeries(nil, nil, 0, 0, true))
}

func TestScoreSeries_WholeSeries(t *testing.T) {
	season := model.NewIntRange(1, 10)
	assert.Equal(t, 3, ScoreSeries(season, nil, 5, 0, false))
}

func TestScoreSeries_WholeSeason(t *testing.T) {
	season := model.NewIntSet(5)
	assert.Equal(t, 2, ScoreSeries(season, nil, 5, 10, false))
}

func TestScoreSeries_ExactHit(t *testing.T) {
	season := model.NewIntSet(5)
	episode := model.NewIntSet(10)
	assert.Equal(t, 1, ScoreSeries(season, episode, 5, 10, false))
}

func TestScoreSeries_EpisodeMismatch(t *testing.T) {
	season := model.NewIntSet(5)
	episode := model.NewIntSet(11)
	assert.Equal(t, -10, ScoreSeries(season, episode, 5, 10, false))
}

func TestScoreSeries_SeasonMismatch(t *testing.T) {
	season := model.NewIntSet(4)
	assert.Equal(t, -100, ScoreSeries(season, nil, 5, 10, false))
}

func TestScoreSeries_Neutral(t *testing.T) {
	assert.Equal(t, -1, ScoreSeries(nil, nil, 5, 10, false))
}

func TestScoreSeries_Domain(t *testing.T) {
	allowed := map[int]bool{-100: true, -10: true, -1: true, 0: true, 1: true, 2: true, 3: true}
	cases := []int{
		ScoreSeries(nil, nil, 0, 0, true),
		ScoreSeries(model.NewIntRange(1, 5), nil, 2, 0, false),
		ScoreSeries(model.NewIntSet(2), nil, 2, 0, false),
		ScoreSeries(model.NewIntSet(2), model.NewIntSet(3), 2, 3, false),
		ScoreSeries(model.NewIntSet(2), model.NewIntSet(3), 2, 4, false),
		ScoreSeries(model.NewIntSet(1), nil, 2, 0, false),
		ScoreSeries(nil, nil, 2, 3, false),
	}
	for _, c := range cases {
		assert.True(t, allowed[c], "unexpected score %d", c)
	}
}

func TestMatchScore_NameMismatch(t *testing.T) {
	meta := model.TorrentMeta{Title: "The.Matrix"}
	query := model.SearchQuery{Name: "Inception", Type: model.ContentTypeMovie}
	assert.LessOrEqual(t, MatchScore(meta, query), -1000)
}

func TestMatchScore_ResolutionMonotonic(t *testing.T) {
	query := model.SearchQuery{Name: "The Matrix", Type: model.ContentTypeMovie, Year: 1999}

	low := model.TorrentMeta{Title: "The Matrix", Year: 1999, Resolution: model.Resolution720p}
	high := model.TorrentMeta{Title: "The Matrix", Year: 1999, Resolution: model.Resolution4K}

	assert.Greater(t, MatchScore(high, query), MatchScore(low, query))
}

func TestMatchScore_SeriesOutweighsResolution(t *testing.T) {
	query := model.SearchQuery{Name: "Friends", Type: model.ContentTypeSeries, Season: 5, Episode: 10}

	exactLowRes := model.TorrentMeta{
		Title: "Friends", Resolution: model.Resolution720p,
		Season: model.NewIntSet(5), Episode: model.NewIntSet(10),
	}
	mismatchHighRes := model.TorrentMeta{
		Title: "Friends", Resolution: model.Resolution4K,
		Season: model.NewIntSet(6), Episode: model.NewIntSet(1),
	}

	assert.Greater(t, MatchScore(exactLowRes, query), MatchScore(mismatchHighRes, query))
}

func TestMatchScore_SeasonMismatchDrops(t *testing.T) {
	query := model.SearchQuery{Name: "Friends", Type: model.ContentTypeSeries, Season: 5, Episode: 10}
	meta := model.TorrentMeta{Title: "Friends", Season: model.NewIntSet(3)}

	assert.LessOrEqual(t, MatchScore(meta, query), 0)
}

func TestMatchScore_EpisodeMismatchDrops(t *testing.T) {
	query := model.SearchQuery{Name: "Friends", Type: model.ContentTypeSeries, Season: 5, Episode: 10}
	meta := model.TorrentMeta{
		Title: "Friends", Season: model.NewIntSet(5), Episode: model.NewIntSet(3),
	}

	assert.LessOrEqual(t, MatchScore(meta, query), 0)
}

func TestMatchScore_RoundTripsResolution(t *testing.T) {
	query := model.SearchQuery{Name: "The Matrix", Type: model.ContentTypeMovie, Year: 1999}
	meta := model.TorrentMeta{Title: "The Matrix", Year: 1999, Resolution: model.Resolution1080p}

	score := MatchScore(meta, query)
	assert.Greater(t, score, 0)
	assert.Equal(t, meta.Resolution, GetResolution(score))
}
