// Package scoring implements the decision logic that ranks a parsed torrent
// title against a search query (§4.B). The packed integer it produces sorts
// correctly by plain numeric comparison, which is what lets the storage
// layer (§4.C) keep a per-title ordered set without re-parsing titles.
package scoring

import (
	"regexp"
	"strings"

	"github.com/voidwalker/annatar/internal/model"
)

// NoMatch is returned by MatchScore whenever the release name does not
// match the query. It is one of the scores <= 0 that every caller must
// treat as "drop" (see MatchScore).
const NoMatch = -1_000_000

var nonWord = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Bit layout, MSB to LSB, packed inside MatchScore's return value. Ranges
// are chosen so that a strictly larger field always outweighs every lower
// field combined, keeping the plain integer a total order consistent with
// (series-match, resolution, audio, year-match). The series field is signed:
// a season or episode mismatch pushes the whole score negative, which is
// MatchScore's drop signal alongside NoMatch (see MatchScore).
const (
	seriesShift     = 20
	resolutionShift = 14
	resolutionMask  = 0x7 // RankToResolution only ever needs to distinguish ranks 0-6
	audioShift      = 8
	yearShift       = 6
)

// MatchesName reports whether title names the same release as queryName.
// Comparison is case-insensitive and treats runs of non-word characters as
// flexible (ignorable) separators; the match is anchored to the full
// length of both strings so "Friends" never matches "Best Friends".
func MatchesName(title, queryName string) bool {
	return normalize(title) == normalize(queryName)
}

func normalize(s string) string {
	return strings.ToLower(nonWord.ReplaceAllString(s, ""))
}

// ScoreSeries implements the fixed ladder from §4.B. reqSeason/reqEpisode
// are the season/episode being searched for; isMovie short-circuits the
// whole thing to the movie case (0).
func ScoreSeries(season, episode model.IntSet, reqSeason, reqEpisode int, isMovie bool) int {
	if isMovie {
		return 0
	}

	hasSeason := season != nil
	hasEpisode := episode != nil

	switch {
	case hasSeason && len(season) > 1 && season.Contains(reqSeason):
		return 3
	case hasSeason && !hasEpisode && season.Contains(reqSeason):
		return 2
	case hasSeason && hasEpisode && season.Contains(reqSeason) && episode.Contains(reqEpisode):
		return 1
	case hasEpisode && !episode.Contains(reqEpisode):
		return -10
	case hasSeason && !season.Contains(reqSeason):
		return -100
	default:
		return -1
	}
}

// MatchScore packs the series/resolution/audio/year sub-scores into a
// single integer. A season or episode mismatch makes the series term
// negative, and since it occupies the most-significant bits that carries
// straight through to the packed result: callers must treat any score <= 0
// as "drop", same as NoMatch.
func MatchScore(meta model.TorrentMeta, query model.SearchQuery) int {
	if !MatchesName(meta.Title, query.Name) {
		return NoMatch
	}

	series := ScoreSeries(meta.Season, meta.Episode, query.Season, query.Episode, query.Type == model.ContentTypeMovie)
	seriesScore := series << seriesShift
	if seriesScore < 0 {
		return seriesScore
	}

	resolutionRank := model.ResolutionRank(meta.Resolution)

	audioScore := 0
	switch meta.AudioChannels {
	case "5.1":
		audioScore = 1
	case "7.1":
		audioScore = 2
	}

	yearMatch := 0
	if query.Year == 0 || meta.Year == 0 || meta.Year == query.Year {
		yearMatch = 1
	}

	return seriesScore |
		(resolutionRank << resolutionShift) |
		(audioScore << audioShift) |
		(yearMatch << yearShift)
}

// GetResolution recovers the resolution token folded into a MatchScore
// result, so a caller filtering an already-scored set by resolution never
// has to re-parse the release title. Undefined (returns "") for a score
// that MatchScore would have callers drop.
func GetResolution(score int) string {
	if score <= 0 {
		return ""
	}
	rank := (score >> resolutionShift) & resolutionMask
	return model.RankToResolution(rank)
}
