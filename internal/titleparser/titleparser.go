// Package titleparser turns a free-form torrent release title into
// structured metadata (§4.A of the core design). Parsing is total: garbage
// input never errors, it just yields a mostly-empty TorrentMeta.
package titleparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/voidwalker/annatar/internal/model"
)

// parser is one recognizer in the pipeline. It inspects title, mutates meta
// in place for whatever it recognizes, and returns the start index of its
// match (or -1). The lowest returned index across every parser marks where
// the "clean" title ends — everything from there on is release-tag noise.
type parser func(title string, meta *model.TorrentMeta) int

var resolutionAliases = map[string]string{
	"720":  model.Resolution720p,
	"1080": model.Resolution1080p,
	"1440": model.ResolutionQHD,
	"2160": model.Resolution4K,
	"2880": model.Resolution5K,
	"4320": model.Resolution8K,
}

var parsers = []parser{
	parseYear(`(?:\b((?:19[0-9]|20[0-9])[0-9])\b)|(?:\(((?:19[0-9]|20[0-9])[0-9])\))`),
	parseResolutionDigits(`(?i)\b([0-9]{3,4})[pi]\b`),
	matchAndSetResolution(`(?i)\b4k\b`, model.Resolution4K),
	matchAndSetResolution(`(?i)\bqhd\b`, model.ResolutionQHD),
	parseCodec(`(?i)dvix|mpeg2|divx|xvid|[xh][-. ]?26[45]|avc|hevc|av1`),
	matchAndSetHDR(`(?i)\b(HDR10\+?|HDR|DV|DoVi|Dolby[-. ]?Vision)\b`),
	parseBitDepth(`(?i)\b(8|10|12)[-. ]?bit\b`),
	parseAudioChannels(`\b([57])\.1\b`),
	parseAudio(`(?i)MD|MP3|FLAC|Atmos|DTS(?:-HD)?|TrueHD|AC-?3|DD[P+]?5?|AAC|OPUS`),
	parseSeasonAndEpisodeRange(`(?i)S(\d{1,2})E(\d{1,3})-E?(\d{1,3})`),
	parseSeasonAndEpisode(`(?i)S(\d{1,2})[\s._-]?E(\d{1,3})`),
	parseMultiSeason(`(?i)S(\d{1,2})[\s._-]*(?:to|-)[\s._-]*S?(\d{1,2})\b`),
	parseMultiSeason(`(?i)\bseasons?\s+(\d{1,2})[\s-]+(?:to|-)?[\s-]*(\d{1,2})\b`),
	parseSingleSeason(`(?i)\bS(\d{1,2})\b`),
	parseSingleSeason(`(?i)\bseason[- ]?(\d{1,2})\b`),
	parseEpisodeOnlyRange(`(?i)\bE(\d{1,3})-E?(\d{1,3})\b`),
	parseEpisodeOnly(`(?i)\bE(\d{1,3})\b`),
	parseLanguages(`(?i)\b(English|French|FR|Spanish|SPA|German|GER|Italian|ITA|Hindi|Multi)\b`),
	parseSubtitles(`(?i)\b(subs?|subtitles?)[-. ]?(English|French|Spanish|German|Multi)\b`),
}

// Parse converts a raw release title into a TorrentMeta.
func Parse(title string) model.TorrentMeta {
	meta := model.TorrentMeta{RawTitle: title}
	cutoff := len(title)

	for _, p := range parsers {
		if idx := p(title, &meta); idx >= 0 && idx < cutoff {
			cutoff = idx
		}
	}

	meta.Title = normalizeTitle(title[:cutoff])
	return meta
}

func normalizeTitle(s string) string {
	s = strings.Trim(s, " .([_-")
	return s
}

func findLast(re *regexp.Regexp, title string) []int {
	matches := re.FindAllStringSubmatchIndex(title, -1)
	if len(matches) == 0 {
		return nil
	}
	return matches[len(matches)-1]
}

func parseYear(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Year > 0 {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil {
			return -1
		}
		for i := 2; i+1 < len(loc); i += 2 {
			if loc[i] >= 0 {
				meta.Year, _ = strconv.Atoi(title[loc[i]:loc[i+1]])
				return loc[0]
			}
		}
		return -1
	}
}

func parseResolutionDigits(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Resolution != "" {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil {
			return -1
		}
		digits := title[loc[2]:loc[3]]
		if token, ok := resolutionAliases[digits]; ok {
			meta.Resolution = token
			return loc[0]
		}
		return -1
	}
}

func matchAndSetResolution(pattern, value string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Resolution != "" {
			return -1
		}
		loc := re.FindStringIndex(title)
		if loc == nil {
			return -1
		}
		meta.Resolution = value
		return loc[0]
	}
}

func matchAndSetHDR(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.HDR {
			return -1
		}
		loc := re.FindStringIndex(title)
		if loc == nil {
			return -1
		}
		meta.HDR = true
		return loc[0]
	}
}

func parseBitDepth(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.BitDepth > 0 {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil {
			return -1
		}
		meta.BitDepth, _ = strconv.Atoi(title[loc[2]:loc[3]])
		return loc[0]
	}
}

func parseAudioChannels(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.AudioChannels != "" {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil {
			return -1
		}
		meta.AudioChannels = title[loc[2]:loc[3]] + ".1"
		return loc[0]
	}
}

func parseAudio(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Audio != "" {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil {
			return -1
		}
		meta.Audio = strings.ToUpper(title[loc[0]:loc[1]])
		return loc[0]
	}
}

func parseCodec(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Codec != "" {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil {
			return -1
		}
		codec := strings.ToLower(title[loc[0]:loc[1]])
		codec = strings.NewReplacer(".", "", "-", "", " ", "").Replace(codec)
		meta.Codec = codec
		return loc[0]
	}
}

// parseSeasonAndEpisode handles "S05E10" — a single season, a single episode.
func parseSeasonAndEpisode(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Season != nil || meta.Episode != nil {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil || len(loc) < 6 {
			return -1
		}
		season, _ := strconv.Atoi(title[loc[2]:loc[3]])
		episode, _ := strconv.Atoi(title[loc[4]:loc[5]])
		meta.Season = model.NewIntSet(season)
		meta.Episode = model.NewIntSet(episode)
		return loc[0]
	}
}

// parseSeasonAndEpisodeRange handles "S05E01-E10" — one season, an episode range.
func parseSeasonAndEpisodeRange(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Season != nil || meta.Episode != nil {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil || len(loc) < 8 {
			return -1
		}
		season, _ := strconv.Atoi(title[loc[2]:loc[3]])
		from, _ := strconv.Atoi(title[loc[4]:loc[5]])
		to, _ := strconv.Atoi(title[loc[6]:loc[7]])
		meta.Season = model.NewIntSet(season)
		meta.Episode = model.NewIntRange(from, to)
		return loc[0]
	}
}

// parseMultiSeason handles "S01-S10" / "Season 1-10" — a season range, no episode (series pack).
func parseMultiSeason(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Season != nil {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil || len(loc) < 6 {
			return -1
		}
		from, _ := strconv.Atoi(title[loc[2]:loc[3]])
		to, _ := strconv.Atoi(title[loc[4]:loc[5]])
		meta.Season = model.NewIntRange(from, to)
		return loc[0]
	}
}

// parseSingleSeason handles a bare "S05" / "Season 5" — a season pack, no episode.
func parseSingleSeason(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Season != nil {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil || len(loc) < 4 {
			return -1
		}
		season, _ := strconv.Atoi(title[loc[2]:loc[3]])
		meta.Season = model.NewIntSet(season)
		return loc[0]
	}
}

// parseEpisodeOnlyRange handles "E01-E10" with no season marker.
func parseEpisodeOnlyRange(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Episode != nil {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil || len(loc) < 6 {
			return -1
		}
		from, _ := strconv.Atoi(title[loc[2]:loc[3]])
		to, _ := strconv.Atoi(title[loc[4]:loc[5]])
		meta.Episode = model.NewIntRange(from, to)
		return loc[0]
	}
}

func parseEpisodeOnly(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		if meta.Episode != nil {
			return -1
		}
		loc := findLast(re, title)
		if loc == nil || len(loc) < 4 {
			return -1
		}
		episode, _ := strconv.Atoi(title[loc[2]:loc[3]])
		meta.Episode = model.NewIntSet(episode)
		return loc[0]
	}
}

func parseLanguages(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		loc := findLast(re, title)
		if loc == nil {
			return -1
		}
		lang := strings.ToUpper(title[loc[2]:loc[3]])
		for _, existing := range meta.Languages {
			if existing == lang {
				return loc[0]
			}
		}
		meta.Languages = append(meta.Languages, lang)
		return loc[0]
	}
}

func parseSubtitles(pattern string) parser {
	re := regexp.MustCompile(pattern)
	return func(title string, meta *model.TorrentMeta) int {
		loc := findLast(re, title)
		if loc == nil || len(loc) < 6 {
			return -1
		}
		meta.Subtitles = append(meta.Subtitles, strings.ToUpper(title[loc[4]:loc[5]]))
		return loc[0]
	}
}
