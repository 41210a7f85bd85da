// Package model holds the data types shared across the search pipeline,
// the stream resolver and the debrid layer.
package model

import "strings"

// ContentType mirrors https://github.com/Stremio/stremio-addon-sdk/blob/master/docs/api/responses/content.types.md
type ContentType string

const (
	ContentTypeMovie  ContentType = "movie"
	ContentTypeSeries ContentType = "series"
)

// Canonical resolution tokens. The parser normalizes every recognized
// resolution alias (1440p, 2160p, 2880p, 4320p, "4K", ...) into one of these.
const (
	Resolution720p  = "720p"
	Resolution1080p = "1080p"
	ResolutionQHD   = "QHD"
	Resolution4K    = "4K"
	Resolution5K    = "5K"
	Resolution8K    = "8K"
)

// resolutionRank orders the canonical tokens from worst to best; used by the
// scoring model to turn a token into a monotonic integer.
var resolutionRank = map[string]int{
	"":              0,
	Resolution720p:  1,
	Resolution1080p: 2,
	ResolutionQHD:   3,
	Resolution4K:    4,
	Resolution5K:    5,
	Resolution8K:    6,
}

// ResolutionRank returns the scoring rank of a canonical resolution token,
// 0 for unknown/empty.
func ResolutionRank(resolution string) int {
	return resolutionRank[resolution]
}

// RankToResolution is ResolutionRank's inverse, used to recover a resolution
// token from a packed match score without re-parsing the release title.
func RankToResolution(rank int) string {
	for token, r := range resolutionRank {
		if r == rank {
			return token
		}
	}
	return ""
}

// TorrentMeta is the parsed view of a free-form release title.
type TorrentMeta struct {
	RawTitle      string
	Title         string
	Year          int
	Season        IntSet
	Episode       IntSet
	Resolution    string
	Codec         string
	Audio         string
	AudioChannels string
	HDR           bool
	BitDepth      int
	Languages     []string
	Subtitles     []string
	// Extra carries fields the parser recognizes but that are not part of
	// the fixed schema above, keeping the struct closed without losing
	// detail a future caller might want.
	Extra map[string]string
}

// IntSet is a small unordered set of ints used for season/episode ranges and
// season packs. Nil means "unspecified", distinct from an empty-but-present set.
type IntSet map[int]struct{}

// NewIntSet builds an IntSet from the given values.
func NewIntSet(values ...int) IntSet {
	if len(values) == 0 {
		return nil
	}
	s := make(IntSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// NewIntRange builds an IntSet spanning [from, to] inclusive.
func NewIntRange(from, to int) IntSet {
	if to < from {
		from, to = to, from
	}
	s := make(IntSet, to-from+1)
	for v := from; v <= to; v++ {
		s[v] = struct{}{}
	}
	return s
}

// Contains reports whether v is a member of the set. A nil set contains nothing.
func (s IntSet) Contains(v int) bool {
	if s == nil {
		return false
	}
	_, ok := s[v]
	return ok
}

// Torrent is a parsed TorrentMeta plus its canonicalized info-hash.
type Torrent struct {
	TorrentMeta
	InfoHash string // 40 upper-case hex chars
	Indexer  string
	Size     uint64
	Seeders  uint
}

// CanonicalInfoHash upper-cases an info-hash the way every stored form must be.
func CanonicalInfoHash(hash string) string {
	return strings.ToUpper(strings.TrimSpace(hash))
}

// IsValidInfoHash reports whether hash is exactly 40 hex characters.
func IsValidInfoHash(hash string) bool {
	if len(hash) != 40 {
		return false
	}
	for _, r := range hash {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// SearchQuery describes what the search pipeline and resolver are looking for.
type SearchQuery struct {
	ImdbID  string
	Name    string
	Type    ContentType
	Year    int
	Season  int // 0 means "not applicable" for a movie; a legal "specials" season for a series
	Episode int
}

// StreamLink is what the debrid layer hands back for one playable file.
type StreamLink struct {
	URL      string
	Name     string
	Size     uint64
	InfoHash string
}

// Stream is the fully-formed, user-facing result the resolver returns.
type Stream struct {
	URL   string
	Name  string
	Title string
	Size  uint64
}

// MetaInfo is the canonical-title/year lookup the metadata provider returns.
type MetaInfo struct {
	Name     string
	IMDBID   uint
	FromYear int
	ToYear   int
}
