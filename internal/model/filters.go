package model

import "strings"

// Filter is an exclusion predicate selected by the user's configuration.
// Applies(meta) == true means "drop this torrent" — the stored list carries
// the exclusion filters, not the keep filters the UI shows.
type Filter struct {
	ID      string
	Applies func(meta TorrentMeta) bool
}

// Recognized filter ids, per spec.md §6.
const (
	FilterResolution4K            = "4k"
	FilterResolutionQHD           = "qhd"
	FilterResolution1080p         = "1080p"
	FilterResolution720p          = "720p"
	FilterResolution480p          = "480p"
	FilterResolutionUnknown       = "unknown_resolution"
	FilterVideoQualityYTS         = "yts"
	FilterVideoQualityRemux       = "remux"
	FilterVideoQualityHDR         = "hdr"
	FilterVideoQualityX265        = "x265"
	FilterVideoQualityX264        = "x264"
	FilterVideoQualityTenBit      = "ten_bit"
)

// BuildFilters turns the user-selected filter ids into predicates.
func BuildFilters(ids []string) []Filter {
	filters := make([]Filter, 0, len(ids))
	for _, id := range ids {
		if f, ok := filterByID(id); ok {
			filters = append(filters, f)
		}
	}
	return filters
}

func filterByID(id string) (Filter, bool) {
	switch id {
	case FilterResolution4K:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return m.Resolution == Resolution4K || m.Resolution == Resolution5K || m.Resolution == Resolution8K }}, true
	case FilterResolutionQHD:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return m.Resolution == ResolutionQHD }}, true
	case FilterResolution1080p:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return m.Resolution == Resolution1080p }}, true
	case FilterResolution720p:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return m.Resolution == Resolution720p }}, true
	case FilterResolution480p:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return m.Resolution == "480p" }}, true
	case FilterResolutionUnknown:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return m.Resolution == "" }}, true
	case FilterVideoQualityYTS:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return strings.Contains(strings.ToLower(m.RawTitle), "yts") }}, true
	case FilterVideoQualityRemux:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return strings.Contains(strings.ToLower(m.RawTitle), "remux") }}, true
	case FilterVideoQualityHDR:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return m.HDR }}, true
	case FilterVideoQualityX265:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return strings.Contains(m.Codec, "265") || strings.Contains(m.Codec, "hevc") }}, true
	case FilterVideoQualityX264:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return strings.Contains(m.Codec, "264") || strings.Contains(m.Codec, "avc") }}, true
	case FilterVideoQualityTenBit:
		return Filter{ID: id, Applies: func(m TorrentMeta) bool { return m.BitDepth >= 10 }}, true
	default:
		return Filter{}, false
	}
}

// Reject reports whether meta should be dropped by any of the filters —
// filters are OR'd within the exclusion list (a torrent is dropped if it
// matches any one active exclusion), AND'd against every other drop reason
// the caller applies separately.
func Reject(filters []Filter, meta TorrentMeta) bool {
	for _, f := range filters {
		if f.Applies(meta) {
			return true
		}
	}
	return false
}
