// Package resolver implements the stream resolver (§4.H): it publishes a
// search request, gives the search/process pipeline a bounded window to
// populate the store, then drains the store through a debrid provider to
// produce the final, user-facing list of streams.
package resolver

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/bus"
	"github.com/voidwalker/annatar/internal/debrid"
	"github.com/voidwalker/annatar/internal/metrics"
	"github.com/voidwalker/annatar/internal/model"
	"github.com/voidwalker/annatar/internal/store"
)

const waitLockTTL = 1 * time.Hour

// streamLinksCacheTTL bounds how long a fully-resolved stream list is
// served back without another debrid round trip; short enough that a
// newly-added higher-scoring torrent still surfaces soon.
const streamLinksCacheTTL = 5 * time.Minute

// Resolver ties the store and bus together; the debrid provider is passed
// to each Resolve call.
type Resolver struct {
	store         *store.Store
	bus           *bus.Bus
	searchTimeout time.Duration
	metrics       *metrics.Metrics
}

func New(s *store.Store, b *bus.Bus, searchTimeout time.Duration, m *metrics.Metrics) *Resolver {
	return &Resolver{store: s, bus: b, searchTimeout: searchTimeout, metrics: m}
}

// Resolve is the full stream-resolution flow for one Stremio stream
// request. season/episode are 0 for a movie, and season 0 is a legal
// "specials" season for a series (only the absence of the suffix upstream
// means "not applicable", never season 0 itself).
func (r *Resolver) Resolve(ctx context.Context, query model.SearchQuery, provider debrid.Provider, apiKeyHash string, maxResults int, filters ...model.Filter) ([]model.Stream, error) {
	if err := r.store.RecordStreamRequest(ctx, query.ImdbID); err != nil {
		log.Warnf("resolver: failed to record stream request telemetry: %v", err)
	}

	cacheKey := store.StreamLinksCacheKey(provider.ID(), apiKeyHash, query.ImdbID, query.Season, query.Episode)
	if cached, ok, err := r.store.StreamLinksCacheGet(ctx, cacheKey); err == nil && ok {
		return cached, nil
	}

	if err := r.bus.PublishSearchRequest(ctx, bus.SearchRequest{
		ImdbID:  query.ImdbID,
		Name:    query.Name,
		Type:    string(query.Type),
		Year:    query.Year,
		Season:  query.Season,
		Episode: query.Episode,
	}); err != nil {
		log.Warnf("resolver: failed to publish search request: %v", err)
	}

	torrents, err := r.waitForTorrents(ctx, query, filters)
	if err != nil {
		return nil, err
	}
	if len(torrents) == 0 {
		return nil, nil
	}

	start := time.Now()
	streams, err := r.rankAndResolve(ctx, torrents, provider, query.Season, query.Episode, maxResults)
	if r.metrics != nil {
		r.metrics.ResolveDuration.WithLabelValues(string(query.Type)).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		} else if len(streams) == 0 {
			outcome = "empty"
		}
		r.metrics.DebridResolves.WithLabelValues(provider.ShortName(), outcome).Inc()
	}
	if err == nil && len(streams) > 0 {
		if cacheErr := r.store.StreamLinksCacheSet(ctx, cacheKey, streams, streamLinksCacheTTL); cacheErr != nil {
			log.Warnf("resolver: failed to cache resolved streams: %v", cacheErr)
		}
	}
	return streams, err
}

// waitForTorrents reads whatever the store already has, and if it's empty,
// takes a lock and waits (bounded by searchTimeout) for the processor pool
// to publish a TorrentAdded event before re-reading the store. The bus
// event is only ever a wakeup; the store read after waking is what's
// trusted, never values carried on the event itself.
func (r *Resolver) waitForTorrents(ctx context.Context, query model.SearchQuery, filters []model.Filter) ([]model.Torrent, error) {
	torrents, err := r.store.ListTorrents(ctx, query.ImdbID, query.Season, query.Episode, 0, filters...)
	if err != nil {
		return nil, err
	}
	if len(torrents) > 0 {
		return torrents, nil
	}

	locked, err := r.store.TryLockStreamLinks(ctx, query.ImdbID, query.Season, waitLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		// Someone else is already waiting on this title; give the
		// processor pool the same window without double-publishing.
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.searchTimeout)
	defer cancel()

	consumer := bus.Subscribe[bus.TorrentAdded](waitCtx, r.bus, bus.TopicTorrentAdded, 16)
	defer consumer.Close()

	deadline := time.After(r.searchTimeout)
	for {
		select {
		case added, ok := <-consumer.Ch:
			if !ok {
				return r.store.ListTorrents(ctx, query.ImdbID, query.Season, query.Episode, 0, filters...)
			}
			if added.ImdbID != query.ImdbID || added.Season != query.Season {
				continue
			}
			return r.store.ListTorrents(ctx, query.ImdbID, query.Season, query.Episode, 0, filters...)
		case <-deadline:
			return r.store.ListTorrents(ctx, query.ImdbID, query.Season, query.Episode, 0, filters...)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// rankAndResolve iterates the debrid provider's generator with a per-
// resolution quota so one dominant resolution can't crowd out every other
// option, stopping as soon as maxResults is reached, then sorts the
// accepted links by descending (resolution rank, size).
func (r *Resolver) rankAndResolve(ctx context.Context, torrents []model.Torrent, provider debrid.Provider, season, episode, maxResults int) ([]model.Stream, error) {
	quota := int(math.Ceil(float64(maxResults) / 3))
	perResolution := map[string]int{}

	stop := make(chan struct{})
	defer close(stop)

	var seasonEpisode []int
	if season != 0 || episode != 0 {
		seasonEpisode = []int{season, episode}
	}

	linkCh, err := provider.GetStreamLinks(ctx, torrents, seasonEpisode, stop, maxResults)
	if err != nil {
		return nil, err
	}

	byHash := make(map[string]model.Torrent, len(torrents))
	for _, t := range torrents {
		byHash[t.InfoHash] = t
	}

	type ranked struct {
		torrent    model.Torrent
		streamLink model.StreamLink
	}
	accepted := make([]ranked, 0, maxResults)

	for link := range linkCh {
		if len(accepted) >= maxResults {
			break
		}

		t := byHash[link.InfoHash]
		if perResolution[t.Resolution] >= quota && quota > 0 {
			continue
		}
		perResolution[t.Resolution]++

		accepted = append(accepted, ranked{torrent: t, streamLink: link})
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		ri, rj := model.ResolutionRank(accepted[i].torrent.Resolution), model.ResolutionRank(accepted[j].torrent.Resolution)
		if ri != rj {
			return ri > rj
		}
		return accepted[i].streamLink.Size > accepted[j].streamLink.Size
	})

	streams := make([]model.Stream, 0, len(accepted))
	for _, a := range accepted {
		streams = append(streams, model.Stream{
			URL:   a.streamLink.URL,
			Name:  streamName(provider.ShortName(), a.torrent.TorrentMeta),
			Title: streamTitle(a.streamLink.Name, a.torrent.TorrentMeta, a.streamLink.Size),
			Size:  a.streamLink.Size,
		})
	}

	return streams, nil
}

// streamName builds the "[{provider}+] Annatar {provider} {resolution}
// {channels}" label shown as a stream's short name in Stremio's picker.
func streamName(providerShort string, meta model.TorrentMeta) string {
	resolution := meta.Resolution
	if resolution == "" {
		resolution = "?"
	}
	return fmt.Sprintf("[%s+] Annatar %s %s %s", providerShort, providerShort, resolution, meta.AudioChannels)
}

// streamTitle builds the raw file name plus a compact metadata line used as
// the stream's longer description.
func streamTitle(fileName string, meta model.TorrentMeta, size uint64) string {
	bitDepth := ""
	if meta.BitDepth > 0 {
		bitDepth = fmt.Sprintf(" %dbit", meta.BitDepth)
	}
	hdr := ""
	if meta.HDR {
		hdr = " HDR"
	}
	audio := ""
	if meta.AudioChannels != "" {
		audio = " 🔊" + meta.AudioChannels
	}
	metaLine := fmt.Sprintf("📺%s%s%s%s %s %s", meta.Resolution, bitDepth, hdr, audio, meta.Codec, humanSize(size))
	return fileName + "\n" + metaLine
}

func humanSize(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
