// Package process runs the torrent processor worker pool (§4.F): it takes
// raw search hits off the bus, resolves each to a magnet/info-hash,
// parses the release title, scores it against the title it was searched
// for, and stores anything that survives.
package process

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/bus"
	"github.com/voidwalker/annatar/internal/jackett"
	"github.com/voidwalker/annatar/internal/metrics"
	"github.com/voidwalker/annatar/internal/model"
	"github.com/voidwalker/annatar/internal/scoring"
	"github.com/voidwalker/annatar/internal/store"
	"github.com/voidwalker/annatar/internal/titleparser"
)

// guidLockTTL is long: once one worker has resolved a GUID's magnet, every
// other worker that sees the same GUID again (republished by another
// indexer query) should skip the expensive resolve step for a while.
const guidLockTTL = 8 * 7 * 24 * time.Hour

// Pool processes torrent search results; concurrency is the number of Run
// loops the caller starts.
type Pool struct {
	bus     *bus.Bus
	store   *store.Store
	jackett *jackett.Jackett
	metrics *metrics.Metrics
}

// New builds a processor pool bound to the given store/bus/jackett client.
// The query name lookup is passed to Run as a NameLookup since the
// processor only sees a bare imdb id on the wire.
func New(b *bus.Bus, s *store.Store, jc *jackett.Jackett, m *metrics.Metrics) *Pool {
	return &Pool{bus: b, store: s, jackett: jc, metrics: m}
}

// NameLookup resolves an imdb id to the canonical title and year used for
// scoring, and reports whether the title is a movie. It is satisfied by
// cinemeta in production.
type NameLookup func(ctx context.Context, imdbID string) (name string, year int, isMovie bool, err error)

// Run drains consumer until ctx is cancelled.
func (p *Pool) Run(ctx context.Context, consumer *bus.Consumer[bus.TorrentSearchResult], lookup NameLookup) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-consumer.Ch:
			if !ok {
				return
			}
			p.handle(ctx, result, lookup)
		}
	}
}

func (p *Pool) handle(ctx context.Context, result bus.TorrentSearchResult, lookup NameLookup) {
	locked, err := p.store.TryLock(ctx, "guid:"+result.GUID, guidLockTTL)
	if err != nil {
		log.Errorf("process: lock failed for %s: %v", result.GUID, err)
		return
	}
	if !locked {
		return
	}

	name, year, isMovie, err := lookup(ctx, result.ImdbID)
	if err != nil {
		log.Errorf("process: name lookup failed for %s: %v", result.ImdbID, err)
		return
	}

	torrent := &jackett.Torrent{Title: result.Title, Guid: result.GUID, Link: result.Link}
	torrent, err = p.jackett.FetchInfoHash(torrent)
	if err != nil || torrent.InfoHash == "" {
		log.Debugf("process: couldn't resolve info-hash for %s: %v", result.Title, err)
		return
	}

	meta := titleparser.Parse(result.Title)

	contentType := model.ContentTypeSeries
	if isMovie {
		contentType = model.ContentTypeMovie
	}

	query := model.SearchQuery{
		ImdbID:  result.ImdbID,
		Name:    name,
		Type:    contentType,
		Year:    year,
		Season:  result.Season,
		Episode: result.Episode,
	}

	score := scoring.MatchScore(meta, query)
	if score <= 0 {
		return
	}

	stored := model.Torrent{
		TorrentMeta: meta,
		InfoHash:    model.CanonicalInfoHash(torrent.InfoHash),
		Indexer:     result.Indexer,
		Size:        uint64(torrent.Size),
		Seeders:     torrent.Seeders,
	}

	for _, season := range expandSeasons(meta.Season, result.Season) {
		for _, episode := range expandEpisodes(meta.Episode, 0) {
			if err := p.store.AddTorrent(ctx, result.ImdbID, season, episode, stored, score); err != nil {
				log.Errorf("process: store failed for %s: %v", torrent.InfoHash, err)
				continue
			}
			if p.metrics != nil {
				p.metrics.TorrentsAdded.WithLabelValues(result.Indexer).Inc()
			}
			if err := p.bus.PublishTorrentAdded(ctx, bus.TorrentAdded{ImdbID: result.ImdbID, Season: season, Episode: episode}); err != nil {
				log.Errorf("process: publish TorrentAdded failed: %v", err)
			}
		}
	}
}

// expandSeasons/expandEpisodes turn a parsed season/episode set (which may
// span a whole series or season pack) into the concrete keys this torrent
// should be filed under, falling back to the given value when the parser
// found nothing more specific: the season that was searched for, and
// episode 0 (the season-wide key) for a season or series pack.
func expandSeasons(parsed model.IntSet, fallback int) []int {
	if parsed == nil {
		return []int{fallback}
	}
	seasons := make([]int, 0, len(parsed))
	for s := range parsed {
		seasons = append(seasons, s)
	}
	return seasons
}

func expandEpisodes(parsed model.IntSet, fallback int) []int {
	if parsed == nil {
		return []int{fallback}
	}
	episodes := make([]int, 0, len(parsed))
	for e := range parsed {
		episodes = append(episodes, e)
	}
	return episodes
}
