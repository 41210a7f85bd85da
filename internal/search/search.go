// Package search runs the indexer search worker pool (§4.E): for each
// SearchRequest pulled off the bus, it resolves the title via cinemeta,
// fans out up to three concurrent Jackett queries, merges and caps the
// results, and republishes each hit for the torrent processor pool.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/bus"
	"github.com/voidwalker/annatar/internal/cinemeta"
	"github.com/voidwalker/annatar/internal/jackett"
	"github.com/voidwalker/annatar/internal/metrics"
	"github.com/voidwalker/annatar/internal/model"
	"github.com/voidwalker/annatar/internal/pipe"
	"github.com/voidwalker/annatar/internal/store"
)

const lockTTL = 30 * time.Second

// Worker consumes search requests and publishes what it finds.
type Worker struct {
	bus        *bus.Bus
	store      *store.Store
	cinemeta   *cinemeta.CineMeta
	jackett    *jackett.Jackett
	metrics    *metrics.Metrics
	maxResults int
}

func NewWorker(b *bus.Bus, s *store.Store, cm *cinemeta.CineMeta, jc *jackett.Jackett, m *metrics.Metrics, maxResults int) *Worker {
	return &Worker{bus: b, store: s, cinemeta: cm, jackett: jc, metrics: m, maxResults: maxResults}
}

// Run drains consumer until ctx is cancelled, processing one request at a
// time; the caller decides how many Run loops to start for concurrency.
func (w *Worker) Run(ctx context.Context, consumer *bus.Consumer[bus.SearchRequest]) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-consumer.Ch:
			if !ok {
				return
			}
			w.handle(ctx, req)
		}
	}
}

func (w *Worker) handle(ctx context.Context, req bus.SearchRequest) {
	lockKey := fmt.Sprintf("jackett:inflight:%s:%d:%d", req.ImdbID, req.Season, req.Episode)
	locked, err := w.store.TryLock(ctx, lockKey, lockTTL)
	if err != nil {
		log.Errorf("search: lock failed for %s: %v", req.ImdbID, err)
		return
	}
	if !locked {
		return
	}

	meta, err := w.cinemeta.GetByType(model.ContentType(req.Type), req.ImdbID)
	if err != nil {
		log.Errorf("search: cinemeta lookup failed for %s: %v", req.ImdbID, err)
		return
	}

	indexers, err := w.jackett.GetAllIndexers()
	if err != nil {
		log.Errorf("search: couldn't list indexers: %v", err)
		return
	}

	type job struct {
		indexer *jackett.Indexer
	}
	jobs := make([]job, 0, len(indexers))
	for _, idx := range indexers {
		if idx.Enable {
			jobs = append(jobs, job{indexer: idx})
		}
	}

	results := pipe.Parallel(jobs, func(j job) []*jackett.Torrent {
		torrents, err := w.searchOneIndexer(j.indexer, req, meta)
		if err != nil {
			log.Errorf("search: %s failed for %s: %v", j.indexer.Name, req.ImdbID, err)
			return nil
		}
		return torrents
	}, 3)

	total := 0
	for i, torrents := range results {
		indexer := jobs[i].indexer.Name
		for _, t := range torrents {
			if total >= w.maxResults {
				break
			}
			if err := w.bus.PublishTorrentSearchResult(ctx, bus.TorrentSearchResult{
				ImdbID:  req.ImdbID,
				Indexer: indexer,
				Title:   t.Title,
				GUID:    t.Guid,
				Link:    t.Link,
				Season:  req.Season,
				Episode: req.Episode,
			}); err != nil {
				log.Errorf("search: publish failed: %v", err)
				continue
			}
			if w.metrics != nil {
				w.metrics.SearchRequests.WithLabelValues(indexer).Inc()
			}
			total++
		}
	}
}

func (w *Worker) searchOneIndexer(indexer *jackett.Indexer, req bus.SearchRequest, meta *model.MetaInfo) ([]*jackett.Torrent, error) {
	switch model.ContentType(req.Type) {
	case model.ContentTypeMovie:
		return w.jackett.SearchMovieTorrents(indexer, meta.Name)
	case model.ContentTypeSeries:
		torrents, err := w.jackett.SearchSeriesTorrents(indexer, meta.Name)
		if err != nil {
			return nil, err
		}
		if len(torrents) == indexer.Capabilities.LimitDefaults && indexer.Capabilities.LimitDefaults > 0 {
			seasonTorrents, err := w.jackett.SearchSeasonTorrents(indexer, meta.Name, req.Season)
			if err == nil {
				torrents = append(torrents, seasonTorrents...)
			}
		}
		return torrents, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", req.Type)
	}
}
