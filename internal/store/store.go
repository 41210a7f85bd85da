// Package store is the Redis-backed system of record ("ODM") for
// discovered torrents, locks and caches. Every other component treats this
// package, not the pub/sub bus, as the source of truth: the bus is a
// best-effort wakeup signal, the store is what gets read after waking.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/voidwalker/annatar/internal/model"
)

// torrentsTTL bounds how long a per-title ordered set survives without a
// fresh write or read; hot titles stay warm because every successful read
// bumps it back up, forgotten titles simply expire.
const torrentsTTL = 72 * time.Hour

// Store wraps a Redis client with the addon's key layout.
type Store struct {
	rdb *redis.Client
}

// New connects to redisURL (a redis:// URL) with the given pool size.
func New(redisURL string, poolSize int) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.PoolSize = poolSize

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("couldn't ping redis: %w", err)
	}

	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// torrentsKey is the sorted-set of info-hashes found for one title, scoped
// to a season/episode when the content is a series ("":0:0 for a movie).
func torrentsKey(imdbID string, season, episode int) string {
	if season == 0 && episode == 0 {
		return fmt.Sprintf("torrents:v1:%s", imdbID)
	}
	return fmt.Sprintf("torrents:v1:%s:%d:%d", imdbID, season, episode)
}

func metaKey(infoHash string) string {
	return "torrent:v1:meta:" + model.CanonicalInfoHash(infoHash)
}

func streamLinksLockKey(imdbID string, season int) string {
	return fmt.Sprintf("stream_links:%s:%d", imdbID, season)
}

// AddTorrent records one discovered torrent: its info-hash goes into the
// per-title sorted set ranked by match score, and its parsed metadata is
// stashed in a side hash keyed by info-hash so the set itself stays small.
func (s *Store) AddTorrent(ctx context.Context, imdbID string, season, episode int, torrent model.Torrent, score int) error {
	hash := model.CanonicalInfoHash(torrent.InfoHash)
	if !model.IsValidInfoHash(hash) {
		return fmt.Errorf("refusing to store invalid info-hash %q", torrent.InfoHash)
	}

	payload, err := json.Marshal(torrent)
	if err != nil {
		return err
	}

	key := torrentsKey(imdbID, season, episode)
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(score), Member: hash})
	pipe.Expire(ctx, key, torrentsTTL)
	pipe.HSet(ctx, metaKey(hash), "torrent", payload)
	pipe.Expire(ctx, metaKey(hash), 30*24*time.Hour)
	_, err = pipe.Exec(ctx)
	return err
}

// ListTorrents returns every torrent recorded for imdbID/season/episode,
// highest score first, with any malformed 40-hex-char guard applied so a
// corrupted member can never reach a debrid lookup. An episode request also
// pulls in the season-wide set (season packs are filed under episode 0 by
// AddTorrent, since a season search never has a single episode to key on),
// so a season pack discovered once satisfies every episode's request.
// filters are AND across categories; within a category a torrent is dropped
// as soon as any supplied filter's predicate matches (the stored selection
// is always the *exclusion* list). limit <= 0 means unbounded.
func (s *Store) ListTorrents(ctx context.Context, imdbID string, season, episode, limit int, filters ...model.Filter) ([]model.Torrent, error) {
	keys := []string{torrentsKey(imdbID, season, episode)}
	if season != 0 && episode != 0 {
		keys = append(keys, torrentsKey(imdbID, season, 0))
	}

	type member struct {
		hash  string
		score float64
	}
	var all []member
	for _, key := range keys {
		zs, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		if len(zs) > 0 {
			s.rdb.Expire(ctx, key, torrentsTTL)
		}
		for _, z := range zs {
			hash, ok := z.Member.(string)
			if !ok {
				continue
			}
			all = append(all, member{hash: hash, score: z.Score})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	torrents := make([]model.Torrent, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, m := range all {
		hash := model.CanonicalInfoHash(m.hash)
		if !model.IsValidInfoHash(hash) {
			continue
		}
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}

		raw, err := s.rdb.HGet(ctx, metaKey(hash), "torrent").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}

		var t model.Torrent
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			continue
		}
		if excludedByAny(t.TorrentMeta, filters) {
			continue
		}
		torrents = append(torrents, t)
		if limit > 0 && len(torrents) >= limit {
			break
		}
	}
	return torrents, nil
}

func excludedByAny(meta model.TorrentMeta, filters []model.Filter) bool {
	for _, f := range filters {
		if f.Applies(meta) {
			return true
		}
	}
	return false
}

// instantFileSetKey is the set of Real-Debrid file-ids a prior
// instant-availability probe found already cached for one torrent (§4.G,
// §3: "rd:instant_file_set:torrent:{hash}"). The initial resolve-time
// probe and the redirect endpoint's later unrestrict call are separate
// HTTP requests, so which file-ids came back cached has to survive
// between them.
func instantFileSetKey(infoHash string) string {
	return "rd:instant_file_set:torrent:" + model.CanonicalInfoHash(infoHash)
}

// SetInstantFileSet records every file-id Real-Debrid's instant-
// availability probe reported as already cached for infoHash, so a later
// unrestrict call for the same torrent doesn't need to re-probe.
func (s *Store) SetInstantFileSet(ctx context.Context, infoHash string, fileIDs []string, ttl time.Duration) error {
	if len(fileIDs) == 0 {
		return nil
	}
	key := instantFileSetKey(infoHash)
	members := make([]interface{}, len(fileIDs))
	for i, id := range fileIDs {
		members[i] = id
	}
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// GetInstantFileSet reports which of the candidate fileIDs were previously
// recorded as cached for infoHash. An empty/nil candidateIDs returns every
// id on record instead of filtering.
func (s *Store) GetInstantFileSet(ctx context.Context, infoHash string, candidateIDs []string) (map[string]bool, error) {
	recorded, err := s.rdb.SMembers(ctx, instantFileSetKey(infoHash)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	if len(candidateIDs) == 0 {
		cached := make(map[string]bool, len(recorded))
		for _, id := range recorded {
			cached[id] = true
		}
		return cached, nil
	}

	recordedSet := make(map[string]struct{}, len(recorded))
	for _, id := range recorded {
		recordedSet[id] = struct{}{}
	}
	cached := make(map[string]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		if _, ok := recordedSet[id]; ok {
			cached[id] = true
		}
	}
	return cached, nil
}

// TryLock attempts an atomic SET NX EX, returning true if the caller now
// holds the lock. Locks are never explicitly released on the happy path;
// callers trust the TTL to reclaim them rather than tracking ownership.
func (s *Store) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, "lock:v1:"+key, "1", ttl).Result()
}

// TryLockStreamLinks is the specific lock the stream resolver takes while
// waiting for the torrent processor to add results for imdbID/season.
func (s *Store) TryLockStreamLinks(ctx context.Context, imdbID string, season int, ttl time.Duration) (bool, error) {
	return s.TryLock(ctx, streamLinksLockKey(imdbID, season), ttl)
}

// RecordStreamRequest folds one more stream request into the distinct
// request-count HyperLogLog used for usage telemetry.
func (s *Store) RecordStreamRequest(ctx context.Context, imdbID string) error {
	return s.rdb.PFAdd(ctx, "stream_request", imdbID).Err()
}

// EstimateStreamRequests returns the HLL's cardinality estimate.
func (s *Store) EstimateStreamRequests(ctx context.Context) (int64, error) {
	return s.rdb.PFCount(ctx, "stream_request").Result()
}

// CacheGet/CacheSet implement a generic Redis string cache with TTL, used
// by the stream-links-by-API-token cache below. The jackett-search and
// cinemeta response caches are process-local (freecache) instead, since
// they exist to save an outbound HTTP call within one process rather than
// to coordinate across processes.
func (s *Store) CacheGet(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) CacheSet(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// StreamLinksCacheKey scopes a cached, fully-resolved stream list to the
// requesting API token so one user's debrid account never serves another's
// cached link.
func StreamLinksCacheKey(providerID, apiTokenHash, imdbID string, season, episode int) string {
	return fmt.Sprintf("stream_links_cache:v1:%s:%s:%s:%d:%d", providerID, apiTokenHash, imdbID, season, episode)
}

// ResolvedLinkCacheKey scopes one already-resolved playback URL to the
// provider/user/torrent/file it came from, so the internal redirect
// endpoint survives a player's repeated HEAD/Range probes without calling
// the debrid provider again for every one of them.
func ResolvedLinkCacheKey(providerID, apiTokenHash, infoHash, fileID string) string {
	return fmt.Sprintf("resolved_link:v1:%s:%s:%s:%s", providerID, apiTokenHash, model.CanonicalInfoHash(infoHash), fileID)
}

// StreamLinksCacheGet/Set cache the resolver's final, fully-ranked stream
// list (not the debrid layer's raw StreamLinks) so a second request for the
// same title/user within the TTL skips the debrid round trip entirely.
func (s *Store) StreamLinksCacheGet(ctx context.Context, key string) ([]model.Stream, bool, error) {
	raw, ok, err := s.CacheGet(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	var streams []model.Stream
	if err := json.Unmarshal([]byte(raw), &streams); err != nil {
		return nil, false, nil
	}
	return streams, true, nil
}

func (s *Store) StreamLinksCacheSet(ctx context.Context, key string, streams []model.Stream, ttl time.Duration) error {
	payload, err := json.Marshal(streams)
	if err != nil {
		return err
	}
	return s.CacheSet(ctx, key, string(payload), ttl)
}

// ParseSeasonEpisode is a small helper shared by callers building torrent
// keys from a Stremio-style "tt1234567:5:10" id suffix.
func ParseSeasonEpisode(raw string) (season, episode int, err error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed season:episode suffix %q", raw)
	}
	season, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	episode, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return season, episode, nil
}
