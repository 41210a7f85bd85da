// Package addon implements the Stremio-facing HTTP surface (§6): the
// manifest, the stream resolver entry point, a diagnostic search route,
// and the internal redirect used to defer per-user link resolution out of
// the cached catalog response.
package addon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/bus"
	"github.com/voidwalker/annatar/internal/cinemeta"
	"github.com/voidwalker/annatar/internal/debrid"
	"github.com/voidwalker/annatar/internal/metrics"
	"github.com/voidwalker/annatar/internal/model"
	"github.com/voidwalker/annatar/internal/resolver"
	"github.com/voidwalker/annatar/internal/store"
)

const resolvedLinkTTL = 10 * time.Minute

var idPattern = regexp.MustCompile(`^(tt\d+)(?::(\d+):(\d+))?$`)

// Addon wires the store, bus, resolver and debrid registry into the HTTP
// handlers Stremio calls directly.
type Addon struct {
	id          string
	name        string
	version     string
	description string

	store     *store.Store
	bus       *bus.Bus
	resolver  *resolver.Resolver
	providers *debrid.Registry
	cinemeta  *cinemeta.CineMeta
	metrics   *metrics.Metrics

	defaultMaxResults int

	forwardOriginIP bool
	originIPHeader  string
}

type Option func(*Addon)

// New builds an Addon. store/bus/resolver/providers/cm/m are required;
// everything else is overridable through Option.
func New(s *store.Store, b *bus.Bus, r *resolver.Resolver, providers *debrid.Registry, cm *cinemeta.CineMeta, m *metrics.Metrics, forwardOriginIP bool, originIPHeader string, opts ...Option) *Addon {
	addon := &Addon{
		id:                "community.annatar",
		name:              "Annatar",
		version:           "1.0.0",
		description:       "Torrent streaming addon backed by your own debrid account",
		store:             s,
		bus:               b,
		resolver:          r,
		providers:         providers,
		cinemeta:          cm,
		metrics:           m,
		defaultMaxResults: DefaultMaxResults,
		forwardOriginIP:   forwardOriginIP,
		originIPHeader:    originIPHeader,
	}

	for _, opt := range opts {
		opt(addon)
	}

	return addon
}

// HandleManifest serves both /manifest.json and /{b64config}/manifest.json.
func (a *Addon) HandleManifest(c *fiber.Ctx) error {
	raw := c.Params("config")
	configured := false
	if raw != "" {
		if _, err := DecodeUserConfig(raw); err == nil {
			configured = true
		}
	}
	return c.JSON(a.manifest(configured))
}

// HandleStream is the primary resolver entry point:
// /{b64config}/stream/{type}/{id}.json.
func (a *Addon) HandleStream(c *fiber.Ctx) error {
	if a.metrics != nil {
		a.metrics.StreamRequests.WithLabelValues(c.Params("type")).Inc()
	}

	cfg, err := DecodeUserConfig(c.Params("config"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid configuration"})
	}

	provider, ok := a.providers.Build(cfg.DebridService, cfg.DebridAPIKey, a.sourceIP(c))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unknown debrid service %q", cfg.DebridService)})
	}

	contentType := model.ContentType(c.Params("type"))
	if contentType != model.ContentTypeMovie && contentType != model.ContentTypeSeries {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unknown content type %q", contentType)})
	}

	imdbID, season, episode, err := parseStreamID(contentType, strings.TrimSuffix(c.Params("id"), ".json"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	meta, err := a.cinemeta.GetByType(contentType, imdbID)
	if err != nil {
		log.Errorf("addon: cinemeta lookup failed for %s: %v", imdbID, err)
		return c.JSON(GetStreamsResponse{Streams: []StreamItem{}, Error: "Error getting media info"})
	}

	query := model.SearchQuery{
		ImdbID:  imdbID,
		Name:    meta.Name,
		Type:    contentType,
		Year:    meta.FromYear,
		Season:  season,
		Episode: episode,
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = a.defaultMaxResults
	}

	filters := model.BuildFilters(cfg.Filters)
	streams, err := a.resolver.Resolve(c.Context(), query, provider, hashAPIKey(cfg.DebridAPIKey), maxResults, filters...)
	if err != nil {
		log.Errorf("addon: resolve failed for %s: %v", imdbID, err)
		return c.JSON(GetStreamsResponse{Streams: []StreamItem{}, Error: "Error searching"})
	}

	items := make([]StreamItem, 0, len(streams))
	for _, s := range streams {
		items = append(items, streamItem(s))
	}
	return c.JSON(GetStreamsResponse{Streams: items})
}

// HandleSearchDiagnostic serves /search/imdb/{category}/{imdb_id}: it
// triggers the same SearchRequest a stream lookup would and reports
// whatever the ODM already holds, for operators debugging a cold title.
func (a *Addon) HandleSearchDiagnostic(c *fiber.Ctx) error {
	category := c.Params("category")
	imdbID := c.Params("imdb_id")

	contentType := model.ContentTypeMovie
	if category == "series" || category == string(model.ContentTypeSeries) {
		contentType = model.ContentTypeSeries
	}

	meta, err := a.cinemeta.GetByType(contentType, imdbID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Error getting media info"})
	}

	if err := a.bus.PublishSearchRequest(c.Context(), bus.SearchRequest{
		ImdbID: imdbID,
		Name:   meta.Name,
		Type:   string(contentType),
		Year:   meta.FromYear,
	}); err != nil {
		log.Warnf("addon: failed to publish diagnostic search request: %v", err)
	}

	torrents, err := a.store.ListTorrents(c.Context(), imdbID, 0, 0, 0)
	if err != nil {
		return err
	}

	type mediaEntry struct {
		Hash  string `json:"hash"`
		Title string `json:"title"`
	}
	media := make([]mediaEntry, 0, len(torrents))
	for _, t := range torrents {
		media = append(media, mediaEntry{Hash: t.InfoHash, Title: t.RawTitle})
	}
	return c.JSON(fiber.Map{"media": media})
}

// HandleResolve serves GET/HEAD /{provider_id}/{api_key}/{info_hash}/{file_id}:
// it re-resolves one torrent through the provider and redirects to the
// playback URL, caching the result briefly so a player's HEAD/Range
// follow-ups don't each cost a fresh debrid round trip.
func (a *Addon) HandleResolve(c *fiber.Ctx) error {
	providerID := c.Params("provider_id")
	apiKey := c.Params("api_key")
	infoHash := c.Params("info_hash")
	fileID := c.Params("file_id")

	provider, ok := a.providers.Build(providerID, apiKey, a.sourceIP(c))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unknown debrid service %q", providerID)})
	}

	keyHash := hashAPIKey(apiKey)
	cacheKey := store.ResolvedLinkCacheKey(providerID, keyHash, infoHash, fileID)
	if cached, ok, err := a.store.CacheGet(c.Context(), cacheKey); err == nil && ok {
		return c.Redirect(cached, fiber.StatusFound)
	}

	season, episode, err := store.ParseSeasonEpisode(fileID)
	if err != nil {
		season, episode = 0, 0
	}

	link, err := provider.GetStreamForTorrent(c.Context(), model.Torrent{InfoHash: infoHash}, []int{season, episode})
	if err != nil {
		log.Errorf("addon: resolve failed for %s/%s: %v", infoHash, fileID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Error resolving stream"})
	}

	if err := a.store.CacheSet(c.Context(), cacheKey, link.URL, resolvedLinkTTL); err != nil {
		log.Warnf("addon: failed to cache resolved link: %v", err)
	}

	return c.Redirect(link.URL, fiber.StatusFound)
}

// parseStreamID splits a Stremio stream id into its imdb/season/episode
// parts. A series id of the form "tt...:0:5" treats season 0 literally as
// a legal "specials" season — "not applicable" is represented only by the
// total absence of the ":season:episode" suffix, which is itself only
// legal on a movie id.
func parseStreamID(contentType model.ContentType, id string) (imdbID string, season, episode int, err error) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, 0, fmt.Errorf("malformed id %q", id)
	}
	imdbID = m[1]
	hasSuffix := m[2] != ""

	switch contentType {
	case model.ContentTypeMovie:
		if hasSuffix {
			return "", 0, 0, fmt.Errorf("unexpected season/episode suffix on movie id %q", id)
		}
		return imdbID, 0, 0, nil
	case model.ContentTypeSeries:
		if !hasSuffix {
			return "", 0, 0, fmt.Errorf("missing season/episode on series id %q", id)
		}
		season, _ = strconv.Atoi(m[2])
		episode, _ = strconv.Atoi(m[3])
		return imdbID, season, episode, nil
	default:
		return "", 0, 0, fmt.Errorf("unsupported content type %q", contentType)
	}
}

func (a *Addon) sourceIP(c *fiber.Ctx) string {
	if !a.forwardOriginIP {
		return ""
	}
	header := a.originIPHeader
	if header == "" {
		header = "X-Forwarded-For"
	}
	if ip := c.Get(header); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	return c.IP()
}

func hashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])[:16]
}
