package main

import (
	"context"
	"os"
	"regexp"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/voidwalker/annatar/internal/addon"
	"github.com/voidwalker/annatar/internal/bus"
	"github.com/voidwalker/annatar/internal/cinemeta"
	"github.com/voidwalker/annatar/internal/config"
	"github.com/voidwalker/annatar/internal/debrid"
	"github.com/voidwalker/annatar/internal/debrid/alldebrid"
	"github.com/voidwalker/annatar/internal/debrid/debridlink"
	"github.com/voidwalker/annatar/internal/debrid/offcloud"
	"github.com/voidwalker/annatar/internal/debrid/premiumize"
	"github.com/voidwalker/annatar/internal/debrid/realdebrid"
	"github.com/voidwalker/annatar/internal/jackett"
	"github.com/voidwalker/annatar/internal/metrics"
	"github.com/voidwalker/annatar/internal/model"
	"github.com/voidwalker/annatar/internal/process"
	"github.com/voidwalker/annatar/internal/resolver"
	"github.com/voidwalker/annatar/internal/search"
	"github.com/voidwalker/annatar/internal/static"
	"github.com/voidwalker/annatar/internal/store"
)

// maskedPathPattern hides the base64 user config segment that carries a
// debrid API key from request logs.
var maskedPathPattern = regexp.MustCompile(`^/([\w-]+)/(?:configure|stream|manifest)`)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	s, err := store.New(cfg.RedisURL, cfg.RedisPoolSize)
	if err != nil {
		log.Fatalf("failed to connect to store: %v", err)
	}
	defer s.Close()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid redis url: %v", err)
	}
	b := bus.New(redis.NewClient(opts))

	cm := cinemeta.New(cfg.CinemetaCacheMinutes)
	jc := jackett.New(cfg.JackettURL, cfg.JackettAPIKey, cfg.JackettTimeout, cfg.JackettCacheMinutes)

	providers := debrid.NewRegistry()
	providers.Register("realdebrid", func(apiKey, sourceIP string) debrid.Provider { return realdebrid.New(apiKey, sourceIP, s) })
	providers.Register("alldebrid", func(apiKey, sourceIP string) debrid.Provider { return alldebrid.New(apiKey, sourceIP) })
	providers.Register("premiumize", func(apiKey, sourceIP string) debrid.Provider { return premiumize.New(apiKey, sourceIP) })
	providers.Register("debridlink", func(apiKey, sourceIP string) debrid.Provider { return debridlink.New(apiKey, sourceIP) })
	providers.Register("offcloud", func(apiKey, sourceIP string) debrid.Provider { return offcloud.New(apiKey, sourceIP) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	runSearchWorkers(ctx, cfg, b, s, cm, jc, m)
	runProcessorPool(ctx, cfg, b, s, jc, cm, m)
	go reportCorpusSize(ctx, s, m)

	res := resolver.New(s, b, cfg.SearchTimeout, m)
	add := addon.New(s, b, res, providers, cm, m, cfg.ForwardOriginIP, cfg.OriginIPHeader,
		addon.WithID("community.annatar"),
		addon.WithName("Annatar"),
		addon.WithVersion(version),
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(logger.New(logger.Config{
		CustomTags: map[string]logger.LogFunc{
			"maskedPath": func(output logger.Buffer, c *fiber.Ctx, data *logger.Data, extraParam string) (int, error) {
				urlPath := c.Path()
				loc := maskedPathPattern.FindStringSubmatchIndex(urlPath)
				if len(loc) > 3 {
					return output.WriteString(urlPath[:loc[2]] + "***" + urlPath[loc[3]:])
				}
				return output.WriteString(urlPath)
			},
		},
		Format:        "${time} | ${status} | ${latency} | ${ip} | ${method} | ${maskedPath} | ${error}\n",
		TimeFormat:    "15:04:05",
		TimeZone:      "Local",
		TimeInterval:  500 * time.Millisecond,
		Output:        os.Stdout,
		DisableColors: false,
	}))

	app.Get("/manifest.json", add.HandleManifest)
	app.Get("/:config/manifest.json", add.HandleManifest)
	app.Get("/:config/stream/:type/:id", add.HandleStream)
	app.Get("/search/imdb/:category/:imdb_id", add.HandleSearchDiagnostic)
	app.Get("/:provider_id/:api_key/:info_hash/:file_id", add.HandleResolve)
	app.Head("/:provider_id/:api_key/:info_hash/:file_id", add.HandleResolve)
	app.Get("/configure", static.HandleConfigure)
	app.Get("/:config/configure", static.HandleConfigure)
	app.Get("/metrics", m.Handler())

	log.Infof("Starting HTTP server on %s", cfg.Addr)
	log.Fatal(app.Listen(cfg.Addr))
}

func runSearchWorkers(ctx context.Context, cfg config.Config, b *bus.Bus, s *store.Store, cm *cinemeta.CineMeta, jc *jackett.Jackett, m *metrics.Metrics) {
	worker := search.NewWorker(b, s, cm, jc, m, cfg.JackettMaxResults)
	for i := 0; i < cfg.Workers; i++ {
		consumer := bus.Subscribe[bus.SearchRequest](ctx, b, bus.TopicSearchRequest, cfg.TorrentProcessorMaxQueueDepth)
		go worker.Run(ctx, consumer)
	}
}

func runProcessorPool(ctx context.Context, cfg config.Config, b *bus.Bus, s *store.Store, jc *jackett.Jackett, cm *cinemeta.CineMeta, m *metrics.Metrics) {
	pool := process.New(b, s, jc, m)
	lookup := func(ctx context.Context, imdbID string) (string, int, bool, error) {
		meta, err := cm.GetByType(model.ContentTypeMovie, imdbID)
		if err == nil {
			return meta.Name, meta.FromYear, true, nil
		}
		meta, err = cm.GetByType(model.ContentTypeSeries, imdbID)
		if err != nil {
			return "", 0, false, err
		}
		return meta.Name, meta.FromYear, false, nil
	}

	for i := 0; i < cfg.Workers; i++ {
		consumer := bus.Subscribe[bus.TorrentSearchResult](ctx, b, bus.TopicTorrentSearchResult, cfg.TorrentProcessorMaxQueueDepth)
		go pool.Run(ctx, consumer, lookup)
	}
}

// reportCorpusSize periodically samples the HyperLogLog estimate of
// distinct titles requested, so the gauge reflects corpus growth without
// paying the cardinality estimate's cost on every stream request.
func reportCorpusSize(ctx context.Context, s *store.Store, m *metrics.Metrics) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.EstimateStreamRequests(ctx)
			if err != nil {
				log.Warnf("metrics: failed to estimate corpus size: %v", err)
				continue
			}
			m.TorrentsInCorpus.Set(float64(count))
		}
	}
}
