package cinemeta

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/coocood/freecache"
	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/model"
)

var errUnsupportedContentType = errors.New("cinemeta: unsupported content type")

const cacheSize = 5 * 1024 * 1024 // 5MB

type CineMeta struct {
	client *resty.Client
	cache  *freecache.Cache
	ttl    int // seconds
}

type MovieInfoResponse struct {
	Meta MetaInfo `json:"meta"`
}

type MetaInfo struct {
	Name   string `json:"name"`
	Year   string `json:"year"`
	IMDBID string `json:"imdb_id"`
}

// New builds a client caching lookups for cacheMinutes in a process-local
// cache; a title's canonical name/year almost never changes, so there's no
// need for this to be visible across processes the way the torrent corpus is.
func New(cacheMinutes int) *CineMeta {
	return &CineMeta{
		client: resty.New().SetBaseURL("https://v3-cinemeta.strem.io"),
		cache:  freecache.NewCache(cacheSize),
		ttl:    cacheMinutes * 60,
	}
}

func (c *CineMeta) cacheKey(contentType model.ContentType, id string) []byte {
	return []byte("cinemeta:" + string(contentType) + ":" + id)
}

func (c *CineMeta) fromCache(key []byte) (*model.MetaInfo, bool) {
	cached, err := c.cache.Get(key)
	if err != nil {
		return nil, false
	}
	var meta model.MetaInfo
	if err := json.Unmarshal(cached, &meta); err != nil {
		return nil, false
	}
	return &meta, true
}

func (c *CineMeta) toCache(key []byte, meta *model.MetaInfo) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := c.cache.Set(key, payload, c.ttl); err != nil {
		log.Warnf("cinemeta: failed to cache lookup: %v", err)
	}
}

func (c *CineMeta) GetMovieById(id string) (*model.MetaInfo, error) {
	key := c.cacheKey(model.ContentTypeMovie, id)
	if meta, ok := c.fromCache(key); ok {
		return meta, nil
	}

	resp, err := c.client.R().SetResult(&MovieInfoResponse{}).Get("/meta/movie/" + id + ".json")
	if err != nil {
		return nil, err
	}

	result := resp.Result().(*MovieInfoResponse)
	year, _ := strconv.Atoi(result.Meta.Year)
	imdbID, _ := strconv.Atoi(strings.TrimPrefix(result.Meta.IMDBID, "tt"))

	meta := &model.MetaInfo{
		Name:     result.Meta.Name,
		IMDBID:   uint(imdbID),
		FromYear: year,
		ToYear:   year,
	}
	c.toCache(key, meta)
	return meta, nil
}

// GetByType dispatches to GetMovieById or GetSeriesById by Stremio content type.
func (c *CineMeta) GetByType(contentType model.ContentType, id string) (*model.MetaInfo, error) {
	switch contentType {
	case model.ContentTypeMovie:
		return c.GetMovieById(id)
	case model.ContentTypeSeries:
		return c.GetSeriesById(id)
	default:
		return nil, errUnsupportedContentType
	}
}

func (c *CineMeta) GetSeriesById(id string) (*model.MetaInfo, error) {
	key := c.cacheKey(model.ContentTypeSeries, id)
	if meta, ok := c.fromCache(key); ok {
		return meta, nil
	}

	resp, err := c.client.R().SetResult(&MovieInfoResponse{}).Get("/meta/series/" + id + ".json")
	if err != nil {
		return nil, err
	}

	result := resp.Result().(*MovieInfoResponse)
	tokens := strings.Split(result.Meta.Year, "–")
	fromYear := 0
	toYear := 0
	if len(tokens) > 1 {
		fromYear, _ = strconv.Atoi(tokens[0])
		toYear, _ = strconv.Atoi(tokens[1])
	} else if len(tokens) > 0 {
		fromYear, _ = strconv.Atoi(tokens[0])
		toYear = fromYear
	}
	imdbID, _ := strconv.Atoi(strings.TrimPrefix(result.Meta.IMDBID, "tt"))

	meta := &model.MetaInfo{
		Name:     result.Meta.Name,
		IMDBID:   uint(imdbID),
		FromYear: fromYear,
		ToYear:   toYear,
	}
	c.toCache(key, meta)
	return meta, nil
}
