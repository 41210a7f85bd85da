// Package jackett searches a Jackett instance's aggregated indexers for
// movie and series torrents, and resolves each hit down to an info-hash.
package jackett

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"
)

const (
	moviesCategory = "2000"
	tvCategory     = "5000"

	searchCacheSize = 10 * 1024 * 1024 // 10MB
)

type Jackett struct {
	client *resty.Client
	apiURL string
	cache  *freecache.Cache
	ttl    int // seconds
}

// New builds a client against apiURL, caching search results for
// cacheMinutes in a process-local cache (search results don't need to be
// shared across processes the way the torrent corpus does).
func New(apiURL, apiKey string, timeout time.Duration, cacheMinutes int) *Jackett {
	client := resty.New().
		SetBaseURL(apiURL).
		SetHeader("X-Api-Key", apiKey).
		SetTimeout(timeout).
		SetRedirectPolicy(NotFollowMagnet())

	return &Jackett{
		client: client,
		apiURL: apiURL,
		cache:  freecache.NewCache(searchCacheSize),
		ttl:    cacheMinutes * 60,
	}
}

func (j *Jackett) GetAllIndexers() ([]*Indexer, error) {
	result := []*Indexer{}
	resp, err := j.client.R().SetResult(&result).Get("/api/v2.0/indexers")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("error response from jackett: %v", resp.Error())
	}
	return result, nil
}

func (j *Jackett) SearchMovieTorrents(indexer *Indexer, name string) ([]*Torrent, error) {
	return j.search(indexer, name, moviesCategory, "movie")
}

func (j *Jackett) SearchSeriesTorrents(indexer *Indexer, name string) ([]*Torrent, error) {
	return j.search(indexer, name, tvCategory, "tvsearch")
}

func (j *Jackett) SearchSeasonTorrents(indexer *Indexer, name string, season int) ([]*Torrent, error) {
	return j.search(indexer, fmt.Sprintf("%s S%02d", name, season), tvCategory, "tvsearch")
}

func (j *Jackett) searchCacheKey(indexer *Indexer, query, category string) []byte {
	return []byte(fmt.Sprintf("jackett:search:%d:%s:%s", indexer.ID, category, query))
}

func (j *Jackett) search(indexer *Indexer, query, category, searchType string) ([]*Torrent, error) {
	cacheKey := j.searchCacheKey(indexer, query, category)
	if cached, err := j.cache.Get(cacheKey); err == nil {
		var result []*Torrent
		if err := json.Unmarshal(cached, &result); err == nil {
			return result, nil
		}
	}

	result := []*Torrent{}
	resp, err := j.client.R().
		SetQueryParam("query", query).
		SetQueryParam("categories", category).
		SetQueryParam("type", searchType).
		SetQueryParam("indexerIds", strconv.Itoa(indexer.ID)).
		SetResult(&result).
		Get("/api/v1/search")

	if err != nil {
		log.Errorf("Failed to search for %v from %v: %v", query, indexer.Name, err)
		return nil, err
	}
	if resp.IsError() {
		log.Errorf("Failed to search for %v from %v: %v", query, indexer.Name, resp.Error())
		return nil, fmt.Errorf("error response from jackett: %v", resp.Error())
	}

	for _, torrent := range result {
		normaliseTorrent(torrent, j.apiURL)
	}

	if payload, err := json.Marshal(result); err == nil {
		if err := j.cache.Set(cacheKey, payload, j.ttl); err != nil {
			log.Warnf("jackett: failed to cache search result: %v", err)
		}
	}

	return result, nil
}

// FetchInfoHash resolves torrent.InfoHash when the search result didn't
// already carry it. The primary method is a single non-following GET:
// Jackett's download link redirects (302) straight to a magnet URI via the
// Location header. If the tracker instead hands back a .torrent file body,
// it's bencode-parsed for its info-hash as a fallback.
func (j *Jackett) FetchInfoHash(torrent *Torrent) (*Torrent, error) {
	if torrent.InfoHash != "" {
		return torrent, nil
	}

	if torrent.MagnetUri == "" {
		resp, err := j.client.R().Get(torrent.Link)
		if err != nil {
			log.Errorf("Failed to fetch magnet link for %s due to: %v", torrent.Link, err)
			return torrent, err
		}

		if location := resp.Header().Get("location"); strings.HasPrefix(location, "magnet:") {
			torrent.MagnetUri = location
		} else if resp.Header().Get("Content-Type") == "application/x-bittorrent" {
			torFile, err := parseTorrentFile(bytes.NewReader(resp.Body()))
			if err != nil {
				log.Errorf("Invalid torrent file for %s with: %v", torrent.Link, err)
				return torrent, err
			}

			magnet := &Magnet{
				Name:     torrent.Title,
				InfoHash: hex.EncodeToString(torFile.Info.Hash[:]),
				Trackers: flattenAnnounceList(torFile.AnnounceList),
			}
			torrent.MagnetUri = magnet.String()
			torrent.InfoHash = strings.ToLower(magnet.InfoHashStr())
		}

		if torrent.MagnetUri == "" {
			log.Errorf("Unexpected magnet uri for %s, %s", torrent.Guid, torrent.Title)
			return torrent, errors.New("magnet uri is expected but not found")
		}
	}

	if torrent.InfoHash == "" {
		magnet, err := ParseMagnetUri(torrent.MagnetUri)
		if err != nil {
			return torrent, err
		}
		torrent.InfoHash = strings.ToLower(magnet.InfoHashStr())
	}

	return torrent, nil
}

// flattenAnnounceList collapses the tiered announce-list a .torrent file
// carries into the flat tracker list a magnet URI's "tr" params use.
func flattenAnnounceList(tiers [][]string) []string {
	var trackers []string
	for _, tier := range tiers {
		trackers = append(trackers, tier...)
	}
	return trackers
}

func generateGID(content string) []byte {
	h := sha1.New()
	io.WriteString(h, content)
	return h.Sum(nil)
}

func normaliseTorrent(tor *Torrent, jackettURL string) {
	tor.Link = strings.Replace(tor.Link, "http://localhost:9117", jackettURL, 1)
	tor.InfoHash = strings.ToLower(tor.InfoHash)
	tor.GID = generateGID(tor.Guid)
	if !strings.HasPrefix(tor.MagnetUri, "magnet") {
		if tor.Link == "" {
			tor.Link = tor.MagnetUri
		}
		if strings.HasPrefix(tor.Guid, "magnet") {
			tor.MagnetUri = tor.Guid
		} else if tor.MagnetUri != "" {
			log.Errorf("Invalid magnet URI %v", tor.MagnetUri)
			tor.MagnetUri = ""
		}
	}
}
