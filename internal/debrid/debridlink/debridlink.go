// Package debridlink implements the debrid.Provider contract against the
// Debrid-Link v2 API.
package debridlink

import (
	"context"
	"errors"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/model"
	"github.com/voidwalker/annatar/internal/pipe"
)

const baseURL = "https://debrid-link.com/api/v2"

// streamResolveConcurrency bounds how many torrents are resolved against
// Debrid-Link in parallel; the resolve path is network-latency bound, not
// CPU bound, so this can run well above GOMAXPROCS.
const streamResolveConcurrency = 4

var ErrNoFile = errors.New("debridlink: seedbox add returned no files")

type DebridLink struct {
	client *resty.Client
}

func New(apiKey, _ string) *DebridLink {
	return &DebridLink{
		client: resty.New().
			SetBaseURL(baseURL).
			SetAuthScheme("Bearer").
			SetAuthToken(apiKey),
	}
}

func (d *DebridLink) ID() string        { return "debridlink" }
func (d *DebridLink) Name() string      { return "Debrid-Link" }
func (d *DebridLink) ShortName() string { return "DL" }
func (d *DebridLink) SharedCache() bool { return true }

type addTorrentResponse struct {
	Success bool `json:"success"`
	Value   struct {
		Files []struct {
			Name        string `json:"name"`
			Size        uint64 `json:"size"`
			DownloadURL string `json:"downloadUrl"`
		} `json:"files"`
	} `json:"value"`
}

func (d *DebridLink) GetStreamForTorrent(ctx context.Context, t model.Torrent, seasonEpisode []int) (model.StreamLink, error) {
	_ = seasonEpisode
	magnetURI := "magnet:?xt=urn:btih:" + t.InfoHash

	result := &addTorrentResponse{}
	_, err := d.client.R().
		SetFormData(map[string]string{"url": magnetURI}).
		SetResult(result).
		Post("/seedbox/add")
	if err != nil {
		return model.StreamLink{}, err
	}
	if !result.Success || len(result.Value.Files) == 0 {
		return model.StreamLink{}, ErrNoFile
	}

	best := result.Value.Files[0]
	for _, f := range result.Value.Files {
		if f.Size > best.Size {
			best = f
		}
	}

	return model.StreamLink{URL: best.DownloadURL, Name: best.Name, Size: best.Size, InfoHash: t.InfoHash}, nil
}

type resolution struct {
	link model.StreamLink
	ok   bool
}

func (d *DebridLink) GetStreamLinks(ctx context.Context, torrents []model.Torrent, seasonEpisode []int, stop <-chan struct{}, maxResults int) (<-chan model.StreamLink, error) {
	out := make(chan model.StreamLink)
	go func() {
		defer close(out)

		results := pipe.Parallel(torrents, func(t model.Torrent) resolution {
			link, err := d.GetStreamForTorrent(ctx, t, seasonEpisode)
			if err != nil {
				log.Debugf("debridlink: skipping %s: %v", t.InfoHash, err)
				return resolution{}
			}
			return resolution{link: link, ok: true}
		}, streamResolveConcurrency)

		sent := 0
		for _, r := range results {
			if !r.ok || sent >= maxResults {
				continue
			}
			select {
			case out <- r.link:
				sent++
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
