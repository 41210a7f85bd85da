// Package premiumize implements the debrid.Provider contract against the
// premiumize.me API's directdl endpoint, which resolves a magnet straight
// to a list of playable links without a separate select/poll step.
package premiumize

import (
	"context"
	"errors"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/model"
	"github.com/voidwalker/annatar/internal/pipe"
)

const baseURL = "https://www.premiumize.me/api"

// streamResolveConcurrency bounds how many torrents are resolved against
// premiumize.me in parallel; the resolve path is network-latency bound, not
// CPU bound, so this can run well above GOMAXPROCS.
const streamResolveConcurrency = 4

var ErrNoContent = errors.New("premiumize: directdl returned no content")

type Premiumize struct {
	client *resty.Client
}

func New(apiKey, _ string) *Premiumize {
	return &Premiumize{
		client: resty.New().
			SetBaseURL(baseURL).
			SetQueryParam("apikey", apiKey),
	}
}

func (p *Premiumize) ID() string        { return "premiumize" }
func (p *Premiumize) Name() string      { return "premiumize.me" }
func (p *Premiumize) ShortName() string { return "PM" }
func (p *Premiumize) SharedCache() bool { return false }

type directDLResponse struct {
	Status  string `json:"status"`
	Content []struct {
		Link   string `json:"link"`
		Path   string `json:"path"`
		Size   uint64 `json:"size"`
		Stream bool   `json:"stream"`
	} `json:"content"`
}

func (p *Premiumize) GetStreamForTorrent(ctx context.Context, t model.Torrent, seasonEpisode []int) (model.StreamLink, error) {
	_ = seasonEpisode
	magnetURI := "magnet:?xt=urn:btih:" + t.InfoHash

	result := &directDLResponse{}
	_, err := p.client.R().
		SetFormData(map[string]string{"src": magnetURI}).
		SetResult(result).
		Post("/transfer/directdl")
	if err != nil {
		return model.StreamLink{}, err
	}
	if result.Status != "success" || len(result.Content) == 0 {
		return model.StreamLink{}, ErrNoContent
	}

	best := result.Content[0]
	for _, c := range result.Content {
		if c.Size > best.Size {
			best = c
		}
	}

	return model.StreamLink{URL: best.Link, Name: best.Path, Size: best.Size, InfoHash: t.InfoHash}, nil
}

type resolution struct {
	link model.StreamLink
	ok   bool
}

func (p *Premiumize) GetStreamLinks(ctx context.Context, torrents []model.Torrent, seasonEpisode []int, stop <-chan struct{}, maxResults int) (<-chan model.StreamLink, error) {
	out := make(chan model.StreamLink)
	go func() {
		defer close(out)

		results := pipe.Parallel(torrents, func(t model.Torrent) resolution {
			link, err := p.GetStreamForTorrent(ctx, t, seasonEpisode)
			if err != nil {
				log.Debugf("premiumize: skipping %s: %v", t.InfoHash, err)
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
