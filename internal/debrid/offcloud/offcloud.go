// Package offcloud implements the debrid.Provider contract against the
// OffCloud API.
package offcloud

import (
	"context"
	"errors"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/model"
	"github.com/voidwalker/annatar/internal/pipe"
)

const baseURL = "https://offcloud.com/api"

// streamResolveConcurrency bounds how many torrents are resolved against
// OffCloud in parallel; the resolve path is network-latency bound, not CPU
// bound, so this can run well above GOMAXPROCS.
const streamResolveConcurrency = 4

var (
	ErrNotReady = errors.New("offcloud: cloud request is still processing")
	ErrNoFile   = errors.New("offcloud: no files found in cloud request")
)

type OffCloud struct {
	client *resty.Client
}

func New(apiKey, _ string) *OffCloud {
	return &OffCloud{
		client: resty.New().
			SetBaseURL(baseURL).
			SetQueryParam("key", apiKey),
	}
}

func (o *OffCloud) ID() string        { return "offcloud" }
func (o *OffCloud) Name() string      { return "OffCloud" }
func (o *OffCloud) ShortName() string { return "OC" }
func (o *OffCloud) SharedCache() bool { return true }

type cloudResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

type cloudStatusResponse struct {
	Status     string `json:"status"`
	IsComplete bool   `json:"isCompleted"`
}

type cloudExploreResponse struct {
	Files []string `json:"files"`
}

func (o *OffCloud) GetStreamForTorrent(ctx context.Context, t model.Torrent, seasonEpisode []int) (model.StreamLink, error) {
	_ = seasonEpisode
	magnetURI := "magnet:?xt=urn:btih:" + t.InfoHash

	added := &cloudResponse{}
	_, err := o.client.R().
		SetBody(map[string]string{"url": magnetURI}).
		SetResult(added).
		Post("/cloud")
	if err != nil {
		return model.StreamLink{}, err
	}

	status := &cloudStatusResponse{}
	_, err = o.client.R().SetResult(status).Get("/cloud/status/" + added.RequestID)
	if err != nil {
		return model.StreamLink{}, err
	}
	if !status.IsComplete {
		return model.StreamLink{}, ErrNotReady
	}

	explore := &cloudExploreResponse{}
	_, err = o.client.R().SetResult(explore).Get("/cloud/explore/" + added.RequestID)
	if err != nil {
		return model.StreamLink{}, err
	}
	if len(explore.Files) == 0 {
		return model.StreamLink{}, ErrNoFile
	}

	return model.StreamLink{URL: explore.Files[0], Name: t.Title, InfoHash: t.InfoHash}, nil
}

type resolution struct {
	link model.StreamLink
	ok   bool
}

func (o *OffCloud) GetStreamLinks(ctx context.Context, torrents []model.Torrent, seasonEpisode []int, stop <-chan struct{}, maxResults int) (<-chan model.StreamLink, error) {
	out := make(chan model.StreamLink)
	go func() {
		defer close(out)

		results := pipe.Parallel(torrents, func(t model.Torrent) resolution {
			link, err := o.GetStreamForTorrent(ctx, t, seasonEpisode)
			if err != nil {
				log.Debugf("offcloud: skipping %s: %v", t.InfoHash, err)
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
