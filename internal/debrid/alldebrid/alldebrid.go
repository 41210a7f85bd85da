// Package alldebrid implements the debrid.Provider contract against the
// AllDebrid v4 API.
package alldebrid

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/model"
	"github.com/voidwalker/annatar/internal/pipe"
)

const baseURL = "https://api.alldebrid.com/v4"

// streamResolveConcurrency bounds how many torrents are resolved against
// AllDebrid in parallel; the resolve path is network-latency bound, not CPU
// bound, so this can run well above GOMAXPROCS.
const streamResolveConcurrency = 4

type AllDebrid struct {
	client *resty.Client
}

func New(apiKey, _ string) *AllDebrid {
	return &AllDebrid{
		client: resty.New().
			SetBaseURL(baseURL).
			SetQueryParam("agent", "annatar-go").
			SetQueryParam("apikey", apiKey),
	}
}

func (a *AllDebrid) ID() string        { return "alldebrid" }
func (a *AllDebrid) Name() string      { return "AllDebrid" }
func (a *AllDebrid) ShortName() string { return "AD" }
func (a *AllDebrid) SharedCache() bool { return true }

type uploadMagnetResponse struct {
	Status string `json:"status"`
	Data   struct {
		Magnets []struct {
			ID   int    `json:"id"`
			Hash string `json:"hash"`
		} `json:"magnets"`
	} `json:"data"`
}

type magnetStatusResponse struct {
	Status string `json:"status"`
	Data   struct {
		Magnets struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
			Links  []struct {
				Link     string `json:"link"`
				Filename string `json:"filename"`
				Size     uint64 `json:"size"`
			} `json:"links"`
		} `json:"magnets"`
	} `json:"data"`
}

type unlockResponse struct {
	Status string `json:"status"`
	Data   struct {
		Link string `json:"link"`
	} `json:"data"`
}

func (a *AllDebrid) uploadMagnet(infoHash string) (int, error) {
	result := &uploadMagnetResponse{}
	magnetURI := "magnet:?xt=urn:btih:" + infoHash
	_, err := a.client.R().
		SetFormData(map[string]string{"magnets[]": magnetURI}).
		SetResult(result).
		Post("/magnet/upload")
	if err != nil {
		return 0, err
	}
	if len(result.Data.Magnets) == 0 {
		return 0, ErrNoMagnet
	}
	return result.Data.Magnets[0].ID, nil
}

func (a *AllDebrid) status(magnetID int) (*magnetStatusResponse, error) {
	result := &magnetStatusResponse{}
	_, err := a.client.R().
		SetQueryParam("id", itoa(magnetID)).
		SetResult(result).
		Get("/magnet/status")
	return result, err
}

func (a *AllDebrid) unlock(link string) (string, error) {
	result := &unlockResponse{}
	_, err := a.client.R().
		SetQueryParam("link", link).
		SetResult(result).
		Get("/link/unlock")
	if err != nil {
		return "", err
	}
	return result.Data.Link, nil
}

func (a *AllDebrid) GetStreamForTorrent(ctx context.Context, t model.Torrent, seasonEpisode []int) (model.StreamLink, error) {
	_ = seasonEpisode
	magnetID, err := a.uploadMagnet(t.InfoHash)
	if err != nil {
		return model.StreamLink{}, err
	}

	status, err := a.status(magnetID)
	if err != nil {
		return model.StreamLink{}, err
	}
	if len(status.Data.Magnets.Links) == 0 {
		return model.StreamLink{}, ErrNotReady
	}

	best := status.Data.Magnets.Links[0]
	for _, l := range status.Data.Magnets.Links {
		if l.Size > best.Size {
			best = l
		}
	}

	unlocked, err := a.unlock(best.Link)
	if err != nil {
		return model.StreamLink{}, err
	}

	return model.StreamLink{URL: unlocked, Name: best.Filename, Size: best.Size, InfoHash: t.InfoHash}, nil
}

type resolution struct {
	link model.StreamLink
	ok   bool
}

func (a *AllDebrid) GetStreamLinks(ctx context.Context, torrents []model.Torrent, seasonEpisode []int, stop <-chan struct{}, maxResults int) (<-chan model.StreamLink, error) {
	out := make(chan model.StreamLink)
	go func() {
		defer close(out)

		results := pipe.Parallel(torrents, func(t model.Torrent) resolution {
			link, err := a.GetStreamForTorrent(ctx, t, seasonEpisode)
			if err != nil {
				log.Debugf("alldebrid: skipping %s: %v", t.InfoHash, err)
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
