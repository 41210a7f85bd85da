package realdebrid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/store"
)

var (
	ErrTorrentNotReady = errors.New("realdebrid: torrent is not ready yet")
	ErrNotCached       = errors.New("realdebrid: torrent is not instantly available")
)

type RealDebrid struct {
	client    *resty.Client
	ipAddress string
	store     *store.Store
}

type AddMagnetResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// File is one entry of an instant-availability probe response: a file
// Real-Debrid already has cached for a given info-hash, before it has ever
// been added to this account's torrent list.
type File struct {
	ID       string
	FileName string `json:"filename"`
	FileSize uint64 `json:"filesize"`
}

// safeCatchedTorrentResponse mirrors the deeply nested, RD-specific shape
// of a /torrents/instantAvailability entry: one hoster key ("rd") to a list
// of alternative file groupings, each keyed by Real-Debrid's own file id.
type safeCatchedTorrentResponse map[string][]map[string]*File

func (c *safeCatchedTorrentResponse) UnmarshalJSON(data []byte) error {
	mapStruct := map[string][]map[string]*File(*c)
	_ = json.Unmarshal(data, &mapStruct)
	*c = mapStruct
	return nil
}

func New(apiToken string, ipAddress string, st *store.Store) *RealDebrid {
	client := resty.New().
		SetBaseURL("https://api.real-debrid.com/rest/1.0").
		SetHeader("Accept", "application/json").
		SetAuthScheme("Bearer").
		SetError(ErrorResponse{}).
		SetAuthToken(apiToken)

	if ipAddress != "" {
		client.SetFormData(map[string]string{
			"ip": ipAddress,
		})
	}

	return &RealDebrid{
		client:    client,
		ipAddress: ipAddress,
		store:     st,
	}
}

// GetFiles queries Real-Debrid's instant-availability endpoint for every
// info-hash in infoHashes in one batched call and returns, per hash, the
// files RD already has cached. A hash absent from the result (or mapping
// to no files) is not cached and must never be added to the account.
func (rd *RealDebrid) GetFiles(infoHashes []string) (map[string][]*File, error) {
	if len(infoHashes) == 0 {
		return map[string][]*File{}, nil
	}

	result := map[string]safeCatchedTorrentResponse{}
	resp, err := rd.client.R().
		SetResult(&result).
		Get("/torrents/instantAvailability/" + strings.Join(infoHashes, "/"))
	if err != nil {
		log.Errorf("Failed to get instant availability from Debrid, err: %v", err)
		return nil, err
	}
	if resp.IsError() {
		log.Errorf("Failed to get instant availability from Debrid, err: %v", resp.Error())
		return nil, resp.Error().(error)
	}

	files := map[string][]*File{}
	for infoHash, hosterFiles := range result {
		found := map[string]bool{}
		for _, variants := range hosterFiles {
			for _, variant := range variants {
				for id, f := range variant {
					if found[id] {
						continue
					}
					newFile := f
					newFile.ID = id
					files[infoHash] = append(files[infoHash], newFile)
					found[id] = true
				}
			}
		}
	}
	return files, nil
}

func (rd *RealDebrid) addMagnet(magnetUri string) (string, error) {
	result := &AddMagnetResponse{}
	resp, err := rd.client.R().
		SetFormData(map[string]string{
			"magnet": magnetUri,
		}).
		SetResult(result).
		Post("/torrents/addMagnet")

	if err != nil {
		log.Errorf("Failed to select files on Debrid, err: %v", err)
		return "", err
	}

	if resp.IsError() {
		log.Errorf("Failed to get result from Debrid, err: %v", resp.Error())
		return "", resp.Error().(error)
	}

	return result.ID, nil
}

func (rd *RealDebrid) getTorrent(torrentID string) (*Torrent, error) {
	result := &Torrent{}
	resp, err := rd.client.R().
		SetResult(result).
		Get("/torrents/info/" + torrentID)

	if err != nil {
		log.Errorf("Failed to fetch all torrents: %v", err)
		return nil, err
	}

	if resp.IsError() {
		log.Errorf("Failed to get result from Debrid, err: %v", resp.Error())
		return nil, resp.Error().(error)
	}

	return result, nil
}

func (rd *RealDebrid) generateDownload(hosterLink string) (string, error) {
	result := &UnrestrictedLinkResp{}
	resp, err := rd.client.R().
		SetResult(&result).
		SetDebug(true).
		SetFormData(map[string]string{
			"link": hosterLink,
		}).
		Post("/unrestrict/link")

	if err != nil {
		log.Errorf("Failed to generate unrestricted link: %v", err)
		return "", err
	}

	if resp.IsError() {
		log.Errorf("Failed to generate download link from Debrid, err: %v", resp.Error())
		return "", resp.Error().(error)
	}

	return result.Download, nil
}

func (rd *RealDebrid) selectFileToDownload(torrentID string) error {
	resp, err := rd.client.R().
		SetDebug(true).
		SetFormData(map[string]string{
			"files": "all",
		}).
		Post("/torrents/selectFiles/" + torrentID)
	if err != nil {
		log.Errorf("Failed to select files on Debrid, err: %v", err)
		return err
	}

	if resp.IsError() {
		log.Errorf("Failed to select files from Debrid, err: %v", resp.Error())
		return resp.Error().(error)
	}

	return nil
}

func getIndexOfLinkForFile(torrent *Torrent, fileID string) int {
	index := 0
	for _, f := range torrent.Files {
		if fmt.Sprint(f.ID) == fileID {
			if f.Selected > 0 {
				return index
			}

			return -1
		}

		if f.Selected > 0 {
			index++
		}
	}

	return -1
}

type Torrent struct {
	ID          string        `json:"id"`
	Hash        string        `json:"hash"`
	Status      string        `json:"status"`
	Progress    float64       `json:"progress"`
	FileName    string        `json:"filename"`
	OrgFileName string        `json:"original_filename"`
	Files       []TorrentFile `json:"files"`
	Links       []string      `json:"links"`
}

type TorrentFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Selected int    `json:"selected"`
	Bytes    int    `json:"bytes"`
}

type UnrestrictedLinkResp struct {
	Download string `json:"download"`
}

type ErrorResponse struct {
	ErrTxt    string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

func (er ErrorResponse) Error() string {
	return fmt.Sprintf("[%s,%d]", er.ErrTxt, er.ErrorCode)
}
