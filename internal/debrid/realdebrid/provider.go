package realdebrid

import (
	"context"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/voidwalker/annatar/internal/model"
	"github.com/voidwalker/annatar/internal/pipe"
	"github.com/voidwalker/annatar/internal/titleparser"
)

// pollBackoff is the linear backoff used while waiting for a newly added
// torrent to reach Real-Debrid's "downloaded" status.
var pollBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second, 5 * time.Second}

// streamResolveConcurrency bounds how many torrents are resolved against
// Real-Debrid in parallel; the resolve path is network-latency bound, not
// CPU bound, so this can run well above GOMAXPROCS.
const streamResolveConcurrency = 4

// instantFileSetTTL bounds how long an instant-availability probe result
// stays usable without a fresh query; the redirect endpoint's later
// unrestrict call leans on this to skip re-probing a torrent it already
// saw cached during the initial resolve.
const instantFileSetTTL = 1 * time.Hour

// minVideoFileBytes and videoExtensions implement the file-selection
// floor (§4.G): a file that is neither a recognized video container nor
// at least this big is a sample, a subtitle pack, or junk, never the
// feature file.
const minVideoFileBytes = 100 * 1024 * 1024

var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {},
	".flv": {}, ".m4v": {}, ".ts": {}, ".m2ts": {}, ".webm": {},
}

var sampleFilePattern = regexp.MustCompile(`(?i)\bsample\b`)

// ID/Name/ShortName/SharedCache satisfy debrid.Provider.
func (rd *RealDebrid) ID() string        { return "realdebrid" }
func (rd *RealDebrid) Name() string      { return "Real-Debrid" }
func (rd *RealDebrid) ShortName() string { return "RD" }
func (rd *RealDebrid) SharedCache() bool { return true }

// resolution pairs a candidate torrent's resolve outcome with the ok flag,
// since pipe.Parallel needs a single result type per slot.
type resolution struct {
	link model.StreamLink
	ok   bool
}

// GetStreamLinks implements the cooperative-cancel, pull-based generator
// contract. It first probes Real-Debrid's instant-availability endpoint
// for every candidate in one batched call and drops anything that isn't
// already cached — this is the whole point of going through a debrid
// provider instead of downloading torrents directly, so a candidate that
// isn't cached is never added to the account. Survivors are then resolved
// concurrently, bounded by streamResolveConcurrency, and pushed to the
// returned channel up to maxResults; stop or ctx cancellation abandons
// whatever hasn't been sent yet.
func (rd *RealDebrid) GetStreamLinks(ctx context.Context, torrents []model.Torrent, seasonEpisode []int, stop <-chan struct{}, maxResults int) (<-chan model.StreamLink, error) {
	cached, err := rd.filterCached(ctx, torrents)
	if err != nil {
		return nil, err
	}

	out := make(chan model.StreamLink)

	go func() {
		defer close(out)

		results := pipe.Parallel(cached, func(t model.Torrent) resolution {
			link, err := rd.GetStreamForTorrent(ctx, t, seasonEpisode)
			if err != nil {
				log.Debugf("realdebrid: skipping %s: %v", t.InfoHash, err)
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

// filterCached queries instant-availability for every candidate in one
// request and returns only the torrents Real-Debrid already has cached,
// persisting each one's cached file-ids so the redirect endpoint's later
// unrestrict call doesn't have to probe again.
func (rd *RealDebrid) filterCached(ctx context.Context, torrents []model.Torrent) ([]model.Torrent, error) {
	if len(torrents) == 0 {
		return nil, nil
	}

	hashes := make([]string, len(torrents))
	for i, t := range torrents {
		hashes[i] = t.InfoHash
	}

	filesByHash, err := rd.GetFiles(hashes)
	if err != nil {
		return nil, err
	}

	cached := make([]model.Torrent, 0, len(torrents))
	for _, t := range torrents {
		files := filesByHash[t.InfoHash]
		if len(files) == 0 {
			continue
		}
		if rd.store != nil {
			ids := make([]string, len(files))
			for i, f := range files {
				ids[i] = f.ID
			}
			if err := rd.store.SetInstantFileSet(ctx, t.InfoHash, ids, instantFileSetTTL); err != nil {
				log.Warnf("realdebrid: failed to persist instant file set for %s: %v", t.InfoHash, err)
			}
		}
		cached = append(cached, t)
	}
	return cached, nil
}

// ensureCached confirms info-hash is instantly available, preferring the
// set persisted by a prior filterCached call (the usual path: this torrent
// was just resolved as part of GetStreamLinks) and falling back to a
// fresh probe otherwise (the redirect endpoint's standalone call, which
// never went through filterCached in this process).
func (rd *RealDebrid) ensureCached(ctx context.Context, infoHash string) error {
	if rd.store != nil {
		cached, err := rd.store.GetInstantFileSet(ctx, infoHash, nil)
		if err == nil && len(cached) > 0 {
			return nil
		}
	}

	files, err := rd.GetFiles([]string{infoHash})
	if err != nil {
		return err
	}
	if len(files[infoHash]) == 0 {
		return ErrNotCached
	}
	if rd.store != nil {
		ids := make([]string, len(files[infoHash]))
		for i, f := range files[infoHash] {
			ids[i] = f.ID
		}
		if err := rd.store.SetInstantFileSet(ctx, infoHash, ids, instantFileSetTTL); err != nil {
			log.Warnf("realdebrid: failed to persist instant file set for %s: %v", infoHash, err)
		}
	}
	return nil
}

// GetStreamForTorrent runs the select-files -> poll-with-backoff ->
// unrestrict flow for a single torrent and returns its best playable link.
func (rd *RealDebrid) GetStreamForTorrent(ctx context.Context, t model.Torrent, seasonEpisode []int) (model.StreamLink, error) {
	if err := rd.ensureCached(ctx, t.InfoHash); err != nil {
		return model.StreamLink{}, err
	}

	magnetURI := "magnet:?xt=urn:btih:" + t.InfoHash
	torrentID, err := rd.addMagnet(magnetURI)
	if err != nil {
		return model.StreamLink{}, err
	}

	torrent, err := rd.getTorrent(torrentID)
	if err != nil {
		return model.StreamLink{}, err
	}

	if torrent.Status == "waiting_files_selection" {
		if err := rd.selectFileToDownload(torrentID); err != nil {
			return model.StreamLink{}, err
		}
	}

	for _, wait := range pollBackoff {
		torrent, err = rd.getTorrent(torrentID)
		if err != nil {
			return model.StreamLink{}, err
		}
		if torrent.Status == "downloaded" {
			break
		}
		select {
		case <-ctx.Done():
			return model.StreamLink{}, ctx.Err()
		case <-time.After(wait):
		}
	}

	if torrent.Status != "downloaded" || len(torrent.Links) == 0 {
		return model.StreamLink{}, ErrTorrentNotReady
	}

	fileID := bestFileID(torrent, seasonEpisode)
	linkIndex := getIndexOfLinkForFile(torrent, fileID)
	if linkIndex == -1 {
		linkIndex = 0
	}

	download, err := rd.generateDownload(torrent.Links[linkIndex])
	if err != nil {
		return model.StreamLink{}, err
	}

	var size uint64
	if linkIndex < len(torrent.Files) {
		size = uint64(torrent.Files[linkIndex].Bytes)
	}

	return model.StreamLink{URL: download, Name: torrent.FileName, Size: size, InfoHash: t.InfoHash}, nil
}

// bestFileID implements §4.G's file-selection algorithm: drop anything
// that isn't a big-enough video file, then walk what's left largest-first
// looking for the requested episode, skipping samples along the way.
func bestFileID(torrent *Torrent, seasonEpisode []int) string {
	candidates := make([]TorrentFile, 0, len(torrent.Files))
	for _, f := range torrent.Files {
		if f.Selected == 0 {
			continue
		}
		if _, ok := videoExtensions[strings.ToLower(path.Ext(f.Path))]; !ok {
			continue
		}
		if f.Bytes < minVideoFileBytes {
			continue
		}
		candidates = append(candidates, f)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Bytes > candidates[j].Bytes })

	wantSeason, wantEpisode, matching := 0, 0, false
	if len(seasonEpisode) == 2 && (seasonEpisode[0] != 0 || seasonEpisode[1] != 0) {
		wantSeason, wantEpisode, matching = seasonEpisode[0], seasonEpisode[1], true
	}

	fallback := ""
	for _, f := range candidates {
		name := path.Base(f.Path)
		if sampleFilePattern.MatchString(name) {
			continue
		}
		if fallback == "" {
			fallback = strconv.Itoa(f.ID)
		}
		if !matching {
			return strconv.Itoa(f.ID)
		}
		meta := titleparser.Parse(name)
		if meta.Season.Contains(wantSeason) && meta.Episode.Contains(wantEpisode) {
			return strconv.Itoa(f.ID)
		}
	}
	return fallback
}
