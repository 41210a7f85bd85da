package realdebrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func bigFile(id int, path string) TorrentFile {
	return TorrentFile{ID: id, Path: path, Selected: 1, Bytes: minVideoFileBytes + 1}
}

func TestBestFileID_DropsNonVideoAndSmallFiles(t *testing.T) {
	torrent := &Torrent{Files: []TorrentFile{
		{ID: 1, Path: "/Show/readme.txt", Selected: 1, Bytes: minVideoFileBytes + 1},
		{ID: 2, Path: "/Show/tiny.mkv", Selected: 1, Bytes: 1024},
		{ID: 3, Path: "/Show/Show.S01E01.mkv", Selected: 1, Bytes: minVideoFileBytes + 1},
	}}

	assert.Equal(t, "3", bestFileID(torrent, nil))
}

func TestBestFileID_NoSeasonEpisodePicksLargest(t *testing.T) {
	torrent := &Torrent{Files: []TorrentFile{
		bigFile(1, "/Movie/Movie.720p.mkv"),
		{ID: 2, Path: "/Movie/Movie.1080p.mkv", Selected: 1, Bytes: minVideoFileBytes + 1000},
	}}

	assert.Equal(t, "2", bestFileID(torrent, nil))
}

func TestBestFileID_DropsSamples(t *testing.T) {
	torrent := &Torrent{Files: []TorrentFile{
		{ID: 1, Path: "/Movie/Movie.sample.mkv", Selected: 1, Bytes: minVideoFileBytes + 10000},
		bigFile(2, "/Movie/Movie.mkv"),
	}}

	assert.Equal(t, "2", bestFileID(torrent, nil))
}

func TestBestFileID_MatchesRequestedEpisodeInSeasonPack(t *testing.T) {
	torrent := &Torrent{Files: []TorrentFile{
		bigFile(1, "/Show.S05/Show.S05E01.mkv"),
		bigFile(2, "/Show.S05/Show.S05E10.mkv"),
		bigFile(3, "/Show.S05/Show.S05E02.mkv"),
	}}

	assert.Equal(t, "2", bestFileID(torrent, []int{5, 10}))
}

func TestBestFileID_FallsBackWhenNoEpisodeMatches(t *testing.T) {
	torrent := &Torrent{Files: []TorrentFile{
		bigFile(1, "/Show.S05/Show.S05E01.mkv"),
	}}

	assert.Equal(t, "1", bestFileID(torrent, []int{5, 99}))
}
