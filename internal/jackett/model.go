package jackett

import "encoding/hex"

type TorrentID []byte

func (t TorrentID) ToString() string {
	return hex.EncodeToString(t)
}

func TorrentIDFromString(encoded string) (TorrentID, error) {
	return hex.DecodeString(encoded)
}

// Indexer is one aggregated tracker Jackett knows how to search.
type Indexer struct {
	ID           int                 `json:"id"`
	Name         string              `json:"name"`
	SortName     string              `json:"sortName"`
	Enable       bool                `json:"enable"`
	Capabilities IndexerCapabilities `json:"capabilities"`
}

type IndexerCapabilities struct {
	LimitMax      int `json:"limitsMax"`
	LimitDefaults int `json:"limitsDefault"`
}

// Torrent is one Jackett search hit.
type Torrent struct {
	GID       TorrentID
	ID        int      `json:"id"`
	Title     string   `json:"title"`
	FileName  string   `json:"fileName"`
	Guid      string   `json:"guid"`
	Seeders   uint     `json:"seeders"`
	Size      uint     `json:"size"`
	Imdb      uint     `json:"imdbId"`
	TMDb      uint     `json:"TMDb"`
	TVDBId    uint     `json:"TVDBId"`
	Link      string   `json:"downloadUrl"`
	MagnetUri string   `json:"magnetUrl"`
	InfoHash  string   `json:"infoHash"`
	Year      uint     `json:"Year"`
	Languages []string `json:"Languages"`
	Subs      []string `json:"Subs"`
	Peers     uint     `json:"Peers"`
	Files     uint     `json:"files"`
}
