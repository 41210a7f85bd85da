package addon

import "github.com/voidwalker/annatar/internal/model"

type StreamItem struct {
	URL           string               `json:"url,omitempty"`
	YoutubeID     string               `json:"ytId,omitempty"`
	InfoHash      string               `json:"infoHash,omitempty"`
	ExternalURL   string               `json:"externalUrl,omitempty"`
	Name          string               `json:"name,omitempty"`
	Description   string               `json:"description,omitempty"`
	Title         string               `json:"title,omitempty"`
	FileIndex     uint8                `json:"fileIdx,omitempty"`
	BehaviorHints *StreamBehaviorHints `json:"behaviorHints,omitempty"`
}

type StreamBehaviorHints struct {
	FileName    string `json:"filename,omitempty"`
	BingeGroup  string `json:"bingeGroup,omitempty"`
	VideoSize   uint64 `json:"videoSize,omitempty"`
}

// GetStreamsResponse is the JSON body for the stream resource endpoint. Per
// the error-handling design, Error is only ever set alongside an empty
// Streams list, and the HTTP status stays 200 so the client UI can surface
// the message instead of failing the request outright.
type GetStreamsResponse struct {
	Streams []StreamItem `json:"streams"`
	Error   string       `json:"error,omitempty"`
}

func streamItem(s model.Stream) StreamItem {
	return StreamItem{
		URL:   s.URL,
		Name:  s.Name,
		Title: s.Title,
		BehaviorHints: &StreamBehaviorHints{
			VideoSize: s.Size,
		},
	}
}
