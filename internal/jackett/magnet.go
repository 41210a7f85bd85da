package jackett

import (
	"encoding/base32"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
)

// Magnet is the parsed form of a "magnet:?xt=urn:btih:..." URI. Only the
// fields FetchInfoHash needs are kept; display name and trackers round-trip
// through String so a Magnet built from a .torrent file's announce list can
// be handed back to a caller as a normal magnet URI.
type Magnet struct {
	InfoHash string // hex, lower-case
	Name     string
	Trackers []string
}

var errNotBTIH = errors.New("jackett: magnet uri has no btih exact topic")

// ParseMagnetUri extracts the info-hash (and display name, if present) from
// a magnet URI. btih topics come in either the 40-char hex form or the
// 32-char base32 form; both are normalized to lower-case hex.
func ParseMagnetUri(raw string) (*Magnet, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "magnet" {
		return nil, errors.New("jackett: not a magnet uri")
	}

	q := u.Query()
	var hash string
	for _, xt := range q["xt"] {
		const prefix = "urn:btih:"
		if !strings.HasPrefix(strings.ToLower(xt), prefix) {
			continue
		}
		hash = xt[len(prefix):]
		break
	}
	if hash == "" {
		return nil, errNotBTIH
	}

	normalized, err := normalizeInfoHash(hash)
	if err != nil {
		return nil, err
	}

	return &Magnet{
		InfoHash: normalized,
		Name:     q.Get("dn"),
		Trackers: q["tr"],
	}, nil
}

// normalizeInfoHash accepts either the 40-char hex or 32-char base32 form
// of a v1 info-hash and returns lower-case hex.
func normalizeInfoHash(hash string) (string, error) {
	switch len(hash) {
	case 40:
		if _, err := hex.DecodeString(hash); err != nil {
			return "", err
		}
		return strings.ToLower(hash), nil
	case 32:
		decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(hash))
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(decoded), nil
	default:
		return "", errors.New("jackett: unrecognized info-hash length in magnet uri")
	}
}

// InfoHashStr returns the info-hash in lower-case hex.
func (m *Magnet) InfoHashStr() string {
	return m.InfoHash
}

// String rebuilds a magnet URI from the parsed fields, used when a
// .torrent file's info-hash was computed locally rather than read off an
// existing magnet link.
func (m *Magnet) String() string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(m.InfoHash)
	if m.Name != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(m.Name))
	}
	for _, tr := range m.Trackers {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String()
}
