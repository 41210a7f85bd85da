package addon

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// DefaultMaxResults is applied when a user config omits max_results or sets it to 0.
const DefaultMaxResults = 5

// UserConfig is the base64url-JSON blob a Stremio client carries in every
// request path, per §6. It is the only source of per-user state this addon
// holds; nothing about a user is ever persisted server-side.
type UserConfig struct {
	DebridService string   `json:"debrid_service"`
	DebridAPIKey  string   `json:"debrid_api_key"`
	MaxResults    int      `json:"max_results"`
	Filters       []string `json:"filters"`
}

var errEmptyUserConfig = errors.New("addon: empty user config")

// DecodeUserConfig parses the {b64config} path segment. Clients vary
// between padded and unpadded base64url, so both are tried before giving up.
func DecodeUserConfig(encoded string) (UserConfig, error) {
	if encoded == "" {
		return UserConfig{}, errEmptyUserConfig
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return UserConfig{}, err
		}
	}

	var cfg UserConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return UserConfig{}, err
	}
	return cfg, nil
}
