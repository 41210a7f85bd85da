package addon

import "github.com/voidwalker/annatar/internal/model"

// Resource refers to https://github.com/Stremio/stremio-addon-sdk/blob/master/docs/api/responses/manifest.md#filtering-properties
type Resource string

const ResourceStream Resource = "stream"

// Manifest is the static catalog-manifest shape returned by /manifest.json.
// Catalog browsing is an external collaborator's concern; this addon only
// ever advertises the stream resource.
type Manifest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	ResourceItems []ResourceItem `json:"resources,omitempty"`

	Types    []model.ContentType `json:"types"`
	Catalogs []CatalogItem        `json:"catalogs,omitempty"`

	IDPrefixes    []string       `json:"idPrefixes,omitempty"`
	Background    string         `json:"background,omitempty"`
	Logo          string         `json:"logo,omitempty"`
	ContactEmail  string         `json:"contactEmail,omitempty"`
	BehaviorHints *BehaviorHints `json:"behaviorHints,omitempty"`
}

type ResourceItem struct {
	Name  Resource             `json:"name"`
	Types []model.ContentType `json:"types"`

	IDPrefixes []string `json:"idPrefixes,omitempty"`
}

type BehaviorHints struct {
	Adult                 bool `json:"adult,omitempty"`
	P2P                   bool `json:"p2p,omitempty"`
	Configurable          bool `json:"configurable,omitempty"`
	ConfigurationRequired bool `json:"configurationRequired,omitempty"`
}

// CatalogItem represents a catalog. Unused by this addon — it never
// advertises any catalog of its own — but the field stays on Manifest
// since the manifest.json shape is fixed by the Stremio SDK contract.
type CatalogItem struct {
	Type model.ContentType `json:"type"`
	ID   string            `json:"id"`
	Name string            `json:"name"`

	Extra []ExtraItem `json:"extra,omitempty"`
}

type ExtraItem struct {
	Name string `json:"name"`

	IsRequired   bool     `json:"isRequired,omitempty"`
	Options      []string `json:"options,omitempty"`
	OptionsLimit int      `json:"optionsLimit,omitempty"`
}

func (a *Addon) manifest(configured bool) Manifest {
	return Manifest{
		ID:          a.id,
		Name:        a.name,
		Description: a.description,
		Version:     a.version,
		Types:       []model.ContentType{model.ContentTypeMovie, model.ContentTypeSeries},
		ResourceItems: []ResourceItem{
			{Name: ResourceStream, Types: []model.ContentType{model.ContentTypeMovie, model.ContentTypeSeries}, IDPrefixes: []string{"tt"}},
		},
		IDPrefixes: []string{"tt"},
		BehaviorHints: &BehaviorHints{
			Configurable:          true,
			ConfigurationRequired: !configured,
		},
	}
}
