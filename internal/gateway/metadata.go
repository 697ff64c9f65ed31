package gateway

// Metadata is the Metaplex token metadata JSON document.
type Metadata struct {
	Name                 string     `json:"name"`
	Symbol               string     `json:"symbol"`
	Description          string     `json:"description"`
	SellerFeeBasisPoints int        `json:"seller_fee_basis_points"`
	Image                string     `json:"image"`
	ExternalURL          string     `json:"external_url,omitempty"`
	Attributes           []Trait    `json:"attributes"`
	Properties           Properties `json:"properties"`
}

type Trait struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type Properties struct {
	Files    []File    `json:"files"`
	Category string    `json:"category"`
	Creators []Creator `json:"creators,omitempty"`
}

type File struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

type Creator struct {
	Address string `json:"address"`
	Share   int    `json:"share"`
}

// WithImage returns a copy pointing at the stored artifact.
func (m Metadata) WithImage(url, mimeType string) Metadata {
	out := m
	out.Image = url
	out.Attributes = append([]Trait(nil), m.Attributes...)
	out.Properties.Creators = append([]Creator(nil), m.Properties.Creators...)
	out.Properties.Files = []File{{URI: url, Type: mimeType}}
	if out.Properties.Category == "" {
		out.Properties.Category = "image"
	}
	return out
}

// Trait returns the value of a named attribute.
func (m Metadata) Trait(name string) (string, bool) {
	for _, t := range m.Attributes {
		if t.TraitType == name {
			return t.Value, true
		}
	}
	return "", false
}
