package gateway

import "context"

// Artifact is a validated creative output ready for storage.
type Artifact struct {
	Prompt        string
	Bytes         []byte
	MimeType      string
	Width         int
	Height        int
	Provider      string
	DraftMetadata Metadata
}

// StoredObject is a durably persisted object and its public URL.
type StoredObject struct {
	URL string
	Key string
}

type MintRequest struct {
	MetadataURL        string
	Name               string
	Symbol             string
	RoyaltyBasisPoints int
}

type MintRecord struct {
	RecordID    string
	ExplorerURL string
}

// ArtifactGenerator turns a (style, theme) pair into a prompt and artifact.
// Failures are *GenerationError.
type ArtifactGenerator interface {
	Generate(ctx context.Context, style, theme string) (Artifact, error)
}

// DurableStorage persists artifact bytes and metadata JSON.
// Failures are *StorageError.
type DurableStorage interface {
	StoreArtifact(ctx context.Context, artifact Artifact) (StoredObject, error)
	StoreMetadata(ctx context.Context, metadata Metadata) (StoredObject, error)
}

// Minter registers a metadata URL against a ledger.
// Failures are *MintError.
type Minter interface {
	Mint(ctx context.Context, req MintRequest) (MintRecord, error)
}
