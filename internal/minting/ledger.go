package minting

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/yungbote/artforge-backend/internal/gateway"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

var ledgerDomainKey = [32]byte{
	'a', 'r', 't', 'f', 'o', 'r', 'g', 'e', '.', 'l', 'e', 'd', 'g', 'e', 'r', '.',
	'r', 'e', 'c', 'o', 'r', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// LedgerEntry is one line of the local ledger file.
type LedgerEntry struct {
	RecordID           string    `json:"recordId"`
	Seq                uint64    `json:"seq"`
	MetadataURL        string    `json:"metadataUrl"`
	Name               string    `json:"name"`
	Symbol             string    `json:"symbol"`
	RoyaltyBasisPoints int       `json:"royaltyBasisPoints"`
	MintedAt           time.Time `json:"mintedAt"`
}

// LedgerMinter appends mint records to a JSON lines file. It stands in for a
// chain in development and in tests.
type LedgerMinter struct {
	log  *logger.Logger
	path string
	now  func() time.Time

	mu  sync.Mutex
	seq uint64
}

func NewLedgerMinter(path string, log *logger.Logger) (*LedgerMinter, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ledger path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	m := &LedgerMinter{log: log.With("service", "LedgerMinter"), path: abs, now: time.Now}
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}
	if n := len(entries); n > 0 {
		m.seq = entries[n-1].Seq
	}
	return m, nil
}

func (m *LedgerMinter) Name() string { return "ledger" }
func (m *LedgerMinter) Path() string { return m.path }

func (m *LedgerMinter) Mint(ctx context.Context, req gateway.MintRequest) (gateway.MintRecord, error) {
	if err := ctx.Err(); err != nil {
		return gateway.MintRecord{}, gateway.NewMintError(m.Name(), "cancelled", err)
	}
	if strings.TrimSpace(req.MetadataURL) == "" {
		return gateway.MintRecord{}, gateway.NewMintError(m.Name(), "metadata url required", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := LedgerEntry{
		Seq:                m.seq + 1,
		MetadataURL:        req.MetadataURL,
		Name:               req.Name,
		Symbol:             req.Symbol,
		RoyaltyBasisPoints: req.RoyaltyBasisPoints,
		MintedAt:           m.now().UTC(),
	}
	entry.RecordID = recordID(entry)

	line, err := json.Marshal(entry)
	if err != nil {
		return gateway.MintRecord{}, gateway.NewMintError(m.Name(), "encode entry", err)
	}
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return gateway.MintRecord{}, gateway.NewMintError(m.Name(), "open ledger", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return gateway.MintRecord{}, gateway.NewMintError(m.Name(), "append ledger", err)
	}
	if err := f.Close(); err != nil {
		return gateway.MintRecord{}, gateway.NewMintError(m.Name(), "close ledger", err)
	}
	m.seq = entry.Seq

	m.log.Info("Recorded mint", "record_id", entry.RecordID, "seq", entry.Seq)
	return gateway.MintRecord{
		RecordID:    entry.RecordID,
		ExplorerURL: "file://" + filepath.ToSlash(m.path) + "#" + entry.RecordID,
	}, nil
}

// Entries reads the whole ledger in append order.
func (m *LedgerMinter) Entries() ([]LedgerEntry, error) {
	raw, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	var out []LedgerEntry
	for i, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e LedgerEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", i+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func recordID(e LedgerEntry) string {
	h, _ := blake3.NewKeyed(ledgerDomainKey[:])
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], e.Seq)
	_, _ = h.Write(seq[:])
	_, _ = h.Write([]byte(e.MetadataURL))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(e.MintedAt.Format(time.RFC3339Nano)))
	sum := h.Sum(nil)
	return "ledger-" + hex.EncodeToString(sum[:16])
}
