package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/covercompare/membergate/internal/vault"
	"github.com/covercompare/membergate/pkg/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Persistence handles the disk I/O for the MemStore: one JSON file per account.
// With a data key the files are sealed with AES-GCM and carry a .json.enc suffix.
type Persistence struct {
	DataDir string
	key     []byte
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Persistence{DataDir: dir}, nil
}

// WithKey enables encryption at rest. key must be vault.KeySize bytes.
func (p *Persistence) WithKey(key []byte) (*Persistence, error) {
	if len(key) != vault.KeySize {
		return nil, vault.ErrKeySize
	}
	p.key = key
	return p, nil
}

func (p *Persistence) suffix() string {
	if p.key != nil {
		return ".json.enc"
	}
	return ".json"
}

// SaveProfile writes a single profile to its JSON file atomically.
func (p *Persistence) SaveProfile(profile schema.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := filepath.Join(p.DataDir, profile.AccountID.String()+p.suffix())
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return err
	}
	if p.key != nil {
		if bytes, err = vault.Seal(bytes, p.key); err != nil {
			return fmt.Errorf("seal profile: %w", err)
		}
	}

	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return err
	}

	// Readers see either the old file or the new one, never a partial write.
	return os.Rename(tempPath, filePath)
}

// LoadAll returns every profile found in the data directory.
// Unreadable or malformed files are skipped with a warning.
func (p *Persistence) LoadAll() (map[uuid.UUID]schema.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := make(map[uuid.UUID]schema.Profile)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, p.suffix()) {
			continue
		}

		id, err := uuid.Parse(strings.TrimSuffix(name, p.suffix()))
		if err != nil {
			log.Warn().Str("file", name).Msg("Skipping profile file with non-UUID name")
			continue
		}

		content, err := os.ReadFile(filepath.Join(p.DataDir, name))
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Could not read profile file")
			continue
		}
		if p.key != nil {
			if content, err = vault.Open(content, p.key); err != nil {
				log.Warn().Err(err).Str("file", name).Msg("Could not open sealed profile file")
				continue
			}
		}

		var profile schema.Profile
		if err := json.Unmarshal(content, &profile); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Could not unmarshal profile file")
			continue
		}
		if profile.AccountID != id {
			log.Warn().Str("file", name).Str("account_id", profile.AccountID.String()).Msg("Profile file name does not match account id")
			continue
		}
		all[id] = profile
	}
	return all, nil
}
