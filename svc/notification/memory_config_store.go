package notification

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// MemoryConfigStore keeps owner configurations in process memory.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[string]*OwnerConfig
}

// NewMemoryConfigStore returns a store seeded with copies of configs.
// A later config for the same owner replaces an earlier one.
func NewMemoryConfigStore(configs ...*OwnerConfig) *MemoryConfigStore {
	s := &MemoryConfigStore{configs: make(map[string]*OwnerConfig, len(configs))}
	for _, c := range configs {
		s.configs[c.Owner] = c.Clone()
	}
	return s
}

func (s *MemoryConfigStore) GetConfig(_ context.Context, owner string) (*OwnerConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.configs[owner]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOwnerConfigNotFound, owner)
	}
	return c.Clone(), nil
}

func (s *MemoryConfigStore) CreateConfig(_ context.Context, cfg *OwnerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[cfg.Owner]; ok {
		return fmt.Errorf("%w: %s", ErrOwnerConfigExists, cfg.Owner)
	}
	s.configs[cfg.Owner] = cfg.Clone()
	return nil
}

func (s *MemoryConfigStore) UpdateConfig(_ context.Context, cfg *OwnerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[cfg.Owner]; !ok {
		return fmt.Errorf("%w: %s", ErrOwnerConfigNotFound, cfg.Owner)
	}
	s.configs[cfg.Owner] = cfg.Clone()
	return nil
}

type configFile struct {
	Owners []ConfigInput `yaml:"owners"`
}

// LoadConfigsYAML decodes a seed document of the form
//
//	owners:
//	  - owner: acme@example.com
//	    channels: [email, telegram]
//	    credentials:
//	      email: {api_key: "...", to: "ops@example.com"}
//	      telegram: {token: "...", chat_id: "..."}
func LoadConfigsYAML(r io.Reader) ([]*OwnerConfig, error) {
	var doc configFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode owner configurations: %w", err)
	}

	out := make([]*OwnerConfig, 0, len(doc.Owners))
	for i, in := range doc.Owners {
		cfg, err := BuildConfig(in)
		if err != nil {
			return nil, fmt.Errorf("owner configuration #%d: %w", i+1, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// LoadConfigsYAMLFile reads LoadConfigsYAML input from path.
func LoadConfigsYAMLFile(path string) ([]*OwnerConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadConfigsYAML(f)
}
