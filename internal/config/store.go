package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Persisted is the small device state the relay writes back: the identity of
// the paired host and the last pairing code.
type Persisted struct {
	RemoteName  string `mapstructure:"remote_name"`
	LastCode    string `mapstructure:"last_code"`
	DeviceToken string `mapstructure:"device_token"`
}

// Store persists device state to a YAML file. Mutations go through Update so
// concurrent fire-and-forget writers from the session never interleave.
type Store struct {
	mu   sync.Mutex
	path string
}

// DefaultStorePath returns ~/.conduit/state.yaml, creating the directory
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".conduit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.yaml"), nil
}

// NewStore creates a store backed by the given file. The file may not exist
// yet; the first Update creates it.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted state, returning zero values for a missing file
func (s *Store) Load() (*Persisted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Update applies the mutator to the current state and writes the result back
func (s *Store) Update(mutate func(*Persisted)) (*Persisted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return nil, err
	}
	mutate(st)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("remote_name", st.RemoteName)
	v.Set("last_code", st.LastCode)
	v.Set("device_token", st.DeviceToken)
	if err := v.WriteConfigAs(s.path); err != nil {
		return nil, err
	}
	return st, nil
}

// RememberRemote satisfies the session's config sink
func (s *Store) RememberRemote(name string) error {
	_, err := s.Update(func(p *Persisted) { p.RemoteName = name })
	return err
}

// RememberCode records the last pairing code for later reconnects
func (s *Store) RememberCode(code string) error {
	_, err := s.Update(func(p *Persisted) { p.LastCode = code })
	return err
}

func (s *Store) read() (*Persisted, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")

	st := &Persisted{}
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, err
	}
	if err := v.Unmarshal(st); err != nil {
		return nil, err
	}
	return st, nil
}
