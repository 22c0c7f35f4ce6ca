package crypto

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// Keyring maps agent IDs to their wallet signers.
type Keyring struct {
	mu      sync.RWMutex
	signers map[string]domain.TxSigner
}

// NewKeyring creates an empty Keyring.
func NewKeyring() *Keyring {
	return &Keyring{signers: make(map[string]domain.TxSigner)}
}

// LoadKeyring resolves every agent key and returns the populated Keyring.
func LoadKeyring(keys map[string]KeyConfig) (*Keyring, error) {
	kr := NewKeyring()
	for agentID, cfg := range keys {
		keyHex, err := LoadKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("crypto: agent %s: %w", agentID, err)
		}
		s, err := NewSigner(keyHex)
		if err != nil {
			return nil, fmt.Errorf("crypto: agent %s: %w", agentID, err)
		}
		kr.Add(agentID, s)
	}
	return kr, nil
}

// Add registers signer for agentID, replacing any previous one.
func (k *Keyring) Add(agentID string, signer domain.TxSigner) {
	k.mu.Lock()
	k.signers[agentID] = signer
	k.mu.Unlock()
}

// Signer returns the signer of agentID or domain.ErrUnknownAgent.
func (k *Keyring) Signer(agentID string) (domain.TxSigner, error) {
	k.mu.RLock()
	s, ok := k.signers[agentID]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("crypto: %q: %w", agentID, domain.ErrUnknownAgent)
	}
	return s, nil
}

// Agents lists the registered agent IDs in sorted order.
func (k *Keyring) Agents() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	ids := make([]string, 0, len(k.signers))
	for id := range k.signers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
