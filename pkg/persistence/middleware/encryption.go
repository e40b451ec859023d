package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/ports"
)

// ErrUndecryptable is returned when no configured key opens a sealed snapshot.
var ErrUndecryptable = errors.New("sealed snapshot cannot be opened with any configured key")

// EncryptionConfig holds the AES-256 keys of the middleware.
type EncryptionConfig struct {
	// ActiveKey seals new snapshots. Must be 32 bytes.
	ActiveKey []byte

	// FallbackKeys are tried, in order, on snapshots the active key cannot
	// open. Keep retired keys here until every run written with them is gone.
	FallbackKeys [][]byte
}

// sealedPayload is the part of a snapshot that leaves the process encrypted.
type sealedPayload struct {
	State domain.ConversationState `json:"state"`
	Next  domain.StepRef           `json:"next"`
}

type encryptionMiddleware struct {
	next   ports.SnapshotStore
	active cipher.AEAD
	// open holds the active key first, then the fallbacks.
	open []cipher.AEAD
}

// NewEncryptionMiddleware seals the state and pending step of every snapshot
// with AES-GCM. Only the sequence, run id, timestamp and next step kind stay
// in clear. Run id and sequence are authenticated with the payload, so a
// sealed blob copied to another run or position fails to open.
//
// It panics if a key is not 32 bytes long.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	active := mustAEAD(config.ActiveKey, "active key")
	open := []cipher.AEAD{active}
	for i, key := range config.FallbackKeys {
		open = append(open, mustAEAD(key, "fallback key "+strconv.Itoa(i)))
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &encryptionMiddleware{next: next, active: active, open: open}
	}
}

func mustAEAD(key []byte, name string) cipher.AEAD {
	if len(key) != 32 {
		panic(fmt.Sprintf("encryption middleware: %s must be 32 bytes (AES-256), got %d", name, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	return gcm
}

// associatedData binds a sealed payload to its place in a run's log.
func associatedData(runID string, seq int64) []byte {
	return []byte(runID + "\x00" + strconv.FormatInt(seq, 10))
}

func (m *encryptionMiddleware) Append(ctx context.Context, runID string, snap domain.Snapshot) error {
	plain, err := json.Marshal(sealedPayload{State: snap.State, Next: snap.Next})
	if err != nil {
		return fmt.Errorf("encode snapshot %d for sealing: %w", snap.Seq, err)
	}

	nonce := make([]byte, m.active.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := m.active.Seal(nonce, nonce, plain, associatedData(runID, snap.Seq))

	return m.next.Append(ctx, runID, domain.Snapshot{
		Seq:       snap.Seq,
		RunID:     snap.RunID,
		Next:      domain.StepRef{Kind: snap.Next.Kind},
		CreatedAt: snap.CreatedAt,
		Sealed:    base64.StdEncoding.EncodeToString(sealed),

		InputDigest: snap.InputDigest,
	})
}

func (m *encryptionMiddleware) LoadNext(ctx context.Context, runID string) (*domain.Snapshot, error) {
	envelope, err := m.next.LoadNext(ctx, runID)
	if err != nil {
		return nil, err
	}
	snap, err := m.unseal(runID, *envelope)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (m *encryptionMiddleware) LoadAll(ctx context.Context, runID string) ([]domain.Snapshot, error) {
	envelopes, err := m.next.LoadAll(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Snapshot, len(envelopes))
	for i, env := range envelopes {
		if out[i], err = m.unseal(runID, env); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// unseal rejects clear snapshots: once encryption is on they are not trusted.
func (m *encryptionMiddleware) unseal(runID string, envelope domain.Snapshot) (domain.Snapshot, error) {
	if envelope.Sealed == "" {
		return domain.Snapshot{}, fmt.Errorf("%w: run %s snapshot %d has no sealed payload", domain.ErrCorruptSnapshot, runID, envelope.Seq)
	}
	blob, err := base64.StdEncoding.DecodeString(envelope.Sealed)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: run %s snapshot %d: %v", domain.ErrCorruptSnapshot, runID, envelope.Seq, err)
	}

	plain, err := m.openBlob(blob, associatedData(runID, envelope.Seq))
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("run %s snapshot %d: %w", runID, envelope.Seq, err)
	}

	var payload sealedPayload
	if err := json.Unmarshal(plain, &payload); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: run %s snapshot %d: %v", domain.ErrCorruptSnapshot, runID, envelope.Seq, err)
	}
	return domain.Snapshot{
		Seq:       envelope.Seq,
		RunID:     envelope.RunID,
		State:     payload.State,
		Next:      payload.Next,
		CreatedAt: envelope.CreatedAt,

		InputDigest: envelope.InputDigest,
	}, nil
}

func (m *encryptionMiddleware) openBlob(blob, aad []byte) ([]byte, error) {
	for _, aead := range m.open {
		n := aead.NonceSize()
		if len(blob) < n {
			continue
		}
		if plain, err := aead.Open(nil, blob[:n], blob[n:], aad); err == nil {
			return plain, nil
		}
	}
	return nil, ErrUndecryptable
}
