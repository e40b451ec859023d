package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/agentwright/pkg/domain"
)

// appendScript pushes a snapshot only if it extends the log by exactly one.
// On conflict it returns -(current length + 1).
//
// KEYS[1] run log, KEYS[2] activity index
// ARGV[1] seq, ARGV[2] snapshot, ARGV[3] ttl ms, ARGV[4] now ms, ARGV[5] run id
var appendScript = backend.NewScript(`
local len = redis.call("LLEN", KEYS[1])
if len + 1 ~= tonumber(ARGV[1]) then
	return -1 - len
end
redis.call("RPUSH", KEYS[1], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
redis.call("ZADD", KEYS[2], ARGV[4], ARGV[5])
return len + 1
`)

// Store implements ports.SnapshotStore on Redis. Each run is a list of JSON
// snapshots at <prefix><runID>. The sorted set <prefix>index scores every run
// by the time of its last append, which lets List skip runs whose log expired.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Store)

// WithTTL expires a run's log ttl after its last append. Zero keeps runs
// until they are deleted.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix namespaces every key of the store.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithClock sets the time source of the activity index.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

const defaultPrefix = "agentwright:run:"

// NewFromClient creates a store on an existing client. The client stays
// owned by the caller, who may share it with a Locker.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) logKey(runID string) string { return s.prefix + runID }

func (s *Store) indexKey() string { return s.prefix + "index" }

// Append adds snap to the run's log if snap.Seq is the next sequence number.
func (s *Store) Append(ctx context.Context, runID string, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %d of %s: %w", snap.Seq, runID, err)
	}

	n, err := appendScript.Run(ctx, s.client,
		[]string{s.logKey(runID), s.indexKey()},
		snap.Seq, data, s.ttl.Milliseconds(), s.now().UnixMilli(), runID,
	).Int64()
	if err != nil {
		return fmt.Errorf("append snapshot %d of %s: %w", snap.Seq, runID, err)
	}
	if n < 0 {
		return fmt.Errorf("%w: run %s expects seq %d, got %d", domain.ErrSequenceConflict, runID, -n, snap.Seq)
	}
	return nil
}

// LoadNext returns the last snapshot of the run.
func (s *Store) LoadNext(ctx context.Context, runID string) (*domain.Snapshot, error) {
	raw, err := s.client.LIndex(ctx, s.logKey(runID), -1).Result()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load head of %s: %w", runID, err)
	}

	snap, err := decode(runID, 0, raw)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// LoadAll returns the whole log, oldest first.
func (s *Store) LoadAll(ctx context.Context, runID string) ([]domain.Snapshot, error) {
	raws, err := s.client.LRange(ctx, s.logKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load log of %s: %w", runID, err)
	}
	if len(raws) == 0 {
		return nil, domain.ErrRunNotFound
	}

	out := make([]domain.Snapshot, len(raws))
	for i, raw := range raws {
		if out[i], err = decode(runID, i+1, raw); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decode(runID string, pos int, raw string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		where := "head"
		if pos > 0 {
			where = "entry " + strconv.Itoa(pos)
		}
		return snap, fmt.Errorf("%w: run %s %s: %v", domain.ErrCorruptSnapshot, runID, where, err)
	}
	return snap, nil
}

// Delete removes the run's log and its index entry in one transaction.
func (s *Store) Delete(ctx context.Context, runID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Del(ctx, s.logKey(runID))
		pipe.ZRem(ctx, s.indexKey(), runID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", runID, err)
	}
	return nil
}

// List returns the ids of runs whose log has not expired, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if s.ttl > 0 {
		cutoff := s.now().Add(-s.ttl).UnixMilli()
		if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
			return nil, fmt.Errorf("prune expired runs: %w", err)
		}
	}

	runs, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	sort.Strings(runs)
	return runs, nil
}
