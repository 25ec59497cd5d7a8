// Package answerstore implements the versioned per-question answer store
// backing the autosave pipeline. Values live in a Redis hash keyed by
// session, one field per question_number, encoded as "seq|answer" where an
// empty answer means explicitly cleared. A write is applied only when its
// sequence exceeds the stored one, so a stale asynchronous write can never
// overwrite a newer selection.
package answerstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/config"
)

// Entry is one stored answer with its write sequence. A nil Answer is an
// explicit cleared state, distinct from the field being absent.
type Entry struct {
	Answer *string
	Seq    uint64
}

// setIfNewer applies HSET only when the incoming seq is strictly greater
// than the stored one. Returns {applied, storedValue}.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur then
  local sep = string.find(cur, '|', 1, true)
  local curseq = tonumber(string.sub(cur, 1, sep - 1))
  if curseq >= tonumber(ARGV[2]) then
    return {0, cur}
  end
end
local val = ARGV[2] .. '|' .. ARGV[3]
redis.call('HSET', KEYS[1], ARGV[1], val)
return {1, val}
`)

// Store is the Redis-backed answer store shared by regular sessions and
// custom tests (both key by their own UUID).
type Store struct {
	rdb *redis.Client
}

// NewStore creates a Store on the given Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Apply records an answer for (sessionID, questionNumber) if seq is newer
// than the stored write. It returns the entry that is stored after the call,
// and whether this write was the one applied.
func (s *Store) Apply(ctx context.Context, sessionID string, questionNumber int, answer *string, seq uint64) (Entry, bool, error) {
	key := config.CacheKey.SessionAnswersKey(sessionID)
	field := strconv.Itoa(questionNumber)

	res, err := setIfNewer.Run(ctx, s.rdb, []string{key}, field, strconv.FormatUint(seq, 10), deref(answer)).Slice()
	if err != nil {
		return Entry{}, false, fmt.Errorf("apply answer: %w", err)
	}
	if len(res) != 2 {
		return Entry{}, false, fmt.Errorf("apply answer: unexpected script reply %v", res)
	}

	applied, _ := res[0].(int64)
	raw, _ := res[1].(string)
	entry, err := decodeEntry(raw)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, applied == 1, nil
}

// Get returns the stored entry for one question, or ok=false if absent.
func (s *Store) Get(ctx context.Context, sessionID string, questionNumber int) (Entry, bool, error) {
	key := config.CacheKey.SessionAnswersKey(sessionID)
	raw, err := s.rdb.HGet(ctx, key, strconv.Itoa(questionNumber)).Result()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get answer: %w", err)
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// All returns every stored answer for a session, keyed by question_number.
// An empty map with no error means the session simply has no answers cached.
func (s *Store) All(ctx context.Context, sessionID string) (map[int]Entry, error) {
	key := config.CacheKey.SessionAnswersKey(sessionID)
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	entries := make(map[int]Entry, len(raw))
	for field, val := range raw {
		qn, err := strconv.Atoi(field)
		if err != nil {
			continue // Foreign field, not ours
		}
		entry, err := decodeEntry(val)
		if err != nil {
			return nil, err
		}
		entries[qn] = entry
	}
	return entries, nil
}

// Clear drops a session's answer buffer. Called after the final snapshot is
// persisted; safe to call twice.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, config.CacheKey.SessionAnswersKey(sessionID)).Err()
}

// ResolveToggle computes the next stored value for a submission: submitting
// the currently recorded option clears the answer to nil, anything else
// overwrites. Retried writes carry their original seq and are rejected by
// Apply before this result matters.
func ResolveToggle(current *string, submitted *string) *string {
	if submitted == nil {
		return nil
	}
	if current != nil && *current == *submitted {
		return nil
	}
	return submitted
}

// Newer reports whether a write at seq should supplant an existing entry.
func Newer(existing uint64, seq uint64) bool {
	return seq > existing
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func decodeEntry(raw string) (Entry, error) {
	sep := strings.IndexByte(raw, '|')
	if sep < 1 {
		return Entry{}, fmt.Errorf("malformed answer entry %q", raw)
	}
	seq, err := strconv.ParseUint(raw[:sep], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("malformed answer seq in %q: %w", raw, err)
	}
	entry := Entry{Seq: seq}
	if ans := raw[sep+1:]; ans != "" {
		entry.Answer = &ans
	}
	return entry, nil
}
