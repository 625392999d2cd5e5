package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when no row exists for the presented hash.
var ErrTokenNotFound = errors.New("refresh token not found")

// ErrTokenExpired is returned when the row exists, is not revoked, and its
// expiry timestamp has passed.
var ErrTokenExpired = errors.New("refresh token expired")

// ErrTokenReused is returned when the row is already revoked. The caller is
// expected to treat this as a reuse signal and escalate.
var ErrTokenReused = errors.New("refresh token reused")

// ErrRecordCorrupt is returned when the stored row cannot be parsed.
var ErrRecordCorrupt = errors.New("refresh token record corrupt")

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

const minRowTTL = time.Second

const (
	consumeStatusNotFound    int64 = 0
	consumeStatusExpired     int64 = 1
	consumeStatusReused      int64 = 2
	consumeStatusConsumed    int64 = 3
	consumeStatusInvalidBlob int64 = 4
)

const consumeScript = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local version = string.byte(data, 1)
if not version or version ~= 1 then
  return {4}
end

local acct_len = string.byte(data, 2)
if not acct_len or acct_len == 0 then
  return {4}
end
if #data < 19 + acct_len then
  return {4}
end

local account_id = string.sub(data, 3, 2 + acct_len)
local revoked_offset = 3 + acct_len
local revoked = string.byte(data, revoked_offset)
local expires_at = read_be64(data, revoked_offset + 9)
if not expires_at then
  return {4}
end

local now_unix = tonumber(ARGV[1])

-- Revoked wins over expired: a replay of a consumed token is reuse even
-- after the token's own lifetime has passed.
if revoked == 1 then
  return {2, account_id}
end

if expires_at <= now_unix then
  return {1, account_id}
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  return {1, account_id}
end

local prefix = string.sub(data, 1, revoked_offset - 1)
local suffix = string.sub(data, revoked_offset + 1)
redis.call("SET", KEYS[1], prefix .. string.char(1) .. suffix, "PX", ttl)

return {3, account_id}
`

var consumeLua = redis.NewScript(consumeScript)

const revokeScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local acct_len = string.byte(data, 2)
if not acct_len or #data < 19 + acct_len then
  return {-1}
end

local account_id = string.sub(data, 3, 2 + acct_len)
local revoked_offset = 3 + acct_len
if string.byte(data, revoked_offset) == 1 then
  return {1, account_id}
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  return {0}
end

local prefix = string.sub(data, 1, revoked_offset - 1)
local suffix = string.sub(data, revoked_offset + 1)
redis.call("SET", KEYS[1], prefix .. string.char(1) .. suffix, "PX", ttl)

return {2, account_id}
`

var revokeLua = redis.NewScript(revokeScript)

const revokeAllScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local revoked = 0

for _, member in ipairs(members) do
  local key = ARGV[1] .. member
  local data = redis.call("GET", key)
  if data then
    local acct_len = string.byte(data, 2)
    if acct_len and #data >= 19 + acct_len then
      local revoked_offset = 3 + acct_len
      if string.byte(data, revoked_offset) == 0 then
        local ttl = redis.call("PTTL", key)
        if ttl > 0 then
          local prefix = string.sub(data, 1, revoked_offset - 1)
          local suffix = string.sub(data, revoked_offset + 1)
          redis.call("SET", key, prefix .. string.char(1) .. suffix, "PX", ttl)
          revoked = revoked + 1
        end
      end
    end
  else
    redis.call("SREM", KEYS[1], member)
  end
end

return revoked
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// Store is a Redis-backed refresh token ledger. It persists one row per
// issued token and provides the atomic consume operation that drives
// rotation and reuse detection.
//
//	Docs: docs/ledger.md
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	retention     time.Duration
	jitterEnabled bool
	jitterRange   time.Duration
}

// NewStore creates a ledger [Store] backed by the given Redis client.
// prefix sets the Redis key namespace; retention controls how long revoked
// rows outlive their expiry; jitterEnabled and jitterRange extend row TTLs
// by a random amount to avoid synchronized eviction storms.
//
//	Docs: docs/ledger.md
func NewStore(
	redis redis.UniversalClient,
	prefix string,
	retention time.Duration,
	jitterEnabled bool,
	jitterRange time.Duration,
) *Store {
	return &Store{
		redis:         redis,
		prefix:        prefix,
		retention:     retention,
		jitterEnabled: jitterEnabled,
		jitterRange:   jitterRange,
	}
}

func (s *Store) key(hashHex string) string {
	return s.prefix + ":rt:" + hashHex
}

func (s *Store) keyPrefix() string {
	return s.prefix + ":rt:"
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + ":acct:" + accountID
}

// Save persists a new token row and indexes it under its account.
//
//	Performance: 3 Redis commands in one MULTI (SET + SADD + EXPIRE).
//	Docs: docs/ledger.md
func (s *Store) Save(ctx context.Context, hash [32]byte, rec *Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	ttl, err := s.rowTTL(rec, time.Now())
	if err != nil {
		return err
	}

	hashHex := hex.EncodeToString(hash[:])
	tokenKey := s.key(hashHex)
	acctKey := s.accountKey(rec.AccountID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKey, data, ttl)
		pipe.SAdd(ctx, acctKey, hashHex)
		pipe.Expire(ctx, acctKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ConsumeIfActive atomically marks the row revoked if and only if it is
// currently active. It returns the owning account ID on success. On reuse
// the account ID is returned alongside [ErrTokenReused] so the caller can
// escalate to a full revocation.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-set).
//	Security: CAS guarantees a single winner under concurrent presentation.
//	Docs: docs/ledger.md
func (s *Store) ConsumeIfActive(ctx context.Context, hash [32]byte) (string, error) {
	result, err := consumeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(hex.EncodeToString(hash[:]))},
		time.Now().Unix(),
	).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	code, accountID, err := parseScriptReply(result)
	if err != nil {
		return "", err
	}

	switch code {
	case consumeStatusNotFound:
		return "", ErrTokenNotFound
	case consumeStatusExpired:
		return accountID, ErrTokenExpired
	case consumeStatusReused:
		return accountID, ErrTokenReused
	case consumeStatusConsumed:
		return accountID, nil
	case consumeStatusInvalidBlob:
		return "", ErrRecordCorrupt
	default:
		return "", fmt.Errorf("%w: unknown consume script status", ErrRedisUnavailable)
	}
}

// Revoke marks a single row revoked. Revoking an already revoked or
// missing row is not an error; the operation is idempotent.
//
//	Performance: 1 Lua EVALSHA.
//	Docs: docs/ledger.md
func (s *Store) Revoke(ctx context.Context, hash [32]byte) (string, error) {
	result, err := revokeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(hex.EncodeToString(hash[:]))},
	).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	code, accountID, err := parseScriptReply(result)
	if err != nil {
		return "", err
	}
	if code < 0 {
		return "", ErrRecordCorrupt
	}

	return accountID, nil
}

// RevokeAllForAccount marks every live row of an account revoked and
// returns the number of rows flipped. Stale index members whose rows have
// already been evicted are pruned as a side effect.
//
//	Performance: 1 Lua EVALSHA, O(tokens per account).
//	Docs: docs/ledger.md
func (s *Store) RevokeAllForAccount(ctx context.Context, accountID string) (int, error) {
	result, err := revokeAllLua.Run(
		ctx,
		s.redis,
		[]string{s.accountKey(accountID)},
		s.keyPrefix(),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid revoke-all script response", ErrRedisUnavailable)
	}

	return int(count), nil
}

// Get fetches a row without mutating it. Missing rows return
// [ErrTokenNotFound].
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, hash [32]byte) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(hex.EncodeToString(hash[:]))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrRecordCorrupt, err)
	}

	return rec, nil
}

// ActiveTokenCount returns the number of indexed rows for an account that
// still exist and are not revoked.
//
//	Performance: SMEMBERS + pipelined GETs. Admin/introspection use only.
func (s *Store) ActiveTokenCount(ctx context.Context, accountID string) (int, error) {
	members, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.Get(ctx, s.keyPrefix()+member)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now().Unix()
	var active int
	for _, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		rec, decErr := Decode(data)
		if decErr != nil {
			continue
		}
		if !rec.Revoked && rec.ExpiresAt > now {
			active++
		}
	}

	return active, nil
}

// Sweep walks the account indexes and prunes members whose rows Redis has
// already evicted. It returns the number of pruned members. Row removal
// itself is TTL-driven; Sweep only keeps the indexes honest.
//
//	Performance: SCAN-based, O(indexes). Run from a background loop.
//	Docs: docs/ledger.md
func (s *Store) Sweep(ctx context.Context) (int, error) {
	pattern := s.prefix + ":acct:*"
	var (
		cursor uint64
		pruned int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return pruned, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		for _, acctKey := range keys {
			n, err := s.sweepIndex(ctx, acctKey)
			if err != nil {
				return pruned, err
			}
			pruned += n
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return pruned, nil
}

func (s *Store) sweepIndex(ctx context.Context, acctKey string) (int, error) {
	members, err := s.redis.SMembers(ctx, acctKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(members))
	for i, member := range members {
		existsCmds[i] = pipe.Exists(ctx, s.keyPrefix()+member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	stale := make([]interface{}, 0, len(members))
	for i, cmd := range existsCmds {
		v, cmdErr := cmd.Result()
		if cmdErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		if v == 0 {
			stale = append(stale, members[i])
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}

	if err := s.redis.SRem(ctx, acctKey, stale...).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return len(stale), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) rowTTL(rec *Record, now time.Time) (time.Duration, error) {
	ttl := time.Unix(rec.ExpiresAt, 0).Sub(now) + s.retention

	if s.jitterEnabled && s.jitterRange > 0 {
		jitter, err := randomJitter(s.jitterRange)
		if err != nil {
			return 0, err
		}
		ttl += jitter
	}

	if ttl < minRowTTL {
		ttl = minRowTTL
	}

	return ttl, nil
}

func parseScriptReply(result interface{}) (int64, string, error) {
	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return 0, "", fmt.Errorf("%w: invalid script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return 0, "", fmt.Errorf("%w: invalid script status", ErrRedisUnavailable)
	}

	var accountID string
	if len(parts) > 1 {
		switch v := parts[1].(type) {
		case string:
			accountID = v
		case []byte:
			accountID = string(v)
		default:
			return 0, "", fmt.Errorf("%w: invalid script payload", ErrRedisUnavailable)
		}
	}

	return code, accountID, nil
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	max := jitterRange.Nanoseconds()
	if max > math.MaxInt64-1 {
		return 0, errors.New("jitter range too large")
	}

	// Additive only. A negative draw would evict the row before expiry
	// plus retention and shrink the reuse-detection window.
	n, err := rand.Int(rand.Reader, big.NewInt(max+1))
	if err != nil {
		return 0, err
	}

	return time.Duration(n.Int64()), nil
}
