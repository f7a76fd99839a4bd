package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openclaw/pairing-server-go/internal/model"
	redisclient "github.com/openclaw/pairing-server-go/internal/redis"
)

// claimScript performs the check-and-set for a claim as a single atomic
// step. Returns nil for an absent key, {0, record} when the record is
// already claimed, and {1, record} after winning the claim.
var claimScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
    return nil
end
local rec = cjson.decode(v)
if rec.claimed then
    return {0, v}
end
rec.claimed = true
rec.claimed_at = ARGV[1]
rec.agent_name = ARGV[2]
if ARGV[3] ~= '' then
    rec.agent_id = ARGV[3]
end
local out = cjson.encode(rec)
redis.call('SET', KEYS[1], out, 'EX', tonumber(ARGV[4]))
return {1, out}
`)

// RedisStore keeps pairing records as JSON values with native Redis TTLs, so
// a key exists exactly as long as the record is live.
type RedisStore struct {
	client *redisclient.Client
}

func NewRedisStore(client *redisclient.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, code string, rec model.PairingCode, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal pairing record: %w", err)
	}

	stored, err := s.client.SetNX(ctx, redisclient.PairingKey(code), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store pairing record: %w", err)
	}
	return stored, nil
}

func (s *RedisStore) Get(ctx context.Context, code string) (*model.PairingCode, error) {
	data, err := s.client.Get(ctx, redisclient.PairingKey(code)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get pairing record: %w", err)
	}

	var rec model.PairingCode
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal pairing record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Claim(ctx context.Context, code, agentName, agentID string, claimedAt time.Time, retain time.Duration) (*model.PairingCode, error) {
	retainSecs := int64(retain.Seconds())
	if retainSecs < 1 {
		retainSecs = 1
	}

	res, err := claimScript.Run(
		ctx,
		s.client.Client,
		[]string{redisclient.PairingKey(code)},
		claimedAt.UTC().Format(time.RFC3339Nano),
		agentName,
		agentID,
		retainSecs,
	).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("claim pairing record: %w", err)
	}

	pair, ok := res.([]interface{})
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("claim pairing record: unexpected script result %T", res)
	}

	won, _ := pair[0].(int64)
	raw, _ := pair[1].(string)

	var rec model.PairingCode
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal claimed record: %w", err)
	}

	if won != 1 {
		return nil, ErrAlreadyClaimed
	}
	return &rec, nil
}
