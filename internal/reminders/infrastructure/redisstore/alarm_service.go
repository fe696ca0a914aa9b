// Package redisstore keeps armed reminders in Redis so any worker can fire them.
//
// Layout:
//
//	synapse:reminders:due            ZSET  member=<handle key> score=<trigger ms>
//	synapse:reminders:alarm:<key>    HASH  payload, tier, trigger_ms
//	synapse:reminders:guard          STRING with TTL while a guard is active
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
)

const (
	DueKey      = "synapse:reminders:due"
	AlarmPrefix = "synapse:reminders:alarm:"
	GuardKey    = "synapse:reminders:guard"

	fieldPayload   = "payload"
	fieldTier      = "tier"
	fieldTriggerMs = "trigger_ms"
)

// AlarmKey returns the hash key holding the payload for handle.
func AlarmKey(handle domain.Handle) string {
	return AlarmPrefix + handle.Key
}

// NewClient parses a redis:// URL and checks the server answers.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// AlarmService implements domain.AlarmService, domain.Guard and
// domain.DueStore on Redis.
type AlarmService struct {
	client   redis.UniversalClient
	exact    bool
	guardTTL time.Duration
}

// NewAlarmService creates a Redis alarm service. exact is what
// CanScheduleExactAlarms reports; guardTTL is how long StartGuard lasts.
func NewAlarmService(client redis.UniversalClient, exact bool, guardTTL time.Duration) *AlarmService {
	if guardTTL <= 0 {
		guardTTL = 10 * time.Minute
	}
	return &AlarmService{client: client, exact: exact, guardTTL: guardTTL}
}

func (s *AlarmService) RegisterClockAlarm(ctx context.Context, alarm domain.Alarm) error {
	return s.register(ctx, alarm.WithTier(domain.TierClockAlarm))
}

func (s *AlarmService) RegisterExactIdleBypass(ctx context.Context, alarm domain.Alarm) error {
	return s.register(ctx, alarm.WithTier(domain.TierExactIdleBypass))
}

func (s *AlarmService) RegisterInexactIdleBypass(ctx context.Context, alarm domain.Alarm) error {
	return s.register(ctx, alarm.WithTier(domain.TierInexactIdleBypass))
}

// register overwrites both the payload and the score, so re-arming a
// handle moves its trigger instead of adding a second one.
func (s *AlarmService) register(ctx context.Context, alarm domain.Alarm) error {
	fields, err := alarmFields(alarm)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, AlarmKey(alarm.Handle))
		pipe.HSet(ctx, AlarmKey(alarm.Handle), fields)
		pipe.ZAdd(ctx, DueKey, redis.Z{
			Score:  float64(alarm.TriggerAt.UnixMilli()),
			Member: alarm.Handle.Key,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register alarm %s: %w", alarm.Handle.Key, err)
	}
	return nil
}

// Cancel removes the alarm. Unknown handles are a no-op.
func (s *AlarmService) Cancel(ctx context.Context, handle domain.Handle) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, DueKey, handle.Key)
		pipe.Del(ctx, AlarmKey(handle))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cancel alarm %s: %w", handle.Key, err)
	}
	return nil
}

func (s *AlarmService) CanScheduleExactAlarms(ctx context.Context) bool {
	return s.exact
}

// StartGuard sets the guard key; dispatchers poll fast while it exists.
func (s *AlarmService) StartGuard(ctx context.Context) error {
	until := time.Now().Add(s.guardTTL).UnixMilli()
	return s.client.Set(ctx, GuardKey, until, s.guardTTL).Err()
}

func (s *AlarmService) GuardActive(ctx context.Context, now time.Time) bool {
	n, err := s.client.Exists(ctx, GuardKey).Result()
	return err == nil && n > 0
}

// claimScript removes one due member and its payload in a single step. A
// member re-armed to a later trigger since the range read is left alone.
var claimScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score or tonumber(score) > tonumber(ARGV[2]) then
	return false
end
redis.call('ZREM', KEYS[1], ARGV[1])
local payload = redis.call('HGET', KEYS[2], 'payload')
redis.call('DEL', KEYS[2])
return payload
`)

// releaseScript re-arms a claimed alarm unless its handle was armed again
// after the claim.
var releaseScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[2])
redis.call('HSET', KEYS[2], 'payload', ARGV[2], 'tier', ARGV[3], 'trigger_ms', ARGV[4])
redis.call('ZADD', KEYS[1], ARGV[4], ARGV[1])
return 1
`)

// ClaimDue returns alarms due at now. Each member is claimed by a script
// that removes it and its payload together; only the caller whose script
// removed it gets the alarm.
func (s *AlarmService) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Alarm, error) {
	nowMs := strconv.FormatInt(now.UnixMilli(), 10)
	opt := &redis.ZRangeBy{Min: "-inf", Max: nowMs}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	keys, err := s.client.ZRangeByScore(ctx, DueKey, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due alarms: %w", err)
	}

	var due []domain.Alarm
	for _, key := range keys {
		alarm, ok, err := s.claim(ctx, key, nowMs)
		if err != nil {
			return due, err
		}
		if ok {
			due = append(due, alarm)
		}
	}
	return due, nil
}

// claim runs claimScript for one member. ok is false when another
// dispatcher won the member, it was moved past nowMs, or its payload is
// unreadable.
func (s *AlarmService) claim(ctx context.Context, key, nowMs string) (domain.Alarm, bool, error) {
	keys := []string{DueKey, AlarmKey(domain.Handle{Key: key})}
	payload, err := claimScript.Run(ctx, s.client, keys, key, nowMs).Text()
	if errors.Is(err, redis.Nil) {
		return domain.Alarm{}, false, nil
	}
	if err != nil {
		return domain.Alarm{}, false, fmt.Errorf("failed to claim alarm %s: %w", key, err)
	}

	alarm, err := domain.DecodeAlarm([]byte(payload))
	if err != nil {
		return domain.Alarm{}, false, nil
	}
	return alarm, true, nil
}

// Release puts claimed alarms back. Handles armed again since the claim
// keep their newer registration.
func (s *AlarmService) Release(ctx context.Context, alarms []domain.Alarm) error {
	for _, alarm := range alarms {
		fields, err := alarmFields(alarm)
		if err != nil {
			return err
		}
		keys := []string{DueKey, AlarmKey(alarm.Handle)}
		err = releaseScript.Run(ctx, s.client, keys,
			alarm.Handle.Key, fields[fieldPayload], fields[fieldTier], fields[fieldTriggerMs],
		).Err()
		if err != nil {
			return fmt.Errorf("failed to release alarm %s: %w", alarm.Handle.Key, err)
		}
	}
	return nil
}

// ListArmed returns every armed alarm ordered by trigger time.
func (s *AlarmService) ListArmed(ctx context.Context) ([]domain.Alarm, error) {
	keys, err := s.client.ZRange(ctx, DueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}

	alarms := make([]domain.Alarm, 0, len(keys))
	for _, key := range keys {
		payload, err := s.client.HGet(ctx, AlarmKey(domain.Handle{Key: key}), fieldPayload).Bytes()
		if err != nil {
			continue
		}
		if alarm, err := domain.DecodeAlarm(payload); err == nil {
			alarms = append(alarms, alarm)
		}
	}
	return alarms, nil
}

func alarmFields(alarm domain.Alarm) (map[string]any, error) {
	payload, err := alarm.Encode()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		fieldPayload:   string(payload),
		fieldTier:      alarm.Tier.String(),
		fieldTriggerMs: alarm.TriggerAt.UnixMilli(),
	}, nil
}
