package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"serotonyl.ru/stream-rewards/internal/common"
)

// Ключи присутствия переживают падение сервиса, но не дольше sessionTTL
const sessionTTL = 12 * time.Hour

func broadcastKey(sessionID string) string { return "live:broadcast:" + sessionID }
func viewersKey(sessionID string) string   { return "live:viewers:" + sessionID }

// RedisTracker хранит присутствие в Redis, чтобы его видели все экземпляры сервиса.
//
//	live:broadcast:<session>  user_id стримера, пока эфир идёт
//	live:viewers:<session>    множество user_id зрителей
type RedisTracker struct {
	rdb *redis.Client
}

// NewRedisTracker подключается к Redis и проверяет соединение.
func NewRedisTracker(ctx context.Context, addr, password string, db int) (*RedisTracker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", addr, err)
	}
	return &RedisTracker{rdb: rdb}, nil
}

// NewRedisTrackerWithClient оборачивает готовый клиент.
func NewRedisTrackerWithClient(rdb *redis.Client) *RedisTracker {
	return &RedisTracker{rdb: rdb}
}

// Close закрывает соединение с Redis.
func (r *RedisTracker) Close() error {
	return r.rdb.Close()
}

func (r *RedisTracker) IsBroadcastLive(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, broadcastKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки эфира %s: %w", sessionID, err)
	}
	return n > 0, nil
}

func (r *RedisTracker) IsViewerPresent(ctx context.Context, sessionID string, userID int64) (bool, error) {
	live, err := r.IsBroadcastLive(ctx, sessionID)
	if err != nil || !live {
		return false, err
	}
	ok, err := r.rdb.SIsMember(ctx, viewersKey(sessionID), strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки зрителя %d: %w", userID, err)
	}
	return ok, nil
}

func (r *RedisTracker) StartBroadcast(ctx context.Context, sessionID string, broadcasterID int64) error {
	if err := r.rdb.Set(ctx, broadcastKey(sessionID), broadcasterID, sessionTTL).Err(); err != nil {
		return fmt.Errorf("ошибка отметки эфира %s: %w", sessionID, err)
	}
	return nil
}

// endBroadcastScript удаляет эфир и зрителей, только если его ведёт ARGV[1].
// Ответ: 1 завершён, 0 эфира нет, -1 эфир чужой.
var endBroadcastScript = redis.NewScript(`
local owner = redis.call("GET", KEYS[1])
if not owner then
	return 0
end
if owner ~= ARGV[1] then
	return -1
end
redis.call("DEL", KEYS[1], KEYS[2])
return 1
`)

func (r *RedisTracker) EndBroadcast(ctx context.Context, sessionID string, broadcasterID int64) error {
	res, err := endBroadcastScript.Run(ctx, r.rdb,
		[]string{broadcastKey(sessionID), viewersKey(sessionID)},
		strconv.FormatInt(broadcasterID, 10),
	).Int()
	if err != nil {
		return fmt.Errorf("ошибка завершения эфира %s: %w", sessionID, err)
	}
	if res < 0 {
		return common.ErrNotBroadcaster
	}
	return nil
}

func (r *RedisTracker) Join(ctx context.Context, sessionID string, userID int64) error {
	live, err := r.IsBroadcastLive(ctx, sessionID)
	if err != nil {
		return err
	}
	if !live {
		return common.ErrBroadcastNotLive
	}

	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, viewersKey(sessionID), strconv.FormatInt(userID, 10))
	pipe.Expire(ctx, viewersKey(sessionID), sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ошибка отметки зрителя %d: %w", userID, err)
	}
	return nil
}

func (r *RedisTracker) Leave(ctx context.Context, sessionID string, userID int64) error {
	if err := r.rdb.SRem(ctx, viewersKey(sessionID), strconv.FormatInt(userID, 10)).Err(); err != nil {
		return fmt.Errorf("ошибка удаления зрителя %d: %w", userID, err)
	}
	return nil
}
