package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/blu_rebalancer/data/repository"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/redis/go-redis/v9"
)

type RedisSession struct {
	redis      *redis.Client
	expiration time.Duration
}

func NewRedisSession(redisClient *redis.Client, expiration time.Duration) *RedisSession {
	return &RedisSession{redis: redisClient, expiration: expiration}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

// GetSession returns repository.ErrNotFound when the chat has no live session.
func (r *RedisSession) GetSession(ctx context.Context, chatID int64) (model.Session, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res, err := r.redis.Get(ctx, sessionKey(chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, repository.ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, err
	}

	session := model.Session{}
	if err = json.Unmarshal([]byte(res), &session); err != nil {
		slog.Error("can't unmarshall session", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, err
	}

	return session, nil
}

func (r *RedisSession) SetSession(ctx context.Context, chatID int64, session model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	sessionJson, err := json.Marshal(session)
	if err != nil {
		return err
	}

	if err = r.redis.Set(ctx, sessionKey(chatID), sessionJson, r.expiration).Err(); err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (r *RedisSession) ResetSession(ctx context.Context, chatID int64) error {
	return r.redis.Del(ctx, sessionKey(chatID)).Err()
}
