package auth

import (
	"context"
	"strconv"

	pkgerrors "classqa/pkg/errors"
	"classqa/pkg/utils/logger"

	"go.uber.org/zap"
)

const loginFailIPPrefix = "classqa:login:fail:ip:"

func (s *AuthService) checkLoginLimit(ctx context.Context, ip string) error {
	if s.loginFailCache == nil || s.config.LoginFailLimit <= 0 || ip == "" {
		return nil
	}
	if s.getFailCount(ctx, loginFailIPPrefix+ip) >= s.config.LoginFailLimit {
		return pkgerrors.New(pkgerrors.TooManyRequests)
	}
	return nil
}

func (s *AuthService) recordLoginFailure(ctx context.Context, ip string) {
	if s.loginFailCache == nil || ip == "" {
		return
	}
	key := loginFailIPPrefix + ip
	count, err := s.loginFailCache.Incr(ctx, key)
	if err != nil {
		logger.Warn(ctx, "increment login fail counter failed", zap.String("key", key), zap.Error(err))
		return
	}
	if count == 1 {
		if err := s.loginFailCache.Expire(ctx, key, s.config.LoginFailTTL); err != nil {
			logger.Warn(ctx, "set login fail counter ttl failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *AuthService) clearLoginFailure(ctx context.Context, ip string) {
	if s.loginFailCache == nil || ip == "" {
		return
	}
	_ = s.loginFailCache.Del(ctx, loginFailIPPrefix+ip)
}

func (s *AuthService) getFailCount(ctx context.Context, key string) int {
	value, err := s.loginFailCache.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "get login fail counter failed", zap.String("key", key), zap.Error(err))
		return 0
	}
	if value == "" {
		return 0
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		logger.Warn(ctx, "parse login fail counter failed", zap.String("key", key), zap.Error(err))
		return 0
	}
	return count
}
