package infra

import (
	"context"
	"strings"
	"time"

	"orders-gateway/middleware/orders/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore acumula contadores de decisões de admissão em hashes Redis.
//
// É best-effort: não participa da decisão e não substitui os contadores
// rate:{tenant}:{janela}. Para uma decisão "denied" do tenant-B (pro):
//
//	{prefix}:total                 denied
//	{prefix}:tier                  pro:denied
//	{prefix}:route                 POST /v1/orders:denied
//	{prefix}:minute:200601021504   denied   (expira, RATE_STATS_BUCKET=minute)
//	{prefix}:tenant:tenant-B       denied   (expira, RATE_STATS_TRACK_KEYS)
type RedisStatsStore struct {
	rdb       redis.Cmdable
	prefix    string
	seriesTTL time.Duration
	perMinute bool
	perTenant bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithStatsTTL vale só para as séries por minuto e por tenant.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.seriesTTL = d }
}

// WithStatsBucket aceita "minute" ou "none".
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.perMinute = strings.EqualFold(strings.TrimSpace(bucket), "minute")
	}
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.perTenant = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:       rdb,
		prefix:    "orders:stats",
		seriesTTL: 24 * time.Hour,
		perMinute: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// statsIncr é um HINCRBY; expiring marca as séries que recebem seriesTTL.
type statsIncr struct {
	key, field string
	expiring   bool
}

func (s *RedisStatsStore) incrementsFor(ev domain.StatsEvent) []statsIncr {
	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}
	incrs := []statsIncr{
		{key: s.prefix + ":total", field: outcome},
		{key: s.prefix + ":tier", field: ev.Tier.String() + ":" + outcome},
	}

	if s.perMinute {
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		minute := at.UTC().Format("200601021504")
		incrs = append(incrs, statsIncr{key: s.prefix + ":minute:" + minute, field: outcome, expiring: true})
	}
	if route := strings.TrimSpace(ev.Method + " " + ev.Path); route != "" {
		incrs = append(incrs, statsIncr{key: s.prefix + ":route", field: route + ":" + outcome})
	}
	if tenant := strings.TrimSpace(string(ev.Key)); s.perTenant && tenant != "" {
		incrs = append(incrs, statsIncr{key: s.prefix + ":tenant:" + tenant, field: outcome, expiring: true})
	}
	return incrs
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	incrs := s.incrementsFor(ev)

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, in := range incrs {
			pipe.HIncrBy(ctx, in.key, in.field, 1)
			if in.expiring && s.seriesTTL > 0 {
				pipe.Expire(ctx, in.key, s.seriesTTL)
			}
		}
		return nil
	})
	return err
}
