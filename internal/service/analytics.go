package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/chatsounds/soundboard-server/internal/config"
	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/repository"
)

const dayLayout = "2006-01-02"

// AnalyticsService aggregates the play log and the per-entity counters.
// All day and hour buckets are UTC.
type AnalyticsService struct {
	sounds repository.SoundRepository
	users  repository.UserRepository
	plays  repository.PlayRepository
	clock  clockwork.Clock
}

func NewAnalyticsService(
	sounds repository.SoundRepository,
	users repository.UserRepository,
	plays repository.PlayRepository,
	clock clockwork.Clock,
) *AnalyticsService {
	return &AnalyticsService{sounds: sounds, users: users, plays: plays, clock: clock}
}

func (s *AnalyticsService) Overview(ctx context.Context) (*model.Overview, error) {
	var o model.Overview
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		o.TotalSounds, err = s.sounds.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		o.TotalUsers, err = s.users.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		o.TotalPlays, err = s.plays.Count(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.Database(err)
	}
	return &o, nil
}

// DailyStats returns exactly days entries, oldest first, ending today.
// Days without plays are reported as zero. days outside
// 1..config.MaxAnalyticsDays is InvalidInput.
func (s *AnalyticsService) DailyStats(ctx context.Context, days int) ([]model.DailyStat, error) {
	return s.daily(ctx, days, nil)
}

func (s *AnalyticsService) daily(ctx context.Context, days int, soundID *string) ([]model.DailyStat, error) {
	if days < 1 || days > config.MaxAnalyticsDays {
		return nil, apperrors.InvalidInput("days", fmt.Sprintf("must be between 1 and %d", config.MaxAnalyticsDays))
	}

	today := truncateDay(s.clock.Now())
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	counts, err := s.plays.CountByDay(ctx, from, to, soundID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	byDay := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDay[c.Day] = c.Count
	}

	stats := make([]model.DailyStat, days)
	for i := range stats {
		date := from.AddDate(0, 0, i).Format(dayLayout)
		stats[i] = model.DailyStat{Date: date, Commands: byDay[date]}
	}
	return stats, nil
}

// HourlyStats returns 24 entries for the current UTC day, hour 0 first.
func (s *AnalyticsService) HourlyStats(ctx context.Context) ([]model.HourlyStat, error) {
	today := truncateDay(s.clock.Now())
	counts, err := s.plays.CountByHour(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, apperrors.Database(err)
	}

	stats := make([]model.HourlyStat, 24)
	for h := range stats {
		stats[h].Hour = h
	}
	for _, c := range counts {
		if c.Hour >= 0 && c.Hour < 24 {
			stats[c.Hour].Commands = c.Count
		}
	}
	return stats, nil
}

func (s *AnalyticsService) PopularSounds(ctx context.Context, limit int) ([]model.PopularSound, error) {
	sounds, err := s.sounds.MostPlayed(ctx, clampLimit(limit, config.DefaultRankingLimit))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return sounds, nil
}

func (s *AnalyticsService) ActiveUsers(ctx context.Context, limit int) ([]model.ActiveUser, error) {
	users, err := s.users.MostActive(ctx, clampLimit(limit, config.DefaultRankingLimit))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return users, nil
}

// RecentActivity lists plays newest first. Plays whose sound was deleted
// keep their row with an "unknown" name.
func (s *AnalyticsService) RecentActivity(ctx context.Context, limit int) ([]model.RecentPlay, error) {
	plays, err := s.plays.Recent(ctx, clampLimit(limit, config.DefaultActivityLimit))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return plays, nil
}

func (s *AnalyticsService) FullAnalytics(ctx context.Context) (*model.FullAnalytics, error) {
	var out model.FullAnalytics
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o, err := s.Overview(gctx)
		if err != nil {
			return err
		}
		out.Overview = *o
		return nil
	})
	g.Go(func() (err error) {
		out.DailyStats, err = s.DailyStats(gctx, config.DefaultAnalyticsDays)
		return err
	})
	g.Go(func() (err error) {
		out.HourlyStats, err = s.HourlyStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.PopularSounds, err = s.PopularSounds(gctx, config.DefaultRankingLimit)
		return err
	})
	g.Go(func() (err error) {
		out.ActiveUsers, err = s.ActiveUsers(gctx, config.DefaultRankingLimit)
		return err
	})
	g.Go(func() (err error) {
		out.RecentActivity, err = s.RecentActivity(gctx, config.DefaultActivityLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AnalyticsService) SoundAnalytics(ctx context.Context, soundID string, days int) (*model.SoundAnalytics, error) {
	sound, err := s.sounds.FindByID(ctx, soundID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if sound == nil {
		return nil, apperrors.NotFound("Sound")
	}

	out := model.SoundAnalytics{SoundID: sound.ID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.plays.CountForSound(gctx, sound.ID)
		if err != nil {
			return apperrors.Database(err)
		}
		out.TotalPlays = n
		return nil
	})
	g.Go(func() error {
		n, err := s.plays.UniqueUsersForSound(gctx, sound.ID)
		if err != nil {
			return apperrors.Database(err)
		}
		out.UniqueUsers = n
		return nil
	})
	g.Go(func() (err error) {
		out.DailyPlays, err = s.daily(gctx, days, &sound.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reconcile reports sounds whose play_count no longer matches the play log.
// It does not repair them.
func (s *AnalyticsService) Reconcile(ctx context.Context) ([]model.PlayCountDrift, error) {
	drift, err := s.sounds.PlayCountDrift(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if len(drift) > 0 {
		log.Warn().Int("sounds", len(drift)).Msg("play counters drifted from play log")
	}
	return drift, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 100 {
		return 100
	}
	return limit
}
