package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/repository"
)

// Trend window bounds, in days.
const (
	DefaultStatsDays = 30
	MaxStatsDays     = 365
)

// StatsService computes dashboard rollups. Nothing is cached.
type StatsService struct {
	stats   StatsStore
	clients ClientStore
	now     func() time.Time
}

// NewStatsService creates a new StatsService.
func NewStatsService(stats StatsStore, clients ClientStore) *StatsService {
	return &StatsService{stats: stats, clients: clients, now: time.Now}
}

// statsWindow holds the time boundaries of one stats call, all UTC.
type statsWindow struct {
	trendStart     time.Time
	monthStart     time.Time
	lastMonthStart time.Time
	days           int
}

func (s *StatsService) window(days int) (statsWindow, error) {
	if days == 0 {
		days = DefaultStatsDays
	}
	if days < 1 || days > MaxStatsDays {
		return statsWindow{}, ErrInvalidDays
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	return statsWindow{
		trendStart:     today.AddDate(0, 0, -(days - 1)),
		monthStart:     monthStart,
		lastMonthStart: monthStart.AddDate(0, -1, 0),
		days:           days,
	}, nil
}

// Global returns the rollup across every client. days sets the trend
// length; zero means DefaultStatsDays.
func (s *StatsService) Global(ctx context.Context, days int) (*model.GlobalStats, error) {
	w, err := s.window(days)
	if err != nil {
		return nil, err
	}

	stats := &model.GlobalStats{}
	var buckets []model.DailyCount

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalSubmissions, err = s.stats.CountSubmissions(gctx, "", time.Time{}, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		stats.SubmissionsThisMonth, err = s.stats.CountSubmissions(gctx, "", w.monthStart, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		stats.LastMonthSubmissions, err = s.stats.CountSubmissions(gctx, "", w.lastMonthStart, w.monthStart)
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveClients, err = s.stats.CountClients(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveForms, err = s.stats.CountForms(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		buckets, err = s.stats.DailySubmissionCounts(gctx, "", w.trendStart)
		return err
	})
	g.Go(func() (err error) {
		stats.ClientTotals, err = s.stats.SubmissionTotalsByClient(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("global stats: %w", err)
	}

	stats.DailyBuckets = FillDailyTrend(w.trendStart, w.days, buckets)
	stats.DailyTrend = trendCounts(stats.DailyBuckets)
	if stats.ClientTotals == nil {
		stats.ClientTotals = []model.ClientTotal{}
	}
	return stats, nil
}

// Client returns the rollup of one client.
func (s *StatsService) Client(ctx context.Context, clientID string, days int) (*model.ClientStats, error) {
	w, err := s.window(days)
	if err != nil {
		return nil, err
	}

	if _, err := s.clients.GetClientByID(ctx, clientID); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}

	stats := &model.ClientStats{ClientID: clientID}
	var buckets []model.DailyCount

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		totals, err := s.stats.SubmissionTotalsByClient(gctx, []string{clientID})
		if err != nil {
			return err
		}
		for _, t := range totals {
			if t.ClientID == clientID {
				stats.TotalSubmissions = t.Total
			}
		}
		return nil
	})
	g.Go(func() (err error) {
		stats.SubmissionsThisMonth, err = s.stats.CountSubmissions(gctx, clientID, w.monthStart, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveForms, err = s.stats.CountForms(gctx, clientID)
		return err
	})
	g.Go(func() (err error) {
		buckets, err = s.stats.DailySubmissionCounts(gctx, clientID, w.trendStart)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("client stats: %w", err)
	}

	stats.DailyBuckets = FillDailyTrend(w.trendStart, w.days, buckets)
	stats.DailyTrend = trendCounts(stats.DailyBuckets)
	return stats, nil
}

// FillDailyTrend expands sparse day buckets into exactly days entries
// starting at start, with zero for days that have no rows. Buckets
// outside the window are dropped.
func FillDailyTrend(start time.Time, days int, buckets []model.DailyCount) []model.DailyCount {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	byDay := make(map[time.Time]int64, len(buckets))
	for _, b := range buckets {
		d := b.Day.UTC()
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		byDay[day] += b.Count
	}

	out := make([]model.DailyCount, days)
	for i := range out {
		day := start.AddDate(0, 0, i)
		out[i] = model.DailyCount{Day: day, Count: byDay[day]}
	}
	return out
}

func trendCounts(buckets []model.DailyCount) []int64 {
	counts := make([]int64, len(buckets))
	for i, b := range buckets {
		counts[i] = b.Count
	}
	return counts
}
