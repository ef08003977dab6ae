package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"catalogsync/internal/dto"
	"catalogsync/internal/erp"
	"catalogsync/internal/extract"
	"catalogsync/internal/infra"
	"catalogsync/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const lastRunKey = "catalogsync:sync:last"

// ListFetcher walks the whole upstream list. *erp.Pager implements it.
type ListFetcher interface {
	FetchAll(ctx context.Context) (*erp.ListResult, error)
}

// DetailFetcher loads the full record of one item. *erp.Client implements it.
type DetailFetcher interface {
	Detail(ctx context.Context, id string) (extract.Record, error)
}

// SyncService pulls the upstream catalog into the local product table.
type SyncService interface {
	// SyncAll runs one full synchronization. A call made while another run
	// is in flight returns Started=false and does nothing.
	SyncAll(ctx context.Context) (*dto.SyncResult, error)
	LastRun(ctx context.Context) (*dto.SyncResult, error)
	Running() bool
	BreakerState() infra.CBSnapshot
}

type SyncOptions struct {
	ItemDelay        time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

type syncService struct {
	list    ListFetcher
	details DetailFetcher
	repo    repository.ProductRepository
	rdb     *redis.Client // nil disables cache invalidation and run mirroring
	breaker *infra.CircuitBreaker
	delay   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error

	running atomic.Bool
	mu      sync.RWMutex
	last    *dto.SyncResult
}

func NewSyncService(list ListFetcher, details DetailFetcher, repo repository.ProductRepository, rdb *redis.Client, opts SyncOptions) SyncService {
	return &syncService{
		list:    list,
		details: details,
		repo:    repo,
		rdb:     rdb,
		breaker: infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
			FailureThreshold: opts.BreakerThreshold,
			OpenTimeout:      opts.BreakerTimeout,
			IsFailure:        isUpstreamFailure,
		}),
		delay: opts.ItemDelay,
		sleep: sleepCtx,
	}
}

// isUpstreamFailure counts transport failures and 5xx answers against the
// breaker. A missing or malformed single record says nothing about the ERP.
func isUpstreamFailure(err error) bool {
	var fe *erp.FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Status == 0 || fe.Status >= 500
}

func (s *syncService) Running() bool { return s.running.Load() }

func (s *syncService) BreakerState() infra.CBSnapshot { return s.breaker.Snapshot() }

func (s *syncService) SyncAll(ctx context.Context) (*dto.SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		log.Info().Msg("sync: run already in progress, trigger ignored")
		return &dto.SyncResult{Started: false, StartedAt: time.Now().UTC()}, nil
	}
	defer s.running.Store(false)

	res := &dto.SyncResult{Started: true, StartedAt: time.Now().UTC()}
	err := s.run(ctx, res)
	finished := time.Now().UTC()
	res.FinishedAt = &finished
	if err != nil {
		res.Error = err.Error()
		log.Error().Err(err).Int("fetched", res.Fetched).Msg("sync: run aborted")
	}
	s.remember(ctx, res)

	log.Info().
		Int("fetched", res.Fetched).
		Int("upserted", res.Upserted).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Int("malformed_pages", res.MalformedPages).
		Dur("took", finished.Sub(res.StartedAt)).
		Msg("sync: run finished")
	return res, err
}

func (s *syncService) run(ctx context.Context, res *dto.SyncResult) error {
	listing, err := s.list.FetchAll(ctx)
	if listing != nil {
		res.MalformedPages = listing.MalformedPages
		res.Skipped += listing.InvalidItems
	}
	if err != nil {
		return fmt.Errorf("sync: list: %w", err)
	}
	res.Fetched = len(listing.Items)

	for i, brief := range listing.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, ok := identifier(brief)
		if !ok {
			res.Skipped++
			log.Warn().Int("index", i).Msg("sync: item has no usable identifier, skipped")
			continue
		}

		var detail extract.Record
		err := s.breaker.Execute(func() error {
			if i > 0 && s.delay > 0 {
				if err := s.sleep(ctx, s.delay); err != nil {
					return err
				}
			}
			var derr error
			detail, derr = s.details.Detail(ctx, id)
			return derr
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.Failed++
			if errors.Is(err, infra.ErrCircuitOpen) {
				log.Debug().Str("id", id).Msg("sync: breaker open, item skipped")
			} else {
				log.Warn().Err(err).Str("id", id).Msg("sync: detail fetch failed")
			}
			continue
		}

		p := buildProduct(id, brief, detail)
		now := time.Now().UTC()
		p.LastSyncedAt = &now
		outcome, err := s.repo.Upsert(ctx, p)
		if err != nil {
			res.Failed++
			log.Error().Err(err).Str("stock_code", p.StockCode).Msg("sync: upsert failed")
			continue
		}
		res.Upserted++
		switch outcome {
		case repository.UpsertCreated:
			res.Created++
		case repository.UpsertUpdated:
			res.Updated++
			s.invalidate(ctx, p.StockCode)
		case repository.UpsertUnchanged:
			res.Unchanged++
		}
	}
	return nil
}

func (s *syncService) invalidate(ctx context.Context, code string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, productCacheKey(code)).Err(); err != nil {
		log.Warn().Err(err).Str("stock_code", code).Msg("sync: cache invalidation failed")
	}
}

func (s *syncService) remember(ctx context.Context, res *dto.SyncResult) {
	s.mu.Lock()
	cp := *res
	s.last = &cp
	s.mu.Unlock()

	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	// the run context may already be cancelled
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.rdb.Set(wctx, lastRunKey, data, 0).Err(); err != nil {
		log.Warn().Err(err).Msg("sync: could not store last run")
	}
}

// LastRun prefers the in-process result and falls back to Redis, which
// survives restarts. Nil means no run has been recorded.
func (s *syncService) LastRun(ctx context.Context) (*dto.SyncResult, error) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last != nil {
		cp := *last
		return &cp, nil
	}
	if s.rdb == nil {
		return nil, nil
	}
	data, err := s.rdb.Get(ctx, lastRunKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sync: read last run: %w", err)
	}
	var res dto.SyncResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("sync: decode last run: %w", err)
	}
	return &res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
