package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"seedsift.ai/internal/config"
	"seedsift.ai/internal/oracle"
	"seedsift.ai/internal/persistence/indexdb"
	persistlog "seedsift.ai/internal/persistence/log"
	"seedsift.ai/internal/protocol"
	"seedsift.ai/internal/searcher"
	"seedsift.ai/internal/transport/observer"
)

// session owns everything one search writes to: the hit and request
// logs, the sqlite index and the observer stream. onWorld is only called
// serially by the searcher, so the counters need no lock.
type session struct {
	id     string
	cfg    config.Config
	logger *log.Logger

	idx  *indexdb.SQLiteIndex
	hits *persistlog.HitLogger
	reqs *persistlog.RequestLogger
	obs  *observer.Server

	searched, matched, skipped uint64
}

func openSession(id string, cfg config.Config, rawQuery string, logger *log.Logger) (*session, error) {
	dir := filepath.Join(cfg.DataDir, "searches", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &session{id: id, cfg: cfg, logger: logger, hits: persistlog.NewHitLogger(dir)}
	if cfg.RecordRequests {
		s.reqs = persistlog.NewRequestLogger(dir)
	}
	if cfg.DisableDB {
		return s, nil
	}

	idx, err := indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "searches.sqlite"))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.idx = idx
	cfgJSON, _ := json.Marshal(cfg)
	if err := idx.StartSearch(context.Background(), indexdb.SearchRow{
		SearchID:   id,
		StartedAt:  time.Now(),
		WorldType:  cfg.WorldType,
		Query:      rawQuery,
		ConfigJSON: string(cfgJSON),
	}); err != nil {
		s.Close()
		return nil, fmt.Errorf("record search: %w", err)
	}
	return s, nil
}

// requestSink is nil unless requests are being logged.
func (s *session) requestSink() oracle.RequestSink {
	if s.reqs == nil {
		return nil
	}
	return s.reqs
}

func (s *session) onWorld(o searcher.WorldOutcome) {
	s.searched++
	row := indexdb.WorldRow{
		SearchID:  o.SearchID,
		Seed:      o.Seed,
		WorldType: o.WorldType,
		Status:    string(o.Status),
		Regions:   o.Stats.Regions,
		GenErrors: o.Stats.GenerationErrors,
		EvalMicro: o.Elapsed.Microseconds(),
		Goals:     o.Stats.Goals,
	}
	switch o.Status {
	case searcher.StatusSkipped:
		s.skipped++
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
	case searcher.StatusMatched:
		s.matched++
		hit := protocol.NewHit(o.SearchID, o.Result)
		for _, it := range hit.Items {
			row.Items = append(row.Items, indexdb.ItemRow{
				X: it.X, Z: it.Z, Biome: it.Biome, Structures: it.Structures, Goal: it.Goal,
			})
		}
		if err := s.hits.WriteHit(hit); err != nil {
			s.logger.Printf("hit log: %v", err)
		}
		if s.obs != nil {
			s.obs.PublishHit(hit)
		}
		s.logger.Printf("HIT seed=%d goals=%v items=%d regions=%d in %s",
			o.Seed, hit.Goals, len(hit.Items), o.Stats.Regions, o.Elapsed.Round(time.Microsecond))
	}
	s.idx.RecordWorld(row)

	if every := uint64(s.cfg.ProgressEvery); every > 0 && s.searched%every == 0 {
		s.progress(false)
	}
}

func (s *session) progress(done bool) {
	msg := protocol.ProgressMsg{
		Type:            protocol.TypeProgress,
		ProtocolVersion: protocol.Version,
		SearchID:        s.id,
		Searched:        s.searched,
		Matched:         s.matched,
		Skipped:         s.skipped,
		Done:            done,
	}
	if s.obs != nil {
		s.obs.PublishProgress(msg)
	}
	s.logger.Printf("progress: searched=%d matched=%d skipped=%d", s.searched, s.matched, s.skipped)
}

func (s *session) finish(sum searcher.Summary) {
	s.progress(true)
	if err := s.idx.FinishSearch(context.Background(), indexdb.SearchRow{
		SearchID:   s.id,
		FinishedAt: time.Now(),
		Searched:   sum.Searched,
		Matched:    sum.Matched,
		Skipped:    sum.Skipped,
	}); err != nil {
		s.logger.Printf("index: finish search: %v", err)
	}
	s.logger.Printf("search %s: %d hits logged under %s", s.id, s.hits.Hits(), filepath.Join(s.cfg.DataDir, "searches", s.id))
	if st := s.idx.Stats(); st.DropWorldTotal > 0 {
		s.logger.Printf("index: %d world rows dropped under load", st.DropWorldTotal)
	}
	if st := s.idx.Stats(); st.WriteErrorTotal > 0 {
		s.logger.Printf("index: %d world rows failed to write", st.WriteErrorTotal)
	}
}

func (s *session) Close() {
	if s.hits != nil {
		_ = s.hits.Close()
	}
	if s.reqs != nil {
		_ = s.reqs.Close()
	}
	if s.idx != nil {
		_ = s.idx.Close()
	}
}
