package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seedsift.ai/internal/config"
	"seedsift.ai/internal/filter/query"
	"seedsift.ai/internal/searcher"
	"seedsift.ai/internal/transport/observer"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to search.yaml (optional)")
		queryPath  = flag.String("query", "", "path to the JSON query (required)")
		worldType  = flag.String("world_type", "", "world type: default, large_biomes or flat")
		seed       = flag.Int64("seed", 0, "first seed of a sequential search")
		random     = flag.Bool("random", false, "draw random seeds instead of counting up")
		maxHits    = flag.Int("max_hits", 0, "stop after this many hits (continuous mode, 0 = unlimited)")
		maxSeeds   = flag.Int64("max_seeds", 0, "stop after this many seeds (0 = unlimited)")
		workers    = flag.Int("workers", 0, "parallel world evaluations")
		continuous = flag.Bool("continuous", false, "keep searching after the first hit")
		obsAddr    = flag.String("observer", "", "loopback listen address for the observer stream and /metrics")
		dataDir    = flag.String("data", "", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "do not record the search in the sqlite index")
		recordReq  = flag.Bool("record_requests", false, "log every oracle request")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[searcher] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	// Flags given explicitly override search.yaml.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "world_type":
			cfg.WorldType = *worldType
		case "seed":
			cfg.StartSeed = *seed
		case "random":
			cfg.RandomSeeds = *random
		case "max_hits":
			cfg.MaxHits = *maxHits
		case "max_seeds":
			cfg.MaxSeeds = *maxSeeds
		case "workers":
			cfg.Workers = *workers
		case "continuous":
			cfg.Continuous = *continuous
		case "observer":
			cfg.ObserverAddr = *obsAddr
		case "data":
			cfg.DataDir = *dataDir
		case "disable_db":
			cfg.DisableDB = *disableDB
		case "record_requests":
			cfg.RecordRequests = *recordReq
		}
	})
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	if strings.TrimSpace(*queryPath) == "" {
		logger.Fatalf("-query is required")
	}
	rawQuery, err := os.ReadFile(*queryPath)
	if err != nil {
		logger.Fatalf("read query: %v", err)
	}
	wf, err := query.Parse(rawQuery, cfg.Step())
	if err != nil {
		var pe *query.ParseError
		if errors.As(err, &pe) {
			for _, e := range pe.Errors {
				logger.Printf("query: %s", e)
			}
			os.Exit(2)
		}
		logger.Fatalf("query: %v", err)
	}
	logger.Printf("match: %s", wf)

	searchID := uuid.NewString()
	sess, err := openSession(searchID, cfg, string(rawQuery), logger)
	if err != nil {
		logger.Fatalf("open search %s: %v", searchID, err)
	}
	defer sess.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s, err := searcher.New(searcher.Config{
		SearchID:           searchID,
		WorldType:          cfg.WorldType,
		Workers:            cfg.Workers,
		MaxHits:            cfg.MaxHits,
		Continuous:         cfg.Continuous,
		StartSeed:          cfg.StartSeed,
		RandomSeeds:        cfg.RandomSeeds,
		RNGSeed:            cfg.RNGSeed,
		MaxSeeds:           cfg.MaxSeeds,
		MaxRegionsPerWorld: cfg.MaxRegionsPerWorld,
	}, worldFactory(cfg, sess.requestSink(), logger), searcher.NewMetrics(reg), logger)
	if err != nil {
		logger.Fatalf("searcher: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if addrs := uniqueAddrs(cfg.ObserverAddr, cfg.MetricsAddr); len(addrs) > 0 {
		sess.obs = observer.NewServer(observer.Session{
			SearchID:  searchID,
			WorldType: cfg.WorldType,
			Query:     string(rawQuery),
		}, logger)
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(200)
			_, _ = rw.Write([]byte("ok"))
		})
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/v1/observe", sess.obs.Handler())
		for _, addr := range addrs {
			serve(ctx, addr, mux, logger)
		}
	}

	logger.Printf("search %s: world_type=%s step=%s workers=%d continuous=%v max_hits=%d",
		searchID, cfg.WorldType, cfg.Step(), cfg.Workers, cfg.Continuous, cfg.HitLimit())
	sum, runErr := s.Run(ctx, wf, sess.onWorld)
	sess.finish(sum)
	if runErr != nil {
		logger.Printf("search aborted: %v", runErr)
		sess.Close()
		os.Exit(1)
	}
}

func uniqueAddrs(addrs ...string) []string {
	var out []string
	seen := map[string]bool{}
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func serve(ctx context.Context, addr string, h http.Handler, logger *log.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()
	go func() {
		logger.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("ListenAndServe %s: %v", addr, err)
		}
	}()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
