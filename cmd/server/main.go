package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golemcraft.ai/internal/persistence/archive"
	persistlog "golemcraft.ai/internal/persistence/log"
	"golemcraft.ai/internal/persistence/offsite"
	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/tuning"
	"golemcraft.ai/internal/sim/world"
	"golemcraft.ai/internal/transport/observer"
	"golemcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory (blocks.json, items.json, creatures.json, tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit + catalogs + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		snapKeep     = flag.Int("snapshot_keep", 20, "snapshots kept in the data dir (0 = keep all)")
		archiveEvery = flag.Uint64("archive_every_ticks", 72000, "archive pruned snapshots that close a window of this many ticks (0 = never)")

		offsiteEndpoint = flag.String("offsite_endpoint", os.Getenv("GC_OFFSITE_ENDPOINT"), "S3-compatible endpoint for snapshot copies (empty = off)")
		offsiteBucket   = flag.String("offsite_bucket", os.Getenv("GC_OFFSITE_BUCKET"), "bucket for snapshot copies")
		offsiteRegion   = flag.String("offsite_region", "auto", "signing region")
		offsitePrefix   = flag.String("offsite_prefix", "golemcraft", "object key prefix")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load catalogs: %v", err)
		}
		logger.Printf("catalogs not found in %s; using built-in defaults", *configDir)
		cats = catalogs.Default()
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapDir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	// Optional read-model index (does not affect the simulation).
	idx, err := openRuntimeIndex(worldDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*worldID, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	w, err := world.New(world.ConfigFromTuning(*worldID, tune), cats, tune, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		if p, _, err := snapshot.Latest(snapDir); err == nil {
			snapshotToLoad = p
		} else if !errors.Is(err, snapshot.ErrNoSnapshot) {
			logger.Fatalf("find latest snapshot: %v", err)
		}
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	tee := persistlog.Tee{
		Ticks:  []world.TickLogger{tickLog},
		Audits: []world.AuditLogger{auditLog},
	}
	if idx != nil {
		tee.Ticks = append(tee.Ticks, idx)
		tee.Audits = append(tee.Audits, idx)
	}
	w.SetTickLogger(tee)
	w.SetAuditLogger(tee)

	var mirror *offsite.Mirror
	if cfg := (offsite.Config{
		Endpoint:        *offsiteEndpoint,
		Bucket:          *offsiteBucket,
		Region:          *offsiteRegion,
		AccessKeyID:     os.Getenv("GC_OFFSITE_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("GC_OFFSITE_SECRET_ACCESS_KEY"),
		Prefix:          *offsitePrefix,
	}); cfg.Enabled() {
		client, err := offsite.NewClient(cfg)
		if err != nil {
			logger.Fatalf("offsite: %v", err)
		}
		mirror = offsite.NewMirror(client, *worldID, 8, log.New(os.Stdout, "[offsite] ", log.LstdFlags|log.Lmicroseconds))
		defer mirror.Close()
		logger.Printf("offsite snapshot copies enabled bucket=%s", cfg.Bucket)
	}

	ctx, cancel := signalContext()
	defer cancel()

	retention := archive.Policy{Keep: *snapKeep, MilestoneEvery: *archiveEvery}
	writeSnap := func(snap snapshot.SnapshotV1) {
		path := filepath.Join(snapDir, snapshot.FileName(snap.Header.Tick))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			logger.Printf("snapshot write: %v", err)
			return
		}
		if idx != nil {
			idx.RecordSnapshot(path, snap)
		}
		mirror.Enqueue(path, snap.Header.Tick)

		res, err := archive.Retain(worldDir, snapDir, retention)
		if err != nil {
			logger.Printf("snapshot retention: %v", err)
		}
		for _, p := range res.Archived {
			logger.Printf("archived %s", p)
		}
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				writeSnap(snap)
			}
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	wsSrv, err := ws.NewServer(w, logger)
	if err != nil {
		logger.Fatalf("control server: %v", err)
	}
	obsSrv := observer.NewServer(w, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := w.Metrics()
		if m.Tick == 0 {
			m.Tick = w.CurrentTick()
		}
		writeMetrics(rw, *worldID, m)
		if mirror != nil {
			writeOffsiteMetrics(rw, *worldID, mirror.Stats())
		}
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopback(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{WorldID: *worldID, Tick: w.CurrentTick(), Metrics: w.Metrics()})
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !observer.IsLoopback(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		snap, err := w.SnapshotNow(ctx2)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeSnap(snap)
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": snap.Header.Tick})
	})
	mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer", obsSrv.WSHandler())
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s tick_rate=%dHz listening on %s", *worldID, w.TickRateHz(), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Final snapshot once the loop has stopped.
	<-worldDone
	<-writerDone
	if t := w.CurrentTick(); t > 0 {
		writeSnap(w.ExportSnapshot(t - 1))
		logger.Printf("final snapshot at tick %d", t-1)
	}
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
