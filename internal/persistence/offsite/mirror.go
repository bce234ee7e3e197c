package offsite

import (
	"context"
	"io"
	"log"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	Queued   uint64
	Dropped  uint64
	Uploaded uint64
	Failed   uint64
	// LastTick is the tick of the newest snapshot known to be offsite.
	LastTick uint64
}

type job struct {
	path string
	tick uint64
}

// Mirror uploads snapshot files in the background. Each world's snapshots
// land under <prefix>/<world>/snapshots/, and <prefix>/<world>/LATEST names
// the newest uploaded one. Enqueue never blocks the caller: when the queue
// is full the snapshot is dropped and counted, since a newer one follows.
type Mirror struct {
	client  *Client
	worldID string
	logger  *log.Logger

	jobs    chan job
	wg      sync.WaitGroup
	retries int
	backoff func(attempt int) time.Duration

	queued   atomic.Uint64
	dropped  atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64
	lastTick atomic.Uint64
}

func NewMirror(client *Client, worldID string, queue int, logger *log.Logger) *Mirror {
	if queue <= 0 {
		queue = 8
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := &Mirror{
		client:  client,
		worldID: worldID,
		logger:  logger,
		jobs:    make(chan job, queue),
		retries: 4,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 200 * time.Millisecond
		},
	}
	m.wg.Add(1)
	go m.loop()
	return m
}

func (m *Mirror) Enqueue(localPath string, tick uint64) {
	if m == nil {
		return
	}
	select {
	case m.jobs <- job{path: localPath, tick: tick}:
		m.queued.Add(1)
	default:
		n := m.dropped.Add(1)
		m.logger.Printf("offsite: queue full, dropped %s (dropped_total=%d)", filepath.Base(localPath), n)
	}
}

// Close drains the queue and waits for in-flight uploads.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Queued:   m.queued.Load(),
		Dropped:  m.dropped.Load(),
		Uploaded: m.uploaded.Load(),
		Failed:   m.failed.Load(),
		LastTick: m.lastTick.Load(),
	}
}

func (m *Mirror) loop() {
	defer m.wg.Done()
	for j := range m.jobs {
		name := filepath.Base(j.path)
		key := path.Join(m.worldID, "snapshots", name)
		err := m.retry(func(ctx context.Context) error { return m.client.PutFile(ctx, key, j.path) })
		if err == nil && j.tick >= m.lastTick.Load() {
			err = m.retry(func(ctx context.Context) error {
				return m.client.PutBytes(ctx, path.Join(m.worldID, "LATEST"), []byte(name+"\n"))
			})
			if err == nil {
				m.lastTick.Store(j.tick)
			}
		}
		if err != nil {
			m.failed.Add(1)
			m.logger.Printf("offsite: upload %s: %v", name, err)
			continue
		}
		m.uploaded.Add(1)
		m.logger.Printf("offsite: uploaded %s", m.client.Key(key))
	}
}

func (m *Mirror) retry(fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= m.retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = fn(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < m.retries {
			time.Sleep(m.backoff(attempt))
		}
	}
	return err
}
