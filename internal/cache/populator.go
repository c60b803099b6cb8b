package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/andresuchdata/mediastore/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	defaultPopulateQueue   = 256
	defaultPopulateWorkers = 4
	populateTimeout        = 5 * time.Second
	versionSlots           = 4096
)

type populateJob struct {
	key     string
	obj     *domain.CachedObject
	version uint64
}

// Populator writes cache entries on a fixed pool of background workers so
// the read path never waits on the cache. Enqueue never blocks: when the
// queue is full the entry is dropped and the next miss retries it.
//
// Every key hashes to a version slot. Invalidate bumps the slot, and a job
// whose version no longer matches is skipped, or evicted again if its write
// raced the bump. Keys sharing a slot only cost each other a cache fill.
type Populator struct {
	cache    ObjectCache
	jobs     chan populateJob
	wg       sync.WaitGroup
	versions [versionSlots]atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewPopulator starts workerCount workers draining a queue of queueSize.
func NewPopulator(cache ObjectCache, queueSize, workerCount int) *Populator {
	if queueSize < 1 {
		queueSize = defaultPopulateQueue
	}
	if workerCount < 1 {
		workerCount = defaultPopulateWorkers
	}

	p := &Populator{
		cache: cache,
		jobs:  make(chan populateJob, queueSize),
	}

	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for job := range p.jobs {
				p.populate(workerID, job)
			}
		}(i)
	}

	return p
}

// Version returns the current version of key. Read it before fetching the
// object from storage and hand it to Enqueue.
func (p *Populator) Version(key string) uint64 {
	return p.slot(key).Load()
}

// Invalidate makes every pending or in-flight populate of key stale. Call it
// once the object is gone from storage and before evicting the entry.
func (p *Populator) Invalidate(key string) {
	p.slot(key).Add(1)
}

func (p *Populator) slot(key string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &p.versions[h.Sum32()%versionSlots]
}

// Enqueue schedules a cache write and reports whether it was accepted.
// version is the value Version returned before obj was read.
func (p *Populator) Enqueue(key string, obj *domain.CachedObject, version uint64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- populateJob{key: key, obj: obj, version: version}:
		return true
	default:
		metrics.CachePopulations.WithLabelValues("dropped").Inc()
		log.Warn().Str("key", key).Msg("cache: populate queue full, dropping entry")
		return false
	}
}

// Close stops accepting work and waits for queued writes to finish.
func (p *Populator) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Populator) populate(workerID int, job populateJob) {
	ctx, cancel := context.WithTimeout(context.Background(), populateTimeout)
	defer cancel()

	if p.Version(job.key) != job.version {
		metrics.CachePopulations.WithLabelValues("stale").Inc()
		return
	}

	if err := p.cache.Populate(ctx, job.key, job.obj, p.cache.TTL()); err != nil {
		metrics.CachePopulations.WithLabelValues("error").Inc()
		log.Warn().Err(err).Int("worker", workerID).Str("key", job.key).Msg("cache: populate failed")
		return
	}

	if p.Version(job.key) != job.version {
		// Invalidated while writing; the invalidating evict may have run first.
		if err := p.cache.Evict(ctx, job.key); err != nil {
			log.Warn().Err(err).Int("worker", workerID).Str("key", job.key).Msg("cache: stale entry evict failed")
		}
		metrics.CachePopulations.WithLabelValues("stale").Inc()
		return
	}
	metrics.CachePopulations.WithLabelValues("ok").Inc()
}
