package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"learnhub_go/config"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusCritical = "critical"

	checkUp       = "up"
	checkDown     = "down"
	checkDisabled = "disabled"

	defaultServiceName = "Learnhub API"
	defaultVersion     = "1.0.0"
	defaultProbeTime   = 1500 * time.Millisecond
)

var errProbeDisabled = errors.New("disabled")

// ClientCounter reports how many realtime clients are connected.
type ClientCounter interface {
	GetClientCount() int
}

// ProbeFunc returns nil when the dependency answers. errProbeDisabled marks
// an optional dependency that is not configured.
type ProbeFunc func(ctx context.Context) error

type probe struct {
	name string
	// status the whole report drops to when this probe fails
	impact string
	run    ProbeFunc
}

// HealthService runs dependency probes for /api/health.
type HealthService struct {
	db      *gorm.DB
	cfg     *config.Config
	clients ClientCounter

	mu      sync.RWMutex
	probes  []probe
	version string
	started time.Time
	timeout time.Duration
}

type HealthReport struct {
	Status      string        `json:"status"`
	Service     string        `json:"service"`
	Version     string        `json:"version"`
	Environment string        `json:"environment"`
	CheckedAt   time.Time     `json:"checked_at"`
	Uptime      Uptime        `json:"uptime"`
	Checks      []CheckResult `json:"checks"`
	Pool        *PoolStats    `json:"db_pool,omitempty"`
	Realtime    Realtime      `json:"realtime"`
	Runtime     RuntimeInfo   `json:"runtime"`
	Features    FeatureFlags  `json:"features"`
}

type Uptime struct {
	Seconds float64 `json:"seconds"`
	Human   string  `json:"human"`
}

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Impact    string `json:"impact"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// PoolStats mirrors sql.DBStats.
type PoolStats struct {
	Open           int   `json:"open"`
	InUse          int   `json:"in_use"`
	Idle           int   `json:"idle"`
	MaxOpen        int   `json:"max_open"`
	WaitCount      int64 `json:"wait_count"`
	WaitDurationMs int64 `json:"wait_duration_ms"`
}

type Realtime struct {
	WebSocketClients int `json:"websocket_clients"`
}

type RuntimeInfo struct {
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	Goroutines int    `json:"goroutines"`
	HeapBytes  uint64 `json:"heap_bytes"`
	SysBytes   uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

type FeatureFlags struct {
	RedisNotifications bool `json:"redis_notifications"`
	ContentUploads     bool `json:"content_uploads"`
	LineMessaging      bool `json:"line_messaging"`
	SkipMigrate        bool `json:"skip_migrate"`
}

// NewHealthService registers the database probe (critical) and the Redis
// probe (degraded: every Redis-backed feature has a local fallback).
func NewHealthService(db *gorm.DB, rdb *redis.Client, cfg *config.Config, clients ClientCounter) *HealthService {
	s := &HealthService{
		db:      db,
		cfg:     cfg,
		clients: clients,
		version: defaultVersion,
		started: time.Now(),
		timeout: defaultProbeTime,
	}

	dbName := "database"
	if cfg != nil && cfg.DBDriver != "" {
		dbName = cfg.DBDriver
	}
	s.AddProbe(dbName, StatusCritical, s.pingDatabase)
	s.AddProbe("redis", StatusDegraded, redisProbe(rdb, cfg != nil && cfg.UseRedisNotifications))
	return s
}

// AddProbe registers an extra dependency, e.g. the content bucket.
func (s *HealthService) AddProbe(name, impact string, fn ProbeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = append(s.probes, probe{name: name, impact: impact, run: fn})
}

// SetStartTime overrides the start time used for uptime calculations.
func (s *HealthService) SetStartTime(t time.Time) {
	if !t.IsZero() {
		s.started = t
	}
}

func (s *HealthService) SetVersion(v string) {
	if strings.TrimSpace(v) != "" {
		s.version = v
	}
}

// GetHealthReport runs every probe concurrently under one timeout.
func (s *HealthService) GetHealthReport(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.RLock()
	probes := append([]probe(nil), s.probes...)
	s.mu.RUnlock()

	results := make([]CheckResult, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = runProbe(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	report := HealthReport{
		Status:      StatusOK,
		Service:     defaultServiceName,
		Version:     s.version,
		Environment: "unknown",
		CheckedAt:   time.Now().UTC(),
		Checks:      results,
		Pool:        s.poolStats(),
		Runtime:     runtimeInfo(),
	}
	for _, r := range results {
		if r.Status == checkDown {
			report.Status = worse(report.Status, r.Impact)
		}
	}

	uptime := time.Since(s.started)
	if uptime < 0 {
		uptime = 0
	}
	report.Uptime = Uptime{Seconds: uptime.Seconds(), Human: humanizeDuration(uptime)}

	if s.clients != nil {
		report.Realtime.WebSocketClients = s.clients.GetClientCount()
	}
	if s.cfg != nil {
		if env := strings.TrimSpace(s.cfg.AppEnv); env != "" {
			report.Environment = env
		}
		report.Features = FeatureFlags{
			RedisNotifications: s.cfg.UseRedisNotifications,
			ContentUploads:     s.cfg.S3BucketName != "",
			LineMessaging:      s.cfg.LineChannelSecret != "" && s.cfg.LineChannelAccessToken != "",
			SkipMigrate:        s.cfg.SkipMigrate,
		}
	}
	return report
}

// HTTPStatusForOverall is 503 only when a critical dependency is down.
func (s *HealthService) HTTPStatusForOverall(status string) int {
	if status == StatusCritical {
		return 503
	}
	return 200
}

func runProbe(ctx context.Context, p probe) CheckResult {
	res := CheckResult{Name: p.name, Impact: p.impact, Status: checkUp}
	start := time.Now()
	err := p.run(ctx)
	res.LatencyMs = time.Since(start).Milliseconds()
	switch {
	case errors.Is(err, errProbeDisabled):
		res.Status = checkDisabled
	case err != nil:
		res.Status = checkDown
		res.Error = err.Error()
	}
	return res
}

func (s *HealthService) pingDatabase(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database connection not initialised")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// redisProbe reports a missing client as down only when the notification
// queue depends on it.
func redisProbe(rdb *redis.Client, required bool) ProbeFunc {
	return func(ctx context.Context) error {
		if rdb == nil {
			if required {
				return errors.New("redis client not initialised")
			}
			return errProbeDisabled
		}
		return rdb.Ping(ctx).Err()
	}
}

// OptionalProbe wraps fn so a nil fn shows up as disabled.
func OptionalProbe(fn ProbeFunc) ProbeFunc {
	if fn == nil {
		return func(context.Context) error { return errProbeDisabled }
	}
	return fn
}

func (s *HealthService) poolStats() *PoolStats {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil
	}
	st := sqlDB.Stats()
	return &PoolStats{
		Open:           st.OpenConnections,
		InUse:          st.InUse,
		Idle:           st.Idle,
		MaxOpen:        st.MaxOpenConnections,
		WaitCount:      st.WaitCount,
		WaitDurationMs: st.WaitDuration.Milliseconds(),
	}
}

func runtimeInfo() RuntimeInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeInfo{
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		Goroutines: runtime.NumGoroutine(),
		HeapBytes:  mem.HeapAlloc,
		SysBytes:   mem.Sys,
		NumGC:      mem.NumGC,
	}
}

var statusRank = map[string]int{StatusOK: 0, StatusDegraded: 1, StatusCritical: 2}

// worse returns the more severe of two report statuses.
func worse(a, b string) string {
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}

func humanizeDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	units := []struct {
		size   time.Duration
		suffix string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	}
	var parts []string
	for _, u := range units {
		if n := d / u.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
			d -= n * u.size
		}
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}
