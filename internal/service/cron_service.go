package service

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/stockrhythm/gatewayapi/internal/config"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

// StatePruner drops expired OAuth states
type StatePruner interface {
	Prune() int
}

// CronService is the service for the cron jobs
type CronService struct {
	cfg               *config.Config
	redisClient       *redis.Client
	c                 *cron.Cron
	instrumentService *InstrumentService
	indexService      *IndexService
	statePruner       StatePruner
}

// NewCronService creates a new CronService. statePruner may be nil.
func NewCronService(cfg *config.Config, redisClient *redis.Client, instrumentService *InstrumentService, indexService *IndexService, statePruner StatePruner) *CronService {
	return &CronService{
		cfg:               cfg,
		redisClient:       redisClient,
		c:                 cron.New(),
		instrumentService: instrumentService,
		indexService:      indexService,
		statePruner:       statePruner,
	}
}

// Start starts the cron service
func (cs *CronService) Start() {
	zaplogger.Info("Initializing CronService")

	// ------------------------------------------------------------
	// Add your SCHEDULED jobs here
	// ------------------------------------------------------------
	cs.addScheduledJob("Index Constituents REFRESH Job", cs.indexRefreshJob, "0 8 * * 1-5") // Once at 08:00am, Mon-Fri
	cs.addScheduledJob("OAuth State SWEEP Job", cs.stateSweepJob, "*/10 * * * *")           // Every 10 minutes

	// ------------------------------------------------------------
	// Add your STARTUP jobs here
	// ------------------------------------------------------------
	cs.addStartupJob("Instrument Master LOAD Job", cs.instrumentLoadJob, 1*time.Second)
	cs.addStartupJob("Index Constituents REFRESH Job", cs.indexRefreshJob, 5*time.Second)

	cs.c.Start()
}

// addStartupJob adds a startup job to the cron service
func (cs *CronService) addStartupJob(name string, job func(), delay time.Duration) {
	go func() {
		time.Sleep(delay)
		zaplogger.Info("STARTED STARTUP job", zaplogger.Fields{
			"job": name,
		})
		job()
		zaplogger.Info("COMPLETED STARTUP job", zaplogger.Fields{
			"job": name,
		})
	}()
}

// addScheduledJob adds a scheduled job to the cron service
func (cs *CronService) addScheduledJob(name string, job func(), schedule string) {
	_, err := cs.c.AddFunc(schedule, func() {
		zaplogger.Info("STARTED SCHEDULED job", zaplogger.Fields{
			"job": name,
		})
		job()
		zaplogger.Info("COMPLETED SCHEDULED job", zaplogger.Fields{
			"job": name,
		})
	})
	if err != nil {
		zaplogger.Error("FAILED to schedule job", zaplogger.Fields{
			"job":   name,
			"error": err.Error(),
		})
	}
}

// instrumentLoadJob loads the instrument master CSV into memory
func (cs *CronService) instrumentLoadJob() {
	cs.instrumentService.Load()
}

// stateSweepJob drops OAuth states that outlived their TTL
func (cs *CronService) stateSweepJob() {
	if cs.statePruner == nil {
		return
	}
	if removed := cs.statePruner.Prune(); removed > 0 {
		zaplogger.Info("Pruned expired OAuth states", zaplogger.Fields{
			"removed": removed,
		})
	}
}

// indexRefreshJob warms the index constituents cache for all known indices
func (cs *CronService) indexRefreshJob() {
	if cs.redisClient == nil {
		zaplogger.Info("Redis disabled, skipping index cache warmup")
		return
	}
	for _, name := range cs.indexService.IndexNames() {
		if _, err := cs.indexService.Constituents(name); err != nil {
			zaplogger.Warn("Index refresh failed", zaplogger.Fields{
				"index": name,
				"error": err.Error(),
			})
		}
	}
}
