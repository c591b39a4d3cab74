package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/mailscan/config"
	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/interfaces"
	cron_config "github.com/customeros/mailscan/internal/cron/config"
	"github.com/customeros/mailscan/internal/enum"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/tracing"
)

// CONSTANTS
const (
	// GroupMailscan serializes jobs that touch the mailbox
	GroupMailscan = "mailscan"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupMailscan: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg      *config.Config
	log      logger.Logger
	cron     *cronv3.Cron
	k8s      kubernetes.Interface
	stopCh   chan struct{}
	stopOnce sync.Once
	jobIDs   map[string]cronv3.EntryID
	pipeline interfaces.EmailPipeline
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, pipeline interfaces.EmailPipeline) *CronManager {
	return &CronManager{
		cfg:      cfg,
		log:      log,
		k8s:      k8s,
		stopCh:   make(chan struct{}),
		jobIDs:   make(map[string]cronv3.EntryID),
		pipeline: pipeline,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	// If k8s client is nil or we're in local development, start in local mode
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	// Create the leader election lock
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailscan-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	// Channel to track leader election errors
	errCh := make(chan error, 1)

	// Start leader election
	go func() {
		// Try leader election
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		// Start leader election
		ctx := context.Background()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
		// Leader election seems to be working, continue normally
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	cm.stopOnce.Do(func() {
		close(cm.stopCh)
	})
}

// registerJobs loads the schedules from the environment and adds the jobs
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if err := cm.addJobs(c, cronConfig); err != nil {
		cm.log.Fatalf("Could not register cron jobs: %v", err)
	}
}

func (cm *CronManager) addJobs(c *cronv3.Cron, cronConfig cron_config.Config) error {
	// Register heartbeat job
	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			return errors.Wrap(err, "heartbeat job")
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	// Scheduled mailbox fetch
	if cronConfig.CronScheduleFetch != "" && cm.pipeline != nil {
		id, err := c.AddFunc(cronConfig.CronScheduleFetch, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMailscan].Lock()
			defer jobLocks.locks[GroupMailscan].Unlock()
			cm.fetchMailbox()
		})
		if err != nil {
			return errors.Wrap(err, "fetch job")
		}
		cm.jobIDs["fetch"] = id
		cm.log.Infof("Registered fetch job with schedule: %s", cronConfig.CronScheduleFetch)
	}

	return nil
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	// Create a new cron with seconds field enabled and panic recovery
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger), // Skip if still running
			cronv3.Recover(cronv3.DefaultLogger),            // Default recovery as backup
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) fetchMailbox() {
	cm.log.Info("Running scheduled mailbox fetch")

	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.fetchMailbox")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	result, err := cm.pipeline.RunBatch(ctx, enum.BatchTriggerCron)
	if errors.Is(err, mailscan_errors.ErrBatchInProgress) {
		cm.log.Info("Skipping scheduled fetch, a batch is already running")
		return
	}
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled fetch failed: %v", err)
		return
	}

	summary := result.Summary
	cm.log.Infof("Scheduled fetch %s completed: succeeded=%d duplicates=%d skipped=%d",
		summary.BatchID, summary.Succeeded, summary.Duplicates, len(summary.Skipped))
}
