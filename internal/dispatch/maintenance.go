package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/armorclaw/assetstore/internal/dbstore"
	"github.com/armorclaw/assetstore/internal/logging"
)

// Maintenance runs the three background jobs §6.2/§4.8 describe around the core
// service: opportunistic backup rotation, an idle-unload safety sweep alongside
// the server-wide idle timer in transport.go, and the once-a-day telemetry
// record. Grounded on the original's de_operator.rs read_record_time/
// write_record_time pair and the teacher's use of robfig/cron for its own
// scheduled maintenance (pkg/scheduler in the teacher tree).
type Maintenance struct {
	Stores       StoreLister
	RecordPath   string
	UnloadCheck  func() bool
	UnloadSignal UnloadSignal

	cron *cron.Cron
}

// StoreLister enumerates the open per-user stores Maintenance should back up.
type StoreLister interface {
	OpenStores() []*dbstore.Store
}

// NewMaintenance builds a Maintenance scheduler. Call Start to register jobs and
// begin running them.
func NewMaintenance(stores StoreLister, recordPath string, unloadCheck func() bool, unload UnloadSignal) *Maintenance {
	return &Maintenance{
		Stores:       stores,
		RecordPath:   recordPath,
		UnloadCheck:  unloadCheck,
		UnloadSignal: unload,
		cron:         cron.New(),
	}
}

// Start registers and runs the three jobs: backup every 10 minutes, the idle
// sweep every DelayedUnloadSeconds, and the telemetry write once a day at 03:00.
func (m *Maintenance) Start() {
	log := logging.For("maintenance")

	if _, err := m.cron.AddFunc("@every 10m", func() {
		for _, s := range m.Stores.OpenStores() {
			if err := s.Backup(context.Background()); err != nil {
				log.Warn("backup rotation failed", "error", err)
			}
		}
	}); err != nil {
		log.Warn("schedule backup job failed", "error", err)
	}

	if _, err := m.cron.AddFunc(fmt.Sprintf("@every %ds", DelayedUnloadSeconds), func() {
		if m.UnloadCheck != nil && m.UnloadCheck() && m.UnloadSignal != nil {
			m.UnloadSignal.RequestUnload()
		}
	}); err != nil {
		log.Warn("schedule idle sweep failed", "error", err)
	}

	if _, err := m.cron.AddFunc("0 3 * * *", func() {
		if err := writeDailyRecordTime(m.RecordPath, time.Now()); err != nil {
			log.Warn("telemetry record write failed", "error", err)
		}
	}); err != nil {
		log.Warn("schedule telemetry job failed", "error", err)
	}

	m.cron.Start()
}

// Stop drains running jobs and halts the scheduler.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}

// readRecordTime parses path's ASCII unix-seconds content, defaulting to 0 on any
// read or parse failure (matches the original's read_record_time fallback).
func readRecordTime(path string) int64 {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// writeDailyRecordTime rewrites path with now's unix seconds, but only if at least
// a day has elapsed since the last recorded value (§6.2: "once per day").
func writeDailyRecordTime(path string, now time.Time) error {
	last := readRecordTime(path)
	if now.Unix()-last < int64(24*time.Hour/time.Second) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.FormatInt(now.Unix(), 10)), 0o600)
}
