package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "fleetwatch/pkg/logx"
)

// Job is one scheduled unit of work. ctx is the context given to Start.
type Job func(ctx context.Context)

type entry struct {
	name string
	spec ParsedSpec
	job  Job
	id   cron.EntryID
}

// Service wraps a robfig/cron instance. Jobs are upserted by name, so a
// config reload can re-register the same job with a new schedule.
type Service struct {
	log    logx.Logger
	parser cron.Parser

	mu      sync.Mutex
	loc     *time.Location
	c       *cron.Cron
	ctx     context.Context
	entries map[string]*entry
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		loc:     time.Local,
		entries: map[string]*entry{},
	}
}

// SetTimezone changes the location cron expressions are evaluated in.
// A running service is restarted with its jobs re-registered.
func (s *Service) SetTimezone(tz string) error {
	loc := time.Local
	if tz = strings.TrimSpace(tz); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		loc = l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc.String() == loc.String() {
		return nil
	}
	s.loc = loc
	if s.c != nil {
		s.restartLocked()
	}
	return nil
}

// Add registers job under name, replacing any job with the same name.
func (s *Service) Add(name, schedule string, job Job) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	if _, err := s.cronSchedule(ps); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	e := &entry{name: name, spec: ps, job: job}
	s.entries[name] = e
	if s.c != nil {
		if err := s.registerLocked(e); err != nil {
			return err
		}
		s.log.Info("schedule registered", logx.String("name", name), logx.String("spec", specString(ps)), logx.String("next", s.nextLocked(e)))
	}
	return nil
}

// Remove drops the job registered under name.
func (s *Service) Remove(name string) {
	s.mu.Lock()
	s.removeLocked(name)
	s.mu.Unlock()
}

// Next reports the next trigger time of the named job. It is zero when the
// service is stopped or the job is unknown.
func (s *Service) Next(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok || s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(e.id).Next
}

// Start begins triggering. Jobs receive ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx = ctx
	s.startLocked()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.entries)))
}

// Stop halts triggering and waits for running jobs, or until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; jobs still running")
	}
}

func (s *Service) startLocked() {
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	for _, e := range s.entries {
		if err := s.registerLocked(e); err != nil {
			s.log.Error("schedule register failed", logx.String("name", e.name), logx.Err(err))
		}
	}
	s.c.Start()
}

func (s *Service) restartLocked() {
	old := s.c
	s.startLocked()
	// Running jobs of the old instance finish on their own.
	old.Stop()
}

func (s *Service) registerLocked(e *entry) error {
	sched, err := s.cronSchedule(e.spec)
	if err != nil {
		return err
	}
	ctx := s.ctx
	job := e.job
	e.id = s.c.Schedule(sched, cron.FuncJob(func() { job(ctx) }))
	return nil
}

func (s *Service) removeLocked(name string) {
	e, ok := s.entries[name]
	if !ok {
		return
	}
	if s.c != nil {
		s.c.Remove(e.id)
	}
	delete(s.entries, name)
}

func (s *Service) nextLocked(e *entry) string {
	if s.c == nil {
		return ""
	}
	next := s.c.Entry(e.id).Next
	if next.IsZero() {
		return ""
	}
	return next.Format(time.RFC3339)
}

func (s *Service) cronSchedule(ps ParsedSpec) (cron.Schedule, error) {
	switch ps.Kind {
	case SpecCron:
		sched, err := s.parser.Parse(ps.Cron)
		if err != nil {
			return nil, fmt.Errorf("invalid cron %q: %w", ps.Cron, err)
		}
		return sched, nil
	case SpecInterval:
		return cron.Every(ps.Every), nil
	default:
		return nil, fmt.Errorf("unsupported schedule kind")
	}
}

func specString(ps ParsedSpec) string {
	if ps.Kind == SpecInterval {
		return "@every " + ps.Every.String()
	}
	return ps.Cron
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
