package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"clockledger/internal/storage"
)

// Job asks for one driver's ledger report, delivered to a chat.
type Job struct {
	UserID int64
	ChatID int64
}

// Result is a finished (or failed) report job handed to the Sender.
type Result struct {
	Job
	Name string
	Data []byte
	Err  error
}

// Sender delivers a finished report back to the requesting chat.
type Sender func(res Result)

// Manager runs report generation with bounded concurrency, so an admin
// requesting reports for every driver cannot stall the bot.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Enqueue(job Job) error
}

type Config struct {
	MaxConcurrent int
	KeyPrefix     string
	BuildTimeout  time.Duration
	Logger        *logrus.Logger
}

type manager struct {
	cfg      Config
	source   DataSource
	renderer Renderer
	storage  storage.Service
	send     Sender

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[int64]struct{}
}

func NewManager(cfg Config, source DataSource, renderer Renderer, store storage.Service, send Sender) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:      cfg,
		source:   source,
		renderer: renderer,
		storage:  store,
		send:     send,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		active:   make(map[int64]struct{}),
	}
}

func (m *manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg.Logger.Infof("report manager started, max concurrent: %d", m.cfg.MaxConcurrent)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("report manager stopped")
}

// Enqueue schedules one report. A second request for the same user while the
// first is still running is rejected.
func (m *manager) Enqueue(job Job) error {
	m.mu.Lock()
	if _, busy := m.active[job.UserID]; busy {
		m.mu.Unlock()
		return fmt.Errorf("report for user %d already in progress", job.UserID)
	}
	m.active[job.UserID] = struct{}{}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.active, job.UserID)
			m.mu.Unlock()
		}()
		select {
		case <-m.ctx.Done():
			return
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
			m.handleJob(job)
		}
	}()
	return nil
}

func (m *manager) handleJob(job Job) {
	logger := m.cfg.Logger.WithField("user_id", job.UserID)

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.BuildTimeout)
	defer cancel()

	data, err := m.source.BuildReport(ctx, job.UserID)
	if err != nil {
		logger.Errorf("build report: %v", err)
		m.send(Result{Job: job, Err: err})
		return
	}

	artifact, err := m.renderer.Render(data)
	if err != nil {
		logger.Errorf("render report: %v", err)
		m.send(Result{Job: job, Err: err})
		return
	}

	name := fmt.Sprintf("ledger-%d-%s.pdf", job.UserID, data.GeneratedAt.Format("20060102-150405"))
	if m.storage != nil {
		key := name
		if prefix := strings.Trim(m.cfg.KeyPrefix, "/"); prefix != "" {
			key = prefix + "/" + name
		}
		if err := m.storage.Put(ctx, key, bytes.NewReader(artifact), int64(len(artifact)), "application/pdf"); err != nil {
			logger.Warnf("archive report: %v", err)
		}
	}

	logger.WithField("bytes", len(artifact)).Info("report generated")
	m.send(Result{Job: job, Name: name, Data: artifact})
}

var _ Manager = (*manager)(nil)
