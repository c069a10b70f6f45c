// Package hosting 承载需要显式启动的后台组件：
// Runner 统一拉起服务并等待退出信号，停止交由注册表的销毁方法托管
package hosting

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gocrud/autowire/logging"
)

// Service 可启动的后台组件。启动失败同步返回；
// 停止不在此接口上，关停统一走组件的销毁方法
type Service interface {
	Start() error
}

// Runner 后台服务启动器
type Runner struct {
	logger logging.Logger

	mu       sync.Mutex
	services []namedService
}

type namedService struct {
	name string
	svc  Service
}

// NewRunner 创建启动器
func NewRunner(logger logging.Logger) *Runner {
	return &Runner{logger: logger}
}

// Add 追加一个待启动的服务
func (r *Runner) Add(name string, svc Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = append(r.services, namedService{name: name, svc: svc})
}

// StartAll 按追加顺序启动全部服务，首个失败即中止
func (r *Runner) StartAll() error {
	r.mu.Lock()
	services := append([]namedService(nil), r.services...)
	r.mu.Unlock()

	for _, s := range services {
		if err := s.svc.Start(); err != nil {
			return fmt.Errorf("hosting: start '%s': %w", s.name, err)
		}
		r.logger.Info("hosted service started",
			logging.Field{Key: "service", Value: s.name})
	}
	return nil
}

// Wait 阻塞至上下文取消或收到 SIGINT/SIGTERM
func (r *Runner) Wait(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	r.logger.Info("shutdown signal received")
}

// Worker 周期执行任务的后台服务，Stop 为优雅停止入口，
// 注册为组件时以销毁方法 Stop 接入注册表关停
type Worker struct {
	name     string
	interval time.Duration
	task     func(context.Context) error
	logger   logging.Logger

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// NewWorker 创建周期任务
func NewWorker(name string, interval time.Duration, task func(context.Context) error, logger logging.Logger) *Worker {
	return &Worker{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start 启动周期循环
func (w *Worker) Start() error {
	if w.interval <= 0 {
		return fmt.Errorf("hosting: worker '%s' interval must be positive", w.name)
	}

	w.started.Store(true)
	go w.run()
	w.logger.Info("worker started",
		logging.Field{Key: "worker", Value: w.name},
		logging.Field{Key: "interval", Value: w.interval.String()})
	return nil
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case <-ticker.C:
			if err := w.task(ctx); err != nil {
				w.logger.Error("worker task failed",
					logging.Field{Key: "worker", Value: w.name},
					logging.Field{Key: "error", Value: err.Error()})
			}
		case <-w.stopCh:
			return
		}
	}
}

// Stop 优雅停止：通知循环退出并等待当前任务完成，至多等待 5 秒
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.stopCh) })
	if !w.started.Load() {
		return
	}

	select {
	case <-w.doneCh:
		w.logger.Info("worker stopped", logging.Field{Key: "worker", Value: w.name})
	case <-time.After(5 * time.Second):
		w.logger.Warn("worker stop timed out", logging.Field{Key: "worker", Value: w.name})
	}
}
