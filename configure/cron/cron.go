// Package cron 将 robfig/cron 调度器接入 autowire 注册表：
// 调度器注册为组件，优雅停止通过销毁方法名推断（Shutdown）托管
package cron

import (
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/autowire"
	"github.com/gocrud/autowire/injection"
	"github.com/gocrud/autowire/logging"
	"github.com/gocrud/autowire/runtime"
	"github.com/robfig/cron/v3"
)

// Scheduler 定时任务调度器
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger

	mu   sync.RWMutex
	jobs map[string]cron.EntryID
}

func newScheduler(logger logging.Logger, withSeconds bool) *Scheduler {
	opts := []cron.Option{
		cron.WithChain(cron.Recover(cronLogger{logger})),
	}
	if withSeconds {
		opts = append(opts, cron.WithSeconds())
	}
	return &Scheduler{
		cron:   cron.New(opts...),
		logger: logger,
		jobs:   map[string]cron.EntryID{},
	}
}

// AddJob 注册定时任务
func (s *Scheduler) AddJob(spec, name string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron: job '%s' already registered", name)
	}

	id, err := s.cron.AddFunc(spec, func() {
		s.logger.Debug("cron job started", logging.Field{Key: "job", Value: name})
		job()
		s.logger.Debug("cron job completed", logging.Field{Key: "job", Value: name})
	})
	if err != nil {
		return fmt.Errorf("cron: add job '%s': %w", name, err)
	}
	s.jobs[name] = id
	return nil
}

// RemoveJob 移除定时任务
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
	}
}

// JobCount 已注册任务数
func (s *Scheduler) JobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.logger.Info("cron scheduler starting",
		logging.Field{Key: "jobs", Value: s.JobCount()})
	s.cron.Start()
}

// Shutdown 优雅停止：等待运行中的任务完成，至多等待 5 秒
func (s *Scheduler) Shutdown() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("cron scheduler stopped")
	case <-time.After(5 * time.Second):
		s.logger.Warn("cron scheduler stop timed out")
	}
}

// cronLogger 把框架日志适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, toFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := append(toFields(keysAndValues), logging.Field{Key: "error", Value: err.Error()})
	l.logger.Error(msg, fields...)
}

func toFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{
			Key:   fmt.Sprintf("%v", keysAndValues[i]),
			Value: keysAndValues[i+1],
		})
	}
	return fields
}

// Builder 调度器声明收集器
type Builder struct {
	withSeconds bool
	autoStart   bool
	jobs        []jobDeclaration
}

type jobDeclaration struct {
	spec, name string
	job        func()
}

// WithSeconds 启用秒级表达式
func (b *Builder) WithSeconds() *Builder {
	b.withSeconds = true
	return b
}

// AutoStart 装配完成即启动调度
func (b *Builder) AutoStart() *Builder {
	b.autoStart = true
	return b
}

// AddJob 声明一个任务
func (b *Builder) AddJob(spec, name string, job func()) *Builder {
	b.jobs = append(b.jobs, jobDeclaration{spec: spec, name: name, job: job})
	return b
}

// Configure 返回调度器配置器，调度器注册为 "cron.scheduler"
// 销毁方法名走推断：类型上的无参 Shutdown 被识别为优雅停止入口
func Configure(options func(*autowire.BuildContext, *Builder)) autowire.Configurator {
	return func(ctx *autowire.BuildContext) error {
		builder := &Builder{}
		if options != nil {
			options(ctx, builder)
		}

		scheduler := newScheduler(ctx.Logger(), builder.withSeconds)
		for _, j := range builder.jobs {
			if err := scheduler.AddJob(j.spec, j.name, j.job); err != nil {
				return err
			}
		}
		if builder.autoStart {
			scheduler.Start()
		}

		ctx.Add(runtime.NewDefinition("cron.scheduler", autowire.TypeOf[*Scheduler](),
			runtime.WithInstance(scheduler),
			runtime.WithDestroyMethods(injection.InferDestroyMethod)))
		return nil
	}
}
