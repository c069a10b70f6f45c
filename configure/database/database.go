// Package database 将 GORM 数据库接入 autowire 注册表：
// 每个库按名注册为 *gorm.DB 组件，连接关闭经由工厂的销毁方法托管
package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/autowire"
	"github.com/gocrud/autowire/runtime"
	"gorm.io/gorm"
)

// Options 单个数据库的连接选项
type Options struct {
	GormConfig   *gorm.Config
	MaxIdleConns int
	MaxOpenConns int
	MaxLifetime  time.Duration
	AutoMigrate  []any
}

func defaultOptions() Options {
	return Options{
		GormConfig:   &gorm.Config{},
		MaxIdleConns: 10,
		MaxOpenConns: 100,
		MaxLifetime:  time.Hour,
	}
}

// Factory 持有全部已打开的数据库，Close 统一释放底层连接池
type Factory struct {
	mu  sync.RWMutex
	dbs map[string]*gorm.DB
}

func newFactory() *Factory {
	return &Factory{dbs: map[string]*gorm.DB{}}
}

func (f *Factory) open(name string, dialector gorm.Dialector, opts Options) (*gorm.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.dbs[name]; exists {
		return nil, fmt.Errorf("database: '%s' already registered", name)
	}
	if dialector == nil {
		return nil, fmt.Errorf("database: dialector for '%s' is required", name)
	}

	db, err := gorm.Open(dialector, opts.GormConfig)
	if err != nil {
		return nil, fmt.Errorf("database: open '%s': %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: sql.DB for '%s': %w", name, err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	if len(opts.AutoMigrate) > 0 {
		if err := db.AutoMigrate(opts.AutoMigrate...); err != nil {
			return nil, fmt.Errorf("database: auto migrate '%s': %w", name, err)
		}
	}

	f.dbs[name] = db
	return db, nil
}

// Get 取指定名称的数据库
func (f *Factory) Get(name string) (*gorm.DB, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	db, ok := f.dbs[name]
	if !ok {
		return nil, fmt.Errorf("database: '%s' not found", name)
	}
	return db, nil
}

// Close 关闭全部数据库连接池
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for name, db := range f.dbs {
		sqlDB, err := db.DB()
		if err != nil {
			errs = append(errs, fmt.Errorf("sql.DB for '%s': %w", name, err))
			continue
		}
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close '%s': %w", name, err))
		}
	}
	f.dbs = map[string]*gorm.DB{}
	if len(errs) > 0 {
		return fmt.Errorf("database: errors closing: %v", errs)
	}
	return nil
}

// Builder 数据库声明收集器
type Builder struct {
	declared []declaration
}

type declaration struct {
	name      string
	dialector gorm.Dialector
	opts      Options
}

// Add 声明一个数据库
func (b *Builder) Add(name string, dialector gorm.Dialector, options func(*Options)) *Builder {
	opts := defaultOptions()
	if options != nil {
		options(&opts)
	}
	b.declared = append(b.declared, declaration{name: name, dialector: dialector, opts: opts})
	return b
}

// Configure 返回数据库配置器
// 工厂注册为 "db.factory"（销毁方法 Close），各库注册为 "db.<name>"
func Configure(options func(*autowire.BuildContext, *Builder)) autowire.Configurator {
	return func(ctx *autowire.BuildContext) error {
		builder := &Builder{}
		if options != nil {
			options(ctx, builder)
		}

		factory := newFactory()
		ctx.Add(runtime.NewDefinition("db.factory", autowire.TypeOf[*Factory](),
			runtime.WithInstance(factory),
			runtime.WithDestroyMethods("Close")))

		for _, d := range builder.declared {
			db, err := factory.open(d.name, d.dialector, d.opts)
			if err != nil {
				return err
			}
			ctx.Add(runtime.NewDefinition("db."+d.name, autowire.TypeOf[*gorm.DB](),
				runtime.WithInstance(db)))
		}
		return nil
	}
}
