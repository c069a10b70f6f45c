// Package redis 将 go-redis 客户端接入 autowire 注册表：
// 客户端按名注册为组件，关闭经由工厂的销毁方法统一托管
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/autowire"
	"github.com/gocrud/autowire/runtime"
	goredis "github.com/redis/go-redis/v9"
)

// ClientOptions 单个客户端的连接选项
type ClientOptions struct {
	Addr         string        `json:"addr"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	DialTimeout  time.Duration `json:"-"`
	ReadTimeout  time.Duration `json:"-"`
	WriteTimeout time.Duration `json:"-"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries"`
}

func defaultClientOptions() ClientOptions {
	return ClientOptions{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}
}

// Factory 持有全部已建客户端，Close 统一释放
type Factory struct {
	mu      sync.RWMutex
	clients map[string]*goredis.Client
}

func newFactory() *Factory {
	return &Factory{clients: map[string]*goredis.Client{}}
}

func (f *Factory) add(name string, opts ClientOptions) (*goredis.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[name]; exists {
		return nil, fmt.Errorf("redis: client '%s' already registered", name)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		MaxRetries:   opts.MaxRetries,
	})
	f.clients[name] = client
	return client, nil
}

// Get 取指定名称的客户端
func (f *Factory) Get(name string) (*goredis.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, ok := f.clients[name]
	if !ok {
		return nil, fmt.Errorf("redis: client '%s' not found", name)
	}
	return client, nil
}

// Ping 验证指定客户端的连通性
func (f *Factory) Ping(ctx context.Context, name string) error {
	client, err := f.Get(name)
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// Close 关闭全部客户端
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for name, client := range f.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close client '%s': %w", name, err))
		}
	}
	f.clients = map[string]*goredis.Client{}
	if len(errs) > 0 {
		return fmt.Errorf("redis: errors closing clients: %v", errs)
	}
	return nil
}

// Builder 客户端声明收集器
type Builder struct {
	declared []declaration
}

type declaration struct {
	name string
	opts ClientOptions
}

// AddClient 声明一个客户端，选项在默认值基础上调整
func (b *Builder) AddClient(name string, options func(*ClientOptions)) *Builder {
	opts := defaultClientOptions()
	if options != nil {
		options(&opts)
	}
	b.declared = append(b.declared, declaration{name: name, opts: opts})
	return b
}

// AddClientFromConfig 从配置节（`redis.<name>`）读取客户端选项
func (b *Builder) AddClientFromConfig(ctx *autowire.BuildContext, name string) *Builder {
	opts := defaultClientOptions()
	if cfg := ctx.Configuration(); cfg != nil {
		section := "redis." + name
		opts.Addr = cfg.GetWithDefault(section+".addr", opts.Addr)
		opts.Password = cfg.GetWithDefault(section+".password", opts.Password)
		if db, err := cfg.GetInt(section + ".db"); err == nil {
			opts.DB = db
		}
		if pool, err := cfg.GetInt(section + ".pool_size"); err == nil {
			opts.PoolSize = pool
		}
	}
	b.declared = append(b.declared, declaration{name: name, opts: opts})
	return b
}

// Configure 返回 Redis 配置器
// 工厂注册为 "redis.clients"（销毁方法 Close），
// 各客户端注册为 "redis.<name>"，生命周期由工厂托管
func Configure(options func(*autowire.BuildContext, *Builder)) autowire.Configurator {
	return func(ctx *autowire.BuildContext) error {
		builder := &Builder{}
		if options != nil {
			options(ctx, builder)
		}

		factory := newFactory()
		ctx.Add(runtime.NewDefinition("redis.clients", autowire.TypeOf[*Factory](),
			runtime.WithInstance(factory),
			runtime.WithDestroyMethods("Close")))

		for _, d := range builder.declared {
			client, err := factory.add(d.name, d.opts)
			if err != nil {
				return err
			}
			ctx.Add(runtime.NewDefinition("redis."+d.name, autowire.TypeOf[*goredis.Client](),
				runtime.WithInstance(client)))
		}
		return nil
	}
}
