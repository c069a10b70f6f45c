// Package etcd 将 etcd 客户端接入 autowire 注册表：
// 客户端按名注册为组件，关闭经由工厂的销毁方法统一托管
package etcd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/autowire"
	"github.com/gocrud/autowire/runtime"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// ClientOptions 单个客户端的连接选项
type ClientOptions struct {
	Endpoints   []string
	Username    string
	Password    string
	DialTimeout time.Duration
}

func defaultClientOptions() ClientOptions {
	return ClientOptions{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}

func (o ClientOptions) validate() error {
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd: endpoints are required")
	}
	return nil
}

// Factory 持有全部已建客户端，Close 统一释放
type Factory struct {
	mu      sync.RWMutex
	clients map[string]*clientv3.Client
}

func newFactory() *Factory {
	return &Factory{clients: map[string]*clientv3.Client{}}
}

func (f *Factory) add(name string, opts ClientOptions) (*clientv3.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[name]; exists {
		return nil, fmt.Errorf("etcd: client '%s' already registered", name)
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("etcd: client '%s': %w", name, err)
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		Username:    opts.Username,
		Password:    opts.Password,
		DialTimeout: opts.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd: create client '%s': %w", name, err)
	}
	f.clients[name] = client
	return client, nil
}

// Get 取指定名称的客户端
func (f *Factory) Get(name string) (*clientv3.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, ok := f.clients[name]
	if !ok {
		return nil, fmt.Errorf("etcd: client '%s' not found", name)
	}
	return client, nil
}

// Ping 验证指定客户端与首个端点的连通性
func (f *Factory) Ping(ctx context.Context, name string) error {
	client, err := f.Get(name)
	if err != nil {
		return err
	}
	_, err = client.Status(ctx, client.Endpoints()[0])
	return err
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
	f.clients = map[string]*clientv3.Client{}
	if len(errs) > 0 {
		return fmt.Errorf("etcd: errors closing clients: %v", errs)
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

// Configure 返回 etcd 配置器
// 工厂注册为 "etcd.clients"（销毁方法 Close），各客户端注册为 "etcd.<name>"
func Configure(options func(*autowire.BuildContext, *Builder)) autowire.Configurator {
	return func(ctx *autowire.BuildContext) error {
		builder := &Builder{}
		if options != nil {
			options(ctx, builder)
		}

		factory := newFactory()
		ctx.Add(runtime.NewDefinition("etcd.clients", autowire.TypeOf[*Factory](),
			runtime.WithInstance(factory),
			runtime.WithDestroyMethods("Close")))

		for _, d := range builder.declared {
			client, err := factory.add(d.name, d.opts)
			if err != nil {
				return err
			}
			ctx.Add(runtime.NewDefinition("etcd."+d.name, autowire.TypeOf[*clientv3.Client](),
				runtime.WithInstance(client)))
		}
		return nil
	}
}
