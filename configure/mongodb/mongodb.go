// Package mongodb 将 MongoDB 客户端接入 autowire 注册表：
// 客户端按名注册为组件，断连经由工厂的销毁方法统一托管
package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/autowire"
	"github.com/gocrud/autowire/runtime"
	"github.com/gocrud/mgo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ClientOptions 单个客户端的连接选项
type ClientOptions struct {
	Uri         string
	Username    string
	Password    string
	MaxPoolSize uint64
	MinPoolSize uint64
	Timeout     time.Duration
}

func defaultClientOptions(uri string) ClientOptions {
	return ClientOptions{
		Uri:         uri,
		MaxPoolSize: 100,
		MinPoolSize: 5,
		Timeout:     10 * time.Second,
	}
}

func (o ClientOptions) validate() error {
	if o.Uri == "" {
		return fmt.Errorf("mongodb: uri is required")
	}
	return nil
}

// Factory 持有全部已建客户端，Close 统一断连
type Factory struct {
	mu      sync.RWMutex
	clients map[string]*mgo.Client
}

func newFactory() *Factory {
	return &Factory{clients: map[string]*mgo.Client{}}
}

func (f *Factory) add(name string, opts ClientOptions) (*mgo.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[name]; exists {
		return nil, fmt.Errorf("mongodb: client '%s' already registered", name)
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("mongodb: client '%s': %w", name, err)
	}

	clientOpts := options.Client()
	if opts.Username != "" || opts.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
	}
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(opts.Timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	client, err := mgo.NewClient(ctx, opts.Uri, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: create client '%s': %w", name, err)
	}
	f.clients[name] = client
	return client, nil
}

// Get 取指定名称的客户端
func (f *Factory) Get(name string) (*mgo.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, ok := f.clients[name]
	if !ok {
		return nil, fmt.Errorf("mongodb: client '%s' not found", name)
	}
	return client, nil
}

// Close 断开全部客户端
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	for name, client := range f.clients {
		if err := client.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect client '%s': %w", name, err))
		}
	}
	f.clients = map[string]*mgo.Client{}
	if len(errs) > 0 {
		return fmt.Errorf("mongodb: errors closing clients: %v", errs)
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

// Add 声明一个客户端，选项在默认值基础上调整
func (b *Builder) Add(name string, uri string, options func(*ClientOptions)) *Builder {
	opts := defaultClientOptions(uri)
	if options != nil {
		options(&opts)
	}
	b.declared = append(b.declared, declaration{name: name, opts: opts})
	return b
}

// Configure 返回 MongoDB 配置器
// 工厂注册为 "mongo.clients"（销毁方法 Close），各客户端注册为 "mongo.<name>"
func Configure(options func(*autowire.BuildContext, *Builder)) autowire.Configurator {
	return func(ctx *autowire.BuildContext) error {
		builder := &Builder{}
		if options != nil {
			options(ctx, builder)
		}

		factory := newFactory()
		ctx.Add(runtime.NewDefinition("mongo.clients", autowire.TypeOf[*Factory](),
			runtime.WithInstance(factory),
			runtime.WithDestroyMethods("Close")))

		for _, d := range builder.declared {
			client, err := factory.add(d.name, d.opts)
			if err != nil {
				return err
			}
			ctx.Add(runtime.NewDefinition("mongo."+d.name, autowire.TypeOf[*mgo.Client](),
				runtime.WithInstance(client)))
		}
		return nil
	}
}
