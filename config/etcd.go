package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// EtcdOptions etcd 配置源选项
type EtcdOptions struct {
	Endpoints   []string
	Username    string
	Password    string
	Prefix      string
	Timeout     time.Duration
	DialTimeout time.Duration
}

// AddEtcd 添加 etcd 配置源
func (b *Builder) AddEtcd(opts EtcdOptions) *Builder {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return b.Add(&etcdSource{opts: opts})
}

type etcdSource struct {
	opts EtcdOptions
}

func (s *etcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.opts.Endpoints)
}

func (s *etcdSource) Load() (map[string]any, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.opts.Endpoints,
		Username:    s.opts.Username,
		Password:    s.opts.Password,
		DialTimeout: s.opts.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()

	prefix := s.opts.Prefix
	if prefix == "" {
		prefix = "/"
	}
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("get from etcd: %w", err)
	}

	result := map[string]any{}
	for _, kv := range resp.Kvs {
		key := strings.TrimPrefix(string(kv.Key), s.opts.Prefix)
		key = strings.TrimPrefix(key, "/")
		if key == "" {
			continue
		}
		key = strings.ReplaceAll(key, "/", ":")
		setNested(result, key, decodeEtcdValue(kv.Value))
	}
	return result, nil
}

// decodeEtcdValue 值按 JSON、YAML、原始字符串的顺序尝试解码
func decodeEtcdValue(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	if err := yaml.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}
