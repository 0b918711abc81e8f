package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/logger"
)

// EtcdConfig connection settings of the etcd rule source
type EtcdConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	Username    string
	Password    string
}

// DefaultEtcdConfig returns the local single-node defaults
func DefaultEtcdConfig() EtcdConfig {
	return EtcdConfig{
		Endpoints:   []string{"127.0.0.1:2379"},
		DialTimeout: 5 * time.Second,
	}
}

// EtcdDataSource watches one etcd key and feeds its value to the
// registered handlers: once on Initialize, then on every change. A
// deleted key is delivered as an empty document, clearing the rules.
type EtcdDataSource struct {
	client    *clientv3.Client
	ownClient bool
	key       string

	mu       sync.RWMutex
	handlers []PropertyHandler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	log *logger.CtxZapLogger
}

// NewEtcdDataSource connects to etcd and binds the source to key
func NewEtcdDataSource(cfg EtcdConfig, key string) (*EtcdDataSource, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	}
	if cfg.Username != "" {
		clientCfg.Username = cfg.Username
		clientCfg.Password = cfg.Password
	}

	client, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("datasource: connect etcd: %w", err)
	}

	ds := NewEtcdDataSourceWithClient(client, key)
	ds.ownClient = true
	return ds, nil
}

// NewEtcdDataSourceWithClient binds the source to key on a shared client.
// The caller keeps ownership of the client.
func NewEtcdDataSourceWithClient(client *clientv3.Client, key string) *EtcdDataSource {
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdDataSource{
		client: client,
		key:    key,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    logger.GetLogger("aegis"),
	}
}

func (s *EtcdDataSource) AddPropertyHandler(h PropertyHandler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// Initialize loads the current value and starts the watch loop
func (s *EtcdDataSource) Initialize() error {
	resp, err := s.client.Get(s.ctx, s.key)
	if err != nil {
		return fmt.Errorf("datasource: read %s: %w", s.key, err)
	}

	var value []byte
	if len(resp.Kvs) > 0 {
		value = resp.Kvs[0].Value
	}
	s.deliver(value)

	go s.watchLoop(resp.Header.Revision + 1)
	return nil
}

func (s *EtcdDataSource) watchLoop(fromRevision int64) {
	defer close(s.done)

	watchChan := s.client.Watch(s.ctx, s.key, clientv3.WithRev(fromRevision))
	for {
		select {
		case <-s.ctx.Done():
			return
		case watchResp, ok := <-watchChan:
			if !ok {
				s.log.Error("etcd watch channel closed", zap.String("key", s.key))
				return
			}
			if err := watchResp.Err(); err != nil {
				s.log.Error("etcd watch error",
					zap.String("key", s.key),
					zap.Error(err))
				continue
			}
			for _, ev := range watchResp.Events {
				switch ev.Type {
				case clientv3.EventTypePut:
					s.deliver(ev.Kv.Value)
				case clientv3.EventTypeDelete:
					s.deliver(nil)
				}
			}
		}
	}
}

func (s *EtcdDataSource) deliver(value []byte) {
	s.mu.RLock()
	handlers := make([]PropertyHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(value); err != nil {
			// one bad document must not stop the other handlers
			s.log.Error("rule update rejected",
				zap.String("key", s.key),
				zap.Error(err))
		}
	}
}

// Close stops the watch loop and closes an owned client
func (s *EtcdDataSource) Close() error {
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}
