// Package lookup 实现 embed 查询服务：按 source URL 取得权威 markup，带内存/磁盘缓存。
//
// 约束：
// - Resolver 不做缓存（由 Service 统一实现），也不做重试（由 httpx 实现）
// - 同一 URL 的并发请求合并为一次 Resolve
package lookup

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/John-Robertt/mediaembed/internal/domain"
	"github.com/John-Robertt/mediaembed/internal/infra/cache"
)

// Resolver 把一个 Descriptor 解析为权威 embed。
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, d domain.Descriptor) (domain.Response, error)
}

// Service 是会话使用的查询服务。
type Service struct {
	resolver Resolver
	store    *cache.Store
	log      *logrus.Entry

	mu    sync.RWMutex
	mem   map[string]domain.Response
	group singleflight.Group
}

// NewService 构造查询服务；store 为 nil 时只用内存缓存。
func NewService(r Resolver, store *cache.Store, log *logrus.Entry) (*Service, error) {
	if r == nil {
		return nil, errors.New("resolver 不能为空")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		resolver: r,
		store:    store,
		log:      log.WithField("resolver", r.Name()),
		mem:      make(map[string]domain.Response),
	}, nil
}

// Fetch 返回 d.Source 对应的响应。source 为空时返回空响应（插入空内容），不访问 resolver。
func (s *Service) Fetch(ctx context.Context, d domain.Descriptor) (domain.Response, error) {
	url := strings.TrimSpace(d.Source)
	if url == "" {
		return domain.Response{}, nil
	}
	if resp, ok := s.cached(url); ok {
		return resp, nil
	}
	d.Source = url

	ch := s.group.DoChan(url, func() (interface{}, error) {
		// 合并后的请求不随单个调用方取消。
		resp, err := s.resolve(context.WithoutCancel(ctx), d, url)
		if err != nil {
			return domain.Response{}, err
		}
		s.remember(resp)
		return resp, nil
	})
	select {
	case <-ctx.Done():
		return domain.Response{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return domain.Response{}, r.Err
		}
		return r.Val.(domain.Response), nil
	}
}

// IsCached 同步判断 url 是否已有响应（内存或磁盘）。
func (s *Service) IsCached(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return false
	}
	s.mu.RLock()
	_, ok := s.mem[url]
	s.mu.RUnlock()
	if ok {
		return true
	}
	return s.store != nil && s.store.Has(s.resolver.Name(), url)
}

func (s *Service) resolve(ctx context.Context, d domain.Descriptor, url string) (domain.Response, error) {
	name := s.resolver.Name()
	s.log.WithField("url", url).Debug("resolving embed")

	resp, err := s.resolver.Resolve(ctx, d)
	if err != nil {
		var le *Error
		if errors.As(err, &le) {
			return domain.Response{}, err
		}
		return domain.Response{}, &Error{Resolver: name, Stage: StageResolve, Err: err}
	}
	if strings.TrimSpace(resp.URL) == "" {
		resp.URL = url
	}
	if resp.URL != url {
		return domain.Response{}, &Error{Resolver: name, Stage: StageResolve,
			Err: errors.Errorf("响应 URL 不匹配：期望 %q，实际 %q", url, resp.URL)}
	}

	if s.store != nil && !s.store.ReadOnly {
		if err := s.store.Write(name, resp); err != nil {
			// 缓存写失败不影响本次结果。
			s.log.WithError(err).WithField("url", url).Warn("cache write failed")
		}
	}
	return resp, nil
}

func (s *Service) cached(url string) (domain.Response, bool) {
	s.mu.RLock()
	resp, ok := s.mem[url]
	s.mu.RUnlock()
	if ok || s.store == nil {
		return resp, ok
	}

	resp, ok, err := s.store.Read(s.resolver.Name(), url)
	if err != nil {
		s.log.WithError(err).WithField("url", url).Warn("cache read failed")
		return domain.Response{}, false
	}
	if ok {
		s.remember(resp)
	}
	return resp, ok
}

func (s *Service) remember(resp domain.Response) {
	s.mu.Lock()
	s.mem[resp.URL] = resp
	s.mu.Unlock()
}
