// Package httpx 提供查询服务使用的 HTTP client：UA 池、代理与有界重试。
package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultRetryMax = 2
)

// Transport 在 Base 之上统一网络策略，resolver 只负责拼 URL 与解析响应。
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// RetryMax 是首次请求之外的最大重试次数。
	RetryMax int

	// RetryStatus 为 true 时，5xx 响应也视为可重试。
	RetryStatus bool

	// DisableKeepAlives 为 true 时每个请求设置 Close=true。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只重放 GET/HEAD 且无 body 的请求。
	max := t.RetryMax
	if max < 0 || req.Body != nil || (req.Method != http.MethodGet && req.Method != http.MethodHead) {
		max = 0
	}

	var (
		resp    *http.Response
		lastErr error
	)
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.ua != nil {
			r.Header.Set("User-Agent", t.ua.random())
		}
		if t.DisableKeepAlives {
			r.Close = true
		}

		resp, lastErr = t.Base.RoundTrip(r)
		if lastErr == nil {
			if !t.RetryStatus || resp.StatusCode < 500 || attempt == max {
				return resp, nil
			}
			resp.Body.Close()
		}
		if req.Context().Err() != nil {
			if lastErr == nil {
				lastErr = req.Context().Err()
			}
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// NewLookupClient 构造 embed 查询用的 client。
//
// proxyURL 非空时所有请求走代理，并且每个请求使用新连接。
func NewLookupClient(proxyURL string) (*http.Client, error) {
	return newClient(strings.TrimSpace(proxyURL))
}

func newClient(proxyURL string) (*http.Client, error) {
	base := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	return &http.Client{
		Transport: &Transport{
			Base:              base,
			ua:                globalUA,
			RetryMax:          defaultRetryMax,
			RetryStatus:       true,
			DisableKeepAlives: disableKeepAlives,
		},
		Timeout: defaultTimeout,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = &uaPool{
	rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	uas: []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
	},
}
