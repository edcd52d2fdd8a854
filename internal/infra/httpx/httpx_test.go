package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestNewLookupClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewLookupClient("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive")
	}
}

func TestNewLookupClient_NoProxy(t *testing.T) {
	c, err := NewLookupClient("  ")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive")
	}
}

func TestNewLookupClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewLookupClient("http://[::1"); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestTransport_RetriesServerErrorAndSetsUA(t *testing.T) {
	var hits int32
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.UserAgent())
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewLookupClient("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("期望 3 次请求，实际 %d", got)
	}
	if s, _ := ua.Load().(string); s == "" {
		t.Fatalf("期望设置 User-Agent")
	}
}

func TestTransport_GivesUpAfterRetryMax(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewLookupClient("")
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("期望透传最后一次 503，实际 %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != defaultRetryMax+1 {
		t.Fatalf("期望 %d 次请求，实际 %d", defaultRetryMax+1, got)
	}
}
