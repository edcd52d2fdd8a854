// Package oembed 通过 oEmbed 协议解析 embed：固定 endpoint，或从页面的
// <link type="application/json+oembed"> 自动发现。
package oembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/John-Robertt/mediaembed/internal/domain"
	"github.com/John-Robertt/mediaembed/internal/lookup"
	"github.com/John-Robertt/mediaembed/internal/markup"
)

const maxBody = 2 << 20

// Resolver 实现 lookup.Resolver。
//
// Endpoint 为空时先抓取 source 页面，再跟随其中的 oEmbed 发现链接（两次请求）。
type Resolver struct {
	Endpoint string
	Client   *http.Client

	MaxWidth  int
	MaxHeight int
}

var _ lookup.Resolver = Resolver{}

func (Resolver) Name() string { return "oembed" }

// Payload 是 oEmbed JSON 响应中用到的字段。
type Payload struct {
	Type         string      `json:"type"`
	Version      string      `json:"version"`
	Title        string      `json:"title"`
	ProviderName string      `json:"provider_name"`
	HTML         string      `json:"html"`
	URL          string      `json:"url"`
	Width        json.Number `json:"width"`
	Height       json.Number `json:"height"`
}

func (r Resolver) Resolve(ctx context.Context, d domain.Descriptor) (domain.Response, error) {
	if r.Client == nil {
		return domain.Response{}, errors.New("http client 不能为空")
	}
	src := strings.TrimSpace(d.Source)
	if src == "" {
		return domain.Response{}, errors.New("source 不能为空")
	}

	endpoint, err := r.endpointFor(ctx, src)
	if err != nil {
		return domain.Response{}, &lookup.Error{Resolver: r.Name(), Stage: lookup.StageDiscover, Err: err}
	}

	b, err := fetchURL(ctx, r.Client, endpoint)
	if err != nil {
		return domain.Response{}, &lookup.Error{Resolver: r.Name(), Stage: lookup.StageFetch, Err: err}
	}

	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return domain.Response{}, &lookup.Error{Resolver: r.Name(), Stage: lookup.StageDecode, Err: errors.Wrap(err, "oembed json")}
	}
	h, err := p.Markup()
	if err != nil {
		return domain.Response{}, &lookup.Error{Resolver: r.Name(), Stage: lookup.StageDecode, Err: err}
	}
	return domain.Response{URL: d.Source, HTML: wrapIRI(d.Source, h)}, nil
}

// wrapIRI 用外部 embed 容器包裹服务方返回的 markup：之后的本地补丁不会改动它，
// 解析时也能从容器上取回原始 URL。
func wrapIRI(src, h string) string {
	return fmt.Sprintf(`<div %s="%s">%s</div>`, markup.EmbedIRIAttr, html.EscapeString(src), h)
}

// Markup 返回可插入的 HTML：video/rich 直接用 html，photo 由 url 生成 <img>。
func (p Payload) Markup() (string, error) {
	if h := strings.TrimSpace(p.HTML); h != "" {
		return h, nil
	}
	if strings.EqualFold(p.Type, "photo") && strings.TrimSpace(p.URL) != "" {
		esc := html.EscapeString
		var b strings.Builder
		fmt.Fprintf(&b, `<img src="%s"`, esc(p.URL))
		if w := p.Width.String(); w != "" {
			fmt.Fprintf(&b, ` width="%s"`, esc(w))
		}
		if h := p.Height.String(); h != "" {
			fmt.Fprintf(&b, ` height="%s"`, esc(h))
		}
		fmt.Fprintf(&b, ` alt="%s" />`, esc(p.Title))
		return b.String(), nil
	}
	return "", errors.Errorf("oembed 响应缺少 html（type=%q）", p.Type)
}

func (r Resolver) endpointFor(ctx context.Context, src string) (string, error) {
	if ep := strings.TrimSpace(r.Endpoint); ep != "" {
		u, err := url.Parse(ep)
		if err != nil {
			return "", errors.Wrapf(err, "非法 oembed_endpoint：%q", ep)
		}
		q := u.Query()
		q.Set("url", src)
		q.Set("format", "json")
		r.setMax(q)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	page, err := fetchURL(ctx, r.Client, src)
	if err != nil {
		return "", err
	}
	href, err := findDiscoveryHref(page)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(resolveURL(src, href))
	if err != nil {
		return "", err
	}
	q := u.Query()
	r.setMax(q)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r Resolver) setMax(q url.Values) {
	if r.MaxWidth > 0 {
		q.Set("maxwidth", fmt.Sprint(r.MaxWidth))
	}
	if r.MaxHeight > 0 {
		q.Set("maxheight", fmt.Sprint(r.MaxHeight))
	}
}

func findDiscoveryHref(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", err
	}
	href := strings.TrimSpace(doc.Find(`link[type="application/json+oembed"]`).First().AttrOr("href", ""))
	if href == "" {
		return "", errors.New("页面中未找到 oembed 发现链接")
	}
	return href, nil
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &lookup.HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}
