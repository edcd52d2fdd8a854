package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/mediaembed/internal/domain"
	"github.com/John-Robertt/mediaembed/internal/infra/cache"
)

func TestParseEditArgs(t *testing.T) {
	ea, err := parseEditArgs([]string{"page.html", "--script", "s.yaml", "--select=2", "--out", "o.html", "--force", "--resolver=oembed", "--cache=false"})
	require.NoError(t, err)
	assert.Equal(t, editArgs{
		Document: "page.html", Script: "s.yaml", Select: 2, Out: "o.html", Force: true,
		Resolver: "oembed", ResolverSet: true, Cache: false, CacheSet: true,
	}, ea)

	ea, err = parseEditArgs([]string{"--script=s.yaml", "page.html"})
	require.NoError(t, err)
	assert.Equal(t, -1, ea.Select)
	assert.False(t, ea.CacheSet)

	bad := [][]string{
		{"page.html"},
		{"--script", "s.yaml"},
		{"a.html", "b.html", "--script", "s"},
		{"a.html", "--script"},
		{"a.html", "--script", "s", "--select", "-1"},
		{"a.html", "--script", "s", "--select", "x"},
		{"a.html", "--script", "s", "--resolver", "nope"},
		{"a.html", "--script", "s", "--cache=maybe"},
		{"a.html", "--script", "s", "--verbose"},
	}
	for _, args := range bad {
		_, err := parseEditArgs(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestParseScript(t *testing.T) {
	s, err := parseScript(strings.NewReader(`
steps:
  - edit: {source: "https://x/a.mp4"}
  - set: {width: "640", height: "360"}
  - meta: {field: poster, values: {width: "1"}}
  - change: dimensions
  - settle: true
  - submit: true
  - close: true
`))
	require.NoError(t, err)
	require.Len(t, s.Steps, 7)
	assert.Equal(t, "edit source", s.Steps[0].String())
	assert.Equal(t, "set height,width", s.Steps[1].String())
	assert.Equal(t, "meta poster", s.Steps[2].String())
	assert.Equal(t, "1", s.Steps[2].Meta.Values["width"])
	assert.True(t, s.Steps[5].Submit)

	bad := map[string]string{
		"空脚本":      ``,
		"两个动作":     "steps:\n  - submit: true\n    close: true\n",
		"没有动作":     "steps:\n  - {}\n",
		"未知字段":     "steps:\n  - set: {title: x}\n",
		"未知键":      "steps:\n  - jump: true\n",
		"meta 非 URL": "steps:\n  - meta: {field: embed, values: {}}\n",
	}
	for name, body := range bad {
		_, err := parseScript(strings.NewReader(body))
		assert.Error(t, err, name)
	}
}

func TestScriptDialog_Set(t *testing.T) {
	d := &scriptDialog{data: domain.Fields{Source: &domain.URLField{}}}

	require.NoError(t, d.set(domain.FieldSource, "https://x/a"))
	require.NoError(t, d.set(domain.FieldEmbed, "<p/>"))
	assert.Equal(t, "https://x/a", d.Data().Source.Value)
	assert.Equal(t, "<p/>", *d.Data().Embed)

	assert.Error(t, d.set(domain.FieldPoster, "x"), "未渲染的字段")
	assert.Error(t, d.set(domain.FieldWidth, "1"), "未渲染的 dimensions")
	require.NoError(t, d.setMeta(domain.FieldSource, map[string]string{"width": "2"}))
	assert.Equal(t, "2", d.Data().Source.Meta["width"])

	d.Close()
	assert.True(t, d.closed)
}

type cliRun struct {
	code   int
	report domain.EditReport
	stderr string
}

func runEdit(t *testing.T, args ...string) cliRun {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := editCmd(context.Background(), args, &stdout, &stderr)

	var rep domain.EditReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep), "stdout 必须是单个 EditReport JSON：%q", stdout.String())
	return cliRun{code: code, report: rep, stderr: stderr.String()}
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEditCmd_LocalInsert(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, filepath.Join(dir, "page.html"), `<html><head></head><body><p>x</p><video src="https://x/a.mp4"></video></body></html>`)
	script := writeFile(t, filepath.Join(dir, "s.yaml"), "steps:\n  - set: {altsource: \"https://x/b.vtt\"}\n  - submit: true\n")
	cfg := writeFile(t, filepath.Join(dir, "me.json"), `{"cache_dir":"cache"}`)
	out := filepath.Join(dir, "out.html")

	r := runEdit(t, page, "--script", script, "--select", "0", "--out", out, "--config", cfg)
	require.Equal(t, 0, r.code, r.stderr)

	assert.Equal(t, domain.StatusInserted, r.report.Status)
	assert.Equal(t, `<video src="https://x/a.mp4"><source src="https://x/b.vtt"/></video>`, r.report.Inserted)
	assert.True(t, r.report.Selected)
	assert.NotEmpty(t, r.report.Session)
	assert.Equal(t, "https://x/a.mp4", r.report.Committed.Source)
	assert.Equal(t, 0, r.report.Summary.Fetches)
	assert.Contains(t, r.stderr, "完成：status=inserted")

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, `<html><head></head><body><p>x</p><video src="https://x/a.mp4"><source src="https://x/b.vtt"/></video></body></html>`, string(b))

	// 再次输出到同一路径：不带 --force 应失败。
	r = runEdit(t, page, "--script", script, "--select", "0", "--out", out, "--config", cfg)
	assert.Equal(t, 1, r.code)
	assert.Equal(t, domain.ErrCodeIOFailed, r.report.ErrorCode)
}

func TestEditCmd_OEmbedFetchThenSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") != "https://p/watch/1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"type":"video","html":"<iframe src=\"https://p/embed/1\"></iframe>"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	page := writeFile(t, filepath.Join(dir, "page.html"), `<body><p>x</p></body>`)
	script := writeFile(t, filepath.Join(dir, "s.yaml"), "steps:\n  - edit: {source: \"https://p/watch/1\"}\n  - settle: true\n  - submit: true\n")
	cfg := writeFile(t, filepath.Join(dir, "me.json"), fmt.Sprintf(`{"resolver":"oembed","oembed_endpoint":%q,"cache_dir":"cache","cache":true}`, srv.URL))

	r := runEdit(t, page, "--script", script, "--config", cfg)
	require.Equal(t, 0, r.code, r.stderr)

	want := `<div data-ephox-embed-iri="https://p/watch/1"><iframe src="https://p/embed/1"></iframe></div>`
	assert.Equal(t, domain.StatusInserted, r.report.Status)
	assert.Equal(t, want, r.report.Inserted)
	assert.True(t, r.report.Selected)
	assert.Equal(t, domain.Descriptor{Source: "https://p/watch/1", Embed: want}, r.report.Committed)
	assert.Equal(t, domain.EventSummary{Changes: 1, Fetches: 1}, r.report.Summary)

	store := cache.New(filepath.Join(dir, "cache"), true)
	assert.True(t, store.Has("oembed", "https://p/watch/1"), "--cache 开启时写入磁盘缓存")
}

func TestEditCmd_LookupFailureLeavesDialogOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	page := writeFile(t, filepath.Join(dir, "page.html"), `<body></body>`)
	script := writeFile(t, filepath.Join(dir, "s.yaml"), "steps:\n  - set: {source: \"https://p/watch/2\"}\n  - submit: true\n")
	cfg := writeFile(t, filepath.Join(dir, "me.json"), fmt.Sprintf(`{"resolver":"oembed","oembed_endpoint":%q,"cache_dir":"cache"}`, srv.URL))

	r := runEdit(t, page, "--script", script, "--config", cfg)
	assert.Equal(t, 1, r.code)
	assert.Equal(t, domain.StatusOpen, r.report.Status)
	assert.Equal(t, 1, r.report.Summary.Failures)

	var notice string
	for _, ev := range r.report.Events {
		if ev.Kind == domain.EventNotice {
			notice = ev.Error
		}
	}
	assert.True(t, strings.HasPrefix(notice, "Media embed handler error: "), notice)
}

func TestEditCmd_Failures(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, filepath.Join(dir, "page.html"), `<body></body>`)
	good := writeFile(t, filepath.Join(dir, "ok.yaml"), "steps:\n  - submit: true\n")
	bad := writeFile(t, filepath.Join(dir, "bad.yaml"), "steps:\n  - set: {title: x}\n")
	cfg := writeFile(t, filepath.Join(dir, "me.json"), `{"cache_dir":"cache"}`)

	cases := []struct {
		name string
		args []string
		code string
	}{
		{"配置不存在", []string{page, "--script", good, "--config", filepath.Join(dir, "none.json")}, domain.ErrCodeConfigNotFound},
		{"脚本非法", []string{page, "--script", bad, "--config", cfg}, domain.ErrCodeScriptInvalid},
		{"文档不存在", []string{filepath.Join(dir, "none.html"), "--script", good, "--config", cfg}, domain.ErrCodeIOFailed},
		{"选区越界", []string{page, "--script", good, "--select", "3", "--config", cfg}, domain.ErrCodeSelectInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := runEdit(t, tc.args...)
			assert.Equal(t, 1, r.code)
			assert.Equal(t, domain.StatusFailed, r.report.Status)
			assert.Equal(t, tc.code, r.report.ErrorCode)
			assert.NotEmpty(t, r.report.ErrorMsg)
			assert.NotNil(t, r.report.Events)
		})
	}
}

func TestEditCmd_HelpAndBadArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, editCmd(context.Background(), []string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "--script")

	stdout.Reset()
	assert.Equal(t, 2, editCmd(context.Background(), []string{"--nope"}, &stdout, &stderr))
	assert.Empty(t, stdout.String())
}
