package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/John-Robertt/mediaembed/internal/dialog"
	"github.com/John-Robertt/mediaembed/internal/domain"
)

var _ dialog.Observer = (*reporter)(nil)

// reporter 把会话事件收集进 EditReport；w 非空时同时输出一行进度（交互终端）。
//
// 会话的回调都在驱动 goroutine 上，不需要加锁。
type reporter struct {
	w io.Writer

	seq    int
	events []domain.Event

	inserted string
	selected bool
	insertOK bool

	// insertErr 非空表示插入失败；failed 表示有查询失败或插入失败。
	insertErr string
	failed    bool
}

func (r *reporter) add(ev domain.Event) {
	r.seq++
	ev.Seq = r.seq
	r.events = append(r.events, ev)
}

func (r *reporter) printf(format string, args ...any) {
	if r.w == nil {
		return
	}
	fmt.Fprintf(r.w, "[%s] "+format+"\n", append([]any{time.Now().Format("15:04:05")}, args...)...)
}

func (r *reporter) OnOpen(session string, d domain.Descriptor) {
	r.printf("open session=%s source=%s", session, orDash(d.Source))
}

func (r *reporter) OnChange(_ string, field domain.FieldName, d domain.Descriptor) {
	r.add(domain.Event{Kind: domain.EventChange, Field: field})
	r.printf("change %s -> source=%s embed=%d bytes", field, orDash(d.Source), len(d.Embed))
}

func (r *reporter) OnFetch(_ string, gen uint64, url string) {
	r.add(domain.Event{Kind: domain.EventFetch, Generation: gen, URL: url})
	r.printf("fetch #%d %s", gen, truncate(url, 120))
}

func (r *reporter) OnResolve(_ string, gen uint64, url string, err error) {
	ev := domain.Event{Kind: domain.EventResolve, Generation: gen, URL: url}
	if err != nil {
		ev.Error = err.Error()
		r.failed = true
		r.printf("resolve #%d FAIL: %s", gen, truncate(ev.Error, 160))
	} else {
		r.printf("resolve #%d OK", gen)
	}
	r.add(ev)
}

func (r *reporter) OnStale(_ string, gen uint64, url string) {
	r.add(domain.Event{Kind: domain.EventStale, Generation: gen, URL: url})
	r.printf("stale #%d (discarded)", gen)
}

func (r *reporter) OnNotice(_ string, msg string) {
	r.add(domain.Event{Kind: domain.EventNotice, Error: msg})
	r.printf("notice: %s", msg)
}

func (r *reporter) OnInsert(_ string, markup string, selected bool, err error) {
	ev := domain.Event{Kind: domain.EventInsert}
	if err != nil {
		ev.Error = err.Error()
		r.insertErr = ev.Error
		r.failed = true
	} else {
		r.inserted = markup
		r.selected = selected
		r.insertOK = true
	}
	r.add(ev)
	r.printf("insert selected=%v %s", selected, truncate(markup, 120))
}

func (r *reporter) OnClose(string) {
	r.add(domain.Event{Kind: domain.EventClose})
	r.printf("close")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if max <= 0 || len([]rune(s)) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
