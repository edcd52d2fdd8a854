// Package dialog 实现媒体对话框背后的状态机：字段变更同步、提交流程与插入后的选区关联。
//
// 约束：
// - Session 只能由一个 goroutine 驱动；查询在独立 goroutine 中执行，结果通过 mailbox
//   投递回来，由 Await/Settle 在驱动 goroutine 上执行
// - 每次 source 查询携带递增的代号；只接受最新一代的结果（newest request wins）
// - 对话框只在插入尝试之后关闭，且只关闭一次
package dialog

import (
	"context"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/mediaembed/internal/domain"
	"github.com/John-Robertt/mediaembed/internal/form"
	"github.com/John-Robertt/mediaembed/internal/host"
)

var (
	// ErrClosed：会话已关闭后的 Change/Submit。
	ErrClosed = errors.New("dialog: session closed")

	// ErrBusy：异步提交尚未完成。
	ErrBusy = errors.New("dialog: submit pending")
)

// Dialog 是对话框控件暴露给会话的最小接口。SetData 整体替换数据。
type Dialog interface {
	Data() domain.Fields
	SetData(f domain.Fields)
	Close()
}

// Oracle 在片段与 Descriptor 之间转换（markup.Oracle 实现它）。
type Oracle interface {
	Parse(snippet string) domain.Descriptor
	Generate(d domain.Descriptor, prev string) string
}

// Lookup 按 source URL 取得权威 embed；IsCached 必须同步返回。
type Lookup interface {
	Fetch(ctx context.Context, d domain.Descriptor) (domain.Response, error)
	IsCached(url string) bool
}

// Deps 是会话的外部依赖。Log/Observer 可为空。
type Deps struct {
	Oracle Oracle
	Lookup Lookup
	Host   host.Host
	// Layout 零值表示只渲染 source 与 embed。
	Layout form.Layout

	Log      *logrus.Entry
	Observer Observer
}

// Session 独占当前状态 cell：最近一次提交到对话框的 Descriptor。
type Session struct {
	id   string
	deps Deps
	dlg  Dialog
	log  *logrus.Entry
	obs  Observer

	ctx    context.Context
	cancel context.CancelFunc

	cell       domain.Descriptor
	gen        uint64
	pending    int
	submitting bool
	closed     bool

	mailbox chan func()
}

var _ changeVisitor = (*Session)(nil)

// Open 从宿主选区初始化会话：解析选中的片段，填充对话框并提交到 cell。
func Open(ctx context.Context, deps Deps, dlg Dialog) (*Session, error) {
	if deps.Oracle == nil || deps.Lookup == nil || deps.Host == nil {
		return nil, errors.New("dialog: Oracle/Lookup/Host 不能为空")
	}
	if dlg == nil {
		return nil, errors.New("dialog: Dialog 不能为空")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, errors.Wrap(err, "dialog: session id")
	}
	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:      id.String(),
		deps:    deps,
		dlg:     dlg,
		log:     deps.Log.WithField("session", id.String()),
		obs:     deps.Observer,
		ctx:     ctx,
		cancel:  cancel,
		mailbox: make(chan func()),
	}

	snippet := deps.Host.SelectionSnippet()
	d := deps.Oracle.Parse(snippet)
	d.Embed = snippet
	s.setData(d)
	s.commit()

	s.log.WithFields(s.cell.Fields()).Debug("dialog opened")
	s.obs.OnOpen(s.id, s.cell)
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Committed 返回 cell 中的 Descriptor。
func (s *Session) Committed() domain.Descriptor { return s.cell }

func (s *Session) Closed() bool { return s.closed }

// Pending 返回尚未执行续延的查询数。
func (s *Session) Pending() int { return s.pending }

// Change 处理一次字段变更，迁移完成后把对话框数据提交到 cell。
func (s *Session) Change(c Change) error {
	if s.closed {
		return ErrClosed
	}
	if s.submitting {
		return ErrBusy
	}
	if c == nil {
		return errors.New("dialog: nil change")
	}
	c.accept(s)
	s.commit()

	s.log.WithField("change", c.Field()).WithFields(s.cell.Fields()).Debug("field changed")
	s.obs.OnChange(s.id, c.Field(), s.cell)
	return nil
}

func (s *Session) sourceChanged(SourceChanged) {
	svc := form.Unwrap(s.dlg.Data(), domain.FieldSource)
	if svc.Source == s.cell.Source {
		return
	}

	// 查询期间 embed 清空；source 被清空时其余字段保持原样。
	if strings.TrimSpace(svc.Source) != "" {
		s.setData(domain.Descriptor{Source: svc.Source})
	}
	s.fetch(svc, func(resp domain.Response, err error) {
		if err != nil {
			s.notify(err)
			return
		}
		if strings.TrimSpace(resp.URL) == "" {
			return
		}
		d := s.deps.Oracle.Parse(resp.HTML)
		d.Source = resp.URL
		d.Embed = resp.HTML
		s.setData(d)
		s.commit()
	})
}

func (s *Session) embedChanged(EmbedChanged) {
	d := form.Unwrap(s.dlg.Data())
	n := s.deps.Oracle.Parse(d.Embed)
	n.Embed = d.Embed
	s.setData(n)
}

func (s *Session) dimensionsChanged(DimensionsChanged) { s.regenerate(domain.FieldDimensions) }
func (s *Session) altSourceChanged(AltSourceChanged)   { s.regenerate(domain.FieldAltSource) }
func (s *Session) posterChanged(PosterChanged)         { s.regenerate(domain.FieldPoster) }

func (s *Session) regenerate(focus domain.FieldName) {
	d := form.Unwrap(s.dlg.Data(), focus)
	d.Embed = s.deps.Oracle.Generate(d, d.Embed)
	s.setData(d)
}

// Submit 生成最终片段并插入宿主。
//
// source 未变或已缓存时同步插入并关闭；否则发起查询，结果到达后再插入。
// 查询失败时通知宿主，对话框保持打开，可再次提交。
func (s *Session) Submit() error {
	if s.closed {
		return ErrClosed
	}
	if s.submitting {
		return ErrBusy
	}

	final := form.Unwrap(s.dlg.Data())
	final.Embed = s.deps.Oracle.Generate(final, final.Embed)
	prior := s.cell

	if final.Embed != "" && (prior.Source == final.Source || s.deps.Lookup.IsCached(final.Source)) {
		// 进行中的 source 查询随之过期。
		s.gen++
		s.log.WithFields(final.Fields()).Debug("submit: local insert")
		return s.insert(final.Embed)
	}

	s.submitting = true
	s.log.WithFields(final.Fields()).Debug("submit: awaiting lookup")
	s.fetch(final, func(resp domain.Response, err error) {
		s.submitting = false
		if err != nil {
			s.notify(err)
			return
		}
		if err := s.insert(resp.HTML); err != nil {
			// insert 已记录日志并交给 observer，会话照常关闭。
			return
		}
	})
	return nil
}

// Close 取消会话（用户关闭对话框）。重复调用无效果。
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.close()
}

// Await 执行一个到达的查询续延。没有未完成查询或会话已关闭时立即返回 false。
func (s *Session) Await(ctx context.Context) (bool, error) {
	if s.closed || s.pending == 0 {
		return false, nil
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case cont := <-s.mailbox:
		s.pending--
		cont()
		return true, nil
	}
}

// Settle 执行续延直到没有未完成的查询。
func (s *Session) Settle(ctx context.Context) error {
	for {
		ok, err := s.Await(ctx)
		if err != nil || !ok {
			return err
		}
	}
}

// fetch 发起新一代查询；done 只在结果仍属于最新一代且会话未关闭时执行。
func (s *Session) fetch(d domain.Descriptor, done func(domain.Response, error)) {
	s.gen++
	g := s.gen
	url := d.Source
	s.pending++

	s.log.WithFields(logrus.Fields{"generation": g, "url": url}).Debug("lookup started")
	s.obs.OnFetch(s.id, g, url)

	ctx := s.ctx
	go func() {
		resp, err := s.deps.Lookup.Fetch(ctx, d)
		cont := func() {
			if s.closed || g != s.gen {
				s.log.WithFields(logrus.Fields{"generation": g, "current": s.gen, "url": url}).Warn("discarding stale lookup result")
				s.obs.OnStale(s.id, g, url)
				return
			}
			s.obs.OnResolve(s.id, g, url, err)
			done(resp, err)
		}
		select {
		case s.mailbox <- cont:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) insert(markup string) error {
	_, selected, err := host.Insert(s.deps.Host, markup)
	if err != nil {
		err = errors.Wrap(err, "insert")
		s.log.WithError(err).Error("insert failed")
	} else {
		s.log.WithField("selected", selected).Debug("inserted")
	}
	s.obs.OnInsert(s.id, markup, selected, err)
	s.close()
	return err
}

func (s *Session) notify(err error) {
	msg := NotifyMessage(err)
	s.log.WithError(err).Warn("lookup failed")
	s.deps.Host.NotifyError(msg)
	s.obs.OnNotice(s.id, msg)
}

// NotifyMessage 是查询失败时展示给用户的文案。
func NotifyMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "Media embed handler threw unknown error."
	}
	return "Media embed handler error: " + err.Error()
}

func (s *Session) setData(d domain.Descriptor) {
	s.dlg.SetData(s.deps.Layout.Filter(form.Wrap(d)))
}

func (s *Session) commit() {
	s.cell = form.Unwrap(s.dlg.Data())
}

func (s *Session) close() {
	s.closed = true
	s.cancel()
	s.dlg.Close()
	s.log.Debug("dialog closed")
	s.obs.OnClose(s.id)
}
