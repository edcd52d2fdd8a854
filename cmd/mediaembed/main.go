package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/mediaembed/internal/config"
	"github.com/John-Robertt/mediaembed/internal/dialog"
	"github.com/John-Robertt/mediaembed/internal/domain"
	"github.com/John-Robertt/mediaembed/internal/host"
	"github.com/John-Robertt/mediaembed/internal/infra/cache"
	"github.com/John-Robertt/mediaembed/internal/infra/fsx"
	"github.com/John-Robertt/mediaembed/internal/infra/httpx"
	"github.com/John-Robertt/mediaembed/internal/lookup"
	"github.com/John-Robertt/mediaembed/internal/lookup/oembed"
	"github.com/John-Robertt/mediaembed/internal/markup"
)

// settleTimeout 是脚本结束后等待未完成查询的上限。
const settleTimeout = 30 * time.Second

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(os.Stdout)
		return
	}

	switch args[0] {
	case "edit":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		code := editCmd(ctx, args[1:], os.Stdout, os.Stderr)
		stop()
		if code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage(os.Stderr)
		os.Exit(2)
	}
}

type editArgs struct {
	Document string
	Script   string
	Select   int // -1 表示不选中
	Out      string
	Force    bool
	Config   string

	Resolver    string
	ResolverSet bool
	Cache       bool
	CacheSet    bool
}

func editCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	for _, a := range args {
		if isHelp(a) {
			printEditUsage(stdout)
			return 0
		}
	}

	ea, err := parseEditArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
		printEditUsage(stderr)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	docPath := ea.Document
	if !filepath.IsAbs(docPath) {
		docPath = filepath.Join(cwd, docPath)
	}

	rep := domain.EditReport{Document: docPath, StartedAt: time.Now(), Status: domain.StatusFailed}
	fail := func(code string, err error) int {
		rep.FinishedAt = time.Now()
		rep.ErrorCode = code
		rep.ErrorMsg = err.Error()
		rep.Finalize()
		emitReport(stdout, stderr, rep)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath:  ea.Config,
		Resolver:    ea.Resolver,
		ResolverSet: ea.ResolverSet,
		Cache:       ea.Cache,
		CacheSet:    ea.CacheSet,
	})
	if err != nil {
		return fail(config.Code(err), err)
	}

	log := newLogger(stderr, eff.LogLevel)
	entry := log.WithField("document", docPath)

	script, err := readScript(ea.Script)
	if err != nil {
		return fail(domain.ErrCodeScriptInvalid, errors.Wrapf(err, "读取脚本 %s", ea.Script))
	}

	f, err := os.Open(docPath)
	if err != nil {
		return fail(domain.ErrCodeIOFailed, err)
	}
	doc, err := host.Load(f)
	f.Close()
	if err != nil {
		return fail(domain.ErrCodeIOFailed, errors.Wrap(err, "解析文档"))
	}
	doc.Log = entry
	if ea.Select >= 0 && !doc.SelectPlaceholder(ea.Select) {
		return fail(domain.ErrCodeSelectInvalid, errors.Errorf("--select %d 超出范围（共 %d 个媒体元素）", ea.Select, len(doc.Placeholders())))
	}

	oracle := markup.Oracle{Scripts: eff.Scripts}
	svc, err := newLookup(eff, oracle, entry)
	if err != nil {
		return fail(domain.ErrCodeConfigInvalid, err)
	}

	progressW, _ := pickProgressWriter(stdout, stderr)
	rec := &reporter{w: progressW}
	dlg := &scriptDialog{}
	s, err := dialog.Open(ctx, dialog.Deps{
		Oracle:   oracle,
		Lookup:   svc,
		Host:     doc,
		Layout:   eff.Layout,
		Log:      entry,
		Observer: rec,
	}, dlg)
	if err != nil {
		return fail(domain.ErrCodeIOFailed, err)
	}
	rep.Session = s.ID()

	if err := replay(ctx, s, dlg, script, entry); err != nil {
		s.Close()
		return fail(domain.ErrCodeScriptInvalid, err)
	}
	sctx, cancel := context.WithTimeout(ctx, settleTimeout)
	err = s.Settle(sctx)
	cancel()
	if err != nil {
		entry.WithError(err).Warn("pending lookups abandoned")
	}

	rep.Committed = s.Committed()
	rep.Events = rec.events
	rep.Inserted = rec.inserted
	rep.Selected = rec.selected
	switch {
	case rec.insertOK:
		rep.Status = domain.StatusInserted
	case rec.insertErr != "":
		rep.Status = domain.StatusFailed
		rep.ErrorCode = domain.ErrCodeInsertFailed
		rep.ErrorMsg = rec.insertErr
	case s.Closed():
		rep.Status = domain.StatusClosed
	default:
		rep.Status = domain.StatusOpen
	}
	if !s.Closed() {
		s.Close()
	}

	if ea.Out != "" {
		if err := writeOutput(cwd, ea.Out, ea.Force, doc); err != nil {
			return fail(domain.ErrCodeIOFailed, err)
		}
	}

	rep.FinishedAt = time.Now()
	rep.Finalize()
	emitReport(stdout, stderr, rep)
	if rep.Status == domain.StatusFailed || rec.failed {
		return 1
	}
	return 0
}

// replay 依次执行脚本步骤。会话拒绝的操作（已关闭/提交中）只记录警告，不中断脚本。
func replay(ctx context.Context, s *dialog.Session, dlg *scriptDialog, script Script, log *logrus.Entry) error {
	for i, st := range script.Steps {
		l := log.WithField("step", i).WithField("action", st.String())
		var err error
		switch {
		case len(st.Edit) > 0:
			for _, k := range sortedKeys(st.Edit) {
				if err = dlg.set(domain.FieldName(k), st.Edit[k]); err != nil {
					return errors.Wrapf(err, "steps[%d]", i)
				}
				c, _ := dialog.ChangeFor(domain.FieldName(k))
				if err = s.Change(c); err != nil {
					break
				}
			}
		case len(st.Set) > 0:
			for _, k := range sortedKeys(st.Set) {
				if err := dlg.set(domain.FieldName(k), st.Set[k]); err != nil {
					return errors.Wrapf(err, "steps[%d]", i)
				}
			}
		case st.Meta != nil:
			if err := dlg.setMeta(domain.FieldName(st.Meta.Field), st.Meta.Values); err != nil {
				return errors.Wrapf(err, "steps[%d]", i)
			}
		case st.Change != "":
			c, ok := dialog.ChangeFor(domain.FieldName(st.Change))
			if !ok {
				l.Warn("unknown field, no transition")
				continue
			}
			err = s.Change(c)
		case st.Settle:
			sctx, cancel := context.WithTimeout(ctx, settleTimeout)
			err = s.Settle(sctx)
			cancel()
		case st.Submit:
			err = s.Submit()
		case st.Close:
			s.Close()
		}
		if err != nil {
			if errors.Is(err, dialog.ErrClosed) || errors.Is(err, dialog.ErrBusy) {
				l.WithError(err).Warn("step rejected")
				continue
			}
			return errors.Wrapf(err, "steps[%d] %s", i, st)
		}
		l.Debug("step done")
	}
	return nil
}

func newLookup(eff config.EffectiveConfig, oracle markup.Oracle, log *logrus.Entry) (*lookup.Service, error) {
	client, err := httpx.NewLookupClient(eff.ProxyURL)
	if err != nil {
		return nil, errors.Wrap(err, "初始化 HTTP client")
	}
	reg, err := lookup.NewRegistry(
		lookup.Local{Oracle: oracle},
		oembed.Resolver{Endpoint: eff.OEmbedEndpoint, Client: client},
	)
	if err != nil {
		return nil, err
	}
	r, ok := reg.Get(eff.Resolver)
	if !ok {
		return nil, errors.Errorf("未知 resolver：%q（可用：%s）", eff.Resolver, strings.Join(reg.Names(), ", "))
	}
	store := cache.New(eff.CacheDir, !eff.CacheWrite)
	return lookup.NewService(r, &store, log)
}

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})
	return l
}

func writeOutput(cwd, out string, force bool, doc *host.Document) error {
	if !filepath.IsAbs(out) {
		out = filepath.Join(cwd, out)
	}
	html, err := doc.HTML()
	if err != nil {
		return errors.Wrap(err, "序列化文档")
	}
	dir, name := filepath.Split(filepath.Clean(out))
	if force {
		return fsx.WriteFileAtomicReplace(dir, name, []byte(html))
	}
	if err := fsx.WriteFileAtomicNoOverwrite(dir, name, []byte(html)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return errors.Errorf("输出文件已存在：%s（使用 --force 覆盖）", out)
		}
		return err
	}
	return nil
}

func parseEditArgs(args []string) (editArgs, error) {
	ea := editArgs{Select: -1}

	value := func(i *int, flag string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", flag)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		name, v, hasValue := strings.Cut(a, "=")
		var err error
		switch name {
		case "--script", "--out", "--config", "--resolver", "--select":
			if !hasValue {
				if v, err = value(&i, name); err != nil {
					return editArgs{}, err
				}
			}
			switch name {
			case "--script":
				ea.Script = v
			case "--out":
				ea.Out = v
			case "--config":
				ea.Config = v
			case "--resolver":
				ea.Resolver = v
				ea.ResolverSet = true
			case "--select":
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					return editArgs{}, fmt.Errorf("--select 必须是非负整数，实际是 %q", v)
				}
				ea.Select = n
			}
		case "--cache", "--force":
			b := true
			if hasValue {
				switch v {
				case "true":
				case "false":
					b = false
				default:
					return editArgs{}, fmt.Errorf("%s 只能是 true 或 false，实际是 %q", name, v)
				}
			}
			if name == "--cache" {
				ea.Cache, ea.CacheSet = b, true
			} else {
				ea.Force = b
			}
		default:
			if strings.HasPrefix(a, "-") {
				return editArgs{}, fmt.Errorf("未知参数 %q", a)
			}
			if ea.Document != "" {
				return editArgs{}, fmt.Errorf("重复的文档路径：%q 与 %q", ea.Document, a)
			}
			ea.Document = a
		}
	}

	if ea.Document == "" {
		return editArgs{}, fmt.Errorf("缺少文档路径")
	}
	if strings.TrimSpace(ea.Script) == "" {
		return editArgs{}, fmt.Errorf("缺少 --script")
	}
	if ea.ResolverSet {
		switch strings.ToLower(strings.TrimSpace(ea.Resolver)) {
		case "local", "oembed":
		case "":
			return editArgs{}, fmt.Errorf("--resolver 不能为空")
		default:
			return editArgs{}, fmt.Errorf("--resolver 只能是 local 或 oembed，实际是 %q", ea.Resolver)
		}
	}
	return ea, nil
}

func sortedKeys(m map[string]string) []string {
	return strings.Split(joinKeys(m), ",")
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  mediaembed edit <doc.html> --script steps.yaml [选项]

命令：
  edit   在文档上打开媒体对话框，重放脚本并输出报告

使用 "mediaembed edit --help" 查看详细说明。
`)
}

func printEditUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  mediaembed edit <doc.html> --script steps.yaml [--select N] [--out file [--force]]
                  [--config file] [--resolver local|oembed] [--cache[=true|false]]

参数：
  --script    对话框操作脚本（YAML）
  --select    打开对话框前选中第 N 个媒体元素（从 0 开始）；不指定则新建
  --out       把编辑后的文档写到该路径
  --force     --out 已存在时覆盖
  --config    配置文件（默认读取当前目录下的 mediaembed.json，可选）
  --resolver  查询方式：local|oembed（未指定则读配置文件；最终默认 local）
  --cache     把查询结果写入磁盘缓存；支持 --cache=false 覆盖配置
  -h, --help  显示帮助
`)
}

func emitReport(stdout, stderr io.Writer, rep domain.EditReport) {
	summary := fmt.Sprintf("完成：status=%s changes=%d fetches=%d stale=%d failures=%d",
		rep.Status, rep.Summary.Changes, rep.Summary.Fetches, rep.Summary.Stale, rep.Summary.Failures)

	if isTTY(stdout) {
		fmt.Fprintln(stdout, summary)
		if rep.ErrorCode != "" {
			fmt.Fprintf(stderr, "%s: %s\n", rep.ErrorCode, rep.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：只输出一个 EditReport JSON，摘要走 stderr。
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rep)
	fmt.Fprintln(stderr, summary)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	if isTTY(stderr) {
		return stderr, true
	}
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}
