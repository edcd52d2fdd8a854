package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/mediaembed/internal/form"
	"github.com/John-Robertt/mediaembed/internal/markup"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	FileName = "mediaembed.json"

	DefaultResolver = "local"
	DefaultCacheDir = ".mediaembed-cache"
	DefaultLogLevel = "info"
)

// CLIArgs 保留“是否显式指定”的信息，使 --cache=false 能覆盖配置文件里的 true。
type CLIArgs struct {
	ConfigPath string

	Resolver    string
	ResolverSet bool

	Cache    bool
	CacheSet bool
}

// FileConfig 对应 mediaembed.json。
type FileConfig struct {
	Resolver       string         `json:"resolver"`
	OEmbedEndpoint string         `json:"oembed_endpoint"`
	Proxy          *ProxyConfig   `json:"proxy"`
	CacheDir       string         `json:"cache_dir"`
	Cache          *bool          `json:"cache"`
	LogLevel       string         `json:"log_level"`
	AltSource      *bool          `json:"alt_source"`
	Poster         *bool          `json:"poster"`
	Dimensions     *bool          `json:"dimensions"`
	Scripts        []ScriptConfig `json:"scripts"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// ScriptConfig 描述一种以 <script src> 嵌入的视频。
type ScriptConfig struct {
	Filter string `json:"filter"`
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// EffectiveConfig 是合并与校验后的最终配置，调用方直接消费。
type EffectiveConfig struct {
	ConfigPath string // 实际读取的配置文件；未读取时为空

	Resolver       string
	OEmbedEndpoint string
	ProxyURL       string

	CacheDir   string
	CacheWrite bool

	LogLevel logrus.Level
	Layout   form.Layout
	Scripts  []markup.VideoScript
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件并与 CLI 参数合并。
//
// 发现规则：
// 1) --config 指定：必须存在
// 2) 未指定：<cwd>/mediaembed.json 可选
//
// 覆盖优先级：
// - resolver：CLI > config > 默认 local
// - cache（是否写缓存）：CLI > config > 默认 false
// - 其他字段：仅由 config 控制
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	// 相对 cache_dir 以配置文件所在目录为基准；没有配置文件时以 cwd 为基准。
	base := cwdAbs
	if cfgPath != "" {
		base = filepath.Dir(cfgPath)
	}
	return merge(base, cli, fc, cfgPath)
}

func merge(base string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	resolver := DefaultResolver
	if cli.ResolverSet {
		resolver = cli.Resolver
	} else if strings.TrimSpace(fc.Resolver) != "" {
		resolver = fc.Resolver
	}
	resolver = strings.ToLower(strings.TrimSpace(resolver))
	if err := validateResolver(resolver); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	endpoint := strings.TrimSpace(fc.OEmbedEndpoint)
	if endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return invalid("oembed_endpoint 必须是 http/https URL：%q", endpoint)
		}
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return invalid("proxy.url 无效：%w", err)
		}
	}

	cacheWrite := false
	if cli.CacheSet {
		cacheWrite = cli.Cache
	} else if fc.Cache != nil {
		cacheWrite = *fc.Cache
	}
	cacheDir := strings.TrimSpace(fc.CacheDir)
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}

	levelName := strings.TrimSpace(fc.LogLevel)
	if levelName == "" {
		levelName = DefaultLogLevel
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return invalid("log_level 无效：%w", err)
	}

	scripts := make([]markup.VideoScript, 0, len(fc.Scripts))
	for i, sc := range fc.Scripts {
		if t := strings.TrimSpace(sc.Type); t != "" && t != "video" {
			return invalid("scripts[%d].type 只支持 video，实际是 %q", i, t)
		}
		if strings.TrimSpace(sc.Filter) == "" {
			return invalid("scripts[%d].filter 不能为空", i)
		}
		vs, err := markup.NewVideoScript(sc.Filter, sc.Width, sc.Height)
		if err != nil {
			return invalid("scripts[%d]：%w", i, err)
		}
		scripts = append(scripts, vs)
	}

	return EffectiveConfig{
		ConfigPath:     cfgPath,
		Resolver:       resolver,
		OEmbedEndpoint: endpoint,
		ProxyURL:       proxyURL,
		CacheDir:       absCleanFrom(base, cacheDir),
		CacheWrite:     cacheWrite,
		LogLevel:       level,
		Layout: form.Layout{
			AltSource:  boolOr(fc.AltSource, true),
			Poster:     boolOr(fc.Poster, true),
			Dimensions: boolOr(fc.Dimensions, true),
		},
		Scripts: scripts,
	}, nil
}

func validateResolver(r string) error {
	switch r {
	case "local", "oembed":
		return nil
	case "":
		return fmt.Errorf("resolver 不能为空")
	default:
		return fmt.Errorf("resolver 只能是 local 或 oembed，实际是 %q", r)
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件；exists 表示文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
