package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/mediaembed/internal/form"
)

func TestLoadEffective_NoConfigUsesDefaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("期望未读取配置文件，实际 %q", eff.ConfigPath)
	}
	if eff.Resolver != DefaultResolver {
		t.Fatalf("期望 resolver=%q，实际=%q", DefaultResolver, eff.Resolver)
	}
	if eff.CacheWrite {
		t.Fatalf("默认不写缓存")
	}
	if want := filepath.Join(cwd, DefaultCacheDir); eff.CacheDir != want {
		t.Fatalf("期望 cache_dir=%q，实际=%q", want, eff.CacheDir)
	}
	if eff.LogLevel != logrus.InfoLevel {
		t.Fatalf("期望 info，实际 %v", eff.LogLevel)
	}
	if eff.Layout != form.FullLayout() {
		t.Fatalf("期望默认全布局，实际 %+v", eff.Layout)
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "missing.json"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_FileFields(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
		"resolver": "oembed",
		"oembed_endpoint": "https://noembed.com/embed",
		"proxy": {"url": "http://127.0.0.1:7890"},
		"cache_dir": "c",
		"log_level": "debug",
		"poster": false,
		"scripts": [{"filter": "player\\.example\\.com", "type": "video", "width": 640}]
	}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(cwd, FileName) {
		t.Fatalf("ConfigPath 不正确：%q", eff.ConfigPath)
	}
	if eff.Resolver != "oembed" || eff.OEmbedEndpoint != "https://noembed.com/embed" {
		t.Fatalf("resolver 字段不正确：%+v", eff)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" {
		t.Fatalf("proxy 不正确：%q", eff.ProxyURL)
	}
	if eff.CacheDir != filepath.Join(cwd, "c") {
		t.Fatalf("cache_dir 应相对配置文件目录：%q", eff.CacheDir)
	}
	if eff.LogLevel != logrus.DebugLevel {
		t.Fatalf("期望 debug，实际 %v", eff.LogLevel)
	}
	if (eff.Layout != form.Layout{AltSource: true, Poster: false, Dimensions: true}) {
		t.Fatalf("layout 不正确：%+v", eff.Layout)
	}
	if len(eff.Scripts) != 1 || eff.Scripts[0].Width != 640 || eff.Scripts[0].Height != 150 {
		t.Fatalf("scripts 不正确：%+v", eff.Scripts)
	}
	if !eff.Scripts[0].Filter.MatchString("https://player.example.com/v.js") {
		t.Fatalf("filter 未生效")
	}
}

func TestLoadEffective_CLIOverrides(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"resolver":"oembed","cache":true}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Resolver != "oembed" || !eff.CacheWrite {
		t.Fatalf("期望使用配置文件的值：%+v", eff)
	}

	// --resolver local --cache=false
	eff2, err := LoadEffective(cwd, CLIArgs{Resolver: "LOCAL", ResolverSet: true, Cache: false, CacheSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff2.Resolver != "local" {
		t.Fatalf("期望 resolver=local，实际=%q", eff2.Resolver)
	}
	if eff2.CacheWrite {
		t.Fatalf("期望 --cache=false 覆盖配置文件")
	}
}

func TestLoadEffective_ExplicitConfigPath(t *testing.T) {
	cwd := t.TempDir()
	dir := filepath.Join(cwd, "conf")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(dir, "me.json"), []byte(`{"cache_dir":"/abs/cache"}`))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "conf/me.json"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.CacheDir != filepath.Clean("/abs/cache") {
		t.Fatalf("绝对路径应保持不变：%q", eff.CacheDir)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"json 损坏":      `{`,
		"未知 resolver":  `{"resolver":"nope"}`,
		"endpoint 非法":  `{"oembed_endpoint":"ftp://x"}`,
		"proxy 非法":     `{"proxy":{"url":"http://[::1"}}`,
		"log_level 非法": `{"log_level":"loud"}`,
		"script 正则非法":  `{"scripts":[{"filter":"("}]}`,
		"script 空过滤器":  `{"scripts":[{"filter":" "}]}`,
		"script 类型非法":  `{"scripts":[{"filter":"x","type":"audio"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, FileName), []byte(body))

			_, err := LoadEffective(cwd, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadEffective_InvalidCLIResolver(t *testing.T) {
	_, err := LoadEffective(t.TempDir(), CLIArgs{Resolver: "", ResolverSet: true})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
