// Package cache 把查询服务的响应落盘，跨进程复用。
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/mediaembed/internal/domain"
	"github.com/John-Robertt/mediaembed/internal/infra/fsx"
)

// Store 提供 <Root>/embeds/<resolver>/<sha256(url)>.json 的读写。
//
// ReadOnly=true 时只读（CLI 未开启 --cache 写入）。
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// Path 返回 resolver 对 url 的缓存文件路径。
func (s Store) Path(resolver, url string) (string, error) {
	dir, name, err := s.locate(resolver, url)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Read 读取缓存的响应；未命中时 ok=false 且 err=nil。
func (s Store) Read(resolver, url string) (domain.Response, bool, error) {
	path, err := s.Path(resolver, url)
	if err != nil {
		return domain.Response{}, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Response{}, false, nil
		}
		return domain.Response{}, false, err
	}
	var resp domain.Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return domain.Response{}, false, fmt.Errorf("缓存文件损坏：%s：%w", path, err)
	}
	// 哈希碰撞或手工改动：视为未命中。
	if resp.URL != url {
		return domain.Response{}, false, nil
	}
	return resp, true, nil
}

// Has 只检查文件是否存在，不解析内容。
func (s Store) Has(resolver, url string) bool {
	path, err := s.Path(resolver, url)
	if err != nil {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

func (s Store) Write(resolver string, resp domain.Response) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	dir, name, err := s.locate(resolver, resp.URL)
	if err != nil {
		return err
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(dir, name, b)
}

func (s Store) locate(resolver, url string) (dir, name string, err error) {
	r, err := cleanResolver(resolver)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(url) == "" {
		return "", "", fmt.Errorf("url 不能为空")
	}
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(s.Root, "embeds", r), hex.EncodeToString(sum[:]) + ".json", nil
}

var resolverNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func cleanResolver(r string) (string, error) {
	r = strings.ToLower(strings.TrimSpace(r))
	if r == "" {
		return "", fmt.Errorf("resolver 不能为空")
	}
	// 避免路径穿越。
	if !resolverNameRE.MatchString(r) {
		return "", fmt.Errorf("非法 resolver：%q", r)
	}
	return r, nil
}
