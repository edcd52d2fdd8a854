package lookup

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Registry 是 resolver 的只读注册表（按 name 索引）。
type Registry struct {
	byName map[string]Resolver
}

func NewRegistry(resolvers ...Resolver) (Registry, error) {
	byName := make(map[string]Resolver, len(resolvers))
	for _, r := range resolvers {
		if r == nil {
			return Registry{}, errors.New("resolver 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(r.Name()))
		if name == "" {
			return Registry{}, errors.New("resolver.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, errors.Errorf("重复的 resolver：%q", name)
		}
		byName[name] = r
	}
	return Registry{byName: byName}, nil
}

func (r Registry) Get(name string) (Resolver, bool) {
	if r.byName == nil {
		return nil, false
	}
	res, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return res, ok
}

// Names 返回已注册的名称（排序后），用于错误提示。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
