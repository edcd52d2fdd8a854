package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/mediaembed/internal/domain"
)

// Script 是 edit 命令重放的对话框操作序列（YAML）。
//
//	steps:
//	  - edit: {source: "https://youtu.be/abc"}   # 写入字段并触发对应的 change
//	  - set: {width: "640"}                      # 只写入字段，不触发 change
//	  - meta: {field: poster, values: {width: "640"}}
//	  - change: dimensions
//	  - settle: true                             # 等待所有查询结果
//	  - submit: true
//	  - close: true
type Script struct {
	Steps []Step `yaml:"steps"`
}

type Step struct {
	Edit   map[string]string `yaml:"edit,omitempty"`
	Set    map[string]string `yaml:"set,omitempty"`
	Meta   *MetaStep         `yaml:"meta,omitempty"`
	Change string            `yaml:"change,omitempty"`
	Settle bool              `yaml:"settle,omitempty"`
	Submit bool              `yaml:"submit,omitempty"`
	Close  bool              `yaml:"close,omitempty"`
}

// MetaStep 模拟文件选择器等组件给 URL 字段附带的元数据。
type MetaStep struct {
	Field  string            `yaml:"field"`
	Values map[string]string `yaml:"values"`
}

func readScript(path string) (Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return Script{}, err
	}
	defer f.Close()
	return parseScript(f)
}

func parseScript(r io.Reader) (Script, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Script{}, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		if err == io.EOF {
			return Script{}, fmt.Errorf("脚本为空")
		}
		return Script{}, err
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			return Script{}, fmt.Errorf("steps[%d]：%w", i, err)
		}
	}
	return s, nil
}

// validate 要求每一步恰好一个动作，字段名合法。
func (st Step) validate() error {
	n := 0
	for _, set := range []bool{len(st.Edit) > 0, len(st.Set) > 0, st.Meta != nil, st.Change != "", st.Settle, st.Submit, st.Close} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("每一步必须恰好包含一个动作，实际 %d 个", n)
	}

	for _, m := range []map[string]string{st.Edit, st.Set} {
		for k := range m {
			if !settable(domain.FieldName(k)) {
				return fmt.Errorf("未知字段 %q", k)
			}
		}
	}
	if st.Meta != nil {
		switch domain.FieldName(st.Meta.Field) {
		case domain.FieldSource, domain.FieldAltSource, domain.FieldPoster:
		default:
			return fmt.Errorf("meta 只能用于 URL 字段，实际是 %q", st.Meta.Field)
		}
	}
	return nil
}

func (st Step) String() string {
	switch {
	case len(st.Edit) > 0:
		return "edit " + joinKeys(st.Edit)
	case len(st.Set) > 0:
		return "set " + joinKeys(st.Set)
	case st.Meta != nil:
		return "meta " + st.Meta.Field
	case st.Change != "":
		return "change " + st.Change
	case st.Settle:
		return "settle"
	case st.Submit:
		return "submit"
	case st.Close:
		return "close"
	default:
		return "noop"
	}
}

func settable(n domain.FieldName) bool {
	switch n {
	case domain.FieldSource, domain.FieldAltSource, domain.FieldPoster, domain.FieldEmbed, domain.FieldWidth, domain.FieldHeight:
		return true
	default:
		return false
	}
}

func joinKeys(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
