// Package fsx 负责 CLI 输出与缓存文件的原子写入。
package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 测试用：模拟 rename 失败。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径存在但不是普通文件。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// WriteFileAtomicNoOverwrite 原子写入 dir/name；目标已存在时返回 os.ErrExist。
// 用于 --out 未带 --force 的文档输出。
func WriteFileAtomicNoOverwrite(dir, name string, data []byte) error {
	dst := filepath.Join(filepath.Clean(dir), name)
	if err := checkTarget(dst); err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return os.ErrExist
	}
	return writeFileAtomic(dir, name, data, 0o644)
}

// WriteFileAtomicReplace 原子写入并覆盖 dir/name（缓存条目、--force 输出）。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	if err := checkTarget(filepath.Join(filepath.Clean(dir), name)); err != nil {
		return err
	}
	return writeFileAtomic(dir, name, data, 0o644)
}

func checkTarget(dst string) error {
	fi, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}
	if !fi.Mode().IsRegular() {
		return &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
	}
	return nil
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// 临时文件必须与目标同目录，rename 才是原子的。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := renameFunc(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}

	_ = syncDir(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
