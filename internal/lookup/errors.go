package lookup

import (
	"fmt"
	"strings"
)

const (
	StageDiscover = "discover"
	StageFetch    = "fetch"
	StageDecode   = "decode"
	StageResolve  = "resolve"
)

// Error 是查询阶段的可追溯错误。
type Error struct {
	Resolver string
	Stage    string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolver=%s stage=%s: %v", e.Resolver, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusError 表示上游返回了非 2xx 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}
