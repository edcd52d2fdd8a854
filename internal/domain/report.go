package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	// StatusInserted：提交完成并已插入内容，对话框已关闭。
	StatusInserted = "inserted"
	// StatusOpen：脚本结束时对话框仍打开（未提交，或提交失败等待用户重试）。
	StatusOpen = "open"
	// StatusClosed：对话框被关闭但没有插入。
	StatusClosed = "closed"
	// StatusFailed：会话无法建立（配置/文档读取等）。
	StatusFailed = "failed"
)

const (
	EventChange  = "change"
	EventFetch   = "fetch"
	EventResolve = "resolve"
	EventStale   = "stale"
	EventInsert  = "insert"
	EventNotice  = "notice"
	EventClose   = "close"
)

const (
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeScriptInvalid  = "script_invalid"
	ErrCodeSelectInvalid  = "select_invalid"
	ErrCodeInsertFailed   = "insert_failed"
)

// EditReport 是一次编辑会话对外稳定输出（stdout JSON）的结构。
type EditReport struct {
	Document string `json:"document"`
	Session  string `json:"session"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	Committed Descriptor `json:"committed"`
	Inserted  string     `json:"inserted,omitempty"`
	Selected  bool       `json:"selected"`

	Summary EventSummary `json:"summary"`
	Events  []Event      `json:"events"`
}

type EventSummary struct {
	Changes  int `json:"changes"`
	Fetches  int `json:"fetches"`
	Stale    int `json:"stale"`
	Failures int `json:"failures"`
}

// Event 记录会话中的一次状态迁移或异步结果。
type Event struct {
	Seq        int       `json:"seq"`
	Kind       string    `json:"kind"`
	Field      FieldName `json:"field,omitempty"`
	Generation uint64    `json:"generation,omitempty"`
	URL        string    `json:"url,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) events 按 seq 稳定排序（observer 可能乱序追加）
// 3) summary 由 events 计算得出
func (r *EditReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Events == nil {
		r.Events = []Event{}
	}

	sort.SliceStable(r.Events, func(i, j int) bool {
		return r.Events[i].Seq < r.Events[j].Seq
	})

	var s EventSummary
	for _, ev := range r.Events {
		switch ev.Kind {
		case EventChange:
			s.Changes++
		case EventFetch:
			s.Fetches++
		case EventStale:
			s.Stale++
		case EventResolve:
			if ev.Error != "" {
				s.Failures++
			}
		}
	}
	r.Summary = s
}

// MarshalJSON 集中约束输出的稳定性；当前只是透传 encoding/json 的默认行为。
func (r EditReport) MarshalJSON() ([]byte, error) {
	type Alias EditReport
	return json.Marshal(Alias(r))
}
