package dialog

import "github.com/John-Robertt/mediaembed/internal/domain"

// Observer 把会话事件从状态机中解耦出来（报告、进度输出）。
//
// 所有回调都在驱动 goroutine 上调用（Change/Submit/Await 内部），实现无需加锁。
type Observer interface {
	OnOpen(session string, d domain.Descriptor)
	// OnChange 在迁移完成、cell 已更新后调用。
	OnChange(session string, field domain.FieldName, d domain.Descriptor)
	OnFetch(session string, gen uint64, url string)
	// OnResolve 只对当前代的结果调用；过期结果走 OnStale。
	OnResolve(session string, gen uint64, url string, err error)
	OnStale(session string, gen uint64, url string)
	OnNotice(session string, msg string)
	OnInsert(session string, markup string, selected bool, err error)
	OnClose(session string)
}

// NopObserver 忽略所有事件。
type NopObserver struct{}

func (NopObserver) OnOpen(string, domain.Descriptor)                     {}
func (NopObserver) OnChange(string, domain.FieldName, domain.Descriptor) {}
func (NopObserver) OnFetch(string, uint64, string)                       {}
func (NopObserver) OnResolve(string, uint64, string, error)              {}
func (NopObserver) OnStale(string, uint64, string)                       {}
func (NopObserver) OnNotice(string, string)                              {}
func (NopObserver) OnInsert(string, string, bool, error)                 {}
func (NopObserver) OnClose(string)                                       {}
