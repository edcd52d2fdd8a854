package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestEditReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := EditReport{
		Document:   "/abs/page.html",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Events: []Event{
			{Seq: 3, Kind: EventResolve, Generation: 1, Error: "boom"},
			{Seq: 1, Kind: EventChange, Field: FieldSource},
			{Seq: 2, Kind: EventFetch, Generation: 1, URL: "https://x/a.mp4"},
			{Seq: 4, Kind: EventStale, Generation: 1},
		},
	}

	r.Finalize()

	for i, ev := range r.Events {
		if ev.Seq != i+1 {
			t.Fatalf("events 排序不符合契约：idx=%d seq=%d", i, ev.Seq)
		}
	}
	want := EventSummary{Changes: 1, Fetches: 1, Stale: 1, Failures: 1}
	if r.Summary != want {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestEditReport_Finalize_NilEventsBecomeEmptyArray(t *testing.T) {
	r := EditReport{}
	r.Finalize()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"events":[]`)) {
		t.Fatalf("期望 events 输出为空数组：%s", string(b))
	}
}

func TestFields_CloneIsDeep(t *testing.T) {
	embed := "<video></video>"
	f := Fields{
		Source:     &URLField{Value: "a", Meta: map[string]string{"width": "1"}},
		Embed:      &embed,
		Dimensions: &Dimensions{Width: "1"},
	}
	c := f.Clone()
	c.Source.Meta["width"] = "2"
	*c.Embed = "x"
	c.Dimensions.Width = "3"

	if f.Source.Meta["width"] != "1" || *f.Embed != embed || f.Dimensions.Width != "1" {
		t.Fatalf("Clone 不应与原值共享状态：%+v", f)
	}
	if c.AltSource != nil || c.Poster != nil {
		t.Fatalf("nil 字段应保持 nil")
	}
}
