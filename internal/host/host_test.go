package host

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

type elem struct{ name string }

func TestCorrelate_NewElementSelected(t *testing.T) {
	p1, p2, p3 := &elem{"p"}, &elem{"p"}, &elem{"p"}

	got, ok := Correlate([]*elem{p1, p2}, []*elem{p1, p2, p3})
	require.True(t, ok)
	assert.Same(t, p3, got)

	// 内容相同但身份不同：仍然是新元素。
	got, ok = Correlate([]*elem{p1}, []*elem{p2, p1})
	require.True(t, ok)
	assert.Same(t, p2, got)
}

func TestCorrelate_NoNewElement(t *testing.T) {
	p1 := &elem{"p"}
	got, ok := Correlate([]*elem{p1}, []*elem{p1})
	assert.False(t, ok)
	assert.Nil(t, got)

	_, ok = Correlate[*elem](nil, nil)
	assert.False(t, ok)
}

type fakeHost struct {
	before, after []*html.Node
	calls         int
	selected      *html.Node
	insertErr     error
}

func (h *fakeHost) SelectionSnippet() string { return "" }

func (h *fakeHost) Placeholders() []*html.Node {
	h.calls++
	if h.calls == 1 {
		return h.before
	}
	return h.after
}

func (h *fakeHost) InsertMarkup(string) error { return h.insertErr }
func (h *fakeHost) Select(n *html.Node)        { h.selected = n }
func (h *fakeHost) NotifyError(string)        {}

func TestInsert_SelectsNewPlaceholder(t *testing.T) {
	p1, p2, p3 := &html.Node{}, &html.Node{}, &html.Node{}
	h := &fakeHost{before: []*html.Node{p1, p2}, after: []*html.Node{p1, p2, p3}}

	n, ok, err := Insert(h, "<video></video>")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, p3, n)
	assert.Same(t, p3, h.selected)
}

func TestInsert_NoNewPlaceholderLeavesSelection(t *testing.T) {
	p1, prev := &html.Node{}, &html.Node{}
	h := &fakeHost{before: []*html.Node{p1}, after: []*html.Node{p1}, selected: prev}

	_, ok, err := Insert(h, "text")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Same(t, prev, h.selected)
}

func TestInsert_InsertError(t *testing.T) {
	h := &fakeHost{insertErr: errors.New("nope")}
	_, ok, err := Insert(h, "x")
	assert.Error(t, err)
	assert.False(t, ok)
}
