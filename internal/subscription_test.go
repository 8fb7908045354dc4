package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionListEachAndDispose(t *testing.T) {
	list := NewSubscriptionList[Listener]()

	var got []any
	sub1 := list.Add(func(v any) { got = append(got, v) })
	list.Add(func(v any) { got = append(got, v) })

	list.Each(func(l Listener) { l(1) })
	assert.Equal(t, []any{1, 1}, got)

	sub1.Dispose()
	got = nil
	list.Each(func(l Listener) { l(2) })
	assert.Equal(t, []any{2}, got)

	assert.Equal(t, 1, list.Len())
}

func TestSubscriptionListSkipsListenerDisposedBeforeItsTurn(t *testing.T) {
	list := NewSubscriptionList[Listener]()

	var sub2disposer func()
	var ran []string

	list.Add(func(v any) { ran = append(ran, "first") })
	sub2 := list.Add(func(v any) { ran = append(ran, "second") })
	sub2disposer = sub2.Dispose

	list.Each(func(l Listener) {
		l(nil)
		sub2disposer()
	})

	// Each iterates a snapshot taken before either callback ran, but
	// checks each entry's disposed flag at invocation time: second is
	// disposed from within first's callback, before the loop reaches
	// second's turn, so it must not be invoked even though it was still
	// present in the snapshot.
	assert.Equal(t, []string{"first"}, ran)
	assert.Equal(t, 1, list.Len())
}

func TestSubscriptionListDisposeFromWithinOwnCallbackStillRunsOnce(t *testing.T) {
	list := NewSubscriptionList[Listener]()

	calls := 0
	var sub Disposable
	sub = list.Add(func(v any) {
		calls++
		sub.Dispose()
	})

	list.Each(func(l Listener) { l(nil) })
	assert.Equal(t, 1, calls)

	list.Each(func(l Listener) { l(nil) })
	assert.Equal(t, 1, calls)
}
