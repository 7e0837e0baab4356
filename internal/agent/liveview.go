package agent

import (
	"context"
	"strings"
	"sync"
)

type viewItem struct {
	text string
	err  error
}

// LiveView is the caller's window onto one turn. Fragments arrive in the
// order the backend produced them, followed by exactly one terminal item:
// an empty string for a committed turn or an error.
type LiveView struct {
	mu       sync.Mutex
	queue    []viewItem
	finished bool // terminal item consumed
	notify   chan struct{}
}

func newLiveView() *LiveView {
	return &LiveView{notify: make(chan struct{}, 1)}
}

func (v *LiveView) push(item viewItem) {
	v.mu.Lock()
	v.queue = append(v.queue, item)
	v.mu.Unlock()
	select {
	case v.notify <- struct{}{}:
	default:
	}
}

func (v *LiveView) pushText(text string) { v.push(viewItem{text: text}) }
func (v *LiveView) pushEnd()             { v.push(viewItem{}) }
func (v *LiveView) pushErr(err error)    { v.push(viewItem{err: err}) }

// Next polls without blocking. ok is false when nothing is available yet.
// Otherwise text is the next fragment, or empty at the end of the turn,
// and err is set if the turn failed.
func (v *LiveView) Next() (text string, ok bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.queue) == 0 {
		return "", false, nil
	}
	item := v.queue[0]
	v.queue[0] = viewItem{}
	v.queue = v.queue[1:]
	if item.err != nil || item.text == "" {
		v.finished = true
	}
	return item.text, true, item.err
}

// Wait blocks for the next item. It returns ("", nil) at the end of a
// committed turn and ErrTurnFinished if called again afterwards.
func (v *LiveView) Wait(ctx context.Context) (string, error) {
	for {
		v.mu.Lock()
		done := v.finished && len(v.queue) == 0
		v.mu.Unlock()
		if done {
			return "", ErrTurnFinished
		}

		if text, ok, err := v.Next(); ok {
			return text, err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-v.notify:
		}
	}
}

// Updates returns a channel that receives a value whenever new items may
// be available. It is a hint for render loops; use Next to read.
func (v *LiveView) Updates() <-chan struct{} {
	return v.notify
}

// Collect waits for the whole turn and returns the concatenated reply.
// onFragment, if non-nil, is called for every fragment as it arrives.
func (v *LiveView) Collect(ctx context.Context, onFragment func(string)) (string, error) {
	var sb strings.Builder
	for {
		text, err := v.Wait(ctx)
		if err != nil {
			return sb.String(), err
		}
		if text == "" {
			return sb.String(), nil
		}
		sb.WriteString(text)
		if onFragment != nil {
			onFragment(text)
		}
	}
}
