package main

import (
	"fmt"
	"strings"

	"deferred-engine/core/window"
	"deferred-engine/renderer"
)

// stageToggles switches built-in post stages on and off by name, keeping the
// chain in the order they were enabled.
type stageToggles struct {
	ctx    *renderer.RenderContext
	active map[string]renderer.Stage
	order  []string
}

func newStageToggles(ctx *renderer.RenderContext) *stageToggles {
	return &stageToggles{ctx: ctx, active: make(map[string]renderer.Stage)}
}

func (t *stageToggles) toggle(name string) {
	if st, ok := t.active[name]; ok {
		t.ctx.RemoveStage(st)
		delete(t.active, name)
		for i, n := range t.order {
			if n == name {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		return
	}
	st, err := t.ctx.BuiltinStage(name)
	if !t.ctx.Policy().Handle(err) {
		return
	}
	t.ctx.AddStage(st)
	t.active[name] = st
	t.order = append(t.order, name)
}

func (t *stageToggles) names() []string { return t.order }

// titleBar shows frame timing in the window title, refreshed twice a second.
type titleBar struct {
	base   string
	frames int
}

func (tb *titleBar) update(win *window.Window, loop *renderer.Loop, day *DayNight, stages *stageToggles) {
	tb.frames++
	if tb.frames%30 != 0 {
		return
	}
	var b strings.Builder
	b.WriteString(tb.base)
	fmt.Fprintf(&b, " | %.0f fps %.2f ms | %s", loop.Metrics.FPS(), loop.Metrics.FrameTime(), day.Clock())
	fmt.Fprintf(&b, " | %d lights", len(loop.Scene.Lights))
	if names := stages.names(); len(names) > 0 {
		b.WriteString(" | " + strings.Join(names, " > "))
	}
	win.SetTitle(b.String())
}
