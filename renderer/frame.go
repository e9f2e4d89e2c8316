package renderer

import (
	"time"

	"deferred-engine/core"
	"deferred-engine/internal/gpu"
	"deferred-engine/scene"
	"deferred-engine/shader"
)

// Render runs the geometry, sky, lighting and post passes for s and returns
// the target holding the final image.
func (c *RenderContext) Render(s *scene.Scene) (*Target, error) {
	if err := c.geometryPass(s); err != nil {
		return nil, err
	}
	if err := c.skyPass(s); err != nil {
		return nil, err
	}
	if err := c.lightingPass(s); err != nil {
		return nil, err
	}
	return c.postPass()
}

// Present blits final to the display, swaps, then copies final into the
// last-frame target, so LastFrame always trails the display by one frame.
func (c *RenderContext) Present(final *Target, swap func()) error {
	if final.Window() != c.id {
		return newError("present", KindRecoverable, ErrWrongContext)
	}
	src := final.Size()
	c.dev.Blit(final.Framebuffer(), 0, src.W, src.H, gpu.DisplayFramebuffer, c.size.W, c.size.H)
	if swap != nil {
		swap()
	}
	dst := c.lastFrame.Size()
	c.dev.Blit(final.Framebuffer(), 0, src.W, src.H, c.lastFrame.Framebuffer(), dst.W, dst.H)
	return nil
}

// Loop drives one RenderContext at a fixed cadence.
type Loop struct {
	Context   *RenderContext
	Scene     *scene.Scene
	Input     *core.Input
	TargetFPS int

	// Swap presents the display framebuffer; it may block on vsync.
	Swap func()
	// Poll pumps window events at the start of a tick.
	Poll func()
	// ShouldClose ends Run when it reports true.
	ShouldClose func() bool
	// Update runs game logic with the time since the previous tick.
	Update func(dt time.Duration)
	// Watcher, when set, applies pending shader reloads at the start of a tick.
	Watcher *shader.Watcher

	Now   func() time.Time
	Sleep func(time.Duration)

	Metrics Metrics
	last    time.Time
}

func NewLoop(ctx *RenderContext, s *scene.Scene, input *core.Input, targetFPS int) *Loop {
	return &Loop{
		Context:   ctx,
		Scene:     s,
		Input:     input,
		TargetFPS: targetFPS,
		Now:       time.Now,
		Sleep:     time.Sleep,
	}
}

// Budget is the wall-clock time one tick may take.
func (l *Loop) Budget() time.Duration {
	if l.TargetFPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(l.TargetFPS)
}

// Tick runs one frame: begin, render, present, copy the feedback image,
// update timing, clear per-tick input, then sleep out the rest of the budget.
func (l *Loop) Tick() {
	ctx := l.Context
	start := l.Now()
	if l.last.IsZero() {
		l.last = start
	}
	delta := start.Sub(l.last)
	l.last = start

	if l.Poll != nil {
		l.Poll()
	}
	if l.Watcher != nil {
		ctx.policy.Handle(wrapReload(l.Watcher.Apply()))
	}
	if l.Update != nil {
		l.Update(delta)
	}

	final, err := ctx.Render(l.Scene)
	if ctx.policy.Handle(err) && final != nil {
		ctx.policy.Handle(ctx.Present(final, l.Swap))
	}

	l.Metrics.Update(delta)
	if l.Input != nil {
		l.Input.EndTick()
	}

	if rest := l.Budget() - l.Now().Sub(start); rest > 0 {
		l.Sleep(rest)
	}
}

// Run ticks until ShouldClose reports true.
func (l *Loop) Run() {
	for l.ShouldClose == nil || !l.ShouldClose() {
		l.Tick()
	}
}

// A shader that fails to reload keeps its previous program, so the failure
// does not stop the frame.
func wrapReload(err error) error {
	if err == nil {
		return nil
	}
	return newError("reload shaders", KindRecoverable, err)
}
