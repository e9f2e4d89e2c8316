package core

// Input tracks keyboard and mouse button state. Pressed and Released hold only
// the transitions observed during the current tick and are emptied by EndTick.
type Input struct {
	held     map[int]bool
	pressed  map[int]bool
	released map[int]bool
}

func NewInput() *Input {
	return &Input{
		held:     make(map[int]bool),
		pressed:  make(map[int]bool),
		released: make(map[int]bool),
	}
}

// KeyDown records a press transition. Repeats while held are ignored.
func (in *Input) KeyDown(key int) {
	if in.held[key] {
		return
	}
	in.held[key] = true
	in.pressed[key] = true
}

func (in *Input) KeyUp(key int) {
	if !in.held[key] {
		return
	}
	delete(in.held, key)
	in.released[key] = true
}

func (in *Input) IsDown(key int) bool      { return in.held[key] }
func (in *Input) WasPressed(key int) bool  { return in.pressed[key] }
func (in *Input) WasReleased(key int) bool { return in.released[key] }

// EndTick clears the per-tick transition sets. Held state survives.
func (in *Input) EndTick() {
	clear(in.pressed)
	clear(in.released)
}
