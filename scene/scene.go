package scene

import "deferred-engine/core"

// Sky is the gradient the sky pass paints behind geometry.
type Sky struct {
	Zenith  core.Color
	Horizon core.Color
	Ground  core.Color
}

func DefaultSky() *Sky {
	return &Sky{
		Zenith:  core.Color{R: 0.25, G: 0.45, B: 0.85, A: 1},
		Horizon: core.Color{R: 0.75, G: 0.85, B: 0.95, A: 1},
		Ground:  core.Color{R: 0.3, G: 0.28, B: 0.25, A: 1},
	}
}

// Scene is what one window renders: an ordered drawable list, the lights,
// and the active camera. A nil Sky leaves the background color in place.
type Scene struct {
	Camera    *Camera
	Drawables []*Drawable
	Lights    []*Light
	Sky       *Sky
}

func NewScene(camera *Camera) *Scene {
	return &Scene{Camera: camera}
}

func (s *Scene) SetCamera(camera *Camera) {
	s.Camera = camera
}

func (s *Scene) Add(d *Drawable) {
	s.Drawables = append(s.Drawables, d)
}

func (s *Scene) Remove(d *Drawable) {
	for i, x := range s.Drawables {
		if x == d {
			s.Drawables = append(s.Drawables[:i], s.Drawables[i+1:]...)
			return
		}
	}
}

func (s *Scene) AddLight(light *Light) {
	s.Lights = append(s.Lights, light)
}

func (s *Scene) RemoveLight(light *Light) {
	for i, l := range s.Lights {
		if l == light {
			s.Lights = append(s.Lights[:i], s.Lights[i+1:]...)
			return
		}
	}
}

// Find returns the first drawable called name.
func (s *Scene) Find(name string) *Drawable {
	for _, d := range s.Drawables {
		if d.Name == name {
			return d
		}
	}
	return nil
}
