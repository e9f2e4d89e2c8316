package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/core"
)

// Light is a point light.
type Light struct {
	Position  mgl32.Vec3
	Color     core.Color
	Intensity float32

	// Shadow is carried in the data model only. Nothing allocates or renders
	// shadow maps; the lighting pass ignores it.
	Shadow *Shadow
}

// Shadow reserves the resources a shadow-casting light would own.
type Shadow struct {
	Resolution int
}

func NewLight(position mgl32.Vec3, color core.Color, intensity float32) *Light {
	return &Light{Position: position, Color: color, Intensity: intensity}
}
