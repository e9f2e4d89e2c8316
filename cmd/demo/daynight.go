package main

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/core"
	"deferred-engine/renderer"
	"deferred-engine/scene"
)

// skyKey is the lighting state at one hour of the day.
type skyKey struct {
	hour    float32
	zenith  mgl32.Vec3
	horizon mgl32.Vec3
	ground  mgl32.Vec3
	sun     mgl32.Vec3
	power   float32
	ambient mgl32.Vec3
}

// Sorted by hour. Sampling wraps from the last key back to the first.
var skyKeys = []skyKey{
	{hour: 0, zenith: mgl32.Vec3{0.02, 0.03, 0.10}, horizon: mgl32.Vec3{0.04, 0.04, 0.08}, ground: mgl32.Vec3{0.01, 0.01, 0.02},
		sun: mgl32.Vec3{0.40, 0.45, 0.65}, power: 0.12, ambient: mgl32.Vec3{0.03, 0.04, 0.09}},
	{hour: 4.8, zenith: mgl32.Vec3{0.06, 0.08, 0.25}, horizon: mgl32.Vec3{0.40, 0.18, 0.24}, ground: mgl32.Vec3{0.03, 0.03, 0.04},
		sun: mgl32.Vec3{0.75, 0.42, 0.60}, power: 0.20, ambient: mgl32.Vec3{0.06, 0.07, 0.14}},
	{hour: 6.7, zenith: mgl32.Vec3{0.12, 0.18, 0.55}, horizon: mgl32.Vec3{0.88, 0.45, 0.22}, ground: mgl32.Vec3{0.08, 0.06, 0.05},
		sun: mgl32.Vec3{1.00, 0.60, 0.28}, power: 0.70, ambient: mgl32.Vec3{0.09, 0.10, 0.17}},
	{hour: 12, zenith: mgl32.Vec3{0.20, 0.42, 0.90}, horizon: mgl32.Vec3{0.58, 0.75, 0.95}, ground: mgl32.Vec3{0.12, 0.10, 0.08},
		sun: mgl32.Vec3{1.00, 0.98, 0.92}, power: 1.20, ambient: mgl32.Vec3{0.16, 0.18, 0.26}},
	{hour: 17.3, zenith: mgl32.Vec3{0.14, 0.20, 0.60}, horizon: mgl32.Vec3{0.90, 0.52, 0.18}, ground: mgl32.Vec3{0.08, 0.07, 0.06},
		sun: mgl32.Vec3{1.00, 0.65, 0.25}, power: 0.90, ambient: mgl32.Vec3{0.10, 0.12, 0.20}},
	{hour: 19.2, zenith: mgl32.Vec3{0.08, 0.10, 0.28}, horizon: mgl32.Vec3{0.50, 0.22, 0.28}, ground: mgl32.Vec3{0.04, 0.03, 0.04},
		sun: mgl32.Vec3{0.70, 0.40, 0.55}, power: 0.25, ambient: mgl32.Vec3{0.06, 0.07, 0.14}},
}

const (
	sunDistance = 14
	dayLength   = 120 // seconds per full cycle
)

// DayNight advances a 24 hour clock and moves the sun, sky and ambient term
// with it.
type DayNight struct {
	Hour   float32
	Active bool
}

func NewDayNight() *DayNight { return &DayNight{Hour: 12, Active: true} }

func (dn *DayNight) Update(dt float32) {
	if !dn.Active {
		return
	}
	dn.Hour = float32(math.Mod(float64(dn.Hour+dt*24/dayLength), 24))
}

func mix(a, b mgl32.Vec3, t float32) mgl32.Vec3 { return a.Add(b.Sub(a).Mul(t)) }

func color(v mgl32.Vec3) core.Color { return core.Color{R: v[0], G: v[1], B: v[2], A: 1} }

func sampleSky(hour float32) skyKey {
	n := len(skyKeys)
	i := n - 1
	for j, k := range skyKeys {
		if k.hour > hour {
			break
		}
		i = j
	}
	a, b := skyKeys[i], skyKeys[(i+1)%n]
	span := b.hour - a.hour
	into := hour - a.hour
	if span <= 0 {
		span += 24
	}
	if into < 0 {
		into += 24
	}
	t := core.Clamp(into/span, 0, 1)
	return skyKey{
		hour:    hour,
		zenith:  mix(a.zenith, b.zenith, t),
		horizon: mix(a.horizon, b.horizon, t),
		ground:  mix(a.ground, b.ground, t),
		sun:     mix(a.sun, b.sun, t),
		power:   a.power + (b.power-a.power)*t,
		ambient: mix(a.ambient, b.ambient, t),
	}
}

// Apply writes the current sky into s and the context's clear and ambient
// colors. The sun is a point light on a tilted circle, overhead at noon;
// a nil sun is left alone.
func (dn *DayNight) Apply(ctx *renderer.RenderContext, s *scene.Scene, sun *scene.Light) {
	k := sampleSky(dn.Hour)

	if sun != nil {
		angle := (dn.Hour - 12) / 24 * 2 * math.Pi
		dir := mgl32.Vec3{sinf(angle), cosf(angle), 0.35}.Normalize()
		sun.Position = dir.Mul(sunDistance)
		sun.Color = color(k.sun)
		sun.Intensity = k.power * sunDistance * sunDistance / 4
	}

	ctx.Ambient = color(k.ambient)
	ctx.Background = color(k.horizon)
	if s.Sky == nil {
		s.Sky = &scene.Sky{}
	}
	s.Sky.Zenith = color(k.zenith)
	s.Sky.Horizon = color(k.horizon)
	s.Sky.Ground = color(k.ground)
}

// Clock formats the hour as a 24 hour HH:MM label.
func (dn *DayNight) Clock() string {
	minutes := int(dn.Hour * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60%24, minutes%60)
}

func cosf(a float32) float32 { return float32(math.Cos(float64(a))) }
func sinf(a float32) float32 { return float32(math.Sin(float64(a))) }
