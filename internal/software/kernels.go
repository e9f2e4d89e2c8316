package software

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/shaders"
)

func registerBuiltins(d *Device) {
	d.RegisterKernel(shaders.GeometryFrag, geometryKernel)
	d.RegisterKernel(shaders.SkyFrag, skyKernel)
	d.RegisterKernel(shaders.LightingFrag, lightingKernel)
	d.RegisterKernel(shaders.CopyFrag, PostKernel(func(c mgl32.Vec4, _ *Uniforms) mgl32.Vec4 { return c }))
	d.RegisterKernel(shaders.InvertFrag, PostKernel(func(c mgl32.Vec4, _ *Uniforms) mgl32.Vec4 {
		return mgl32.Vec4{1 - c[0], 1 - c[1], 1 - c[2], c[3]}
	}))
	d.RegisterKernel(shaders.GrayscaleFrag, PostKernel(func(c mgl32.Vec4, _ *Uniforms) mgl32.Vec4 {
		l := c.Vec3().Dot(mgl32.Vec3{0.2126, 0.7152, 0.0722})
		return mgl32.Vec4{l, l, l, c[3]}
	}))
	d.RegisterKernel(shaders.ToneMapFrag, PostKernel(func(c mgl32.Vec4, u *Uniforms) mgl32.Vec4 {
		e := u.Float("exposure")
		for i := 0; i < 3; i++ {
			c[i] = float32(math.Pow(1-math.Exp(float64(-c[i]*e)), 1/2.2))
		}
		return c
	}))
}

// PostKernel adapts a per-pixel color function into a kernel that samples
// the source uniform, the shape every post-processing program has.
func PostKernel(fn func(c mgl32.Vec4, u *Uniforms) mgl32.Vec4) Kernel {
	return func(u *Uniforms, f Fragment) []mgl32.Vec4 {
		return []mgl32.Vec4{fn(u.Sample("source", f.UV), u)}
	}
}

func mul3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func mix3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}

func normalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}

func geometryKernel(u *Uniforms, f Fragment) []mgl32.Vec4 {
	albedo := u.Vec4("baseColor")
	if u.Int("hasAlbedoTex") != 0 {
		t := u.Sample("albedoTex", f.UV)
		albedo = mgl32.Vec4{albedo[0] * t[0], albedo[1] * t[1], albedo[2] * t[2], albedo[3] * t[3]}
	}
	return []mgl32.Vec4{
		albedo,
		normalize(f.Normal).Vec4(0),
		f.Position.Vec4(1),
		{u.Float("roughness"), u.Float("metallic"), float32(u.Int("lit")), 1},
	}
}

func skyKernel(u *Uniforms, f Fragment) []mgl32.Vec4 {
	ray := u.Mat4("invViewProj").Mul4x1(mgl32.Vec4{f.UV[0]*2 - 1, f.UV[1]*2 - 1, 1, 1})
	t := normalize(ray.Vec3().Mul(1 / ray[3]))[1]
	var color mgl32.Vec3
	if t >= 0 {
		color = mix3(u.Vec3("horizon"), u.Vec3("zenith"), t)
	} else {
		color = mix3(u.Vec3("horizon"), u.Vec3("ground"), min(-t*3, 1))
	}
	return []mgl32.Vec4{color.Vec4(1)}
}

func lightingKernel(u *Uniforms, f Fragment) []mgl32.Vec4 {
	albedo := u.Sample("gAlbedo", f.UV)
	material := u.Sample("gMaterial", f.UV)
	if material[2] < 0.5 {
		return []mgl32.Vec4{albedo}
	}
	n := normalize(u.Sample("gNormal", f.UV).Vec3())
	p := u.Sample("gPosition", f.UV).Vec3()
	v := normalize(u.Vec3("cameraPos").Sub(p))
	shininess := 128*(1-material[0]) + 2*material[0]
	far := u.Float("farPlane")

	base := albedo.Vec3()
	color := mul3(u.Vec3("ambient"), base)
	count := min(u.Int("lightCount"), u.Len("lightPos"))
	for i := 0; i < count; i++ {
		toLight := u.Vec3At("lightPos", i).Sub(p)
		dist := toLight.Len()
		if dist > far {
			continue
		}
		l := toLight.Mul(1 / dist)
		atten := u.FloatAt("lightIntensity", i) / (1 + dist*dist)
		diff := max(n.Dot(l), 0)
		h := normalize(l.Add(v))
		spec := float32(math.Pow(float64(max(n.Dot(h), 0)), float64(shininess))) * (1 - material[0])
		diffuse := base.Mul(1 - material[1])
		f0 := mix3(mgl32.Vec3{0.04, 0.04, 0.04}, base, material[1])
		contrib := diffuse.Mul(diff).Add(f0.Mul(spec))
		color = color.Add(mul3(contrib, u.Vec3At("lightColor", i)).Mul(atten))
	}
	return []mgl32.Vec4{color.Vec4(albedo[3])}
}
