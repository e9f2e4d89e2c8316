package shader

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/internal/gpu"
)

// ValueType is the GLSL type a Value uploads as.
type ValueType int

const (
	TypeFloat ValueType = iota
	TypeInt
	TypeVec2
	TypeVec3
	TypeVec4
	TypeMat4
	TypeTexture
)

var typeNames = [...]string{"float", "int", "vec2", "vec3", "vec4", "mat4", "texture"}

func (t ValueType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

func (t ValueType) components() int {
	switch t {
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4:
		return 4
	case TypeMat4:
		return 16
	}
	return 1
}

// Mode says how an update combines with the value already stored.
type Mode int

const (
	Set Mode = iota
	Add
	Multiply
	Divide
)

var (
	ErrTypeMismatch    = errors.New("uniform type mismatch")
	ErrModeUnsupported = errors.New("update mode not supported for type")
	ErrDivideByZero    = errors.New("division by zero")
)

// Value is one uniform value. Numeric types are stored as float32
// components; ints are converted on upload.
type Value struct {
	typ ValueType
	v   [16]float32
	tex gpu.Texture
}

func Float(f float32) Value { return Value{typ: TypeFloat, v: [16]float32{f}} }
func Int(i int32) Value     { return Value{typ: TypeInt, v: [16]float32{float32(i)}} }

func Vec2(v mgl32.Vec2) Value {
	out := Value{typ: TypeVec2}
	copy(out.v[:], v[:])
	return out
}

func Vec3(v mgl32.Vec3) Value {
	out := Value{typ: TypeVec3}
	copy(out.v[:], v[:])
	return out
}

func Vec4(v mgl32.Vec4) Value {
	out := Value{typ: TypeVec4}
	copy(out.v[:], v[:])
	return out
}

func Mat4(m mgl32.Mat4) Value { return Value{typ: TypeMat4, v: m} }

// Texture binds tex to the next free texture unit and uploads the unit index.
func Texture(tex gpu.Texture) Value { return Value{typ: TypeTexture, tex: tex} }

func (v Value) Type() ValueType { return v.typ }

func (v Value) Float() float32         { return v.v[0] }
func (v Value) Int() int32             { return int32(v.v[0]) }
func (v Value) Vec2() mgl32.Vec2       { return mgl32.Vec2{v.v[0], v.v[1]} }
func (v Value) Vec3() mgl32.Vec3       { return mgl32.Vec3{v.v[0], v.v[1], v.v[2]} }
func (v Value) Vec4() mgl32.Vec4       { return mgl32.Vec4{v.v[0], v.v[1], v.v[2], v.v[3]} }
func (v Value) Mat4() mgl32.Mat4       { return v.v }
func (v Value) TextureID() gpu.Texture { return v.tex }

// Combine applies mode with operand to v, component-wise. Textures only
// accept Set; operands must have v's type.
func (v Value) Combine(mode Mode, operand Value) (Value, error) {
	if mode == Set {
		return operand, nil
	}
	if v.typ != operand.typ {
		return v, fmt.Errorf("%w: %s with %s", ErrTypeMismatch, v.typ, operand.typ)
	}
	if v.typ == TypeTexture {
		return v, fmt.Errorf("%w: %s", ErrModeUnsupported, v.typ)
	}
	out := v
	n := v.typ.components()
	for i := 0; i < n; i++ {
		switch mode {
		case Add:
			out.v[i] += operand.v[i]
		case Multiply:
			out.v[i] *= operand.v[i]
		case Divide:
			if operand.v[i] == 0 {
				return v, fmt.Errorf("%s component %d: %w", v.typ, i, ErrDivideByZero)
			}
			out.v[i] /= operand.v[i]
		default:
			return v, fmt.Errorf("%w: mode %d", ErrModeUnsupported, mode)
		}
	}
	if v.typ == TypeInt {
		out.v[0] = float32(int32(out.v[0]))
	}
	return out, nil
}

func (v Value) upload(dev gpu.Device, loc gpu.Location, unit func() int) {
	switch v.typ {
	case TypeFloat:
		dev.Uniform1f(loc, v.v[0])
	case TypeInt:
		dev.Uniform1i(loc, int32(v.v[0]))
	case TypeVec2:
		dev.Uniform2f(loc, v.Vec2())
	case TypeVec3:
		dev.Uniform3f(loc, v.Vec3())
	case TypeVec4:
		dev.Uniform4f(loc, v.Vec4())
	case TypeMat4:
		dev.UniformMatrix4(loc, v.Mat4())
	case TypeTexture:
		u := unit()
		dev.BindTexture(u, v.tex)
		dev.Uniform1i(loc, int32(u))
	}
}

// Uniforms is a named set of values applied in insertion order.
type Uniforms struct {
	values map[string]Value
	order  []string
}

func NewUniforms() *Uniforms {
	return &Uniforms{values: make(map[string]Value)}
}

// Update stores value under name. For a name not yet present every mode acts
// as Set.
func (u *Uniforms) Update(name string, value Value, mode Mode) error {
	if u.values == nil {
		u.values = make(map[string]Value)
	}
	cur, ok := u.values[name]
	if !ok {
		u.values[name] = value
		u.order = append(u.order, name)
		return nil
	}
	next, err := cur.Combine(mode, value)
	if err != nil {
		return fmt.Errorf("uniform %q: %w", name, err)
	}
	u.values[name] = next
	return nil
}

func (u *Uniforms) Get(name string) (Value, bool) {
	v, ok := u.values[name]
	return v, ok
}

func (u *Uniforms) Delete(name string) {
	if _, ok := u.values[name]; !ok {
		return
	}
	delete(u.values, name)
	for i, n := range u.order {
		if n == name {
			u.order = append(u.order[:i], u.order[i+1:]...)
			break
		}
	}
}

func (u *Uniforms) Len() int { return len(u.order) }

// Names returns the stored names in insertion order.
func (u *Uniforms) Names() []string {
	return append([]string(nil), u.order...)
}

// Apply uploads every value through b. Unresolved names are skipped and
// reported in the joined error; the rest are still uploaded.
func (u *Uniforms) Apply(b *Binding) error {
	var errs []error
	for _, name := range u.order {
		if err := b.Set(name, u.values[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
