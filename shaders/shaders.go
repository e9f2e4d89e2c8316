// Package shaders holds the GLSL source of the built-in programs.
//
// Every full-screen program pairs its fragment stage with FullscreenVert.
// Sources are plain strings; backends append the NUL terminator they need.
package shaders

// MaxLights is the compiled-in capacity of the lighting arrays.
const MaxLights = 32

// FullscreenVert emits one triangle covering the viewport from gl_VertexID,
// placing every fragment at NDC depth derived from the depth uniform so the
// window-space depth equals depth exactly.
const FullscreenVert = `
#version 410 core
uniform float depth;
out vec2 fragUV;
void main() {
    const vec2 pos[3] = vec2[3](
        vec2(-1.0, -1.0),
        vec2( 3.0, -1.0),
        vec2(-1.0,  3.0)
    );
    gl_Position = vec4(pos[gl_VertexID], depth * 2.0 - 1.0, 1.0);
    fragUV      = pos[gl_VertexID] * 0.5 + 0.5;
}
`

// GeometryVert transforms mesh vertices. rotation is the rotation-only part
// of the model matrix and is used for normals.
const GeometryVert = `
#version 410 core
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec3 inNormal;
layout(location = 2) in vec2 inUV;

uniform mat4 mvp;
uniform mat4 model;
uniform mat4 rotation;

out vec3 fragWorldPos;
out vec3 fragNormal;
out vec2 fragUV;

void main() {
    vec4 world   = model * vec4(inPosition, 1.0);
    fragWorldPos = world.xyz;
    fragNormal   = (rotation * vec4(inNormal, 0.0)).xyz;
    fragUV       = inUV;
    gl_Position  = mvp * vec4(inPosition, 1.0);
}
`

// GeometryFrag writes the G-buffer: 0 albedo, 1 normal, 2 world position,
// 3 material properties (roughness, metallic, lit, 1).
const GeometryFrag = `
#version 410 core
in vec3 fragWorldPos;
in vec3 fragNormal;
in vec2 fragUV;

layout(location = 0) out vec4 outAlbedo;
layout(location = 1) out vec4 outNormal;
layout(location = 2) out vec4 outPosition;
layout(location = 3) out vec4 outMaterial;

uniform vec4      baseColor;
uniform float     roughness;
uniform float     metallic;
uniform int       lit;
uniform sampler2D albedoTex;
uniform int       hasAlbedoTex;

void main() {
    vec4 albedo = baseColor;
    if (hasAlbedoTex != 0) {
        albedo *= texture(albedoTex, fragUV);
    }
    outAlbedo   = albedo;
    outNormal   = vec4(normalize(fragNormal), 0.0);
    outPosition = vec4(fragWorldPos, 1.0);
    outMaterial = vec4(roughness, metallic, float(lit), 1.0);
}
`

// SkyFrag shades the background with a three-colour gradient along the view
// ray. invViewProj is inverse(projection * viewRotation). The fragment depth
// is written from the depth uniform directly, since depth * 2.0 - 1.0 in the
// vertex stage rounds values that small to the far plane.
const SkyFrag = `
#version 410 core
in  vec2 fragUV;
out vec4 outColor;

uniform float depth;
uniform mat4  invViewProj;
uniform vec3 zenith;
uniform vec3 horizon;
uniform vec3 ground;

void main() {
    vec4 ray = invViewProj * vec4(fragUV * 2.0 - 1.0, 1.0, 1.0);
    float t  = normalize(ray.xyz / ray.w).y;
    vec3 color;
    if (t >= 0.0) {
        color = mix(horizon, zenith, t);
    } else {
        color = mix(horizon, ground, min(-t * 3.0, 1.0));
    }
    outColor     = vec4(color, 1.0);
    gl_FragDepth = depth;
}
`

// LightingFrag resolves the G-buffer against point lights passed as parallel
// arrays. Pixels whose material lit flag is zero pass albedo through.
const LightingFrag = `
#version 410 core
#define MAX_LIGHTS 32
in  vec2 fragUV;
out vec4 outColor;

uniform sampler2D gAlbedo;
uniform sampler2D gNormal;
uniform sampler2D gPosition;
uniform sampler2D gMaterial;

uniform int   lightCount;
uniform vec3  lightPos[MAX_LIGHTS];
uniform vec3  lightColor[MAX_LIGHTS];
uniform float lightIntensity[MAX_LIGHTS];

uniform vec3  ambient;
uniform vec3  cameraPos;
uniform mat4  cameraRotation;
uniform float farPlane;
uniform mat4  projection;

void main() {
    vec4 albedo   = texture(gAlbedo, fragUV);
    vec4 material = texture(gMaterial, fragUV);
    if (material.z < 0.5) {
        outColor = albedo;
        return;
    }
    vec3 N = normalize(texture(gNormal, fragUV).xyz);
    vec3 P = texture(gPosition, fragUV).xyz;
    vec3 V = normalize(cameraPos - P);
    float shininess = mix(128.0, 2.0, material.x);

    vec3 color = ambient * albedo.rgb;
    for (int i = 0; i < lightCount && i < MAX_LIGHTS; i++) {
        vec3  toLight = lightPos[i] - P;
        float dist    = length(toLight);
        if (dist > farPlane) continue;
        vec3  L       = toLight / dist;
        float atten   = lightIntensity[i] / (1.0 + dist * dist);
        float diff    = max(dot(N, L), 0.0);
        vec3  H       = normalize(L + V);
        float spec    = pow(max(dot(N, H), 0.0), shininess) * (1.0 - material.x);
        vec3  diffuse = albedo.rgb * (1.0 - material.y);
        vec3  F0      = mix(vec3(0.04), albedo.rgb, material.y);
        color += (diffuse * diff + F0 * spec) * lightColor[i] * atten;
    }
    outColor = vec4(color, albedo.a);
}
`

// CopyFrag passes the source image through unchanged.
const CopyFrag = `
#version 410 core
in  vec2 fragUV;
out vec4 outColor;
uniform sampler2D source;
uniform vec2      windowSize;
void main() {
    outColor = texture(source, fragUV);
}
`

// InvertFrag inverts rgb and keeps alpha.
const InvertFrag = `
#version 410 core
in  vec2 fragUV;
out vec4 outColor;
uniform sampler2D source;
uniform vec2      windowSize;
void main() {
    vec4 c   = texture(source, fragUV);
    outColor = vec4(1.0 - c.rgb, c.a);
}
`

// GrayscaleFrag replaces rgb with Rec. 709 luma.
const GrayscaleFrag = `
#version 410 core
in  vec2 fragUV;
out vec4 outColor;
uniform sampler2D source;
uniform vec2      windowSize;
void main() {
    vec4  c  = texture(source, fragUV);
    float l  = dot(c.rgb, vec3(0.2126, 0.7152, 0.0722));
    outColor = vec4(vec3(l), c.a);
}
`

// ToneMapFrag applies exposure, Reinhard-style mapping and gamma 2.2.
const ToneMapFrag = `
#version 410 core
in  vec2 fragUV;
out vec4 outColor;
uniform sampler2D source;
uniform vec2      windowSize;
uniform float     exposure;
void main() {
    vec4 c      = texture(source, fragUV);
    vec3 mapped = vec3(1.0) - exp(-c.rgb * exposure);
    mapped      = pow(mapped, vec3(1.0 / 2.2));
    outColor    = vec4(mapped, c.a);
}
`
