package desktop

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
)

const sceneVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPosition;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aTexCoord;

uniform mat4 uMVP;
uniform mat4 uModel;
uniform mat3 uNormalMatrix;

out vec3 vWorldPos;
out vec3 vNormal;
out vec2 vTexCoord;

void main() {
	vec4 world = uModel * vec4(aPosition, 1.0);
	vWorldPos = world.xyz;
	vNormal = normalize(uNormalMatrix * aNormal);
	vTexCoord = aTexCoord;
	gl_Position = uMVP * vec4(aPosition, 1.0);
}
`

const sceneFragmentShader = `
#version 410 core

#define MAX_LIGHTS 4

in vec3 vWorldPos;
in vec3 vNormal;
in vec2 vTexCoord;

uniform vec3 uColor;
uniform float uOpacity;
uniform bool uUseTexture;
uniform sampler2D uTexture;
uniform bool uUnlit;

uniform vec3 uAmbient;
uniform bool uHemisphere;
uniform vec3 uSky;
uniform vec3 uGround;
uniform vec3 uHemiUp;

uniform int uDirCount;
uniform vec3 uDirDirection[MAX_LIGHTS];
uniform vec3 uDirColor[MAX_LIGHTS];

uniform int uPointCount;
uniform vec3 uPointPosition[MAX_LIGHTS];
uniform vec3 uPointColor[MAX_LIGHTS];

out vec4 FragColor;

void main() {
	vec3 base = uColor;
	float alpha = uOpacity;
	if (uUseTexture) {
		vec4 t = texture(uTexture, vTexCoord);
		base *= t.rgb;
		alpha *= t.a;
	}
	if (uUnlit) {
		FragColor = vec4(base, alpha);
		return;
	}

	vec3 n = normalize(vNormal);
	if (!gl_FrontFacing) {
		n = -n;
	}

	vec3 light = uAmbient;
	if (uHemisphere) {
		float w = 0.5 * dot(n, uHemiUp) + 0.5;
		light += mix(uGround, uSky, w);
	}
	for (int i = 0; i < uDirCount; i++) {
		light += uDirColor[i] * max(dot(n, uDirDirection[i]), 0.0);
	}
	for (int i = 0; i < uPointCount; i++) {
		vec3 l = normalize(uPointPosition[i] - vWorldPos);
		light += uPointColor[i] * max(dot(n, l), 0.0);
	}
	FragColor = vec4(base * light, alpha);
}
`

// CompileProgram compiles and links a vertex and fragment shader pair.
func CompileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vert, err := compileShader(vertexSrc, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vert)

	frag, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(frag)

	program := gl.CreateProgram()
	gl.AttachShader(program, vert)
	gl.AttachShader(program, frag)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &n)
		msg := make([]byte, n+1)
		gl.GetProgramInfoLog(program, n, nil, &msg[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link: %s", gl.GoStr(&msg[0]))
	}
	return program, nil
}

func compileShader(source string, kind uint32, name string) (uint32, error) {
	sh := gl.CreateShader(kind)
	csrc, free := gl.Strs(source + "\x00")
	gl.ShaderSource(sh, 1, csrc, nil)
	free()
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &n)
		msg := make([]byte, n+1)
		gl.GetShaderInfoLog(sh, n, nil, &msg[0])
		gl.DeleteShader(sh)
		return 0, fmt.Errorf("%s shader: %s", name, gl.GoStr(&msg[0]))
	}
	return sh, nil
}

func uniform(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}
