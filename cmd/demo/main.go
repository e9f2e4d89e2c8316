package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/core"
	"deferred-engine/core/window"
	"deferred-engine/internal/opengl"
	"deferred-engine/renderer"
	"deferred-engine/scene"
	"deferred-engine/shader"
	"deferred-engine/shaders"
)

var (
	configPath = flag.String("config", "engine.toml", "path to the TOML engine config")
	shaderDir  = flag.String("shaders", "", "directory holding geometry.vert/geometry.frag; empty uses the built-in program")
	modelPath  = flag.String("model", "", "optional .obj, .gltf or .glb placed at the origin")
	scenePath  = flag.String("scene", "", "TOML scene file to render instead of the built-in scene")
	savePath   = flag.String("save", "", "write the scene to this TOML file on exit")
)

func main() {
	flag.Parse()
	logger := core.Logger()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("load config", "err", err)
	}
	core.SetLogLevel(cfg.LogLevel)

	win, err := window.New(cfg.Window)
	if err != nil {
		logger.Fatal("create window", "err", err)
	}
	defer win.Destroy()

	dev, err := opengl.NewDevice()
	if err != nil {
		logger.Fatal("init device", "err", err)
	}
	defer dev.Destroy()

	opts := renderer.OptionsFromConfig(cfg)
	opts.Size = win.Size()
	opts.Logger = logger
	ctx, err := renderer.NewRenderContext(dev, opts)
	if err != nil {
		os.Exit(1)
	}
	defer ctx.Release()

	geometry, err := loadGeometryShader(dev)
	if !ctx.Policy().Handle(err) {
		return
	}
	defer geometry.Delete()

	cam := scene.NewOrbitCamera(mgl32.Vec3{0, 0.5, 0}, 8, mgl32.DegToRad(60), win.Size().Aspect())
	var (
		s   *scene.Scene
		sun *scene.Light
	)
	if *scenePath != "" {
		if s, err = scene.LoadScene(*scenePath, geometry); err != nil {
			logger.Fatal("load scene", "err", err)
		}
		if s.Camera == nil {
			s.SetCamera(&cam.Camera)
		}
		s.Camera.UpdateAspectRatio(win.Size())
	} else {
		s, sun = buildScene(&cam.Camera, geometry)
	}
	if *modelPath != "" {
		if err := addModel(s, *modelPath, geometry); err != nil {
			logger.Error("load model", "path", *modelPath, "err", err)
		}
	}

	stages := newStageToggles(ctx)
	for _, name := range cfg.PostProcess {
		stages.toggle(name)
	}

	win.OnResize(func(width, height int) {
		ctx.Resize(width, height)
		s.Camera.UpdateAspectRatio(core.Size{W: width, H: height})
	})

	loop := renderer.NewLoop(ctx, s, win.Input, cfg.TargetFPS)
	loop.Swap = win.SwapBuffers
	loop.Poll = win.PollEvents
	loop.ShouldClose = func() bool { return win.ShouldClose() || win.Input.IsDown(window.KeyEscape) }

	if cfg.WatchShaders && *shaderDir != "" {
		w, err := shader.NewWatcher(logger)
		if err != nil {
			logger.Warn("shader hot reload disabled", "err", err)
		} else {
			defer w.Close()
			if err := w.Add(geometry); err != nil {
				logger.Warn("watch shader", "shader", geometry.Name, "err", err)
			}
			loop.Watcher = w
		}
	}

	day := NewDayNight()
	title := &titleBar{base: cfg.Window.Title}
	loop.Update = func(dt time.Duration) {
		in := win.Input
		step := float32(dt.Seconds())
		switch {
		case in.IsDown(window.KeyA):
			cam.Orbit(-step, 0)
		case in.IsDown(window.KeyD):
			cam.Orbit(step, 0)
		}
		switch {
		case in.IsDown(window.KeyW):
			cam.Zoom(-4 * step)
		case in.IsDown(window.KeyS):
			cam.Zoom(4 * step)
		}
		if in.WasPressed(window.KeySpace) {
			day.Active = !day.Active
		}
		if in.WasPressed(window.KeyL) {
			addOrbitLight(s, len(s.Lights))
		}
		if in.WasPressed(window.Key1) {
			stages.toggle("grayscale")
		}
		if in.WasPressed(window.Key2) {
			stages.toggle("invert")
		}
		if in.WasPressed(window.Key3) {
			stages.toggle("tonemap")
		}

		day.Update(step)
		day.Apply(ctx, s, sun)
		title.update(win, loop, day, stages)
	}

	logger.Info("running", "fps", cfg.TargetFPS, "stages", stages.names())
	loop.Run()

	if *savePath != "" {
		if err := scene.SaveScene(s, *savePath); err != nil {
			logger.Error("save scene", "err", err)
		}
	}
}

func addModel(s *scene.Scene, path string, geometry *shader.Shader) error {
	var (
		models []*scene.Drawable
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		models, err = scene.LoadGLTF(path, geometry)
	default:
		models, err = scene.LoadOBJ(path, geometry)
	}
	for _, d := range models {
		s.Add(d)
	}
	return err
}

func loadGeometryShader(dev *opengl.Device) (*shader.Shader, error) {
	if *shaderDir == "" {
		return shader.Compile(dev, "geometry", shader.Source{Vertex: shaders.GeometryVert, Fragment: shaders.GeometryFrag})
	}
	return shader.Load(dev, "geometry", shader.Paths{
		Vertex:   filepath.Join(*shaderDir, "geometry.vert"),
		Fragment: filepath.Join(*shaderDir, "geometry.frag"),
	})
}

func buildScene(cam *scene.Camera, geometry *shader.Shader) (*scene.Scene, *scene.Light) {
	s := scene.NewScene(cam)
	s.Sky = scene.DefaultSky()

	ground := scene.NewDrawable("ground", scene.CreatePlane(20, 20, 4),
		scene.NewPBRMaterial("ground", geometry, core.Color{R: 0.35, G: 0.4, B: 0.35, A: 1}, 0, 0.9))
	s.Add(ground)

	cube := scene.NewDrawable("cube", scene.CreateCube(1.5),
		scene.NewPBRMaterial("copper", geometry, core.Color{R: 0.95, G: 0.64, B: 0.54, A: 1}, 0.8, 0.35))
	cube.SetPosition(mgl32.Vec3{-2, 0.75, 0})
	s.Add(cube)

	sphere := scene.NewDrawable("sphere", scene.CreateSphere(1, 32, 16),
		scene.NewMaterial("plastic", geometry, core.Color{R: 0.2, G: 0.45, B: 0.9, A: 1}))
	sphere.SetPosition(mgl32.Vec3{2, 1, 0})
	s.Add(sphere)

	moon := scene.NewDrawable("moon", scene.CreateSphere(0.3, 16, 8),
		scene.NewMaterial("emissive", geometry, core.ColorYellow))
	moon.Material.Lit = false
	moon.Parent = sphere
	moon.SetPosition(mgl32.Vec3{0, 1.5, 0})
	s.Add(moon)

	sun := scene.NewLight(mgl32.Vec3{0, 12, 4}, core.ColorWhite, 60)
	s.AddLight(sun)
	for i := 0; i < 3; i++ {
		addOrbitLight(s, i)
	}
	return s, sun
}

var lightColors = []core.Color{core.ColorRed, core.ColorGreen, core.ColorBlue, core.ColorYellow}

func addOrbitLight(s *scene.Scene, i int) {
	angle := float32(i) * 2.4
	pos := mgl32.Vec3{4 * cosf(angle), 1.5, 4 * sinf(angle)}
	s.AddLight(scene.NewLight(pos, lightColors[i%len(lightColors)], 6))
}
