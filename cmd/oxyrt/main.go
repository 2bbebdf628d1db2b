package main

import (
	"os"
	"runtime"

	"github.com/urfave/cli"
)

// glfw must run on the process main thread
func init() {
	runtime.LockOSThread()
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "oxyrt"
	app.Usage = "ray trace demo scenes on a software ray-tracing session"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "log-level",
			Value: "notice",
			Usage: "log level: debug, info, notice, warning or error",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render frames headless and write the last one as a PNG",
			Description: `
Build a demo scene, run the requested number of frames through the ray tracer
and write the final frame to disk. A frame statistics table is logged at the end.`,
			Flags: append(sceneFlags(),
				cli.IntFlag{
					Name:  "frames, n",
					Value: 1,
					Usage: "number of frames to render",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
			),
			Action: RenderFrames,
		},
		{
			Name:   "run",
			Usage:  "open a window and render interactively",
			Flags:  sceneFlags(),
			Action: RunInteractive,
		},
		{
			Name:   "caps",
			Usage:  "print the ray-tracing session capabilities",
			Flags:  []cli.Flag{workersFlag()},
			Action: ListCapabilities,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func workersFlag() cli.Flag {
	return cli.IntFlag{
		Name:  "workers",
		Value: 0,
		Usage: "ray dispatch workers (0 = one per CPU)",
	}
}

func sceneFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Value: 640,
			Usage: "frame width",
		},
		cli.IntFlag{
			Name:  "height",
			Value: 360,
			Usage: "frame height",
		},
		cli.StringFlag{
			Name:  "scene",
			Value: "showcase",
			Usage: "demo scene: showcase or grid",
		},
		cli.IntFlag{
			Name:  "grid-size",
			Value: 6,
			Usage: "cubes per side for the grid scene",
		},
		cli.BoolTFlag{
			Name:  "shadows",
			Usage: "trace shadow rays from the scene light",
		},
		cli.IntFlag{
			Name:  "soft-shadows",
			Value: 0,
			Usage: "jittered shadow rays per hit (0 = hard shadows)",
		},
		cli.BoolFlag{
			Name:  "shadow-ray-type",
			Usage: "compile the dedicated shadow hit group and miss program",
		},
		cli.StringFlag{
			Name:  "sampler",
			Value: "anisotropic",
			Usage: "texture sampler: anisotropic, linear or point",
		},
		cli.StringFlag{
			Name:  "texture, t",
			Usage: "PNG or JPEG applied to textured objects instead of the checker",
		},
		workersFlag(),
	}
}
