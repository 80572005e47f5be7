// modelinfo is a CLI utility for inspecting OBJ, MTL and DAE assets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/assets"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/pkg/formats"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "materials", "mtl":
		cmdMaterials(args)
	case "tree":
		cmdTree(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`modelinfo - Wavefront and Collada asset inspector

Usage:
  modelinfo <command> [options]

Commands:
  info <model> [file.mtl]   Load a model and show its totals
  materials <file.mtl>      List the materials of a library
  tree <file.dae>           Show the node hierarchy and clips

Models may be local paths or http(s) URLs.

Examples:
  modelinfo info vase.obj vase.mtl
  modelinfo info -timeout 5s https://example.com/walk.dae
  modelinfo materials vase.mtl
  modelinfo tree walk.dae`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "Request timeout for remote assets")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo info <model> [file.mtl]")
		os.Exit(1)
	}

	fetcher := assets.NewFetcher(assets.Options{Root: ".", Timeout: *timeout}, zap.NewNop())
	loader := model.NewLoader(fetcher, zap.NewNop())

	m, err := loader.Load(context.Background(), fs.Arg(0), fs.Arg(1), "")
	if err != nil {
		fail(err)
	}

	size := m.Bounds.Size()
	center := m.Bounds.Center()
	fmt.Printf("Model:     %s\n", fs.Arg(0))
	fmt.Printf("Meshes:    %d (%d skinned)\n", m.Meshes, m.Skinned)
	fmt.Printf("Triangles: %d\n", m.Triangles)
	fmt.Printf("Size:      %.3f x %.3f x %.3f\n", size.X, size.Y, size.Z)
	fmt.Printf("Center:    %.3f, %.3f, %.3f\n", center.X, center.Y, center.Z)

	if len(m.Clips) > 0 {
		fmt.Println()
		fmt.Println("Clips:")
		for _, c := range m.Clips {
			fmt.Printf("  %-20s %6.2fs  %d tracks\n", c.Name, c.Duration, len(c.Tracks))
		}
	}
}

func cmdMaterials(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo materials <file.mtl>")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fail(err)
	}
	lib, err := formats.ParseMTL(data)
	if err != nil {
		fail(err)
	}

	mats := append([]*formats.Material(nil), lib.Materials...)
	sort.Slice(mats, func(i, j int) bool { return mats[i].Name < mats[j].Name })
	for _, mat := range mats {
		fmt.Printf("%-24s Kd %.2f %.2f %.2f  d %.2f", mat.Name,
			mat.Diffuse[0], mat.Diffuse[1], mat.Diffuse[2], mat.Opacity)
		if mat.DiffuseMap != "" {
			fmt.Printf("  map %s", mat.DiffuseMap)
		}
		fmt.Println()
	}
	fmt.Printf("\n%d materials, %d textures\n", len(mats), len(lib.Textures()))
}

func cmdTree(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo tree <file.dae>")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fail(err)
	}
	doc, err := formats.ParseDAE(data)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Up axis: %s\n\n", doc.UpAxis)
	depth := make(map[*formats.DAENode]int)
	doc.Walk(func(n, parent *formats.DAENode) {
		if parent != nil {
			depth[n] = depth[parent] + 1
		}
		label := n.Name
		if label == "" {
			label = n.ID
		}
		var tags []string
		if n.Joint {
			tags = append(tags, "joint")
		}
		for _, in := range n.Geometries {
			tags = append(tags, fmt.Sprintf("mesh %s (%d tris)", in.URL, triangles(doc, in.URL)))
		}
		for _, in := range n.Skins {
			s := doc.Skins[in.URL]
			tags = append(tags, fmt.Sprintf("skin %s (%d tris, %d joints)", s.Geometry, triangles(doc, s.Geometry), len(s.Joints)))
		}
		fmt.Printf("%s%s", strings.Repeat("  ", depth[n]), label)
		if len(tags) > 0 {
			fmt.Printf("  [%s]", strings.Join(tags, ", "))
		}
		fmt.Println()
	})

	if len(doc.Materials) > 0 {
		fmt.Println()
		fmt.Println("Materials:")
		ids := make([]string, 0, len(doc.Materials))
		for id := range doc.Materials {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			m := doc.Materials[id]
			fmt.Printf("  %-20s Kd %.2f %.2f %.2f  d %.2f", id, m.Diffuse[0], m.Diffuse[1], m.Diffuse[2], m.Opacity)
			if m.Texture != "" {
				fmt.Printf("  map %s", m.Texture)
			}
			fmt.Println()
		}
	}

	if len(doc.Clips) > 0 {
		fmt.Println()
		fmt.Println("Clips:")
		for _, c := range doc.Clips {
			fmt.Printf("  %-20s %6.2fs - %.2fs  %d channels\n", c.Name, c.Start, c.End, len(c.Channels))
		}
	}
}

func triangles(doc *formats.DAE, id string) int {
	if g, ok := doc.Geometries[id]; ok {
		return g.TriangleCount()
	}
	return 0
}
