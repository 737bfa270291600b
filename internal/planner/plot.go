package planner

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// RenderPNG draws the field outline and the planar projection of wps as a
// PNG image onto w.
func RenderPNG(w io.Writer, f Field, wps []mgl64.Vec3, title string) error {
	if len(wps) == 0 {
		return fmt.Errorf("no waypoints to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	outline, err := plotter.NewLine(plotter.XYs{
		{X: f.Min[0], Y: f.Min[1]},
		{X: f.Max[0], Y: f.Min[1]},
		{X: f.Max[0], Y: f.Max[1]},
		{X: f.Min[0], Y: f.Max[1]},
		{X: f.Min[0], Y: f.Min[1]},
	})
	if err != nil {
		return err
	}
	outline.LineStyle.Color = color.RGBA{G: 140, A: 255}
	outline.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	pts := make(plotter.XYs, len(wps))
	for i, wp := range wps {
		pts[i].X = wp[0]
		pts[i].Y = wp[1]
	}
	path, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	path.LineStyle.Width = vg.Points(1.5)
	path.LineStyle.Color = color.RGBA{R: 200, A: 255}

	marks, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	marks.GlyphStyle.Radius = vg.Points(2.5)

	p.Add(outline, path, marks)
	p.Legend.Add("field", outline)
	p.Legend.Add("path", path)

	c := vgimg.NewWith(vgimg.UseWH(6*vg.Inch, 6*vg.Inch), vgimg.UseDPI(96))
	p.Draw(draw.New(c))
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SavePNG renders the plan to filename, creating parent directories.
func SavePNG(filename string, f Field, wps []mgl64.Vec3, title string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	if err := RenderPNG(bw, f, wps, title); err != nil {
		return err
	}
	return bw.Flush()
}
