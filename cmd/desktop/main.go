package main

import (
	"image/color"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"bootcode/pkg/asm"
	"bootcode/pkg/grid"
	"bootcode/pkg/utils"
)

const (
	screenWidth  = 640
	screenHeight = 480
	cellWidth    = 128
	cellHeight   = 16
	listingTop   = 24
	columns      = screenWidth / cellWidth
	visibleRows  = (screenHeight - listingTop - cellHeight) / cellHeight
)

var (
	colorText    = color.RGBA{0xC2, 0xC3, 0xC7, 0xFF}
	colorVisited = color.RGBA{0x1D, 0x2B, 0x53, 0xFF}
	colorCurrent = color.RGBA{0xFF, 0xA3, 0x00, 0xFF}
	colorPatched = color.RGBA{0x00, 0x87, 0x51, 0xFF}
)

type Game struct {
	dbg  *debugger
	face *text.GoXFace
}

func (g *Game) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.dbg.toggleRun()
	case inpututil.IsKeyJustPressed(ebiten.KeyS), inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		g.dbg.step()
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.dbg.reset()
	case inpututil.IsKeyJustPressed(ebiten.KeyF):
		g.dbg.applyRepair()
	}
	g.dbg.tick()
	return nil
}

func (g *Game) drawText(screen *ebiten.Image, s string, x, y int, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, s, g.face, op)
}

// firstRow keeps the row of the current instruction on screen.
func firstRow(pc, total int) int {
	rows := grid.Rows(total, columns)
	_, row := grid.GetGridCoords(pc, columns)
	start := row - visibleRows/2
	if start > rows-visibleRows {
		start = rows - visibleRows
	}
	if start < 0 {
		start = 0
	}
	return start
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.drawText(screen, g.dbg.status(), 4, 4, colorText)

	lines := g.dbg.lines()
	top := firstRow(g.dbg.vm.PC, len(lines))
	for i, ln := range lines {
		x, y := grid.GetGridCoords(i, columns)
		y -= top
		if y < 0 || y >= visibleRows {
			continue
		}
		px := float32(x * cellWidth)
		py := float32(listingTop + y*cellHeight)

		switch {
		case ln.Current:
			vector.DrawFilledRect(screen, px, py, cellWidth-4, cellHeight-2, colorCurrent, false)
		case ln.Patched:
			vector.DrawFilledRect(screen, px, py, cellWidth-4, cellHeight-2, colorPatched, false)
		case ln.Visited:
			vector.DrawFilledRect(screen, px, py, cellWidth-4, cellHeight-2, colorVisited, false)
		}
		g.drawText(screen, ln.Text, int(px)+2, int(py)+1, colorText)
	}

	g.drawText(screen, "space run/pause  s step  r reset  f repair", 4, screenHeight-cellHeight, colorText)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s FILE", os.Args[0])
	}
	fullPath, _, err := utils.GetPathInfo(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to resolve path: %v", err)
	}
	lines, err := utils.ReadLines(fullPath)
	if err != nil {
		log.Fatalf("Failed to read listing: %v", err)
	}
	prog, err := asm.AssembleLines(lines)
	if err != nil {
		log.Fatalf("Decoding failed: %v", err)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("bootcode debugger")

	game := &Game{
		dbg:  newDebugger(prog),
		face: text.NewGoXFace(basicfont.Face7x13),
	}
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
