package main

import (
	"context"
	"errors"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"terrasync/netlink"
	"terrasync/scenesync"
)

var settingsDirty bool

// Game adapts the scene and synchronizer to ebiten's game loop.
type Game struct {
	ctx   context.Context
	scene *meshScene
	sync  *scenesync.Synchronizer
	link  *netlink.Link

	connected bool
	overlay   quadBatch
}

func newGame(ctx context.Context, scene *meshScene, sync *scenesync.Synchronizer, link *netlink.Link) *Game {
	return &Game{ctx: ctx, scene: scene, sync: sync, link: link, connected: true}
}

func (g *Game) Update() error {
	select {
	case <-g.ctx.Done():
		return ebiten.Termination
	default:
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		g.connected = !g.connected
		if g.connected {
			logInfo("reconnect requested")
			g.link.Connect()
		} else {
			logInfo("disconnect requested")
			g.link.Disconnect()
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF3) {
		gs.ShowFPS = !gs.ShowFPS
		settingsDirty = true
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.scene.Draw(screen)
	if gs.ShowFPS {
		drawFPS(screen, &g.overlay)
	}
}

// Layout keeps a 1:1 pixel mapping: the scene is resized to the window.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth <= 0 || outsideHeight <= 0 {
		return 1, 1
	}
	g.sync.Resize(outsideWidth, outsideHeight)

	if gs.WindowWidth != outsideWidth || gs.WindowHeight != outsideHeight {
		gs.WindowWidth = outsideWidth
		gs.WindowHeight = outsideHeight
		settingsDirty = true
	}
	return outsideWidth, outsideHeight
}

func runGame(g *Game) error {
	ebiten.SetWindowTitle("terrasync")
	ebiten.SetWindowSize(gs.WindowWidth, gs.WindowHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(gs.VSync)
	ebiten.SetTPS(ebiten.SyncWithFPS)

	op := &ebiten.RunGameOptions{ScreenTransparent: false}
	err := ebiten.RunGameWithOptions(g, op)
	if errors.Is(err, ebiten.Termination) {
		err = nil
	}
	if settingsDirty {
		saveSettings()
	}
	return err
}
