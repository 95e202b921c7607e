package tumble

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type BannerKind int

const (
	BannerFall BannerKind = iota
	BannerWin
	BannerHud
)

// Banner is one overlay text entity. The rasterizer keeps Image in
// sync with Text; the renderer consumes the image.
type Banner struct {
	Kind  BannerKind
	Text  string
	Color [4]float32
	Image *image.RGBA

	rasterized string
}

// SpawnBanner creates a banner entity. The entity appears at the next
// command flush; the rasterizer fills in its image the same tick.
func SpawnBanner(cmd *Commands, kind BannerKind, text string, col [4]float32) EntityId {
	return cmd.AddEntity(Banner{
		Kind:  kind,
		Text:  text,
		Color: col,
	})
}

// DespawnBanners removes every banner of the given kind.
func DespawnBanners(cmd *Commands, kind BannerKind) {
	MakeQuery1[Banner](cmd).Map(func(eid EntityId, banner *Banner) bool {
		if banner.Kind == kind {
			cmd.RemoveEntity(eid)
		}
		return true
	})
}

func HasBanner(cmd *Commands, kind BannerKind) bool {
	found := false
	MakeQuery1[Banner](cmd).Map(func(eid EntityId, banner *Banner) bool {
		if banner.Kind == kind {
			found = true
			return false
		}
		return true
	})
	return found
}

type OverlayModule struct {
	// ShowClock spawns a HUD banner with the elapsed play time.
	ShowClock bool
}

func (m OverlayModule) Install(app *App, cmd *Commands) {
	if m.ShowClock {
		SpawnBanner(cmd, BannerHud, "Time: 00:00:00.000", [4]float32{1, 1, 1, 1})
		app.UseSystem(System(hudClockSystem).InStage(Update))
	}
	app.UseSystem(System(bannerRasterSystem).InStage(PostUpdate))
}

func hudClockSystem(timeRes *Time, cmd *Commands) {
	elapsed := timeRes.Elapsed
	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60
	millis := elapsed.Milliseconds() % 1000

	MakeQuery1[Banner](cmd).Map(func(eid EntityId, banner *Banner) bool {
		if banner.Kind == BannerHud {
			banner.Text = fmt.Sprintf("Time: %02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
		}
		return true
	})
}

// bannerRasterSystem re-renders any banner whose text changed since
// its image was last built.
func bannerRasterSystem(cmd *Commands) {
	MakeQuery1[Banner](cmd).Map(func(eid EntityId, banner *Banner) bool {
		if banner.rasterized == banner.Text && banner.Image != nil {
			return true
		}
		banner.Image = rasterizeText(banner.Text, banner.Color)
		banner.rasterized = banner.Text
		return true
	})
}

func rasterizeText(text string, col [4]float32) *image.RGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	if width < 1 {
		width = 1
	}
	height := face.Metrics().Height.Ceil()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	drawer := &font.Drawer{
		Dst: img,
		Src: image.NewUniform(color.RGBA{
			R: uint8(clamp32(col[0], 0, 1) * 255),
			G: uint8(clamp32(col[1], 0, 1) * 255),
			B: uint8(clamp32(col[2], 0, 1) * 255),
			A: uint8(clamp32(col[3], 0, 1) * 255),
		}),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: face.Metrics().Ascent},
	}
	drawer.DrawString(text)
	return img
}
