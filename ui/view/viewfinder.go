package view

import (
	"image"
	"strconv"
	"strings"

	"github.com/soocke/pixel-scan-go/domain/geometry"
	"github.com/soocke/pixel-scan-go/imaging"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Viewfinder is the live preview with the scan overlay drawn on top and a
// side label showing the region handed to the decoder.
type Viewfinder interface {
	UpdatePreview(img image.Image)
	UpdateRegion(img image.Image)
	// Measure reports the container and overlay bounds in container
	// coordinates; ok is false until the container is mapped.
	Measure() (container, overlay geometry.Bounds, ok bool)
	Reset()
}

type viewfinder struct {
	container   *FrameWidget
	previewLbl  *LabelWidget
	regionLbl   *LabelWidget
	relW, relH  float64
	prevPreview *Img
	prevRegion  *Img
}

const (
	viewfinderW = 400
	viewfinderH = 300
	overlayEdge = 3
)

// NewViewfinder grids the preview container in row and places the overlay
// bars centred inside it. relW and relH size the overlay as fractions of the
// container.
func NewViewfinder(row int, relW, relH float64) Viewfinder {
	v := &viewfinder{relW: relW, relH: relH}
	v.container = Frame(Width(viewfinderW), Height(viewfinderH), Background("#000000"), Borderwidth(1), Relief("sunken"))
	Grid(v.container, Row(row), Column(0), Columnspan(4), Sticky("nsew"), Padx("0.4m"), Pady("0.4m"))

	pngBytes := imaging.EncodePNG(image.NewRGBA(image.Rect(0, 0, viewfinderW, viewfinderH)))
	v.prevPreview = NewPhoto(Data(pngBytes))
	v.previewLbl = v.container.Label(Image(v.prevPreview), Borderwidth(0))
	Place(v.previewLbl, Relx(0), Rely(0), Relwidth(1), Relheight(1))

	x0, y0 := (1-relW)/2, (1-relH)/2
	bar := func() *FrameWidget { return v.container.Frame(Background("#22c55e")) }
	Place(bar(), Relx(x0), Rely(y0), Relwidth(relW), Height(overlayEdge))
	Place(bar(), Relx(x0), Rely(y0+relH), Relwidth(relW), Height(overlayEdge), Anchor("sw"))
	Place(bar(), Relx(x0), Rely(y0), Relheight(relH), Width(overlayEdge))
	Place(bar(), Relx(x0+relW), Rely(y0), Relheight(relH), Width(overlayEdge), Anchor("ne"))

	small := imaging.EncodePNG(image.NewRGBA(image.Rect(0, 0, 200, 120)))
	v.prevRegion = NewPhoto(Data(small))
	v.regionLbl = Label(Image(v.prevRegion), Borderwidth(1), Relief("sunken"))
	Grid(v.regionLbl, Row(row), Column(4), Sticky("n"), Padx("0.4m"), Pady("0.4m"))
	return v
}

func (v *viewfinder) UpdatePreview(img image.Image) {
	if v.previewLbl == nil || img == nil {
		return
	}
	v.prevPreview = replacePhoto(v.previewLbl, v.prevPreview, img)
}

func (v *viewfinder) UpdateRegion(img image.Image) {
	if v.regionLbl == nil || img == nil {
		return
	}
	v.prevRegion = replacePhoto(v.regionLbl, v.prevRegion, img)
}

func (v *viewfinder) Reset() {
	v.UpdatePreview(image.NewRGBA(image.Rect(0, 0, viewfinderW, viewfinderH)))
	v.UpdateRegion(image.NewRGBA(image.Rect(0, 0, 200, 120)))
}

func (v *viewfinder) Measure() (geometry.Bounds, geometry.Bounds, bool) {
	if v.container == nil {
		return geometry.Bounds{}, geometry.Bounds{}, false
	}
	w := winfoInt(WinfoWidth(v.container.Window))
	h := winfoInt(WinfoHeight(v.container.Window))
	if w <= 1 || h <= 1 {
		return geometry.Bounds{}, geometry.Bounds{}, false
	}
	container, overlay := overlayBounds(float64(w), float64(h), v.relW, v.relH)
	return container, overlay, true
}

// overlayBounds mirrors the Place options used for the overlay bars.
func overlayBounds(w, h, relW, relH float64) (container, overlay geometry.Bounds) {
	container = geometry.Bounds{Width: w, Height: h}
	overlay = geometry.Bounds{
		Left:   w * (1 - relW) / 2,
		Top:    h * (1 - relH) / 2,
		Width:  w * relW,
		Height: h * relH,
	}
	return container, overlay
}

// replacePhoto swaps the label image and frees the previous photo.
func replacePhoto(lbl *LabelWidget, prev *Img, img image.Image) *Img {
	if prev != nil {
		prev.Delete()
	}
	photo := NewPhoto(Data(imaging.EncodePNG(img)))
	lbl.Configure(Image(photo))
	return photo
}

func winfoInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
