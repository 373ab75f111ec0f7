package receipt

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register the webp decoder for imaging.Open
)

// minHeight is the height small receipts are upscaled to before OCR.
const minHeight = 1200

// prepare converts img to grayscale, upscales short images and boosts
// contrast, which is what tesseract reads best on phone photos.
func prepare(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	if gray.Bounds().Dy() < minHeight*2/3 {
		gray = imaging.Resize(gray, 0, minHeight, imaging.Lanczos)
	}
	return imaging.AdjustContrast(gray, 20)
}

// adaptiveThreshold binarizes img against the mean of a window around each
// pixel. It recovers text on unevenly lit photos where a global threshold
// loses whole regions.
func adaptiveThreshold(img image.Image, window, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	lum := make([]int, w*h)
	integral := make([]int, w*h)
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			v := int((r + g + bl) / 3 >> 8)
			lum[y*w+x] = v
			row += v
			if y == 0 {
				integral[y*w+x] = row
			} else {
				integral[y*w+x] = integral[(y-1)*w+x] + row
			}
		}
	}
	at := func(x, y int) int {
		if x < 0 || y < 0 {
			return 0
		}
		return integral[y*w+x]
	}

	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	half := window / 2
	black := color.NRGBA{0, 0, 0, 255}
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half, w-1)
			sum := at(x1, y1) - at(x0-1, y1) - at(x1, y0-1) + at(x0-1, y0-1)
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			if lum[y*w+x] < mean-bias {
				out.Set(x, y, black)
			}
		}
	}
	return out
}
