package video

import "image"

// ResizeImage nearest-neighbor resizes img to (width,height). A zero
// dimension is derived from the other to preserve aspect ratio.
//
// Grounded on the teacher's frame_extractor.go::resizeImage; kept as a
// deliberate nearest-neighbor scale (no resampling library is used for
// image scaling anywhere in the examples pack).
func ResizeImage(img image.Image, width, height int) image.Image {
	if width == 0 && height == 0 {
		return img
	}

	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	if width == 0 {
		width = (origWidth * height) / origHeight
	}
	if height == 0 {
		height = (origHeight * width) / origWidth
	}

	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			srcX := (x * origWidth) / width
			srcY := (y * origHeight) / height
			resized.Set(x, y, img.At(srcX, srcY))
		}
	}
	return resized
}
