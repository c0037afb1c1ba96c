package vision

import (
	"image"

	"github.com/disintegration/imaging"
)

func preprocessForDetection(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{128.0, 128.0, 128.0})
}

func preprocessForEmbedding(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
}

// imageToFloat32CHW resizes img and lays it out as normalised CHW floats:
//
//	pixel = (pixel - mean) / std
func imageToFloat32CHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := imaging.Resize(img, targetW, targetH, imaging.Linear)
	w, h := targetW, targetH
	data := make([]float32, 3*h*w)

	pix := resized.Pix
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*resized.Stride + x*4
			idx := y*w + x
			data[0*h*w+idx] = (float32(pix[off]) - mean[0]) / std[0]
			data[1*h*w+idx] = (float32(pix[off+1]) - mean[1]) / std[1]
			data[2*h*w+idx] = (float32(pix[off+2]) - mean[2]) / std[2]
		}
	}

	return data
}

// cropFace cuts the bounding box out of img with 10% padding on each side,
// clamped to the image. It returns nil for an empty box.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	bounds := img.Bounds()

	rect := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])).Intersect(bounds)
	if rect.Empty() {
		return nil
	}

	padW := rect.Dx() / 10
	padH := rect.Dy() / 10
	rect = image.Rect(rect.Min.X-padW, rect.Min.Y-padH, rect.Max.X+padW, rect.Max.Y+padH).Intersect(bounds)

	return imaging.Crop(img, rect)
}
