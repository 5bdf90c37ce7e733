package vpx

import "fmt"

// Image is a raw frame buffer in a native format (vpx_image_t).
//
// Planes[i] holds PlaneRows(i) rows of Stride[i] bytes each. Images obtained
// from an Interface must be released with Free.
type Image struct {
	Format   ImgFmt
	Width    int
	Height   int
	BitDepth int
	Planes   [][]byte
	Stride   []int

	release func()
}

// PlaneRows returns the number of rows stored in plane.
func (img *Image) PlaneRows(plane int) int {
	if plane == 0 {
		return img.Height
	}
	_, ys := img.Format.ChromaShift()
	return (img.Height + (1 << ys) - 1) >> ys
}

// Free releases the image memory. It is safe to call more than once.
func (img *Image) Free() {
	if img == nil {
		return
	}
	if img.release != nil {
		img.release()
		img.release = nil
	}
	img.Planes = nil
	img.Stride = nil
}

// AllocImage allocates an image in Go memory with every stride rounded up
// to a multiple of align.
func AllocImage(format ImgFmt, width, height, align int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errInvalidDimensions(width, height)
	}
	if format.PlaneCount() == 0 {
		return nil, fmt.Errorf("%w: unsupported image format %s", CodecInvalidParam, format)
	}
	if align < 1 {
		align = 1
	}

	bps, depth := 1, 8
	if format.HighBitDepth() {
		bps, depth = 2, 16
	}

	xs, ys := format.ChromaShift()
	chromaWidth := (width + (1 << xs) - 1) >> xs
	chromaHeight := (height + (1 << ys) - 1) >> ys

	img := &Image{
		Format:   format,
		Width:    width,
		Height:   height,
		BitDepth: depth,
	}

	lumaStride := alignUp(width*bps, align)
	img.Planes = append(img.Planes, make([]byte, lumaStride*height))
	img.Stride = append(img.Stride, lumaStride)

	if format == ImgFmtNV12 {
		uvStride := alignUp(2*chromaWidth*bps, align)
		img.Planes = append(img.Planes, make([]byte, uvStride*chromaHeight))
		img.Stride = append(img.Stride, uvStride)
		return img, nil
	}

	chromaStride := alignUp(chromaWidth*bps, align)
	for i := 0; i < 2; i++ {
		img.Planes = append(img.Planes, make([]byte, chromaStride*chromaHeight))
		img.Stride = append(img.Stride, chromaStride)
	}

	return img, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
