package capture

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"holocap/internal/stream"
)

type videoWriter struct {
	dir     string
	width   int
	height  int
	stride  int
	quality int
	poses   *poseLog
	frame   *image.YCbCr
}

func newVideoWriter(dir string, opts Options) (*videoWriter, error) {
	poses, err := openPoseLog(dir)
	if err != nil {
		return nil, err
	}
	stride := opts.PVStride
	if stride < opts.PVWidth {
		stride = opts.PVWidth
	}
	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}
	return &videoWriter{
		dir:     dir,
		width:   opts.PVWidth,
		height:  opts.PVHeight,
		stride:  stride,
		quality: quality,
		poses:   poses,
		frame:   image.NewYCbCr(image.Rect(0, 0, opts.PVWidth, opts.PVHeight), image.YCbCrSubsampleRatio420),
	}, nil
}

// nv12Size is the byte length of an NV12 frame: a full-resolution luma plane
// followed by a half-height interleaved CbCr plane, both at stride.
func nv12Size(stride, height int) int {
	return stride * height * 3 / 2
}

func (w *videoWriter) Write(pkt stream.Packet) error {
	if want := nv12Size(w.stride, w.height); len(pkt.Payload) != want {
		return malformedPayload(stream.KindVideo, "frame is %d bytes, want %d for %dx%d stride %d", len(pkt.Payload), want, w.width, w.height, w.stride)
	}
	decodeNV12(w.frame, pkt.Payload, w.stride)

	path := filepath.Join(w.dir, stream.FrameName(stream.ColorPrefix, pkt.Timestamp, stream.ColorExt))
	err := writeFileAtomic(path, func(f *os.File) error {
		return jpeg.Encode(f, w.frame, &jpeg.Options{Quality: w.quality})
	})
	if err != nil {
		return writeErr("write frame", path, err)
	}
	return w.poses.append(pkt)
}

func (w *videoWriter) Close() error {
	return w.poses.close()
}

// decodeNV12 copies an NV12 buffer into dst, which must be a 4:2:0 YCbCr
// image of the frame's size.
func decodeNV12(dst *image.YCbCr, src []byte, stride int) {
	width := dst.Rect.Dx()
	height := dst.Rect.Dy()
	for y := 0; y < height; y++ {
		copy(dst.Y[y*dst.YStride:y*dst.YStride+width], src[y*stride:y*stride+width])
	}
	chroma := src[stride*height:]
	for y := 0; y < height/2; y++ {
		row := chroma[y*stride:]
		for x := 0; x < width/2; x++ {
			dst.Cb[y*dst.CStride+x] = row[2*x]
			dst.Cr[y*dst.CStride+x] = row[2*x+1]
		}
	}
}
