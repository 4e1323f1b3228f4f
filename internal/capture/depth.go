package capture

import (
	"image"
	"image/png"
	"os"
	"path/filepath"

	"holocap/internal/services"
	"holocap/internal/stream"
)

type depthWriter struct {
	depthDir string
	abDir    string
	width    int
	height   int
	poses    *poseLog
	encoder  png.Encoder
	plane    *image.Gray16
}

func newDepthWriter(dir string, opts Options) (*depthWriter, error) {
	depthDir := filepath.Join(dir, stream.DepthDir)
	abDir := filepath.Join(dir, stream.ABDir)
	for _, d := range []string{depthDir, abDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, services.Wrap(services.ErrWrite, "capture", "create plane directory", d, err)
		}
	}
	poses, err := openPoseLog(dir)
	if err != nil {
		return nil, err
	}
	return &depthWriter{
		depthDir: depthDir,
		abDir:    abDir,
		width:    opts.DepthWidth,
		height:   opts.DepthHeight,
		poses:    poses,
		encoder:  png.Encoder{CompressionLevel: png.BestSpeed},
		plane:    image.NewGray16(image.Rect(0, 0, opts.DepthWidth, opts.DepthHeight)),
	}, nil
}

func (w *depthWriter) planeBytes() int {
	return w.width * w.height * 2
}

func (w *depthWriter) Write(pkt stream.Packet) error {
	n := w.planeBytes()
	if len(pkt.Payload) != 2*n {
		return malformedPayload(stream.KindDepth, "payload is %d bytes, want %d for two %dx%d planes", len(pkt.Payload), 2*n, w.width, w.height)
	}
	depthPath := filepath.Join(w.depthDir, stream.FrameName(stream.DepthPrefix, pkt.Timestamp, stream.PlaneExt))
	if err := w.writePlane(depthPath, pkt.Payload[:n]); err != nil {
		return writeErr("write depth plane", depthPath, err)
	}
	abPath := filepath.Join(w.abDir, stream.FrameName(stream.ABPrefix, pkt.Timestamp, stream.PlaneExt))
	if err := w.writePlane(abPath, pkt.Payload[n:]); err != nil {
		return writeErr("write ab plane", abPath, err)
	}
	return w.poses.append(pkt)
}

// writePlane stores a little-endian uint16 plane as a 16-bit grayscale PNG.
func (w *depthWriter) writePlane(path string, src []byte) error {
	pix := w.plane.Pix
	for i := 0; i+1 < len(src); i += 2 {
		// image.Gray16 is big-endian.
		pix[i] = src[i+1]
		pix[i+1] = src[i]
	}
	return writeFileAtomic(path, func(f *os.File) error {
		return w.encoder.Encode(f, w.plane)
	})
}

func (w *depthWriter) Close() error {
	return w.poses.close()
}
