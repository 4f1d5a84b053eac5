package metrics

// EncoderProgress is one committed block of the encoder child's
// progress output, parsed into numbers. Fields the child reported as
// N/A stay zero.
type EncoderProgress struct {
	Frame       float64
	FPS         float64
	BitrateKbps float64
	OutputBytes float64
	DupFrames   float64
	DropFrames  float64
	Speed       float64
}

// SetEncoderProgress publishes a progress block for one camera's
// encoder and caches it for snapshot readers.
func (r *Recorder) SetEncoderProgress(camera string, p EncoderProgress) {
	if r == nil {
		return
	}
	r.encoderFrame.WithLabelValues(camera).Set(p.Frame)
	r.encoderFPS.WithLabelValues(camera).Set(p.FPS)
	r.encoderBitrate.WithLabelValues(camera).Set(p.BitrateKbps)
	r.encoderOutBytes.WithLabelValues(camera).Set(p.OutputBytes)
	r.encoderDupFrames.WithLabelValues(camera).Set(p.DupFrames)
	r.encoderDropFrames.WithLabelValues(camera).Set(p.DropFrames)
	r.encoderSpeed.WithLabelValues(camera).Set(p.Speed)

	r.progressMu.Lock()
	r.progress[camera] = p
	r.progressMu.Unlock()
}

// EncoderProgressFor returns the last progress block published for a
// camera, if any.
func (r *Recorder) EncoderProgressFor(camera string) (EncoderProgress, bool) {
	if r == nil {
		return EncoderProgress{}, false
	}
	r.progressMu.RLock()
	defer r.progressMu.RUnlock()
	p, ok := r.progress[camera]
	return p, ok
}

// ClearEncoderProgress drops a camera's encoder series. Called when
// its sink closes so a stopped camera stops exporting stale gauges.
func (r *Recorder) ClearEncoderProgress(camera string) {
	if r == nil {
		return
	}
	r.encoderFrame.DeleteLabelValues(camera)
	r.encoderFPS.DeleteLabelValues(camera)
	r.encoderBitrate.DeleteLabelValues(camera)
	r.encoderOutBytes.DeleteLabelValues(camera)
	r.encoderDupFrames.DeleteLabelValues(camera)
	r.encoderDropFrames.DeleteLabelValues(camera)
	r.encoderSpeed.DeleteLabelValues(camera)

	r.progressMu.Lock()
	delete(r.progress, camera)
	r.progressMu.Unlock()
}
