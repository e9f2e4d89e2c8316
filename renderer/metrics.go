package renderer

import "time"

const avgCount = 30

// Metrics tracks frame timing: the last delta, the average frame time over
// the last 30 frames, and frames counted per elapsed second.
type Metrics struct {
	counter     int
	msTimes     [avgCount]float64
	msAvg       float64
	frames      int
	accumulated float64
	fps         float64
	delta       time.Duration
	total       int
}

// Update records one frame that took delta of wall-clock time.
func (m *Metrics) Update(delta time.Duration) {
	m.delta = delta
	m.total++
	frameMS := float64(delta) / float64(time.Millisecond)

	m.msTimes[m.counter] = frameMS
	if m.counter == avgCount-1 {
		sum := 0.0
		for _, t := range m.msTimes {
			sum += t
		}
		m.msAvg = sum / avgCount
	}
	m.counter = (m.counter + 1) % avgCount

	m.accumulated += frameMS
	if m.accumulated > 1000 {
		m.fps = float64(m.frames)
		m.accumulated -= 1000
		m.frames = 0
	}
	m.frames++
}

func (m *Metrics) FPS() float64         { return m.fps }
func (m *Metrics) FrameTime() float64   { return m.msAvg }
func (m *Metrics) Delta() time.Duration { return m.delta }
func (m *Metrics) Frames() int          { return m.total }
