package recorderimpl

import "sync"

// amplitudeMonitor accumulates signal levels sampled while recording. It
// applies two independent thresholds: levels above the speech threshold mark
// the session as voiced, levels below the silence threshold grow a
// silence-run counter used only for a non-fatal advisory.
type amplitudeMonitor struct {
	speechThreshold  float64
	silenceThreshold float64
	silenceRunLimit  int

	mu             sync.Mutex
	maxLevel       float64
	sum            float64
	samples        int
	speechObserved bool
	silenceRun     int
	advised        bool
}

func newAmplitudeMonitor(speechThreshold, silenceThreshold float64, silenceRunLimit int) *amplitudeMonitor {
	return &amplitudeMonitor{
		speechThreshold:  speechThreshold,
		silenceThreshold: silenceThreshold,
		silenceRunLimit:  silenceRunLimit,
	}
}

// Sample records one level reading and reports whether the prolonged-silence
// advisory should fire. The advisory fires at most once per session and only
// before any speech has been observed.
func (m *amplitudeMonitor) Sample(level float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples++
	m.sum += level
	if level > m.maxLevel {
		m.maxLevel = level
	}

	if level >= m.speechThreshold {
		m.speechObserved = true
		m.silenceRun = 0
		return false
	}

	if level < m.silenceThreshold {
		m.silenceRun++
	}

	if !m.speechObserved && !m.advised && m.silenceRun > m.silenceRunLimit {
		m.advised = true
		return true
	}
	return false
}

func (m *amplitudeMonitor) SpeechObserved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speechObserved
}

func (m *amplitudeMonitor) MaxLevel() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxLevel
}

// AverageLevel is diagnostic only; no pipeline logic depends on it.
func (m *amplitudeMonitor) AverageLevel() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}
