package transport

import "io"

// progressStep is the minimum fraction advance between progress callbacks.
// The terminal 1.0 sample is always delivered.
const progressStep = 0.01

// progressReader counts payload bytes as the HTTP transport consumes them
// and reports the delivered fraction. Fractions never decrease and are
// clamped to [0, 1] even if the file grows under us mid-transfer.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	lastSent float64
	report   func(float64)
}

func newProgressReader(r io.Reader, total int64, report func(float64)) *progressReader {
	if report == nil {
		report = func(float64) {}
	}
	return &progressReader{r: r, total: total, report: report}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.maybeReport()
	}
	return n, err
}

func (p *progressReader) maybeReport() {
	fraction := p.fraction()
	if fraction >= 1 {
		fraction = 1
	}
	if fraction < p.lastSent+progressStep && fraction < 1 {
		return
	}
	if fraction <= p.lastSent {
		return
	}
	p.lastSent = fraction
	p.report(fraction)
}

func (p *progressReader) fraction() float64 {
	if p.total <= 0 {
		return 0
	}
	fraction := float64(p.read) / float64(p.total)
	if fraction > 1 {
		return 1
	}
	return fraction
}

// finish emits the terminal sample after a confirmed delivery.
func (p *progressReader) finish() {
	if p.lastSent >= 1 {
		return
	}
	p.lastSent = 1
	p.report(1)
}
