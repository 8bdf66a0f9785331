package uploads

import "io"

// PercentIndeterminate is reported when the total transfer size is unknown.
const PercentIndeterminate = -1

// Progress is a one-way snapshot pushed from the transfer to its observer.
type Progress struct {
	Percent    float64
	BytesSent  int64
	TotalBytes int64
}

// ProgressReader wraps a reader and pushes transfer progress to an observer
// after every read. Cancellation happens by aborting the surrounding
// transfer; a failed upload restarts from zero, there is no resume.
type ProgressReader struct {
	reader   io.Reader
	total    int64
	sent     int64
	observer func(Progress)
}

// NewProgressReader wraps r, reporting against the expected total size.
// A non-positive total yields indeterminate percentages.
func NewProgressReader(r io.Reader, total int64, observer func(Progress)) *ProgressReader {
	return &ProgressReader{reader: r, total: total, observer: observer}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.reader.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.notify()
	}
	return n, err
}

func (p *ProgressReader) notify() {
	if p.observer == nil {
		return
	}

	percent := float64(PercentIndeterminate)
	if p.total > 0 {
		percent = float64(p.sent) / float64(p.total) * 100
		if percent > 100 {
			percent = 100
		}
	}

	p.observer(Progress{
		Percent:    percent,
		BytesSent:  p.sent,
		TotalBytes: p.total,
	})
}
