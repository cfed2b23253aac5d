package pipeline

// Result describes the terminal outcome of an upload task.
type Result struct {
	Success    bool
	RetryCount int
	// Size is the payload size in bytes recorded at admission.
	Size int64
	Err  error
}

// Events receives queue lifecycle notifications. Implementations are called
// from the pipeline's goroutines, one callback at a time; they should return
// quickly and must not call back into the Queue.
type Events interface {
	// UploadStarted fires when the worker schedules a task's first attempt
	// in this process, before any transmission.
	UploadStarted(mediaID string)
	// UploadProgress reports the delivered fraction in [0, 1]. Within one
	// attempt fractions never decrease; a fresh attempt starts over from 0.
	UploadProgress(mediaID string, fraction float64)
	// UploadFinished fires exactly once per task, on success or on
	// permanent failure.
	UploadFinished(mediaID string, result Result)
	// UploadCanceled fires for each live task discarded by CancelAll.
	UploadCanceled(mediaID string)
	// QueueResumed fires once at startup when persisted tasks were restored.
	QueueResumed(restored int)
}

// NopEvents discards all notifications. Embed it to implement only the
// callbacks a delegate cares about.
type NopEvents struct{}

func (NopEvents) UploadStarted(string) {}

func (NopEvents) UploadProgress(string, float64) {}

func (NopEvents) UploadFinished(string, Result) {}

func (NopEvents) UploadCanceled(string) {}

func (NopEvents) QueueResumed(int) {}

// MultiEvents fans notifications out to several delegates in order.
func MultiEvents(delegates ...Events) Events {
	filtered := make([]Events, 0, len(delegates))
	for _, delegate := range delegates {
		if delegate != nil {
			filtered = append(filtered, delegate)
		}
	}
	return multiEvents(filtered)
}

type multiEvents []Events

func (m multiEvents) UploadStarted(mediaID string) {
	for _, delegate := range m {
		delegate.UploadStarted(mediaID)
	}
}

func (m multiEvents) UploadProgress(mediaID string, fraction float64) {
	for _, delegate := range m {
		delegate.UploadProgress(mediaID, fraction)
	}
}

func (m multiEvents) UploadFinished(mediaID string, result Result) {
	for _, delegate := range m {
		delegate.UploadFinished(mediaID, result)
	}
}

func (m multiEvents) UploadCanceled(mediaID string) {
	for _, delegate := range m {
		delegate.UploadCanceled(mediaID)
	}
}

func (m multiEvents) QueueResumed(restored int) {
	for _, delegate := range m {
		delegate.QueueResumed(restored)
	}
}
