package transfer

// StreamPrimary is the index of a file's only data stream.
const StreamPrimary = 1

// ProgressReport is passed to the progress callback after each chunk.
type ProgressReport struct {
	BytesTransferred int64
	TotalBytes       int64
	StreamIndex      int
}

// ProgressAction is the callback's answer.
type ProgressAction int

// Progress actions. Quiet and StopAndQuiet suppress every further report
// for the rest of the Transfer call.
const (
	Continue ProgressAction = iota
	Cancel
	Quiet
	StopAndQuiet
)

func (a ProgressAction) String() string {
	switch a {
	case Continue:
		return "continue"
	case Cancel:
		return "cancel"
	case Quiet:
		return "quiet"
	case StopAndQuiet:
		return "stop-and-quiet"
	default:
		return "unknown"
	}
}

// ProgressFunc is invoked synchronously on the transferring goroutine. It
// must not call back into the engine for the same handles.
type ProgressFunc func(ProgressReport) ProgressAction

// Outcome is how a Transfer call ended.
type Outcome int

// Outcomes.
const (
	Completed Outcome = iota
	Cancelled
	Stopped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// progressGate applies the Quiet/StopAndQuiet latch to one Transfer call.
type progressGate struct {
	fn    ProgressFunc
	quiet bool
}

func newProgressGate(fn ProgressFunc) *progressGate {
	return &progressGate{fn: fn}
}

// report delivers r and returns the outcome the transfer must end with, or
// Completed to keep going.
func (g *progressGate) report(transferred, total int64) Outcome {
	if g == nil || g.fn == nil || g.quiet {
		return Completed
	}

	switch g.fn(ProgressReport{BytesTransferred: transferred, TotalBytes: total, StreamIndex: StreamPrimary}) {
	case Cancel:
		return Cancelled
	case Quiet:
		g.quiet = true
	case StopAndQuiet:
		g.quiet = true
		return Stopped
	case Continue:
	}

	return Completed
}
