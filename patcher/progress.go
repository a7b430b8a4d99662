package patcher

// ProgressEvent represents a progress update during apply or join.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the file currently being processed, if applicable.
	Path string

	// FilesDone is the number of files completed in this stage.
	FilesDone int

	// FilesTotal is the total number of files in this stage.
	// Zero indicates the total is unknown.
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for apply and join.
const (
	// StageLoading indicates definitions and tables are being read.
	StageLoading ProgressStage = iota

	// StageShifting indicates references are being shifted and rows merged.
	StageShifting

	// StageWriting indicates merged tables are being written.
	StageWriting

	// StageCompiling indicates scripts are being compiled.
	StageCompiling

	// StagePackaging indicates the output archive is being built.
	StagePackaging

	// StageJoining indicates two packages are being joined.
	StageJoining
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageLoading:
		return "loading"
	case StageShifting:
		return "shifting"
	case StageWriting:
		return "writing"
	case StageCompiling:
		return "compiling"
	case StagePackaging:
		return "packaging"
	case StageJoining:
		return "joining"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates. Calls are made from the
// goroutine running the operation.
type ProgressFunc func(ProgressEvent)

func (p *Patcher) report(stage ProgressStage, path string, done, total int) {
	if p.progress == nil {
		return
	}
	p.progress(ProgressEvent{Stage: stage, Path: path, FilesDone: done, FilesTotal: total})
}
