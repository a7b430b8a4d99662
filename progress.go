package nwnpatch

import "github.com/meigma/nwnpatch/patcher"

// Re-export progress types from the patcher package.
type (
	// ProgressEvent represents a progress update during apply or join.
	ProgressEvent = patcher.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = patcher.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = patcher.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageLoading indicates tables and definitions are being read.
	StageLoading = patcher.StageLoading

	// StageShifting indicates references are being rewritten.
	StageShifting = patcher.StageShifting

	// StageWriting indicates merged tables are being written.
	StageWriting = patcher.StageWriting

	// StageCompiling indicates scripts are being compiled.
	StageCompiling = patcher.StageCompiling

	// StagePackaging indicates the output is being packed into a hak.
	StagePackaging = patcher.StagePackaging

	// StageJoining indicates two packages are being joined.
	StageJoining = patcher.StageJoining
)
