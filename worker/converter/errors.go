package converter

import (
	"errors"
	"fmt"
)

var (
	ErrMetadataExtraction = errors.New("metadata extraction failed")
	ErrMetadataWrite      = errors.New("metadata write failed")
	ErrStageTimeout       = errors.New("stage timed out")
	ErrDecode             = errors.New("decode failed")
	ErrEncode             = errors.New("encode failed")
)

// StageError names the pipeline stage that aborted a job. Its message is
// what ends up in the failed job record.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
