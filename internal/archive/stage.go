package archive

import "fmt"

// Stage is one step of the linear ingest state machine.
type Stage string

const (
	StageValidating        Stage = "validating"
	StageHashing           Stage = "hashing"
	StageDirectoryEnsuring Stage = "directory_ensuring"
	StagePlacing           Stage = "placing"
	StageConverting        Stage = "converting"
	StageCompressing       Stage = "compressing"
	StageThumbnailing      Stage = "thumbnailing"
	StageCleaningUp        Stage = "cleaning_up"
	StageDone              Stage = "done"
)

// StageError records the stage at which an ingest stopped.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
