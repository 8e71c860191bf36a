package pipeline

import "errors"

// Ошибки пайплайна.
var (
	// ErrRunFinished — попытка обработать run в терминальном статусе.
	ErrRunFinished = errors.New("run already finished")

	// ErrStageFailed — этап завершился неуспешно после всех попыток.
	ErrStageFailed = errors.New("stage failed")

	// ErrNoValidation — этап VALIDATE завершился без отчёта валидации.
	ErrNoValidation = errors.New("validation produced no report")
)
