package batch

import "errors"

// Ошибки менеджера batch-заданий.
var (
	// ErrJobNotFound — задание не найдено.
	ErrJobNotFound = errors.New("batch job not found")

	// ErrNoItems — попытка создать задание без элементов.
	ErrNoItems = errors.New("batch job has no items")

	// ErrJobFinished — операция неприменима к завершённому заданию.
	ErrJobFinished = errors.New("batch job already finished")

	// ErrJobNotRetryable — задание нельзя перезапустить: оно не
	// завершено, завершено успешно или исчерпало лимит перезапусков.
	ErrJobNotRetryable = errors.New("batch job not retryable")
)
