package capability

import (
	"context"
	"encoding/json"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

// Request — запрос к внешней capability.
type Request struct {
	// Stage — этап, для которого выполняется запрос.
	Stage domain.Stage

	// Prompt — текстовая инструкция для модели.
	Prompt string

	// Image — входное изображение. Может быть nil, если изображение
	// передаётся по ссылке или этап работает только с текстом.
	Image []byte

	// ImageRef — ссылка на изображение во внешнем хранилище
	// (альтернатива Image).
	ImageRef string

	// Context — контекст из предыдущих этапов (результат анализа,
	// план, подсказки retry). Сериализуется в запрос как есть.
	Context map[string]any
}

// Result — ответ внешней capability.
type Result struct {
	// Data — структурированный JSON-ответ модели
	// (для ANALYZE, PLAN, VALIDATE).
	Data json.RawMessage

	// Image — сгенерированное изображение (для EDIT).
	Image []byte

	// ImageRef — ссылка на сгенерированное изображение,
	// если bridge сохранил его во внешнем хранилище.
	ImageRef string

	// Model — имя модели, обработавшей запрос.
	Model string
}

// Client — интерфейс внешней generative/analytical AI-модели.
//
// Реализация не привязана к конкретной модели: оркестратор полагается
// только на структуру Result и классификацию ошибок (errors.go).
type Client interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}
