// Package capability предоставляет единый интерфейс к внешней
// генеративной AI-модели для этапов ANALYZE, PLAN, EDIT и VALIDATE.
//
// Структура:
//   - client.go — интерфейс Client, Request/Result
//   - bridge.go — HTTP-реализация поверх bridge-сервиса модели
//   - errors.go — классификация ошибок (transient/permanent)
//
// Большие изображения (выше inline-порога) передаются не inline,
// а по ссылке: клиент сначала загружает файл во внешнее хранилище
// bridge-сервиса и подставляет handle. Для вызывающего кода
// этот выбор невидим.
package capability
