// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go       — Handler с DI (manager, репозитории, logger)
//   - routes.go        — регистрация маршрутов
//   - middleware.go    — middleware (logging, recovery)
//   - response.go      — унифицированные JSON-ответы и обработка ошибок
//   - dto.go           — Data Transfer Objects (request/response)
//   - batch_handler.go — обработчики для /batches и /statistics
//   - run_handler.go   — обработчики для /runs
//
// API предоставляет REST endpoints для сабмита и управления batch jobs
// и чтения runs.
package api
