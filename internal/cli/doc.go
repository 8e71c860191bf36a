// Package cli реализует инструмент командной строки Restavrator.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Restavrator API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления batch-заданиями и просмотра runs.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Restavrator API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	batches, err := client.ListBatches()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: restavrator batch list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - batch: submit, list, show, cancel, retry, stats
//   - run: list, show, steps
//
// Каждая группа создаётся через фабричную функцию (NewBatchCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
