// Package batch реализует менеджер пакетной обработки фотографий.
//
// Manager держит очередь batch-заданий и гоняет тикер:
//   - Tick — один тик менеджера: sweep по таймаутам активных заданий,
//     периодическая чистка завершённых по cron-расписанию, допуск
//     заданий из очереди до лимита параллелизма.
//   - Каждое допущенное задание обрабатывается в своей горутине:
//     элементы идут строго последовательно, между элементами — пауза,
//     отмена наблюдается на границах элементов. Паника при обработке
//     элемента фиксируется как ошибка элемента и не валит задание.
//
// Статусы задания: queued → running → completed | failed |
// partial_success | cancelled | timeout. Терминальный статус выводится
// из счётчиков: все элементы успешны — completed, все неуспешны —
// failed, иначе partial_success.
//
// Завершённые задания с retryable-статусом можно перезапустить целиком:
// прогресс, ошибки и привязанные run'ы сбрасываются, элементы
// сохраняются.
//
// Наблюдатели (Notifier) получают события жизненного цикла задания:
// постановку, старт, прогресс, завершение. Событие — снимок состояния,
// подписчики не могут мутировать задание.
package batch
