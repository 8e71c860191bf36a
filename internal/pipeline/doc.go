// Package pipeline реализует пайплайн реставрации одной фотографии:
// последовательность этапов ANALYZE → PLAN → EDIT → VALIDATE и
// quality gate, выносящий вердикт по результату валидации.
//
// Архитектура:
//   - Runner — машина состояний run: проводит run через этапы,
//     применяет вердикт gate и фиксирует терминальный статус.
//   - StepExecutor — выполнение одного этапа: построение запроса через
//     stage.Handler, вызов capability с таймаутом и retry по
//     transient-ошибкам, запись step'а в хранилище.
//   - GatePolicy — чистая функция решения: пороги оценки и лимит
//     повторов полного цикла EDIT → VALIDATE.
//
// Вердикты gate:
//   - APPROVE / APPROVE_WITH_NOTES — run завершается COMPLETED.
//   - MANUAL_REVIEW — run завершается COMPLETED с флагом needs_review.
//   - RETRY — run возвращается на этап EDIT с подсказками из отчёта
//     валидации; счётчик попыток увеличивается.
//   - REJECT — run завершается FAILED.
//
// Ошибки этапов (permanent-ошибка capability или исчерпанные retry)
// переводят run в FAILED без вердикта gate.
//
// Ошибки записи в хранилище не прерывают обработку: пайплайн логирует
// warning и продолжает, состояние run живёт в памяти до конца обработки.
package pipeline
