package domain

// Stage — этап пайплайна реставрации.
//
// Каждый run проходит четыре этапа строго по порядку:
//
//	ANALYZE → PLAN → EDIT → VALIDATE
//
// После VALIDATE quality gate решает судьбу run'а (см. QCDecision).
type Stage string

const (
	// StageAnalyze — анализ исходной фотографии (качество, дефекты, содержимое).
	StageAnalyze Stage = "ANALYZE"

	// StagePlan — построение плана редактирования по результатам анализа.
	StagePlan Stage = "PLAN"

	// StageEdit — генерация отредактированного изображения.
	StageEdit Stage = "EDIT"

	// StageValidate — оценка результата (балл 0–100, список проблем).
	StageValidate Stage = "VALIDATE"
)

// Stages возвращает этапы в порядке выполнения.
func Stages() []Stage {
	return []Stage{StageAnalyze, StagePlan, StageEdit, StageValidate}
}

// Number возвращает порядковый номер этапа (1-based).
// Для неизвестного этапа возвращает 0.
func (s Stage) Number() int {
	switch s {
	case StageAnalyze:
		return 1
	case StagePlan:
		return 2
	case StageEdit:
		return 3
	case StageValidate:
		return 4
	default:
		return 0
	}
}

// Next возвращает следующий этап и false, если этап последний.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageAnalyze:
		return StagePlan, true
	case StagePlan:
		return StageEdit, true
	case StageEdit:
		return StageValidate, true
	default:
		return "", false
	}
}

// ParseStage парсит строку в Stage.
// Неизвестное значение коэрцируется в StageAnalyze.
func ParseStage(s string) Stage {
	switch s {
	case "PLAN":
		return StagePlan
	case "EDIT":
		return StageEdit
	case "VALIDATE":
		return StageValidate
	default:
		return StageAnalyze
	}
}

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	QUEUED → ANALYZING → PLANNING → EDITING → VALIDATING → DECIDED → COMPLETED
//	                                   ↑                      ↓    ↘ FAILED
//	                                   └──── (решение RETRY) ─┘
//
// Переходы монотонны, единственное исключение — возврат в EDITING
// при решении RETRY (с инкрементом RetryAttempt).
type RunStatus string

const (
	// RunStatusQueued — run создан, обработка не началась.
	RunStatusQueued RunStatus = "QUEUED"

	// RunStatusAnalyzing — выполняется этап ANALYZE.
	RunStatusAnalyzing RunStatus = "ANALYZING"

	// RunStatusPlanning — выполняется этап PLAN.
	RunStatusPlanning RunStatus = "PLANNING"

	// RunStatusEditing — выполняется этап EDIT.
	RunStatusEditing RunStatus = "EDITING"

	// RunStatusValidating — выполняется этап VALIDATE.
	RunStatusValidating RunStatus = "VALIDATING"

	// RunStatusDecided — quality gate вынес решение.
	RunStatusDecided RunStatus = "DECIDED"

	// RunStatusCompleted — run завершён (принят или отправлен на ручную проверку).
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusFailed — run завершился с ошибкой или отклонён.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Stage возвращает этап, соответствующий активному статусу.
// false — если статус не привязан к этапу (QUEUED, DECIDED, терминальные).
func (s RunStatus) Stage() (Stage, bool) {
	switch s {
	case RunStatusAnalyzing:
		return StageAnalyze, true
	case RunStatusPlanning:
		return StagePlan, true
	case RunStatusEditing:
		return StageEdit, true
	case RunStatusValidating:
		return StageValidate, true
	default:
		return "", false
	}
}

// StatusForStage возвращает активный статус для этапа.
func StatusForStage(stage Stage) RunStatus {
	switch stage {
	case StagePlan:
		return RunStatusPlanning
	case StageEdit:
		return RunStatusEditing
	case StageValidate:
		return RunStatusValidating
	default:
		return RunStatusAnalyzing
	}
}

// ParseRunStatus парсит строку в RunStatus.
// Неизвестное значение коэрцируется в QUEUED — безопасный default
// на границе с внешним хранилищем, где данные могут быть нетипизированы.
func ParseRunStatus(s string) RunStatus {
	switch RunStatus(s) {
	case RunStatusAnalyzing, RunStatusPlanning, RunStatusEditing,
		RunStatusValidating, RunStatusDecided, RunStatusCompleted, RunStatusFailed:
		return RunStatus(s)
	default:
		return RunStatusQueued
	}
}

// StepStatus — статус выполнения одного шага (RunStep).
type StepStatus string

const (
	StepStatusPending    StepStatus = "PENDING"
	StepStatusInProgress StepStatus = "IN_PROGRESS"
	StepStatusCompleted  StepStatus = "COMPLETED"
	StepStatusFailed     StepStatus = "FAILED"
	StepStatusSkipped    StepStatus = "SKIPPED"
)

// IsTerminal возвращает true, если шаг завершён.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// ParseStepStatus парсит строку в StepStatus.
// Неизвестное значение коэрцируется в PENDING.
func ParseStepStatus(s string) StepStatus {
	switch StepStatus(s) {
	case StepStatusInProgress, StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return StepStatus(s)
	default:
		return StepStatusPending
	}
}

// Mode — режим обработки фотографии.
type Mode string

const (
	// ModeRestore — реставрация: убрать повреждения, сохранить оригинал.
	ModeRestore Mode = "RESTORE"

	// ModeEnhance — улучшение качества без изменения содержимого.
	ModeEnhance Mode = "ENHANCE"

	// ModeReimagine — творческая переработка с сохранением композиции.
	ModeReimagine Mode = "REIMAGINE"
)

// ParseMode парсит строку в Mode.
// Неизвестное значение коэрцируется в RESTORE.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeEnhance, ModeReimagine:
		return Mode(s)
	default:
		return ModeRestore
	}
}

// QCDecision — решение quality gate после этапа VALIDATE.
type QCDecision string

const (
	// QCApprove — результат принят.
	QCApprove QCDecision = "APPROVE"

	// QCApproveWithNotes — принят, но с замечаниями (moderate/critical issues).
	QCApproveWithNotes QCDecision = "APPROVE_WITH_NOTES"

	// QCRetry — повторить EDIT с подсказками из найденных проблем.
	QCRetry QCDecision = "RETRY"

	// QCManualReview — результат спорный, нужна проверка человеком.
	QCManualReview QCDecision = "MANUAL_REVIEW"

	// QCReject — результат отклонён.
	QCReject QCDecision = "REJECT"
)

// ParseQCDecision парсит строку в QCDecision.
// Неизвестное значение коэрцируется в MANUAL_REVIEW — самый безопасный
// исход: результат не теряется и не публикуется без проверки.
func ParseQCDecision(s string) QCDecision {
	switch QCDecision(s) {
	case QCApprove, QCApproveWithNotes, QCRetry, QCReject:
		return QCDecision(s)
	default:
		return QCManualReview
	}
}

// BatchStatus — статус batch job.
//
// Жизненный цикл:
//
//	queued → running → completed | failed | partial_success | timeout
//	       ↘ cancelled (из queued или running)
type BatchStatus string

const (
	BatchStatusQueued         BatchStatus = "queued"
	BatchStatusRunning        BatchStatus = "running"
	BatchStatusCompleted      BatchStatus = "completed"
	BatchStatusFailed         BatchStatus = "failed"
	BatchStatusPartialSuccess BatchStatus = "partial_success"
	BatchStatusCancelled      BatchStatus = "cancelled"
	BatchStatusTimeout        BatchStatus = "timeout"
)

// IsTerminal возвращает true, если статус финальный.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusPartialSuccess,
		BatchStatusCancelled, BatchStatusTimeout:
		return true
	default:
		return false
	}
}

// IsRetryable возвращает true, если job можно перезапустить целиком.
func (s BatchStatus) IsRetryable() bool {
	switch s {
	case BatchStatusFailed, BatchStatusPartialSuccess, BatchStatusTimeout:
		return true
	default:
		return false
	}
}

// ParseBatchStatus парсит строку в BatchStatus.
// Неизвестное значение коэрцируется в queued.
func ParseBatchStatus(s string) BatchStatus {
	switch BatchStatus(s) {
	case BatchStatusRunning, BatchStatusCompleted, BatchStatusFailed,
		BatchStatusPartialSuccess, BatchStatusCancelled, BatchStatusTimeout:
		return BatchStatus(s)
	default:
		return BatchStatusQueued
	}
}
