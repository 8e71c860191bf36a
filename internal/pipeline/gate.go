package pipeline

import "github.com/fotoarhiv/restavrator/internal/domain"

// Пороги quality gate по умолчанию.
const (
	// DefaultAcceptThreshold — оценка, начиная с которой результат принимается.
	DefaultAcceptThreshold = 75

	// DefaultRetryFloor — оценка, выше которой имеет смысл повторять EDIT.
	DefaultRetryFloor = 50

	// DefaultSalvageThreshold — оценка, начиная с которой безнадёжный
	// результат отправляется на ручную проверку вместо отказа.
	DefaultSalvageThreshold = 50

	// DefaultMaxRetries — лимит повторов цикла EDIT → VALIDATE.
	DefaultMaxRetries = 2
)

// GatePolicy — пороги и лимиты quality gate.
//
// Решение детерминировано: один и тот же отчёт валидации при одном и
// том же номере попытки всегда даёт один и тот же вердикт.
type GatePolicy struct {
	// AcceptThreshold — минимальная оценка для принятия результата.
	AcceptThreshold int

	// RetryFloor — оценка должна быть строго выше, чтобы назначить RETRY.
	RetryFloor int

	// SalvageThreshold — минимальная оценка для MANUAL_REVIEW
	// вместо REJECT.
	SalvageThreshold int

	// MaxRetries — максимум повторов цикла EDIT → VALIDATE.
	MaxRetries int
}

// DefaultGatePolicy возвращает пороги по умолчанию.
func DefaultGatePolicy() GatePolicy {
	return GatePolicy{
		AcceptThreshold:  DefaultAcceptThreshold,
		RetryFloor:       DefaultRetryFloor,
		SalvageThreshold: DefaultSalvageThreshold,
		MaxRetries:       DefaultMaxRetries,
	}
}

// Decide выносит вердикт по отчёту валидации.
//
// attempt — номер текущей попытки (0 для первого прохода).
//
// Порядок проверок:
//  1. Blocker-проблема исключает принятие и повтор: MANUAL_REVIEW,
//     если оценка не ниже SalvageThreshold, иначе REJECT.
//  2. Оценка не ниже AcceptThreshold — принятие: APPROVE_WITH_NOTES,
//     если есть проблемы серьёзности moderate и выше, иначе APPROVE.
//  3. Остались попытки и оценка выше RetryFloor — RETRY.
//  4. Иначе MANUAL_REVIEW или REJECT по SalvageThreshold.
func (p GatePolicy) Decide(v *domain.ValidationResult, attempt int) domain.QCDecision {
	if v.HasBlocker() {
		return p.salvage(v.OverallScore)
	}

	if v.OverallScore >= p.AcceptThreshold {
		if v.HasSevere() {
			return domain.QCApproveWithNotes
		}
		return domain.QCApprove
	}

	if attempt < p.MaxRetries && v.OverallScore > p.RetryFloor {
		return domain.QCRetry
	}

	return p.salvage(v.OverallScore)
}

func (p GatePolicy) salvage(score int) domain.QCDecision {
	if score >= p.SalvageThreshold {
		return domain.QCManualReview
	}
	return domain.QCReject
}
