package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind классифицирует ошибку обработки запроса
type Kind string

const (
	// KindUsage - команда вызвана без аргументов
	KindUsage Kind = "usage"
	// KindNotFound - поиск не дал результатов (или провайдер недоступен)
	KindNotFound Kind = "not_found"
	// KindFetchFailed - ошибка извлечения медиа
	KindFetchFailed Kind = "fetch_failed"
	// KindUploadFailed - ошибка отправки файла в чат
	KindUploadFailed Kind = "upload_failed"
	// KindValidationFailed - файл не прошел структурную проверку
	KindValidationFailed Kind = "validation_failed"
	// KindDeleteFailed - не удалось удалить служебное сообщение
	KindDeleteFailed Kind = "delete_failed"
	// KindInternal - все остальное
	KindInternal Kind = "internal"
)

// DomainError представляет доменную ошибку с типизацией
type DomainError struct {
	Kind    Kind           `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
	UserMsg string         `json:"user_message,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is сравнивает вид и код ошибки, причина не учитывается
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Kind == t.Kind && e.Code == t.Code
	}
	return false
}

// GetUserMessage возвращает сообщение для пользователя или дефолтное
func (e *DomainError) GetUserMessage() string {
	if e.UserMsg != "" {
		return e.UserMsg
	}
	return e.Message
}

// New создает новую доменную ошибку
func New(kind Kind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// Wrap оборачивает существующую ошибку в доменную
func Wrap(err error, kind Kind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   err,
		Details: make(map[string]any),
	}
}

// WithDetails добавляет детали к ошибке
func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithUserMessage добавляет сообщение для пользователя
func (e *DomainError) WithUserMessage(msg string) *DomainError {
	e.UserMsg = msg
	return e
}

// KindOf возвращает вид первой DomainError в цепочке, иначе KindInternal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind сообщает, относится ли ошибка к указанному виду
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	ErrNoResults        = New(KindNotFound, "no_results", "search returned no results")
	ErrProviderFailed   = New(KindNotFound, "provider_failed", "search provider call failed")
	ErrFetchFailed      = New(KindFetchFailed, "extract_failed", "media extraction failed")
	ErrUploadFailed     = New(KindUploadFailed, "send_failed", "media upload failed")
	ErrInvalidMedia     = New(KindValidationFailed, "invalid_media", "media failed structural check")
	ErrMessageNotDelete = New(KindDeleteFailed, "message_delete", "status message deletion failed")
)
