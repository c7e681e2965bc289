package errors

import (
	stderrors "errors"
	"fmt"
)

func (d Definition) Error() string {
	return d.Message
}

// Is 按错误码比较，便于 errors.Is 判断业务错误
func (d Definition) Is(target error) bool {
	t, ok := target.(Definition)
	return ok && t.Code == d.Code
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 行程模块错误。
var (
	InvalidDuration      = Definition{Code: "INVALID_DURATION", Message: "Journey duration must be a positive number within the allowed range"}
	JourneyNotFound      = Definition{Code: "JOURNEY_NOT_FOUND", Message: "No journey is armed"}
	JourneyOverlap       = Definition{Code: "JOURNEY_OVERLAP", Message: "A journey is already armed on this device"}
	JourneyNotExtendable = Definition{Code: "JOURNEY_NOT_EXTENDABLE", Message: "Journey can only be extended while awaiting confirmation"}
	JourneyNotModifiable = Definition{Code: "JOURNEY_NOT_MODIFIABLE", Message: "Journey not modifiable"}
	InvalidCursor        = Definition{Code: "INVALID_CURSOR", Message: "Invalid pagination cursor"}
)

// 通知模块错误。
var (
	NotifyAckInvalid = Definition{Code: "NOTIFY_ACK_INVALID", Message: "Notification acknowledgement invalid"}
)

// SOS 模块错误。
var (
	SOSDispatchFailed = Definition{Code: "SOS_DISPATCH_FAILED", Message: "SOS could not be sent automatically. Please call emergency services directly."}
	SOSContactMissing = Definition{Code: "SOS_CONTACT_MISSING", Message: "Emergency contact is not configured"}
)

// 权限模块错误。
var (
	PermissionStatusInvalid = Definition{Code: "PERMISSION_STATUS_INVALID", Message: "Permission status invalid"}
)

// 鉴权错误。
var (
	Unauthorized = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
)

// 限流错误。
var (
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests, please try again later"}
)

// 短信网关错误。
var (
	ErrSignNameRequired     = Definition{Code: "SMS_SIGN_NAME_REQUIRED", Message: "signName is required"}
	ErrTemplateCodeRequired = Definition{Code: "SMS_TEMPLATE_CODE_REQUIRED", Message: "templateCode is required"}
)

// Token 错误。
var (
	ErrTokenGeneratorNotInitialized = stderrors.New("token generator not initialized")
	ErrUnexpectedSigningMethod      = stderrors.New("unexpected signing method")
	ErrInvalidToken                 = stderrors.New("invalid token")
	ErrInvalidTokenClaims           = stderrors.New("invalid token claims")
	ErrDeviceIDNotFound             = stderrors.New("device id not found in token")
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	InvalidDuration.Code:         InvalidDuration,
	JourneyNotFound.Code:         JourneyNotFound,
	JourneyOverlap.Code:          JourneyOverlap,
	JourneyNotExtendable.Code:    JourneyNotExtendable,
	JourneyNotModifiable.Code:    JourneyNotModifiable,
	InvalidCursor.Code:           InvalidCursor,
	NotifyAckInvalid.Code:        NotifyAckInvalid,
	SOSDispatchFailed.Code:       SOSDispatchFailed,
	SOSContactMissing.Code:       SOSContactMissing,
	TooManyRequests.Code:         TooManyRequests,
	PermissionStatusInvalid.Code: PermissionStatusInvalid,
	Unauthorized.Code:            Unauthorized,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// NonRetryableError 表示不应重试的网关错误（配置错误、参数错误等）
type NonRetryableError struct {
	Code    string
	Message string
	Reason  string
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("%s: %s - %s", e.Reason, e.Code, e.Message)
}

func NewNonRetryableError(code, message, reason string) *NonRetryableError {
	return &NonRetryableError{Code: code, Message: message, Reason: reason}
}

func IsNonRetryableError(err error) bool {
	var target *NonRetryableError
	return stderrors.As(err, &target)
}

// SkipMessageError 表示消息无需处理，消费者直接确认
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return "skip message: " + e.Reason
}

func IsSkipMessageError(err error) bool {
	var target *SkipMessageError
	return stderrors.As(err, &target)
}
