// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, calendar, meeting, provider, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeEmailAlreadyRegistered = "EMAIL_ALREADY_REGISTERED"
	ErrCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	ErrCodeUserInactive           = "USER_INACTIVE"
	ErrCodeEmailNotVerified       = "EMAIL_NOT_VERIFIED"
	ErrCodeEmailAlreadyVerified   = "EMAIL_ALREADY_VERIFIED"
	ErrCodeInvalidToken           = "INVALID_TOKEN"
	ErrCodePermissionDenied       = "PERMISSION_DENIED"
	ErrCodeSelfDeleteForbidden    = "SELF_DELETE_FORBIDDEN"
	ErrCodeSelfDemoteForbidden    = "SELF_DEMOTE_FORBIDDEN"
	ErrCodeCalendarNotFound       = "CALENDAR_NOT_FOUND"
	ErrCodeAvailabilityNotFound   = "AVAILABILITY_NOT_FOUND"
	ErrCodeTeamNotFound           = "TEAM_NOT_FOUND"
	ErrCodeMeetingNotFound        = "MEETING_NOT_FOUND"
	ErrCodeOAuthSettingsNotFound  = "OAUTH_SETTINGS_NOT_FOUND"
	ErrCodeInvalidTimeRange       = "INVALID_TIME_RANGE"
	ErrCodeInvalidDayOfWeek       = "INVALID_DAY_OF_WEEK"
	ErrCodeInvalidMeetingType     = "INVALID_MEETING_TYPE"
	ErrCodeLocationRequired       = "LOCATION_REQUIRED"
	ErrCodeVirtualInfoRequired    = "VIRTUAL_MEETING_INFO_REQUIRED"
	ErrCodeInvalidRouteTime       = "INVALID_ROUTE_TIME"
	ErrCodeProviderUnsupported    = "PROVIDER_UNSUPPORTED"
	ErrCodeProviderAuthFailed     = "PROVIDER_AUTH_FAILED"
	ErrCodeProviderUnavailable    = "PROVIDER_UNAVAILABLE"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewEmailAlreadyRegisteredError はメールアドレスの重複登録エラーを生成する。
func NewEmailAlreadyRegisteredError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyRegistered,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不正エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserInactiveError は無効化済みユーザーのエラーを生成する。
func NewUserInactiveError() *APIError {
	return &APIError{
		Code:     ErrCodeUserInactive,
		Message:  "このアカウントは無効化されています。",
		Category: "auth",
		Action:   "管理者にお問い合わせください。",
	}
}

// NewEmailNotVerifiedError はメール未認証エラーを生成する。
func NewEmailNotVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotVerified,
		Message:  "メールアドレスが認証されていません。",
		Category: "auth",
		Action:   "認証メールのリンクをクリックしてください。",
	}
}

// NewEmailAlreadyVerifiedError はメール認証済みエラーを生成する。
func NewEmailAlreadyVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyVerified,
		Message:  "メールアドレスは既に認証済みです。",
		Category: "validation",
		Action:   "そのままサービスをご利用いただけます。",
	}
}

// NewInvalidTokenError は認証トークン不正エラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効または期限切れです。",
		Category: "auth",
		Action:   "認証メールを再送してください。",
	}
}

// NewPermissionDeniedError は権限不足エラーを生成する。
func NewPermissionDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodePermissionDenied,
		Message:  "この操作を実行する権限がありません。",
		Category: "auth",
		Action:   "管理者にお問い合わせください。",
	}
}

// NewSelfDeleteForbiddenError は自分自身の管理者アカウント削除エラーを生成する。
func NewSelfDeleteForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfDeleteForbidden,
		Message:  "自分自身のアカウントは削除できません。",
		Category: "validation",
		Action:   "他の管理者に削除を依頼してください。",
	}
}

// NewSelfDemoteForbiddenError は自分自身の管理者権限剥奪エラーを生成する。
func NewSelfDemoteForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfDemoteForbidden,
		Message:  "自分自身の管理者権限は削除できません。",
		Category: "validation",
		Action:   "他の管理者に権限変更を依頼してください。",
	}
}

// NewCalendarNotFoundError はカレンダー未検出エラーを生成する。
// 存在しない場合と他ユーザー所有の場合を区別しない。
func NewCalendarNotFoundError(calendarID string) *APIError {
	return &APIError{
		Code:     ErrCodeCalendarNotFound,
		Message:  fmt.Sprintf("指定されたカレンダーが見つかりません: %s", calendarID),
		Category: "calendar",
		Action:   "カレンダーIDを確認してください。",
	}
}

// NewAvailabilityNotFoundError は空き時間ルール未検出エラーを生成する。
func NewAvailabilityNotFoundError(availabilityID string) *APIError {
	return &APIError{
		Code:     ErrCodeAvailabilityNotFound,
		Message:  fmt.Sprintf("指定された空き時間ルールが見つかりません: %s", availabilityID),
		Category: "validation",
		Action:   "ルールIDを確認してください。",
	}
}

// NewTeamNotFoundError はチーム未検出エラーを生成する。
// 存在しない場合とメンバーでない場合を区別しない。
func NewTeamNotFoundError(teamID string) *APIError {
	return &APIError{
		Code:     ErrCodeTeamNotFound,
		Message:  fmt.Sprintf("指定されたチームが見つからないか、メンバーではありません: %s", teamID),
		Category: "validation",
		Action:   "チームIDを確認してください。",
	}
}

// NewMeetingNotFoundError はミーティング未検出エラーを生成する。
func NewMeetingNotFoundError(meetingID string) *APIError {
	return &APIError{
		Code:     ErrCodeMeetingNotFound,
		Message:  fmt.Sprintf("指定されたミーティングが見つかりません: %s", meetingID),
		Category: "meeting",
		Action:   "ミーティングIDを確認してください。",
	}
}

// NewOAuthSettingsNotFoundError はOAuth設定未検出エラーを生成する。
func NewOAuthSettingsNotFoundError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeOAuthSettingsNotFound,
		Message:  fmt.Sprintf("プロバイダーのOAuth設定が見つかりません: %s", provider),
		Category: "provider",
		Action:   "管理者にOAuth設定の登録を依頼してください。",
	}
}

// NewInvalidTimeRangeError は時間範囲不正エラーを生成する。
func NewInvalidTimeRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimeRange,
		Message:  "終了時刻は開始時刻より後である必要があります。",
		Category: "validation",
		Action:   "開始時刻と終了時刻を確認してください。",
	}
}

// NewInvalidDayOfWeekError は曜日不正エラーを生成する。
func NewInvalidDayOfWeekError(day int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDayOfWeek,
		Message:  fmt.Sprintf("無効な曜日です: %d", day),
		Category: "validation",
		Action:   "曜日は0（月曜）から6（日曜）の範囲で指定してください。",
	}
}

// NewInvalidMeetingTypeError はミーティング形式不正エラーを生成する。
func NewInvalidMeetingTypeError(meetingType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMeetingType,
		Message:  fmt.Sprintf("無効なミーティング形式です: %s", meetingType),
		Category: "validation",
		Action:   "形式には virtual または in_person を指定してください。",
	}
}

// NewLocationRequiredError は対面ミーティングの場所未指定エラーを生成する。
func NewLocationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeLocationRequired,
		Message:  "対面ミーティングには場所の指定が必要です。",
		Category: "validation",
		Action:   "場所を入力してください。",
	}
}

// NewVirtualMeetingInfoRequiredError はオンラインミーティングの情報不足エラーを生成する。
func NewVirtualMeetingInfoRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeVirtualInfoRequired,
		Message:  "オンラインミーティングにはプロバイダーとURLの指定が必要です。",
		Category: "validation",
		Action:   "ミーティングプロバイダーとURLを入力してください。",
	}
}

// NewInvalidRouteTimeError は移動時間バッファ不正エラーを生成する。
func NewInvalidRouteTimeError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRouteTime,
		Message:  fmt.Sprintf("無効な移動時間です: %d分", minutes),
		Category: "validation",
		Action:   "移動時間は30分、45分、60分のいずれかを指定してください。",
	}
}

// NewProviderUnsupportedError は未対応プロバイダーエラーを生成する。
func NewProviderUnsupportedError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderUnsupported,
		Message:  fmt.Sprintf("このプロバイダーには対応していません: %s", provider),
		Category: "provider",
		Action:   "対応プロバイダー（google, apple, mailcow）を選択してください。",
	}
}

// NewProviderAuthFailedError はプロバイダー認証失敗エラーを生成する。
func NewProviderAuthFailedError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderAuthFailed,
		Message:  fmt.Sprintf("プロバイダーの認証に失敗しました: %s", provider),
		Category: "provider",
		Action:   "カレンダーを再接続してください。",
	}
}

// NewProviderUnavailableError はプロバイダー一時障害エラーを生成する。
func NewProviderUnavailableError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderUnavailable,
		Message:  fmt.Sprintf("プロバイダーに接続できませんでした: %s", provider),
		Category: "provider",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
