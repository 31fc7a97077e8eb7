package wechat

import "time"

// State is the connection state of the messaging account.
type State string

const (
	Checking       State = "checking"
	Online         State = "online"
	Offline        State = "offline"
	LoggingIn      State = "logining"
	QrCodeRequired State = "qrcode_required"
)

// ParseState maps a string to a State. Unknown values map to Offline.
func ParseState(s string) State {
	switch State(s) {
	case Checking, Online, Offline, LoggingIn, QrCodeRequired:
		return State(s)
	}
	return Offline
}

// Suppressed reports whether the periodic poll is paused in this state.
func (s State) Suppressed() bool {
	return s == LoggingIn || s == QrCodeRequired
}

// Tone is the colour family a state is rendered with.
type Tone string

const (
	ToneDefault Tone = "default"
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
	ToneWarning Tone = "warning"
)

// Display is how a state is presented to the user.
type Display struct {
	Label       string
	Description string
	Tone        Tone
}

var displays = map[State]Display{
	Checking:       {Label: "检查中...", Description: "正在检查微信状态", Tone: ToneDefault},
	Online:         {Label: "在线", Description: "微信正常运行中", Tone: ToneSuccess},
	Offline:        {Label: "离线", Description: "微信已断开连接", Tone: ToneDanger},
	LoggingIn:      {Label: "登录中", Description: "微信正在登录，请等待约30秒...", Tone: ToneWarning},
	QrCodeRequired: {Label: "需要扫码", Description: "请扫描二维码登录微信", Tone: ToneWarning},
}

// Display returns the presentation metadata for s.
func (s State) Display() Display {
	if d, ok := displays[s]; ok {
		return d
	}
	return displays[Offline]
}

// Action is a user action the status screen can offer.
type Action string

const (
	ActionRefresh Action = "refresh"
	ActionLogin   Action = "login"
	ActionQrCode  Action = "qrcode"
)

// Label returns the button text for a.
func (a Action) Label() string {
	switch a {
	case ActionRefresh:
		return "刷新状态"
	case ActionLogin:
		return "尝试登录"
	case ActionQrCode:
		return "获取登录二维码"
	}
	return string(a)
}

// ActionsFor lists the actions offered in state s. Refresh is always offered.
func ActionsFor(s State) []Action {
	actions := []Action{ActionRefresh}
	if s == Offline {
		actions = append(actions, ActionLogin)
	}
	if s == Offline || s == QrCodeRequired {
		actions = append(actions, ActionQrCode)
	}
	return actions
}

// Source names what caused a transition.
type Source string

const (
	SourcePoll    Source = "poll"
	SourceManual  Source = "manual"
	SourceLogin   Source = "login"
	SourceQrCode  Source = "qrcode"
	SourceRecheck Source = "recheck"
)

// Notices shown to the user.
const (
	NoticeOnline             = "微信在线"
	NoticeOffline            = "微信已离线"
	NoticeCheckFailed        = "状态检查失败"
	NoticeNetworkError       = "网络错误"
	NoticeLoginSent          = "登录指令已发送，请等待..."
	NoticeLoginFailed        = "登录失败，请尝试扫码登录"
	NoticeLoginRequestFailed = "登录请求失败"
	NoticeQrCodeFailed       = "获取二维码失败"
)

// Transition is one recorded state change.
type Transition struct {
	From    State
	To      State
	Source  Source
	Message string
	At      time.Time
}

// Snapshot is a consistent copy of the controller's observable state.
type Snapshot struct {
	State          State
	Busy           bool
	QrCode         string
	QrVisible      bool
	Notice         string
	LastChecked    time.Time
	RecheckPending bool
}

// Actions lists the actions offered for the snapshot's state.
func (s Snapshot) Actions() []Action {
	return ActionsFor(s.State)
}
