package notification

// State 引擎生命周期状态
//
//	gated-off: 调用者不是监控角色，永不轮询，日志始终为空
//	polling:   构造时立即执行一次评估，之后按固定间隔轮询
//	stopped:   轮询已取消，日志保留且仍可修改
type State int

const (
	StateGatedOff State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateGatedOff:
		return "gated_off"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
