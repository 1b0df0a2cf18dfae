package events

// Outcome 消费侧一次效果应用的结果。重复投递不是错误，
// 幂等层把它吸收为 OutcomeAlreadyApplied。
type Outcome int

const (
	// OutcomeApplied 效果本次被实际应用
	OutcomeApplied Outcome = iota
	// OutcomeAlreadyApplied 效果此前已应用，本次为幂等空操作
	OutcomeAlreadyApplied
	// OutcomeFlagged 效果已记录但需要人工关注（如库存不足、缺少计价）
	OutcomeFlagged
)

// String 返回结果的可读名称
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeAlreadyApplied:
		return "already_applied"
	case OutcomeFlagged:
		return "flagged"
	default:
		return "unknown"
	}
}
