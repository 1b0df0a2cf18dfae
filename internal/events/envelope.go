package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion 当前信封结构版本。载荷新增可选字段不需要升版本，
// 旧消费者解码时会忽略未知字段。
const SchemaVersion = 1

// ErrUnknownEventType 信封携带了注册表之外的事件类型
var ErrUnknownEventType = errors.New("events: unknown event type")

// Envelope 总线上每条消息的信封。EventID 在事件入 outbox 时生成一次，
// 之后的重试与重投都复用同一个 ID。
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	Payload       json.RawMessage `json:"payload"`
}

// payloadFactories 按事件类型构造空载荷，解码时使用
var payloadFactories = map[string]func() DomainEvent{
	GoodsReceivedEventType:     func() DomainEvent { return &GoodsReceived{} },
	SalesOrderCreatedEventType: func() DomainEvent { return &SalesOrderCreated{} },
	StockDeductedEventType:     func() DomainEvent { return &StockDeducted{} },
	StockUpdatedEventType:      func() DomainEvent { return &StockUpdated{} },
	EmployeeCreatedEventType:   func() DomainEvent { return &EmployeeCreated{} },
	UserCreatedEventType:       func() DomainEvent { return &UserCreated{} },
}

// Wrap 把事件载荷装入信封并序列化。producer 为发布方服务名。
func Wrap(producer string, event DomainEvent, occurredAt time.Time) (Envelope, []byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("marshal %s payload: %w", event.EventType(), err)
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     event.EventType(),
		SchemaVersion: SchemaVersion,
		OccurredAt:    occurredAt.UTC(),
		Producer:      producer,
		Payload:       payload,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return env, body, nil
}

// Decode 解析总线消息为信封与类型化载荷。
// 无法解析的消息体或未注册的事件类型是永久错误，调用方应拒收且不重入队。
func Decode(body []byte) (Envelope, DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	factory, ok := payloadFactories[env.EventType]
	if !ok {
		return env, nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.EventType)
	}

	event := factory()
	if err := json.Unmarshal(env.Payload, event); err != nil {
		return env, nil, fmt.Errorf("unmarshal %s payload: %w", env.EventType, err)
	}

	return env, event, nil
}

// keyf 统一的自然键格式化入口
func keyf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
