package mq

import "errors"

// PermanentError 标记不可重试的处理失败：消息本身不合法，或其引用的
// 实体在本地不存在且不会自行出现。这类消息直接进入死信队列。
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent 包装一个错误为不可重试错误
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent 判断错误是否为不可重试错误
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
