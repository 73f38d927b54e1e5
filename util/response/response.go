// Package response holds the envelope every ledger API reply uses. Success
// and business failure share the shape; clients branch on Code, not on the
// transport status.
package response

import "time"

type Envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func New(code int, message string, data any) Envelope {
	return Envelope{
		Code:      code,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
	}
}

func Success(data any) Envelope {
	return New(200, "success", data)
}

func SuccessMsg(message string, data any) Envelope {
	return New(200, message, data)
}

func Error(code int, message string) Envelope {
	return New(code, message, nil)
}
