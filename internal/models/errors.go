package models

import "errors"

var (
	// ErrDecode 负载解析失败，仅影响当前消息
	ErrDecode = errors.New("decode payload")
	// ErrSinkWrite 存储写入失败，不重试
	ErrSinkWrite = errors.New("sink write")
)
