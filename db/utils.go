package db

import (
	"encoding/json"
	"errors"
)

// 记录统一用 JSON 编码，便于用 inspect 命令直接查看
func marshalRecord(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func unmarshalRecord(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// IsNotFound 判断是否为 key 不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
