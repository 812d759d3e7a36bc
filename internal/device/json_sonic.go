//go:build sonic

package device

import "github.com/bytedance/sonic"

// for imroc/req
var (
	jsonMarshal   = sonic.Marshal
	jsonUnmarshal = sonic.Unmarshal
)
