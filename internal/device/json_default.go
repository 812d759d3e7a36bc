//go:build !sonic

package device

import "github.com/goccy/go-json"

// for imroc/req
var (
	jsonMarshal   = json.Marshal
	jsonUnmarshal = json.Unmarshal
)
