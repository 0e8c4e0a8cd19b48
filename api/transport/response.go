package transport

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{Status: "success", Data: data, Meta: meta}
}

func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{Status: "error", Code: code, Error: err, Meta: meta}
}

// ListMeta describes the page a list response covers.
type ListMeta struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Count int `json:"count"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

var encodeFailure = []byte(`{"status":"error","code":"INTERNAL","error":"response encoding failed"}`)

// Write encodes e as the JSON body of ctx.
func Write(ctx *fasthttp.RequestCtx, status int, e Envelope) {
	body, err := json.Marshal(e)
	if err != nil {
		status, body = http.StatusInternalServerError, encodeFailure
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

// Fail writes an error envelope carrying code and message.
func Fail(ctx *fasthttp.RequestCtx, status int, code, message string) {
	Write(ctx, status, NewError(code, message, nil))
}
