// Package clientinfo переносит IP адрес и User-Agent клиента через context
// от HTTP слоя к записи аудита.
package clientinfo

import "context"

type ctxKey struct{}

// Info данные клиента текущего запроса.
type Info struct {
	IP        string
	UserAgent string
}

// With возвращает контекст с данными клиента.
func With(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// From возвращает данные клиента или пустую Info.
func From(ctx context.Context) Info {
	info, _ := ctx.Value(ctxKey{}).(Info)
	return info
}
