package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/tricykol/auth-backend/internal/logger"
)

// SafeGo запускает фоновую горутину с обработкой panic. Используется для
// best-effort операций вроде записи журнала аудита: их падение не должно
// ронять процесс и не должно влиять на ответ клиенту.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.WithComponent("goroutine").
					Errorf("panic in goroutine: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// SafeGoWithContext — то же самое, но с передачей контекста в функцию.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	SafeGo(func() { fn(ctx) })
}
