package safe

import (
	"FCProject/logger"
)

// Go starts a goroutine that recovers from panic, so a panicking
// listener callback cannot take down the whole process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
