package logger

import (
	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

// Init инициализирует структурированный логгер под окружение:
// в development — текстовый вывод на debug уровне, иначе JSON на info.
func Init(env string) {
	Log = logrus.New()

	if env == "development" {
		Log.SetLevel(logrus.DebugLevel)
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}

	Log.SetLevel(logrus.InfoLevel)
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// WithComponent возвращает entry с проставленным именем компонента.
func WithComponent(name string) *logrus.Entry {
	if Log == nil {
		Init("")
	}
	return Log.WithField("component", name)
}
