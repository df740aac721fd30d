package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init настраивает стандартный логгер logrus
func Init(level, format string, production bool) {
	logrus.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	// В production пишем JSON, локально удобнее текст
	if format == "json" || (format == "" && production) {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err != nil {
		logrus.WithField("level", level).Warn("⚠️ Неизвестный уровень логирования, используем info")
	}
}
