package lbanalyzer

import (
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the run's logger. Output goes to w, or to a rotating
// file when cfg.File is set; the returned closer releases that file.
func NewLogger(cfg LogConfig, w io.Writer) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		DisableColors:    cfg.File != "",
		QuoteEmptyFields: true,
	})
	if cfg.File == "" {
		log.SetOutput(w)
		return log, nopCloser{}, nil
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	log.SetOutput(file)
	return log, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
