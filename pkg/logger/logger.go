package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	log "github.com/sirupsen/logrus"
)

// LogFormatter log formatter structure
type LogFormatter struct {
	TimestampFormat string
	LevelDesc       []string
}

// Format format entry in custom format
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)
	level := f.LevelDesc[entry.Level]
	msg := fmt.Sprintf("%s [%s] %s\n", timestamp, level, entry.Message)
	return []byte(msg), nil
}

// Init initializes the logger. Log level comes from LOG_LEVEL; output goes to
// stdout, and to rotated files instead when LOG_DIRECTORY is set.
func Init() {
	log.SetFormatter(&LogFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		LevelDesc:       []string{"PANIC", "FATAL", "ERROR", "WARN", "INFO", "DEBUG", "TRACE"},
	})

	if os.Getenv("LOG_LEVEL") == "DEBUG" {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	logDirectory := os.Getenv("LOG_DIRECTORY")
	if logDirectory == "" {
		log.SetOutput(os.Stdout)
		return
	}

	logFileMaxAge, err := strconv.Atoi(os.Getenv("LOG_FILE_MAX_AGE"))
	if err != nil || logFileMaxAge <= 0 {
		logFileMaxAge = 2 // days
	}

	if err := os.MkdirAll(logDirectory, 0755); err != nil {
		fmt.Println("Error creating log folder:", err)
		os.Exit(1)
	}

	rl, err := rotatelogs.New(
		filepath.Join(logDirectory, "%Y-%m-%d-%H.log"),
		rotatelogs.WithLinkName(filepath.Join(logDirectory, "current.log")),
		rotatelogs.WithRotationTime(time.Hour),
		rotatelogs.WithMaxAge(time.Duration(logFileMaxAge)*24*time.Hour),
	)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	log.SetOutput(rl)
}

// Info logs informational messages
func Info(message string) {
	log.Info(message)
}

// Error logs error messages
func Error(message string) {
	log.Error(message)
}

// Debug logs debug messages
func Debug(message string) {
	log.Debug(message)
}

// Warn logs warning messages
func Warn(message string) {
	log.Warn(message)
}

// Infof logs formatted informational message
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Errorf logs formatted error message
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// Debugf logs formatted debug message
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Warnf logs formatted warning message
func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}
