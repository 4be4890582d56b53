package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger.
func Setup(level string, noColor bool) error {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	logrus.SetLevel(parsed)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:          noColor,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
	})
	return nil
}
