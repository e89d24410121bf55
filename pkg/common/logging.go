package common

import (
	log "github.com/sirupsen/logrus"
)

// InitLog configures the global logger from a level and a format (text, json or color).
func InitLog(level, format string) error {
	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "color":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	default:
		log.SetFormatter(&log.TextFormatter{})
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}
