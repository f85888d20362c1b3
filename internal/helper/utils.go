package helper

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/k0kubun/pp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger.
func InitLogger(level string, jsonOutput bool) {
	InitLoggerTo(os.Stderr, level, jsonOutput)
}

func InitLoggerTo(w io.Writer, level string, jsonOutput bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if jsonOutput {
		log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// VectorID is the stable record id for chunk index i of source.
func VectorID(source string, i int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d", source, i)))
	return hex.EncodeToString(sum[:])
}

// pretty print
func PrettyPrint(v interface{}) {
	PrettyFprint(os.Stdout, v)
}

func PrettyFprint(w io.Writer, v interface{}) {
	if _, err := pp.Fprintln(w, v); err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
	}
}

// CreateFolder creates path and any missing parents.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
