package logger_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/irvingleonard/go-okta-client/internal/logger"
)

func TestInit(t *testing.T) {
	type testCase struct {
		name       string
		cfg        logger.Log
		wantOutput bool
		wantJSON   bool
	}

	testCases := []testCase{
		{
			name: "nothing enabled stays silent",
			cfg: logger.Log{
				AppName:     "test",
				ServiceName: "test",
			},
			wantOutput: false,
		},
		{
			name: "console writer at info",
			cfg: logger.Log{
				LogLevel:    "info",
				AppName:     "test",
				ServiceName: "test",
				Console:     logger.Console{Enabled: true, UseConsoleWriter: true},
			},
			wantOutput: true,
		},
		{
			name: "plain console emits json",
			cfg: logger.Log{
				LogLevel:    "info",
				AppName:     "test",
				ServiceName: "test",
				Console:     logger.Console{Enabled: true},
			},
			wantOutput: true,
			wantJSON:   true,
		},
		{
			name: "trace with caller emits json with stack",
			cfg: logger.Log{
				LogLevel:     "trace",
				AppName:      "test",
				ServiceName:  "test",
				ReportCaller: true,
				Console:      logger.Console{Enabled: true},
			},
			wantOutput: true,
			wantJSON:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := captureLogOutput(t, tc.cfg)

			if tc.wantOutput && out == "" {
				t.Error("expected console output but got none")
			}

			if !tc.wantJSON {
				return
			}

			type entry struct {
				Level   string
				Message string
			}

			for _, line := range strings.Split(out, "\n") {
				if line == "" {
					continue
				}

				var e entry
				if err := json.Unmarshal([]byte(line), &e); err != nil {
					t.Errorf("expected json output but got: %s", line)
				}
			}
		})
	}
}

func captureLogOutput(t *testing.T, cfg logger.Log) string {
	t.Helper()

	stdout := os.Stdout
	stderr := os.Stderr

	r, w, _ := os.Pipe()
	os.Stdout = w
	os.Stderr = w

	if err := logger.Init(cfg); err != nil {
		t.Error(err)
	}

	log.Info().Msg("info line")
	log.Error().Err(errors.New("a test error")).Msg("error line")
	log.Trace().Err(errors.New("a test error")).Msg("trace line")

	outC := make(chan string)

	go func() {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, r); err != nil {
			t.Error(err)
		}
		outC <- buf.String()
	}()

	_ = w.Close()
	os.Stdout = stdout
	os.Stderr = stderr

	return <-outC
}
