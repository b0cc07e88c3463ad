package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/elongate/internal/config"
	"github.com/fmueller/elongate/internal/pipeline"
	"github.com/fmueller/elongate/internal/runner"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) {
	return "", false
}

func isolatedApp(t *testing.T) *appState {
	t.Helper()
	return &appState{lookupEnv: noEnv}
}

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runAppCommand(t, isolatedApp(t), args)
}

func runAppCommand(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "absent.toml"), "--no-progress"}, args...))

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

type fakeTranscoder struct {
	calls *[]string
	err   error
}

func (f fakeTranscoder) Name() string { return "fake-ffmpeg" }

func (f fakeTranscoder) Transcode(_ context.Context, input, intermediate string) (runner.Result, error) {
	*f.calls = append(*f.calls, "transcode:"+filepath.Base(input))
	if f.err != nil {
		return runner.Result{}, f.err
	}
	return runner.Result{Stdout: "ffmpeg ok\n"}, os.WriteFile(intermediate, []byte("pcm"), 0o644)
}

type fakeStretcher struct {
	calls *[]string
	tempo *int
}

func (f fakeStretcher) Name() string { return "fake-soundstretch" }

func (f fakeStretcher) Stretch(_ context.Context, _, output string, tempo int) (runner.Result, error) {
	*f.calls = append(*f.calls, "stretch:"+filepath.Base(output))
	*f.tempo = tempo
	return runner.Result{Stdout: "soundstretch ok\n"}, nil
}

// fakePipelineApp wires scripted tools into the CLI.
func fakePipelineApp(t *testing.T, calls *[]string, tempo *int, transcodeErr error) *appState {
	t.Helper()

	tmp := t.TempDir()
	app := isolatedApp(t)
	app.newPipeline = func(cfg config.Config) *pipeline.Pipeline {
		return &pipeline.Pipeline{
			Transcoder: fakeTranscoder{calls: calls, err: transcodeErr},
			Stretcher:  fakeStretcher{calls: calls, tempo: tempo},
			TempDir:    tmp,
		}
	}
	return app
}

func writeAlignment(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}
